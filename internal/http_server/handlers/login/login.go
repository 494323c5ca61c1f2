package login

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/auth"
	resp "github.com/Magno-12/prueba-tecnica-quo-digital/internal/lib/api/response"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/lib/logger/sl"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Email string `json:"email" validate:"required,email"`
	Pass  string `json:"password" validate:"required"`
}

type Response struct {
	resp.Response
	Tokens auth.TokenPair  `json:"tokens"`
	User   models.UserInfo `json:"user"`
}

type Authenticator interface {
	Login(ctx context.Context, email, password string) (auth.TokenPair, models.User, error)
}

// New godoc
// @Summary      Log in
// @Description  Checks email and password and returns a refresh token with an access token derived from it.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Success      200  {object}  Response
// @Failure      400  {object}  resp.Response  "invalid body"
// @Failure      401  {object}  resp.Response  "unknown email, wrong password or disabled account"
// @Router       /api/auth/login [post]
func New(
	log *slog.Logger,
	validate *validator.Validate,
	authenticator Authenticator,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.login.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Info("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		tokens, user, err := authenticator.Login(ctx, req.Email, req.Pass)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidCredentials):
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("invalid credentials"))
			case errors.Is(err, auth.ErrInactiveAccount):
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("user account is disabled"))
			default:
				log.Error("failed to login user", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		log.Info("User logged in successfully", slog.Int64("uid", user.ID))

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Tokens:   tokens,
			User:     user.Info(),
		})
	}
}
