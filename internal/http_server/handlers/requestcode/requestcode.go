package requestcode

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/account"
	resp "github.com/Magno-12/prueba-tecnica-quo-digital/internal/lib/api/response"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/lib/logger/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Email string `json:"email" validate:"required,email"`
}

type Response struct {
	resp.Response
	Message string `json:"message"`
}

type CodeRequester interface {
	RequestResetCode(ctx context.Context, email string) error
}

// New godoc
// @Summary      Request a password reset code
// @Description  Emails an 8 character code valid for the configured TTL. Any previous unused code of the email stops working.
// @Description  Unknown emails get 404; the route is rate limited per client IP.
// @Tags         users
// @Accept       json
// @Produce      json
// @Success      200  {object}  Response
// @Failure      400  {object}  resp.Response
// @Failure      404  {object}  resp.Response  "user not found"
// @Failure      500  {object}  resp.Response  "failed to send verification code"
// @Router       /api/users/request_code [post]
func New(
	log *slog.Logger,
	validate *validator.Validate,
	requester CodeRequester,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.requestcode.New"

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

		if err := requester.RequestResetCode(ctx, req.Email); err != nil {
			switch {
			case errors.Is(err, account.ErrUserNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("user not found"))
			case errors.Is(err, account.ErrSendCode):
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("failed to send verification code"))
			default:
				log.Error("failed to issue reset code", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Message:  "verification code sent",
		})
	}
}
