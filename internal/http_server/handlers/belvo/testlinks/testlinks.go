package testlinks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/belvo"
	resp "github.com/Magno-12/prueba-tecnica-quo-digital/internal/lib/api/response"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/lib/logger/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

// Request is optional; an empty body uses the configured sandbox credentials.
type Request struct {
	Credentials []belvo.Credential `json:"credentials" validate:"omitempty,dive"`
}

type Response struct {
	resp.Response
	belvo.CreatedLinks
}

type LinkCreator interface {
	CreateTestLinks(ctx context.Context, creds []belvo.Credential) belvo.CreatedLinks
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	creator LinkCreator,
	defaults []belvo.Credential,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.testlinks.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil && !errors.Is(err, io.EOF) {
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

		creds := req.Credentials
		if len(creds) == 0 {
			creds = defaults
		}

		if len(creds) == 0 {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("no sandbox credentials provided"))

			return
		}

		created := creator.CreateTestLinks(r.Context(), creds)

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{
			Response:     resp.OK(),
			CreatedLinks: created,
		})
	}
}
