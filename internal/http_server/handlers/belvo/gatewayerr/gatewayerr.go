// Package gatewayerr maps banking gateway errors to HTTP responses.
package gatewayerr

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/belvo"
	resp "github.com/Magno-12/prueba-tecnica-quo-digital/internal/lib/api/response"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/lib/logger/sl"

	"github.com/go-chi/render"
)

// Render writes err. Upstream failures carry their text and upstreamStatus;
// missing parameters are always 400.
func Render(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error, upstreamStatus int) {
	var upErr *belvo.UpstreamError

	switch {
	case errors.Is(err, belvo.ErrMissingParams):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.Error(err.Error()))
	case errors.As(err, &upErr):
		render.Status(r, upstreamStatus)
		render.JSON(w, r, resp.Error(upErr.Error()))
	default:
		log.Error("banking gateway failure", sl.Err(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, resp.Error("Internal error"))
	}
}
