package details

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/belvo"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/http_server/handlers/belvo/gatewayerr"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type DetailsProvider interface {
	TransactionDetails(ctx context.Context, id string) (belvo.TransactionDetail, error)
}

// New returns the expanded transaction. Any upstream failure is reported as 404.
func New(log *slog.Logger, provider DetailsProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.details.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		d, err := provider.TransactionDetails(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			gatewayerr.Render(w, r, log, err, http.StatusNotFound)
			return
		}

		render.JSON(w, r, d)
	}
}
