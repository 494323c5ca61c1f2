package institutions

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/belvo"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/http_server/handlers/belvo/gatewayerr"
	resp "github.com/Magno-12/prueba-tecnica-quo-digital/internal/lib/api/response"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	Count    int                 `json:"count"`
	Next     *string             `json:"next"`
	Previous *string             `json:"previous"`
	Results  []belvo.Institution `json:"results"`
}

type InstitutionLister interface {
	ListInstitutions(ctx context.Context) (belvo.InstitutionsPage, error)
}

func New(log *slog.Logger, lister InstitutionLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.institutions.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		page, err := lister.ListInstitutions(r.Context())
		if err != nil {
			gatewayerr.Render(w, r, log, err, http.StatusBadRequest)
			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Count:    page.Count,
			Next:     page.Next,
			Previous: page.Previous,
			Results:  page.Results,
		})
	}
}
