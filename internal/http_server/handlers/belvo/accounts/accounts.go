package accounts

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
	Count   int             `json:"count"`
	Results []belvo.Account `json:"results"`
}

type AccountLister interface {
	ListAccounts(ctx context.Context, linkID string) (belvo.AccountsPage, error)
}

func New(log *slog.Logger, lister AccountLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.accounts.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		linkID := r.URL.Query().Get("link_id")
		if linkID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("link_id is required"))

			return
		}

		page, err := lister.ListAccounts(r.Context(), linkID)
		if err != nil {
			gatewayerr.Render(w, r, log, err, http.StatusBadRequest)
			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Count:    page.Count,
			Results:  page.Results,
		})
	}
}
