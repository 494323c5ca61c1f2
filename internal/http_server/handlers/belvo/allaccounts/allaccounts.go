package allaccounts

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
	belvo.AllAccounts
}

type AccountsAggregator interface {
	AllAccounts(ctx context.Context) (belvo.AllAccounts, error)
}

func New(log *slog.Logger, aggregator AccountsAggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.allaccounts.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		res, err := aggregator.AllAccounts(r.Context())
		if err != nil {
			gatewayerr.Render(w, r, log, err, http.StatusBadRequest)
			return
		}

		render.JSON(w, r, Response{
			Response:    resp.OK(),
			AllAccounts: res,
		})
	}
}
