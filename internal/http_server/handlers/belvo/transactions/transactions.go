package transactions

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/belvo"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/http_server/handlers/belvo/gatewayerr"
	resp "github.com/Magno-12/prueba-tecnica-quo-digital/internal/lib/api/response"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/lib/logger/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	KPI          belvo.KPI           `json:"kpi"`
	Transactions []belvo.Transaction `json:"transactions"`
}

type TransactionLister interface {
	ListTransactions(ctx context.Context, q belvo.TransactionQuery) (belvo.TransactionsReport, error)
}

type TransactionExporter interface {
	ExportTransactions(ctx context.Context, q belvo.TransactionQuery) (*bytes.Buffer, error)
}

// New lists one page of transactions with its income, expenses and balance.
func New(log *slog.Logger, lister TransactionLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.transactions.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		report, err := lister.ListTransactions(r.Context(), queryFrom(r))
		if err != nil {
			gatewayerr.Render(w, r, log, err, http.StatusBadRequest)
			return
		}

		render.JSON(w, r, Response{
			Response:     resp.OK(),
			KPI:          report.KPI,
			Transactions: report.Transactions,
		})
	}
}

// NewExport serves the same page as an XLSX attachment.
func NewExport(log *slog.Logger, exporter TransactionExporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.transactions.NewExport"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		q := queryFrom(r)

		buf, err := exporter.ExportTransactions(r.Context(), q)
		if err != nil {
			gatewayerr.Render(w, r, log, err, http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", belvo.XLSXContentType)
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="transactions_%s_%s.xlsx"`, q.DateFrom, q.DateTo))
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))

		if _, err := buf.WriteTo(w); err != nil {
			log.Error("failed to write workbook", sl.Err(err))
		}
	}
}

func queryFrom(r *http.Request) belvo.TransactionQuery {
	v := r.URL.Query()

	return belvo.TransactionQuery{
		LinkID:    v.Get("link_id"),
		AccountID: v.Get("account_id"),
		DateFrom:  v.Get("date_from"),
		DateTo:    v.Get("date_to"),
	}
}
