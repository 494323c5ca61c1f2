// Package belvo is a thin pass-through over the Belvo open-banking API. The
// gateway reshapes upstream payloads and computes transaction KPIs.
package belvo

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/lib/logger/sl"
)

// API performs one upstream request; *Client implements it.
type API interface {
	Do(ctx context.Context, method, path string, query url.Values, body any, v any) error
}

type Gateway struct {
	log *slog.Logger
	api API
}

func NewGateway(log *slog.Logger, api API) *Gateway {
	return &Gateway{
		log: log,
		api: api,
	}
}

func (g *Gateway) ListInstitutions(ctx context.Context) (InstitutionsPage, error) {
	const op = "belvo.ListInstitutions"

	var page InstitutionsPage
	if err := g.api.Do(ctx, http.MethodGet, "institutions/", nil, nil, &page); err != nil {
		g.log.Error("failed to list institutions", slog.String("op", op), sl.Err(err))
		return InstitutionsPage{}, upstream(op, err)
	}

	if page.Results == nil {
		page.Results = []Institution{}
	}

	return page, nil
}

func (g *Gateway) ListAccounts(ctx context.Context, linkID string) (AccountsPage, error) {
	const op = "belvo.ListAccounts"

	if linkID == "" {
		return AccountsPage{}, ErrMissingParams
	}

	page, err := g.accounts(ctx, linkID)
	if err != nil {
		g.log.Error("failed to list accounts", slog.String("op", op), slog.String("link", linkID), sl.Err(err))
		return AccountsPage{}, upstream(op, err)
	}

	return AccountsPage{Count: page.Count, Results: page.Results}, nil
}

// ListTransactions returns one upstream page together with its KPI.
func (g *Gateway) ListTransactions(ctx context.Context, q TransactionQuery) (TransactionsReport, error) {
	const op = "belvo.ListTransactions"

	if err := q.Validate(); err != nil {
		return TransactionsReport{}, err
	}

	query := url.Values{}
	query.Set("link", q.LinkID)
	query.Set("account", q.AccountID)
	query.Set("date_from", q.DateFrom)
	query.Set("date_to", q.DateTo)

	var page Page[Transaction]
	if err := g.api.Do(ctx, http.MethodGet, "transactions/", query, nil, &page); err != nil {
		g.log.Error("failed to list transactions", slog.String("op", op), sl.Err(err))
		return TransactionsReport{}, upstream(op, err)
	}

	txs := make([]Transaction, 0, len(page.Results))
	for _, t := range page.Results {
		t.Merchant = objectOrEmpty(t.Merchant)
		txs = append(txs, t)
	}

	return TransactionsReport{
		KPI:          ComputeKPI(txs),
		Transactions: txs,
	}, nil
}

func (g *Gateway) TransactionDetails(ctx context.Context, id string) (TransactionDetail, error) {
	const op = "belvo.TransactionDetails"

	if id == "" {
		return TransactionDetail{}, ErrMissingParams
	}

	var d TransactionDetail
	if err := g.api.Do(ctx, http.MethodGet, "transactions/"+url.PathEscape(id)+"/", nil, nil, &d); err != nil {
		g.log.Error("failed to get transaction", slog.String("op", op), slog.String("id", id), sl.Err(err))
		return TransactionDetail{}, upstream(op, err)
	}

	d.Merchant = objectOrEmpty(d.Merchant)
	d.CreditCardData = objectOrEmpty(d.CreditCardData)
	d.Counterparty = objectOrEmpty(d.Counterparty)
	d.LoanData = objectOrEmpty(d.LoanData)

	return d, nil
}

// CreateTestLinks creates a link per credential and registers its accounts.
// Entries are processed in order; a failing entry is logged and skipped.
func (g *Gateway) CreateTestLinks(ctx context.Context, creds []Credential) CreatedLinks {
	const op = "belvo.CreateTestLinks"

	log := g.log.With(slog.String("op", op))

	created := make([]CreatedLink, 0, len(creds))

	for _, c := range creds {
		var link Link

		err := g.api.Do(ctx, http.MethodPost, "links/", nil, map[string]string{
			"institution": c.Institution,
			"username":    c.Username,
			"password":    c.Password,
			"access_mode": "single",
		}, &link)
		if err != nil {
			log.Warn("failed to create link", slog.String("institution", c.Institution), sl.Err(err))
			continue
		}

		if err := g.registerAccounts(ctx, link.ID); err != nil {
			log.Warn("failed to register accounts",
				slog.String("institution", c.Institution),
				slog.String("link", link.ID),
				sl.Err(err),
			)
			continue
		}

		created = append(created, CreatedLink{Link: link, AccountsRegistered: true})
	}

	log.Info("test links processed", slog.Int("requested", len(creds)), slog.Int("created", len(created)))

	return CreatedLinks{
		Message: fmt.Sprintf("%d links created and registered successfully", len(created)),
		Count:   len(created),
		Links:   created,
	}
}

// AllAccounts aggregates the accounts of every valid link. Only the links listing
// is fatal; per-link failures are logged and skipped.
func (g *Gateway) AllAccounts(ctx context.Context) (AllAccounts, error) {
	const op = "belvo.AllAccounts"

	log := g.log.With(slog.String("op", op))

	var links Page[Link]
	if err := g.api.Do(ctx, http.MethodGet, "links/", nil, nil, &links); err != nil {
		log.Error("failed to list links", sl.Err(err))
		return AllAccounts{}, upstream(op, err)
	}

	res := AllAccounts{Institutions: []InstitutionAccounts{}}

	for _, l := range links.Results {
		if l.Status != LinkStatusValid {
			continue
		}

		// registration refreshes the upstream account data; its outcome does not matter
		if err := g.registerAccounts(ctx, l.ID); err != nil {
			log.Debug("account registration failed", slog.String("link", l.ID), sl.Err(err))
		}

		page, err := g.accounts(ctx, l.ID)
		if err != nil {
			log.Warn("failed to get accounts", slog.String("link", l.ID), sl.Err(err))
			continue
		}

		if len(page.Results) == 0 {
			continue
		}

		summaries := make([]AccountSummary, 0, len(page.Results))
		for _, a := range page.Results {
			summaries = append(summaries, AccountSummary{
				ID:       a.ID,
				Name:     a.Name,
				Category: a.Category,
				Balance:  a.Balance,
				Currency: a.Currency,
			})
		}

		res.TotalAccounts += len(summaries)
		res.Institutions = append(res.Institutions, InstitutionAccounts{
			InstitutionName: l.Institution,
			LinkID:          l.ID,
			Accounts:        summaries,
		})
	}

	return res, nil
}

func (g *Gateway) accounts(ctx context.Context, linkID string) (Page[Account], error) {
	var page Page[Account]

	err := g.api.Do(ctx, http.MethodGet, "accounts/", url.Values{"link": {linkID}}, nil, &page)
	if err != nil {
		return Page[Account]{}, err
	}

	if page.Results == nil {
		page.Results = []Account{}
	}

	return page, nil
}

func (g *Gateway) registerAccounts(ctx context.Context, linkID string) error {
	return g.api.Do(ctx, http.MethodPost, "accounts/", nil, map[string]any{
		"link":      linkID,
		"save_data": true,
	}, nil)
}
