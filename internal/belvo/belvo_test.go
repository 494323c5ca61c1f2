package belvo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// fakeBelvo records every request and answers from a route table keyed by "METHOD path".
type fakeBelvo struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   []map[string]any
	routes   map[string]func(w http.ResponseWriter, r *http.Request)
}

func newFakeBelvo(t *testing.T) (*fakeBelvo, *Gateway) {
	t.Helper()

	f := &fakeBelvo{routes: map[string]func(http.ResponseWriter, *http.Request){}}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if r.Body != nil {
			data, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(data, &body)
			r.Body = io.NopCloser(bytes.NewReader(data))
		}

		f.mu.Lock()
		f.requests = append(f.requests, r)
		f.bodies = append(f.bodies, body)
		h, ok := f.routes[r.Method+" "+r.URL.Path]
		f.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Not found."}`))
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL+"/api/", "secret-id", "secret-pass")
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return f, NewGateway(log, client)
}

func (f *fakeBelvo) handle(method, path string, status int, body string) {
	f.routes[method+" "+path] = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func (f *fakeBelvo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func TestComputeKPI(t *testing.T) {
	k := ComputeKPI([]Transaction{
		{Amount: 100, Type: TypeInflow},
		{Amount: 30, Type: TypeOutflow},
		{Amount: 20, Type: TypeOutflow},
	})

	assert.Equal(t, KPI{Income: 100, Expenses: 50, Balance: 50}, k)
	assert.Equal(t, KPI{}, ComputeKPI(nil))
}

func TestClient_SendsBasicAuth(t *testing.T) {
	f, g := newFakeBelvo(t)
	f.handle(http.MethodGet, "/api/institutions/", http.StatusOK, `{"count":0,"next":null,"previous":null,"results":[]}`)

	_, err := g.ListInstitutions(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, f.count())
	user, pass, ok := f.requests[0].BasicAuth()
	assert.True(t, ok)
	assert.Equal(t, "secret-id", user)
	assert.Equal(t, "secret-pass", pass)
	assert.Equal(t, "application/json", f.requests[0].Header.Get("Accept"))
}

func TestListInstitutions(t *testing.T) {
	f, g := newFakeBelvo(t)
	f.handle(http.MethodGet, "/api/institutions/", http.StatusOK, `{
		"count": 1, "next": "https://sandbox.belvo.com/api/institutions/?page=2", "previous": null,
		"results": [{"id": 7, "name": "erebor_mx_retail", "display_name": "Erebor", "type": "bank",
			"logo": "l.png", "country_codes": ["MX"], "website": "https://erebor.mx", "primary_color": "#fff"}]
	}`)

	page, err := g.ListInstitutions(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, page.Count)
	require.NotNil(t, page.Next)
	assert.Nil(t, page.Previous)
	require.Len(t, page.Results, 1)
	assert.Equal(t, int64(7), page.Results[0].ID)
	assert.Equal(t, []string{"MX"}, page.Results[0].CountryCodes)
	assert.Empty(t, page.Results[0].IconLogo)
}

func TestListInstitutions_UpstreamError(t *testing.T) {
	f, g := newFakeBelvo(t)
	f.handle(http.MethodGet, "/api/institutions/", http.StatusUnauthorized,
		`[{"code":"authentication_failed","message":"Invalid credentials provided"}]`)

	_, err := g.ListInstitutions(context.Background())

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid credentials provided", apiErr.Message)
}

func TestListAccounts(t *testing.T) {
	f, g := newFakeBelvo(t)
	f.routes["GET /api/accounts/"] = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "link-1", r.URL.Query().Get("link"))
		_, _ = w.Write([]byte(`{"count":1,"results":[{"id":"acc-1","link":"link-1","name":"Checking",
			"category":"CHECKING_ACCOUNT","type":null,"balance":{"current":10.5,"available":9},
			"currency":"MXN","institution":{"name":"erebor_mx_retail","type":"bank"},"number":"123"}]}`))
	}

	page, err := g.ListAccounts(context.Background(), "link-1")
	require.NoError(t, err)
	require.Len(t, page.Results, 1)

	acc := page.Results[0]
	assert.Equal(t, "acc-1", acc.ID)
	assert.Nil(t, acc.Type)
	assert.JSONEq(t, `{"current":10.5,"available":9}`, string(acc.Balance))

	out, err := json.Marshal(acc)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "number")
}

func TestListAccounts_MissingLink(t *testing.T) {
	f, g := newFakeBelvo(t)

	_, err := g.ListAccounts(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingParams)
	assert.Zero(t, f.count())
}

func TestListTransactions_MissingParams(t *testing.T) {
	full := TransactionQuery{LinkID: "l", AccountID: "a", DateFrom: "2024-01-01", DateTo: "2024-01-31"}

	cases := map[string]func(q *TransactionQuery){
		"link_id":    func(q *TransactionQuery) { q.LinkID = "" },
		"account_id": func(q *TransactionQuery) { q.AccountID = "" },
		"date_from":  func(q *TransactionQuery) { q.DateFrom = "" },
		"date_to":    func(q *TransactionQuery) { q.DateTo = "" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f, g := newFakeBelvo(t)

			q := full
			mutate(&q)

			_, err := g.ListTransactions(context.Background(), q)
			assert.ErrorIs(t, err, ErrMissingParams)
			assert.Zero(t, f.count(), "no outbound call")
		})
	}
}

func TestListTransactions(t *testing.T) {
	f, g := newFakeBelvo(t)
	f.routes["GET /api/transactions/"] = func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "link-1", q.Get("link"))
		assert.Equal(t, "acc-1", q.Get("account"))
		assert.Equal(t, "2024-01-01", q.Get("date_from"))
		assert.Equal(t, "2024-01-31", q.Get("date_to"))

		_, _ = w.Write([]byte(`{"count":3,"next":null,"results":[
			{"id":"t1","amount":100,"type":"INFLOW","category":"Income & Payments","description":"salary",
			 "merchant":{"merchant_name":"ACME"},"transacted_at":"2024-01-02","status":"PROCESSED"},
			{"id":"t2","amount":30,"type":"OUTFLOW","category":null,"description":"food",
			 "transacted_at":"2024-01-03","status":"PROCESSED"},
			{"id":"t3","amount":20,"type":"OUTFLOW","category":"Shopping","description":"shoes",
			 "merchant":null,"transacted_at":"2024-01-04","status":"PENDING"}
		]}`))
	}

	report, err := g.ListTransactions(context.Background(), TransactionQuery{
		LinkID: "link-1", AccountID: "acc-1", DateFrom: "2024-01-01", DateTo: "2024-01-31",
	})
	require.NoError(t, err)

	assert.Equal(t, KPI{Income: 100, Expenses: 50, Balance: 50}, report.KPI)
	require.Len(t, report.Transactions, 3)
	assert.JSONEq(t, `{"merchant_name":"ACME"}`, string(report.Transactions[0].Merchant))
	assert.JSONEq(t, `{}`, string(report.Transactions[1].Merchant), "missing merchant defaults to {}")
	assert.JSONEq(t, `{}`, string(report.Transactions[2].Merchant), "null merchant defaults to {}")
	assert.Nil(t, report.Transactions[1].Category)
}

func TestTransactionDetails(t *testing.T) {
	f, g := newFakeBelvo(t)
	f.handle(http.MethodGet, "/api/transactions/t1/", http.StatusOK, `{
		"id":"t1","internal_identification":"INT-1",
		"account":{"id":"acc-1","link":"link-1","institution":{"name":"erebor","type":"bank"},
			"name":"Checking","category":"CHECKING_ACCOUNT","balance":{"current":1},"currency":"MXN"},
		"amount":12.5,"local_currency_amount":12.5,"currency":"MXN","description":"coffee",
		"category":"Food","type":"OUTFLOW","status":"PROCESSED","transacted_at":"2024-01-02",
		"created_at":"2024-01-02T10:00:00Z","payment_type":"CARD"
	}`)

	d, err := g.TransactionDetails(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, "acc-1", d.Account.ID)
	require.NotNil(t, d.PaymentType)
	assert.Equal(t, "CARD", *d.PaymentType)
	assert.Nil(t, d.Subcategory)
	assert.JSONEq(t, `{}`, string(d.Merchant))
	assert.JSONEq(t, `{}`, string(d.LoanData))
	assert.JSONEq(t, `{}`, string(d.Counterparty))
}

func TestTransactionDetails_NotFound(t *testing.T) {
	_, g := newFakeBelvo(t)

	_, err := g.TransactionDetails(context.Background(), "missing")

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Contains(t, err.Error(), "Not found.")
}

func TestCreateTestLinks_SkipsFailures(t *testing.T) {
	f, g := newFakeBelvo(t)

	f.routes["POST /api/links/"] = func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)

		if body["institution"] == "broken_bank" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`[{"code":"invalid_credentials","message":"bad creds"}]`))
			return
		}

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"link-` + body["institution"] + `","institution":"` + body["institution"] +
			`","access_mode":"single","status":"valid","created_at":"2024-01-01T00:00:00Z"}`))
	}
	f.handle(http.MethodPost, "/api/accounts/", http.StatusCreated, `[]`)

	res := g.CreateTestLinks(context.Background(), []Credential{
		{Institution: "erebor_mx_retail", Username: "u", Password: "p"},
		{Institution: "broken_bank", Username: "u", Password: "p"},
		{Institution: "gringotts_co_retail", Username: "u", Password: "p"},
	})

	assert.Equal(t, 2, res.Count)
	require.Len(t, res.Links, 2)
	assert.Equal(t, "link-erebor_mx_retail", res.Links[0].Link.ID)
	assert.Equal(t, "link-gringotts_co_retail", res.Links[1].Link.ID)
	assert.True(t, res.Links[0].AccountsRegistered)
	assert.Contains(t, res.Message, "2 links")

	// link creation sends access_mode single; registration sends save_data
	assert.Equal(t, "single", f.bodies[0]["access_mode"])
	assert.Equal(t, "link-erebor_mx_retail", f.bodies[1]["link"])
	assert.Equal(t, true, f.bodies[1]["save_data"])
}

func TestCreateTestLinks_RegistrationFailureSkips(t *testing.T) {
	f, g := newFakeBelvo(t)
	f.handle(http.MethodPost, "/api/links/", http.StatusCreated, `{"id":"link-1","status":"valid"}`)
	f.handle(http.MethodPost, "/api/accounts/", http.StatusInternalServerError, `oops`)

	res := g.CreateTestLinks(context.Background(), []Credential{{Institution: "x", Username: "u", Password: "p"}})

	assert.Zero(t, res.Count)
	assert.Empty(t, res.Links)
}

func TestAllAccounts(t *testing.T) {
	f, g := newFakeBelvo(t)
	f.handle(http.MethodGet, "/api/links/", http.StatusOK, `{"count":4,"results":[
		{"id":"l-valid","institution":"erebor","status":"valid"},
		{"id":"l-invalid","institution":"gringotts","status":"invalid"},
		{"id":"l-broken","institution":"moria","status":"valid"},
		{"id":"l-empty","institution":"shire","status":"valid"}
	]}`)
	// registration fails for every link; it must not matter
	f.handle(http.MethodPost, "/api/accounts/", http.StatusBadRequest, `[{"message":"already registered"}]`)
	f.routes["GET /api/accounts/"] = func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("link") {
		case "l-valid":
			_, _ = w.Write([]byte(`{"count":2,"results":[
				{"id":"a1","name":"Checking","category":"CHECKING_ACCOUNT","balance":{"current":1},"currency":"MXN","link":"l-valid"},
				{"id":"a2","name":"Savings","category":"SAVINGS_ACCOUNT","balance":{"current":2},"currency":"MXN","link":"l-valid"}
			]}`))
		case "l-empty":
			_, _ = w.Write([]byte(`{"count":0,"results":[]}`))
		case "l-invalid":
			t.Errorf("invalid link must not be queried")
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}

	res, err := g.AllAccounts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.TotalAccounts)
	require.Len(t, res.Institutions, 1)
	assert.Equal(t, "erebor", res.Institutions[0].InstitutionName)
	assert.Equal(t, "l-valid", res.Institutions[0].LinkID)
	require.Len(t, res.Institutions[0].Accounts, 2)
	assert.Equal(t, "Savings", res.Institutions[0].Accounts[1].Name)
}

func TestAllAccounts_LinksFailure(t *testing.T) {
	f, g := newFakeBelvo(t)
	f.handle(http.MethodGet, "/api/links/", http.StatusUnauthorized, `{"detail":"Invalid credentials"}`)

	_, err := g.AllAccounts(context.Background())

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Contains(t, upErr.Error(), "Invalid credentials")
}

func TestExportTransactions(t *testing.T) {
	f, g := newFakeBelvo(t)
	f.handle(http.MethodGet, "/api/transactions/", http.StatusOK, `{"count":2,"results":[
		{"id":"t1","amount":100,"type":"INFLOW","description":"salary","transacted_at":"2024-01-02","status":"PROCESSED"},
		{"id":"t2","amount":40,"type":"OUTFLOW","description":"rent","transacted_at":"2024-01-03","status":"PROCESSED"}
	]}`)

	buf, err := g.ExportTransactions(context.Background(), TransactionQuery{
		LinkID: "l", AccountID: "a", DateFrom: "2024-01-01", DateTo: "2024-01-31",
	})
	require.NoError(t, err)

	wb, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer wb.Close()

	assert.Equal(t, []string{SheetTransactions, SheetKPI}, wb.GetSheetList())

	rows, err := wb.GetRows(SheetTransactions)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "t1", rows[1][0])
	assert.Equal(t, "salary", rows[1][5])

	balance, err := wb.GetCellValue(SheetKPI, "B3")
	require.NoError(t, err)
	assert.Equal(t, "60", balance)
}

func TestExportTransactions_MissingParams(t *testing.T) {
	f, g := newFakeBelvo(t)

	_, err := g.ExportTransactions(context.Background(), TransactionQuery{LinkID: "l"})
	assert.True(t, errors.Is(err, ErrMissingParams))
	assert.Zero(t, f.count())
}

func TestExtractError(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"belvo list", `[{"code":"c","message":"first"},{"code":"only_code"}]`, "first; only_code"},
		{"detail object", `{"detail":"Not found."}`, "Not found."},
		{"plain text", "  gateway timeout \n", "gateway timeout"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractError(strings.NewReader(tt.body)))
		})
	}
}
