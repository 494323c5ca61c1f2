package router

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"

	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/auth"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/belvo"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/http_server/handlers/belvo/accounts"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/http_server/handlers/belvo/allaccounts"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/http_server/handlers/belvo/details"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/http_server/handlers/belvo/institutions"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/http_server/handlers/belvo/testlinks"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/http_server/handlers/belvo/transactions"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/http_server/handlers/deleteuser"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/http_server/handlers/login"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/http_server/handlers/logout"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/http_server/handlers/refresh"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/http_server/handlers/register"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/http_server/handlers/requestcode"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/http_server/handlers/resetpassword"
	resp "github.com/Magno-12/prueba-tecnica-quo-digital/internal/lib/api/response"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/lib/jwt"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/middleware/authn"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/middleware/metrics"
	rateLimit "github.com/Magno-12/prueba-tecnica-quo-digital/internal/middleware/ratelimit"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/models"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type AuthService interface {
	Login(ctx context.Context, email, password string) (auth.TokenPair, models.User, error)
	Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	ParseAccessToken(token string) (*jwt.Claims, error)
}

type AccountService interface {
	Register(ctx context.Context, email, password, firstName, lastName string) (models.User, error)
	DeleteAccount(ctx context.Context, callerID, targetID int64) error
	RequestResetCode(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, code, newPassword, confirmPassword string) error
}

type BankingGateway interface {
	ListInstitutions(ctx context.Context) (belvo.InstitutionsPage, error)
	ListAccounts(ctx context.Context, linkID string) (belvo.AccountsPage, error)
	ListTransactions(ctx context.Context, q belvo.TransactionQuery) (belvo.TransactionsReport, error)
	ExportTransactions(ctx context.Context, q belvo.TransactionQuery) (*bytes.Buffer, error)
	TransactionDetails(ctx context.Context, id string) (belvo.TransactionDetail, error)
	CreateTestLinks(ctx context.Context, creds []belvo.Credential) belvo.CreatedLinks
	AllAccounts(ctx context.Context) (belvo.AllAccounts, error)
}

type Deps struct {
	Log             *slog.Logger
	Validate        *validator.Validate
	Auth            AuthService
	Accounts        AccountService
	Gateway         BankingGateway
	TestCredentials []belvo.Credential
	Metrics         *metrics.Metrics
}

func New(d Deps) *chi.Mux {
	limiter := rateLimit.New(d.Metrics.RateLimitHit)
	requireAuth := authn.New(d.Log, d.Auth)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(d.Metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, resp.OK())
	})
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(limiter.Login()).Post("/login", login.New(d.Log, d.Validate, d.Auth))
			r.With(limiter.Refresh()).Post("/refresh", refresh.New(d.Log, d.Validate, d.Auth))
			r.With(limiter.Logout(), requireAuth).Post("/logout", logout.New(d.Log, d.Validate, d.Auth))
		})

		r.Route("/users", func(r chi.Router) {
			r.With(limiter.Register()).Post("/", register.New(d.Log, d.Validate, d.Accounts))
			r.With(limiter.RequestCode()).Post("/request_code", requestcode.New(d.Log, d.Validate, d.Accounts))
			r.With(limiter.ResetPassword()).Post("/reset_password", resetpassword.New(d.Log, d.Validate, d.Accounts))
			r.With(requireAuth).Delete("/{id}", deleteuser.New(d.Log, d.Accounts))
		})

		r.Route("/belvo", func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/institutions", institutions.New(d.Log, d.Gateway))
			r.Get("/accounts", accounts.New(d.Log, d.Gateway))
			r.Get("/transactions", transactions.New(d.Log, d.Gateway))
			r.Get("/transactions/export", transactions.NewExport(d.Log, d.Gateway))
			r.Get("/transactions/{id}/details", details.New(d.Log, d.Gateway))
			r.Post("/create_test_links", testlinks.New(d.Log, d.Validate, d.Gateway, d.TestCredentials))
			r.Get("/all_accounts", allaccounts.New(d.Log, d.Gateway))
		})
	})

	return r
}
