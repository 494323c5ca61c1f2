package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/account"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/auth"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/belvo"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/config"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/http_server/router"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/lib/logger/sl"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/lib/verification"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/mailsender"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/middleware/metrics"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/rabbitmq"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/storage/postgres"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/storage/redis"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/storage/sqlite"

	"github.com/go-playground/validator/v10"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// store is what both storage backends provide.
type store interface {
	account.UserSaver
	account.UserProvider
	account.ResetCodeStore
	auth.UserProvider
	auth.TokenDenylist
}

func main() {
	cfg := config.MustLoad(config.FetchConfigPath())

	log := setupLogger(cfg.Env)

	log.Info("starting quo api", slog.String("env", cfg.Env), slog.String("storage", cfg.Storage.Driver))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, closeStore, err := openStorage(ctx, cfg)
	if err != nil {
		log.Error("failed to open storage", sl.Err(err))
		os.Exit(1)
	}
	defer closeStore()

	var denylist auth.TokenDenylist = st
	if cfg.Redis.Address != "" {
		rdb, err := redis.New(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Error("failed to connect redis", sl.Err(err))
			os.Exit(1)
		}
		defer rdb.Close()

		denylist = rdb
		log.Info("refresh token denylist in redis")
	}

	publisher, closePublisher, err := openPublisher(cfg)
	if err != nil {
		log.Error("failed to set up email transport", sl.Err(err))
		os.Exit(1)
	}
	defer closePublisher()

	m := metrics.New()

	client, err := belvo.NewClient(
		cfg.Belvo.BaseURL,
		cfg.Belvo.SecretID,
		cfg.Belvo.SecretPassword,
		belvo.WithTimeout(cfg.Belvo.Timeout),
		belvo.WithObserver(m.ObserveUpstream),
	)
	if err != nil {
		log.Error("failed to create belvo client", sl.Err(err))
		os.Exit(1)
	}

	authService := auth.New(log, st, denylist, cfg.Tokens.Secret, cfg.Tokens.AccessTokenTTL, cfg.Tokens.RefreshTokenTTL)
	accountService := account.New(log, st, st, st, publisher, cfg.ResetCode.TTL)

	r := router.New(router.Deps{
		Log:             log,
		Validate:        validator.New(),
		Auth:            authService,
		Accounts:        accountService,
		Gateway:         belvo.NewGateway(log, client),
		TestCredentials: testCredentials(cfg.Belvo.TestCredentials),
		Metrics:         m,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      r,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.Belvo.Timeout + cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", sl.Err(err))
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", sl.Err(err))
	} else {
		log.Info("Server stopped gracefully")
	}

	log.Info("Main service stopped")
}

func openStorage(ctx context.Context, cfg *config.Config) (store, func(), error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverSQLite:
		s, err := sqlite.New(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}

		return s, func() { _ = s.Close() }, nil
	default:
		s, err := postgres.New(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}

		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, nil, err
		}

		return s, s.Close, nil
	}
}

func openPublisher(cfg *config.Config) (verification.Publisher, func(), error) {
	if cfg.Email.Transport == config.EmailTransportSMTP {
		return newMailer(cfg.Email), func() {}, nil
	}

	broker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		return nil, nil, err
	}

	return broker, broker.Close, nil
}

func newMailer(e config.Email) *mailsender.Mailer {
	return &mailsender.Mailer{
		Host:     e.Host,
		Port:     e.Port,
		Username: e.Username,
		Password: e.Password,
		From:     e.From,
	}
}

func testCredentials(in []config.BelvoCredential) []belvo.Credential {
	out := make([]belvo.Credential, 0, len(in))
	for _, c := range in {
		out = append(out, belvo.Credential{
			Institution: c.Institution,
			Username:    c.Username,
			Password:    c.Password,
		})
	}

	return out
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

var (
	_ verification.Publisher = (*mailsender.Mailer)(nil)
	_ verification.Publisher = (*rabbitmq.RabbitMQClient)(nil)
)
