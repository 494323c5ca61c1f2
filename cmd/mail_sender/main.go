package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/config"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/lib/logger/sl"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/mailsender"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/rabbitmq"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoadMailSender(config.FetchConfigPath())
	log := setupLogger(cfg.Env)

	log.Info("Starting mail_sender", slog.String("env", cfg.Env))

	startConsumer(ctx, cfg, log)
}

func startConsumer(ctx context.Context, cfg *config.MailSenderConfig, log *slog.Logger) {
	r, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Error("failed to init rabbitmq", sl.Err(err))
		return
	}
	defer r.Close()

	m := &mailsender.Mailer{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
	}

	done := make(chan struct{})

	go func() {
		defer close(done)

		err := r.StartReading(ctx, func(body []byte) error {
			return deliver(log, m, body)
		})
		if err != nil {
			log.Error("consumer stopped", sl.Err(err))
		}
	}()

	log.Info("consumer successfully started", slog.String("queue", cfg.RabbitMQ.QueueName))

	select {
	case <-ctx.Done():
		log.Info("shutting down consumer...")
		<-done
	case <-done:
		log.Info("consumer finished the work")
	}

	log.Info("service gracefully stopped")
}

// deliver sends one queued message. Undecodable messages are dropped; send
// failures are returned so the delivery is requeued.
func deliver(log *slog.Logger, m *mailsender.Mailer, body []byte) error {
	msg, err := rabbitmq.Decode(body)
	if err != nil {
		log.Error("failed to unmarshal message", sl.Err(err))
		return nil
	}

	log = log.With(slog.String("purpose", msg.Purpose))

	if msg.Email == "" {
		log.Warn("message without recipient dropped")
		return nil
	}

	if err := m.Send(msg.Email, msg.Subject, msg.Body); err != nil {
		log.Error("failed to send message", sl.Err(err))
		return fmt.Errorf("send to queue recipient: %w", err)
	}

	log.Info("message sent successfully")

	return nil
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
