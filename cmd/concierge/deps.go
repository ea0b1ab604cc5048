package main

import (
	"context"
	"time"

	"concierge-backend/internal/config"
	"concierge-backend/internal/crypto"
	"concierge-backend/internal/gateway"
	"concierge-backend/internal/integrations"
	"concierge-backend/internal/integrations/slack"
	"concierge-backend/internal/store"
	"concierge-backend/internal/store/memory"
	"concierge-backend/internal/store/postgres"
	"concierge-backend/internal/store/redis"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// newDiagnostics builds the notifier registry: the log sink always, Slack when
// both token and channel are configured.
func newDiagnostics(cfg *config.Config) (*integrations.Registry, error) {
	reg := integrations.NewRegistry()
	reg.Register("log", integrations.LogNotifier{})
	if cfg.SlackBotToken != "" && cfg.SlackAlertChannel != "" {
		alerter, err := slack.NewAlerter(cfg.SlackBotToken, cfg.SlackAlertChannel)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create slack alerter")
		}
		reg.Register("slack", alerter)
	}
	return reg, nil
}

func newGateway(cfg *config.Config, notifier integrations.Notifier) *gateway.Gateway {
	opts := []gateway.Option{
		gateway.WithModel(cfg.Model),
		gateway.WithNotifier(notifier),
	}
	if cfg.SystemPrompt != "" {
		opts = append(opts, gateway.WithSystemInstruction(cfg.SystemPrompt))
	}
	return gateway.New(gateway.NewGeminiClient(cfg.APIKey), opts...)
}

// openStore connects the configured conversation backend.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		dbpool, err := pgxpool.New(dbCtx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "unable to create database connection pool")
		}
		if err := dbpool.Ping(dbCtx); err != nil {
			dbpool.Close()
			return nil, errors.Wrap(err, "unable to ping database")
		}

		var sealer *crypto.Sealer
		if cfg.EncryptionKey != nil {
			if sealer, err = crypto.NewSealer(cfg.EncryptionKey); err != nil {
				dbpool.Close()
				return nil, errors.Wrap(err, "failed to create AES-GCM sealer")
			}
		}
		pg := postgres.NewPostgresStore(dbpool, sealer)
		if err := pg.Migrate(dbCtx); err != nil {
			pg.Close()
			return nil, err
		}
		log.Info().Bool("sealed", sealer != nil).Msg("postgres store ready")
		return pg, nil

	case config.BackendRedis:
		rs, err := redis.Connect(ctx, cfg.RedisURL, cfg.ConversationTTL)
		if err != nil {
			return nil, err
		}
		log.Info().Dur("ttl", cfg.ConversationTTL).Msg("redis store ready")
		return rs, nil

	default:
		log.Info().Msg("memory store ready, conversations are lost on restart")
		return memory.NewMemoryStore(), nil
	}
}
