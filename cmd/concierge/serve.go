package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"concierge-backend/internal/api"
	"concierge-backend/internal/config"
	"concierge-backend/internal/handlers"
	"concierge-backend/internal/logging"
	"concierge-backend/internal/services"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	var pretty bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			logging.Setup(os.Stderr, cfg.LogLevel, pretty)
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().BoolVar(&pretty, "pretty", false, "human readable console logs")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	log.Info().Msg("starting concierge backend")

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	diagnostics, err := newDiagnostics(cfg)
	if err != nil {
		return err
	}
	gw := newGateway(cfg, diagnostics)

	chatService := services.NewChatService(st, gw)
	authService := services.NewAuthService(cfg)

	router := api.NewRouter(api.RouterDependencies{
		ChatHandler:  handlers.NewChatHandlers(chatService, authService),
		AdminHandler: handlers.NewAdminHandlers(authService, chatService),
		Config:       cfg,
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- errors.Wrapf(err, "could not listen on %s", cfg.HTTPPort)
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-stopChan:
	}
	log.Info().Msg("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server graceful shutdown failed")
	}

	// replies already requested are still stored
	chatService.Wait()
	gw.Wait()
	log.Info().Msg("server shutdown complete")
	return nil
}
