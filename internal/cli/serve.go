package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"manualsmap/internal/api"
	"manualsmap/internal/api/handlers"
	"manualsmap/internal/backend"
	"manualsmap/internal/config"
	"manualsmap/internal/repository/memory"
	"manualsmap/internal/services"
	"manualsmap/internal/session"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(v *viper.Viper, load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the map controller HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().String("port", "", "listen address, e.g. :8080")
	_ = v.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	return cmd
}

// newEngine wires the controller: backend client, schema validator, session
// store, services and handlers. The returned repository must be stopped.
func newEngine(ctx context.Context, cfg *config.Config) (*gin.Engine, *memory.SessionRepository, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	validator, err := backend.LoadSchemaValidator(ctx, client)
	if err != nil {
		return nil, nil, err
	}

	// Initialize repositories and services
	repo := memory.NewSessionRepository(cfg.Server.SessionTTL, cfg.Server.SessionSweepInterval)
	factory := session.NewFactory(client, validator, cfg.Map)
	tokens := backend.NewTokenSource(client, cfg.Backend)
	signer := services.NewUploadSigner(client)

	// Initialize handlers
	router := api.NewRouter(
		repo,
		handlers.NewSessionHandler(repo, factory),
		handlers.NewMapHandler(client),
		handlers.NewDraftHandler(),
		handlers.NewBackendHandler(tokens, signer),
	)

	engine := gin.Default()
	router.Setup(engine)
	return engine, repo, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, repo, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Stop()

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting manualsmap controller on %s (backend %s)", cfg.Server.Port, cfg.Backend.BaseURL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", cfg.Server.Port, err)
	case <-ctx.Done():
	}

	log.Printf("Shutting down the server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
