package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/dropbox/godropbox/time2"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/garant/adapters/chain"
	"github.com/layer-3/garant/adapters/credential"
	"github.com/layer-3/garant/adapters/events"
	"github.com/layer-3/garant/adapters/store"
	"github.com/layer-3/garant/config"
	"github.com/layer-3/garant/ports"
	"github.com/layer-3/garant/service"
	httptransport "github.com/layer-3/garant/transport/http"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServe() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			setupLogger(cfg.Logger.Level, cfg.Logger.Pretty)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}
}

// app is the wired service graph
type app struct {
	router  *gin.Engine
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	clock := time2.DefaultClock

	// Store
	var (
		kv          ports.Store
		redisClient *redis.Client
	)
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		a.closers = append(a.closers, func() { _ = redisClient.Close() })

		if err := redisClient.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to reach redis: %w", err)
		}
		kv = store.NewRedisStore(redisClient)
		log.Info().Str("addr", opts.Addr).Msg("Using redis store")
	} else {
		kv = store.NewMemoryStore(ctx, clock)
		log.Warn().Msg("No redis configured, state is kept in memory")
	}

	// Events
	eventPub, err := newEventPublisher(ctx, a, cfg, redisClient)
	if err != nil {
		a.Close()
		return nil, err
	}

	// Credentials
	var issuer ports.CredentialIssuer
	switch cfg.Auth.Credential.Scheme {
	case config.SchemeJWT:
		if cfg.Auth.Credential.KeyFile == "" {
			log.Warn().Msg("No signing key configured, credentials will not survive a restart")
		}
		key, err := credential.LoadSigningKey(cfg.Auth.Credential.KeyFile)
		if err != nil {
			a.Close()
			return nil, err
		}
		issuer = credential.NewJWTIssuer(key, clock, credential.JWTConfig{
			Issuer:   cfg.Auth.Credential.Issuer,
			Audience: cfg.Auth.Credential.Audience,
			TTL:      cfg.Auth.Credential.TTL,
		})
	default:
		issuer = credential.NewPlainIssuer()
	}

	// Chains
	provider := chain.NewProvider(cfg.Chains, nil)
	a.closers = append(a.closers, provider.Close)
	log.Info().Ints64("chains", provider.Chains()).Msg("Chain providers configured")

	nonces := service.NewNonceRegistry(kv, clock, cfg.Auth.NonceTTL)
	verifier := service.NewVerifier(nonces, clock, service.VerifierConfig{
		Domain:        cfg.Auth.Domain,
		URI:           cfg.Auth.URI,
		AllowedChains: cfg.Auth.AllowedChains,
	})
	authService := service.NewAuthService(nonces, verifier, issuer, eventPub)
	accessCache := service.NewAccessCache(kv, provider, service.NewTokenChecker(), clock, cfg.Access.CacheTTL)

	if zerolog.GlobalLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	a.router = httptransport.SetupRouter(authService, accessCache, httptransport.RouterConfig{
		RequireAuth: cfg.Access.RequireAuth,
	})

	return a, nil
}

// newEventPublisher publishes to a redis stream when redis is available,
// otherwise to an in-process channel drained into the log
func newEventPublisher(ctx context.Context, a *app, cfg *config.Config, redisClient *redis.Client) (ports.EventPublisher, error) {
	if !cfg.Events.Enabled {
		return nil, nil
	}

	logger := watermill.NewStdLogger(false, false)

	var publisher message.Publisher
	if redisClient != nil {
		redisPublisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis publisher: %w", err)
		}
		publisher = redisPublisher
	} else {
		pubSub := gochannel.NewGoChannel(gochannel.Config{}, logger)
		err := events.ConsumeVerified(ctx, pubSub, func(event events.VerifiedEvent) {
			log.Info().
				Str("address", event.Address).
				Int64("chain_id", event.ChainID).
				Time("verified_at", event.VerifiedAt).
				Msg("User verified")
		})
		if err != nil {
			_ = pubSub.Close()
			return nil, err
		}
		publisher = pubSub
	}
	a.closers = append(a.closers, func() { _ = publisher.Close() })

	return events.NewWatermillPublisher(publisher), nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      a.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
