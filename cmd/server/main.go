package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"meeting-scheduler-api/internal/auth"
	"meeting-scheduler-api/internal/config"
	"meeting-scheduler-api/internal/events"
	"meeting-scheduler-api/internal/graph"
	"meeting-scheduler-api/internal/handler"
	"meeting-scheduler-api/internal/middleware"
	"meeting-scheduler-api/internal/server"
	"meeting-scheduler-api/internal/store"
	"meeting-scheduler-api/internal/store/memstore"
	"meeting-scheduler-api/internal/store/mongodb"
	"meeting-scheduler-api/internal/store/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	setupLogging(cfg)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func setupLogging(cfg *config.Config) {
	zerolog.SetGlobalLevel(cfg.Level())
	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("service", "meeting-scheduler-server").Logger()
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// database
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Close(cctx); err != nil {
			log.Warn().Err(err).Msg("close store")
		}
	}()

	if cfg.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is not set; login will fail until it is configured")
	}
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)

	limiter, closeLimiter, err := newLimiter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	var pub events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return err
		}
		defer p.Close()
		pub = p
		log.Info().Str("exchange", cfg.AMQPExchange).Msg("publishing meeting events")
	}

	scope, err := handler.ParseScope(cfg.MeetingsScope)
	if err != nil {
		return err
	}
	h := handler.New(st, tokens,
		handler.WithEvents(pub),
		handler.WithLimiter(limiter),
		handler.WithScope(scope),
	)

	schema, err := graph.NewSchema(h)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr: cfg.Addr(),
		Handler: server.NewRouter(server.Options{
			Logger:         log.Logger,
			Tokens:         tokens,
			GraphQL:        graph.NewHandler(schema, graph.WithGraphiQL(cfg.IsDevelopment())),
			Store:          st,
			ClientOrigin:   cfg.ClientOrigin,
			RequestTimeout: cfg.RequestTimeout,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("graphql server ready at /graphql")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// graceful shutdown
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(sctx)
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	backend, err := cfg.Backend()
	if err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var st store.Store
	switch backend {
	case config.BackendMongo:
		st, err = mongodb.Open(cctx, cfg.StoreURL())
	case config.BackendPostgres:
		st, err = postgres.Open(cctx, cfg.StoreURL())
	case config.BackendMemory:
		log.Warn().Msg("using in-memory store; data is lost on restart")
		st = memstore.New()
	default:
		err = fmt.Errorf("no store for backend %q", backend)
	}
	if err != nil {
		return nil, err
	}
	log.Info().Str("backend", string(backend)).Msg("connected to database")
	return st, nil
}

func newLimiter(ctx context.Context, cfg *config.Config) (middleware.Limiter, func(), error) {
	if cfg.RedisURL == "" {
		l := middleware.NewMemoryLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst)
		return l, func() { l.Close() }, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info().Msg("rate limiting through redis")
	return middleware.NewRedisLimiter(rdb, cfg.AuthRateLimit, cfg.AuthRateBurst), func() { rdb.Close() }, nil
}
