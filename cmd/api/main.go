package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/engrodrigo-prog/djt-quest/internal/audit"
	"github.com/engrodrigo-prog/djt-quest/internal/auth"
	"github.com/engrodrigo-prog/djt-quest/internal/config"
	"github.com/engrodrigo-prog/djt-quest/internal/db"
	"github.com/engrodrigo-prog/djt-quest/internal/finance"
	internalhttp "github.com/engrodrigo-prog/djt-quest/internal/http"
	"github.com/engrodrigo-prog/djt-quest/internal/idp"
	"github.com/engrodrigo-prog/djt-quest/internal/org"
	"github.com/engrodrigo-prog/djt-quest/internal/registration"
	"github.com/engrodrigo-prog/djt-quest/internal/repo"
	"github.com/engrodrigo-prog/djt-quest/internal/scope"
	"github.com/engrodrigo-prog/djt-quest/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api encerrada com erro")
	}
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis parse: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	directory := repo.NewDirectoryQueries(pool)
	profiles := repo.NewProfileQueries(pool)
	roles := repo.NewRoleQueries(pool)
	registrations := repo.NewRegistrationQueries(pool)
	financeRepo := repo.NewFinanceQueries(pool)
	auditRepo := repo.NewAuditQueries(pool)

	resolver := org.NewResolver(directory)
	scopes := scope.NewComputer(directory)
	auditor := audit.NewDispatcher(auditRepo)
	locker := registration.NewRedisLocker(redisClient)

	localIDP := idp.NewLocal(pool)
	var provider registration.IdentityProvider = localIDP
	if cfg.IDPBaseURL != "" {
		client, err := idp.NewClient(idp.Config{BaseURL: cfg.IDPBaseURL, ServiceKey: cfg.IDPServiceKey})
		if err != nil {
			return fmt.Errorf("idp: %w", err)
		}
		provider = client
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL)
	authService := service.NewAuthService(localIDP, profiles, roles, scopes, jwtManager)
	registrationService := registration.NewService(registrations, profiles, roles, provider, resolver, scopes, auditor, locker)
	financeService := finance.NewService(financeRepo, profiles, roles, scopes, auditor)

	handler := internalhttp.NewRouter(cfg, pool, authService, registrationService, financeService)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("API ouvindo em :%d", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("encerrando...")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
