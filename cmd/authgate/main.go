package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/authgate/internal/config"
	"github.com/dropDatabas3/authgate/internal/delivery"
	"github.com/dropDatabas3/authgate/internal/httpx"
	"github.com/dropDatabas3/authgate/internal/metrics"
	"github.com/dropDatabas3/authgate/internal/observability/logger"
	"github.com/dropDatabas3/authgate/internal/provider"
	"github.com/dropDatabas3/authgate/internal/session"
	"github.com/dropDatabas3/authgate/internal/store"
)

func main() {
	var (
		flagConfig  = flag.String("config", "authgate.yaml", "ruta del YAML de configuración")
		flagEnvFile = flag.String("env-file", ".env", "archivo .env opcional")
	)
	flag.Parse()

	// .env es best-effort: en producción las vars vienen del entorno
	_ = godotenv.Load(*flagEnvFile)

	cfg, err := config.Load(*flagConfig)
	if err != nil {
		logger.Init(logger.Config{Env: "dev", Level: "info", ServiceName: "authgate"})
		logger.L().Fatal("configuración inválida", logger.Err(err))
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: "info", ServiceName: "authgate"})
	defer logger.Sync()

	if err := metrics.Register(nil); err != nil {
		logger.L().Fatal("registro de métricas", logger.Err(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var scfg store.Config
	scfg.Driver = cfg.Store.Driver
	scfg.Redis.Addr = cfg.Store.Redis.Addr
	scfg.Redis.Password = cfg.Store.Redis.Password
	scfg.Redis.DB = cfg.Store.Redis.DB
	scfg.Redis.Prefix = cfg.Store.Redis.Prefix
	scfg.Postgres.DSN = cfg.Store.Postgres.DSN
	scfg.Memory.PurgeInterval = cfg.Store.Memory.PurgeInterval

	st, err := store.New(ctx, scfg)
	if err != nil {
		logger.L().Fatal("store", logger.Err(err))
	}
	defer st.Close()

	registry := provider.NewRegistry()
	for _, name := range cfg.ProviderNames() {
		p := cfg.Providers[name]
		d, err := provider.Build(name, provider.Settings{
			Key:         p.ConsumerKey,
			Secret:      p.ConsumerSecret,
			Scope:       p.Scope,
			CallbackURL: cfg.CallbackURL(name),
		})
		if err != nil {
			logger.L().Fatal("provider", logger.Provider(name), logger.Err(err))
		}
		if err := registry.Register(d); err != nil {
			logger.L().Fatal("provider", logger.Provider(name), logger.Err(err))
		}
		logger.L().Info("proveedor registrado",
			logger.Provider(name), logger.String("type", string(d.Type())))
	}

	deliverer := delivery.New(st, cfg.Endpoint, cfg.Delivery.TTL)
	sessions := session.NewCookieManager([]byte(cfg.Session.Secret), cfg.Session.CookieName, cfg.Session.Secure)
	handlers := httpx.NewHandlers(registry, sessions, deliverer, st)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpx.NewRouter(cfg, handlers),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.L().Info("authgate escuchando", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// barrido periódico de payloads expirados (no-op en backends que
	// expiran server-side)
	g.Go(func() error {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				if err := st.PurgeExpired(gctx); err != nil {
					logger.L().Warn("purge", logger.Err(err))
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil {
		logger.L().Error("terminado con error", logger.Err(err))
		os.Exit(1)
	}
	logger.L().Info("apagado limpio")
}
