package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/cookiekeeper/pkg/alert"
	"github.com/dmitrymomot/cookiekeeper/pkg/config"
	"github.com/dmitrymomot/cookiekeeper/pkg/credential"
	"github.com/dmitrymomot/cookiekeeper/pkg/httpserver"
	"github.com/dmitrymomot/cookiekeeper/pkg/keeper"
	"github.com/dmitrymomot/cookiekeeper/pkg/logger"
	"github.com/dmitrymomot/cookiekeeper/pkg/redis"
	"github.com/dmitrymomot/cookiekeeper/pkg/secrets"
)

type appConfig struct {
	Env string `env:"APP_ENV" envDefault:"production"`

	// StoreBackend selects credential persistence: "file" or "redis".
	StoreBackend string `env:"COOKIE_STORE_BACKEND" envDefault:"file"`
	StorePath    string `env:"COOKIE_STORE_PATH" envDefault:"goofish_cookies.json"`
	// StoreSecret, when set, encrypts the file store at rest.
	StoreSecret string `env:"COOKIE_STORE_SECRET"`

	TokenEndpoint string `env:"TOKEN_API_URL" envDefault:"https://h5api.m.goofish.com/h5/mtop.taobao.idlemtopsession.h5token.get/1.0/"`

	// RefreshStrategy selects how cookies are renewed: "browser" or "passive".
	RefreshStrategy string `env:"REFRESH_STRATEGY" envDefault:"browser"`
	RefreshURL      string `env:"REFRESH_TARGET_URL" envDefault:"https://www.goofish.com"`
	CookieDomain    string `env:"COOKIE_DOMAIN"`
	Headless        bool   `env:"BROWSER_HEADLESS" envDefault:"true"`

	AlertWebhookURL    string `env:"ALERT_WEBHOOK_URL"`
	AlertWebhookSecret string `env:"ALERT_WEBHOOK_SECRET"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return fmt.Errorf("load app config: %w", err)
	}

	logOpts := []logger.Option{logger.WithProduction("cookiekeeperd")}
	if cfg.Env == "development" {
		logOpts = []logger.Option{logger.WithDevelopment("cookiekeeperd")}
	}
	log := logger.New(logOpts...)
	logger.SetAsDefault(log)

	store, readiness, err := buildStore(ctx, cfg, log)
	if err != nil {
		return err
	}

	validator, err := keeper.NewAPIValidator(cfg.TokenEndpoint)
	if err != nil {
		return fmt.Errorf("token validator: %w", err)
	}

	strategy, err := buildStrategy(cfg)
	if err != nil {
		return err
	}
	log.Info("refresh strategy configured", logger.Strategy(cfg.RefreshStrategy))

	alerter, err := buildAlerter(cfg)
	if err != nil {
		return err
	}

	var keeperCfg keeper.Config
	if err := config.Load(&keeperCfg); err != nil {
		return fmt.Errorf("load keeper config: %w", err)
	}

	var envCreds credential.EnvConfig
	if err := config.Load(&envCreds); err != nil {
		return fmt.Errorf("load credential env config: %w", err)
	}

	opts := []keeper.Option{
		keeper.WithConfig(keeperCfg),
		keeper.WithValidator(validator),
		keeper.WithStrategy(strategy),
		keeper.WithLogger(log),
		keeper.WithFallback(func() (*credential.Record, error) {
			return credential.FromEnv(envCreds)
		}),
	}
	if alerter != nil {
		opts = append(opts, keeper.WithAlerter(alerter))
	}
	k := keeper.New(store, opts...)

	if !k.Load(ctx) {
		log.Warn("no credentials available yet; set COOKIES_STR or push via the API")
	}

	k.StartAutoRefresh()
	defer k.StopAutoRefresh()

	var httpCfg httpserver.Config
	if err := config.Load(&httpCfg); err != nil {
		return fmt.Errorf("load http config: %w", err)
	}

	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))
	return srv.Run(ctx, router(ctx, k, log, readiness))
}

// buildStore wires credential persistence and returns the store plus optional
// readiness probes for the HTTP health endpoint.
func buildStore(ctx context.Context, cfg appConfig, log *slog.Logger) (credential.Store, []func(context.Context) error, error) {
	switch cfg.StoreBackend {
	case "file":
		var fileOpts []credential.FileOption
		if cfg.StoreSecret != "" {
			fileOpts = append(fileOpts, credential.WithEncryptionKey(secrets.DeriveKey(cfg.StoreSecret)))
		}
		log.Info("using file credential store", slog.String("path", cfg.StorePath))
		return credential.NewFileStore(cfg.StorePath, fileOpts...), nil, nil

	case "redis":
		var redisCfg redis.Config
		if err := config.Load(&redisCfg); err != nil {
			return nil, nil, fmt.Errorf("load redis config: %w", err)
		}
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		log.Info("using redis credential store")
		return credential.NewRedisStore(client), []func(context.Context) error{redis.Healthcheck(client)}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func buildStrategy(cfg appConfig) (keeper.Strategy, error) {
	switch cfg.RefreshStrategy {
	case "browser":
		s, err := keeper.NewBrowserStrategy(cfg.RefreshURL, cfg.CookieDomain,
			keeper.WithHeadless(cfg.Headless))
		if err != nil {
			return nil, fmt.Errorf("browser strategy: %w", err)
		}
		return s, nil

	case "passive":
		s, err := keeper.NewPassiveStrategy(cfg.RefreshURL)
		if err != nil {
			return nil, fmt.Errorf("passive strategy: %w", err)
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown refresh strategy %q", cfg.RefreshStrategy)
	}
}

// buildAlerter assembles the operator notification chain from whatever
// channels are configured; nil means alerts are disabled.
func buildAlerter(cfg appConfig) (alert.Alerter, error) {
	var alerters []alert.Alerter

	if cfg.AlertWebhookURL != "" {
		var opts []alert.WebhookOption
		if cfg.AlertWebhookSecret != "" {
			opts = append(opts, alert.WithSecret(cfg.AlertWebhookSecret))
		}
		wh, err := alert.NewWebhook(cfg.AlertWebhookURL, opts...)
		if err != nil {
			return nil, fmt.Errorf("webhook alerter: %w", err)
		}
		alerters = append(alerters, wh)
	}

	var emailCfg alert.EmailConfig
	if err := config.Load(&emailCfg); err != nil {
		return nil, fmt.Errorf("load email alert config: %w", err)
	}
	if emailCfg.ServerToken != "" && emailCfg.OperatorEmail != "" {
		mailer, err := alert.NewEmail(emailCfg)
		if err != nil {
			return nil, fmt.Errorf("email alerter: %w", err)
		}
		alerters = append(alerters, mailer)
	}

	switch len(alerters) {
	case 0:
		return nil, nil
	case 1:
		return alerters[0], nil
	default:
		return alert.Multi(alerters...), nil
	}
}

func router(ctx context.Context, k *keeper.Keeper, log *slog.Logger, readiness []func(context.Context) error) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))

	r.Get("/healthz", httpserver.HealthCheckHandler(ctx, log))
	r.Get("/readyz", httpserver.HealthCheckHandler(ctx, log, readiness...))

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, k.Status(r.Context()))
	})

	r.Post("/refresh", func(w http.ResponseWriter, r *http.Request) {
		if !k.Refresh(r.Context()) {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "refresh failed"})
			return
		}
		writeJSON(w, http.StatusOK, k.Status(r.Context()))
	})

	r.Put("/credentials", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Cookies  map[string]string `json:"cookies"`
			Raw      string            `json:"cookies_str"`
			DeviceID string            `json:"device_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed body"})
			return
		}
		if err := k.SetCredentials(r.Context(), body.Cookies, body.Raw, body.DeviceID); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, k.Status(r.Context()))
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
