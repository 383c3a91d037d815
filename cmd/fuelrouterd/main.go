package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	fuelrouter "github.com/waypoint-labs/fuel-router"
	"github.com/waypoint-labs/fuel-router/geo"
	"github.com/waypoint-labs/fuel-router/internal/cache"
	"github.com/waypoint-labs/fuel-router/internal/logging"
	"github.com/waypoint-labs/fuel-router/internal/lookuplog"
	"github.com/waypoint-labs/fuel-router/internal/version"
	"github.com/waypoint-labs/fuel-router/providers"
	"github.com/waypoint-labs/fuel-router/routing"
	"github.com/waypoint-labs/fuel-router/vehicles"
)

func main() {
	// Load and validate config if FUELROUTER_CONFIG is set.
	var cfg fuelrouter.Config
	if cfgPath := os.Getenv("FUELROUTER_CONFIG"); cfgPath != "" {
		loaded, err := fuelrouter.LoadConfig(cfgPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
		log.Printf("Config loaded: providers=%d", len(cfg.Providers))
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	registry := buildRegistry(cfg)
	if len(registry.List()) == 0 {
		log.Fatal("No knowledge providers configured. Set GEMINI_API_KEY, OPENAI_API_KEY or AWS_REGION, or list providers in FUELROUTER_CONFIG")
	}
	if len(cfg.Providers) > 0 {
		if err := fuelrouter.ValidateConfig(cfg); err != nil {
			log.Fatalf("Invalid config: %v", err)
		}
	}
	knowledge := providers.ChainFromRegistry(registry)

	audit := buildAudit(cfg)
	defer func() {
		if closer, ok := audit.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}()

	cacheDir := cfg.Cache.Dir
	if cacheDir == "" {
		cacheDir = "cache"
	}
	store := cache.NewDisk(cacheDir, cacheTTLs(cfg))

	estimator := &fuelrouter.Estimator{
		Geo: geo.NewResolver(store, knowledge, geo.Options{
			GeocoderURL: cfg.Geocoder.URL,
			UserAgent:   cfg.Geocoder.UserAgent,
			Timeout:     secondsOr(cfg.Geocoder.TimeoutSeconds, 10*time.Second),
			Audit:       audit,
		}),
		Vehicles: vehicles.NewResolver(store, knowledge, audit),
		Routes: routing.NewResolver(store, routing.Options{
			Endpoints: cfg.Routing.Endpoints,
			APIKey:    routingAPIKey(cfg),
			Timeout:   secondsOr(cfg.Routing.TimeoutSeconds, 30*time.Second),
			Audit:     audit,
		}),
		DefaultFuelPrice: cfg.Defaults.FuelPrice,
		DefaultCurrency:  cfg.Defaults.Currency,
	}

	addr := cfg.Server.Addr
	if addr == "" {
		addr = ":8080"
	}
	if p := os.Getenv("PORT"); p != "" {
		addr = ":" + p
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      newRouter(estimator, store),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Println("Shutting down gracefully…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("fuelrouterd %s listening on %s (%d provider(s))", version.Short(), addr, len(registry.List()))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stop()
		log.Fatalf("Server error: %v", err) //nolint:gocritic
	}
	log.Println("Server stopped.")
}

// buildRegistry registers the configured knowledge backends, falling back
// to environment-variable auto-registration when the config names none.
func buildRegistry(cfg fuelrouter.Config) *providers.Registry {
	registry := providers.NewRegistry()

	for _, pc := range cfg.Providers {
		p, err := buildProvider(pc)
		if err != nil {
			log.Fatalf("%s provider: %v", pc.Kind, err)
		}
		registry.Register(p)
		log.Printf("Provider registered: %s", p.Name())
	}
	if len(cfg.Providers) > 0 {
		return registry
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		p, err := providers.NewGemini(key, "", os.Getenv("GEMINI_MODEL"))
		if err != nil {
			log.Fatalf("gemini provider: %v", err)
		}
		registry.Register(p)
		log.Println("Provider registered: gemini")
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		p, err := providers.NewOpenAI(key, "", os.Getenv("OPENAI_MODEL"))
		if err != nil {
			log.Fatalf("openai provider: %v", err)
		}
		registry.Register(p)
		log.Println("Provider registered: openai")
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		p, err := providers.NewBedrock(region, os.Getenv("BEDROCK_MODEL_ID"))
		if err != nil {
			log.Fatalf("bedrock provider: %v", err)
		}
		registry.Register(p)
		log.Println("Provider registered: bedrock")
	}
	return registry
}

func buildProvider(pc fuelrouter.ProviderConfig) (providers.Provider, error) {
	switch pc.Kind {
	case fuelrouter.ProviderOpenAI:
		return providers.NewOpenAI(pc.APIKey, pc.BaseURL, pc.Model)
	case fuelrouter.ProviderBedrock:
		return providers.NewBedrock(pc.Region, pc.Model)
	default:
		return providers.NewGemini(pc.APIKey, pc.BaseURL, pc.Model)
	}
}

func buildAudit(cfg fuelrouter.Config) lookuplog.Writer {
	switch cfg.LookupLog.Driver {
	case "sqlite":
		w, err := lookuplog.NewSQLiteWriter(cfg.LookupLog.DSN)
		if err != nil {
			log.Fatalf("lookup log: %v", err)
		}
		return w
	case "postgres":
		w, err := lookuplog.NewPostgresWriter(cfg.LookupLog.DSN)
		if err != nil {
			log.Fatalf("lookup log: %v", err)
		}
		return w
	default:
		return lookuplog.NoopWriter{}
	}
}

func cacheTTLs(cfg fuelrouter.Config) map[string]time.Duration {
	if len(cfg.Cache.TTLSeconds) == 0 {
		return nil
	}
	ttls := make(map[string]time.Duration, len(cfg.Cache.TTLSeconds))
	for category, seconds := range cfg.Cache.TTLSeconds {
		ttls[category] = time.Duration(seconds) * time.Second
	}
	return ttls
}

func routingAPIKey(cfg fuelrouter.Config) string {
	if cfg.Routing.APIKey != "" {
		return cfg.Routing.APIKey
	}
	return os.Getenv("OPENROUTE_API_KEY")
}

func secondsOr(seconds int, fallback time.Duration) time.Duration {
	if seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
