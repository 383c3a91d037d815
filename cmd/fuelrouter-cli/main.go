// Package main provides the fuelrouter-cli command-line tool for running
// trip estimates and individual lookups from a terminal.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	fuelrouter "github.com/waypoint-labs/fuel-router"
	"github.com/waypoint-labs/fuel-router/geo"
	"github.com/waypoint-labs/fuel-router/internal/cache"
	"github.com/waypoint-labs/fuel-router/internal/logging"
	"github.com/waypoint-labs/fuel-router/internal/version"
	"github.com/waypoint-labs/fuel-router/providers"
	"github.com/waypoint-labs/fuel-router/routing"
	"github.com/waypoint-labs/fuel-router/vehicles"
)

var (
	flagCacheDir string
	flagConfig   string
)

func main() {
	root := &cobra.Command{
		Use:           "fuelrouter-cli",
		Short:         "Trip fuel cost estimation from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagCacheDir, "cache-dir", "cache", "lookup cache directory")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (JSON/YAML); defaults to env-based setup")

	root.AddCommand(
		estimateCmd(),
		geocodeCmd(),
		specsCmd(),
		modelsCmd(),
		cacheCmd(),
		validateCmd(),
		versionCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func estimateCmd() *cobra.Command {
	var req fuelrouter.EstimateRequest
	cmd := &cobra.Command{
		Use:   "estimate <origin> <destination>",
		Short: "Estimate the fuel cost of a trip",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Origin, req.Destination = args[0], args[1]
			e, err := buildEstimator()
			if err != nil {
				return err
			}
			estimate, err := e.Estimate(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Printf("%s → %s\n", estimate.Origin.DisplayAddress, estimate.Destination.DisplayAddress)
			fmt.Printf("  Distance:    %.1f km\n", estimate.Cost.DistanceKm)
			fmt.Printf("  Consumption: %.1f L/100km\n", estimate.Cost.ConsumptionRate)
			fmt.Printf("  Fuel needed: %.2f L\n", estimate.Cost.FuelNeededLiters)
			fmt.Printf("  Fuel price:  %.2f %s/L\n", estimate.Cost.FuelPrice, estimate.LocalCurrency)
			fmt.Printf("  Total cost:  %.2f %s\n", estimate.DisplayCost, estimate.DisplayCurrency)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Brand, "brand", "", "vehicle brand")
	cmd.Flags().StringVar(&req.Model, "model", "", "vehicle model")
	cmd.Flags().IntVar(&req.Year, "year", 0, "vehicle year")
	cmd.Flags().StringVar(&req.FuelType, "fuel", "95", "fuel grade: 95, 91 or diesel")
	cmd.Flags().StringVar(&req.Preference, "preference", "", "routing preference (fastest, shortest, west_bank)")
	cmd.Flags().StringVar(&req.Currency, "currency", "", "display currency code")
	_ = cmd.MarkFlagRequired("brand")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

func geocodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "geocode <place>",
		Short: "Resolve a place name to coordinates and country info",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEstimator()
			if err != nil {
				return err
			}
			res, err := e.Geo.ResolveCoordinates(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
}

func specsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "specs <brand> <model> <year>",
		Short: "Resolve a vehicle's fuel consumption specs",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var year int
			if _, err := fmt.Sscanf(args[2], "%d", &year); err != nil {
				return fmt.Errorf("invalid year %q", args[2])
			}
			e, err := buildEstimator()
			if err != nil {
				return err
			}
			spec, err := e.Vehicles.Resolve(cmd.Context(), args[0], args[1], year)
			if err != nil {
				return err
			}
			return printJSON(spec)
		},
	}
	return cmd
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models <brand>",
		Short: "List known models for a brand",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEstimator()
			if err != nil {
				return err
			}
			models, err := e.Vehicles.ListModels(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, m := range models {
				fmt.Println(m)
			}
			return nil
		},
	}
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the lookup cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear <category>",
		Short: "Remove all cached entries for a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			store := cache.NewDisk(flagCacheDir, nil)
			if !store.Clear(args[0]) {
				return fmt.Errorf("clearing cache category %q failed", args[0])
			}
			fmt.Printf("Cleared %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file (JSON/YAML)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := fuelrouter.LoadConfig(args[0])
			if err != nil {
				return err
			}
			if err := fuelrouter.ValidateConfig(*cfg); err != nil {
				return err
			}
			fmt.Println("✓ Config is valid")
			fmt.Printf("  Providers: %d\n", len(cfg.Providers))
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("fuelrouter-cli %s\n", version.String())
		},
	}
}

// buildEstimator wires an Estimator from the config file when --config is
// given, otherwise from environment variables.
func buildEstimator() (*fuelrouter.Estimator, error) {
	var cfg fuelrouter.Config
	if flagConfig != "" {
		loaded, err := fuelrouter.LoadConfig(flagConfig)
		if err != nil {
			return nil, err
		}
		if err := fuelrouter.ValidateConfig(*loaded); err != nil {
			return nil, err
		}
		cfg = *loaded
	}
	logging.Setup("warn", "text")

	knowledge, err := buildKnowledge(cfg)
	if err != nil {
		return nil, err
	}

	cacheDir := flagCacheDir
	if cfg.Cache.Dir != "" {
		cacheDir = cfg.Cache.Dir
	}
	store := cache.NewDisk(cacheDir, nil)

	return &fuelrouter.Estimator{
		Geo: geo.NewResolver(store, knowledge, geo.Options{
			GeocoderURL: cfg.Geocoder.URL,
			UserAgent:   cfg.Geocoder.UserAgent,
			Timeout:     10 * time.Second,
		}),
		Vehicles: vehicles.NewResolver(store, knowledge, nil),
		Routes: routing.NewResolver(store, routing.Options{
			Endpoints: cfg.Routing.Endpoints,
			APIKey:    cfg.Routing.APIKey,
		}),
		DefaultFuelPrice: cfg.Defaults.FuelPrice,
		DefaultCurrency:  cfg.Defaults.Currency,
	}, nil
}

func buildKnowledge(cfg fuelrouter.Config) (providers.Provider, error) {
	var backends []providers.Provider
	for _, pc := range cfg.Providers {
		var (
			p   providers.Provider
			err error
		)
		switch pc.Kind {
		case fuelrouter.ProviderOpenAI:
			p, err = providers.NewOpenAI(pc.APIKey, pc.BaseURL, pc.Model)
		case fuelrouter.ProviderBedrock:
			p, err = providers.NewBedrock(pc.Region, pc.Model)
		default:
			p, err = providers.NewGemini(pc.APIKey, pc.BaseURL, pc.Model)
		}
		if err != nil {
			return nil, fmt.Errorf("%s provider: %w", pc.Kind, err)
		}
		backends = append(backends, p)
	}

	if len(backends) == 0 {
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			p, err := providers.NewGemini(key, "", "")
			if err != nil {
				return nil, err
			}
			backends = append(backends, p)
		}
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			p, err := providers.NewOpenAI(key, "", "")
			if err != nil {
				return nil, err
			}
			backends = append(backends, p)
		}
	}
	if len(backends) == 0 {
		return nil, fmt.Errorf("no knowledge provider configured: set GEMINI_API_KEY or OPENAI_API_KEY, or pass --config")
	}
	return providers.NewChain(backends...), nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
