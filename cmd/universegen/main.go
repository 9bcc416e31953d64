// Command universegen is the CLI entrypoint for one run of the
// universe-generation pipeline: resolve settings.Config, build the
// orchestrator.Strategy the resolved security type calls for, run the
// Generator for one processing date, then the additional fields pass.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tantralabs/derivuniverse/chain"
	"github.com/tantralabs/derivuniverse/data"
	"github.com/tantralabs/derivuniverse/fields"
	"github.com/tantralabs/derivuniverse/greeks"
	"github.com/tantralabs/derivuniverse/history"
	"github.com/tantralabs/derivuniverse/logger"
	"github.com/tantralabs/derivuniverse/models"
	"github.com/tantralabs/derivuniverse/orchestrator"
	"github.com/tantralabs/derivuniverse/settings"
)

var rootCmd = &cobra.Command{
	Use:   "universegen --security-type equity_option --archive-root ./archive --out-root ./universes",
	Short: "Generate one day's options/futures universe files",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()

		securityType, _ := flags.GetString("security-type")
		market, _ := flags.GetString("market")
		configFile, _ := flags.GetString("config")
		secret, _ := flags.GetString("secret")
		secretCloud, _ := flags.GetBool("secret-cloud")
		archiveRoot, _ := flags.GetString("archive-root")
		outRoot, _ := flags.GetString("out-root")
		psqlInfo, _ := flags.GetString("market-hours-dsn")
		expiryFile, _ := flags.GetString("expiry-file")
		symbols, _ := flags.GetStringSlice("symbols")
		resolutionsRaw, _ := flags.GetStringSlice("resolutions")
		concurrency, _ := flags.GetInt("concurrency")
		etaEvery, _ := flags.GetInt("eta-every")
		logLevel, _ := flags.GetString("log-level")

		logger.SetLevel(logLevel)

		cfg, err := settings.Load(securityType, market, configFile, secret, secretCloud)
		if err != nil {
			return err
		}
		if len(symbols) > 0 {
			cfg.Symbols = symbols
		}

		resolutions, err := parseResolutions(resolutionsRaw)
		if err != nil {
			return err
		}

		calendar := data.Calendar(data.NoopMarketHoursDB())
		if psqlInfo != "" {
			from := cfg.ProcessingDate.AddDate(0, 0, -7)
			to := cfg.ProcessingDate.AddDate(0, 0, 7)
			db, err := data.LoadMarketHoursDB(psqlInfo, cfg.Market, from, to)
			if err != nil {
				logger.Errorf("universegen: market hours unavailable, treating every day as open: %v\n", err)
			} else {
				calendar = db
			}
		}

		gw := history.NewGateway(archiveRoot)
		gw.Ladder = resolutions
		if cfg.Credentials.PolygonAPIKey != "" {
			gw.Secondary = append(gw.Secondary, history.NewPolygonProvider(cfg.Credentials.PolygonAPIKey))
		}
		if cfg.Credentials.InfluxAddr != "" {
			gw.Secondary = append(gw.Secondary, history.InfluxProvider{
				Addr:     cfg.Credentials.InfluxAddr,
				Username: cfg.Credentials.InfluxUsername,
				Password: cfg.Credentials.InfluxPassword,
				Database: cfg.Credentials.InfluxDatabase,
			})
		}

		strategy, err := buildStrategy(cfg, archiveRoot, resolutions, expiryFile)
		if err != nil {
			return err
		}
		// For future, --symbols already named the canonical root above;
		// contract tickers carry an expiry suffix and would never match it.
		if len(cfg.Symbols) > 0 && cfg.SecurityType != models.Future {
			allow := make(map[string]bool, len(cfg.Symbols))
			for _, s := range cfg.Symbols {
				allow[strings.ToUpper(s)] = true
			}
			strategy.FilterSymbols = func(syms []models.Symbol) []models.Symbol {
				out := syms[:0]
				for _, s := range syms {
					if allow[strings.ToUpper(s.Ticker)] {
						out = append(out, s)
					}
				}
				return out
			}
		}

		gen := &orchestrator.Generator{
			Strategy:     strategy,
			History:      gw,
			MarketHours:  calendar,
			GreeksConfig: greeks.DefaultConfig(),
			OutRoot:      outRoot,
			D:            cfg.ProcessingDate,
			Concurrency:  concurrency,
			ETAEvery:     etaEvery,
		}

		if ok := gen.Run(); !ok {
			return fmt.Errorf("universegen: run for %s failed", cfg.ProcessingDate.Format("2006-01-02"))
		}

		if err := fields.WalkAndRun(outRoot); err != nil {
			logger.Errorf("universegen: additional fields pass failed: %v\n", err)
		}

		logger.Infof("universegen: completed run for %s\n", cfg.ProcessingDate.Format("2006-01-02"))
		return nil
	},
}

// buildStrategy resolves the orchestrator.Strategy for cfg's security
// type: an archive-scanned OptionStrategy for equity/index/future
// options, or a FutureStrategy backed by an ExpiryDictionaryProvider read
// from expiryFile for bare futures.
func buildStrategy(cfg settings.Config, archiveRoot string, resolutions []models.Resolution, expiryFile string) (orchestrator.Strategy, error) {
	if cfg.SecurityType == models.Future {
		if len(cfg.Symbols) != 1 {
			return orchestrator.Strategy{}, fmt.Errorf("universegen: --security-type future requires exactly one --symbols root")
		}
		provider, err := loadExpiryDictionary(expiryFile, cfg.Market)
		if err != nil {
			return orchestrator.Strategy{}, err
		}
		canonical := models.NewCanonical(cfg.Symbols[0], models.Future, cfg.Market, nil)
		return orchestrator.FutureStrategy(cfg.Market, canonical, provider), nil
	}
	return orchestrator.OptionStrategy(cfg.SecurityType, cfg.Market, archiveRoot, resolutions), nil
}

// loadExpiryDictionary reads a JSON object of {ticker: ["YYYYMMDD", ...]}
// into a chain.ExpiryDictionaryProvider, the CLI-facing form of the
// listing calendar bare futures need.
func loadExpiryDictionary(path, market string) (chain.ExpiryDictionaryProvider, error) {
	p := chain.ExpiryDictionaryProvider{Market: market, Expiries: map[string][]time.Time{}}
	if path == "" {
		return p, fmt.Errorf("universegen: --expiry-file is required for --security-type future")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("universegen: read expiry file: %w", err)
	}
	var byTicker map[string][]string
	if err := json.Unmarshal(raw, &byTicker); err != nil {
		return p, fmt.Errorf("universegen: parse expiry file: %w", err)
	}
	for ticker, dates := range byTicker {
		for _, ds := range dates {
			d, err := time.Parse("20060102", ds)
			if err != nil {
				return p, fmt.Errorf("universegen: expiry file: invalid date %q for %s: %w", ds, ticker, err)
			}
			p.Expiries[ticker] = append(p.Expiries[ticker], d)
		}
	}
	return p, nil
}

func parseResolutions(raw []string) ([]models.Resolution, error) {
	if len(raw) == 0 {
		return []models.Resolution{models.Daily, models.Hour, models.Minute}, nil
	}
	out := make([]models.Resolution, 0, len(raw))
	for _, r := range raw {
		switch strings.ToLower(r) {
		case "daily", "day":
			out = append(out, models.Daily)
		case "hour":
			out = append(out, models.Hour)
		case "minute", "min":
			out = append(out, models.Minute)
		default:
			return nil, fmt.Errorf("universegen: invalid --resolutions entry %q", r)
		}
	}
	return out, nil
}

func main() {
	flags := rootCmd.Flags()
	flags.String("security-type", "", "equity_option, index_option, future_option, or future")
	flags.String("market", "usa", "market/exchange calendar key")
	flags.String("config", "", "optional JSON config file")
	flags.String("secret", "", "credentials file path, or an AWS Secrets Manager secret ID with --secret-cloud")
	flags.Bool("secret-cloud", false, "treat --secret as an AWS Secrets Manager secret ID")
	flags.String("archive-root", "", "root of the date-partitioned zip archive")
	flags.String("out-root", "", "root directory for emitted universe files")
	flags.String("market-hours-dsn", "", "optional Postgres DSN for the market-hours calendar")
	flags.String("expiry-file", "", "JSON {ticker: [YYYYMMDD,...]} listing calendar, required for --security-type future")
	flags.StringSlice("symbols", nil, "restrict to these tickers (single root ticker for future)")
	flags.StringSlice("resolutions", nil, "resolution ladder, e.g. daily,hour,minute")
	flags.Int("concurrency", 0, "override the default floor(1.5*NumCPU) canonical fan-out width")
	flags.Int("eta-every", 0, "override the default 50-contract ETA log cadence")
	flags.String("log-level", "info", "debug, info, or error")

	rootCmd.MarkFlagRequired("security-type")
	rootCmd.MarkFlagRequired("archive-root")
	rootCmd.MarkFlagRequired("out-root")

	if err := rootCmd.Execute(); err != nil {
		logger.Errorf("universegen: %v\n", err)
		os.Exit(1)
	}
}
