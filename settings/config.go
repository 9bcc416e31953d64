// Package settings resolves the run configuration for one invocation of
// the generator: CLI flags override an optional JSON config file, which
// overrides defaults (encoding/json over a file path), plus the
// environment-variable and secret-loading paths the CLI surface exposes.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/structs"
	"github.com/iancoleman/strcase"
	"github.com/jinzhu/copier"
	"github.com/joho/godotenv"

	"github.com/tantralabs/derivuniverse/logger"
	"github.com/tantralabs/derivuniverse/models"
)

const deploymentDateEnv = "QC_DATAFLEET_DEPLOYMENT_DATE"

// Config is the fully resolved configuration for one run, merged from CLI
// flags (highest priority), a JSON config file, then defaults.
type Config struct {
	SecurityType            models.SecurityType `json:"-"`
	SecurityTypeRaw         string              `json:"security-type"`
	Market                  string              `json:"market"`
	ProcessingDate          time.Time           `json:"-"`
	DataProvider            string              `json:"data-provider"`
	MapFileProvider         string              `json:"map-file-provider"`
	FactorFileProvider      string              `json:"factor-file-provider"`
	ProcessedDataDirectory  string              `json:"processed-data-directory"`
	TempOutputFolder        string              `json:"temp-output-folder"`
	APIHandler              string              `json:"api-handler"`
	Symbols                 []string            `json:"symbols"`
	SymbolSourceResolutions []string            `json:"symbol-source-resolutions"`
	Secret                  string              `json:"-"`
	SecretIsCloud           bool                `json:"secret-cloud"`
	Credentials             ProviderCredentials `json:"-"`
}

const defaultMarket = "usa"

// Load merges flag overrides on top of an optional JSON config file and
// then fills in defaults, resolving the security type and processing date.
// A blank securityTypeFlag or marketFlag defers to the config file, then
// to the documented defaults (market -> "usa"; security-type has no
// default and is a misconfiguration error).
func Load(securityTypeFlag, marketFlag, configFile, secretFlag string, secretIsCloud bool) (Config, error) {
	cfg := Config{Market: defaultMarket}

	_ = godotenv.Load() // optional .env; absence is not an error

	if configFile != "" {
		if err := mergeConfigFile(&cfg, configFile); err != nil {
			return cfg, err
		}
	}

	if securityTypeFlag != "" {
		cfg.SecurityTypeRaw = securityTypeFlag
	}
	if marketFlag != "" {
		cfg.Market = marketFlag
	}
	if secretFlag != "" {
		cfg.Secret = secretFlag
		cfg.SecretIsCloud = secretIsCloud
	}

	st, err := ParseSecurityType(cfg.SecurityTypeRaw)
	if err != nil {
		return cfg, fmt.Errorf("settings: %w", err)
	}
	cfg.SecurityType = st
	cfg.Market = strings.ToLower(cfg.Market)

	cfg.ProcessingDate = resolveProcessingDate()

	if cfg.Secret != "" {
		creds, err := LoadCredentials(cfg.Secret, cfg.SecretIsCloud)
		if err != nil {
			logger.Errorf("settings: loading provider credentials from %q failed: %v\n", cfg.Secret, err)
		}
		cfg.Credentials = creds
	}

	dumpConfig(cfg)
	return cfg, nil
}

func mergeConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("settings: read config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("settings: parse config file: %w", err)
	}
	return nil
}

// ParseSecurityType normalizes flag spellings like "equity_option",
// "EquityOption", or "equityOption" onto the canonical SecurityType name
// via strcase.ToCamel.
func ParseSecurityType(raw string) (models.SecurityType, error) {
	switch strcase.ToCamel(raw) {
	case "Equity":
		return models.Equity, nil
	case "Index":
		return models.Index, nil
	case "Future":
		return models.Future, nil
	case "EquityOption":
		return models.EquityOption, nil
	case "IndexOption":
		return models.IndexOption, nil
	case "FutureOption":
		return models.FutureOption, nil
	default:
		return 0, fmt.Errorf("invalid --security-type %q", raw)
	}
}

// resolveProcessingDate reads QC_DATAFLEET_DEPLOYMENT_DATE (YYYYMMDD),
// defaulting to today in UTC.
func resolveProcessingDate() time.Time {
	raw := os.Getenv(deploymentDateEnv)
	if raw == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	d, err := time.Parse("20060102", raw)
	if err != nil {
		logger.Errorf("settings: invalid %s=%q, falling back to today: %v\n", deploymentDateEnv, raw, err)
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	return d
}

// dumpConfig logs the resolved configuration as a human-readable
// key/value block via github.com/fatih/structs.
//
// It logs a copier.Copy clone rather than cfg itself, so the zeroing of
// Secret below can never accidentally mutate the caller's Config: Secret
// is exported (copier.Copy would otherwise happily clone it too), so
// redaction still has to happen by hand after the clone.
func dumpConfig(cfg Config) {
	var redacted Config
	if err := copier.Copy(&redacted, &cfg); err != nil {
		logger.Errorf("settings: copier clone for logging failed: %v\n", err)
		redacted = cfg
	}
	redacted.Secret = ""
	redacted.Credentials = ProviderCredentials{}

	var b strings.Builder
	b.WriteString("\n{\n")
	for _, f := range structs.Fields(&redacted) {
		if f.IsExported() {
			fmt.Fprintf(&b, "  %s: %v,\n", f.Name(), f.Value())
		}
	}
	b.WriteString("}\n")
	logger.Infof("Resolved config: %s", b.String())
}
