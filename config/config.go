package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/karatlabs/karat/internal/services/pricing"
)

// Config holds the engine's runtime options. The quote-source credential is
// taken from the GOLDAPI_KEY environment variable; an empty value is allowed
// and surfaces as a configuration error on every fetch rather than at boot.
type Config struct {
	DefaultCurrency    string
	StalenessThreshold time.Duration
	UpdateInterval     time.Duration
	FetchTimeout       time.Duration
	PropagateTimeout   time.Duration
	Markup             pricing.Markup
	QuoteAPIBaseURL    string
	QuoteAPIKey        string
	CatalogMode        string // "cms" or "memory"
	CatalogBaseURL     string
	HTTPAddr           string
	TLSDomains         []string
	CertCacheDir       string
	PriceCacheDir      string
	UpdateLogDir       string
	Setup              bool
}

type ConfigTmp struct {
	DefaultCurrency    string        `yaml:"default_currency"`
	StalenessThreshold time.Duration `yaml:"staleness_threshold"`
	UpdateInterval     time.Duration `yaml:"update_interval"`
	FetchTimeout       time.Duration `yaml:"fetch_timeout"`
	PropagateTimeout   time.Duration `yaml:"propagate_timeout"`
	MarkupMode         string        `yaml:"markup_mode,omitempty"`
	MarkupValue        string        `yaml:"markup_value,omitempty"`
	QuoteAPIBaseURL    string        `yaml:"quote_api_base_url,omitempty"`
	CatalogMode        string        `yaml:"catalog,omitempty"`
	CatalogBaseURL     string        `yaml:"catalog_base_url,omitempty"`
	HTTPAddr           string        `yaml:"http_addr,omitempty"`
	TLSDomains         []string      `yaml:"tls_domains,omitempty"`
	CertCacheDir       string        `yaml:"cert_cache_dir,omitempty"`
	PriceCacheDir      string        `yaml:"price_cache_dir,omitempty"`
	UpdateLogDir       string        `yaml:"update_log_dir,omitempty"`
}

// Get loads configuration from a YAML file when --config is provided and
// from flag defaults otherwise. GOLDAPI_KEY always comes from the environment.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	setup := flag.Bool("setup", false, "run the interactive configuration wizard")
	currency := flag.String("currency", "", "override the default pricing currency, example: GBP")
	httpAddr := flag.String("http-addr", "", "override the operations server listen address")
	flag.Parse()

	cfg := defaults()
	if *configPath != "" {
		loaded, err := load(*configPath)
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
	}

	if *currency != "" {
		cfg.DefaultCurrency = strings.ToUpper(*currency)
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	cfg.QuoteAPIKey = os.Getenv("GOLDAPI_KEY")
	cfg.Setup = *setup

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		DefaultCurrency:    "GBP",
		StalenessThreshold: 24 * time.Hour,
		UpdateInterval:     6 * time.Hour,
		FetchTimeout:       30 * time.Second,
		PropagateTimeout:   2 * time.Minute,
		Markup: pricing.Markup{
			Mode:  pricing.MarkupPercent,
			Value: decimal.NewFromInt(10),
		},
		QuoteAPIBaseURL: "https://www.goldapi.io",
		CatalogMode:     "memory",
		HTTPAddr:        ":8080",
		CertCacheDir:    "cert-cache",
		PriceCacheDir:   "./wal/pricecache",
		UpdateLogDir:    "./wal/updatelog",
	}
}

// load parses a YAML config file, filling defaults for unset options.
func load(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, fmt.Errorf("parse yaml config: %w", err)
	}

	cfg := defaults()
	if tmp.DefaultCurrency != "" {
		cfg.DefaultCurrency = strings.ToUpper(tmp.DefaultCurrency)
	}
	if tmp.StalenessThreshold > 0 {
		cfg.StalenessThreshold = tmp.StalenessThreshold
	}
	if tmp.UpdateInterval > 0 {
		cfg.UpdateInterval = tmp.UpdateInterval
	}
	if tmp.FetchTimeout > 0 {
		cfg.FetchTimeout = tmp.FetchTimeout
	}
	if tmp.PropagateTimeout > 0 {
		cfg.PropagateTimeout = tmp.PropagateTimeout
	}
	if tmp.MarkupMode != "" {
		cfg.Markup.Mode = pricing.MarkupMode(tmp.MarkupMode)
	}
	if tmp.MarkupValue != "" {
		value, err := decimal.NewFromString(tmp.MarkupValue)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'markup_value' param in yaml config (must be a decimal): %w", err)
		}
		cfg.Markup.Value = value
	}
	if tmp.QuoteAPIBaseURL != "" {
		cfg.QuoteAPIBaseURL = strings.TrimSuffix(tmp.QuoteAPIBaseURL, "/")
	}
	if tmp.CatalogMode != "" {
		cfg.CatalogMode = tmp.CatalogMode
	}
	if tmp.CatalogBaseURL != "" {
		cfg.CatalogBaseURL = strings.TrimSuffix(tmp.CatalogBaseURL, "/")
	}
	if tmp.HTTPAddr != "" {
		cfg.HTTPAddr = tmp.HTTPAddr
	}
	if len(tmp.TLSDomains) > 0 {
		cfg.TLSDomains = tmp.TLSDomains
	}
	if tmp.CertCacheDir != "" {
		cfg.CertCacheDir = tmp.CertCacheDir
	}
	if tmp.PriceCacheDir != "" {
		cfg.PriceCacheDir = tmp.PriceCacheDir
	}
	if tmp.UpdateLogDir != "" {
		cfg.UpdateLogDir = tmp.UpdateLogDir
	}

	return cfg, nil
}

func (c Config) validate() error {
	if len(c.DefaultCurrency) != 3 {
		return fmt.Errorf("invalid default currency %q: expected an ISO-4217 code", c.DefaultCurrency)
	}
	switch c.Markup.Mode {
	case pricing.MarkupPercent, pricing.MarkupFlat:
	default:
		return fmt.Errorf("invalid markup mode %q: expected %q or %q", c.Markup.Mode, pricing.MarkupPercent, pricing.MarkupFlat)
	}
	if c.Markup.Value.IsNegative() {
		return fmt.Errorf("markup value must not be negative, got %s", c.Markup.Value)
	}
	switch c.CatalogMode {
	case "cms":
		if c.CatalogBaseURL == "" {
			return fmt.Errorf("catalog_base_url is required when catalog is %q", c.CatalogMode)
		}
	case "memory":
	default:
		return fmt.Errorf("invalid catalog mode %q: expected \"cms\" or \"memory\"", c.CatalogMode)
	}
	return nil
}
