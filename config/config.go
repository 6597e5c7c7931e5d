package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/p2prate/internal/clients"
	"github.com/vadiminshakov/p2prate/internal/domain"
)

const (
	defaultPort            = 3000
	defaultAsset           = "USDT"
	defaultRows            = 10
	defaultMargin          = "1.15"
	defaultCacheTTL        = 15 * time.Minute
	defaultRefreshInterval = 15 * time.Minute
	defaultErrorThreshold  = 3
	defaultErrorCooldown   = 30 * time.Minute
	defaultLogLevel        = "info"
)

// Config is the validated proxy configuration.
type Config struct {
	Port           int
	Endpoint       string
	UserAgent      string
	MerchantCheck  bool
	RequestTimeout time.Duration

	Source domain.ListingQuery
	Target domain.ListingQuery
	Trim   domain.Trim
	Margin decimal.Decimal

	CacheTTL        time.Duration
	RefreshInterval time.Duration
	ErrorThreshold  int
	ErrorCooldown   time.Duration
	WarmupRetries   int

	LogLevel string
}

// Addr is the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

type legTmp struct {
	Fiat string `yaml:"fiat" env:"FIAT"`
	Side string `yaml:"side" env:"SIDE"`
}

// ConfigTmp is the raw file/env representation; numbers are strings so that
// missing keys can be told apart from zero values.
type ConfigTmp struct {
	Port           string        `yaml:"port" env:"PORT"`
	Endpoint       string        `yaml:"endpoint" env:"P2P_ENDPOINT"`
	UserAgent      string        `yaml:"user_agent" env:"P2P_USER_AGENT"`
	MerchantCheck  string        `yaml:"merchant_check,omitempty" env:"P2P_MERCHANT_CHECK"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`

	Asset  string `yaml:"asset" env:"ASSET"`
	Rows   string `yaml:"rows,omitempty" env:"ROWS"`
	Source legTmp `yaml:"source" env-prefix:"SOURCE_"`
	Target legTmp `yaml:"target" env-prefix:"TARGET_"`
	Skip   string `yaml:"skip,omitempty" env:"TRIM_SKIP"`
	Take   string `yaml:"take,omitempty" env:"TRIM_TAKE"`
	Margin string `yaml:"margin,omitempty" env:"MARGIN"`

	CacheTTL        time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
	RefreshInterval time.Duration `yaml:"refresh_interval" env:"REFRESH_INTERVAL"`
	ErrorThreshold  string        `yaml:"error_threshold,omitempty" env:"ERROR_THRESHOLD"`
	ErrorCooldown   time.Duration `yaml:"error_cooldown" env:"ERROR_COOLDOWN"`
	WarmupRetries   string        `yaml:"warmup_retries,omitempty" env:"WARMUP_RETRIES"`

	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
}

// Get loads an optional .env file, the YAML file given by --config (if any)
// and environment overrides, in that order of increasing precedence.
func Get() (Config, error) {
	path := flag.String("config", "", "path to yaml config")
	envFile := flag.String("env", ".env", "path to .env file, ignored if missing")
	flag.Parse()

	return Load(*path, *envFile)
}

// Load builds the Config from the given files. Empty paths are skipped.
func Load(path, envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, errors.Wrapf(err, "load env file %s", envFile)
		}
	}

	var tmp ConfigTmp
	if path != "" {
		f, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(f, &tmp); err != nil {
			return Config{}, errors.Wrap(err, "parse yaml config")
		}
	}

	if err := cleanenv.ReadEnv(&tmp); err != nil {
		return Config{}, errors.Wrap(err, "read environment")
	}

	return tmp.build()
}

func (t ConfigTmp) build() (Config, error) {
	var err error
	c := Config{
		Endpoint:        withDefault(t.Endpoint, clients.DefaultP2PEndpoint),
		UserAgent:       withDefault(t.UserAgent, clients.DefaultUserAgent),
		RequestTimeout:  durationOr(t.RequestTimeout, clients.DefaultRequestTimeout),
		CacheTTL:        durationOr(t.CacheTTL, defaultCacheTTL),
		RefreshInterval: durationOr(t.RefreshInterval, defaultRefreshInterval),
		ErrorCooldown:   durationOr(t.ErrorCooldown, defaultErrorCooldown),
		LogLevel:        strings.ToLower(withDefault(t.LogLevel, defaultLogLevel)),
	}

	if c.Port, err = intOr(t.Port, defaultPort, "port"); err != nil {
		return Config{}, err
	}
	if c.Port <= 0 || c.Port > 65535 {
		return Config{}, fmt.Errorf("incorrect 'port' param: %d", c.Port)
	}

	c.MerchantCheck = true
	if t.MerchantCheck != "" {
		if c.MerchantCheck, err = strconv.ParseBool(t.MerchantCheck); err != nil {
			return Config{}, fmt.Errorf("incorrect 'merchant_check' param (must be true or false), error: %w", err)
		}
	}

	rows, err := intOr(t.Rows, defaultRows, "rows")
	if err != nil {
		return Config{}, err
	}
	if rows <= 0 {
		return Config{}, fmt.Errorf("incorrect 'rows' param: %d", rows)
	}

	asset := strings.ToUpper(withDefault(t.Asset, defaultAsset))
	if c.Source, err = t.Source.query(asset, rows, "COP", domain.SideBuy); err != nil {
		return Config{}, errors.Wrap(err, "source leg")
	}
	if c.Target, err = t.Target.query(asset, rows, "VES", domain.SideSell); err != nil {
		return Config{}, errors.Wrap(err, "target leg")
	}
	if c.Source.Fiat == c.Target.Fiat {
		return Config{}, fmt.Errorf("source and target fiat must differ, both are %s", c.Source.Fiat)
	}

	if c.Trim.Skip, err = intOr(t.Skip, 1, "skip"); err != nil {
		return Config{}, err
	}
	if c.Trim.Take, err = intOr(t.Take, 6, "take"); err != nil {
		return Config{}, err
	}
	if c.Trim.Skip < 0 || c.Trim.Take <= 0 {
		return Config{}, fmt.Errorf("incorrect trim: skip %d take %d", c.Trim.Skip, c.Trim.Take)
	}

	c.Margin, err = decimal.NewFromString(withDefault(t.Margin, defaultMargin))
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'margin' param (correct format is 1.15), error: %w", err)
	}
	if !c.Margin.IsPositive() {
		return Config{}, fmt.Errorf("incorrect 'margin' param: must be positive, got %s", c.Margin)
	}

	if c.ErrorThreshold, err = intOr(t.ErrorThreshold, defaultErrorThreshold, "error_threshold"); err != nil {
		return Config{}, err
	}
	if c.ErrorThreshold <= 0 {
		return Config{}, fmt.Errorf("incorrect 'error_threshold' param: %d", c.ErrorThreshold)
	}

	if c.WarmupRetries, err = intOr(t.WarmupRetries, 0, "warmup_retries"); err != nil {
		return Config{}, err
	}
	if c.WarmupRetries < 0 {
		return Config{}, fmt.Errorf("incorrect 'warmup_retries' param: %d", c.WarmupRetries)
	}

	if c.RequestTimeout < 0 || c.CacheTTL < 0 || c.RefreshInterval < 0 || c.ErrorCooldown < 0 {
		return Config{}, errors.New("durations must be positive")
	}

	return c, nil
}

func (l legTmp) query(asset string, rows int, defaultFiat string, defaultSide domain.Side) (domain.ListingQuery, error) {
	side := defaultSide
	if l.Side != "" {
		var err error
		if side, err = domain.ParseSide(strings.ToUpper(l.Side)); err != nil {
			return domain.ListingQuery{}, err
		}
	}

	return domain.ListingQuery{
		Asset: asset,
		Fiat:  strings.ToUpper(withDefault(l.Fiat, defaultFiat)),
		Side:  side,
		Page:  1,
		Rows:  rows,
	}, nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func durationOr(v, def time.Duration) time.Duration {
	if v == 0 {
		return def
	}
	return v
}

func intOr(v string, def int, name string) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("incorrect '%s' param (must be an integer), error: %w", name, err)
	}
	return n, nil
}
