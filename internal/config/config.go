// Package config centralizes process configuration. Every tunable is a flag
// whose default is seeded from an environment variable, so `--help` lists
// all knobs and deployments can stay 12-factor:
//
//	fs := pflag.NewFlagSet("warehouse", pflag.ContinueOnError)
//	cfg := config.Bind(fs, os.Getenv)
//	_ = fs.Parse(os.Args[1:])
//
// Tests pass a map-backed getenv to stay hermetic.
package config

import (
	"bufio"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/vuvuzela92/waregouse-project/internal/storage"
)

// Config holds all process configuration derived from flags and environment
// variables. It is a plain value after parsing and safe to share.
type Config struct {
	// DB describes the destination database. DSN wins when set; otherwise a
	// Postgres URL is assembled from the discrete parts.
	DBDriver       string
	DSN            string
	DBUser         string
	DBPassword     string
	DBHost         string
	DBPort         string
	DBName         string
	MaxConns       int
	ConnectTimeout time.Duration

	// Marketplace access.
	TokensFile     string
	DocumentsURL   string
	MarketplaceURL string
	StockURL       string
	RequestTimeout time.Duration
	MaxRetries     int

	// Jobs.
	Workers      int
	ActsDaysBack int
	ScheduleFile string

	// Observability.
	LogLevel       string
	LogFormat      string
	MetricsBackend string // none, pushgateway or datadog
	PushgatewayURL string
	DatadogAddr    string
}

// Bind defines every flag on fs with an environment-seeded default and
// returns the Config the flags write into. Values are final once fs has been
// parsed.
//
// Precedence:
//  1. Environment values seed each flag's default.
//  2. Explicit flags override the seeded defaults.
func Bind(fs *pflag.FlagSet, getenv func(string) string) *Config {
	cfg := &Config{}

	str := func(k, d string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return d
	}
	num := func(k string, d int) int {
		if v := getenv(k); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				return i
			}
		}
		return d
	}
	dur := func(k string, d time.Duration) time.Duration {
		if v := getenv(k); v != "" {
			if x, err := time.ParseDuration(v); err == nil {
				return x
			}
		}
		return d
	}

	fs.StringVar(&cfg.DBDriver, "db-driver", str("DB_DRIVER", "postgres"), "destination backend: postgres, sqlite or mssql")
	fs.StringVar(&cfg.DSN, "dsn", getenv("DB_DSN"), "full destination DSN (required for mssql)")
	fs.StringVar(&cfg.DBUser, "db-user", getenv("USER_2"), "Postgres user")
	fs.StringVar(&cfg.DBPassword, "db-password", getenv("PASSWORD_2"), "Postgres password")
	fs.StringVar(&cfg.DBHost, "db-host", str("HOST_2", "localhost"), "Postgres host")
	fs.StringVar(&cfg.DBPort, "db-port", str("PORT_2", "5432"), "Postgres port")
	fs.StringVar(&cfg.DBName, "db-name", getenv("NAME_2"), "Postgres database")
	fs.IntVar(&cfg.MaxConns, "db-max-conns", num("DB_MAX_CONNS", 8), "upper bound on pooled connections")
	fs.DurationVar(&cfg.ConnectTimeout, "db-connect-timeout", dur("DB_CONNECT_TIMEOUT", 10*time.Second), "connect and ping timeout")

	fs.StringVar(&cfg.TokensFile, "tokens", str("WB_TOKENS_FILE", "tokens.json"), "account to API token mapping (JSON or YAML)")
	fs.StringVar(&cfg.DocumentsURL, "documents-url", str("WB_DOCUMENTS_URL", "https://documents-api.wildberries.ru"), "documents API base URL")
	fs.StringVar(&cfg.MarketplaceURL, "marketplace-url", str("WB_MARKETPLACE_URL", "https://marketplace-api.wildberries.ru"), "marketplace API base URL")
	fs.StringVar(&cfg.StockURL, "stock-url", getenv("STOCK_SERVICE_URL"), "internal stock service base URL")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", dur("WB_REQUEST_TIMEOUT", 30*time.Second), "per-request HTTP timeout")
	fs.IntVar(&cfg.MaxRetries, "max-retries", num("WB_MAX_RETRIES", 3), "retries on 429 and 5xx responses")

	fs.IntVar(&cfg.Workers, "workers", num("WORKERS", 8), "accounts processed concurrently")
	fs.IntVar(&cfg.ActsDaysBack, "acts-days-back", num("ACTS_DAYS_BACK", 10), "acceptance act lookback window in days")
	fs.StringVar(&cfg.ScheduleFile, "schedule-file", getenv("SCHEDULE_FILE"), "YAML file with cron expressions per job")

	fs.StringVar(&cfg.LogLevel, "log-level", str("LOG_LEVEL", "info"), "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", str("LOG_FORMAT", "text"), "text or json")
	fs.StringVar(&cfg.MetricsBackend, "metrics-backend", str("METRICS_BACKEND", "none"), "none, pushgateway or datadog")
	fs.StringVar(&cfg.PushgatewayURL, "pushgateway-url", getenv("PUSHGATEWAY_URL"), "Prometheus Pushgateway URL")
	fs.StringVar(&cfg.DatadogAddr, "datadog-addr", str("DD_AGENT_ADDR", "127.0.0.1:8125"), "DogStatsD address")

	return cfg
}

// ResolveDSN returns the DSN for the configured driver. An explicit DSN is
// used verbatim. For Postgres the URL is built from the discrete parts with
// the connect timeout applied; SQLite defaults to a local file.
func (c *Config) ResolveDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	switch c.DBDriver {
	case "postgres":
		u := url.URL{
			Scheme: "postgres",
			Host:   net.JoinHostPort(c.DBHost, c.DBPort),
			Path:   "/" + c.DBName,
		}
		if c.DBUser != "" {
			u.User = url.UserPassword(c.DBUser, c.DBPassword)
		}
		if c.ConnectTimeout > 0 {
			u.RawQuery = url.Values{"connect_timeout": {strconv.Itoa(int(c.ConnectTimeout.Seconds()))}}.Encode()
		}
		return u.String()
	case "sqlite":
		return "file:warehouse.db"
	}
	return ""
}

// Storage returns the backend configuration for storage.New.
func (c *Config) Storage() storage.Config {
	return storage.Config{
		Kind:           c.DBDriver,
		DSN:            c.ResolveDSN(),
		MaxConns:       c.MaxConns,
		ConnectTimeout: c.ConnectTimeout,
	}
}

// LoadDotEnv reads KEY=VALUE lines from path into the process environment.
// Variables already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("setenv %s: %w", key, err)
		}
	}
	return sc.Err()
}

// stripQuotes removes one pair of matching surrounding quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
