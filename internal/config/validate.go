package config

import (
	"fmt"
	"net/url"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single validation finding. Path names the flag it concerns.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate performs static checks over a parsed Config without touching the
// network or the filesystem.
func Validate(c *Config) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	switch c.DBDriver {
	case "postgres":
		if c.DSN == "" && strings.TrimSpace(c.DBName) == "" {
			add(SeverityError, "db-name", "postgres needs --dsn or --db-name")
		}
		if c.DSN == "" && c.DBUser == "" {
			add(SeverityWarning, "db-user", "no database user; relying on server defaults")
		}
	case "mssql":
		if c.DSN == "" {
			add(SeverityError, "dsn", "mssql requires a full --dsn")
		}
	case "sqlite":
		if c.DSN == "" {
			add(SeverityWarning, "dsn", "no --dsn; using file:warehouse.db in the working directory")
		}
	default:
		add(SeverityError, "db-driver", "unknown driver %q; want postgres, sqlite or mssql", c.DBDriver)
	}

	if c.MaxConns < 1 {
		add(SeverityError, "db-max-conns", "must be at least 1, got %d", c.MaxConns)
	}
	if c.Workers < 1 {
		add(SeverityError, "workers", "must be at least 1, got %d", c.Workers)
	}
	if c.ActsDaysBack < 1 {
		add(SeverityError, "acts-days-back", "must be at least 1, got %d", c.ActsDaysBack)
	}
	if c.MaxRetries < 0 {
		add(SeverityError, "max-retries", "must not be negative, got %d", c.MaxRetries)
	}
	if strings.TrimSpace(c.TokensFile) == "" {
		add(SeverityError, "tokens", "tokens file path must not be empty")
	}

	for path, raw := range map[string]string{
		"documents-url":   c.DocumentsURL,
		"marketplace-url": c.MarketplaceURL,
	} {
		if !validBaseURL(raw) {
			add(SeverityError, path, "invalid base URL %q", raw)
		}
	}
	if c.StockURL == "" {
		add(SeverityWarning, "stock-url", "stock service URL not set; the stock job will fail")
	} else if !validBaseURL(c.StockURL) {
		add(SeverityError, "stock-url", "invalid base URL %q", c.StockURL)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		add(SeverityError, "log-level", "unknown level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		add(SeverityError, "log-format", "unknown format %q", c.LogFormat)
	}

	switch c.MetricsBackend {
	case "", "none", "datadog":
	case "pushgateway":
		if c.PushgatewayURL == "" {
			add(SeverityError, "pushgateway-url", "pushgateway backend needs --pushgateway-url")
		}
	default:
		add(SeverityWarning, "metrics-backend", "unknown backend %q; metrics disabled", c.MetricsBackend)
	}
	return issues
}

func validBaseURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
