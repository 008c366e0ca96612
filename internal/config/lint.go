package config

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"

	"recordnorm/pkg/records"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks loading.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is reported but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is one lint finding. Path is a dotted path into the config, e.g.
// "storage.dsn".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Lint checks a defaulted Config without mutating it.
func Lint(c Config) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(c.Job) == "" {
		add(SeverityError, "job", "job must not be empty; it labels metrics and logs")
	}

	switch strings.ToLower(c.Logging.Env) {
	case "prod", "ci", "local", "dev":
	default:
		add(SeverityError, "logging.env", "unknown environment %q; want prod, ci, local or dev", c.Logging.Env)
	}
	if c.Logging.Level != "" {
		if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
			add(SeverityError, "logging.level", "invalid log level %q", c.Logging.Level)
		}
	}

	if _, ok := records.ParseSourceType(c.Topic.AnchorSource); !ok {
		add(SeverityError, "topic.anchor_source", "unknown source type %q", c.Topic.AnchorSource)
	}

	v := c.Validator
	if v.PhoneMinDigits > v.PhoneMaxDigits {
		add(SeverityError, "validator.phone_min_digits", "phone_min_digits (%d) exceeds phone_max_digits (%d)", v.PhoneMinDigits, v.PhoneMaxDigits)
	}
	if v.MaxReportedIssues > v.MaxCollectedIssues {
		add(SeverityWarning, "validator.max_reported_issues", "only %d issues are collected; %d can never be reported", v.MaxCollectedIssues, v.MaxReportedIssues)
	}

	if c.Rules.MinConfidence < 0 || c.Rules.MinConfidence > 1 {
		add(SeverityError, "rules.min_confidence", "min_confidence must be within [0,1], got %g", c.Rules.MinConfidence)
	}
	for i, p := range c.Rules.BannedPreambles {
		if strings.TrimSpace(p) == "" {
			add(SeverityWarning, fmt.Sprintf("rules.banned_preambles[%d]", i), "empty preamble is ignored")
		}
	}

	for k, val := range c.Cleaner.Abbreviations {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(val) == "" {
			add(SeverityWarning, "cleaner.abbreviations", "entry %q -> %q is blank and will be ignored", k, val)
		}
	}

	switch c.Metrics.Backend {
	case "none":
	case "prometheus":
		if strings.TrimSpace(c.Metrics.PushgatewayURL) == "" {
			add(SeverityError, "metrics.pushgateway_url", "prometheus backend requires pushgateway_url")
		}
	case "datadog":
		if strings.TrimSpace(c.Metrics.DatadogAddr) == "" {
			add(SeverityError, "metrics.datadog_addr", "datadog backend requires datadog_addr")
		}
	default:
		add(SeverityError, "metrics.backend", "unknown metrics backend %q; want none, prometheus or datadog", c.Metrics.Backend)
	}

	s := c.Storage
	switch s.Kind {
	case "none":
	case "sqlite", "postgres", "mysql", "mssql":
		if strings.TrimSpace(s.DSN) == "" {
			add(SeverityError, "storage.dsn", "%s storage requires a dsn", s.Kind)
		}
		if !tableNameRe.MatchString(s.RecordsTable) {
			add(SeverityError, "storage.records_table", "invalid table name %q", s.RecordsTable)
		}
		if !tableNameRe.MatchString(s.FailuresTable) {
			add(SeverityError, "storage.failures_table", "invalid table name %q", s.FailuresTable)
		}
		if s.RecordsTable == s.FailuresTable {
			add(SeverityError, "storage.failures_table", "failures_table must differ from records_table")
		}
		if s.Kind == "sqlite" && strings.Contains(s.RecordsTable+s.FailuresTable, ".") {
			add(SeverityWarning, "storage.records_table", "sqlite table names with a schema qualifier are attached-database references")
		}
	default:
		add(SeverityError, "storage.kind", "unknown storage kind %q; want none, sqlite, postgres, mysql or mssql", s.Kind)
	}

	return issues
}
