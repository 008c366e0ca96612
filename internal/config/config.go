// Package config loads the normalize configuration.
//
// Files are YAML (JSON works too, being a YAML subset). ${VAR} and
// ${VAR:-default} references are expanded from the environment before
// decoding; unknown keys are rejected.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"recordnorm/internal/cleaner"
	"recordnorm/internal/rules"
	"recordnorm/internal/semantic"
	"recordnorm/internal/validator"
	"recordnorm/pkg/records"
)

// ErrInvalidConfig is returned when linting finds at least one error.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the full normalize configuration.
type Config struct {
	Job       string          `yaml:"job"`
	Logging   LoggingConfig   `yaml:"logging"`
	Topic     TopicConfig     `yaml:"topic"`
	Validator ValidatorConfig `yaml:"validator"`
	Rules     RulesConfig     `yaml:"rules"`
	Cleaner   CleanerConfig   `yaml:"cleaner"`
	Inference InferenceConfig `yaml:"inference"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Storage   StorageConfig   `yaml:"storage"`
}

// LoggingConfig selects the logger flavour.
type LoggingConfig struct {
	Env   string `yaml:"env"`   // prod, ci, local, dev
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

type TopicConfig struct {
	// AnchorSource is the source type whose topic wins for the whole batch.
	AnchorSource string `yaml:"anchor_source"`
}

type ValidatorConfig struct {
	MaxCollectedIssues int `yaml:"max_collected_issues"`
	MaxReportedIssues  int `yaml:"max_reported_issues"`
	MaxTextLength      int `yaml:"max_text_length"`
	PhoneMinDigits     int `yaml:"phone_min_digits"`
	PhoneMaxDigits     int `yaml:"phone_max_digits"`
}

type InferenceConfig struct {
	// StrictShapes keeps numeric dates out of contact_info and spaced
	// values out of identifier.
	StrictShapes bool `yaml:"strict_shapes"`
}

type RulesConfig struct {
	MinDocumentLength int      `yaml:"min_document_length"`
	MinConfidence     float64  `yaml:"min_confidence"`
	SummaryMinLength  int      `yaml:"summary_min_length"`
	BannedPreambles   []string `yaml:"banned_preambles"`
}

// CleanerConfig overrides the cleaning vocabularies. Empty lists keep the
// built-in ones.
type CleanerConfig struct {
	FillerWords    []string          `yaml:"filler_words"`
	Abbreviations  map[string]string `yaml:"abbreviations"`
	DefaultSpeaker string            `yaml:"default_speaker"`
	DefaultUserID  string            `yaml:"default_user_id"`
}

// MetricsConfig selects the metrics backend: none, prometheus or datadog.
type MetricsConfig struct {
	Backend        string   `yaml:"backend"`
	PushgatewayURL string   `yaml:"pushgateway_url"`
	DatadogAddr    string   `yaml:"datadog_addr"`
	Namespace      string   `yaml:"namespace"`
	Tags           []string `yaml:"tags"`
}

// StorageConfig selects the optional result sink: none, sqlite, postgres,
// mysql or mssql.
type StorageConfig struct {
	Kind          string `yaml:"kind"`
	DSN           string `yaml:"dsn"`
	RecordsTable  string `yaml:"records_table"`
	FailuresTable string `yaml:"failures_table"`
	BatchSize     int    `yaml:"batch_size"`
}

// Default returns a configuration with every default applied.
func Default() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// Load reads, expands, decodes, defaults and lints the file at path. An empty
// path yields Default(). Lint warnings are returned alongside a nil error.
func Load(path string) (Config, []Issue, error) {
	if path == "" {
		c := Default()
		return c, Lint(c), nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse is Load over an already opened source.
func Parse(r io.Reader) (Config, []Issue, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, nil, fmt.Errorf("config: read: %w", err)
	}
	data = expandEnvVars(data)

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.ApplyDefaults()

	issues := Lint(cfg)
	var errs []error
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			errs = append(errs, iss)
		}
	}
	if len(errs) > 0 {
		return Config{}, issues, fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return cfg, issues, nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Job == "" {
		c.Job = "normalize"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "local"
	}
	if c.Topic.AnchorSource == "" {
		c.Topic.AnchorSource = string(records.SourceDocument)
	}

	vd := validator.DefaultOptions()
	if c.Validator.MaxCollectedIssues <= 0 {
		c.Validator.MaxCollectedIssues = vd.MaxCollectedIssues
	}
	if c.Validator.MaxReportedIssues <= 0 {
		c.Validator.MaxReportedIssues = vd.MaxReportedIssues
	}
	if c.Validator.MaxTextLength <= 0 {
		c.Validator.MaxTextLength = vd.MaxTextLength
	}
	if c.Validator.PhoneMinDigits <= 0 {
		c.Validator.PhoneMinDigits = vd.PhoneMinDigits
	}
	if c.Validator.PhoneMaxDigits <= 0 {
		c.Validator.PhoneMaxDigits = vd.PhoneMaxDigits
	}

	rd := rules.DefaultOptions()
	if c.Rules.MinDocumentLength <= 0 {
		c.Rules.MinDocumentLength = rd.MinDocumentLength
	}
	if c.Rules.MinConfidence == 0 {
		c.Rules.MinConfidence = rd.MinConfidence
	}
	if c.Rules.SummaryMinLength <= 0 {
		c.Rules.SummaryMinLength = rd.SummaryMinLength
	}

	if c.Metrics.Backend == "" {
		c.Metrics.Backend = "none"
	}
	if c.Storage.Kind == "" {
		c.Storage.Kind = "none"
	}
	if c.Storage.RecordsTable == "" {
		c.Storage.RecordsTable = "normalized_records"
	}
	if c.Storage.FailuresTable == "" {
		c.Storage.FailuresTable = "record_findings"
	}
	if c.Storage.BatchSize <= 0 {
		c.Storage.BatchSize = 500
	}
}

// AnchorSource returns the parsed anchor source type.
func (c Config) AnchorSource() records.SourceType {
	st, _ := records.ParseSourceType(c.Topic.AnchorSource)
	return st
}

func (c Config) ValidatorOptions() validator.Options {
	return validator.Options{
		MaxCollectedIssues: c.Validator.MaxCollectedIssues,
		MaxReportedIssues:  c.Validator.MaxReportedIssues,
		MaxTextLength:      c.Validator.MaxTextLength,
		PhoneMinDigits:     c.Validator.PhoneMinDigits,
		PhoneMaxDigits:     c.Validator.PhoneMaxDigits,
	}
}

func (c Config) RulesOptions() rules.Options {
	return rules.Options{
		MinDocumentLength: c.Rules.MinDocumentLength,
		MinConfidence:     c.Rules.MinConfidence,
		SummaryMinLength:  c.Rules.SummaryMinLength,
		BannedPreambles:   c.Rules.BannedPreambles,
	}
}

func (c Config) InferenceOptions() semantic.Options {
	return semantic.Options{StrictShapes: c.Inference.StrictShapes}
}

// CleanerOptions shares the phone range with the validator.
func (c Config) CleanerOptions() cleaner.Options {
	return cleaner.Options{
		FillerWords:    c.Cleaner.FillerWords,
		Abbreviations:  c.Cleaner.Abbreviations,
		DefaultSpeaker: c.Cleaner.DefaultSpeaker,
		DefaultUserID:  c.Cleaner.DefaultUserID,
		PhoneMinDigits: c.Validator.PhoneMinDigits,
		PhoneMaxDigits: c.Validator.PhoneMaxDigits,
	}
}

// envVarRegex matches ${VAR} and ${VAR:-default}.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		name, def, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(strings.TrimSpace(name))
		if val == "" && hasDefault {
			val = def
		}
		return []byte(val)
	})
}
