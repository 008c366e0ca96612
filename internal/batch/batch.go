// Package batch runs the record pipeline over one in-memory batch: topic
// linking, free-text cleaning with deduplication, then record-level rule
// checks with a file-scoped abort.
//
// Per-record problems never surface as Go errors. They end up as findings on
// the failed records of the Result. Run only returns an error when the
// context is cancelled between stages.
package batch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"recordnorm/internal/cleaner"
	"recordnorm/internal/logger"
	"recordnorm/internal/metrics"
	"recordnorm/internal/rules"
	"recordnorm/internal/semantic"
	"recordnorm/internal/topic"
	"recordnorm/internal/validator"
	"recordnorm/pkg/records"
)

// UnknownFile groups records without a file name.
const UnknownFile = "unknown"

// Status is the outcome of one input record.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusDuplicate Status = "duplicate"
)

// Outcome describes what happened to the input record at Index.
type Outcome struct {
	Index    int             `json:"index"`
	RecordID string          `json:"record_id"`
	File     string          `json:"file"`
	Status   Status          `json:"status"`
	Findings []rules.Finding `json:"findings,omitempty"`
}

// FailedRecord is a record that did not pass, with its findings.
type FailedRecord struct {
	File     string                `json:"file"`
	Index    int                   `json:"index"`
	Record   records.UnifiedRecord `json:"record"`
	Findings []rules.Finding       `json:"findings"`
}

// Summary counts outcomes. Total is the input length and equals
// Success + Failed + Duplicates.
type Summary struct {
	Total      int `json:"total"`
	Success    int `json:"success"`
	Failed     int `json:"failed"`
	Warnings   int `json:"warnings"`
	Duplicates int `json:"duplicates"`
}

// FileState reports how processing of one source file ended.
type FileState struct {
	Name    string `json:"name"`
	Records int    `json:"records"`
	Failed  int    `json:"failed"`
	Aborted bool   `json:"aborted"`
	// AbortedBy is the id of the record whose critical finding aborted the file.
	AbortedBy string `json:"aborted_by,omitempty"`
}

// Result is everything one Run produces.
type Result struct {
	Successful []records.UnifiedRecord `json:"successful"`
	Failed     []FailedRecord          `json:"failed"`
	Outcomes   []Outcome               `json:"outcomes"`
	Files      []FileState             `json:"files"`
	Summary    Summary                 `json:"summary"`
	Cleaning   cleaner.Stats           `json:"cleaning"`
	Topics     []string                `json:"topics"`
}

// Orchestrator wires the pipeline stages. The linker's registry is its only
// per-batch state; Run resets it, so one Orchestrator serves one batch at a
// time.
type Orchestrator struct {
	linker *topic.Linker
	text   *cleaner.TextCleaner
	rules  *rules.Validator

	table     *cleaner.TableCleaner
	validator *validator.Validator
	infer     semantic.Options

	log *zap.Logger
	job string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. nil keeps the no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.log = logger.OrNop(l) }
}

// WithJob names the job in metrics and logs.
func WithJob(job string) Option {
	return func(o *Orchestrator) {
		if job != "" {
			o.job = job
		}
	}
}

// WithTable sets the tabular cleaner and field validator used by RunTable.
func WithTable(tc *cleaner.TableCleaner, v *validator.Validator) Option {
	return func(o *Orchestrator) {
		if v != nil {
			o.validator = v
		}
		if tc != nil {
			o.table = tc
		}
	}
}

// WithInference sets the options RunTable infers column types with.
func WithInference(opts semantic.Options) Option {
	return func(o *Orchestrator) { o.infer = opts }
}

// New builds an orchestrator. nil stages get default instances.
func New(linker *topic.Linker, text *cleaner.TextCleaner, rv *rules.Validator, opts ...Option) *Orchestrator {
	if linker == nil {
		linker = topic.NewLinker(nil, "")
	}
	if text == nil {
		text = cleaner.NewTextCleaner(cleaner.DefaultOptions())
	}
	if rv == nil {
		rv = rules.New(rules.DefaultOptions())
	}
	o := &Orchestrator{
		linker: linker,
		text:   text,
		rules:  rv,
		log:    zap.NewNop(),
		job:    "normalize",
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.validator == nil {
		o.validator = validator.New(validator.DefaultOptions())
	}
	if o.table == nil {
		o.table = cleaner.NewTableCleaner(cleaner.DefaultOptions(), o.validator)
	}
	return o
}

// Run processes one batch. Files are handled in the order they first appear
// and records within a file in input order; successful and failed records
// come back in input order.
func (o *Orchestrator) Run(ctx context.Context, recs []records.UnifiedRecord) (Result, error) {
	res := Result{
		Successful: []records.UnifiedRecord{},
		Failed:     []FailedRecord{},
		Outcomes:   make([]Outcome, len(recs)),
	}

	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("batch: before linking: %w", err)
	}
	start := time.Now()
	o.linker.Registry.Reset()
	linked := o.linker.Link(recs)
	metrics.RecordStep(o.job, "link", nil, time.Since(start))

	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("batch: before cleaning: %w", err)
	}
	start = time.Now()
	items, stats := o.clean(linked)
	res.Cleaning = stats
	metrics.RecordStep(o.job, "clean", nil, time.Since(start))
	metrics.RecordFixes(o.job, stats.Fixes)

	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("batch: before validation: %w", err)
	}
	start = time.Now()
	res.Files = o.validate(items)
	metrics.RecordStep(o.job, "validate", nil, time.Since(start))

	for i, it := range items {
		out := Outcome{
			Index:    i,
			RecordID: it.rec.ID,
			File:     it.file,
			Status:   it.status,
			Findings: it.findings,
		}
		res.Outcomes[i] = out
		switch it.status {
		case StatusSuccess:
			res.Successful = append(res.Successful, it.rec)
			res.Summary.Success++
			if len(it.findings) > 0 {
				res.Summary.Warnings++
			}
		case StatusFailed:
			res.Failed = append(res.Failed, FailedRecord{File: it.file, Index: i, Record: it.rec, Findings: it.findings})
			res.Summary.Failed++
		case StatusDuplicate:
			res.Summary.Duplicates++
		}
	}
	res.Summary.Total = len(recs)
	res.Cleaning.AfterValidation = res.Summary.Success
	res.Topics = o.linker.Registry.Topics()

	o.recordSummary(res.Summary)
	o.log.Info("batch processed",
		zap.String("job", o.job),
		zap.Int("total", res.Summary.Total),
		zap.Int("success", res.Summary.Success),
		zap.Int("failed", res.Summary.Failed),
		zap.Int("warnings", res.Summary.Warnings),
		zap.Int("duplicates", res.Summary.Duplicates),
		zap.Int("files", len(res.Files)),
	)
	return res, nil
}

func (o *Orchestrator) recordSummary(s Summary) {
	metrics.RecordRow(o.job, "total", int64(s.Total))
	metrics.RecordRow(o.job, "success", int64(s.Success))
	metrics.RecordRow(o.job, "failed", int64(s.Failed))
	metrics.RecordRow(o.job, "warnings", int64(s.Warnings))
	metrics.RecordRow(o.job, "duplicates", int64(s.Duplicates))
}

// TableInput is one tabular dataset. Mapping, when set, replaces inference
// and is keyed by source column.
type TableInput struct {
	Rows     []records.Row
	Columns  []records.ColumnAnalysis
	FieldMap map[string]string
	Mapping  semantic.Mapping
}

// TableResult holds the reports of one tabular run.
type TableResult struct {
	Columns  []records.ColumnAnalysis `json:"columns"`
	Mapping  semantic.Mapping         `json:"mapping"`
	Raw      validator.Report         `json:"raw_validation"`
	Cleaning cleaner.TableReport      `json:"cleaning"`
}

// RunTable infers semantic types for the source columns, validates the raw
// rows and cleans them. A malformed field map is returned as an error
// wrapping cleaner.ErrInvalidMapping.
func (o *Orchestrator) RunTable(ctx context.Context, in TableInput) (TableResult, error) {
	if err := ctx.Err(); err != nil {
		return TableResult{}, fmt.Errorf("batch: before inference: %w", err)
	}
	start := time.Now()
	res := TableResult{Columns: in.Columns, Mapping: in.Mapping}
	if len(res.Columns) == 0 {
		res.Columns = semantic.AnalyzeColumns(in.Rows, nil)
	}
	if len(res.Mapping) == 0 {
		res.Mapping = inferMapping(in.Rows, res.Columns, o.infer)
	}
	metrics.RecordStep(o.job, "infer", nil, time.Since(start))

	if err := ctx.Err(); err != nil {
		return TableResult{}, fmt.Errorf("batch: before validation: %w", err)
	}
	start = time.Now()
	res.Raw = o.validator.Validate(in.Rows, res.Mapping)
	metrics.RecordStep(o.job, "validate", nil, time.Since(start))

	if err := ctx.Err(); err != nil {
		return TableResult{}, fmt.Errorf("batch: before cleaning: %w", err)
	}
	start = time.Now()
	rep, err := o.table.Clean(in.Rows, in.FieldMap, res.Mapping)
	metrics.RecordStep(o.job, "table_clean", err, time.Since(start))
	if err != nil {
		return TableResult{}, fmt.Errorf("batch: clean table: %w", err)
	}
	res.Cleaning = rep
	metrics.RecordFixes(o.job, rep.Stats.Fixes)
	metrics.RecordRow(o.job, "rows_in", int64(rep.Stats.Initial))
	metrics.RecordRow(o.job, "rows_out", int64(rep.Stats.AfterCleaning))

	o.log.Info("table processed",
		zap.String("job", o.job),
		zap.Int("rows", rep.Stats.Initial),
		zap.Int("kept", rep.Stats.AfterCleaning),
		zap.Int("dropped", rep.Stats.Dropped),
		zap.Int("raw_score", res.Raw.Score),
		zap.Int("clean_score", rep.Validation.Score),
	)
	return res, nil
}

// inferMapping uses row values where a column has any, and the analysis
// samples otherwise.
func inferMapping(rows []records.Row, cols []records.ColumnAnalysis, opts semantic.Options) semantic.Mapping {
	m := semantic.InferMappingWith(rows, nil, opts)
	for _, c := range cols {
		if hasValues(rows, c.Name) {
			continue
		}
		m[c.Name] = semantic.InferWith(c.Name, c.Samples, opts)
	}
	return m
}

func hasValues(rows []records.Row, col string) bool {
	for _, r := range rows {
		if !r.Get(col).IsEmpty() {
			return true
		}
	}
	return false
}
