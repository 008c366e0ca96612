// Package rules checks whole records for structural and content problems.
//
// Each Finding carries a severity.Level. Two questions are kept apart:
// HasFindings reports whether anything at all was found, IsAcceptable whether
// the record may still pass (no HIGH or CRITICAL finding).
package rules

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"recordnorm/internal/severity"
	"recordnorm/pkg/records"
)

// Code identifies the rule that produced a finding.
type Code string

const (
	CodeEmptyContent      Code = "EMPTY_CONTENT"
	CodeMissingTopic      Code = "MISSING_TOPIC"
	CodeMissingGroupID    Code = "MISSING_GROUP_ID"
	CodeBannedPreamble    Code = "BANNED_PREAMBLE"
	CodeShortSummary      Code = "SHORT_SUMMARY"
	CodeMarkdownHeading   Code = "MARKDOWN_HEADING"
	CodeContentTooShort   Code = "CONTENT_TOO_SHORT"
	CodeLowConfidence     Code = "LOW_CONFIDENCE"
	CodeInvalidJSON       Code = "INVALID_JSON"
	CodeSelfDeclaredTopic Code = "SELF_DECLARED_TOPIC"

	// Raised by the batch orchestrator, not by Check.
	CodeFileAborted     Code = "FILE_ABORTED"
	CodeProcessingError Code = "PROCESSING_ERROR"
)

type Finding struct {
	Code       Code           `json:"code"`
	Severity   severity.Level `json:"severity"`
	Message    string         `json:"message"`
	Suggestion string         `json:"suggestion,omitempty"`
}

// Result lists the findings for one record.
type Result struct {
	RecordID string    `json:"record_id"`
	Findings []Finding `json:"findings"`
}

// HasFindings reports whether any rule fired, whatever its severity.
func (r Result) HasFindings() bool { return len(r.Findings) > 0 }

// IsAcceptable reports whether no finding is HIGH or worse.
func (r Result) IsAcceptable() bool { return !r.MaxSeverity().AtLeast(severity.High) }

func (r Result) HasCritical() bool { return r.MaxSeverity() == severity.Critical }

// MaxSeverity returns the worst level found, or 0 without findings.
func (r Result) MaxSeverity() severity.Level {
	var m severity.Level
	for _, f := range r.Findings {
		m = severity.Max(m, f.Severity)
	}
	return m
}

// Options hold the thresholds used by the type-specific rules.
type Options struct {
	MinDocumentLength int
	MinConfidence     float64
	SummaryMinLength  int
	BannedPreambles   []string
}

func DefaultOptions() Options {
	return Options{
		MinDocumentLength: 50,
		MinConfidence:     0.7,
		SummaryMinLength:  500,
		BannedPreambles:   []string{"this audio", "the lecture", "in this audio", "in this lecture", "this recording"},
	}
}

type Validator struct {
	opts Options
}

// New builds a validator; zero thresholds take the defaults.
func New(opts Options) *Validator {
	d := DefaultOptions()
	if opts.MinDocumentLength <= 0 {
		opts.MinDocumentLength = d.MinDocumentLength
	}
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = d.MinConfidence
	}
	if opts.SummaryMinLength <= 0 {
		opts.SummaryMinLength = d.SummaryMinLength
	}
	if len(opts.BannedPreambles) == 0 {
		opts.BannedPreambles = d.BannedPreambles
	}
	preambles := make([]string, 0, len(opts.BannedPreambles))
	for _, p := range opts.BannedPreambles {
		preambles = append(preambles, strings.ToLower(strings.TrimSpace(p)))
	}
	opts.BannedPreambles = preambles
	return &Validator{opts: opts}
}

var headingRe = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s`)

// Check runs the general rules and the rules of the record's source type.
func (v *Validator) Check(rec records.UnifiedRecord) Result {
	res := Result{RecordID: rec.ID}
	add := func(code Code, lvl severity.Level, msg, hint string) {
		res.Findings = append(res.Findings, Finding{Code: code, Severity: lvl, Message: msg, Suggestion: hint})
	}

	content := strings.TrimSpace(rec.StructuredContent)
	if content == "" {
		add(CodeEmptyContent, severity.Critical, "record has no content", "check the ingestion adapter output for this file")
	}
	if strings.TrimSpace(rec.Topic) == "" {
		add(CodeMissingTopic, severity.High, "record has no topic", "run topic linking before validation")
	}
	if strings.TrimSpace(rec.GroupID) == "" {
		add(CodeMissingGroupID, severity.High, "record has no group id", "run topic linking before validation")
	}

	switch rec.SourceType {
	case records.SourceAudio:
		v.checkAudio(content, add)
	case records.SourceDocument:
		v.checkDocument(rec, content, add)
	case records.SourceAPI:
		checkPayload(rec, severity.High, add)
	case records.SourceTabular:
		checkPayload(rec, severity.Medium, add)
	}
	return res
}

type addFn func(code Code, lvl severity.Level, msg, hint string)

func (v *Validator) checkAudio(content string, add addFn) {
	lower := strings.ToLower(content)
	for _, p := range v.opts.BannedPreambles {
		if p != "" && strings.HasPrefix(lower, p) {
			add(CodeBannedPreamble, severity.High,
				fmt.Sprintf("transcript starts with banned preamble %q", p),
				"start with the subject matter, not a description of the recording")
			break
		}
	}
	if strings.Contains(lower, "summary") && utf8.RuneCountInString(content) < v.opts.SummaryMinLength {
		add(CodeShortSummary, severity.High,
			fmt.Sprintf("summary is shorter than %d characters", v.opts.SummaryMinLength),
			"provide the full transcript instead of a short summary")
	}
	if headingRe.MatchString(content) {
		add(CodeMarkdownHeading, severity.Medium, "transcript contains markdown headings", "remove formatting markers from transcripts")
	}
}

func (v *Validator) checkDocument(rec records.UnifiedRecord, content string, add addFn) {
	if content != "" && utf8.RuneCountInString(content) < v.opts.MinDocumentLength {
		add(CodeContentTooShort, severity.High,
			fmt.Sprintf("document content is shorter than %d characters", v.opts.MinDocumentLength),
			"check text extraction for this page")
	}
	if c := rec.Metadata.Confidence; c != nil && *c < v.opts.MinConfidence {
		add(CodeLowConfidence, severity.Medium,
			fmt.Sprintf("extraction confidence %.2f is below %.2f", *c, v.opts.MinConfidence),
			"review the OCR output manually")
	}
}

// checkPayload requires a JSON payload (raw content preferred). A payload
// that declares its own topic gets topicLevel.
func checkPayload(rec records.UnifiedRecord, topicLevel severity.Level, add addFn) {
	payload := rec.RawContent
	if strings.TrimSpace(payload) == "" {
		payload = rec.StructuredContent
	}
	if strings.TrimSpace(payload) == "" {
		return
	}
	var doc any
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		add(CodeInvalidJSON, severity.Critical, fmt.Sprintf("payload is not valid JSON: %v", err), "fix the payload at its source")
		return
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return
	}
	for _, k := range []string{"topic", "Topic"} {
		if _, ok := obj[k]; ok {
			add(CodeSelfDeclaredTopic, topicLevel,
				fmt.Sprintf("payload declares its own %q field", k),
				"drop the topic field; topics are assigned by linking")
			return
		}
	}
}
