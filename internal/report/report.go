// Package report flattens batch results into an error report and renders
// reports as JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"recordnorm/internal/batch"
	"recordnorm/internal/rules"
	"recordnorm/internal/severity"
)

// Entry is one finding attributed to its file and record.
type Entry struct {
	File        string         `json:"file"`
	RecordID    string         `json:"record_id"`
	RecordIndex int            `json:"record_index"`
	Status      batch.Status   `json:"status"`
	Severity    severity.Level `json:"severity"`
	Code        rules.Code     `json:"code"`
	Message     string         `json:"message"`
	Suggestion  string         `json:"suggestion,omitempty"`
}

// ErrorReport lists every finding of a batch. It carries no timestamps, so
// the same batch always renders the same bytes.
type ErrorReport struct {
	Summary batch.Summary     `json:"summary"`
	Files   []batch.FileState `json:"files"`
	Entries []Entry           `json:"entries"`
	// BySeverity counts entries per severity name.
	BySeverity map[string]int `json:"by_severity"`
	// ByCode counts entries per finding code.
	ByCode map[string]int `json:"by_code"`
}

// FromBatch builds the report. Entries follow input order and, within a
// record, the order the findings were raised. Findings on records that
// still succeeded are included as warnings.
func FromBatch(res batch.Result) ErrorReport {
	rep := ErrorReport{
		Summary:    res.Summary,
		Files:      res.Files,
		Entries:    []Entry{},
		BySeverity: map[string]int{},
		ByCode:     map[string]int{},
	}
	if rep.Files == nil {
		rep.Files = []batch.FileState{}
	}
	for _, o := range res.Outcomes {
		for _, f := range o.Findings {
			rep.Entries = append(rep.Entries, Entry{
				File:        o.File,
				RecordID:    o.RecordID,
				RecordIndex: o.Index,
				Status:      o.Status,
				Severity:    f.Severity,
				Code:        f.Code,
				Message:     f.Message,
				Suggestion:  f.Suggestion,
			})
			rep.BySeverity[f.Severity.String()]++
			rep.ByCode[string(f.Code)]++
		}
	}
	return rep
}

// Filter returns the entries at min severity or worse.
func (r ErrorReport) Filter(min severity.Level) []Entry {
	out := make([]Entry, 0, len(r.Entries))
	for _, e := range r.Entries {
		if e.Severity.AtLeast(min) {
			out = append(out, e)
		}
	}
	return out
}

// WriteJSON renders v with two-space indentation and a trailing newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}
