// Package records defines the data model shared by every pipeline stage:
// the UnifiedRecord produced by ingestion adapters, the tagged scalar Value
// used for tabular rows, and the column analysis handed in by upstream scanners.
package records

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SourceType identifies the ingestion adapter a record came from.
type SourceType string

const (
	SourceDocument SourceType = "document"
	SourceAudio    SourceType = "audio"
	SourceImage    SourceType = "image"
	SourceAPI      SourceType = "api"
	SourceChat     SourceType = "chat"
	SourceTabular  SourceType = "tabular"
	SourceLog      SourceType = "log"
	SourceText     SourceType = "text"
)

// SourceTypes lists every known source type in declaration order.
func SourceTypes() []SourceType {
	return []SourceType{
		SourceDocument, SourceAudio, SourceImage, SourceAPI,
		SourceChat, SourceTabular, SourceLog, SourceText,
	}
}

// Valid reports whether s is one of the closed set of source types.
func (s SourceType) Valid() bool {
	for _, k := range SourceTypes() {
		if s == k {
			return true
		}
	}
	return false
}

// IsStructured reports whether records of this source carry machine-readable
// payloads that text cleaning must not touch.
func (s SourceType) IsStructured() bool {
	switch s {
	case SourceAPI, SourceTabular, SourceLog:
		return true
	}
	return false
}

// ParseSourceType parses a source type case-insensitively. "json" is accepted
// as an alias of api.
func ParseSourceType(s string) (SourceType, bool) {
	v := SourceType(strings.ToLower(strings.TrimSpace(s)))
	if v == "json" {
		return SourceAPI, true
	}
	return v, v.Valid()
}

// ContentType is a secondary classification of a record's payload. The
// constants below are the values adapters emit; other values are allowed.
type ContentType string

const (
	ContentExplanation ContentType = "explanation"
	ContentQuestion    ContentType = "question"
	ContentLogEntry    ContentType = "log_entry"
	ContentNote        ContentType = "note"
	ContentMessage     ContentType = "message"
	ContentData        ContentType = "data"
)

// Metadata is the typed core of a record's metadata bag. Anything adapters
// supply beyond these fields goes into Extra.
type Metadata struct {
	FileName       string           `json:"file_name,omitempty"`
	PageNumber     int              `json:"page_number,omitempty"`
	Section        string           `json:"section,omitempty"`
	Timestamp      string           `json:"timestamp,omitempty"`
	TimestampRange string           `json:"timestamp_range,omitempty"`
	Speaker        string           `json:"speaker,omitempty"`
	Confidence     *float64         `json:"confidence,omitempty"`
	UserID         string           `json:"user_id,omitempty"`
	EventType      string           `json:"event_type,omitempty"`
	Extra          map[string]Value `json:"extra,omitempty"`
}

// Clone returns a deep copy of m.
func (m Metadata) Clone() Metadata {
	out := m
	if m.Confidence != nil {
		c := *m.Confidence
		out.Confidence = &c
	}
	if m.Extra != nil {
		out.Extra = make(map[string]Value, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// UnifiedRecord is the canonical unit that flows through the pipeline.
//
// ID, SourceType, RawContent and CreatedAt are fixed by ingestion. GroupID and
// Topic are filled by the topic linker; StructuredContent and Metadata are
// rewritten by the cleaner.
type UnifiedRecord struct {
	ID                string      `json:"id"`
	GroupID           string      `json:"group_id"`
	Topic             string      `json:"topic"`
	SourceType        SourceType  `json:"source_type"`
	ContentType       ContentType `json:"content_type,omitempty"`
	StructuredContent string      `json:"structured_content"`
	RawContent        string      `json:"raw_content,omitempty"`
	Metadata          Metadata    `json:"metadata"`
	CreatedAt         time.Time   `json:"created_at"`
}

// New builds a record with a fresh id and a UTC creation timestamp.
func New(src SourceType, ct ContentType, content string) UnifiedRecord {
	return UnifiedRecord{
		ID:                uuid.NewString(),
		SourceType:        src,
		ContentType:       ct,
		StructuredContent: content,
		CreatedAt:         time.Now().UTC(),
	}
}

// Clone returns an independent copy of r.
func (r UnifiedRecord) Clone() UnifiedRecord {
	out := r
	out.Metadata = r.Metadata.Clone()
	return out
}

// CloneAll copies every record in recs.
func CloneAll(recs []UnifiedRecord) []UnifiedRecord {
	out := make([]UnifiedRecord, len(recs))
	for i := range recs {
		out[i] = recs[i].Clone()
	}
	return out
}
