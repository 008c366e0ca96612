// Package parser decodes command-line inputs: JSON or NDJSON record files
// and CSV tables.
package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"recordnorm/pkg/records"
)

// ErrUnsupportedInput is returned for input that is well-formed but cannot be
// mapped onto records, such as an unknown source type.
var ErrUnsupportedInput = errors.New("parser: unsupported input")

// utf8BOM is skipped at the start of any input.
const utf8BOM = "\uFEFF"

// wireRecord is the on-disk shape of a record. "content" is accepted as an
// alias of structured_content.
type wireRecord struct {
	ID                string          `json:"id"`
	GroupID           string          `json:"group_id"`
	Topic             string          `json:"topic"`
	SourceType        string          `json:"source_type"`
	ContentType       string          `json:"content_type"`
	StructuredContent *string         `json:"structured_content"`
	Content           *string         `json:"content"`
	RawContent        string          `json:"raw_content"`
	Metadata          json.RawMessage `json:"metadata"`
	CreatedAt         *time.Time      `json:"created_at"`
}

var knownMetadata = map[string]struct{}{
	"file_name": {}, "page_number": {}, "section": {}, "timestamp": {},
	"timestamp_range": {}, "speaker": {}, "confidence": {}, "user_id": {},
	"event_type": {}, "extra": {},
}

// DecodeRecords reads a JSON array of records, a single record object, or a
// stream of newline-delimited record objects. Records without an id get a
// fresh uuid, records without a file name get fileName, and records without
// created_at get the decode time.
func DecodeRecords(r io.Reader, fileName string) ([]records.UnifiedRecord, error) {
	br := bufio.NewReader(r)
	if err := skipBOM(br); err != nil {
		return nil, err
	}

	var wires []wireRecord
	first, err := peekNonSpace(br)
	switch {
	case err == io.EOF:
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("parser: read %s: %w", fileName, err)
	}

	dec := json.NewDecoder(br)
	dec.UseNumber()
	if first == '[' {
		if err := dec.Decode(&wires); err != nil {
			return nil, fmt.Errorf("parser: decode %s: %w", fileName, err)
		}
		if dec.More() {
			return nil, fmt.Errorf("parser: decode %s: trailing data after array", fileName)
		}
	} else {
		for {
			var w wireRecord
			if err := dec.Decode(&w); err != nil {
				if err == io.EOF {
					break
				}
				return nil, fmt.Errorf("parser: decode %s record %d: %w", fileName, len(wires), err)
			}
			wires = append(wires, w)
		}
	}

	now := time.Now().UTC()
	out := make([]records.UnifiedRecord, 0, len(wires))
	for i, w := range wires {
		rec, err := w.toRecord(fileName, now)
		if err != nil {
			return nil, fmt.Errorf("%s record %d: %w", fileName, i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (w wireRecord) toRecord(fileName string, now time.Time) (records.UnifiedRecord, error) {
	src, ok := records.ParseSourceType(w.SourceType)
	if !ok {
		return records.UnifiedRecord{}, fmt.Errorf("%w: source type %q", ErrUnsupportedInput, w.SourceType)
	}
	meta, err := decodeMetadata(w.Metadata)
	if err != nil {
		return records.UnifiedRecord{}, err
	}

	rec := records.UnifiedRecord{
		ID:          strings.TrimSpace(w.ID),
		GroupID:     w.GroupID,
		Topic:       w.Topic,
		SourceType:  src,
		ContentType: records.ContentType(w.ContentType),
		RawContent:  w.RawContent,
		Metadata:    meta,
		CreatedAt:   now,
	}
	switch {
	case w.StructuredContent != nil:
		rec.StructuredContent = *w.StructuredContent
	case w.Content != nil:
		rec.StructuredContent = *w.Content
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Metadata.FileName == "" {
		rec.Metadata.FileName = fileName
	}
	if w.CreatedAt != nil {
		rec.CreatedAt = w.CreatedAt.UTC()
	}
	return rec, nil
}

// decodeMetadata fills the typed fields and keeps every other key in Extra.
func decodeMetadata(raw json.RawMessage) (records.Metadata, error) {
	var m records.Metadata
	if len(raw) == 0 || string(raw) == "null" {
		return m, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return m, fmt.Errorf("%w: metadata: %v", ErrUnsupportedInput, err)
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(raw, &all); err != nil {
		return m, fmt.Errorf("%w: metadata: %v", ErrUnsupportedInput, err)
	}
	for k, v := range all {
		if _, ok := knownMetadata[k]; ok {
			continue
		}
		var val records.Value
		if err := json.Unmarshal(v, &val); err != nil {
			return m, fmt.Errorf("%w: metadata %s: %v", ErrUnsupportedInput, k, err)
		}
		if m.Extra == nil {
			m.Extra = map[string]records.Value{}
		}
		m.Extra[k] = val
	}
	return m, nil
}

func skipBOM(br *bufio.Reader) error {
	b, err := br.Peek(len(utf8BOM))
	if err != nil && err != io.EOF && !errors.Is(err, bufio.ErrBufferFull) {
		return err
	}
	if bytes.Equal(b, []byte(utf8BOM)) {
		_, err = br.Discard(len(utf8BOM))
		return err
	}
	return nil
}

// peekNonSpace discards leading whitespace and returns the next byte
// without consuming it.
func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}
