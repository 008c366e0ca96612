package cleaner

import (
	"regexp"
	"strings"

	"recordnorm/pkg/records"
)

// TextCleaner runs the free-text pipeline. It holds only compiled,
// read-only state and may be shared.
type TextCleaner struct {
	opts  Options
	chain stepChain
}

func NewTextCleaner(opts Options) *TextCleaner {
	opts = opts.withDefaults()
	return &TextCleaner{
		opts: opts,
		chain: stepChain{
			patternStrip{key: FixHeadersRemoved, re: headerRe},
			patternStrip{key: FixPageMarkersRemoved, re: pageRe},
			patternStrip{key: FixTimestampsRemoved, re: stampRe, skip: skipStampsFor},
			patternStrip{key: FixFillerWordsRemoved, re: fillerPattern(opts.FillerWords)},
			substitutions{key: FixOCRCorrections, subs: ocrFixes, only: isScanned},
			substitutions{key: FixAbbreviationsExpanded, subs: abbreviationSubs(opts.Abbreviations)},
			casingStep{},
			whitespaceStep{},
		},
	}
}

// CleanRecord returns a cleaned copy of rec and the fixes applied to it.
// Structural records keep their content and only get metadata defaults.
func (c *TextCleaner) CleanRecord(rec records.UnifiedRecord) (records.UnifiedRecord, Fixes) {
	out := rec.Clone()
	fx := Fixes{}
	original := out.StructuredContent
	structural := isStructural(out)

	if !structural {
		out.StructuredContent = c.chain.run(out.StructuredContent, out.SourceType, fx)
	}
	c.enrich(&out, original, fx)
	if out.ContentType == "" {
		out.ContentType = inferContentType(out, structural)
		fx.inc(FixContentTypeInferred, 1)
	}
	return out, fx
}

// Clean cleans every record and then drops duplicates, keeping the first.
func (c *TextCleaner) Clean(recs []records.UnifiedRecord) ([]records.UnifiedRecord, Stats) {
	st := Stats{Initial: len(recs), Fixes: Fixes{}}
	cleaned := make([]records.UnifiedRecord, len(recs))
	for i, r := range recs {
		var fx Fixes
		cleaned[i], fx = c.CleanRecord(r)
		st.Fixes.Add(fx)
	}
	kept, dropped := c.Dedup(cleaned)
	st.Fixes.inc(FixDuplicatesRemoved, len(dropped))
	st.AfterCleaning = len(kept)
	st.AfterValidation = len(kept)
	st.Dropped = len(dropped)
	return kept, st
}

var sectionRe = regexp.MustCompile(`(?i)\b(section|part|chapter)\s+(\d+|[ivxlc]+)\b`)

// enrich fills source-specific metadata defaults. Values already present are
// never overwritten.
func (c *TextCleaner) enrich(rec *records.UnifiedRecord, original string, fx Fixes) {
	md := &rec.Metadata
	changed := false
	set := func(field *string, v string) {
		if *field == "" && v != "" {
			*field = v
			changed = true
		}
	}

	switch rec.SourceType {
	case records.SourceDocument:
		set(&md.FileName, "unknown")
		if md.PageNumber == 0 {
			md.PageNumber = 1
			changed = true
		}
		if m := sectionRe.FindStringSubmatch(original); m != nil {
			set(&md.Section, strings.ToUpper(m[1][:1])+strings.ToLower(m[1][1:])+" "+strings.ToUpper(m[2]))
		}
	case records.SourceAudio:
		set(&md.FileName, "unknown")
		set(&md.Speaker, c.opts.DefaultSpeaker)
		if md.Timestamp != "" {
			set(&md.TimestampRange, md.Timestamp)
		}
		set(&md.TimestampRange, "unknown")
	case records.SourceAPI, records.SourceChat:
		set(&md.UserID, c.opts.DefaultUserID)
		set(&md.EventType, eventType(rec.StructuredContent))
	}
	if changed {
		fx.inc(FixMetadataEnriched, 1)
	}
}

func eventType(content string) string {
	lower := strings.ToLower(content)
	switch {
	case strings.Contains(lower, "error"):
		return "error"
	case strings.Contains(lower, "warning"):
		return "warning"
	case strings.Contains(lower, "?"):
		return "question"
	}
	return "message"
}

func inferContentType(rec records.UnifiedRecord, structural bool) records.ContentType {
	switch {
	case rec.SourceType == records.SourceLog:
		return records.ContentLogEntry
	case structural:
		return records.ContentData
	case strings.HasSuffix(strings.TrimSpace(rec.StructuredContent), "?"):
		return records.ContentQuestion
	case rec.SourceType == records.SourceChat:
		return records.ContentMessage
	case rec.SourceType == records.SourceText:
		return records.ContentNote
	}
	return records.ContentExplanation
}
