// Package cleaner normalizes records before they are validated.
//
// TextCleaner runs the free-text pipeline over UnifiedRecords: an ordered
// chain of text steps, metadata enrichment, then keep-first deduplication.
// TableCleaner coerces tabular rows per semantic type and drops rows whose
// identifier is missing or repeated.
//
// Both cleaners are idempotent: cleaning already cleaned output changes
// nothing and increments no fix counter.
package cleaner

import (
	"errors"
	"sort"
)

// ErrInvalidMapping is returned when a field or semantic mapping is
// malformed.
var ErrInvalidMapping = errors.New("cleaner: invalid mapping")

// Fix counter names.
const (
	FixHeadersRemoved        = "headers_removed"
	FixPageMarkersRemoved    = "page_markers_removed"
	FixTimestampsRemoved     = "timestamps_removed"
	FixFillerWordsRemoved    = "filler_words_removed"
	FixOCRCorrections        = "ocr_corrections"
	FixAbbreviationsExpanded = "abbreviations_expanded"
	FixSentenceCase          = "sentence_case_applied"
	FixCapitalization        = "capitalization_fixed"
	FixWhitespace            = "whitespace_normalized"
	FixMetadataEnriched      = "metadata_enriched"
	FixContentTypeInferred   = "content_type_inferred"
	FixDuplicatesRemoved     = "duplicates_removed"

	FixNamesNormalized          = "names_normalized"
	FixEmailsNormalized         = "emails_normalized"
	FixEmailsNullified          = "emails_nullified"
	FixPhonesNormalized         = "phones_normalized"
	FixPhonesNullified          = "phones_nullified"
	FixDatesReformatted         = "dates_reformatted"
	FixDatesNullified           = "dates_nullified"
	FixAmountsNormalized        = "amounts_normalized"
	FixAmountsNullified         = "amounts_nullified"
	FixNegativeAmountsNullified = "negative_amounts_nullified"
	FixBooleansCoerced          = "booleans_coerced"
	FixBooleansNullified        = "booleans_nullified"
	FixValuesTrimmed            = "values_trimmed"
	FixMissingIdentifierDropped = "missing_identifier_dropped"
	FixDuplicateIdentifierDrop  = "duplicate_identifier_dropped"
	FixCriticalRowsDropped      = "critical_rows_dropped"
)

// Fixes counts applied fixes by category.
type Fixes map[string]int

func (f Fixes) inc(key string, n int) {
	if n > 0 {
		f[key] += n
	}
}

// Add merges other into f.
func (f Fixes) Add(other Fixes) {
	for k, n := range other {
		f.inc(k, n)
	}
}

// Total sums every counter.
func (f Fixes) Total() int {
	n := 0
	for _, v := range f {
		n += v
	}
	return n
}

// Keys returns the counter names in sorted order.
func (f Fixes) Keys() []string {
	out := make([]string, 0, len(f))
	for k := range f {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Stats summarises one cleaning pass.
type Stats struct {
	Initial         int   `json:"initial"`
	AfterValidation int   `json:"after_validation"`
	AfterCleaning   int   `json:"after_cleaning"`
	Dropped         int   `json:"dropped"`
	Fixes           Fixes `json:"fixes"`
}

// Options configure both cleaners. Empty fields take the defaults.
type Options struct {
	FillerWords    []string
	Abbreviations  map[string]string
	DefaultSpeaker string
	DefaultUserID  string
	PhoneMinDigits int
	PhoneMaxDigits int
}

func DefaultOptions() Options {
	return Options{
		FillerWords: []string{
			"um", "uh", "uhm", "erm", "hmm", "you know", "i mean",
			"basically", "sort of", "kind of", "literally",
		},
		Abbreviations: map[string]string{
			"vs":      "versus",
			"vs.":     "versus",
			"e.g.":    "for example",
			"i.e.":    "that is",
			"etc.":    "and so on",
			"approx.": "approximately",
			"H2O":     "water",
			"CO2":     "carbon dioxide",
			"NaCl":    "sodium chloride",
			"km/h":    "kilometers per hour",
			"m/s":     "meters per second",
		},
		DefaultSpeaker: "Speaker 1",
		DefaultUserID:  "anonymous",
		PhoneMinDigits: 7,
		PhoneMaxDigits: 15,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if len(o.FillerWords) == 0 {
		o.FillerWords = d.FillerWords
	}
	if len(o.Abbreviations) == 0 {
		o.Abbreviations = d.Abbreviations
	}
	if o.DefaultSpeaker == "" {
		o.DefaultSpeaker = d.DefaultSpeaker
	}
	if o.DefaultUserID == "" {
		o.DefaultUserID = d.DefaultUserID
	}
	if o.PhoneMinDigits <= 0 {
		o.PhoneMinDigits = d.PhoneMinDigits
	}
	if o.PhoneMaxDigits <= 0 {
		o.PhoneMaxDigits = d.PhoneMaxDigits
	}
	return o
}
