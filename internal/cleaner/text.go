package cleaner

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"recordnorm/pkg/records"
)

// textStep rewrites record content and counts what it changed.
type textStep interface {
	apply(s string, src records.SourceType, fx Fixes) string
}

// stepChain is an ordered list of text steps.
type stepChain []textStep

func (c stepChain) apply(s string, src records.SourceType, fx Fixes) string {
	for _, st := range c {
		s = st.apply(s, src, fx)
	}
	return s
}

// maxPasses bounds how often the chain is re-run to reach a stable text.
const maxPasses = 4

// run applies the chain until the text stops changing, so that a step whose
// input was produced by a later step (a header exposed by filler removal,
// say) is still handled in the same call.
func (c stepChain) run(s string, src records.SourceType, fx Fixes) string {
	for i := 0; i < maxPasses; i++ {
		next := c.apply(s, src, fx)
		if next == s {
			break
		}
		s = next
	}
	return s
}

// patternStrip replaces every match with a space.
type patternStrip struct {
	key  string
	re   *regexp.Regexp
	skip func(records.SourceType) bool
}

func (p patternStrip) apply(s string, src records.SourceType, fx Fixes) string {
	if p.skip != nil && p.skip(src) {
		return s
	}
	n := len(p.re.FindAllStringIndex(s, -1))
	if n == 0 {
		return s
	}
	fx.inc(p.key, n)
	return p.re.ReplaceAllString(s, " ")
}

// substitution is one literal regex replacement.
type substitution struct {
	re   *regexp.Regexp
	repl string
}

// substitutions applies replacements in order, optionally only for some
// sources.
type substitutions struct {
	key  string
	subs []substitution
	only func(records.SourceType) bool
}

func (s substitutions) apply(text string, src records.SourceType, fx Fixes) string {
	if s.only != nil && !s.only(src) {
		return text
	}
	for _, sub := range s.subs {
		n := len(sub.re.FindAllStringIndex(text, -1))
		if n == 0 {
			continue
		}
		fx.inc(s.key, n)
		text = sub.re.ReplaceAllLiteralString(text, sub.repl)
	}
	return text
}

type casingStep struct{}

// apply lowers long all-caps text to sentence case, then capitalizes the
// first letter of every sentence.
func (casingStep) apply(s string, _ records.SourceType, fx Fixes) string {
	if isAllUpper(s) && utf8.RuneCountInString(s) > 10 {
		s = strings.ToLower(s)
		fx.inc(FixSentenceCase, 1)
	}

	var (
		b       strings.Builder
		atStart = true
		ended   = false
		fixed   int
	)
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			if ended {
				atStart = true
				ended = false
			}
		case atStart && unicode.IsLetter(r):
			if unicode.IsLower(r) {
				r = unicode.ToUpper(r)
				fixed++
			}
			atStart = false
		case r == '.' || r == '?' || r == '!':
			atStart = false
			ended = true
		default:
			atStart = false
			ended = false
		}
		b.WriteRune(r)
	}
	fx.inc(FixCapitalization, fixed)
	return b.String()
}

func isAllUpper(s string) bool {
	letters := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if unicode.IsLower(r) {
				return false
			}
			letters = true
		}
	}
	return letters
}

type whitespaceStep struct{}

func (whitespaceStep) apply(s string, _ records.SourceType, fx Fixes) string {
	out := collapseWhitespace(s)
	if out != s {
		fx.inc(FixWhitespace, 1)
	}
	return out
}

// collapseWhitespace turns every run of two or more whitespace runes into one
// space and trims. A lone newline or tab is left as it is.
func collapseWhitespace(s string) string {
	if s == "" {
		return s
	}
	var (
		b   strings.Builder
		run int
		ws  rune
	)
	b.Grow(len(s))
	flush := func() {
		switch {
		case run == 1:
			b.WriteRune(ws)
		case run > 1:
			b.WriteByte(' ')
		}
		run = 0
	}
	for _, r := range s {
		if unicode.IsSpace(r) {
			if run == 0 {
				ws = r
			}
			run++
			continue
		}
		flush()
		b.WriteRune(r)
	}
	flush()
	return strings.TrimSpace(b.String())
}

var (
	headerRe = regexp.MustCompile(`(?im)^[ \t]*(?:chapter|section|part)[ \t]+(?:\d+|[ivxlc]+)\b[.:]?[ \t]*$`)
	pageRe   = regexp.MustCompile(`(?im)^[ \t]*(?:page[ \t]+\d+(?:[ \t]+of[ \t]+\d+)?|-[ \t]*\d+[ \t]*-)[ \t]*$|\[[ \t]*page[ \t]+\d+[ \t]*\]`)
	stampRe  = regexp.MustCompile(`\[\d{1,2}:\d{2}(?::\d{2})?\]|\(\d{1,2}:\d{2}(?::\d{2})?\)|\b\d{1,2}:\d{2}:\d{2}\b`)
)

// ocrFixes are common OCR confusions, applied in order to documents and
// images.
var ocrFixes = []substitution{
	{regexp.MustCompile(`\b(?:tbe|teh|thc)\b`), "the"},
	{regexp.MustCompile(`\bIhe\b`), "The"},
	{regexp.MustCompile(`\bTbe\b`), "The"},
	{regexp.MustCompile(`\bwitb\b`), "with"},
	{regexp.MustCompile(`\b0f\b`), "of"},
	{regexp.MustCompile(`\bamd\b`), "and"},
	{regexp.MustCompile(`\bfrorn\b`), "from"},
	{regexp.MustCompile(`\bwbich\b`), "which"},
	{regexp.MustCompile(`\btbat\b`), "that"},
}

func skipStampsFor(src records.SourceType) bool {
	return src == records.SourceAPI || src == records.SourceLog
}

func isScanned(src records.SourceType) bool {
	return src == records.SourceDocument || src == records.SourceImage
}

func fillerPattern(words []string) *regexp.Regexp {
	ws := append([]string(nil), words...)
	sort.Slice(ws, func(i, j int) bool {
		if len(ws[i]) != len(ws[j]) {
			return len(ws[i]) > len(ws[j])
		}
		return ws[i] < ws[j]
	})
	alts := make([]string, 0, len(ws))
	for _, w := range ws {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		parts := strings.Fields(regexp.QuoteMeta(strings.ToLower(w)))
		alts = append(alts, strings.Join(parts, `\s+`))
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b,?`)
}

func abbreviationSubs(dict map[string]string) []substitution {
	keys := make([]string, 0, len(dict))
	for k := range dict {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	subs := make([]substitution, 0, len(keys))
	for _, k := range keys {
		pat := regexp.QuoteMeta(k)
		if first, _ := utf8.DecodeRuneInString(k); isWordRune(first) {
			pat = `\b` + pat
		}
		if last, _ := utf8.DecodeLastRuneInString(k); isWordRune(last) {
			pat += `\b`
		}
		subs = append(subs, substitution{re: regexp.MustCompile(`(?i)` + pat), repl: dict[k]})
	}
	return subs
}

func isWordRune(r rune) bool {
	return r == '_' || (r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)))
}

// looksLikeJSON reports whether content is a JSON object or array.
func looksLikeJSON(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return false
	}
	return json.Valid([]byte(s))
}

// isStructural reports whether text cleaning must leave the record's
// content alone.
func isStructural(rec records.UnifiedRecord) bool {
	return rec.SourceType.IsStructured() || looksLikeJSON(rec.StructuredContent)
}
