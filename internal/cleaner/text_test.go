package cleaner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordnorm/pkg/records"
)

func rec(src records.SourceType, content string) records.UnifiedRecord {
	r := records.New(src, records.ContentExplanation, content)
	r.Topic, r.GroupID = "Physics", "physics-00000001"
	return r
}

/*
TestCleanRecord_Steps drives one record through each text step and checks
both the resulting content and the counters the step moved.
*/
func TestCleanRecord_Steps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		src   records.SourceType
		in    string
		want  string
		fixes map[string]int
	}{
		{
			name: "headers pages timestamps",
			src:  records.SourceText,
			in:   "Chapter 3\nThe force is strong.\nPage 2 of 10\n[00:01:23] it moves.",
			want: "The force is strong. It moves.",
			fixes: map[string]int{
				FixHeadersRemoved: 1, FixPageMarkersRemoved: 1, FixTimestampsRemoved: 1,
				FixCapitalization: 1, FixWhitespace: 1,
			},
		},
		{
			name:  "filler words",
			src:   records.SourceAudio,
			in:    "um, so basically the DNA is, you know, a molecule.",
			want:  "So the DNA is, a molecule.",
			fixes: map[string]int{FixFillerWordsRemoved: 3, FixCapitalization: 1, FixWhitespace: 1},
		},
		{
			name:  "ocr on documents",
			src:   records.SourceDocument,
			in:    "Tbe cell divides witb energy from tbe sun.",
			want:  "The cell divides with energy from the sun.",
			fixes: map[string]int{FixOCRCorrections: 3},
		},
		{
			name:  "no ocr on audio",
			src:   records.SourceAudio,
			in:    "Tbe cell divides.",
			want:  "Tbe cell divides.",
			fixes: map[string]int{},
		},
		{
			name:  "abbreviations",
			src:   records.SourceText,
			in:    "compare h2o vs. co2, e.g. in water.",
			want:  "Compare water versus carbon dioxide, for example in water.",
			fixes: map[string]int{FixAbbreviationsExpanded: 4, FixCapitalization: 1},
		},
		{
			name:  "all caps",
			src:   records.SourceText,
			in:    "THE MITOCHONDRIA IS THE POWERHOUSE",
			want:  "The mitochondria is the powerhouse",
			fixes: map[string]int{FixSentenceCase: 1, FixCapitalization: 1},
		},
		{
			name:  "short caps kept",
			src:   records.SourceText,
			in:    "NASA RULES",
			want:  "NASA RULES",
			fixes: map[string]int{},
		},
	}

	c := NewTextCleaner(Options{})
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := rec(tc.src, tc.in)
			out, fx := c.CleanRecord(r)
			assert.Equal(t, tc.want, out.StructuredContent)
			for k, n := range tc.fixes {
				assert.Equal(t, n, fx[k], k)
			}
			for _, k := range []string{
				FixHeadersRemoved, FixPageMarkersRemoved, FixTimestampsRemoved, FixFillerWordsRemoved,
				FixOCRCorrections, FixAbbreviationsExpanded, FixSentenceCase, FixCapitalization, FixWhitespace,
			} {
				if _, want := tc.fixes[k]; !want {
					assert.Zero(t, fx[k], k)
				}
			}
			assert.Equal(t, tc.in, r.StructuredContent, "input must not change")
		})
	}
}

func TestCollapseWhitespace(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single newline kept", "First line.\nSecond line.", "First line.\nSecond line."},
		{"single tab kept", "a\tb", "a\tb"},
		{"blank line collapsed", "First.\n\nSecond.", "First. Second."},
		{"space run collapsed", "a   b  c d", "a b c d"},
		{"mixed run collapsed", "a \n\t b", "a b"},
		{"trimmed", "\n  padded \n", "padded"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := collapseWhitespace(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, collapseWhitespace(got))
		})
	}
}

// TestCleanRecord_KeepsLineBreaks leaves a clean two-line record untouched.
func TestCleanRecord_KeepsLineBreaks(t *testing.T) {
	t.Parallel()

	r := rec(records.SourceText, "Gravity pulls.\nFriction resists.")
	out, fx := NewTextCleaner(Options{}).CleanRecord(r)
	assert.Equal(t, "Gravity pulls.\nFriction resists.", out.StructuredContent)
	assert.Zero(t, fx[FixWhitespace])
}

// TestCleanRecord_StructuralUntouched leaves machine-readable payloads alone
// but still fills metadata defaults.
func TestCleanRecord_StructuralUntouched(t *testing.T) {
	t.Parallel()

	c := NewTextCleaner(Options{})

	api := rec(records.SourceAPI, `{"msg":  "um  basically"}`)
	out, fx := c.CleanRecord(api)
	assert.Equal(t, api.StructuredContent, out.StructuredContent)
	assert.Equal(t, "anonymous", out.Metadata.UserID)
	assert.Equal(t, "message", out.Metadata.EventType)
	assert.Equal(t, 1, fx[FixMetadataEnriched])

	jsonText := rec(records.SourceText, ` [1, 2,   3] `)
	out, fx = c.CleanRecord(jsonText)
	assert.Equal(t, jsonText.StructuredContent, out.StructuredContent)
	assert.Zero(t, fx[FixWhitespace])
}

func TestCleanRecord_Enrichment(t *testing.T) {
	t.Parallel()

	c := NewTextCleaner(Options{DefaultSpeaker: "Lecturer"})

	doc := rec(records.SourceDocument, "Section 2\nNewton's law explains motion of bodies in detail.")
	out, _ := c.CleanRecord(doc)
	assert.Equal(t, "unknown", out.Metadata.FileName)
	assert.Equal(t, 1, out.Metadata.PageNumber)
	assert.Equal(t, "Section 2", out.Metadata.Section)

	doc.Metadata.FileName = "a.pdf"
	doc.Metadata.PageNumber = 7
	out, _ = c.CleanRecord(doc)
	assert.Equal(t, "a.pdf", out.Metadata.FileName)
	assert.Equal(t, 7, out.Metadata.PageNumber)

	audio := rec(records.SourceAudio, "friction again")
	audio.Metadata.Timestamp = "00:10"
	out, _ = c.CleanRecord(audio)
	assert.Equal(t, "Lecturer", out.Metadata.Speaker)
	assert.Equal(t, "00:10", out.Metadata.TimestampRange)

	chat := rec(records.SourceChat, "Is this an error?")
	chat.ContentType = ""
	out, fx := c.CleanRecord(chat)
	assert.Equal(t, "error", out.Metadata.EventType)
	assert.Equal(t, records.ContentQuestion, out.ContentType)
	assert.Equal(t, 1, fx[FixContentTypeInferred])
}

// TestClean_Idempotent re-cleans cleaned output and expects no change at all.
func TestClean_Idempotent(t *testing.T) {
	t.Parallel()

	in := []records.UnifiedRecord{
		rec(records.SourceText, "Chapter 2 um\nTHE FORCE OF GRAVITY vs. friction, e.g. on ice"),
		rec(records.SourceDocument, "Page 3\ntbe  experiment   witb  CO2 ... [page 4] ok"),
		rec(records.SourceAudio, "[00:00:05] uh, basically, you know, it works?"),
		rec(records.SourceChat, "hello.   how are you"),
		rec(records.SourceLog, "ERROR  disk full"),
	}
	c := NewTextCleaner(Options{})

	first, st1 := c.Clean(in)
	require.Positive(t, st1.Fixes.Total())

	second, st2 := c.Clean(first)
	assert.Zero(t, st2.Fixes.Total(), "fixes on second pass: %v", st2.Fixes)
	assert.Equal(t, first, second)
}

// TestDedup_KeepFirst drops a record whose cleaned content, source type and
// group id match an earlier one.
func TestDedup_KeepFirst(t *testing.T) {
	t.Parallel()

	a := rec(records.SourceText, "Hello world.")
	b := rec(records.SourceText, "  hello WORLD. ")
	c := rec(records.SourceText, "Hello world.")
	c.GroupID = "other-00000002"
	d := rec(records.SourceChat, "Hello world.")

	kept, st := NewTextCleaner(Options{}).Clean([]records.UnifiedRecord{a, b, c, d})
	require.Len(t, kept, 3)
	assert.Equal(t, []string{a.ID, c.ID, d.ID}, []string{kept[0].ID, kept[1].ID, kept[2].ID})
	assert.Equal(t, 1, st.Dropped)
	assert.Equal(t, 1, st.Fixes[FixDuplicatesRemoved])
	assert.Equal(t, 4, st.Initial)
	assert.Equal(t, 3, st.AfterCleaning)

	_, dropped := NewTextCleaner(Options{}).Dedup([]records.UnifiedRecord{a, a, a})
	assert.Equal(t, []int{1, 2}, dropped)
}

func TestSignature(t *testing.T) {
	t.Parallel()

	base := records.New(records.SourceText, records.ContentData, "")
	base.StructuredContent = "Hello world."
	base.GroupID = "general-text-00000001"

	with := func(f func(*records.UnifiedRecord)) records.UnifiedRecord {
		r := base.Clone()
		f(&r)
		return r
	}

	tests := []struct {
		name string
		rec  records.UnifiedRecord
		same bool
	}{
		{"case and padding", with(func(r *records.UnifiedRecord) { r.StructuredContent = "  HELLO world. " }), true},
		{"raw content ignored", with(func(r *records.UnifiedRecord) { r.RawContent = "something else" }), true},
		{"other source", with(func(r *records.UnifiedRecord) { r.SourceType = records.SourceChat }), false},
		{"other group", with(func(r *records.UnifiedRecord) { r.GroupID = "physics-00000002" }), false},
		{"other content", with(func(r *records.UnifiedRecord) { r.StructuredContent = "Hello world!" }), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.same, Signature(base) == Signature(tt.rec))
		})
	}
}
