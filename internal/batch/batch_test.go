package batch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"recordnorm/internal/cleaner"
	"recordnorm/internal/rules"
	"recordnorm/internal/semantic"
	"recordnorm/internal/topic"
	"recordnorm/pkg/records"
)

func rec(id string, src records.SourceType, file, content string) records.UnifiedRecord {
	r := records.New(src, records.ContentData, content)
	r.ID = id
	r.Metadata.FileName = file
	return r
}

func newOrchestrator(opts ...Option) *Orchestrator {
	return New(topic.NewLinker(topic.NewRegistry(), records.SourceDocument), nil, nil, opts...)
}

func statuses(res Result) map[string]Status {
	out := map[string]Status{}
	for _, o := range res.Outcomes {
		out[o.RecordID] = o.Status
	}
	return out
}

func codes(fs []rules.Finding) []rules.Code {
	out := make([]rules.Code, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.Code)
	}
	return out
}

// TestRun_FileAbort fails the critical record and every later record of the
// same file, leaving earlier records and other files alone.
func TestRun_FileAbort(t *testing.T) {
	t.Parallel()

	in := []records.UnifiedRecord{
		rec("r1", records.SourceAPI, "f.json", `{"a": 1}`),
		rec("g1", records.SourceAPI, "g.json", `{"g": 1}`),
		rec("r2", records.SourceAPI, "f.json", `{"a": `),
		rec("r3", records.SourceAPI, "f.json", `{"b": 2}`),
		rec("g2", records.SourceAPI, "g.json", `{"g": 2}`),
	}

	core, logs := observer.New(zapcore.WarnLevel)
	res, err := newOrchestrator(WithLogger(zap.New(core))).Run(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, map[string]Status{
		"r1": StatusSuccess, "g1": StatusSuccess, "r2": StatusFailed, "r3": StatusFailed, "g2": StatusSuccess,
	}, statuses(res))
	assert.Equal(t, Summary{Total: 5, Success: 3, Failed: 2}, res.Summary)

	require.Len(t, res.Failed, 2)
	assert.Equal(t, "f.json", res.Failed[0].File)
	assert.Equal(t, 2, res.Failed[0].Index)
	assert.Equal(t, []rules.Code{rules.CodeInvalidJSON}, codes(res.Failed[0].Findings))
	assert.Equal(t, []rules.Code{rules.CodeFileAborted}, codes(res.Failed[1].Findings))
	assert.Contains(t, res.Failed[1].Findings[0].Message, "r2")

	assert.Equal(t, []FileState{
		{Name: "f.json", Records: 3, Failed: 2, Aborted: true, AbortedBy: "r2"},
		{Name: "g.json", Records: 2},
	}, res.Files)

	ids := make([]string, 0, len(res.Successful))
	for _, r := range res.Successful {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"r1", "g1", "g2"}, ids)

	require.Equal(t, 1, logs.FilterMessage("file aborted").Len())
	assert.Equal(t, "f.json", logs.FilterMessage("file aborted").All()[0].ContextMap()["file"])
}

// TestRun_AnchorTopic checks every output record shares the document's topic
// and group id.
func TestRun_AnchorTopic(t *testing.T) {
	t.Parallel()

	in := []records.UnifiedRecord{
		rec("c1", records.SourceChat, "chat.txt", "how do I push to git"),
		rec("d1", records.SourceDocument, "book.pdf", "Newton's laws of motion describe how a force changes the motion of a body."),
		rec("l1", records.SourceLog, "", "ERROR disk full"),
		rec("a1", records.SourceAPI, "api.json", `{"topic": "mine"}`),
	}
	res, err := newOrchestrator().Run(context.Background(), in)
	require.NoError(t, err)

	type pair struct{ topic, group string }
	seen := map[pair]struct{}{}
	for _, r := range res.Successful {
		seen[pair{r.Topic, r.GroupID}] = struct{}{}
	}
	for _, f := range res.Failed {
		seen[pair{f.Record.Topic, f.Record.GroupID}] = struct{}{}
	}
	assert.Len(t, seen, 1)
	assert.Equal(t, []string{"Newton's Laws of Motion"}, res.Topics)
	assert.Equal(t, 4, res.Summary.Success+res.Summary.Failed)

	// The self-declared topic on an api payload is HIGH.
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "a1", res.Failed[0].Record.ID)
	assert.Equal(t, []rules.Code{rules.CodeSelfDeclaredTopic}, codes(res.Failed[0].Findings))
}

// TestRun_TopicsPerBatch reuses one orchestrator; each Result only reports
// the topics of its own batch.
func TestRun_TopicsPerBatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []records.UnifiedRecord
		want []string
	}{
		{
			name: "document batch",
			in: []records.UnifiedRecord{
				rec("d1", records.SourceDocument, "book.pdf", "Newton's laws of motion describe how a force changes the motion of a body."),
			},
			want: []string{"Newton's Laws of Motion"},
		},
		{
			name: "text batch",
			in: []records.UnifiedRecord{
				rec("t1", records.SourceText, "notes.txt", "A sorting algorithm orders a list of values."),
			},
			want: []string{"Computer Science"},
		},
		{
			name: "document batch again",
			in: []records.UnifiedRecord{
				rec("d2", records.SourceDocument, "book.pdf", "Newton's laws of motion describe how a force changes the motion of a body."),
			},
			want: []string{"Newton's Laws of Motion"},
		},
	}

	orch := newOrchestrator()
	for _, tt := range tests {
		res, err := orch.Run(context.Background(), tt.in)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, res.Topics, tt.name)
	}
}

func TestRun_WarningsAndDuplicates(t *testing.T) {
	t.Parallel()

	in := []records.UnifiedRecord{
		rec("t1", records.SourceTabular, "rows.csv", `{"topic": "x", "v": 1}`),
		rec("c1", records.SourceChat, "chat.txt", "see you tomorrow"),
		rec("c2", records.SourceChat, "chat.txt", "  See you TOMORROW "),
		rec("c3", records.SourceChat, "chat.txt", "another line"),
	}
	res, err := newOrchestrator().Run(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, Summary{Total: 4, Success: 3, Warnings: 1, Duplicates: 1}, res.Summary)
	assert.Equal(t, StatusDuplicate, statuses(res)["c2"])
	assert.Equal(t, 1, res.Cleaning.Dropped)
	assert.Equal(t, 1, res.Cleaning.Fixes[cleaner.FixDuplicatesRemoved])
	assert.Equal(t, 3, res.Cleaning.AfterCleaning)
	assert.Equal(t, 3, res.Cleaning.AfterValidation)

	out := res.Outcomes[0]
	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, []rules.Code{rules.CodeSelfDeclaredTopic}, codes(out.Findings))

	assert.Equal(t, "See you tomorrow", res.Successful[1].StructuredContent)
	assert.Equal(t, []FileState{
		{Name: "rows.csv", Records: 1},
		{Name: "chat.txt", Records: 2},
	}, res.Files)
}

// TestRun_ProcessingError turns a panic during rule checks into a HIGH
// finding without aborting the file. Document checks read the validator
// options, so a nil validator panics on them.
func TestRun_ProcessingError(t *testing.T) {
	t.Parallel()

	o := newOrchestrator()
	o.rules = nil

	in := []records.UnifiedRecord{
		rec("x1", records.SourceDocument, "a.pdf", "first page"),
		rec("x2", records.SourceDocument, "a.pdf", "second page"),
	}
	res, err := o.Run(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Summary.Failed)
	for _, f := range res.Failed {
		assert.Equal(t, []rules.Code{rules.CodeProcessingError}, codes(f.Findings))
		assert.Contains(t, f.Findings[0].Message, "validating record")
	}
	assert.False(t, res.Files[0].Aborted)
}

func TestRun_UnknownFileAndEmpty(t *testing.T) {
	t.Parallel()

	res, err := newOrchestrator().Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, res.Summary)
	assert.Empty(t, res.Successful)
	assert.NotNil(t, res.Failed)

	res, err = newOrchestrator().Run(context.Background(), []records.UnifiedRecord{
		rec("e1", records.SourceChat, " ", "   "),
		rec("e2", records.SourceChat, "", "still here"),
	})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, UnknownFile, res.Files[0].Name)
	assert.True(t, res.Files[0].Aborted)
	assert.Equal(t, []rules.Code{rules.CodeEmptyContent}, codes(res.Failed[0].Findings))
	assert.Equal(t, []rules.Code{rules.CodeFileAborted}, codes(res.Failed[1].Findings))
}

func TestRun_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newOrchestrator().Run(ctx, []records.UnifiedRecord{rec("a", records.SourceChat, "f", "hi")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

// TestRun_Deterministic renders two runs of the same batch identically.
func TestRun_Deterministic(t *testing.T) {
	t.Parallel()

	in := []records.UnifiedRecord{
		rec("a", records.SourceAudio, "talk.mp3", "um so basically entropy always grows"),
		rec("b", records.SourceImage, "scan.png", "tbe cell divides"),
		rec("c", records.SourceAPI, "api.json", `{"k": "v"}`),
		rec("d", records.SourceText, "notes.txt", "the cell divides"),
	}
	first, err := newOrchestrator().Run(context.Background(), in)
	require.NoError(t, err)
	second, err := newOrchestrator().Run(context.Background(), in)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))

	// Inputs are never modified.
	assert.Equal(t, "tbe cell divides", in[1].StructuredContent)
	assert.Empty(t, in[0].Topic)
}

func TestRunTable(t *testing.T) {
	t.Parallel()

	rows := []records.Row{
		{"customer_id": records.String("A1"), "email": records.String("  John@EXAMPLE.com "), "active": records.String("Yes")},
		{"customer_id": records.String("A1"), "email": records.String("jane@example.com"), "active": records.String("no")},
		{"customer_id": records.String("A2"), "email": records.String("bad@x"), "active": records.String("maybe")},
		{"customer_id": records.String("A3"), "email": records.String("x@y.com"), "active": records.String("1")},
	}
	res, err := newOrchestrator().RunTable(context.Background(), TableInput{
		Rows:     rows,
		FieldMap: map[string]string{"customer_id": "id", "email": "email", "active": "is_active"},
	})
	require.NoError(t, err)

	assert.Equal(t, semantic.Mapping{
		"customer_id": semantic.Identifier,
		"email":       semantic.ContactInfo,
		"active":      semantic.BooleanFlag,
	}, res.Mapping)
	assert.Len(t, res.Columns, 3)
	assert.Equal(t, 3, res.Raw.ErrorCount)

	for _, check := range []string{"duplicate_identifier", "invalid_email", "invalid_boolean"} {
		assert.Equal(t, 1, countCheck(res, check), check)
	}
	assert.Equal(t, []int{1}, res.Cleaning.DroppedRows)
	require.Len(t, res.Cleaning.Rows, 3)
	assert.Equal(t, "john@example.com", res.Cleaning.Rows[0]["email"].Text())
	assert.True(t, res.Cleaning.Rows[1]["email"].IsNull())
	assert.True(t, res.Cleaning.Rows[1]["is_active"].IsNull())
	assert.True(t, records.Bool(true).Equal(res.Cleaning.Rows[2]["is_active"]))
	assert.Equal(t, semantic.BooleanFlag, res.Cleaning.Mapping["is_active"])
}

func countCheck(res TableResult, check string) int {
	n := 0
	for _, is := range res.Raw.Issues {
		if is.Check == check {
			n++
		}
	}
	return n
}

func TestRunTable_InvalidMapping(t *testing.T) {
	t.Parallel()

	rows := []records.Row{{"a": records.String("x")}}
	_, err := newOrchestrator().RunTable(context.Background(), TableInput{
		Rows:     rows,
		FieldMap: map[string]string{"missing": "b"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, cleaner.ErrInvalidMapping))
}

// TestRunTable_AnalysisFallback infers columns without row values from the
// analysis samples.
func TestRunTable_AnalysisFallback(t *testing.T) {
	t.Parallel()

	rows := []records.Row{{"name": records.String("Ann"), "signup": records.Null()}}
	cols := []records.ColumnAnalysis{
		{Name: "name", BasicType: records.BasicString, Samples: []string{"Ann"}},
		{Name: "signup", BasicType: records.BasicDate, NullPercentage: 100, Samples: []string{"Jan 2, 2024", "Feb 3, 2024"}},
	}
	res, err := newOrchestrator().RunTable(context.Background(), TableInput{Rows: rows, Columns: cols})
	require.NoError(t, err)
	assert.Equal(t, semantic.Date, res.Mapping["signup"])
	assert.Equal(t, semantic.Name, res.Mapping["name"])
}

// TestRunTable_StrictInference keeps ISO dates out of contact_info.
func TestRunTable_StrictInference(t *testing.T) {
	t.Parallel()

	rows := []records.Row{
		{"signup": records.String("2024-01-02")},
		{"signup": records.String("2024-02-03")},
	}
	res, err := newOrchestrator().RunTable(context.Background(), TableInput{Rows: rows})
	require.NoError(t, err)
	assert.Equal(t, semantic.ContactInfo, res.Mapping["signup"])

	strict := New(nil, nil, nil, WithInference(semantic.Options{StrictShapes: true}))
	res, err = strict.RunTable(context.Background(), TableInput{Rows: rows})
	require.NoError(t, err)
	assert.Equal(t, semantic.Date, res.Mapping["signup"])
}
