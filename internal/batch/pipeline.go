package batch

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"recordnorm/internal/cleaner"
	"recordnorm/internal/rules"
	"recordnorm/internal/severity"
	"recordnorm/pkg/records"
)

// item tracks one input record through the stages. An empty status means
// the record still awaits validation.
type item struct {
	rec      records.UnifiedRecord
	file     string
	status   Status
	findings []rules.Finding
}

func fileOf(rec records.UnifiedRecord) string {
	if name := strings.TrimSpace(rec.Metadata.FileName); name != "" {
		return name
	}
	return UnknownFile
}

// clean runs the text cleaner per record and marks duplicates. A record whose
// cleaning panics is failed right away and takes no part in deduplication.
func (o *Orchestrator) clean(linked []records.UnifiedRecord) ([]item, cleaner.Stats) {
	st := cleaner.Stats{Initial: len(linked), Fixes: cleaner.Fixes{}}
	items := make([]item, len(linked))

	var (
		cleaned []records.UnifiedRecord
		origin  []int
	)
	for i, rec := range linked {
		items[i] = item{rec: rec, file: fileOf(rec)}
		out, fx, err := o.cleanOne(rec)
		if err != nil {
			items[i].status = StatusFailed
			items[i].findings = []rules.Finding{processingError(err)}
			o.log.Debug("record cleaning failed",
				zap.String("file", items[i].file),
				zap.String("record_id", rec.ID),
				zap.Error(err),
			)
			continue
		}
		st.Fixes.Add(fx)
		items[i].rec = out
		cleaned = append(cleaned, out)
		origin = append(origin, i)
	}

	_, dropped := o.text.Dedup(cleaned)
	for _, j := range dropped {
		items[origin[j]].status = StatusDuplicate
	}
	st.Fixes.Add(cleaner.Fixes{cleaner.FixDuplicatesRemoved: len(dropped)})
	st.Dropped = len(dropped)
	st.AfterCleaning = len(cleaned) - len(dropped)
	return items, st
}

// validate applies the rule checks file by file. A critical finding fails
// its record and aborts the rest of that file; other files carry on.
func (o *Orchestrator) validate(items []item) []FileState {
	var order []string
	byFile := map[string][]int{}
	for i, it := range items {
		if it.status == StatusDuplicate {
			continue
		}
		if _, ok := byFile[it.file]; !ok {
			order = append(order, it.file)
		}
		byFile[it.file] = append(byFile[it.file], i)
	}

	files := make([]FileState, 0, len(order))
	for _, name := range order {
		fs := FileState{Name: name, Records: len(byFile[name])}
		for _, i := range byFile[name] {
			it := &items[i]
			switch {
			case fs.Aborted:
				it.status = StatusFailed
				it.findings = append(it.findings, fileAborted(fs.AbortedBy))
			case it.status == StatusFailed:
				// cleaning already failed it
			default:
				o.check(it, &fs)
			}
			if it.status == StatusFailed {
				fs.Failed++
			}
		}
		files = append(files, fs)
	}
	return files
}

func (o *Orchestrator) check(it *item, fs *FileState) {
	res, err := o.checkOne(it.rec)
	if err != nil {
		it.status = StatusFailed
		it.findings = []rules.Finding{processingError(err)}
		return
	}
	it.findings = res.Findings

	switch {
	case res.HasCritical():
		it.status = StatusFailed
		fs.Aborted = true
		fs.AbortedBy = it.rec.ID
		o.log.Warn("file aborted",
			zap.String("file", fs.Name),
			zap.String("record_id", it.rec.ID),
			zap.String("code", string(firstAt(res.Findings, severity.Critical))),
		)
	case !res.IsAcceptable():
		it.status = StatusFailed
		o.log.Debug("record failed",
			zap.String("file", fs.Name),
			zap.String("record_id", it.rec.ID),
			zap.String("code", string(firstAt(res.Findings, severity.High))),
		)
	default:
		it.status = StatusSuccess
	}
}

func (o *Orchestrator) cleanOne(rec records.UnifiedRecord) (out records.UnifiedRecord, fx cleaner.Fixes, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cleaning record: %v", r)
		}
	}()
	out, fx = o.text.CleanRecord(rec)
	return out, fx, nil
}

func (o *Orchestrator) checkOne(rec records.UnifiedRecord) (res rules.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("validating record: %v", r)
		}
	}()
	return o.rules.Check(rec), nil
}

func processingError(err error) rules.Finding {
	return rules.Finding{
		Code:       rules.CodeProcessingError,
		Severity:   severity.High,
		Message:    err.Error(),
		Suggestion: "inspect the record; processing it raised an unexpected error",
	}
}

func fileAborted(by string) rules.Finding {
	return rules.Finding{
		Code:       rules.CodeFileAborted,
		Severity:   severity.High,
		Message:    fmt.Sprintf("file processing aborted after critical error in record %s", by),
		Suggestion: "fix the critical error and re-ingest the file",
	}
}

// firstAt returns the code of the first finding at lvl or worse.
func firstAt(fs []rules.Finding, lvl severity.Level) rules.Code {
	for _, f := range fs {
		if f.Severity.AtLeast(lvl) {
			return f.Code
		}
	}
	return ""
}
