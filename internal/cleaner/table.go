package cleaner

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"recordnorm/internal/lexical"
	"recordnorm/internal/semantic"
	"recordnorm/internal/validator"
	"recordnorm/pkg/records"
)

// TableCleaner coerces tabular rows per semantic type and re-validates the
// result under the target column names.
type TableCleaner struct {
	opts      Options
	validator *validator.Validator
}

// NewTableCleaner builds a cleaner. A nil validator gets default options.
func NewTableCleaner(opts Options, v *validator.Validator) *TableCleaner {
	if v == nil {
		v = validator.New(validator.DefaultOptions())
	}
	return &TableCleaner{opts: opts.withDefaults(), validator: v}
}

// TableReport is the outcome of one tabular cleaning pass.
type TableReport struct {
	// Rows are the surviving rows, restricted to target columns.
	Rows []records.Row `json:"rows"`
	// Kept holds the original index of each row in Rows.
	Kept []int `json:"kept"`
	// DroppedRows are original indices, ascending.
	DroppedRows []int            `json:"dropped_rows"`
	Stats       Stats            `json:"stats"`
	Validation  validator.Report `json:"validation"`
	Mapping     semantic.Mapping `json:"mapping"`
}

type fieldPlan struct {
	source string
	target string
	typ    semantic.Type
}

// plan checks the mappings and returns one entry per field, sorted by target.
// fieldMap maps source to target column; an empty fieldMap keeps the names of
// the semantic mapping.
func plan(fieldMap map[string]string, mapping semantic.Mapping) ([]fieldPlan, error) {
	if len(mapping) == 0 {
		return nil, fmt.Errorf("%w: semantic mapping is empty", ErrInvalidMapping)
	}
	if len(fieldMap) == 0 {
		fieldMap = make(map[string]string, len(mapping))
		for c := range mapping {
			fieldMap[c] = c
		}
	}

	targets := make(map[string]string, len(fieldMap))
	out := make([]fieldPlan, 0, len(fieldMap))
	for src, dst := range fieldMap {
		dst = strings.TrimSpace(dst)
		if strings.TrimSpace(src) == "" || dst == "" {
			return nil, fmt.Errorf("%w: empty column name in %q -> %q", ErrInvalidMapping, src, dst)
		}
		typ, ok := mapping[src]
		if !ok {
			return nil, fmt.Errorf("%w: column %q has no semantic type", ErrInvalidMapping, src)
		}
		if !typ.Valid() {
			return nil, fmt.Errorf("%w: column %q has unknown semantic type %q", ErrInvalidMapping, src, typ)
		}
		if prev, dup := targets[dst]; dup {
			return nil, fmt.Errorf("%w: columns %q and %q both map to %q", ErrInvalidMapping, prev, src, dst)
		}
		targets[dst] = src
		out = append(out, fieldPlan{source: src, target: dst, typ: typ})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].target < out[j].target })
	return out, nil
}

/*
Clean runs the tabular pipeline:

  - rows with a missing or already seen identifier are dropped first,
  - every mapped value is cleaned according to its semantic type,
  - the cleaned rows are validated under the target names and rows with a
    critical issue are dropped.

Input rows are never modified.
*/
func (c *TableCleaner) Clean(rows []records.Row, fieldMap map[string]string, mapping semantic.Mapping) (TableReport, error) {
	fields, err := plan(fieldMap, mapping)
	if err != nil {
		return TableReport{}, err
	}

	rep := TableReport{
		Stats:   Stats{Initial: len(rows), Fixes: Fixes{}},
		Mapping: make(semantic.Mapping, len(fields)),
	}
	for _, f := range fields {
		rep.Mapping[f.target] = f.typ
	}
	fx := rep.Stats.Fixes
	dropped := map[int]struct{}{}

	survivors := c.identifierPass(rows, fields, dropped, fx)
	rep.Stats.AfterValidation = len(survivors)

	title := cases.Title(language.Und)
	cleaned := make([]records.Row, 0, len(survivors))
	for _, i := range survivors {
		out := make(records.Row, len(fields))
		for _, f := range fields {
			out[f.target] = c.cleanValue(rows[i].Get(f.source), f.typ, title, fx)
		}
		cleaned = append(cleaned, out)
	}

	rep.Validation = c.validator.Validate(cleaned, rep.Mapping)
	critical := map[int]struct{}{}
	for _, j := range rep.Validation.RowsWithSeverity(validator.SeverityCritical) {
		critical[j] = struct{}{}
	}
	for j, row := range cleaned {
		orig := survivors[j]
		if _, bad := critical[j]; bad {
			if _, already := dropped[orig]; !already {
				dropped[orig] = struct{}{}
				fx.inc(FixCriticalRowsDropped, 1)
			}
			continue
		}
		rep.Rows = append(rep.Rows, row)
		rep.Kept = append(rep.Kept, orig)
	}

	rep.DroppedRows = make([]int, 0, len(dropped))
	for i := range dropped {
		rep.DroppedRows = append(rep.DroppedRows, i)
	}
	sort.Ints(rep.DroppedRows)
	rep.Stats.AfterCleaning = len(rep.Rows)
	rep.Stats.Dropped = len(rep.DroppedRows)
	return rep, nil
}

// identifierPass returns the indices of rows that keep a unique, non-empty
// identifier. Without an identifier column every row survives.
func (c *TableCleaner) identifierPass(rows []records.Row, fields []fieldPlan, dropped map[int]struct{}, fx Fixes) []int {
	idCol := ""
	for _, f := range fields {
		if f.typ == semantic.Identifier {
			idCol = f.source
			break
		}
	}
	out := make([]int, 0, len(rows))
	if idCol == "" {
		for i := range rows {
			out = append(out, i)
		}
		return out
	}

	seen := make(map[string]struct{}, len(rows))
	for i, r := range rows {
		v := r.Get(idCol)
		if v.IsEmpty() {
			dropped[i] = struct{}{}
			fx.inc(FixMissingIdentifierDropped, 1)
			continue
		}
		key := strings.TrimSpace(v.Text())
		if _, dup := seen[key]; dup {
			dropped[i] = struct{}{}
			fx.inc(FixDuplicateIdentifierDrop, 1)
			continue
		}
		seen[key] = struct{}{}
		out = append(out, i)
	}
	return out
}

// cleanValue normalizes one value. Counters move only when the value
// actually changes.
func (c *TableCleaner) cleanValue(v records.Value, typ semantic.Type, title cases.Caser, fx Fixes) records.Value {
	if v.IsEmpty() {
		return records.Null()
	}
	text := strings.TrimSpace(v.Text())

	switch typ {
	case semantic.Name:
		return changed(v, records.String(title.String(strings.Join(strings.Fields(text), " "))), FixNamesNormalized, fx)

	case semantic.ContactInfo:
		switch {
		case strings.Contains(text, "@"):
			lower := strings.ToLower(text)
			if !lexical.IsEmail(lower) {
				fx.inc(FixEmailsNullified, 1)
				return records.Null()
			}
			return changed(v, records.String(lower), FixEmailsNormalized, fx)
		case lexical.HasDigit(text):
			digits := lexical.Digits(text)
			if n := len(digits); n < c.opts.PhoneMinDigits || n > c.opts.PhoneMaxDigits {
				fx.inc(FixPhonesNullified, 1)
				return records.Null()
			}
			return changed(v, records.String(digits), FixPhonesNormalized, fx)
		}
		return v

	case semantic.Date:
		t, ok := lexical.ParseDate(text)
		if !ok {
			fx.inc(FixDatesNullified, 1)
			return records.Null()
		}
		return changed(v, records.String(t.Format("2006-01-02")), FixDatesReformatted, fx)

	case semantic.NumericAmount:
		n, ok := v.Float()
		if !ok || v.Kind() != records.KindNumber {
			n, ok = lexical.StripToNumeric(text)
		}
		switch {
		case !ok:
			fx.inc(FixAmountsNullified, 1)
			return records.Null()
		case n < 0:
			fx.inc(FixNegativeAmountsNullified, 1)
			return records.Null()
		}
		return changed(v, records.Number(n), FixAmountsNormalized, fx)

	case semantic.BooleanFlag:
		if _, ok := v.Boolean(); ok {
			return v
		}
		b, ok := lexical.ParseBool(text)
		if !ok {
			fx.inc(FixBooleansNullified, 1)
			return records.Null()
		}
		fx.inc(FixBooleansCoerced, 1)
		return records.Bool(b)
	}

	if v.Kind() != records.KindString {
		return v
	}
	return changed(v, records.String(text), FixValuesTrimmed, fx)
}

func changed(before, after records.Value, key string, fx Fixes) records.Value {
	if !before.Equal(after) {
		fx.inc(key, 1)
	}
	return after
}
