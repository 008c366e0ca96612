package storage

import (
	"fmt"
	"strings"
)

// ColumnKind is the logical type of a stored column; backends map it to
// their own SQL types.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindInt
	KindTime
)

// Column describes one stored column.
type Column struct {
	Name    string
	Kind    ColumnKind
	NotNull bool
}

// RecordSchema matches RecordColumns.
var RecordSchema = []Column{
	{Name: "id", Kind: KindText, NotNull: true},
	{Name: "group_id", Kind: KindText, NotNull: true},
	{Name: "topic", Kind: KindText, NotNull: true},
	{Name: "source_type", Kind: KindText, NotNull: true},
	{Name: "content_type", Kind: KindText},
	{Name: "content", Kind: KindText, NotNull: true},
	{Name: "raw_content", Kind: KindText},
	{Name: "file_name", Kind: KindText},
	{Name: "metadata", Kind: KindText},
	{Name: "created_at", Kind: KindTime, NotNull: true},
}

// FindingSchema matches FindingColumns.
var FindingSchema = []Column{
	{Name: "file_name", Kind: KindText, NotNull: true},
	{Name: "record_id", Kind: KindText},
	{Name: "record_index", Kind: KindInt, NotNull: true},
	{Name: "status", Kind: KindText, NotNull: true},
	{Name: "severity", Kind: KindText, NotNull: true},
	{Name: "code", Kind: KindText, NotNull: true},
	{Name: "message", Kind: KindText, NotNull: true},
	{Name: "suggestion", Kind: KindText},
}

// CreateTableSQL renders CREATE TABLE IF NOT EXISTS for cols. quote quotes a
// possibly schema-qualified table name or a column name; sqlType maps kinds.
func CreateTableSQL(table string, cols []Column, quote func(string) string, sqlType func(ColumnKind) string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", quote(table), ColumnDefs(cols, quote, sqlType, ",\n  "))
}

// ColumnDefs renders the column definitions of cols joined by sep.
func ColumnDefs(cols []Column, quote func(string) string, sqlType func(ColumnKind) string, sep string) string {
	defs := make([]string, 0, len(cols))
	for _, c := range cols {
		def := fmt.Sprintf("%s %s", quote(c.Name), sqlType(c.Kind))
		if c.NotNull {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	return strings.Join(defs, sep)
}

// QuoteIdent double-quotes each dot-separated part of name.
func QuoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}
