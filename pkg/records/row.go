package records

// Row is one tabular record: column name to tagged scalar.
type Row map[string]Value

// Get returns the value for col, or Null when the column is absent.
func (r Row) Get(col string) Value {
	if r == nil {
		return Null()
	}
	return r[col]
}

// Clone copies the row map.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// BasicType is the storage-level type detected by column analysis.
type BasicType string

const (
	BasicInteger BasicType = "Integer"
	BasicFloat   BasicType = "Float"
	BasicString  BasicType = "String"
	BasicBoolean BasicType = "Boolean"
	BasicDate    BasicType = "Date"
)

// ColumnAnalysis summarises one column of a tabular input.
type ColumnAnalysis struct {
	Name           string    `json:"name"`
	BasicType      BasicType `json:"basic_type"`
	NullPercentage float64   `json:"null_percentage"`
	Samples        []string  `json:"samples,omitempty"`
}
