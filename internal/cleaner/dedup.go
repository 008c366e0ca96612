package cleaner

import (
	"strings"

	"github.com/zeebo/xxh3"

	"recordnorm/pkg/records"
)

// Signature hashes what two records must share to count as duplicates:
// source type, case-folded trimmed content and group id.
func Signature(rec records.UnifiedRecord) uint64 {
	var b strings.Builder
	b.WriteString(string(rec.SourceType))
	b.WriteByte(0)
	b.WriteString(strings.ToLower(strings.TrimSpace(rec.StructuredContent)))
	b.WriteByte(0)
	b.WriteString(rec.GroupID)
	return xxh3.HashString(b.String())
}

// Dedup keeps the first record of every signature. It returns the survivors
// in input order and the input indices of the dropped records.
//
// Only the 64-bit hash is remembered, so memory stays flat however long the
// contents are. Two distinct signatures colliding would drop the later record;
// at 2^-64 per pair that is accepted.
func (c *TextCleaner) Dedup(recs []records.UnifiedRecord) ([]records.UnifiedRecord, []int) {
	seen := make(map[uint64]struct{}, len(recs))
	kept := make([]records.UnifiedRecord, 0, len(recs))
	var dropped []int

	for i, r := range recs {
		h := Signature(r)
		if _, dup := seen[h]; dup {
			dropped = append(dropped, i)
			continue
		}
		seen[h] = struct{}{}
		kept = append(kept, r)
	}
	return kept, dropped
}
