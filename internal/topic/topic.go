// Package topic assigns a canonical topic and group id to every record of a
// batch.
//
// When the batch holds an anchor record (a document by default) its topic is
// the single source of truth for the whole batch. Otherwise each record gets
// its own topic from its content.
package topic

import (
	"fmt"
	"strings"
	"unicode"

	"recordnorm/pkg/records"
)

// Registry remembers the group id issued for each topic during one batch.
// It is owned by the caller, lives for a single batch and is not safe for
// concurrent use.
type Registry struct {
	groups map[string]string
	order  []string
}

func NewRegistry() *Registry {
	return &Registry{groups: map[string]string{}}
}

// Register returns the group id for topic, recording it on first use.
func (r *Registry) Register(topic string) string {
	if gid, ok := r.groups[topic]; ok {
		return gid
	}
	gid := GroupID(topic)
	r.groups[topic] = gid
	r.order = append(r.order, topic)
	return gid
}

// Reset forgets every registered topic so the registry can serve the next
// batch.
func (r *Registry) Reset() {
	clear(r.groups)
	r.order = r.order[:0]
}

func (r *Registry) Lookup(topic string) (string, bool) {
	gid, ok := r.groups[topic]
	return gid, ok
}

func (r *Registry) Len() int { return len(r.order) }

// Topics lists registered topics in first-registration order.
func (r *Registry) Topics() []string {
	return append([]string(nil), r.order...)
}

// GroupID derives a stable, readable id from a topic: a slug followed by an
// 8-digit hex hash (h = h*31 + rune over the topic, 32-bit).
func GroupID(topic string) string {
	return slug(topic) + "-" + fmt.Sprintf("%08x", hash(topic))
}

func hash(s string) uint32 {
	var h uint32
	for _, r := range s {
		h = h*31 + uint32(r)
	}
	return h
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if r > unicode.MaxASCII {
				continue
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "topic"
	}
	return out
}

// Linker annotates records with topic and group id.
type Linker struct {
	Registry *Registry
	Anchor   records.SourceType
}

// NewLinker builds a linker. A nil registry gets a fresh one; an empty anchor
// means document.
func NewLinker(reg *Registry, anchor records.SourceType) *Linker {
	if reg == nil {
		reg = NewRegistry()
	}
	if anchor == "" {
		anchor = records.SourceDocument
	}
	return &Linker{Registry: reg, Anchor: anchor}
}

// Link returns annotated copies of recs in input order.
func (l *Linker) Link(recs []records.UnifiedRecord) []records.UnifiedRecord {
	out := records.CloneAll(recs)
	if len(out) == 0 {
		return out
	}

	if i := l.anchorIndex(out); i >= 0 {
		t := Detect(content(out[i]), out[i].SourceType)
		gid := l.Registry.Register(t)
		for j := range out {
			out[j].Topic, out[j].GroupID = t, gid
		}
		return out
	}

	for j := range out {
		t := Detect(content(out[j]), out[j].SourceType)
		out[j].Topic, out[j].GroupID = t, l.Registry.Register(t)
	}
	return out
}

func (l *Linker) anchorIndex(recs []records.UnifiedRecord) int {
	for i, r := range recs {
		if r.SourceType == l.Anchor {
			return i
		}
	}
	return -1
}

func content(r records.UnifiedRecord) string {
	if strings.TrimSpace(r.StructuredContent) != "" {
		return r.StructuredContent
	}
	return r.RawContent
}
