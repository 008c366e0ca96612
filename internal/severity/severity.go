// Package severity defines the record-level severity scale used by the rule
// validator and the batch orchestrator.
package severity

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Level is a record-level severity. Levels are totally ordered:
// Low < Medium < High < Critical.
type Level uint8

const (
	Low Level = iota + 1
	Medium
	High
	Critical
)

var names = map[Level]string{
	Low:      "LOW",
	Medium:   "MEDIUM",
	High:     "HIGH",
	Critical: "CRITICAL",
}

func (l Level) String() string {
	if s, ok := names[l]; ok {
		return s
	}
	return fmt.Sprintf("Level(%d)", uint8(l))
}

// Valid reports whether l is one of the four defined levels.
func (l Level) Valid() bool { return l >= Low && l <= Critical }

// AtLeast reports whether l is as severe as min or more.
func (l Level) AtLeast(min Level) bool { return Compare(l, min) >= 0 }

// Compare returns -1, 0 or +1 as a is less, equally or more severe than b.
func Compare(a, b Level) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Max returns the most severe of levels, or 0 when levels is empty.
func Max(levels ...Level) Level {
	var m Level
	for _, l := range levels {
		if l > m {
			m = l
		}
	}
	return m
}

// Parse reads a level name case-insensitively.
func Parse(s string) (Level, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for l, n := range names {
		if n == want {
			return l, nil
		}
	}
	return 0, fmt.Errorf("severity: unknown level %q", s)
}

func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*l = v
	return nil
}
