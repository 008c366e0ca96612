package semantic

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type tokenSet map[string]struct{}

func newTokenSet(words ...string) tokenSet {
	s := make(tokenSet, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

func (s tokenSet) matchAny(tokens []string) bool {
	for _, t := range tokens {
		if _, ok := s[t]; ok {
			return true
		}
	}
	return false
}

var (
	identifierTokens = newTokenSet("id", "uuid", "guid", "key", "pk", "code", "sku", "ref", "reference", "number", "num", "identifier")
	nameTokens       = newTokenSet("name", "firstname", "lastname", "fullname", "surname", "forename", "author", "owner", "person")
	amountTokens     = newTokenSet("amount", "price", "cost", "total", "sum", "salary", "revenue", "fee", "balance", "payment", "income", "budget", "tax", "spend", "wage")
	contactTokens    = newTokenSet("email", "mail", "phone", "tel", "telephone", "mobile", "cell", "fax", "contact")
	dateTokens       = newTokenSet("date", "time", "timestamp", "datetime", "created", "updated", "modified", "dob", "birthday", "birthdate", "day", "month", "year")
	categoryTokens   = newTokenSet("category", "type", "status", "kind", "class", "group", "level", "tier", "gender", "region", "country", "state", "segment", "department", "grade")
	textTokens       = newTokenSet("description", "desc", "comment", "comments", "note", "notes", "text", "body", "message", "content", "summary", "remarks", "feedback", "review", "bio", "details")
)

// Tokenize splits a column name into lowercase ASCII-folded tokens. Runs of
// non-alphanumerics and camelCase boundaries both separate tokens, so
// "Customer_Email", "customerEmail" and "customer email" tokenize alike.
func Tokenize(column string) []string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	folded, _, err := transform.String(t, strings.TrimSpace(column))
	if err != nil {
		folded = column
	}

	var (
		tokens []string
		cur    []rune
		prev   rune
	)
	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if unicode.IsUpper(r) && unicode.IsLower(prev) {
				flush()
			}
			cur = append(cur, r)
		default:
			flush()
		}
		prev = r
	}
	flush()
	return tokens
}
