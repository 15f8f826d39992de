package ddl

import "strings"

// Normalize renders a definition in canonical form: comments stripped,
// whitespace collapsed to single spaces, keywords uppercased, unquoted
// identifiers folded to lower case, quoted identifiers and string
// literals preserved verbatim.
//
// Two definitions that differ only in formatting or comment text
// normalize to the same text and therefore hash to the same content id.
func Normalize(text string) string {
	tokens := tokenize(text)

	var b strings.Builder
	for i, token := range tokens {
		if token.Type == EOF {
			break
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(renderToken(token))
	}
	return b.String()
}

func renderToken(token Token) string {
	switch {
	case token.Type == Identifier:
		return toLower(token.Value)
	case token.Type == QuotedIdent:
		return `"` + token.Value + `"`
	case token.Type == String:
		return "'" + token.Value + "'"
	case token.IsKeyword():
		return toUpper(token.Value)
	default:
		return token.Value
	}
}
