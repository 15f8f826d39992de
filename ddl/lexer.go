package ddl

type TokenType int

const (
	Identifier TokenType = iota
	QuotedIdent
	String
	Int
	Float
	Comma
	ParenOpen
	ParenClose
	Symbol
	Create
	Or
	Replace
	TableKeyword
	ViewKeyword
	FunctionKeyword
	IndexKeyword
	SequenceKeyword
	TypeKeyword
	ConstraintKeyword
	Alter
	Add
	As
	Enum
	On
	Not
	Null
	Default
	Comment
	PrimaryKey
	Foreign
	Key
	References
	Check
	Unique
	Returns
	Where
	Start
	Increment
	Cycle
	EOF
	Unknown
)

type Token struct {
	Type  TokenType
	Value string
}

// IsKeyword reports whether the token is a reserved word rather than an
// identifier, literal or punctuation.
func (t Token) IsKeyword() bool {
	return t.Type > Symbol && t.Type < EOF
}

type Lexer struct {
	text         string
	position     int
	readPosition int
	ch           byte
}

func NewLexer(text string) *Lexer {
	lexer := &Lexer{text: text}
	lexer.readChar()
	return lexer
}

func (lexer *Lexer) readChar() {
	if lexer.readPosition >= len(lexer.text) {
		lexer.ch = 0
	} else {
		lexer.ch = lexer.text[lexer.readPosition]
	}
	lexer.position = lexer.readPosition
	lexer.readPosition++
}

func (lexer *Lexer) peekChar() byte {
	if lexer.readPosition >= len(lexer.text) {
		return 0
	}
	return lexer.text[lexer.readPosition]
}

func (lexer *Lexer) NextToken() Token {
	lexer.skipInsignificant()

	switch lexer.ch {
	case 0:
		return Token{Type: EOF}
	case ',':
		lexer.readChar()
		return Token{Type: Comma, Value: ","}
	case '(':
		lexer.readChar()
		return Token{Type: ParenOpen, Value: "("}
	case ')':
		lexer.readChar()
		return Token{Type: ParenClose, Value: ")"}
	case '\'':
		return Token{Type: String, Value: lexer.readString()}
	case '"':
		return Token{Type: QuotedIdent, Value: lexer.readQuotedIdent()}
	}

	if isDigit(lexer.ch) {
		num := lexer.readNumber()
		if lexer.ch == '.' && isDigit(lexer.peekChar()) {
			lexer.readChar()
			decimal := lexer.readNumber()
			return Token{Type: Float, Value: num + "." + decimal}
		}
		return Token{Type: Int, Value: num}
	}

	if isAlphaNumeric(lexer.ch) {
		literal := lexer.readIdentifier()
		if toUpper(literal) == "PRIMARY" {
			lexer.skipInsignificant()
			next := lexer.readIdentifier()
			if toUpper(next) == "KEY" {
				return Token{Type: PrimaryKey, Value: "PRIMARY KEY"}
			}
			return Token{Type: Unknown, Value: literal + " " + next}
		}
		return Token{Type: lookupKeyword(literal), Value: literal}
	}

	ch := lexer.ch
	lexer.readChar()
	return Token{Type: Symbol, Value: string(ch)}
}

func (lexer *Lexer) PeekToken() Token {
	savedPosition := lexer.position
	savedReadPosition := lexer.readPosition
	savedCh := lexer.ch

	token := lexer.NextToken()

	lexer.position = savedPosition
	lexer.readPosition = savedReadPosition
	lexer.ch = savedCh

	return token
}

// skipInsignificant consumes whitespace, -- line comments and /* */ block
// comments. Comment text never reaches the token stream, so it never
// reaches the hasher either.
func (lexer *Lexer) skipInsignificant() {
	for {
		for lexer.ch == ' ' || lexer.ch == '\t' || lexer.ch == '\n' || lexer.ch == '\r' {
			lexer.readChar()
		}
		if lexer.ch == '-' && lexer.peekChar() == '-' {
			for lexer.ch != '\n' && lexer.ch != 0 {
				lexer.readChar()
			}
			continue
		}
		if lexer.ch == '/' && lexer.peekChar() == '*' {
			lexer.readChar()
			lexer.readChar()
			for lexer.ch != 0 {
				if lexer.ch == '*' && lexer.peekChar() == '/' {
					lexer.readChar()
					lexer.readChar()
					break
				}
				lexer.readChar()
			}
			continue
		}
		return
	}
}

func (lexer *Lexer) readIdentifier() string {
	position := lexer.position
	for isAlphaNumeric(lexer.ch) {
		lexer.readChar()
	}
	return lexer.text[position:lexer.position]
}

func (lexer *Lexer) readString() string {
	lexer.readChar() // skip opening quote
	position := lexer.position
	for lexer.ch != '\'' && lexer.ch != 0 {
		lexer.readChar()
	}
	str := lexer.text[position:lexer.position]
	lexer.readChar() // skip closing quote
	return str
}

func (lexer *Lexer) readQuotedIdent() string {
	lexer.readChar() // skip opening quote
	position := lexer.position
	for lexer.ch != '"' && lexer.ch != 0 {
		lexer.readChar()
	}
	str := lexer.text[position:lexer.position]
	lexer.readChar() // skip closing quote
	return str
}

func (lexer *Lexer) readNumber() string {
	position := lexer.position
	for isDigit(lexer.ch) {
		lexer.readChar()
	}
	return lexer.text[position:lexer.position]
}

func isAlphaNumeric(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch == '_' || ch == '.' || isDigit(ch)
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func lookupKeyword(id string) TokenType {
	switch toUpper(id) {
	case "CREATE":
		return Create
	case "OR":
		return Or
	case "REPLACE":
		return Replace
	case "TABLE":
		return TableKeyword
	case "VIEW":
		return ViewKeyword
	case "FUNCTION":
		return FunctionKeyword
	case "INDEX":
		return IndexKeyword
	case "SEQUENCE":
		return SequenceKeyword
	case "TYPE":
		return TypeKeyword
	case "CONSTRAINT":
		return ConstraintKeyword
	case "ALTER":
		return Alter
	case "ADD":
		return Add
	case "AS":
		return As
	case "ENUM":
		return Enum
	case "ON":
		return On
	case "NOT":
		return Not
	case "NULL":
		return Null
	case "DEFAULT":
		return Default
	case "COMMENT":
		return Comment
	case "FOREIGN":
		return Foreign
	case "KEY":
		return Key
	case "REFERENCES":
		return References
	case "CHECK":
		return Check
	case "UNIQUE":
		return Unique
	case "RETURNS":
		return Returns
	case "WHERE":
		return Where
	case "START":
		return Start
	case "INCREMENT":
		return Increment
	case "CYCLE":
		return Cycle
	default:
		return Identifier
	}
}

// toUpper converts a string to uppercase without allocating for ASCII
// strings that are already uppercase.
func toUpper(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 'a' && s[i] <= 'z' {
			b := make([]byte, len(s))
			for j := 0; j < len(s); j++ {
				if s[j] >= 'a' && s[j] <= 'z' {
					b[j] = s[j] - 32
				} else {
					b[j] = s[j]
				}
			}
			return string(b)
		}
	}
	return s
}

// toLower is the identifier-folding counterpart of toUpper.
func toLower(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			b := make([]byte, len(s))
			for j := 0; j < len(s); j++ {
				if s[j] >= 'A' && s[j] <= 'Z' {
					b[j] = s[j] + 32
				} else {
					b[j] = s[j]
				}
			}
			return string(b)
		}
	}
	return s
}

func tokenize(text string) []Token {
	lexer := NewLexer(text)

	var tokens []Token

	for {
		token := lexer.NextToken()
		if token.Type == EOF {
			return append(tokens, token)
		}
		tokens = append(tokens, token)
	}
}
