package ddl

import (
	"errors"
	"strconv"
	"strings"

	"github.com/avendley/schemavc/core"
)

// Definition is a parsed schema object definition.
type Definition interface {
	ObjectType() core.ObjectType
	Ref() core.ObjectRef
}

type TableDefinition struct {
	Schema string
	Name   string
	Table  core.TableDef
}

type ViewDefinition struct {
	Schema string
	Name   string
	View   core.ViewDef
}

type FunctionDefinition struct {
	Schema   string
	Name     string
	Function core.FunctionDef
}

type IndexDefinition struct {
	Schema string
	Name   string
	Index  core.IndexDef
}

type SequenceDefinition struct {
	Schema   string
	Name     string
	Sequence core.SequenceDef
}

type TypeDefinition struct {
	Schema string
	Name   string
	Type   core.TypeDef
}

// ConstraintDefinition is a standalone constraint object, observed as
// ALTER TABLE ... ADD CONSTRAINT.
type ConstraintDefinition struct {
	Schema     string
	Name       string
	Table      string
	Constraint core.Constraint
}

func (d TableDefinition) ObjectType() core.ObjectType      { return core.TableObject }
func (d ViewDefinition) ObjectType() core.ObjectType       { return core.ViewObject }
func (d FunctionDefinition) ObjectType() core.ObjectType   { return core.FunctionObject }
func (d IndexDefinition) ObjectType() core.ObjectType      { return core.IndexObject }
func (d SequenceDefinition) ObjectType() core.ObjectType   { return core.SequenceObject }
func (d TypeDefinition) ObjectType() core.ObjectType       { return core.TypeObject }
func (d ConstraintDefinition) ObjectType() core.ObjectType { return core.ConstraintObject }

func (d TableDefinition) Ref() core.ObjectRef {
	return core.ObjectRef{Type: core.TableObject, Schema: d.Schema, Name: d.Name}
}
func (d ViewDefinition) Ref() core.ObjectRef {
	return core.ObjectRef{Type: core.ViewObject, Schema: d.Schema, Name: d.Name}
}
func (d FunctionDefinition) Ref() core.ObjectRef {
	return core.ObjectRef{Type: core.FunctionObject, Schema: d.Schema, Name: d.Name}
}
func (d IndexDefinition) Ref() core.ObjectRef {
	return core.ObjectRef{Type: core.IndexObject, Schema: d.Schema, Name: d.Name}
}
func (d SequenceDefinition) Ref() core.ObjectRef {
	return core.ObjectRef{Type: core.SequenceObject, Schema: d.Schema, Name: d.Name}
}
func (d TypeDefinition) Ref() core.ObjectRef {
	return core.ObjectRef{Type: core.TypeObject, Schema: d.Schema, Name: d.Name}
}
func (d ConstraintDefinition) Ref() core.ObjectRef {
	return core.ObjectRef{Type: core.ConstraintObject, Schema: d.Schema, Name: d.Name}
}

type Parser struct {
	lexer *Lexer
}

func NewParser(text string) *Parser {
	return &Parser{lexer: NewLexer(text)}
}

// Parse parses a single definition statement.
func Parse(text string) (Definition, error) {
	return NewParser(text).Parse()
}

func (parser *Parser) Parse() (Definition, error) {
	token := parser.lexer.NextToken()
	switch token.Type {
	case Create:
		return ParseCreate(parser)
	case Alter:
		return ParseAddConstraint(parser)
	default:
		return nil, errors.New("expected CREATE or ALTER TABLE ... ADD CONSTRAINT")
	}
}

func ParseCreate(parser *Parser) (Definition, error) {
	token := parser.lexer.NextToken()

	// CREATE OR REPLACE is equivalent to CREATE for versioning purposes
	if token.Type == Or {
		token = parser.lexer.NextToken()
		if token.Type != Replace {
			return nil, errors.New("expected REPLACE after OR")
		}
		token = parser.lexer.NextToken()
	}

	switch token.Type {
	case TableKeyword:
		return ParseCreateTable(parser)
	case ViewKeyword:
		return ParseCreateView(parser)
	case FunctionKeyword:
		return ParseCreateFunction(parser)
	case IndexKeyword:
		return ParseCreateIndex(parser, false)
	case Unique:
		token = parser.lexer.NextToken()
		if token.Type != IndexKeyword {
			return nil, errors.New("expected INDEX after UNIQUE")
		}
		return ParseCreateIndex(parser, true)
	case SequenceKeyword:
		return ParseCreateSequence(parser)
	case TypeKeyword:
		return ParseCreateType(parser)
	default:
		return nil, errors.New("expected TABLE, VIEW, FUNCTION, INDEX, SEQUENCE, or TYPE after CREATE")
	}
}

// parseQualifiedName reads an identifier and splits schema.name parts.
// A bare name lands in the "public" schema.
func parseQualifiedName(parser *Parser) (schema, name string, err error) {
	token := parser.lexer.NextToken()
	if token.Type != Identifier && token.Type != QuotedIdent {
		return "", "", errors.New("expected object name")
	}

	value := token.Value
	if token.Type == Identifier {
		value = toLower(value)
	}

	parts := strings.Split(value, ".")
	switch len(parts) {
	case 1:
		return "public", parts[0], nil
	case 2:
		return parts[0], parts[1], nil
	default:
		return "", "", errors.New("expected name or schema.name")
	}
}

// parseTypeName reads a type such as int, varchar(255) or numeric(10,2)
// and renders it in compact lowercase form.
func parseTypeName(parser *Parser) (string, error) {
	token := parser.lexer.NextToken()
	if token.Type != Identifier {
		return "", errors.New("expected type name")
	}
	name := toLower(token.Value)

	if parser.lexer.PeekToken().Type != ParenOpen {
		return name, nil
	}
	parser.lexer.NextToken() // consume '('

	var args []string
	for {
		token = parser.lexer.NextToken()
		switch token.Type {
		case Int, Float, Identifier:
			args = append(args, toLower(token.Value))
		default:
			return "", errors.New("expected type argument")
		}

		token = parser.lexer.NextToken()
		if token.Type == Comma {
			continue
		}
		if token.Type == ParenClose {
			return name + "(" + strings.Join(args, ",") + ")", nil
		}
		return "", errors.New("expected ',' or ')' in type arguments")
	}
}

// parseLiteral reads a default value or similar literal.
func parseLiteral(parser *Parser) (string, error) {
	token := parser.lexer.NextToken()
	switch token.Type {
	case String:
		return "'" + token.Value + "'", nil
	case Int, Float:
		return token.Value, nil
	case Null:
		return "NULL", nil
	case Identifier:
		// function-style defaults such as now()
		value := toLower(token.Value)
		if parser.lexer.PeekToken().Type == ParenOpen {
			parser.lexer.NextToken()
			token = parser.lexer.NextToken()
			if token.Type != ParenClose {
				return "", errors.New("expected ')' in default expression")
			}
			return value + "()", nil
		}
		return value, nil
	case Symbol:
		if token.Value == "-" {
			rest, err := parseLiteral(parser)
			if err != nil {
				return "", err
			}
			return "-" + rest, nil
		}
		return "", errors.New("unexpected symbol in literal")
	default:
		return "", errors.New("expected literal value")
	}
}

func ParseCreateTable(parser *Parser) (Definition, error) {
	var def TableDefinition

	schema, name, err := parseQualifiedName(parser)
	if err != nil {
		return nil, err
	}
	def.Schema, def.Name = schema, name

	token := parser.lexer.NextToken()
	if token.Type != ParenOpen {
		return nil, errors.New("expected '(' after table name")
	}

	for {
		peek := parser.lexer.PeekToken()
		if peek.Type == ConstraintKeyword || peek.Type == PrimaryKey ||
			peek.Type == Unique || peek.Type == Foreign || peek.Type == Check {
			constraint, err := parseConstraintClause(parser)
			if err != nil {
				return nil, err
			}
			def.Table.Constraints = append(def.Table.Constraints, constraint)
		} else {
			column, err := parseColumn(parser)
			if err != nil {
				return nil, err
			}
			def.Table.Columns = append(def.Table.Columns, column)
		}

		token = parser.lexer.NextToken()
		if token.Type == Comma {
			continue
		}
		if token.Type == ParenClose {
			break
		}
		return nil, errors.New("expected ',' or ')' in column list")
	}

	comment, err := parseTrailingComment(parser)
	if err != nil {
		return nil, err
	}
	def.Table.Comment = comment

	return def, nil
}

func parseColumn(parser *Parser) (core.Column, error) {
	var column core.Column

	token := parser.lexer.NextToken()
	switch token.Type {
	case Identifier:
		column.Name = toLower(token.Value)
	case QuotedIdent:
		column.Name = token.Value
	default:
		return column, errors.New("expected column name")
	}

	columnType, err := parseTypeName(parser)
	if err != nil {
		return column, err
	}
	column.Type = columnType

	for {
		switch parser.lexer.PeekToken().Type {
		case Not:
			parser.lexer.NextToken()
			token = parser.lexer.NextToken()
			if token.Type != Null {
				return column, errors.New("expected NULL after NOT")
			}
			column.NotNull = true
		case Default:
			parser.lexer.NextToken()
			value, err := parseLiteral(parser)
			if err != nil {
				return column, err
			}
			column.Default = value
		case Comment:
			parser.lexer.NextToken()
			token = parser.lexer.NextToken()
			if token.Type != String {
				return column, errors.New("expected string after COMMENT")
			}
			column.Comment = token.Value
		default:
			return column, nil
		}
	}
}

// parseConstraintClause parses an optionally named table constraint.
func parseConstraintClause(parser *Parser) (core.Constraint, error) {
	var constraint core.Constraint

	token := parser.lexer.NextToken()
	if token.Type == ConstraintKeyword {
		token = parser.lexer.NextToken()
		if token.Type != Identifier && token.Type != QuotedIdent {
			return constraint, errors.New("expected constraint name after CONSTRAINT")
		}
		constraint.Name = toLower(token.Value)
		token = parser.lexer.NextToken()
	}

	switch token.Type {
	case PrimaryKey:
		constraint.Kind = "PRIMARY KEY"
	case Unique:
		constraint.Kind = "UNIQUE"
	case Foreign:
		token = parser.lexer.NextToken()
		if token.Type != Key {
			return constraint, errors.New("expected KEY after FOREIGN")
		}
		constraint.Kind = "FOREIGN KEY"
	case Check:
		constraint.Kind = "CHECK"
	default:
		return constraint, errors.New("expected PRIMARY KEY, UNIQUE, FOREIGN KEY, or CHECK")
	}

	expr, err := parseBalancedClause(parser)
	if err != nil {
		return constraint, err
	}
	constraint.Expr = expr

	return constraint, nil
}

// parseBalancedClause captures the remainder of a constraint clause up to
// a top-level ',' or ')', rendered canonically.
func parseBalancedClause(parser *Parser) (string, error) {
	var parts []string
	depth := 0

	for {
		peek := parser.lexer.PeekToken()
		if peek.Type == EOF {
			return strings.Join(parts, " "), nil
		}
		if depth == 0 && (peek.Type == Comma || peek.Type == ParenClose) {
			return strings.Join(parts, " "), nil
		}
		token := parser.lexer.NextToken()
		if token.Type == ParenOpen {
			depth++
		}
		if token.Type == ParenClose {
			depth--
		}
		parts = append(parts, renderToken(token))
	}
}

// parseTrailingComment consumes an optional COMMENT 'text' tail.
func parseTrailingComment(parser *Parser) (string, error) {
	if parser.lexer.PeekToken().Type != Comment {
		return "", nil
	}
	parser.lexer.NextToken()
	token := parser.lexer.NextToken()
	if token.Type != String {
		return "", errors.New("expected string after COMMENT")
	}
	return token.Value, nil
}

func ParseCreateView(parser *Parser) (Definition, error) {
	var def ViewDefinition

	schema, name, err := parseQualifiedName(parser)
	if err != nil {
		return nil, err
	}
	def.Schema, def.Name = schema, name

	token := parser.lexer.NextToken()
	if token.Type != As {
		return nil, errors.New("expected AS after view name")
	}

	// Capture the query as the canonical rendering of the remaining
	// tokens; a trailing COMMENT 'text' belongs to the view, not the query.
	var parts []string
	for {
		peek := parser.lexer.PeekToken()
		if peek.Type == EOF {
			break
		}
		if peek.Type == Comment {
			comment, err := parseTrailingComment(parser)
			if err != nil {
				return nil, err
			}
			def.View.Comment = comment
			break
		}
		parts = append(parts, renderToken(parser.lexer.NextToken()))
	}

	if len(parts) == 0 {
		return nil, errors.New("expected query after AS")
	}
	def.View.Query = strings.Join(parts, " ")

	return def, nil
}

func ParseCreateFunction(parser *Parser) (Definition, error) {
	var def FunctionDefinition

	schema, name, err := parseQualifiedName(parser)
	if err != nil {
		return nil, err
	}
	def.Schema, def.Name = schema, name

	token := parser.lexer.NextToken()
	if token.Type != ParenOpen {
		return nil, errors.New("expected '(' after function name")
	}

	if parser.lexer.PeekToken().Type == ParenClose {
		parser.lexer.NextToken()
	} else {
		for {
			var param core.Parameter

			token = parser.lexer.NextToken()
			if token.Type != Identifier && token.Type != QuotedIdent {
				return nil, errors.New("expected parameter name")
			}
			param.Name = toLower(token.Value)

			paramType, err := parseTypeName(parser)
			if err != nil {
				return nil, err
			}
			param.Type = paramType

			if parser.lexer.PeekToken().Type == Default {
				parser.lexer.NextToken()
				value, err := parseLiteral(parser)
				if err != nil {
					return nil, err
				}
				param.Default = value
			}

			def.Function.Params = append(def.Function.Params, param)

			token = parser.lexer.NextToken()
			if token.Type == Comma {
				continue
			}
			if token.Type == ParenClose {
				break
			}
			return nil, errors.New("expected ',' or ')' in parameter list")
		}
	}

	token = parser.lexer.NextToken()
	if token.Type != Returns {
		return nil, errors.New("expected RETURNS after parameter list")
	}

	returns, err := parseTypeName(parser)
	if err != nil {
		return nil, err
	}
	def.Function.Returns = returns

	token = parser.lexer.NextToken()
	if token.Type != As {
		return nil, errors.New("expected AS after return type")
	}

	token = parser.lexer.NextToken()
	if token.Type != String {
		return nil, errors.New("expected quoted function body after AS")
	}
	def.Function.Body = token.Value

	comment, err := parseTrailingComment(parser)
	if err != nil {
		return nil, err
	}
	def.Function.Comment = comment

	return def, nil
}

// ParseCreateIndex parses CREATE [UNIQUE] INDEX name ON table (col, ...)
// with an optional WHERE predicate for partial indexes.
func ParseCreateIndex(parser *Parser, unique bool) (Definition, error) {
	var def IndexDefinition
	def.Index.Unique = unique

	schema, name, err := parseQualifiedName(parser)
	if err != nil {
		return nil, err
	}
	def.Schema, def.Name = schema, name

	token := parser.lexer.NextToken()
	if token.Type != On {
		return nil, errors.New("expected ON after index name")
	}

	token = parser.lexer.NextToken()
	if token.Type != Identifier && token.Type != QuotedIdent {
		return nil, errors.New("expected table name after ON")
	}
	def.Index.Table = toLower(token.Value)

	token = parser.lexer.NextToken()
	if token.Type != ParenOpen {
		return nil, errors.New("expected '(' after table name")
	}

	for {
		token = parser.lexer.NextToken()
		if token.Type != Identifier && token.Type != QuotedIdent {
			return nil, errors.New("expected column name in index column list")
		}
		def.Index.Columns = append(def.Index.Columns, toLower(token.Value))

		token = parser.lexer.NextToken()
		if token.Type == Comma {
			continue
		}
		if token.Type == ParenClose {
			break
		}
		return nil, errors.New("expected ',' or ')' in index column list")
	}

	if parser.lexer.PeekToken().Type == Where {
		parser.lexer.NextToken()
		var parts []string
		for {
			peek := parser.lexer.PeekToken()
			if peek.Type == EOF || peek.Type == Comment {
				break
			}
			parts = append(parts, renderToken(parser.lexer.NextToken()))
		}
		if len(parts) == 0 {
			return nil, errors.New("expected predicate after WHERE")
		}
		def.Index.Predicate = strings.Join(parts, " ")
	}

	comment, err := parseTrailingComment(parser)
	if err != nil {
		return nil, err
	}
	def.Index.Comment = comment

	return def, nil
}

func ParseCreateSequence(parser *Parser) (Definition, error) {
	def := SequenceDefinition{Sequence: core.SequenceDef{Start: 1, Increment: 1}}

	schema, name, err := parseQualifiedName(parser)
	if err != nil {
		return nil, err
	}
	def.Schema, def.Name = schema, name

	for {
		switch parser.lexer.PeekToken().Type {
		case Start:
			parser.lexer.NextToken()
			value, err := parseSignedInt(parser)
			if err != nil {
				return nil, err
			}
			def.Sequence.Start = value
		case Increment:
			parser.lexer.NextToken()
			value, err := parseSignedInt(parser)
			if err != nil {
				return nil, err
			}
			def.Sequence.Increment = value
		case Cycle:
			parser.lexer.NextToken()
			def.Sequence.Cycle = true
		case Comment:
			comment, err := parseTrailingComment(parser)
			if err != nil {
				return nil, err
			}
			def.Sequence.Comment = comment
			return def, nil
		case EOF:
			return def, nil
		default:
			return nil, errors.New("expected START, INCREMENT, CYCLE, or COMMENT in sequence definition")
		}
	}
}

func parseSignedInt(parser *Parser) (int64, error) {
	negative := false
	token := parser.lexer.NextToken()
	if token.Type == Symbol && token.Value == "-" {
		negative = true
		token = parser.lexer.NextToken()
	}
	if token.Type != Int {
		return 0, errors.New("expected integer value")
	}
	value, err := strconv.ParseInt(token.Value, 10, 64)
	if err != nil {
		return 0, err
	}
	if negative {
		value = -value
	}
	return value, nil
}

func ParseCreateType(parser *Parser) (Definition, error) {
	var def TypeDefinition

	schema, name, err := parseQualifiedName(parser)
	if err != nil {
		return nil, err
	}
	def.Schema, def.Name = schema, name

	token := parser.lexer.NextToken()
	if token.Type != As {
		return nil, errors.New("expected AS after type name")
	}

	if parser.lexer.PeekToken().Type == Enum {
		parser.lexer.NextToken()
		token = parser.lexer.NextToken()
		if token.Type != ParenOpen {
			return nil, errors.New("expected '(' after ENUM")
		}
		for {
			token = parser.lexer.NextToken()
			if token.Type != String {
				return nil, errors.New("expected string enum value")
			}
			def.Type.Values = append(def.Type.Values, token.Value)

			token = parser.lexer.NextToken()
			if token.Type == Comma {
				continue
			}
			if token.Type == ParenClose {
				break
			}
			return nil, errors.New("expected ',' or ')' in enum value list")
		}
	} else {
		token = parser.lexer.NextToken()
		if token.Type != ParenOpen {
			return nil, errors.New("expected ENUM or '(' after AS")
		}
		for {
			field, err := parseColumn(parser)
			if err != nil {
				return nil, err
			}
			def.Type.Fields = append(def.Type.Fields, field)

			token = parser.lexer.NextToken()
			if token.Type == Comma {
				continue
			}
			if token.Type == ParenClose {
				break
			}
			return nil, errors.New("expected ',' or ')' in field list")
		}
	}

	comment, err := parseTrailingComment(parser)
	if err != nil {
		return nil, err
	}
	def.Type.Comment = comment

	return def, nil
}

// ParseAddConstraint parses ALTER TABLE schema.table ADD CONSTRAINT name
// <clause>, the definition form of a standalone constraint object.
func ParseAddConstraint(parser *Parser) (Definition, error) {
	token := parser.lexer.NextToken()
	if token.Type != TableKeyword {
		return nil, errors.New("expected TABLE after ALTER")
	}

	schema, table, err := parseQualifiedName(parser)
	if err != nil {
		return nil, err
	}

	token = parser.lexer.NextToken()
	if token.Type != Add {
		return nil, errors.New("expected ADD after table name")
	}
	if parser.lexer.PeekToken().Type != ConstraintKeyword {
		return nil, errors.New("expected CONSTRAINT after ADD")
	}

	constraint, err := parseConstraintClause(parser)
	if err != nil {
		return nil, err
	}
	if constraint.Name == "" {
		return nil, errors.New("standalone constraints must be named")
	}

	return ConstraintDefinition{
		Schema:     schema,
		Name:       constraint.Name,
		Table:      table,
		Constraint: constraint,
	}, nil
}
