// Package dsl parses the theme template language:
//
//	theme <Name> <version> {
//	  meta { title: "Offer" }
//	  resources { font Body { src: "embed:go/regular" } color Ink = #1E1E1E }
//	  page A4 portrait margin 18mm { table { column name label "Item" } }
//	}
//
// The parser only builds the AST; package theme interprets it.
package dsl

import (
	"fmt"
	"io"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	themeLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t\r]+`},
		{Name: "Newline", Pattern: `\n+`},
		{Name: "BlockComment", Pattern: `/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`},
		{Name: "LineComment", Pattern: `//[^\n]*`},
		// 长的优先，避免 #1E1E1E 被截成 #1E1
		{Name: "Color", Pattern: `#(?:[0-9A-Fa-f]{8}|[0-9A-Fa-f]{6}|[0-9A-Fa-f]{3})\b`},
		{Name: "Number", Pattern: `(?:\d+\.\d+|\d+)(?:pt|mm|cm|in|%|x)?`},
		{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_-]*`},
		{Name: "Punct", Pattern: `[\[\](),=;:]`},
		{Name: "LBrace", Pattern: `{`},
		{Name: "RBrace", Pattern: `}`},
	})

	tokenKinds = func() map[lexer.TokenType]string {
		out := map[lexer.TokenType]string{}
		for name, tt := range themeLexer.Symbols() {
			out[tt] = name
		}
		return out
	}()

	themeParser = participle.MustBuild[Document](
		participle.Lexer(themeLexer),
		participle.Elide("Whitespace", "LineComment", "BlockComment"),
	)
)

// Document is the root node of a theme file.
type Document struct {
	Pos      lexer.Position `parser:"" json:"-"`
	Name     string         `parser:"Newline* 'theme' @Ident"`
	Version  string         `parser:"@Ident"`
	Sections []*Section     `parser:"'{' Newline* ( @@ Newline* )* '}' Newline*"`
}

// Section is one of meta, resources or page.
type Section struct {
	Meta      *MetaSection      `parser:"  @@"`
	Resources *ResourcesSection `parser:"| @@"`
	Page      *PageSection      `parser:"| @@"`
}

// Kind returns the section keyword.
func (s *Section) Kind() string {
	switch {
	case s == nil:
		return "unknown"
	case s.Meta != nil:
		return "meta"
	case s.Resources != nil:
		return "resources"
	case s.Page != nil:
		return "page"
	}
	return "unknown"
}

type MetaSection struct {
	Block *Block `parser:"'meta' @@"`
}

type ResourcesSection struct {
	Block *Block `parser:"'resources' @@"`
}

// PageSection holds page geometry (size, orientation, margin) and the
// blocks/footer/table commands.
type PageSection struct {
	Spec  PageSpec `parser:"'page' @@"`
	Block *Block   `parser:"@@"`
}

type PageSpec struct {
	Size   string    `parser:"@Ident"`
	Params []*Lexeme `parser:"@@*"`
}

type Block struct {
	Statements []*Statement `parser:"'{' Newline* ( @@ ( ';' | Newline )* )* '}'"`
}

// Statement is either `key: value` or a command.
type Statement struct {
	Assignment *Assignment `parser:"  @@"`
	Command    *Command    `parser:"| @@"`
}

type Assignment struct {
	Key   string `parser:"@Ident ':'"`
	Value *Value `parser:"Newline* @@"`
}

// Command is a keyword followed by free-form arguments and an optional block,
// e.g. `column name label "Item" width 60mm`.
type Command struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Name  string         `parser:"@Ident"`
	Args  []*Lexeme      `parser:"@@*"`
	Block *Block         `parser:"( Newline* @@ )?"`
}

// Value is the right-hand side of an assignment.
type Value struct {
	String *StringLiteral `parser:"  @String"`
	Number *string        `parser:"| @Number"`
	Color  *string        `parser:"| @Color"`
	Ident  *string        `parser:"| @Ident"`
	List   []*Value       `parser:"| '[' Newline* ( @@ ( ',' | Newline )* )* ']'"`
}

// Text returns the scalar form of v; lists yield "".
func (v *Value) Text() string {
	switch {
	case v == nil:
		return ""
	case v.String != nil:
		return string(*v.String)
	case v.Number != nil:
		return *v.Number
	case v.Color != nil:
		return *v.Color
	case v.Ident != nil:
		return *v.Ident
	}
	return ""
}

// Strings flattens a list (or a single scalar) into non-empty strings.
func (v *Value) Strings() []string {
	if v == nil {
		return nil
	}
	if v.List == nil {
		if s := v.Text(); s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(v.List))
	for _, item := range v.List {
		if s := item.Text(); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Lexeme is a single command argument. Strings are already unquoted in Value.
type Lexeme struct {
	Type  string         `json:"type"`
	Value string         `json:"value"`
	Raw   string         `json:"raw"`
	Pos   lexer.Position `json:"-"`
}

// Parse implements participle.Parseable: arguments run until a newline, a
// brace or ';'.
func (l *Lexeme) Parse(lex *lexer.PeekingLexer) error {
	peek := lex.Peek()
	if peek.EOF() {
		return participle.NextMatch
	}
	kind := tokenKinds[peek.Type]
	switch {
	case kind == "Newline", kind == "LBrace", kind == "RBrace":
		return participle.NextMatch
	case kind == "Punct" && peek.Value == ";":
		return participle.NextMatch
	}
	tok := lex.Next()
	val := tok.Value
	if kind == "String" {
		unquoted, err := strconv.Unquote(tok.Value)
		if err != nil {
			return fmt.Errorf("%s: %w", tok.Pos, err)
		}
		val = unquoted
	}
	*l = Lexeme{Type: kind, Value: val, Raw: tok.Value, Pos: tok.Pos}
	return nil
}

// StringLiteral unquotes Go-style strings on capture.
type StringLiteral string

// Capture implements participle.Capture.
func (s *StringLiteral) Capture(values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("string literal capture requires value")
	}
	val, err := strconv.Unquote(values[0])
	if err != nil {
		return err
	}
	*s = StringLiteral(val)
	return nil
}

// Parse parses a theme from r; filename only appears in error positions.
func Parse(filename string, r io.Reader) (*Document, error) {
	return themeParser.Parse(filename, r)
}

// ParseString parses a theme held in memory.
func ParseString(input string) (*Document, error) {
	return themeParser.ParseString("", input)
}

// Args splits command arguments into an optional leading identifier and
// key/value pairs: `column name label "Item" width 60mm` yields
// ("name", {label: Item, width: 60mm}). A trailing key without value is dropped.
func Args(args []*Lexeme, leadingIdent bool) (string, map[string]string) {
	attrs := map[string]string{}
	var lead string
	if leadingIdent && len(args) > 0 && args[0].Type == "Ident" {
		lead = args[0].Value
		args = args[1:]
	}
	for i := 0; i+1 < len(args); i += 2 {
		attrs[args[i].Value] = args[i+1].Value
	}
	return lead, attrs
}
