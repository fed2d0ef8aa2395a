// Package token implements Grizzly's single-pass tokenizer: a character
// window scanner producing a flat token stream for parser to consume.
package token

import (
	"strings"

	"github.com/zhukovaskychina/grizzly/errs"
)

// Kind identifies a token's lexical category.
type Kind int

const (
	EOF Kind = iota
	Ident
	Keyword
	Number
	String
	Punct
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case Ident:
		return "Ident"
	case Keyword:
		return "Keyword"
	case Number:
		return "Number"
	case String:
		return "String"
	case Punct:
		return "Punct"
	}
	return "Unknown"
}

// Token is one lexical unit. Text preserves the user's original case for
// identifiers and string contents; for keywords Text is the upper-cased
// canonical spelling while Raw keeps what the user actually typed.
type Token struct {
	Kind Kind
	Text string
	Raw  string
	Pos  int // byte offset in the source the token started at
}

// keywords is the reserved-word set: SQL core plus the Grizzly-specific
// CREATE MODEL/SCHEDULE/TYPE/FUNCTION, REFRESH, SHOW LINEAGE,
// SAVE/LOAD/ATTACH/DETACH DATABASE, and PL-Grizzly SYNC/ASYNC tags.
// Matching is case-insensitive.
var keywords = buildKeywordSet(
	"SELECT", "FROM", "WHERE", "GROUP", "BY", "HAVING", "ORDER", "LIMIT",
	"OFFSET", "AS", "AND", "OR", "NOT", "IS", "NULL", "LIKE", "IN",
	"BETWEEN", "JOIN", "INNER", "LEFT", "RIGHT", "FULL", "OUTER", "ON",
	"WITH", "DISTINCT", "ALL", "UNION", "ASC", "DESC", "TRUE", "FALSE",
	"INSERT", "INTO", "VALUES", "CREATE", "TABLE", "VIEW", "MODEL",
	"TYPE", "FUNCTION", "SCHEDULE", "DROP", "REFRESH", "SHOW", "TABLES",
	"MODELS", "SCHEDULES", "LINEAGE", "FOR", "COLUMN", "DESCRIBE", "SAVE",
	"LOAD", "ATTACH", "DETACH", "DATABASE", "SYNC", "ASYNC", "CASE",
	"WHEN", "THEN", "ELSE", "END", "COUNT", "SUM", "AVG", "MIN", "MAX",
	"VECTOR_SEARCH", "CRON", "PARTITION", "WATERMARK", "USING", "SET",
	"DEFAULT", "PRIMARY", "KEY", "INDEX", "UNIQUE", "IF", "EXISTS",
	"MATERIALIZED", "INCREMENTAL", "DATE", "RETURNS", "ENUM", "STRUCT",
	"ALIAS", "RETRY", "TIMES", "DEPENDENCIES", "DATABASES", "TYPES",
	"COMPRESSION",
)

func buildKeywordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// IsKeyword reports whether the upper-cased word is reserved.
func IsKeyword(word string) bool {
	return keywords[strings.ToUpper(word)]
}

const eofRune = -1

// Tokenizer scans src one rune at a time via a one-rune lookahead window.
type Tokenizer struct {
	src      []rune
	pos      int // index of lastChar within src
	lastChar rune
	start    int // byte-ish position (rune index) the current token began at
}

// New creates a Tokenizer over src.
func New(src string) *Tokenizer {
	t := &Tokenizer{src: []rune(src), pos: -1}
	t.next()
	return t
}

func (t *Tokenizer) next() {
	t.pos++
	if t.pos >= len(t.src) {
		t.lastChar = eofRune
		return
	}
	t.lastChar = t.src[t.pos]
}

func (t *Tokenizer) peekAt(offset int) rune {
	i := t.pos + offset
	if i < 0 || i >= len(t.src) {
		return eofRune
	}
	return t.src[i]
}

func isLetter(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func (t *Tokenizer) skipBlank() {
	for t.lastChar == ' ' || t.lastChar == '\t' || t.lastChar == '\n' || t.lastChar == '\r' {
		t.next()
	}
}

// skipLineComment consumes a `-- ...` comment through end of line.
func (t *Tokenizer) skipLineComment() {
	for t.lastChar != '\n' && t.lastChar != eofRune {
		t.next()
	}
}

// Tokenize consumes the entire source and returns its tokens, always
// ending with one EOF token, or an error for an unterminated string or
// a malformed number.
func Tokenize(src string) ([]Token, error) {
	t := New(src)
	var out []Token
	for {
		tok, err := t.Scan()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		if tok.Kind == EOF {
			return out, nil
		}
	}
}

// Scan returns the next token. Calling Scan after EOF keeps returning EOF.
func (t *Tokenizer) Scan() (Token, error) {
	for {
		t.skipBlank()
		if t.lastChar == '-' && t.peekAt(1) == '-' {
			t.skipLineComment()
			continue
		}
		break
	}

	// Pos is a byte offset into the source string (the parser slices the
	// query text with it), while t.pos counts runes.
	start := len(string(t.src[:t.pos]))
	switch {
	case t.lastChar == eofRune:
		return Token{Kind: EOF, Pos: start}, nil
	case isLetter(t.lastChar):
		return t.scanIdentOrKeyword(start), nil
	case isDigit(t.lastChar):
		return t.scanNumber(start)
	case t.lastChar == '\'':
		return t.scanString(start)
	case t.lastChar == '"':
		return t.scanQuotedIdent(start)
	default:
		return t.scanPunct(start)
	}
}

func (t *Tokenizer) scanIdentOrKeyword(start int) Token {
	var b strings.Builder
	for isLetter(t.lastChar) || isDigit(t.lastChar) {
		b.WriteRune(t.lastChar)
		t.next()
	}
	raw := b.String()
	if IsKeyword(raw) {
		return Token{Kind: Keyword, Text: strings.ToUpper(raw), Raw: raw, Pos: start}
	}
	return Token{Kind: Ident, Text: raw, Raw: raw, Pos: start}
}

func (t *Tokenizer) scanNumber(start int) (Token, error) {
	var b strings.Builder
	for isDigit(t.lastChar) {
		b.WriteRune(t.lastChar)
		t.next()
	}
	if t.lastChar == '.' && isDigit(t.peekAt(1)) {
		b.WriteRune(t.lastChar)
		t.next()
		for isDigit(t.lastChar) {
			b.WriteRune(t.lastChar)
			t.next()
		}
	}
	if t.lastChar == 'e' || t.lastChar == 'E' {
		save := b.String()
		savePos := t.pos
		b.WriteRune(t.lastChar)
		t.next()
		if t.lastChar == '+' || t.lastChar == '-' {
			b.WriteRune(t.lastChar)
			t.next()
		}
		if !isDigit(t.lastChar) {
			// not actually an exponent; rewind
			b.Reset()
			b.WriteString(save)
			t.pos = savePos
			t.lastChar = t.src[t.pos]
		} else {
			for isDigit(t.lastChar) {
				b.WriteRune(t.lastChar)
				t.next()
			}
		}
	}
	if isLetter(t.lastChar) {
		return Token{}, errs.NewAt(errs.InvalidNumber, start, "invalid number literal %q", b.String())
	}
	return Token{Kind: Number, Text: b.String(), Raw: b.String(), Pos: start}, nil
}

func (t *Tokenizer) scanString(start int) (Token, error) {
	t.next() // consume opening quote
	var b strings.Builder
	for {
		switch t.lastChar {
		case eofRune:
			return Token{}, errs.NewAt(errs.UnterminatedString, start, "unterminated string literal starting at %d", start)
		case '\'':
			if t.peekAt(1) == '\'' {
				b.WriteRune('\'')
				t.next()
				t.next()
				continue
			}
			t.next()
			return Token{Kind: String, Text: b.String(), Raw: b.String(), Pos: start}, nil
		default:
			b.WriteRune(t.lastChar)
			t.next()
		}
	}
}

func (t *Tokenizer) scanQuotedIdent(start int) (Token, error) {
	t.next() // consume opening quote
	var b strings.Builder
	for {
		switch t.lastChar {
		case eofRune:
			return Token{}, errs.NewAt(errs.UnterminatedString, start, "unterminated quoted identifier starting at %d", start)
		case '"':
			t.next()
			return Token{Kind: Ident, Text: b.String(), Raw: b.String(), Pos: start}, nil
		default:
			b.WriteRune(t.lastChar)
			t.next()
		}
	}
}

// multiCharPunct lists the two-character operators recognized before
// falling back to a single-character punctuation token.
var multiCharPunct = []string{"<=", ">=", "<>", "!=", "||"}

func (t *Tokenizer) scanPunct(start int) (Token, error) {
	first := t.lastChar
	second := t.peekAt(1)
	twoChar := string([]rune{first, second})
	for _, op := range multiCharPunct {
		if twoChar == op {
			t.next()
			t.next()
			return Token{Kind: Punct, Text: twoChar, Raw: twoChar, Pos: start}, nil
		}
	}
	switch first {
	case '(', ')', ',', '.', '*', '/', '+', '-', '=', '<', '>', ';':
		t.next()
		return Token{Kind: Punct, Text: string(first), Raw: string(first), Pos: start}, nil
	default:
		return Token{}, errs.NewAt(errs.UnexpectedToken, start, "unexpected character %q", string(first))
	}
}
