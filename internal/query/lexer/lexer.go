// Package lexer tokenizes the archive query language (spec.md §4.8):
// bare words, quoted phrases, numbers, comparison/range punctuation,
// and the prefix modifiers that precede a term.
package lexer

import (
	"strings"

	"github.com/dlfi/archive/internal/archiveerr"
)

// Kind identifies a token's lexical category.
type Kind int

const (
	EOF Kind = iota
	TEXT
	QUOTED
	NUMBER
	COLON     // :
	EQ        // =
	GT        // >
	LT        // <
	GTE       // >=
	LTE       // <=
	DOTDOT    // ..
	PIPE      // |
	LPAREN    // (
	RPAREN    // )
	QUESTION  // ?
	STAR      // *
	DOUBLESTAR // **
	MINUS     // -
	CARET     // ^
	PERCENT   // %
	BANG      // !
)

// Token is one lexed unit together with its source offset, used to
// report ParseError.Position.
type Token struct {
	Kind Kind
	Text string // decoded text: quotes stripped and escapes resolved for QUOTED
	Pos  int
}

var punctuation = []struct {
	text string
	kind Kind
}{
	{"..", DOTDOT},
	{">=", GTE},
	{"<=", LTE},
	{"**", DOUBLESTAR},
	{":", COLON},
	{"=", EQ},
	{">", GT},
	{"<", LT},
	{"|", PIPE},
	{"(", LPAREN},
	{")", RPAREN},
	{"?", QUESTION},
	{"*", STAR},
	{"-", MINUS},
	{"^", CARET},
	{"%", PERCENT},
	{"!", BANG},
}

// Lex tokenizes src, terminating with an EOF token.
func Lex(src string) ([]Token, error) {
	var tokens []Token
	i := 0
	n := len(src)

	for i < n {
		c := src[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			i++
			continue
		}

		if c == '"' {
			tok, next, err := lexQuoted(src, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = next
			continue
		}

		if matched := matchPunctuation(src, i); matched != "" {
			var kind Kind
			for _, p := range punctuation {
				if p.text == matched {
					kind = p.kind
					break
				}
			}
			tokens = append(tokens, Token{Kind: kind, Text: matched, Pos: i})
			i += len(matched)
			continue
		}

		// bare word / number: run until whitespace, punctuation, or "..";
		// a single '.' stays inside the word (3.5, .jpg).
		start := i
		for i < n && !isBoundary(src[i]) && !strings.HasPrefix(src[i:], "..") {
			i++
		}
		text := src[start:i]
		if text == "" {
			return nil, &archiveerr.ParseError{Message: "unexpected character", Position: start}
		}
		kind := TEXT
		if isNumber(text) {
			kind = NUMBER
		}
		tokens = append(tokens, Token{Kind: kind, Text: text, Pos: start})
	}

	tokens = append(tokens, Token{Kind: EOF, Pos: n})
	return tokens, nil
}

func matchPunctuation(src string, i int) string {
	for _, p := range punctuation {
		if strings.HasPrefix(src[i:], p.text) {
			return p.text
		}
	}
	return ""
}

func isBoundary(c byte) bool {
	if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '"' {
		return true
	}
	for _, p := range punctuation {
		if c == p.text[0] && p.kind != DOTDOT {
			return true
		}
	}
	return false
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	start := 0
	if s[0] == '-' || s[0] == '+' {
		start = 1
	}
	if start == len(s) {
		return false
	}
	seenDigit, seenDot := false, false
	for _, r := range s[start:] {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
		case r == '.' && !seenDot:
			seenDot = true
		default:
			return false
		}
	}
	return seenDigit
}

func lexQuoted(src string, start int) (Token, int, error) {
	var b strings.Builder
	i := start + 1
	n := len(src)
	for i < n {
		c := src[i]
		if c == '\\' && i+1 < n {
			b.WriteByte(src[i+1])
			i += 2
			continue
		}
		if c == '"' {
			return Token{Kind: QUOTED, Text: b.String(), Pos: start}, i + 1, nil
		}
		b.WriteByte(c)
		i++
	}
	return Token{}, 0, &archiveerr.ParseError{Message: "unterminated quoted string", Position: start}
}
