package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexPunctuationAndWords(t *testing.T) {
	tokens, err := Lex(`tag:red year>=2020 -draft "hello world" ^x %y !a/b:LIKES>`)
	require.NoError(t, err)

	var kinds []Kind
	for _, tok := range tokens {
		kinds = append(kinds, tok.Kind)
	}
	assert.Equal(t, []Kind{
		TEXT, COLON, TEXT,
		TEXT, GTE, NUMBER,
		MINUS, TEXT,
		QUOTED,
		CARET, TEXT,
		PERCENT, TEXT,
		BANG, TEXT, COLON, TEXT, GT,
		EOF,
	}, kinds)
}

func TestLexQuotedHandlesEscapes(t *testing.T) {
	tokens, err := Lex(`"a \"quoted\" word"`)
	require.NoError(t, err)
	require.Equal(t, QUOTED, tokens[0].Kind)
	assert.Equal(t, `a "quoted" word`, tokens[0].Text)
}

func TestLexUnterminatedQuoteErrors(t *testing.T) {
	_, err := Lex(`"unterminated`)
	assert.Error(t, err)
}

func TestLexNumberVsText(t *testing.T) {
	tokens, err := Lex("3.5 -3.5 3.5.6")
	require.NoError(t, err)
	assert.Equal(t, NUMBER, tokens[0].Kind)
	assert.Equal(t, MINUS, tokens[1].Kind)
	assert.Equal(t, NUMBER, tokens[2].Kind)
	// "3.5.6" has two dots so isNumber rejects it; it lexes as TEXT.
	assert.Equal(t, TEXT, tokens[3].Kind)
}

func TestLexDoubleStarBeforeStar(t *testing.T) {
	tokens, err := Lex("path:a/**/b")
	require.NoError(t, err)
	var found bool
	for _, tok := range tokens {
		if tok.Kind == DOUBLESTAR {
			found = true
		}
	}
	assert.True(t, found, "** must lex as one DOUBLESTAR token, not two STAR tokens")
}

func TestLexSlashIsNotABoundary(t *testing.T) {
	tokens, err := Lex("art/a")
	require.NoError(t, err)
	require.Equal(t, TEXT, tokens[0].Kind)
	assert.Equal(t, "art/a", tokens[0].Text)
}
