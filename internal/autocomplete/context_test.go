package autocomplete

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStartOfTerm(t *testing.T) {
	c := Classify("", 0)
	assert.Equal(t, StartOfTerm, c.Kind)

	c = Classify("tag:red ", 8)
	assert.Equal(t, StartOfTerm, c.Kind)
}

func TestClassifyPartialKeyword(t *testing.T) {
	c := Classify("ta", 2)
	assert.Equal(t, PartialKeyword, c.Kind)
	assert.Equal(t, "ta", c.Prefix)
}

func TestClassifyStripsModifiersBeforeKeyword(t *testing.T) {
	c := Classify("-^%ta", 5)
	assert.Equal(t, PartialKeyword, c.Kind)
	assert.Equal(t, "ta", c.Prefix)
}

func TestClassifyBareModifierIsStartOfTerm(t *testing.T) {
	c := Classify("^", 1)
	assert.Equal(t, StartOfTerm, c.Kind)
}

func TestClassifyAfterOperator(t *testing.T) {
	c := Classify("tag:re", 6)
	assert.Equal(t, AfterOperator, c.Kind)
	assert.Equal(t, "tag", c.Key)
	assert.Equal(t, "re", c.Prefix)
}

func TestClassifyAfterOperatorPrefersFirstMatchingOp(t *testing.T) {
	c := Classify("year>=20", 8)
	assert.Equal(t, AfterOperator, c.Kind)
	assert.Equal(t, "year", c.Key)
	assert.Equal(t, "20", c.Prefix)
}

func TestClassifyAfterBang(t *testing.T) {
	c := Classify("!art/", 5)
	assert.Equal(t, AfterBang, c.Kind)
	assert.Equal(t, "art/", c.Prefix)
}

func TestClassifyAfterRelationPath(t *testing.T) {
	c := Classify("!art/a:LIK", 10)
	assert.Equal(t, AfterRelationPath, c.Kind)
	assert.Equal(t, "LIK", c.Prefix)
}

func TestClassifyCaretMidQueryOnlyLooksAtTokenUnderCaret(t *testing.T) {
	c := Classify("tag:red year>", 13)
	assert.Equal(t, AfterOperator, c.Kind)
	assert.Equal(t, "year", c.Key)
	assert.Equal(t, "", c.Prefix)
}

func TestClassifyClampsOutOfRangeCaret(t *testing.T) {
	c := Classify("tag:red", 999)
	assert.Equal(t, AfterOperator, c.Kind)

	c = Classify("tag:red", -5)
	assert.Equal(t, StartOfTerm, c.Kind)
}
