package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetadataAtoms(t *testing.T) {
	q, err := Parse("tag:red year>=2020 rating=5 count:1..10")
	require.NoError(t, err)
	require.Len(t, q.Groups, 4)

	assert.Equal(t, TagAtom{Value: "red"}, q.Groups[0].Terms[0].Atom)
	assert.Equal(t, MetadataCompare{Key: "year", Op: GTE, Value: 2020}, q.Groups[1].Terms[0].Atom)
	assert.Equal(t, MetadataEquals{Key: "rating", Value: "5"}, q.Groups[2].Terms[0].Atom)
	assert.Equal(t, MetadataRange{Key: "count", Low: 1, High: 10}, q.Groups[3].Terms[0].Atom)
}

func TestParseRelationAtom(t *testing.T) {
	q, err := Parse("!art/a:LIKES>")
	require.NoError(t, err)
	require.Len(t, q.Groups, 1)
	assert.Equal(t, RelationAtom{Path: "art/a", Relation: "LIKES", Direction: Outgoing}, q.Groups[0].Terms[0].Atom)
}

func TestParseRelationAtomBareAndIncoming(t *testing.T) {
	q, err := Parse("!art/a !art/b:LIKES<")
	require.NoError(t, err)
	require.Len(t, q.Groups, 2)
	assert.Equal(t, RelationAtom{Path: "art/a"}, q.Groups[0].Terms[0].Atom)
	assert.Equal(t, RelationAtom{Path: "art/b", Relation: "LIKES", Direction: Incoming}, q.Groups[1].Terms[0].Atom)
}

func TestParseRelationTypeWordDistinguishedFromBareWord(t *testing.T) {
	q, err := Parse("LIKES something")
	require.NoError(t, err)
	require.Len(t, q.Groups, 2)
	assert.Equal(t, RelationTypeAtom{Relation: "LIKES"}, q.Groups[0].Terms[0].Atom)
	assert.Equal(t, WordAtom{Text: "something"}, q.Groups[1].Terms[0].Atom)
}

func TestParseModifiersAndNegation(t *testing.T) {
	q, err := Parse("-draft? ^year>=2020 %tag:x")
	require.NoError(t, err)
	require.Len(t, q.Groups, 3)

	// "-draft?" is Negate-wrapped KeyExists; only bare "-draft" is KeyAbsent.
	term0 := q.Groups[0].Terms[0]
	assert.Equal(t, KeyExists{Key: "draft"}, term0.Atom)
	assert.True(t, term0.Negate)

	term1 := q.Groups[1].Terms[0]
	assert.True(t, term1.Deep)
	assert.Equal(t, MetadataCompare{Key: "year", Op: GTE, Value: 2020}, term1.Atom)

	term2 := q.Groups[2].Terms[0]
	assert.True(t, term2.ReverseDeep)
	assert.Equal(t, TagAtom{Value: "x"}, term2.Atom)
}

func TestParseKeyAbsentVsNegatedKeyExists(t *testing.T) {
	q, err := Parse("-title")
	require.NoError(t, err)
	assert.Equal(t, KeyAbsent{Key: "title"}, q.Groups[0].Terms[0].Atom)

	q, err = Parse("-title?")
	require.NoError(t, err)
	term := q.Groups[0].Terms[0]
	assert.True(t, term.Negate)
	assert.Equal(t, KeyExists{Key: "title"}, term.Atom)
}

func TestParseOrGroupAndParens(t *testing.T) {
	q, err := Parse("(tag:red|tag:blue) path:art/*")
	require.NoError(t, err)
	require.Len(t, q.Groups, 2)

	group := q.Groups[0].Terms[0].Group
	require.NotNil(t, group)
	require.Len(t, group.Groups, 1)
	require.Len(t, group.Groups[0].Terms, 2)
	assert.Equal(t, TagAtom{Value: "red"}, group.Groups[0].Terms[0].Atom)
	assert.Equal(t, TagAtom{Value: "blue"}, group.Groups[0].Terms[1].Atom)

	assert.Equal(t, PathAtom{Pattern: "art/*"}, q.Groups[1].Terms[0].Atom)
}

func TestParseSizeWithSuffix(t *testing.T) {
	q, err := Parse("size>10mb")
	require.NoError(t, err)
	assert.Equal(t, SizeAtom{Op: GT, Bytes: 10 * 1024 * 1024}, q.Groups[0].Terms[0].Atom)
}

func TestParseSizeRange(t *testing.T) {
	q, err := Parse("size:1kb..2mb")
	require.NoError(t, err)
	assert.Equal(t, SizeRangeAtom{Low: 1024, High: 2 * 1024 * 1024}, q.Groups[0].Terms[0].Atom)
}

func TestParseReservedKeys(t *testing.T) {
	q, err := Parse("type:VAULT ext:.jpg inside:art limit:5 sort:-year preview:thumb")
	require.NoError(t, err)
	require.Len(t, q.Groups, 6)
	assert.Equal(t, TypeAtom{NodeType: "VAULT"}, q.Groups[0].Terms[0].Atom)
	assert.Equal(t, ExtAtom{Value: "jpg"}, q.Groups[1].Terms[0].Atom)
	assert.Equal(t, InsideAtom{Path: "art"}, q.Groups[2].Terms[0].Atom)
	assert.Equal(t, LimitAtom{N: 5}, q.Groups[3].Terms[0].Atom)
	assert.Equal(t, SortAtom{Field: "year", Descending: true}, q.Groups[4].Terms[0].Atom)
	assert.Equal(t, PreviewAtom{Value: "thumb"}, q.Groups[5].Terms[0].Atom)
}

func TestParseFilesColonFormRejected(t *testing.T) {
	_, err := Parse("files:5")
	assert.Error(t, err)
}

func TestParseUnterminatedGroupErrors(t *testing.T) {
	_, err := Parse("(tag:red")
	assert.Error(t, err)
}

func TestParseTrailingInputErrors(t *testing.T) {
	_, err := Parse("tag:red )")
	assert.Error(t, err)
}

// Property: Parse(q.String()) reproduces an AST whose String() is the
// same fixed point, for every construct the grammar accepts.
func TestParseStringRoundTrip(t *testing.T) {
	cases := []string{
		"tag:red",
		`tag:"needs quoting"`,
		"year>=2020",
		"rating=5",
		"count:1..10",
		"title?",
		"-title",
		"!art/a",
		"!art/a:LIKES>",
		"!art/a:LIKES<",
		"LIKES",
		"hello",
		`"a phrase"`,
		"inside:art",
		"path:art/*",
		"ext:jpg",
		"files>5",
		"size>10",
		"size:1..2",
		"type:VAULT",
		"sort:year",
		"sort:-year",
		"limit:5",
		"preview:thumb",
		"-draft?",
		"^year>=2020",
		"%tag:x",
		"(tag:red|tag:blue)",
		"tag:red ^year>=2020",
	}
	for _, src := range cases {
		q, err := Parse(src)
		require.NoError(t, err, "first parse of %q", src)
		again, err := Parse(q.String())
		require.NoError(t, err, "re-parse of %q", q.String())
		assert.Equal(t, q.String(), again.String(), "round trip for %q", src)
	}
}
