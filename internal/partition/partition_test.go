package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedsPartitioning(t *testing.T) {
	p := Partitioner{ChunkSize: 10}
	assert.False(t, p.NeedsPartitioning(10))
	assert.True(t, p.NeedsPartitioning(11))

	disabled := Partitioner{ChunkSize: 0}
	assert.False(t, disabled.NeedsPartitioning(1_000_000))
}

func TestSplitSizes(t *testing.T) {
	p := Partitioner{ChunkSize: 10}
	data := make([]byte, 25)
	parts := p.Split(data)
	require.Len(t, parts, 3)
	assert.Len(t, parts[0], 10)
	assert.Len(t, parts[1], 10)
	assert.Len(t, parts[2], 5)
}

func TestPartCountMatchesSplit(t *testing.T) {
	p := Partitioner{ChunkSize: 10}
	data := make([]byte, 25)
	assert.Equal(t, len(p.Split(data)), p.PartCount(25))
	assert.Equal(t, 0, p.PartCount(10))
}

func TestNewAcceptsAnyNonNegativeSize(t *testing.T) {
	_, err := New(-1)
	assert.Error(t, err)

	p, err := New(0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.ChunkSize)

	// A sub-MiB size must be constructible: S4 (spec.md §8) configures a
	// 10-byte partition size to exercise a 3-part split on a 25-byte blob.
	p, err = New(10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.ChunkSize)
}

func TestListPartNames(t *testing.T) {
	assert.Equal(t, []string{"abcd"}, ListPartNames("abcd", 0))
	assert.Equal(t, []string{"abcd.001", "abcd.002", "abcd.003"}, ListPartNames("abcd", 3))
}

func TestShardDir(t *testing.T) {
	assert.Equal(t, "root/2c/f2", ShardDir("root", "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"))
}
