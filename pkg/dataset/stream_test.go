package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "data.txt")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

// scenario 4: dataset streaming with a blank line skipped, spec.md §8.
func TestDatasetScenario(t *testing.T) {
	path := writeTempFile(t, "1 2|3\n\n4 5|6\n")

	d, err := OpenDefault(path, 1)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, 2, d.NumBatches())

	ok, err := d.NextBatch()
	require.NoError(t, err)
	require.True(t, ok)

	x, y, ok, err := d.NextSampleInBatch()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2}, x)
	assert.Equal(t, []float32{3}, y)

	_, _, ok, err = d.NextSampleInBatch()
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = d.NextBatch()
	require.NoError(t, err)
	require.True(t, ok)

	x, y, ok, err = d.NextSampleInBatch()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float32{4, 5}, x)
	assert.Equal(t, []float32{6}, y)

	ok, err = d.NextBatch()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDatasetRejectsMissingDelimiter(t *testing.T) {
	path := writeTempFile(t, "1 2 3\n")
	d, err := OpenDefault(path, 1)
	require.NoError(t, err)
	defer d.Close()

	d.NextBatch()
	_, _, _, err = d.NextSampleInBatch()
	assert.Error(t, err)
}

func TestDatasetRejectsEmptyFile(t *testing.T) {
	path := writeTempFile(t, "")
	_, err := OpenDefault(path, 1)
	assert.Error(t, err)
}

func TestDatasetPackBatchOfTwo(t *testing.T) {
	path := writeTempFile(t, "1 2|9\n3 4|8\n5 6|7\n")

	d, err := OpenDefault(path, 2)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, 2, d.NumBatches())

	ok, err := d.NextBatch()
	require.NoError(t, err)
	require.True(t, ok)

	xPacked, yPacked, n, err := d.Pack()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []float32{1, 2, 3, 4}, xPacked)
	assert.Equal(t, []float32{9, 8}, yPacked)
}

func TestShuffleEpochPreservesBatchCount(t *testing.T) {
	path := writeTempFile(t, "1|1\n2|2\n3|3\n4|4\n")

	d, err := OpenDefault(path, 1)
	require.NoError(t, err)
	defer d.Close()

	before := d.NumBatches()
	d.ShuffleEpoch()
	assert.Equal(t, before, d.NumBatches())

	seen := 0
	for {
		ok, err := d.NextBatch()
		require.NoError(t, err)
		if !ok {
			break
		}
		_, _, sok, err := d.NextSampleInBatch()
		require.NoError(t, err)
		require.True(t, sok)
		seen++
	}
	assert.Equal(t, before, seen)
}
