// Package dataset streams (x, y) samples out of a delimited text file in
// shuffled batches, without loading the whole file into memory: each batch
// boundary is recorded as a byte offset the reader can seek back to.
package dataset

import (
	"bufio"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/Hirogava/graphrt/pkg/rterrors"
)

const defaultSeed = 42

// StreamFileDataset reads whitespace-separated "X_VALUES<delim>Y_VALUES"
// lines from a file, grouping every batchSize valid (non-blank) lines into a
// batch whose start offset is indexed up front so batches can be visited in
// any shuffled order without re-scanning the file.
type StreamFileDataset struct {
	path      string
	batchSize int
	delimiter byte

	rng  *rand.Rand
	file *os.File
	line *lineReader

	batchOffsets []int64
	batchOrder   []int
	curBatchPos  int
	curInBatch   int
}

// Open builds a StreamFileDataset over path, indexing batch offsets
// immediately. The caller must Close it when done.
func Open(path string, batchSize int, delimiter byte, seed int64) (*StreamFileDataset, error) {
	if batchSize <= 0 {
		return nil, rterrors.NewStateError("batchSize must be > 0")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, rterrors.NewLoadError("dataset open", err)
	}

	d := &StreamFileDataset{
		path:      path,
		batchSize: batchSize,
		delimiter: delimiter,
		rng:       rand.New(rand.NewSource(seed)),
		file:      f,
	}
	d.line = newLineReader(f)

	if err := d.buildBatchOffsets(); err != nil {
		f.Close()
		return nil, err
	}
	d.resetOrder()
	if err := d.ResetEpoch(); err != nil {
		f.Close()
		return nil, err
	}

	return d, nil
}

// OpenDefault opens path with the delimiter '|' and the default seed.
func OpenDefault(path string, batchSize int) (*StreamFileDataset, error) {
	return Open(path, batchSize, '|', defaultSeed)
}

// Close releases the underlying file handle.
func (d *StreamFileDataset) Close() error {
	return d.file.Close()
}

// NumBatches returns the number of batches indexed for the full file.
func (d *StreamFileDataset) NumBatches() int {
	return len(d.batchOffsets)
}

// ShuffleEpoch permutes the batch visiting order and resets the epoch
// cursor to its start.
func (d *StreamFileDataset) ShuffleEpoch() {
	d.rng.Shuffle(len(d.batchOrder), func(i, j int) {
		d.batchOrder[i], d.batchOrder[j] = d.batchOrder[j], d.batchOrder[i]
	})
	d.ResetEpoch()
}

// ResetEpoch rewinds the reader without changing the batch order; used for a
// non-shuffled pass (e.g. validation).
func (d *StreamFileDataset) ResetEpoch() error {
	d.curBatchPos = 0
	d.curInBatch = 0
	if _, err := d.file.Seek(0, io.SeekStart); err != nil {
		return rterrors.NewLoadError("dataset reset", err)
	}
	d.line = newLineReader(d.file)
	return nil
}

// NextBatch seeks the reader to the start of the next batch in the current
// order. Returns false once every batch has been visited this epoch.
func (d *StreamFileDataset) NextBatch() (bool, error) {
	if d.curBatchPos >= len(d.batchOrder) {
		return false, nil
	}
	d.curInBatch = 0
	offset := d.batchOffsets[d.batchOrder[d.curBatchPos]]
	d.curBatchPos++
	if _, err := d.file.Seek(offset, io.SeekStart); err != nil {
		return false, rterrors.NewLoadError("dataset seek", err)
	}
	d.line = newLineReader(d.file)
	return true, nil
}

// NextSampleInBatch reads the next valid sample within the current batch,
// skipping blank lines. Returns ok=false once batchSize samples have been
// read or the file ends; the next NextBatch call moves on to the following
// batch whether or not this one was read to the end.
func (d *StreamFileDataset) NextSampleInBatch() (x, y []float32, ok bool, err error) {
	for {
		if d.curInBatch >= d.batchSize {
			return nil, nil, false, nil
		}

		line, _, rerr := d.line.readLine()
		if rerr == io.EOF {
			return nil, nil, false, nil
		}
		if rerr != nil {
			return nil, nil, false, rterrors.NewLoadError("dataset read", rerr)
		}

		if isBlank(line) {
			continue
		}

		x, y, err = parseLineXY(line, d.delimiter)
		if err != nil {
			return nil, nil, false, err
		}
		d.curInBatch++
		return x, y, true, nil
	}
}

// Pack drains the current batch into flat, row-major xPacked/yPacked slices
// and returns how many samples were packed.
func (d *StreamFileDataset) Pack() (xPacked, yPacked []float32, n int, err error) {
	for {
		x, y, ok, err := d.NextSampleInBatch()
		if err != nil {
			return nil, nil, n, err
		}
		if !ok {
			return xPacked, yPacked, n, nil
		}
		xPacked = append(xPacked, x...)
		yPacked = append(yPacked, y...)
		n++
	}
}

func (d *StreamFileDataset) resetOrder() {
	d.batchOrder = make([]int, len(d.batchOffsets))
	for i := range d.batchOrder {
		d.batchOrder[i] = i
	}
}

// buildBatchOffsets scans the file once, recording the byte offset of the
// first valid line of every batchSize-th group of valid (non-blank) samples.
// Blank lines never start a batch and never count toward the group size.
func (d *StreamFileDataset) buildBatchOffsets() error {
	lr := newLineReader(d.file)
	sampleCount := 0

	for {
		line, offset, err := lr.readLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rterrors.NewLoadError("dataset scan", err)
		}

		if isBlank(line) {
			continue
		}

		if sampleCount%d.batchSize == 0 {
			d.batchOffsets = append(d.batchOffsets, offset)
		}
		sampleCount++
	}

	if len(d.batchOffsets) == 0 {
		return rterrors.NewLoadError("dataset scan", rterrors.NewStateError("dataset is empty: "+d.path))
	}

	if _, err := d.file.Seek(0, io.SeekStart); err != nil {
		return rterrors.NewLoadError("dataset scan", err)
	}
	return nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func parseLineXY(line string, delim byte) (x, y []float32, err error) {
	idx := strings.IndexByte(line, delim)
	if idx < 0 {
		return nil, nil, rterrors.NewLoadError("dataset parse", rterrors.NewStateError("invalid line (missing delimiter): "+line))
	}

	x, err = parseFloatVector(line[:idx])
	if err != nil {
		return nil, nil, err
	}
	y, err = parseFloatVector(line[idx+1:])
	if err != nil {
		return nil, nil, err
	}

	if len(x) == 0 || len(y) == 0 {
		return nil, nil, rterrors.NewLoadError("dataset parse", rterrors.NewStateError("invalid line (empty x or y): "+line))
	}

	return x, y, nil
}

func parseFloatVector(s string) ([]float32, error) {
	fields := strings.Fields(s)
	out := make([]float32, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, rterrors.NewLoadError("dataset parse", err)
		}
		out = append(out, float32(v))
	}
	return out, nil
}

// lineReader reads lines from f while tracking the absolute byte offset each
// line started at, so a caller can seek back to any previously seen line.
type lineReader struct {
	f   *os.File
	br  *bufio.Reader
	pos int64
}

func newLineReader(f *os.File) *lineReader {
	pos, _ := f.Seek(0, io.SeekCurrent)
	return &lineReader{f: f, br: bufio.NewReader(f), pos: pos}
}

// readLine returns the next line (without its trailing newline) and the
// byte offset it started at. err is io.EOF only when there is no more data.
func (lr *lineReader) readLine() (line string, startOffset int64, err error) {
	startOffset = lr.pos
	s, err := lr.br.ReadString('\n')
	lr.pos += int64(len(s))

	if s == "" && err == io.EOF {
		return "", startOffset, io.EOF
	}
	if err != nil && err != io.EOF {
		return "", startOffset, err
	}

	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")
	return s, startOffset, nil
}
