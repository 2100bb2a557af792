package commands

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dluc/usearch"
	"github.com/dluc/usearch/scalar"
)

// record is one line of a .jsonl input. A missing key takes the line ordinal.
type record struct {
	Key    *usearch.Key `json:"key"`
	Vector []float32    `json:"vector"`
}

// dataset holds vectors read from an input file.
type dataset struct {
	keys    []usearch.Key
	vectors []scalar.Buffer
	dims    int
}

// readDataset reads .fbin (uint32 rows, uint32 dims, then row-major float32)
// or .jsonl files.
func readDataset(path string) (*dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".fbin":
		return readFbin(bufio.NewReader(f))
	case ".jsonl", ".ndjson":
		return readJSONL(f)
	default:
		return nil, fmt.Errorf("unsupported input %s: want .fbin or .jsonl", path)
	}
}

func readFbin(r io.Reader) (*dataset, error) {
	var hdr [2]uint32
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read fbin header: %w", err)
	}
	rows, dims := int(hdr[0]), int(hdr[1])
	if dims == 0 {
		return nil, fmt.Errorf("fbin: zero dimensions")
	}

	d := &dataset{
		keys:    make([]usearch.Key, rows),
		vectors: make([]scalar.Buffer, rows),
		dims:    dims,
	}
	for i := range rows {
		v := make([]float32, dims)
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("fbin row %d: %w", i, err)
		}
		d.keys[i] = usearch.Key(i)
		d.vectors[i] = scalar.F32s(v)
	}
	return d, nil
}

func readJSONL(r io.Reader) (*dataset, error) {
	d := &dataset{}
	dec := json.NewDecoder(r)
	for line := 0; ; line++ {
		var rec record
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("jsonl record %d: %w", line, err)
		}
		if d.dims == 0 {
			d.dims = len(rec.Vector)
		}
		key := usearch.Key(line)
		if rec.Key != nil {
			key = *rec.Key
		}
		d.keys = append(d.keys, key)
		d.vectors = append(d.vectors, scalar.F32s(rec.Vector))
	}
	return d, nil
}

// parseVector parses a comma-separated list of floats.
func parseVector(s string) ([]float32, error) {
	fields := strings.Split(s, ",")
	v := make([]float32, 0, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		x, err := strconv.ParseFloat(field, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", field, err)
		}
		if math.IsNaN(x) {
			return nil, fmt.Errorf("invalid vector component %q", field)
		}
		v = append(v, float32(x))
	}
	if len(v) == 0 {
		return nil, fmt.Errorf("empty vector")
	}
	return v, nil
}
