package sources

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/i474232898/weather-chunk-server/internal/chunk"
	"github.com/i474232898/weather-chunk-server/internal/grid"
)

// Index files are CSV rows of x,y,chunk_id,in_chunk_x,in_chunk_y. A header
// row is optional and the stream may be gzip-compressed.
const indexColumns = 5

var gzipMagic = []byte{0x1f, 0x8b}

// ParseIndex reads index entries from r. in_chunk_x addresses the row axis
// of a chunk and in_chunk_y the column axis.
func ParseIndex(r io.Reader) ([]grid.Entry, error) {
	br := bufio.NewReader(r)
	if magic, err := br.Peek(2); err == nil && magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip index: %w", err)
		}
		defer zr.Close()
		return parseCSV(zr)
	}
	return parseCSV(br)
}

func parseCSV(r io.Reader) ([]grid.Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = indexColumns
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true

	var entries []grid.Entry
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read index: %w", err)
		}
		line++
		if line == 1 && isHeader(rec) {
			continue
		}
		e, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("index line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func isHeader(rec []string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
	return err != nil
}

func parseRecord(rec []string) (grid.Entry, error) {
	var (
		e   grid.Entry
		err error
	)
	if e.X, err = strconv.ParseFloat(strings.TrimSpace(rec[0]), 64); err != nil {
		return e, fmt.Errorf("x: %w", err)
	}
	if e.Y, err = strconv.ParseFloat(strings.TrimSpace(rec[1]), 64); err != nil {
		return e, fmt.Errorf("y: %w", err)
	}
	if e.ChunkID, err = strconv.Atoi(strings.TrimSpace(rec[2])); err != nil {
		return e, fmt.Errorf("chunk_id: %w", err)
	}
	if e.Row, err = strconv.Atoi(strings.TrimSpace(rec[3])); err != nil {
		return e, fmt.Errorf("in_chunk_x: %w", err)
	}
	if e.Col, err = strconv.Atoi(strings.TrimSpace(rec[4])); err != nil {
		return e, fmt.Errorf("in_chunk_y: %w", err)
	}
	if e.ChunkID < 0 || e.Row < 0 || e.Col < 0 {
		return e, fmt.Errorf("negative chunk id or offset")
	}
	if e.Row >= chunk.Side || e.Col >= chunk.Side {
		return e, fmt.Errorf("offset (%d,%d) past the %dx%d chunk", e.Row, e.Col, chunk.Side, chunk.Side)
	}
	return e, nil
}
