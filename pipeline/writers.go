// Package pipeline serializes retrieved member sets to output files.
package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/Leveneer/congress-member-data/models"
)

// csvHeader is the fixed column order of the CSV output.
var csvHeader = []string{"bioguideId", "name", "party", "state", "district", "chamber", "url"}

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(members []*models.Member) error
	Close() error
	Validate() error
}

// CSVWriter writes member records to CSV.
type CSVWriter struct {
	file    *os.File
	writer  *csv.Writer
	records int
	mu      sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		file:   f,
		writer: writer,
	}, nil
}

// Write appends members to the CSV output. Senate rows carry an empty
// district column.
func (cw *CSVWriter) Write(members []*models.Member) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, m := range members {
		district := ""
		if m.District != nil {
			district = strconv.Itoa(*m.District)
		}
		record := []string{
			m.BioguideID,
			m.Name,
			m.Party,
			m.State,
			district,
			m.Chamber,
			m.URL,
		}
		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
		cw.records++
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate checks that written records reached the file. A run that matched
// no members legitimately produces a header-only file.
func (cw *CSVWriter) Validate() error {
	info, err := cw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if cw.records == 0 {
		return nil
	}
	headerSize := int64(len(strings.Join(csvHeader, ",")) + 1)
	if info.Size() <= headerSize {
		return fmt.Errorf("csv file has no records")
	}
	return nil
}

// JSONWriter writes newline-delimited JSON records.
type JSONWriter struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
	records int
	mu      sync.Mutex
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	return &JSONWriter{
		file:    f,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}, nil
}

// Write appends members in JSONL format.
func (jw *JSONWriter) Write(members []*models.Member) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, m := range members {
		if err := jw.encoder.Encode(m); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
		jw.records++
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}

	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate checks that written records reached the file. A run that matched
// no members legitimately produces an empty file.
func (jw *JSONWriter) Validate() error {
	info, err := jw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if jw.records == 0 {
		return nil
	}
	if info.Size() <= 0 {
		return fmt.Errorf("json file is empty")
	}
	return nil
}

// DefaultFilename builds the standard output name:
// members_{congress}_{House|Senate|All}[_{STATE}].csv
func DefaultFilename(congress int, chamber, state string) string {
	parts := []string{"members", strconv.Itoa(congress)}
	if chamber != "" {
		parts = append(parts, chamber)
	} else {
		parts = append(parts, "All")
	}
	if state != "" {
		parts = append(parts, strings.ToUpper(state))
	}
	return strings.Join(parts, "_") + ".csv"
}

// OutputPath confines output to the results directory. Absolute paths are
// rejected; a relative path contributes only its base name.
func OutputPath(resultsDir, filename string) (string, error) {
	if filepath.IsAbs(filename) {
		return "", fmt.Errorf("cannot write to absolute path %q", filename)
	}
	return filepath.Join(resultsDir, filepath.Base(filename)), nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
