package indexer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/DreamCats/hospitalvoice/internal/store"
)

// Source column headers, matched case-insensitively after trimming
const (
	ColumnName    = "HOSPITAL NAME"
	ColumnAddress = "Address"
	ColumnCity    = "CITY"
)

// ResolveInputs expands a doublestar pattern into a sorted list of files
func ResolveInputs(pattern string) ([]string, error) {
	if pattern == "" {
		return nil, fmt.Errorf("no input pattern configured")
	}
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("invalid input pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no input files match %q", pattern)
	}
	sort.Strings(matches)
	return matches, nil
}

// ReadHospitalsFile reads one CSV file
func ReadHospitalsFile(path string) ([]store.HospitalRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	records, err := ReadHospitals(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// ReadHospitals parses a CSV directory. Missing columns yield empty fields;
// every value is trimmed and lower-cased.
func ReadHospitals(r io.Reader) ([]store.HospitalRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty csv")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		columns[strings.ToLower(h)] = i
	}

	nameCol := columnIndex(columns, ColumnName)
	addressCol := columnIndex(columns, ColumnAddress)
	cityCol := columnIndex(columns, ColumnCity)
	if nameCol < 0 && addressCol < 0 && cityCol < 0 {
		return nil, fmt.Errorf("header has none of %q, %q, %q", ColumnName, ColumnAddress, ColumnCity)
	}

	var records []store.HospitalRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		rec := store.HospitalRecord{
			HospitalName: field(row, nameCol),
			Address:      field(row, addressCol),
			City:         field(row, cityCol),
		}
		rec.ChunkText = ChunkText(rec)
		records = append(records, rec)
	}

	return records, nil
}

// ChunkText is the text embedded for a record:
// "<name>, located at <address>, <city>." with empty parts left out
func ChunkText(rec store.HospitalRecord) string {
	parts := make([]string, 0, 3)
	if rec.HospitalName != "" {
		parts = append(parts, rec.HospitalName)
	}
	if rec.Address != "" {
		parts = append(parts, "located at "+rec.Address)
	}
	if rec.City != "" {
		parts = append(parts, rec.City)
	}
	return strings.Join(parts, ", ") + "."
}

// Normalize trims and lower-cases a source value
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func columnIndex(columns map[string]int, name string) int {
	if i, ok := columns[strings.ToLower(name)]; ok {
		return i
	}
	return -1
}

func field(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return Normalize(row[col])
}
