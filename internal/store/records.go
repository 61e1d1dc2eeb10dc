package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// RecordStore is the ordered, read-only set of hospital records loaded at
// startup. It is safe for concurrent use because nothing mutates it after
// Load returns.
type RecordStore struct {
	records []HospitalRecord
}

// NewRecordStore wraps records that are already in position order
func NewRecordStore(records []HospitalRecord) *RecordStore {
	return &RecordStore{records: records}
}

// Len returns the number of records
func (s *RecordStore) Len() int {
	return len(s.records)
}

// Get returns the record at position. It panics with ErrIndexOutOfRange
// when position is outside the store.
func (s *RecordStore) Get(position int) HospitalRecord {
	if position < 0 || position >= len(s.records) {
		panic(fmt.Errorf("%w: %d (store has %d records)", ErrIndexOutOfRange, position, len(s.records)))
	}
	return s.records[position]
}

// All returns the records in store order. Callers must not modify the slice.
func (s *RecordStore) All() []HospitalRecord {
	return s.records
}

// Artifacts is everything the retrieval engine needs from the build output
type Artifacts struct {
	Records *RecordStore
	Vectors [][]float32
	Meta    IndexMeta
}

// LoadOptions carries the serving-side encoder identity checked against the
// persisted index metadata. Empty fields are not checked.
type LoadOptions struct {
	Model     string
	Dimension int
}

// Load reads records, vectors and index metadata from a built database and
// verifies they belong together.
func Load(path string, opts LoadOptions) (*Artifacts, error) {
	db, err := OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	meta, err := db.ReadMeta()
	if err != nil {
		return nil, &StoreLoadError{Path: path, Reason: "missing index metadata", Err: err}
	}
	if meta.Metric != MetricL2 {
		return nil, &StoreLoadError{Path: path, Reason: fmt.Sprintf("unsupported metric %q", meta.Metric)}
	}
	if opts.Model != "" && meta.Model != opts.Model {
		return nil, &StoreLoadError{Path: path, Reason: fmt.Sprintf("index built with encoder %q, configured encoder is %q", meta.Model, opts.Model)}
	}
	if opts.Dimension > 0 && meta.Dimension != opts.Dimension {
		return nil, &StoreLoadError{Path: path, Reason: fmt.Sprintf("index dimension %d, configured encoder produces %d", meta.Dimension, opts.Dimension)}
	}

	records, err := db.loadRecords()
	if err != nil {
		return nil, &StoreLoadError{Path: path, Reason: "failed to read records", Err: err}
	}

	vectors, err := NewVectorStore(db).LoadAll(meta.Dimension)
	if err != nil {
		return nil, &StoreLoadError{Path: path, Reason: "failed to read vectors", Err: err}
	}

	if len(records) != len(vectors) {
		return nil, &StoreLoadError{Path: path, Reason: fmt.Sprintf("record count %d does not match vector count %d", len(records), len(vectors))}
	}
	if meta.RecordCount != len(records) {
		return nil, &StoreLoadError{Path: path, Reason: fmt.Sprintf("index metadata expects %d records, found %d", meta.RecordCount, len(records))}
	}

	return &Artifacts{
		Records: NewRecordStore(records),
		Vectors: vectors,
		Meta:    *meta,
	}, nil
}

// loadRecords reads all hospitals ordered by position. Positions must be
// dense and start at zero.
func (db *DB) loadRecords() ([]HospitalRecord, error) {
	rows, err := db.sqlDB.Query(`
		SELECT position, hospital_name, address, city, chunk_text
		FROM hospitals ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query hospitals: %w", err)
	}
	defer rows.Close()

	var records []HospitalRecord
	for rows.Next() {
		var rec HospitalRecord
		if err := rows.Scan(&rec.ID, &rec.HospitalName, &rec.Address, &rec.City, &rec.ChunkText); err != nil {
			return nil, fmt.Errorf("failed to scan hospital: %w", err)
		}
		if rec.ID != len(records) {
			return nil, fmt.Errorf("hospital positions are not contiguous: got %d at row %d", rec.ID, len(records))
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hospitals: %w", err)
	}

	return records, nil
}

// ReadMeta returns the metadata written by the last build
func (db *DB) ReadMeta() (*IndexMeta, error) {
	var meta IndexMeta
	var builtAt string
	err := db.sqlDB.QueryRow(`
		SELECT model, dimension, metric, record_count, built_at
		FROM index_meta WHERE id = 1
	`).Scan(&meta.Model, &meta.Dimension, &meta.Metric, &meta.RecordCount, &builtAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("index has not been built")
		}
		return nil, fmt.Errorf("failed to read index metadata: %w", err)
	}

	if ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(builtAt)); err == nil {
		meta.BuiltAt = ts
	}

	return &meta, nil
}

// ReplaceAll atomically replaces the directory with records and their
// vectors. records[i] is stored at position i and paired with vectors[i].
func (db *DB) ReplaceAll(records []HospitalRecord, vectors [][]float32, model string) error {
	if len(records) != len(vectors) {
		return fmt.Errorf("records and vectors length mismatch: %d vs %d", len(records), len(vectors))
	}
	if len(records) == 0 {
		return fmt.Errorf("refusing to write an empty index")
	}

	dimension := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dimension {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dimension)
		}
	}

	tx, err := db.BeginTx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"hospitals", "embeddings", "index_meta"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	stmt, err := tx.Prepare(`
		INSERT INTO hospitals (position, hospital_name, address, city, chunk_text)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		if _, err := stmt.Exec(i, rec.HospitalName, rec.Address, rec.City, rec.ChunkText); err != nil {
			return fmt.Errorf("failed to insert hospital %d: %w", i, err)
		}
	}

	if err := insertVectors(tx, vectors); err != nil {
		return err
	}

	if _, err := tx.Exec(`
		INSERT INTO index_meta (id, model, dimension, metric, record_count, built_at)
		VALUES (1, ?, ?, ?, ?, ?)
	`, model, dimension, MetricL2, len(records), time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to write index metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}
