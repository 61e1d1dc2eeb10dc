package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
)

// VectorStore reads and writes the embedding rows paired with hospitals
type VectorStore struct {
	db *DB
}

// NewVectorStore creates a new vector store
func NewVectorStore(db *DB) *VectorStore {
	return &VectorStore{db: db}
}

// insertVectors writes vectors[i] at position i inside tx
func insertVectors(tx *sql.Tx, vectors [][]float32) error {
	stmt, err := tx.Prepare(`
		INSERT INTO embeddings (position, vector, dimension)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, vector := range vectors {
		if len(vector) == 0 {
			return fmt.Errorf("cannot insert empty vector at position %d", i)
		}

		blob, err := vectorToBlob(vector)
		if err != nil {
			return fmt.Errorf("failed to convert vector %d to blob: %w", i, err)
		}

		if _, err := stmt.Exec(i, blob, len(vector)); err != nil {
			return fmt.Errorf("failed to insert vector %d: %w", i, err)
		}
	}

	return nil
}

// Get retrieves the vector stored at position
func (v *VectorStore) Get(position int) ([]float32, error) {
	var blob []byte
	var dimension int

	query := "SELECT vector, dimension FROM embeddings WHERE position = ?"
	err := v.db.sqlDB.QueryRow(query, position).Scan(&blob, &dimension)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("vector not found at position %d", position)
		}
		return nil, fmt.Errorf("failed to get vector: %w", err)
	}

	vector, err := blobToVector(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to convert blob to vector: %w", err)
	}

	if len(vector) != dimension {
		return nil, fmt.Errorf("vector dimension mismatch: expected %d, got %d", dimension, len(vector))
	}

	return vector, nil
}

// LoadAll reads every vector in position order. Each vector must have the
// given dimension and positions must be contiguous from zero.
func (v *VectorStore) LoadAll(dimension int) ([][]float32, error) {
	rows, err := v.db.sqlDB.Query("SELECT position, vector, dimension FROM embeddings ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	var vectors [][]float32
	for rows.Next() {
		var position, dim int
		var blob []byte

		if err := rows.Scan(&position, &blob, &dim); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if position != len(vectors) {
			return nil, fmt.Errorf("vector positions are not contiguous: got %d at row %d", position, len(vectors))
		}

		vector, err := blobToVector(blob)
		if err != nil {
			return nil, fmt.Errorf("vector %d: %w", position, err)
		}
		if len(vector) != dim || dim != dimension {
			return nil, fmt.Errorf("vector %d has dimension %d, index expects %d", position, len(vector), dimension)
		}

		vectors = append(vectors, vector)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return vectors, nil
}

// Count returns the number of vectors stored
func (v *VectorStore) Count() (int, error) {
	var count int
	err := v.db.sqlDB.QueryRow("SELECT COUNT(*) FROM embeddings").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}
	return count, nil
}

// Check compares the stored vectors against the build metadata: one vector
// per record, and the first vector has the recorded dimension.
func (v *VectorStore) Check(meta *IndexMeta) error {
	count, err := v.Count()
	if err != nil {
		return err
	}
	if count != meta.RecordCount {
		return fmt.Errorf("index_meta records %d hospitals but %d vectors are stored", meta.RecordCount, count)
	}
	if count == 0 {
		return nil
	}

	first, err := v.Get(0)
	if err != nil {
		return err
	}
	if len(first) != meta.Dimension {
		return fmt.Errorf("index_meta dimension is %d but stored vectors have %d", meta.Dimension, len(first))
	}
	return nil
}

// vectorToBlob converts a float32 slice to a little-endian binary blob
func vectorToBlob(vector []float32) ([]byte, error) {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:i*4+4], math.Float32bits(v))
	}
	return blob, nil
}

// blobToVector converts a binary blob to a float32 slice
func blobToVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("blob size %d is not a multiple of 4", len(blob))
	}

	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4 : i*4+4]))
	}

	return vector, nil
}
