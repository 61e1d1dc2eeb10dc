package store

import "time"

// HospitalRecord is one directory entry. Text fields are trimmed and
// lower-cased at build time; display casing is applied only when rendering.
type HospitalRecord struct {
	// Position in the record store; equals the row of its vector in the index
	ID int `json:"id"`

	HospitalName string `json:"hospital_name"`
	Address      string `json:"address"`
	City         string `json:"city"`

	// Text that was embedded at build time. Never re-derived at query time.
	ChunkText string `json:"chunk_text"`
}

// IndexMeta describes how the persisted vectors were produced
type IndexMeta struct {
	Model       string    `json:"model"`
	Dimension   int       `json:"dimension"`
	Metric      string    `json:"metric"`
	RecordCount int       `json:"record_count"`
	BuiltAt     time.Time `json:"built_at"`
}

// MetricL2 is the only metric the flat index implements
const MetricL2 = "l2"
