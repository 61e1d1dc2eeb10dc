package textindex

import (
	"path/filepath"
	"testing"

	"github.com/DreamCats/hospitalvoice/internal/store"
)

func buildTestIndex(t *testing.T) *Index {
	t.Helper()

	records := []store.HospitalRecord{
		{HospitalName: "apollo hospital", Address: "bandra west", City: "mumbai", ChunkText: "apollo hospital, located at bandra west, mumbai."},
		{HospitalName: "apollo hospital", Address: "sarita vihar", City: "delhi", ChunkText: "apollo hospital, located at sarita vihar, delhi."},
		{HospitalName: "manipal hospital", Address: "old airport road", City: "bengaluru", ChunkText: "manipal hospital, located at old airport road, bengaluru."},
	}

	dir := filepath.Join(t.TempDir(), "hospitals.bleve")
	if err := Build(dir, records); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	idx, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestSearch(t *testing.T) {
	idx := buildTestIndex(t)

	count, err := idx.Count()
	if err != nil || count != 3 {
		t.Fatalf("Count() = %d, %v; want 3", count, err)
	}

	tests := []struct {
		name      string
		query     string
		city      string
		wantCount int
		wantFirst int
	}{
		{"name match", "manipal", "", 1, 2},
		{"address match", "sarita vihar", "", 1, 1},
		{"shared name", "apollo", "", 2, -1},
		{"city filter", "apollo", "Delhi", 1, 1},
		{"no match", "cardiology", "", 0, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := idx.Search(tt.query, tt.city, 10)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if len(hits) != tt.wantCount {
				t.Fatalf("got %d hits, want %d: %+v", len(hits), tt.wantCount, hits)
			}
			if tt.wantFirst >= 0 && hits[0].Position != tt.wantFirst {
				t.Errorf("first hit position = %d, want %d", hits[0].Position, tt.wantFirst)
			}
		})
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	idx := buildTestIndex(t)
	hits, err := idx.Search("  ", "", 5)
	if err != nil || hits != nil {
		t.Errorf("Search(blank) = %v, %v", hits, err)
	}
}
