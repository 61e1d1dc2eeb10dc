// Package extract turns a transcribed query into the city and hospital
// constraints used by the resolver.
package extract

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/DreamCats/hospitalvoice/internal/config"
	"github.com/DreamCats/hospitalvoice/internal/store"
)

// Entities are the constraints found in a query. A nil field means no
// constraint, not an empty match.
type Entities struct {
	City         *string `json:"city"`
	HospitalName *string `json:"hospital_name"`
}

// Empty reports whether no constraint was found
func (e Entities) Empty() bool {
	return e.City == nil && e.HospitalName == nil
}

func (e Entities) String() string {
	return fmt.Sprintf("{city: %s, hospital_name: %s}", show(e.City), show(e.HospitalName))
}

func show(s *string) string {
	if s == nil {
		return "<none>"
	}
	return fmt.Sprintf("%q", *s)
}

// Extractor finds entities in a query. Implementations never fail: input
// they cannot understand yields empty Entities.
type Extractor interface {
	Extract(query string) Entities
}

// New returns the extractor for mode. records back the free-text strategy.
func New(mode string, records *store.RecordStore) (Extractor, error) {
	switch mode {
	case config.ExtractionStructured:
		return Structured{}, nil
	case config.ExtractionFreeText, "":
		return NewFreeText(records), nil
	default:
		return nil, fmt.Errorf("unsupported extraction mode: %s", mode)
	}
}

// Structured reads a JSON array whose first object carries optional
// "city", "hospital" and "address" fields, the shape produced by
// transcribers that extract entities directly from audio.
type Structured struct{}

type structuredEntity struct {
	City     *string `json:"city"`
	Hospital *string `json:"hospital"`
	Address  *string `json:"address"`
}

// Extract parses query as a structured payload
func (Structured) Extract(query string) Entities {
	var payload []structuredEntity
	if err := json.Unmarshal([]byte(strings.TrimSpace(query)), &payload); err != nil {
		return Entities{}
	}
	if len(payload) == 0 {
		return Entities{}
	}

	first := payload[0]
	return Entities{
		City:         normalized(first.City),
		HospitalName: normalized(first.Hospital),
	}
}

func normalized(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.ToLower(strings.TrimSpace(*s))
	if v == "" {
		return nil
	}
	return &v
}

// FreeText scans the directory for a city and a hospital name mentioned in
// a plain transcript. The first record that matches wins.
type FreeText struct {
	records *store.RecordStore
}

// NewFreeText creates a free-text extractor over records
func NewFreeText(records *store.RecordStore) *FreeText {
	return &FreeText{records: records}
}

// Extract matches record fields against the lower-cased query
func (f *FreeText) Extract(query string) Entities {
	var out Entities
	if f.records == nil {
		return out
	}

	q := strings.ToLower(query)
	all := f.records.All()

	for _, rec := range all {
		if utf8.RuneCountInString(rec.City) > 2 && strings.Contains(q, rec.City) {
			city := rec.City
			out.City = &city
			break
		}
	}

	for _, rec := range all {
		if utf8.RuneCountInString(rec.HospitalName) <= 3 {
			continue
		}
		if strings.Contains(q, rec.HospitalName) || anyLongWordIn(rec.HospitalName, q) {
			name := rec.HospitalName
			out.HospitalName = &name
			break
		}
	}

	return out
}

// anyLongWordIn reports whether a word of name longer than four characters
// occurs in q
func anyLongWordIn(name, q string) bool {
	for _, word := range strings.Fields(name) {
		if utf8.RuneCountInString(word) > 4 && strings.Contains(q, word) {
			return true
		}
	}
	return false
}
