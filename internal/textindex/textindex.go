// Package textindex is the keyword index over the hospital directory used
// for browsing and lookup outside the voice path.
package textindex

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/DreamCats/hospitalvoice/internal/store"
)

// Index is an open bleve index of hospital records
type Index struct {
	index bleve.Index
}

// Hit is one text search result
type Hit struct {
	Position     int     `json:"position"`
	HospitalName string  `json:"hospital_name"`
	Address      string  `json:"address"`
	City         string  `json:"city"`
	Score        float64 `json:"score"`
}

type textDoc struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	City     string `json:"city"`
	Content  string `json:"content"`
	Position int    `json:"position"`
}

// Build writes a fresh index of records to dir, replacing any previous one
func Build(dir string, records []store.HospitalRecord) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("reset text index dir: %w", err)
	}
	index, err := bleve.New(dir, buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create bleve index: %w", err)
	}
	defer index.Close()

	batch := index.NewBatch()
	for i, rec := range records {
		doc := textDoc{
			Name:     rec.HospitalName,
			Address:  rec.Address,
			City:     rec.City,
			Content:  rec.ChunkText,
			Position: i,
		}
		if err := batch.Index(strconv.Itoa(i), doc); err != nil {
			return fmt.Errorf("index record %d: %w", i, err)
		}
		if batch.Size() >= 500 {
			if err := index.Batch(batch); err != nil {
				return fmt.Errorf("flush text batch: %w", err)
			}
			batch.Reset()
		}
	}
	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			return fmt.Errorf("flush text batch: %w", err)
		}
	}

	return nil
}

// Open opens an index written by Build
func Open(dir string) (*Index, error) {
	index, err := bleve.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("open bleve index: %w", err)
	}
	return &Index{index: index}, nil
}

// Close releases the index
func (x *Index) Close() error {
	return x.index.Close()
}

// Count returns the number of indexed records
func (x *Index) Count() (uint64, error) {
	return x.index.DocCount()
}

// Search runs a keyword query over name, address and city. A non-empty
// city restricts hits to that city.
func (x *Index) Search(query, city string, limit int) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	nameQuery := bleve.NewMatchQuery(query)
	nameQuery.SetField("name")
	nameQuery.SetBoost(2.0)
	addressQuery := bleve.NewMatchQuery(query)
	addressQuery.SetField("address")
	cityQuery := bleve.NewMatchQuery(query)
	cityQuery.SetField("city")
	cityQuery.SetBoost(1.5)
	contentQuery := bleve.NewMatchQuery(query)
	contentQuery.SetField("content")

	var q blevequery.Query = bleve.NewDisjunctionQuery(nameQuery, addressQuery, cityQuery, contentQuery)
	if city = strings.ToLower(strings.TrimSpace(city)); city != "" {
		cityFilter := bleve.NewTermQuery(city)
		cityFilter.SetField("city_exact")
		q = bleve.NewConjunctionQuery(q, cityFilter)
	}

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{"name", "address", "city", "position"}

	res, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		name, _ := h.Fields["name"].(string)
		address, _ := h.Fields["address"].(string)
		hitCity, _ := h.Fields["city"].(string)
		position, _ := h.Fields["position"].(float64)
		hits = append(hits, Hit{
			Position:     int(position),
			HospitalName: name,
			Address:      address,
			City:         hitCity,
			Score:        h.Score,
		})
	}
	return hits, nil
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = "en"
	indexMapping.DefaultField = "content"

	docMapping := bleve.NewDocumentMapping()

	contentField := bleve.NewTextFieldMapping()
	contentField.Store = false
	contentField.Index = true
	docMapping.AddFieldMappingsAt("content", contentField)

	nameField := bleve.NewTextFieldMapping()
	nameField.Store = true
	nameField.Index = true
	docMapping.AddFieldMappingsAt("name", nameField)

	addressField := bleve.NewTextFieldMapping()
	addressField.Store = true
	addressField.Index = true
	docMapping.AddFieldMappingsAt("address", addressField)

	cityField := bleve.NewTextFieldMapping()
	cityField.Store = true
	cityField.Index = true
	cityExact := bleve.NewTextFieldMapping()
	cityExact.Name = "city_exact"
	cityExact.Analyzer = "keyword"
	cityExact.Store = false
	cityExact.Index = true
	docMapping.AddFieldMappingsAt("city", cityField, cityExact)

	positionField := bleve.NewNumericFieldMapping()
	positionField.Store = true
	positionField.Index = false
	docMapping.AddFieldMappingsAt("position", positionField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}
