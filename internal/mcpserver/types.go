package mcpserver

import "github.com/DreamCats/hospitalvoice/internal/retrieval"

// LookupInput defines inputs for the hospital_lookup MCP tool.
type LookupInput struct {
	Query string `json:"query" jsonschema:"caller question, free text or a structured entity JSON array"`
}

// LookupOutput is the output for hospital_lookup.
type LookupOutput struct {
	Query        string                   `json:"query"`
	City         string                   `json:"city,omitempty"`
	HospitalName string                   `json:"hospital_name,omitempty"`
	Match        string                   `json:"match"`
	ResponseText string                   `json:"response_text"`
	Count        int                      `json:"count"`
	Hospitals    []retrieval.ScoredResult `json:"hospitals"`
}

// SearchInput defines inputs for the hospital_search MCP tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"keywords matched against hospital name, address and city"`
	City  string `json:"city,omitempty" jsonschema:"only return hospitals in this city (optional)"`
	Limit int    `json:"limit,omitempty" jsonschema:"number of results to return"`
}

// SearchResultItem is a compact representation of a directory hit.
type SearchResultItem struct {
	HospitalName string  `json:"hospital_name"`
	Address      string  `json:"address"`
	City         string  `json:"city"`
	Score        float64 `json:"score"`
}

// SearchOutput is the output for hospital_search.
type SearchOutput struct {
	Query   string             `json:"query"`
	City    string             `json:"city,omitempty"`
	Count   int                `json:"count"`
	Results []SearchResultItem `json:"results"`
}

// StatusInput defines inputs for the index_status MCP tool.
type StatusInput struct{}

// StatusOutput describes whether the engine is ready to answer.
type StatusOutput struct {
	Ready            bool   `json:"ready"`
	Error            string `json:"error,omitempty"`
	HospitalsIndexed int    `json:"hospitals_indexed"`
	Model            string `json:"model,omitempty"`
	Dimension        int    `json:"dimension,omitempty"`
	BuiltAt          string `json:"built_at,omitempty"`
	IndexAge         string `json:"index_age,omitempty"`
	DatabasePath     string `json:"database_path"`
	DatabaseSize     string `json:"database_size,omitempty"`
	TextIndexReady   bool   `json:"text_index_ready"`
}
