package mcpserver

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/DreamCats/hospitalvoice/internal/retrieval"
	"github.com/DreamCats/hospitalvoice/internal/textindex"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const defaultSearchLimit = 10

// Server exposes hospital lookup via MCP stdio.
type Server struct {
	provider *retrieval.Provider
	dbPath   string
	textDir  string
	version  string
}

// New creates a new MCP server wrapper.
func New(provider *retrieval.Provider, dbPath, textDir, version string) *Server {
	return &Server{
		provider: provider,
		dbPath:   dbPath,
		textDir:  textDir,
		version:  version,
	}
}

// Run starts the MCP stdio server.
func (s *Server) Run(ctx context.Context) error {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "hospitalvoice",
		Title:   "Hospital Network Lookup",
		Version: s.version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name: "hospital_lookup",
		Description: `Answer a question about the hospital network the way the voice agent does.

Exact name/city matches win; otherwise a semantic search filtered by city runs.
Returns the spoken response text plus the matched hospitals.`,
	}, s.lookupTool)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "hospital_search",
		Description: "Keyword search over the hospital directory (name, address, city), optionally restricted to one city.",
	}, s.searchTool)

	mcp.AddTool(server, &mcp.Tool{
		Name: "index_status",
		Description: `Check whether the hospital index is loaded.

Returns readiness, record count, encoder model and index age.`,
	}, s.statusTool)

	return server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) lookupTool(ctx context.Context, _ *mcp.CallToolRequest, input LookupInput) (*mcp.CallToolResult, LookupOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, LookupOutput{}, fmt.Errorf("query is required")
	}

	engine, err := s.provider.Engine()
	if err != nil {
		return nil, LookupOutput{}, err
	}

	answer, err := engine.Answer(ctx, input.Query)
	if err != nil {
		return nil, LookupOutput{}, err
	}

	output := LookupOutput{
		Query:        answer.Query,
		Match:        string(answer.Match),
		ResponseText: answer.Text,
		Count:        len(answer.Results),
		Hospitals:    answer.Results,
	}
	if answer.Entities.City != nil {
		output.City = *answer.Entities.City
	}
	if answer.Entities.HospitalName != nil {
		output.HospitalName = *answer.Entities.HospitalName
	}
	if output.Hospitals == nil {
		output.Hospitals = []retrieval.ScoredResult{}
	}
	return nil, output, nil
}

func (s *Server) searchTool(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchOutput{}, fmt.Errorf("query is required")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	idx, err := textindex.Open(s.textDir)
	if err != nil {
		return nil, SearchOutput{}, fmt.Errorf("text index unavailable (run 'hospitalvoice build'): %w", err)
	}
	defer idx.Close()

	hits, err := idx.Search(input.Query, input.City, limit)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Query:   input.Query,
		City:    input.City,
		Count:   len(hits),
		Results: make([]SearchResultItem, 0, len(hits)),
	}
	for _, h := range hits {
		output.Results = append(output.Results, SearchResultItem{
			HospitalName: h.HospitalName,
			Address:      h.Address,
			City:         h.City,
			Score:        h.Score,
		})
	}
	return nil, output, nil
}

func (s *Server) statusTool(ctx context.Context, _ *mcp.CallToolRequest, _ StatusInput) (*mcp.CallToolResult, StatusOutput, error) {
	output := StatusOutput{DatabasePath: s.dbPath}

	if info, err := os.Stat(s.dbPath); err == nil {
		output.DatabaseSize = formatBytes(info.Size())
	}
	if info, err := os.Stat(s.textDir); err == nil && info.IsDir() {
		output.TextIndexReady = true
	}

	engine, err := s.provider.Engine()
	if err != nil {
		output.Error = err.Error()
		return nil, output, nil
	}

	meta := engine.Meta()
	output.Ready = true
	output.HospitalsIndexed = engine.Len()
	output.Model = meta.Model
	output.Dimension = meta.Dimension
	if !meta.BuiltAt.IsZero() {
		output.BuiltAt = meta.BuiltAt.UTC().Format(time.RFC3339)
		output.IndexAge = formatDuration(time.Since(meta.BuiltAt))
	}
	return nil, output, nil
}

// formatBytes formats bytes to human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// formatDuration formats duration to human-readable string
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%.1f hours", d.Hours())
	}
	return fmt.Sprintf("%.1f days", d.Hours()/24)
}
