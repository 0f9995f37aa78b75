package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Tool names as announced to the model.
const (
	ToolWebSearch      = "webSearch"
	ToolVectorSearch   = "vectorDatabaseSearch"
	ToolSupplierSearch = "supplierSearch"
)

// DefaultRegistry is the shared registry used by the orchestrator. The
// builtin executors are stand-ins for the external lookup services; real
// deployments re-register them with live backends.
var DefaultRegistry = NewRegistry()

func init() {
	DefaultRegistry.MustRegister(ToolWebSearch, webSearch)
	DefaultRegistry.MustRegister(ToolVectorSearch, vectorDatabaseSearch)
	DefaultRegistry.MustRegister(ToolSupplierSearch, supplierSearch)
}

type searchHit struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url,omitempty"`
}

func webSearch(ctx context.Context, query string) (json.RawMessage, error) {
	if query == "" {
		return json.RawMessage(`[]`), nil
	}
	hits := []searchHit{
		{
			Title:   fmt.Sprintf("Sustainability overview: %s", query),
			Snippet: "Recent reporting and practical guidance on " + query + ".",
			URL:     "https://example.org/search?q=" + strings.ReplaceAll(query, " ", "+"),
		},
	}
	return json.Marshal(hits)
}

func vectorDatabaseSearch(ctx context.Context, query string) (json.RawMessage, error) {
	if query == "" {
		return json.RawMessage(`[]`), nil
	}
	hits := []searchHit{
		{
			Title:   "Knowledge base match",
			Snippet: "Indexed guidance related to: " + query,
		},
	}
	return json.Marshal(hits)
}

type supplierHit struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Material string `json:"material"`
}

func supplierSearch(ctx context.Context, query string) (json.RawMessage, error) {
	if query == "" {
		return json.RawMessage(`[]`), nil
	}
	q := strings.ToLower(query)
	hits := []supplierHit{}
	for _, s := range supplierDirectory {
		if strings.Contains(q, strings.ToLower(s.Material)) || strings.Contains(q, strings.ToLower(s.Location)) {
			hits = append(hits, s)
		}
	}
	return json.Marshal(hits)
}

var supplierDirectory = []supplierHit{
	{Name: "EverGreen Paper Co", Location: "Mumbai", Material: "recycled paper"},
	{Name: "Khadi Weave Collective", Location: "Ahmedabad", Material: "organic cotton"},
	{Name: "Banyan Bioplastics", Location: "Pune", Material: "bioplastic"},
	{Name: "Northwind Timber", Location: "Portland", Material: "certified timber"},
}
