package mcp

import (
	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search ranks fragments.
	Search driving.SearchService

	// Ingest accepts new URLs. Without it the add_url tool is not offered.
	Ingest driving.IngestService

	// Document reads stored documents for resources.
	Document driving.DocumentService

	// Principal is recorded as the submitter of URLs added through MCP.
	Principal string

	// SearchDefaults fill query fields the caller leaves empty.
	SearchDefaults domain.SearchSettings
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	// Ingest and Document are optional
	return nil
}
