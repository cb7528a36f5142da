// Package mcp provides an MCP (Model Context Protocol) server adapter for claimminer.
// It lets AI assistants search the fragment corpus and submit new URLs.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")
