// Package domain defines the core business entities for claimminer.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - URI: A member of a URI equivalence class
//   - Document: One fetch or upload of a resource
//   - Fragment: A paragraph or standalone claim eligible for retrieval
//   - Embedding: A model-specific vector for a document or fragment
//   - Message: A unit of work on a dispatcher topic
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
