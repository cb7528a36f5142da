// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - BlobStore: Content-addressable raw and derived bytes
//   - URIStore: URI equivalence classes
//   - DocumentStore: Documents and fragments
//   - AnalyzerStore: Append-only processing step registry
//   - VectorStore: Embedding persistence and nearest-neighbour candidates
//   - MessageLog: Partitioned task messages
//   - Fetcher: Network downloads
//   - Extractor: Text extraction (html, pdf, text)
//   - EmbeddingService: Vector embeddings for one model
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil; the application degrades gracefully:
//
//   - LanguageDetector: Without it, documents keep their header language.
//   - Metrics: Without it, nothing is recorded.
//   - SchedulerStore: Without it, periodic task state is not persisted.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or extractor package
package driven
