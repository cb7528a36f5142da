// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - URIStore: URI equivalence classes
//   - DocumentStore: Documents, fragments and collections
//   - AnalyzerStore: Append-only analyzer registry
//   - VectorStore: Embeddings with brute-force cosine search
//   - MessageLog: Durable partitioned task messages
//   - SchedulerStore: Maintenance task state and run history
//
// # Schema
//
// The schema is managed through numbered .up.sql migrations embedded from the
// migrations/ directory. Foreign keys cascade document deletion to fragments,
// embeddings and collection tags.
//
// # Data Location
//
// By default, the database is stored at ~/.claimminer/data/claimminer.db
//
// # Thread Safety
//
// All operations are thread-safe. Writers take an immediate lock and wait up
// to five seconds for a busy database; readers proceed concurrently in WAL mode.
package sqlite
