package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
	"github.com/custodia-labs/claimminer/internal/core/ports/driving"
	"github.com/custodia-labs/claimminer/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// SearchService ranks fragments by embedding similarity, either purely by
// distance or with Maximal Marginal Relevance.
type SearchService struct {
	embedder driving.EmbedService
	models   *ModelRegistry
	vectors  driven.VectorStore
	docs     driven.DocumentStore
	metrics  driven.Metrics
}

// NewSearchService creates a new search service. metrics may be nil.
func NewSearchService(
	embedder driving.EmbedService,
	models *ModelRegistry,
	vectors driven.VectorStore,
	docs driven.DocumentStore,
	metrics driven.Metrics,
) *SearchService {
	return &SearchService{
		embedder: embedder,
		models:   models,
		vectors:  vectors,
		docs:     docs,
		metrics:  orNop(metrics),
	}
}

// Search ranks fragments against a query text or an existing fragment.
//
// Semantic mode orders candidates by ascending distance. MMR mode greedily
// picks offset+limit candidates from the pool, trading relevance against
// similarity to the ones already picked. Both return the [offset,
// offset+limit) window of the ranking.
func (s *SearchService) Search(ctx context.Context, query domain.SearchQuery) ([]domain.SearchResult, error) {
	start := time.Now()
	logger.Section("Search Execution")

	if err := query.Validate(); err != nil {
		return nil, err
	}
	model := s.models.Resolve(query.Model)

	vec, err := s.queryVector(ctx, &query, model)
	if err != nil {
		return nil, err
	}

	k := query.Offset + query.Limit
	if query.Mode == domain.SearchModeMMR {
		k = query.CandidatePool
	}

	candidates, err := s.vectors.Nearest(ctx, model, vec, query.Filter, k)
	if err != nil {
		return nil, fmt.Errorf("nearest fragments: %w", err)
	}
	logger.Debug("Mode: %s, model: %s, candidates: %d", query.Mode, model, len(candidates))

	var ranked []rankedCandidate
	if query.Mode == domain.SearchModeMMR {
		ranked = rankMMR(candidates, query.Lambda, query.Offset+query.Limit)
	} else {
		ranked = rankSemantic(candidates)
	}
	ranked = applyPagination(ranked, query.Offset, query.Limit)

	results, err := s.hydrateResults(ctx, ranked, query.Offset)
	if err != nil {
		return nil, err
	}

	s.metrics.SearchServed(query.Mode.String(), time.Since(start))
	logger.Debug("Search returned %d results in %s", len(results), time.Since(start))
	return results, nil
}

// queryVector embeds the query text, or loads the stored vector of the
// query fragment and excludes that fragment from the candidates.
func (s *SearchService) queryVector(ctx context.Context, query *domain.SearchQuery, model string) ([]float32, error) {
	if query.FragmentID != 0 {
		e, err := s.vectors.Get(ctx, model, domain.FragmentTarget(query.FragmentID))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("fragment %d has no %s embedding: %w", query.FragmentID, model, err)
			}
			return nil, fmt.Errorf("get embedding: %w", err)
		}
		query.Filter.ExcludeFragmentID = query.FragmentID
		return e.Vector, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{query.Text}, model)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vectors[0], nil
}

// rankedCandidate is a candidate with its ranking score.
type rankedCandidate struct {
	domain.Candidate
	score float64
}

// rankSemantic keeps the store's (distance, id) order.
func rankSemantic(candidates []domain.Candidate) []rankedCandidate {
	ranked := make([]rankedCandidate, len(candidates))
	for i, c := range candidates {
		ranked[i] = rankedCandidate{Candidate: c, score: 1 - c.Distance}
	}
	return ranked
}

// rankMMR selects up to n candidates by Maximal Marginal Relevance:
//
//	score(c) = lambda*sim(c, q) - (1-lambda)*max sim(c, s) for s in selected
//
// The maximum similarity to the selection is updated after every pick.
// Ties go to the more relevant candidate, then to the lower ID.
func rankMMR(candidates []domain.Candidate, lambda float64, n int) []rankedCandidate {
	if n > len(candidates) {
		n = len(candidates)
	}

	relevance := make([]float64, len(candidates))
	maxSim := make([]float64, len(candidates))
	picked := make([]bool, len(candidates))
	for i, c := range candidates {
		relevance[i] = 1 - c.Distance
		maxSim[i] = math.Inf(-1)
	}

	ranked := make([]rankedCandidate, 0, n)
	for len(ranked) < n {
		best := -1
		bestScore := math.Inf(-1)
		for i := range candidates {
			if picked[i] {
				continue
			}
			score := lambda * relevance[i]
			if len(ranked) > 0 {
				score -= (1 - lambda) * maxSim[i]
			}
			if best < 0 || betterMMR(score, bestScore, candidates[i], candidates[best], relevance[i], relevance[best]) {
				best, bestScore = i, score
			}
		}

		picked[best] = true
		ranked = append(ranked, rankedCandidate{Candidate: candidates[best], score: bestScore})

		for i := range candidates {
			if picked[i] {
				continue
			}
			if sim := domain.CosineSimilarity(candidates[i].Vector, candidates[best].Vector); sim > maxSim[i] {
				maxSim[i] = sim
			}
		}
	}
	return ranked
}

func betterMMR(score, bestScore float64, c, best domain.Candidate, rel, bestRel float64) bool {
	if score != bestScore {
		return score > bestScore
	}
	if rel != bestRel {
		return rel > bestRel
	}
	return c.FragmentID < best.FragmentID
}

// applyPagination applies offset and limit to a ranking.
func applyPagination(ranked []rankedCandidate, offset, limit int) []rankedCandidate {
	if offset >= len(ranked) {
		return nil
	}

	end := offset + limit
	if end > len(ranked) {
		end = len(ranked)
	}

	return ranked[offset:end]
}

// hydrateResults loads fragments and their documents for a ranking page.
// Fragments deleted since ranking are skipped.
func (s *SearchService) hydrateResults(
	ctx context.Context, ranked []rankedCandidate, offset int,
) ([]domain.SearchResult, error) {
	if len(ranked) == 0 {
		return []domain.SearchResult{}, nil
	}

	ids := make([]int64, len(ranked))
	for i, r := range ranked {
		ids[i] = r.FragmentID
	}
	fragments, err := s.docs.GetFragmentsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get fragments: %w", err)
	}

	docs := make(map[int64]*domain.Document)
	results := make([]domain.SearchResult, 0, len(ranked))
	for i, r := range ranked {
		f, ok := fragments[r.FragmentID]
		if !ok {
			continue
		}

		result := domain.SearchResult{
			Fragment: f,
			Distance: r.Distance,
			Score:    r.score,
			Rank:     offset + i,
		}

		if f.DocID != nil {
			doc, ok := docs[*f.DocID]
			if !ok {
				doc, err = s.docs.GetDocument(ctx, *f.DocID)
				if err != nil && !errors.Is(err, domain.ErrNotFound) {
					return nil, fmt.Errorf("get document %d: %w", *f.DocID, err)
				}
				docs[*f.DocID] = doc
			}
			if doc != nil {
				result.DocumentURI = doc.URI
				result.DocumentTitle = doc.Title
			}
		}

		results = append(results, result)
	}
	return results, nil
}
