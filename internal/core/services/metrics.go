package services

import (
	"time"

	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

// nopMetrics discards every measurement. Used when no metrics adapter is
// configured.
type nopMetrics struct{}

var _ driven.Metrics = nopMetrics{}

func (nopMetrics) MessageHandled(string, string, time.Duration) {}
func (nopMetrics) StageOutcome(string, string)                  {}
func (nopMetrics) EmbeddingsComputed(string, int)               {}
func (nopMetrics) SearchServed(string, time.Duration)           {}

// orNop returns m, or a no-op implementation when m is nil.
func orNop(m driven.Metrics) driven.Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
