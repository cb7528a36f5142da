package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
	"github.com/custodia-labs/claimminer/internal/core/ports/driving"
	"github.com/custodia-labs/claimminer/internal/logger"
)

// Stage names used for outcome metrics.
const (
	stageFetch   = "fetch"
	stageExtract = "extract"
	stageEmbed   = "embed"
)

// Router turns stage outcomes into follow-up messages. Stages never
// enqueue work themselves; the router decides what runs next once a stage
// has committed.
type Router struct {
	queue   driving.Enqueuer
	fetch   driving.FetchService
	extract driving.ExtractService
	embed   driving.EmbedService
	models  *ModelRegistry
	metrics driven.Metrics
	sync    driving.Handler
}

// NewRouter creates a router. metrics may be nil.
func NewRouter(
	queue driving.Enqueuer,
	fetch driving.FetchService,
	extract driving.ExtractService,
	embed driving.EmbedService,
	models *ModelRegistry,
	metrics driven.Metrics,
) *Router {
	return &Router{
		queue:   queue,
		fetch:   fetch,
		extract: extract,
		embed:   embed,
		models:  models,
		metrics: orNop(metrics),
	}
}

// SetExternalSync installs the handler for the external-sync topic.
// Without one, external-sync messages are logged and dropped.
func (r *Router) SetExternalSync(h driving.Handler) {
	r.sync = h
}

// Register installs the stage handlers on a dispatcher.
func (r *Router) Register(d driving.Dispatcher) {
	d.Register(domain.TopicDownload, r.HandleDownload)
	for _, kind := range []domain.ExtractorKind{domain.ExtractorHTML, domain.ExtractorPDF, domain.ExtractorText} {
		d.Register(kind.Topic(), r.extractHandler(kind))
	}
	d.Register(domain.TopicEmbed, r.HandleEmbed)
	d.Register(domain.TopicExternalSync, r.HandleExternalSync)
}

// HandleDownload runs the fetch stage and routes fetched content to the
// extractor for its MIME type.
func (r *Router) HandleDownload(ctx context.Context, msg domain.Message) error {
	docID, err := domain.DocumentIDFromPayload(msg.Payload)
	if err != nil {
		return err
	}

	outcome, err := r.fetch.Fetch(ctx, docID, msg.Params)
	if err != nil {
		return err
	}
	r.metrics.StageOutcome(stageFetch, string(outcome.Status))

	switch outcome.Status {
	case domain.FetchFetched:
	case domain.FetchSkipped, domain.FetchUnchanged:
		// Content is already there. Extraction runs again on an explicit
		// reparse, or when an earlier run never got to it.
		if !outcome.Incomplete && !domain.ParamBool(msg.Params, domain.ParamReparse) {
			return nil
		}
	default:
		return nil
	}

	kind, ok := domain.ExtractorKindFor(outcome.MIMEType)
	if !ok {
		logger.Warn("Document %d has unsupported type %q, not extracting", docID, outcome.MIMEType)
		return nil
	}

	next := domain.NewDocumentMessage(kind.Topic(), docID, domain.WithoutKeys(msg.Params, domain.ParamRefetch))
	return r.queue.Enqueue(ctx, next)
}

func (r *Router) extractHandler(kind domain.ExtractorKind) driving.Handler {
	return func(ctx context.Context, msg domain.Message) error {
		return r.HandleExtract(ctx, kind, msg)
	}
}

// HandleExtract runs the extraction stage and enqueues embeddings for the
// document and each new fragment.
func (r *Router) HandleExtract(ctx context.Context, kind domain.ExtractorKind, msg domain.Message) error {
	docID, err := domain.DocumentIDFromPayload(msg.Payload)
	if err != nil {
		return err
	}

	outcome, err := r.extract.Extract(ctx, docID, kind, msg.Params)
	if err != nil {
		return err
	}
	r.metrics.StageOutcome(stageExtract, string(outcome.Status))

	if outcome.Status != domain.ExtractExtracted {
		return nil
	}

	msgs, err := r.EmbedMessages(ctx, outcome)
	if err != nil {
		return err
	}
	return r.queue.Enqueue(ctx, msgs...)
}

// EmbedMessages builds the embed messages for an extraction: the document
// and every fragment with the base model, plus every fragment with each
// extra model configured on the document's collections.
func (r *Router) EmbedMessages(ctx context.Context, outcome *domain.ExtractOutcome) ([]domain.Message, error) {
	extra, err := r.models.ExtraModels(ctx, outcome.Collections)
	if err != nil {
		return nil, fmt.Errorf("resolve collection models: %w", err)
	}

	msgs := make([]domain.Message, 0, 1+len(outcome.FragmentIDs)*(1+len(extra)))
	msgs = append(msgs, domain.NewEmbedMessage(domain.DocumentTarget(outcome.DocID), ""))
	for _, id := range outcome.FragmentIDs {
		msgs = append(msgs, domain.NewEmbedMessage(domain.FragmentTarget(id), ""))
	}
	for _, model := range extra {
		for _, id := range outcome.FragmentIDs {
			msgs = append(msgs, domain.NewEmbedMessage(domain.FragmentTarget(id), model))
		}
	}
	return msgs, nil
}

// HandleEmbed computes one embedding.
func (r *Router) HandleEmbed(ctx context.Context, msg domain.Message) error {
	err := r.embed.HandleEmbedMessage(ctx, msg.Payload)
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeError
	}
	r.metrics.StageOutcome(stageEmbed, outcome)
	return err
}

// HandleExternalSync forwards to the installed external-sync handler.
func (r *Router) HandleExternalSync(ctx context.Context, msg domain.Message) error {
	if r.sync == nil {
		logger.Debug("No external sync handler, dropping message %s", msg.ID)
		return nil
	}
	return r.sync(ctx, msg)
}
