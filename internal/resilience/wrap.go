package resilience

import (
	"context"

	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// WrapProvider decorates an embedding provider so every network call runs
// through the retryer. The pipelines see the same Provider interface and
// stay retry-free themselves.
func WrapProvider(inner embeddings.Provider, retryer *Retryer) embeddings.Provider {
	return &retryingProvider{inner: inner, retryer: retryer}
}

type retryingProvider struct {
	inner   embeddings.Provider
	retryer *Retryer
}

func (p *retryingProvider) Embed(ctx context.Context, text string, inputType embeddings.InputType) (*embeddings.Result, error) {
	var result *embeddings.Result
	err := p.retryer.Do(ctx, "embeddings.embed", func(ctx context.Context) error {
		var err error
		result, err = p.inner.Embed(ctx, text, inputType)
		return err
	})
	return result, err
}

func (p *retryingProvider) BatchEmbed(ctx context.Context, texts []string, inputType embeddings.InputType) (*embeddings.Result, error) {
	var result *embeddings.Result
	err := p.retryer.Do(ctx, "embeddings.batch_embed", func(ctx context.Context) error {
		var err error
		result, err = p.inner.BatchEmbed(ctx, texts, inputType)
		return err
	})
	return result, err
}

func (p *retryingProvider) HealthCheck(ctx context.Context) error {
	return p.inner.HealthCheck(ctx)
}

func (p *retryingProvider) Dimensions() int { return p.inner.Dimensions() }
func (p *retryingProvider) Model() string   { return p.inner.Model() }
func (p *retryingProvider) Close() error    { return p.inner.Close() }

// WrapStore decorates a vector store the same way. Delete and visibility
// operations are safe to retry because they are idempotent.
func WrapStore(inner vectorstore.Store, retryer *Retryer) vectorstore.Store {
	return &retryingStore{inner: inner, retryer: retryer}
}

type retryingStore struct {
	inner   vectorstore.Store
	retryer *Retryer
}

func (s *retryingStore) EnsureCollection(ctx context.Context, collection string, dimensions int) error {
	return s.retryer.Do(ctx, "vectorstore.ensure_collection", func(ctx context.Context) error {
		return s.inner.EnsureCollection(ctx, collection, dimensions)
	})
}

func (s *retryingStore) Upsert(ctx context.Context, collection string, records []vectorstore.Record) error {
	return s.retryer.Do(ctx, "vectorstore.upsert", func(ctx context.Context) error {
		return s.inner.Upsert(ctx, collection, records)
	})
}

func (s *retryingStore) Search(ctx context.Context, collection string, params vectorstore.SearchParams) ([]vectorstore.ScoredResult, error) {
	var results []vectorstore.ScoredResult
	err := s.retryer.Do(ctx, "vectorstore.search", func(ctx context.Context) error {
		var err error
		results, err = s.inner.Search(ctx, collection, params)
		return err
	})
	return results, err
}

func (s *retryingStore) Delete(ctx context.Context, collection, tenantID string, ids []string) error {
	return s.retryer.Do(ctx, "vectorstore.delete", func(ctx context.Context) error {
		return s.inner.Delete(ctx, collection, tenantID, ids)
	})
}

func (s *retryingStore) DeleteByFilter(ctx context.Context, collection, tenantID string, sel vectorstore.DeleteSelector) error {
	return s.retryer.Do(ctx, "vectorstore.delete_by_filter", func(ctx context.Context) error {
		return s.inner.DeleteByFilter(ctx, collection, tenantID, sel)
	})
}

func (s *retryingStore) SetVisibility(ctx context.Context, collection, tenantID, documentID string, visibility vectorstore.Visibility) error {
	return s.retryer.Do(ctx, "vectorstore.set_visibility", func(ctx context.Context) error {
		return s.inner.SetVisibility(ctx, collection, tenantID, documentID, visibility)
	})
}

func (s *retryingStore) HealthCheck(ctx context.Context) error {
	return s.inner.HealthCheck(ctx)
}

func (s *retryingStore) Close() error { return s.inner.Close() }

var (
	_ embeddings.Provider = (*retryingProvider)(nil)
	_ vectorstore.Store   = (*retryingStore)(nil)
)
