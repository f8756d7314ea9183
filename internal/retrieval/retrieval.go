// Package retrieval defines the document-retrieval collaborator used to
// ground character replies in uploaded reference material. The core treats
// retrieval results as opaque text plus a provider-side store handle.
package retrieval

import "context"

// Context is the retrieval outcome for one query. StoreName, when set,
// enables the provider's retrieval-augmented mode scoped to that store.
// SearchedText is pre-fetched context injected directly into the prompt.
type Context struct {
	StoreName    string
	SearchedText string
}

// Empty reports whether the retrieval produced nothing usable.
func (c Context) Empty() bool {
	return c.StoreName == "" && c.SearchedText == ""
}

// Searcher locates reference material for a character and query.
type Searcher interface {
	Search(ctx context.Context, characterID, query string) (Context, error)
}

// NoopSearcher returns empty results; used when no document store is
// configured.
type NoopSearcher struct{}

func (NoopSearcher) Search(context.Context, string, string) (Context, error) {
	return Context{}, nil
}

// StoreSearcher resolves a fixed provider-side search store per character,
// letting the model do the document lookup itself.
type StoreSearcher struct {
	// Stores maps character IDs to provider file-search store names.
	Stores map[string]string
}

func (s *StoreSearcher) Search(_ context.Context, characterID, _ string) (Context, error) {
	if s == nil || s.Stores == nil {
		return Context{}, nil
	}
	return Context{StoreName: s.Stores[characterID]}, nil
}
