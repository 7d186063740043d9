// Package chroma defines the vector-store collaborator consumed by the tool handlers:
// collection management and document operations, plus the result and filter types
// shared by every backend implementation.
package chroma

import "context"

// Client manages collections.
type Client interface {
	// ListCollections returns collection names in creation order.
	// A nil limit returns everything after offset.
	ListCollections(ctx context.Context, limit, offset *int) ([]string, error)

	// CreateCollection creates a new collection. Returns ErrAlreadyExists if the name is taken.
	CreateCollection(ctx context.Context, name string, opts CreateOptions) (Collection, error)

	// GetCollection resolves a collection by name. Returns ErrNotFound if absent.
	GetCollection(ctx context.Context, name string) (Collection, error)

	// DeleteCollection removes a collection and all of its documents.
	DeleteCollection(ctx context.Context, name string) error

	// Close releases the underlying connection or database handle.
	Close(ctx context.Context) error
}

// Collection is a handle to one named collection.
// Handles are cheap and may be discarded after each call.
type Collection interface {
	Name() string
	Add(ctx context.Context, req AddRequest) error
	Query(ctx context.Context, req QueryRequest) (*QueryResult, error)
	Get(ctx context.Context, req GetRequest) (*GetResult, error)
	Update(ctx context.Context, req UpdateRequest) error
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
	Peek(ctx context.Context, limit int) (*GetResult, error)
	Modify(ctx context.Context, req ModifyRequest) error
}

// CreateOptions holds the optional settings for a new collection.
type CreateOptions struct {
	Metadata          map[string]any
	EmbeddingFunction string
	HNSW              HNSWConfig
}

// HNSWConfig holds index tuning parameters. Nil fields keep the backend default.
type HNSWConfig struct {
	Space          *string  `json:"space,omitempty"`
	EfConstruction *int     `json:"ef_construction,omitempty"`
	EfSearch       *int     `json:"ef_search,omitempty"`
	MaxNeighbors   *int     `json:"max_neighbors,omitempty"`
	NumThreads     *int     `json:"num_threads,omitempty"`
	BatchSize      *int     `json:"batch_size,omitempty"`
	SyncThreshold  *int     `json:"sync_threshold,omitempty"`
	ResizeFactor   *float64 `json:"resize_factor,omitempty"`
}

// IsZero reports whether no parameter is set.
func (c HNSWConfig) IsZero() bool {
	return c.Space == nil && c.EfConstruction == nil && c.EfSearch == nil &&
		c.MaxNeighbors == nil && c.NumThreads == nil && c.BatchSize == nil &&
		c.SyncThreshold == nil && c.ResizeFactor == nil
}

// Merge overlays the set fields of other onto c.
func (c HNSWConfig) Merge(other HNSWConfig) HNSWConfig {
	if other.Space != nil {
		c.Space = other.Space
	}
	if other.EfConstruction != nil {
		c.EfConstruction = other.EfConstruction
	}
	if other.EfSearch != nil {
		c.EfSearch = other.EfSearch
	}
	if other.MaxNeighbors != nil {
		c.MaxNeighbors = other.MaxNeighbors
	}
	if other.NumThreads != nil {
		c.NumThreads = other.NumThreads
	}
	if other.BatchSize != nil {
		c.BatchSize = other.BatchSize
	}
	if other.SyncThreshold != nil {
		c.SyncThreshold = other.SyncThreshold
	}
	if other.ResizeFactor != nil {
		c.ResizeFactor = other.ResizeFactor
	}
	return c
}

// SpaceOrDefault returns the configured distance space, or SpaceL2.
func (c HNSWConfig) SpaceOrDefault() string {
	if c.Space == nil || *c.Space == "" {
		return SpaceL2
	}
	return *c.Space
}

// AddRequest adds documents. IDs and Documents have equal length.
type AddRequest struct {
	Documents []string
	Metadatas []map[string]any
	IDs       []string
}

// QueryRequest runs a nearest-neighbour search for each query text.
type QueryRequest struct {
	QueryTexts    []string
	NResults      int
	Where         map[string]any
	WhereDocument map[string]any
	Include       []string
}

// GetRequest selects documents by id and/or filter.
type GetRequest struct {
	IDs           []string
	Where         map[string]any
	WhereDocument map[string]any
	Include       []string
	Limit         *int
	Offset        *int
}

// UpdateRequest replaces the supplied fields of existing documents.
type UpdateRequest struct {
	IDs        []string
	Embeddings [][]float32
	Metadatas  []map[string]any
	Documents  []string
}

// ModifyRequest renames a collection, replaces its metadata or retunes its index.
type ModifyRequest struct {
	NewName     *string
	NewMetadata map[string]any
	HNSW        HNSWConfig
}
