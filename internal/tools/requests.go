package tools

import "github.com/raphaelgruber/chroma-mcp/internal/chroma"

// Request shapes, one per tool. Fields without omitempty are required in the generated schema.

// ListCollectionsRequest pages through collection names.
type ListCollectionsRequest struct {
	Limit  *int `json:"limit,omitempty" jsonschema:"Maximum number of collections to return"`
	Offset *int `json:"offset,omitempty" jsonschema:"Offset for pagination"`
}

// CreateCollectionRequest creates a collection with optional metadata, embedding function
// and index tuning.
type CreateCollectionRequest struct {
	CollectionName        string         `json:"collection_name" jsonschema:"Name of the collection to create"`
	Metadata              map[string]any `json:"metadata,omitempty" jsonschema:"Optional metadata for the collection"`
	EmbeddingFunctionName string         `json:"embedding_function_name,omitempty" jsonschema:"Name of the embedding function to use: default, ollama, openai or voyageai"`

	Space          *string  `json:"space,omitempty" jsonschema:"Distance function: l2, cosine or ip"`
	EfConstruction *int     `json:"ef_construction,omitempty" jsonschema:"Size of the candidate list while building the index"`
	EfSearch       *int     `json:"ef_search,omitempty" jsonschema:"Size of the candidate list while searching"`
	MaxNeighbors   *int     `json:"max_neighbors,omitempty" jsonschema:"Maximum number of neighbours per node"`
	NumThreads     *int     `json:"num_threads,omitempty" jsonschema:"Number of threads used by the index"`
	BatchSize      *int     `json:"batch_size,omitempty" jsonschema:"Number of elements to batch before indexing"`
	SyncThreshold  *int     `json:"sync_threshold,omitempty" jsonschema:"Number of elements before the index is persisted"`
	ResizeFactor   *float64 `json:"resize_factor,omitempty" jsonschema:"Growth factor when the index is resized"`
}

func (r CreateCollectionRequest) hnsw() chroma.HNSWConfig {
	return chroma.HNSWConfig{
		Space:          r.Space,
		EfConstruction: r.EfConstruction,
		EfSearch:       r.EfSearch,
		MaxNeighbors:   r.MaxNeighbors,
		NumThreads:     r.NumThreads,
		BatchSize:      r.BatchSize,
		SyncThreshold:  r.SyncThreshold,
		ResizeFactor:   r.ResizeFactor,
	}
}

// PeekCollectionRequest returns the first documents of a collection.
type PeekCollectionRequest struct {
	CollectionName string `json:"collection_name" jsonschema:"Name of the collection to peek"`
	Limit          int    `json:"limit" jsonschema:"Number of documents to return"`
}

// GetCollectionInfoRequest returns a collection's count and a sample of its documents.
type GetCollectionInfoRequest struct {
	CollectionName string `json:"collection_name" jsonschema:"Name of the collection"`
}

// GetCollectionCountRequest counts the documents in a collection.
type GetCollectionCountRequest struct {
	CollectionName string `json:"collection_name" jsonschema:"Name of the collection"`
}

// ModifyCollectionRequest renames a collection or replaces its metadata or search-time
// index parameters.
type ModifyCollectionRequest struct {
	CollectionName string         `json:"collection_name" jsonschema:"Name of the collection to modify"`
	NewName        *string        `json:"new_name,omitempty" jsonschema:"New name for the collection"`
	NewMetadata    map[string]any `json:"new_metadata,omitempty" jsonschema:"New metadata for the collection"`

	EfSearch      *int     `json:"ef_search,omitempty" jsonschema:"Size of the candidate list while searching"`
	NumThreads    *int     `json:"num_threads,omitempty" jsonschema:"Number of threads used by the index"`
	BatchSize     *int     `json:"batch_size,omitempty" jsonschema:"Number of elements to batch before indexing"`
	SyncThreshold *int     `json:"sync_threshold,omitempty" jsonschema:"Number of elements before the index is persisted"`
	ResizeFactor  *float64 `json:"resize_factor,omitempty" jsonschema:"Growth factor when the index is resized"`
}

func (r ModifyCollectionRequest) hnsw() chroma.HNSWConfig {
	return chroma.HNSWConfig{
		EfSearch:      r.EfSearch,
		NumThreads:    r.NumThreads,
		BatchSize:     r.BatchSize,
		SyncThreshold: r.SyncThreshold,
		ResizeFactor:  r.ResizeFactor,
	}
}

// DeleteCollectionRequest deletes a collection and its documents.
type DeleteCollectionRequest struct {
	CollectionName string `json:"collection_name" jsonschema:"Name of the collection to delete"`
}

// AddDocumentsRequest adds documents. Missing ids are generated as "0".."n-1".
type AddDocumentsRequest struct {
	CollectionName string           `json:"collection_name" jsonschema:"Name of the collection"`
	Documents      []string         `json:"documents" jsonschema:"List of documents to add"`
	Metadatas      []map[string]any `json:"metadatas,omitempty" jsonschema:"List of metadata objects for documents"`
	IDs            []string         `json:"ids,omitempty" jsonschema:"List of IDs for documents; defaults to 0..n-1"`
}

// QueryDocumentsRequest runs a nearest-neighbour search per query text.
type QueryDocumentsRequest struct {
	CollectionName string         `json:"collection_name" jsonschema:"Name of the collection"`
	QueryTexts     []string       `json:"query_texts" jsonschema:"List of query texts"`
	NResults       *int           `json:"n_results,omitempty" jsonschema:"Number of results to return per query (default 5)"`
	WhereFilter    map[string]any `json:"where_filter,omitempty" jsonschema:"Filter by metadata"`
	WhereDocument  map[string]any `json:"where_document,omitempty" jsonschema:"Filter by document content"`
	Include        []string       `json:"include,omitempty" jsonschema:"Fields to include: documents, metadatas, distances, embeddings"`
}

// GetDocumentsRequest fetches documents by id and/or filter.
type GetDocumentsRequest struct {
	CollectionName string         `json:"collection_name" jsonschema:"Name of the collection"`
	IDs            []string       `json:"ids,omitempty" jsonschema:"List of document IDs to retrieve"`
	WhereFilter    map[string]any `json:"where_filter,omitempty" jsonschema:"Filter by metadata"`
	WhereDocument  map[string]any `json:"where_document,omitempty" jsonschema:"Filter by document content"`
	Include        []string       `json:"include,omitempty" jsonschema:"Fields to include: documents, metadatas, embeddings"`
	Limit          *int           `json:"limit,omitempty" jsonschema:"Maximum number of documents to return"`
	Offset         *int           `json:"offset,omitempty" jsonschema:"Offset for pagination"`
}

// UpdateDocumentsRequest updates existing documents. Every list supplied must match ids.
type UpdateDocumentsRequest struct {
	CollectionName string           `json:"collection_name" jsonschema:"Name of the collection"`
	IDs            []string         `json:"ids" jsonschema:"List of document IDs to update"`
	Embeddings     [][]float32      `json:"embeddings,omitempty" jsonschema:"List of embedding vectors"`
	Metadatas      []map[string]any `json:"metadatas,omitempty" jsonschema:"List of metadata objects"`
	Documents      []string         `json:"documents,omitempty" jsonschema:"List of document contents"`
}

// DeleteDocumentsRequest deletes documents by id.
type DeleteDocumentsRequest struct {
	CollectionName string   `json:"collection_name" jsonschema:"Name of the collection"`
	IDs            []string `json:"ids" jsonschema:"List of document IDs to delete"`
}

// ThoughtData is one step of a multi-step reasoning record.
type ThoughtData struct {
	SessionID         string `json:"session_id" jsonschema:"Session identifier"`
	Thought           string `json:"thought" jsonschema:"Content of the current thought"`
	ThoughtNumber     int    `json:"thought_number" jsonschema:"Number of this thought in the sequence"`
	TotalThoughts     int    `json:"total_thoughts" jsonschema:"Total expected thoughts"`
	NextThoughtNeeded bool   `json:"next_thought_needed" jsonschema:"Whether another thought is needed"`

	IsRevision        *bool   `json:"is_revision,omitempty" jsonschema:"Whether this thought revises an earlier one"`
	RevisesThought    *int    `json:"revises_thought,omitempty" jsonschema:"Number of the thought being revised"`
	BranchFromThought *int    `json:"branch_from_thought,omitempty" jsonschema:"Thought number this branch starts from"`
	BranchID          *string `json:"branch_id,omitempty" jsonschema:"Identifier of the branch"`
	NeedsMoreThoughts *bool   `json:"needs_more_thoughts,omitempty" jsonschema:"Whether more thoughts than planned are needed"`
}

// ThoughtResponse echoes the processed thought. Error and Status are set only on failure.
type ThoughtResponse struct {
	SessionID         string `json:"session_id"`
	ThoughtNumber     int    `json:"thought_number"`
	TotalThoughts     int    `json:"total_thoughts"`
	NextThoughtNeeded bool   `json:"next_thought_needed"`
	Error             string `json:"error,omitempty"`
	Status            string `json:"status,omitempty"`
}

// CollectionInfo is returned by get_collection_info.
type CollectionInfo struct {
	Name            string            `json:"name"`
	Count           int               `json:"count"`
	SampleDocuments *chroma.GetResult `json:"sample_documents"`
}
