package tools

import (
	"context"
	"fmt"
	"strconv"

	"github.com/raphaelgruber/chroma-mcp/internal/chroma"
)

const defaultNResults = 5

var (
	defaultQueryInclude = []string{chroma.IncludeDocuments, chroma.IncludeMetadatas, chroma.IncludeDistances}
	defaultGetInclude   = []string{chroma.IncludeDocuments, chroma.IncludeMetadatas}
)

func lengthMismatch(field, against string) *Error {
	return validationError(fmt.Sprintf("Length of '%s' list must match length of '%s' list.", field, against))
}

func addDocuments(ctx context.Context, deps *Dependencies, req AddDocumentsRequest) (string, error) {
	if len(req.Documents) == 0 {
		return "", validationError("The 'documents' list cannot be empty.")
	}
	ids := req.IDs
	if ids == nil {
		ids = make([]string, len(req.Documents))
		for i := range ids {
			ids[i] = strconv.Itoa(i)
		}
	}
	if len(ids) != len(req.Documents) {
		return "", lengthMismatch("ids", "documents")
	}
	if req.Metadatas != nil && len(req.Metadatas) != len(req.Documents) {
		return "", lengthMismatch("metadatas", "documents")
	}

	col, err := deps.Backend.GetCollection(ctx, req.CollectionName)
	if err != nil {
		return "", err
	}
	if err := col.Add(ctx, chroma.AddRequest{Documents: req.Documents, Metadatas: req.Metadatas, IDs: ids}); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully added %d documents to collection %s", len(req.Documents), req.CollectionName), nil
}

func queryDocuments(ctx context.Context, deps *Dependencies, req QueryDocumentsRequest) (*chroma.QueryResult, error) {
	if len(req.QueryTexts) == 0 {
		return nil, validationError("The 'query_texts' list cannot be empty.")
	}
	n := defaultNResults
	if req.NResults != nil {
		n = *req.NResults
	}
	include := req.Include
	if include == nil {
		include = defaultQueryInclude
	}

	col, err := deps.Backend.GetCollection(ctx, req.CollectionName)
	if err != nil {
		return nil, err
	}
	return col.Query(ctx, chroma.QueryRequest{
		QueryTexts:    req.QueryTexts,
		NResults:      n,
		Where:         req.WhereFilter,
		WhereDocument: req.WhereDocument,
		Include:       include,
	})
}

func getDocuments(ctx context.Context, deps *Dependencies, req GetDocumentsRequest) (*chroma.GetResult, error) {
	include := req.Include
	if include == nil {
		include = defaultGetInclude
	}

	col, err := deps.Backend.GetCollection(ctx, req.CollectionName)
	if err != nil {
		return nil, err
	}
	return col.Get(ctx, chroma.GetRequest{
		IDs:           req.IDs,
		Where:         req.WhereFilter,
		WhereDocument: req.WhereDocument,
		Include:       include,
		Limit:         req.Limit,
		Offset:        req.Offset,
	})
}

func updateDocuments(ctx context.Context, deps *Dependencies, req UpdateDocumentsRequest) (string, error) {
	if len(req.IDs) == 0 {
		return "", validationError("The 'ids' list cannot be empty.")
	}
	if req.Embeddings == nil && req.Metadatas == nil && req.Documents == nil {
		return "", validationError("At least one of 'embeddings', 'metadatas', or 'documents' must be provided for update.")
	}
	if req.Embeddings != nil && len(req.Embeddings) != len(req.IDs) {
		return "", lengthMismatch("embeddings", "ids")
	}
	if req.Metadatas != nil && len(req.Metadatas) != len(req.IDs) {
		return "", lengthMismatch("metadatas", "ids")
	}
	if req.Documents != nil && len(req.Documents) != len(req.IDs) {
		return "", lengthMismatch("documents", "ids")
	}

	col, err := deps.Backend.GetCollection(ctx, req.CollectionName)
	if err != nil {
		return "", err
	}
	if err := col.Update(ctx, chroma.UpdateRequest{
		IDs:        req.IDs,
		Embeddings: req.Embeddings,
		Metadatas:  req.Metadatas,
		Documents:  req.Documents,
	}); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully updated %d documents in collection '%s'", len(req.IDs), req.CollectionName), nil
}

func deleteDocuments(ctx context.Context, deps *Dependencies, req DeleteDocumentsRequest) (string, error) {
	if len(req.IDs) == 0 {
		return "", validationError("The 'ids' list cannot be empty.")
	}

	col, err := deps.Backend.GetCollection(ctx, req.CollectionName)
	if err != nil {
		return "", err
	}
	if err := col.Delete(ctx, req.IDs); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully deleted %d documents from collection '%s'", len(req.IDs), req.CollectionName), nil
}
