package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/raphaelgruber/chroma-mcp/internal/chroma"
)

// sampleSize is the number of documents shown by get_collection_info.
const sampleSize = 3

func listCollections(ctx context.Context, deps *Dependencies, req ListCollectionsRequest) ([]string, error) {
	return deps.Backend.ListCollections(ctx, req.Limit, req.Offset)
}

func createCollection(ctx context.Context, deps *Dependencies, req CreateCollectionRequest) (string, error) {
	fn := req.EmbeddingFunctionName
	if fn == "" {
		fn = deps.EmbeddingFunction
	}
	_, err := deps.Backend.CreateCollection(ctx, req.CollectionName, chroma.CreateOptions{
		Metadata:          req.Metadata,
		EmbeddingFunction: fn,
		HNSW:              req.hnsw(),
	})
	if err != nil {
		return "", err
	}
	return "Successfully created collection " + req.CollectionName, nil
}

func peekCollection(ctx context.Context, deps *Dependencies, req PeekCollectionRequest) (*chroma.GetResult, error) {
	col, err := deps.Backend.GetCollection(ctx, req.CollectionName)
	if err != nil {
		return nil, err
	}
	return col.Peek(ctx, req.Limit)
}

func getCollectionInfo(ctx context.Context, deps *Dependencies, req GetCollectionInfoRequest) (*CollectionInfo, error) {
	col, err := deps.Backend.GetCollection(ctx, req.CollectionName)
	if err != nil {
		return nil, err
	}
	count, err := col.Count(ctx)
	if err != nil {
		return nil, err
	}
	sample, err := col.Peek(ctx, sampleSize)
	if err != nil {
		return nil, err
	}
	return &CollectionInfo{Name: req.CollectionName, Count: count, SampleDocuments: sample}, nil
}

func getCollectionCount(ctx context.Context, deps *Dependencies, req GetCollectionCountRequest) (int, error) {
	col, err := deps.Backend.GetCollection(ctx, req.CollectionName)
	if err != nil {
		return 0, err
	}
	return col.Count(ctx)
}

func modifyCollection(ctx context.Context, deps *Dependencies, req ModifyCollectionRequest) (string, error) {
	col, err := deps.Backend.GetCollection(ctx, req.CollectionName)
	if err != nil {
		return "", err
	}
	hnsw := req.hnsw()
	if err := col.Modify(ctx, chroma.ModifyRequest{
		NewName:     req.NewName,
		NewMetadata: req.NewMetadata,
		HNSW:        hnsw,
	}); err != nil {
		return "", err
	}
	return modifySummary(req.CollectionName, req.NewName != nil, req.NewMetadata != nil, !hnsw.IsZero()), nil
}

// modifySummary describes which aspects of a collection a modify request touched.
func modifySummary(name string, renamed, metadata, hnsw bool) string {
	var aspects []string
	if renamed {
		aspects = append(aspects, "name")
	}
	if metadata {
		aspects = append(aspects, "metadata")
	}
	if hnsw {
		aspects = append(aspects, "hnsw")
	}
	if len(aspects) == 0 {
		return fmt.Sprintf("Successfully modified collection %s: no changes requested", name)
	}
	return fmt.Sprintf("Successfully modified collection %s: updated %s", name, strings.Join(aspects, " and "))
}

func deleteCollection(ctx context.Context, deps *Dependencies, req DeleteCollectionRequest) (string, error) {
	if err := deps.Backend.DeleteCollection(ctx, req.CollectionName); err != nil {
		return "", err
	}
	return "Successfully deleted collection " + req.CollectionName, nil
}
