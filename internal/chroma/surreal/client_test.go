//go:build integration

package surreal

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/raphaelgruber/chroma-mcp/internal/chroma"
)

var testClient *Client

// TestMain starts a SurrealDB container shared by all tests in the package.
func TestMain(m *testing.M) {
	// Ryuk can fail in rootless environments.
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v2.3.7",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start SurrealDB container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("container host: %v", err)
	}
	// testcontainers may report "null" as host in some environments.
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	testClient, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, port.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil, nil)
	if err != nil {
		log.Fatalf("connect to test database: %v", err)
	}

	code := m.Run()

	_ = testClient.Close(ctx)
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func wipe(t *testing.T) {
	t.Helper()
	require.NoError(t, testClient.WipeData(context.Background()))
}

func TestCollectionLifecycle(t *testing.T) {
	wipe(t)
	ctx := context.Background()

	_, err := testClient.CreateCollection(ctx, "first", chroma.CreateOptions{Metadata: map[string]any{"k": "v"}})
	require.NoError(t, err)
	_, err = testClient.CreateCollection(ctx, "second", chroma.CreateOptions{})
	require.NoError(t, err)

	_, err = testClient.CreateCollection(ctx, "first", chroma.CreateOptions{})
	assert.ErrorIs(t, err, chroma.ErrAlreadyExists)

	names, err := testClient.ListCollections(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, names)

	one := 1
	names, err = testClient.ListCollections(ctx, &one, &one)
	require.NoError(t, err)
	assert.Equal(t, []string{"second"}, names)

	require.NoError(t, testClient.DeleteCollection(ctx, "first"))
	_, err = testClient.GetCollection(ctx, "first")
	assert.ErrorIs(t, err, chroma.ErrNotFound)
}

func TestDocumentOperations(t *testing.T) {
	wipe(t)
	ctx := context.Background()

	col, err := testClient.CreateCollection(ctx, "notes", chroma.CreateOptions{})
	require.NoError(t, err)

	require.NoError(t, col.Add(ctx, chroma.AddRequest{
		IDs:       []string{"a", "b", "c"},
		Documents: []string{"go channels and goroutines", "python asyncio event loop", "go interfaces"},
		Metadatas: []map[string]any{{"lang": "go"}, {"lang": "python"}, {"lang": "go"}},
	}))

	err = col.Add(ctx, chroma.AddRequest{IDs: []string{"a"}, Documents: []string{"dup"}})
	assert.ErrorIs(t, err, chroma.ErrInvalidArgument)

	n, err := col.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	res, err := col.Query(ctx, chroma.QueryRequest{
		QueryTexts: []string{"go goroutines"},
		NResults:   2,
		Where:      map[string]any{"lang": "go"},
		Include:    []string{chroma.IncludeDocuments, chroma.IncludeDistances},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, res.IDs[0])
	assert.LessOrEqual(t, res.Distances[0][0], res.Distances[0][1])

	require.NoError(t, col.Update(ctx, chroma.UpdateRequest{
		IDs:       []string{"b"},
		Metadatas: []map[string]any{{"lang": "rust"}},
	}))
	got, err := col.Get(ctx, chroma.GetRequest{IDs: []string{"b"}, Include: []string{chroma.IncludeMetadatas}})
	require.NoError(t, err)
	assert.Equal(t, "rust", got.Metadatas[0]["lang"])

	require.NoError(t, col.Delete(ctx, []string{"a"}))
	peek, err := col.Peek(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, peek.IDs)

	newName := "renamed"
	require.NoError(t, col.Modify(ctx, chroma.ModifyRequest{NewName: &newName}))
	_, err = testClient.GetCollection(ctx, "renamed")
	require.NoError(t, err)
}

func TestModifyReplacesMetadata(t *testing.T) {
	wipe(t)
	ctx := context.Background()

	col, err := testClient.CreateCollection(ctx, "meta", chroma.CreateOptions{
		Metadata: map[string]any{"owner": "me", "stale": "yes"},
	})
	require.NoError(t, err)
	require.NoError(t, col.Modify(ctx, chroma.ModifyRequest{NewMetadata: map[string]any{"owner": "you"}}))

	rows, err := query[collectionRow](ctx, testClient.db,
		"SELECT cid, name, metadata FROM chroma_collection WHERE name = $name",
		map[string]any{"name": "meta"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]any{"owner": "you"}, rows[0].Metadata)
}
