package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// Descriptor advertises one tool: its name, description and input schema.
type Descriptor struct {
	Name        string             `json:"name" yaml:"name"`
	Description string             `json:"description" yaml:"description"`
	InputSchema *jsonschema.Schema `json:"inputSchema" yaml:"-"`
}

// RequiredFields returns the schema's required property names.
func (d Descriptor) RequiredFields() []string {
	if d.InputSchema == nil {
		return nil
	}
	return d.InputSchema.Required
}

type entry struct {
	desc     Descriptor
	resolved *jsonschema.Resolved
	invoke   func(ctx context.Context, deps *Dependencies, raw json.RawMessage) (any, error)
}

// newTool binds a tool name to its request type and handler. The input schema is generated
// from Req, so the advertised schema and the decoder share one source.
func newTool[Req, Res any](name, description string, fn func(context.Context, *Dependencies, Req) (Res, error)) entry {
	schema, err := jsonschema.For[Req](nil)
	if err != nil {
		panic(fmt.Sprintf("tools: schema for %s: %v", name, err))
	}
	// Unknown keys are ignored rather than rejected.
	schema.AdditionalProperties = nil
	resolved, err := schema.Resolve(nil)
	if err != nil {
		panic(fmt.Sprintf("tools: resolve schema for %s: %v", name, err))
	}

	return entry{
		desc:     Descriptor{Name: name, Description: description, InputSchema: schema},
		resolved: resolved,
		invoke: func(ctx context.Context, deps *Dependencies, raw json.RawMessage) (any, error) {
			var req Req
			if err := json.Unmarshal(raw, &req); err != nil {
				return nil, invalidParams(name, err)
			}
			res, err := fn(ctx, deps, req)
			if err != nil {
				return nil, err
			}
			return res, nil
		},
	}
}

// catalog is the single ordered table every registry and dispatcher is derived from.
var catalog = sync.OnceValue(func() []entry {
	return []entry{
		newTool("list_collections", "Lists all collections in the ChromaDB instance", listCollections),
		newTool("create_collection", "Creates a new collection in ChromaDB", createCollection),
		newTool("peek_collection", "Shows a sample of documents in a collection", peekCollection),
		newTool("get_collection_info", "Gets metadata about a collection", getCollectionInfo),
		newTool("get_collection_count", "Counts the number of documents in a collection", getCollectionCount),
		newTool("modify_collection", "Modifies collection properties", modifyCollection),
		newTool("delete_collection", "Deletes a collection", deleteCollection),
		newTool("add_documents", "Adds documents to a collection", addDocuments),
		newTool("query_documents", "Searches for similar documents in a collection", queryDocuments),
		newTool("get_documents", "Retrieves documents from a collection", getDocuments),
		newTool("update_documents", "Updates documents in a collection", updateDocuments),
		newTool("delete_documents", "Deletes documents from a collection", deleteDocuments),
		newTool("process_thought", "Processes a thought in an ongoing session", processThought),
	}
})

// Registry is the immutable, ordered tool catalog.
// All methods are safe for concurrent use.
type Registry struct {
	entries []entry
	index   map[string]int
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	entries := catalog()
	index := make(map[string]int, len(entries))
	for i, e := range entries {
		if _, dup := index[e.desc.Name]; dup {
			panic("tools: duplicate tool name " + e.desc.Name)
		}
		index[e.desc.Name] = i
	}
	return &Registry{entries: entries, index: index}
})

// NewRegistry returns the tool catalog. It is built once per process.
func NewRegistry() *Registry {
	return defaultRegistry()
}

// List returns the descriptors in catalog order. The slice and schemas are copies.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.desc
		out[i].InputSchema = cloneSchema(e.desc.InputSchema)
	}
	return out
}

// Names returns the tool names in catalog order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.desc.Name
	}
	return names
}

// Lookup returns the descriptor for name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	e, ok := r.entry(name)
	if !ok {
		return Descriptor{}, false
	}
	d := e.desc
	d.InputSchema = cloneSchema(d.InputSchema)
	return d, true
}

func (r *Registry) entry(name string) (*entry, bool) {
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return &r.entries[i], true
}

func cloneSchema(s *jsonschema.Schema) *jsonschema.Schema {
	data, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("tools: marshal schema: %v", err))
	}
	var out jsonschema.Schema
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("tools: unmarshal schema: %v", err))
	}
	return &out
}
