package chroma

import "fmt"

// Include values.
const (
	IncludeDocuments  = "documents"
	IncludeMetadatas  = "metadatas"
	IncludeDistances  = "distances"
	IncludeEmbeddings = "embeddings"
)

// Distance spaces.
const (
	SpaceL2     = "l2"
	SpaceCosine = "cosine"
	SpaceIP     = "ip"
)

// DefaultEmbeddingFunction is used when a collection does not name one.
const DefaultEmbeddingFunction = "default"

// QueryResult holds one result list per query text.
// Fields that were not requested through include are nil.
type QueryResult struct {
	IDs        [][]string         `json:"ids"`
	Documents  [][]string         `json:"documents"`
	Metadatas  [][]map[string]any `json:"metadatas"`
	Distances  [][]float64        `json:"distances"`
	Embeddings [][][]float32      `json:"embeddings"`
	Include    []string           `json:"included"`
}

// GetResult holds documents selected by Get or Peek.
type GetResult struct {
	IDs        []string         `json:"ids"`
	Documents  []string         `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas"`
	Embeddings [][]float32      `json:"embeddings"`
	Include    []string         `json:"included"`
}

// Includes is a parsed include list.
type Includes struct {
	Documents  bool
	Metadatas  bool
	Distances  bool
	Embeddings bool
}

// ParseInclude validates an include list. Distances are only meaningful for queries.
func ParseInclude(include []string, allowDistances bool) (Includes, error) {
	var inc Includes
	for _, v := range include {
		switch v {
		case IncludeDocuments:
			inc.Documents = true
		case IncludeMetadatas:
			inc.Metadatas = true
		case IncludeEmbeddings:
			inc.Embeddings = true
		case IncludeDistances:
			if !allowDistances {
				return Includes{}, fmt.Errorf("%w: include %q is only valid for queries", ErrInvalidArgument, v)
			}
			inc.Distances = true
		default:
			return Includes{}, fmt.Errorf("%w: unknown include %q", ErrInvalidArgument, v)
		}
	}
	return inc, nil
}

// NewQueryResult allocates result lists for n query texts according to inc.
func NewQueryResult(n int, inc Includes, include []string) *QueryResult {
	res := &QueryResult{IDs: make([][]string, n), Include: include}
	if inc.Documents {
		res.Documents = make([][]string, n)
	}
	if inc.Metadatas {
		res.Metadatas = make([][]map[string]any, n)
	}
	if inc.Distances {
		res.Distances = make([][]float64, n)
	}
	if inc.Embeddings {
		res.Embeddings = make([][][]float32, n)
	}
	return res
}

// Record is one stored document as seen by filters and result builders.
type Record struct {
	ID        string
	Document  string
	Metadata  map[string]any
	Embedding []float32
}

// AppendRecord appends r to a GetResult according to inc.
func (g *GetResult) AppendRecord(r Record, inc Includes) {
	g.IDs = append(g.IDs, r.ID)
	if inc.Documents {
		g.Documents = append(g.Documents, r.Document)
	}
	if inc.Metadatas {
		g.Metadatas = append(g.Metadatas, r.Metadata)
	}
	if inc.Embeddings {
		g.Embeddings = append(g.Embeddings, r.Embedding)
	}
}

// NewGetResult returns an empty result with the included lists non-nil.
func NewGetResult(inc Includes, include []string) *GetResult {
	res := &GetResult{IDs: []string{}, Include: include}
	if inc.Documents {
		res.Documents = []string{}
	}
	if inc.Metadatas {
		res.Metadatas = []map[string]any{}
	}
	if inc.Embeddings {
		res.Embeddings = [][]float32{}
	}
	return res
}

// ValidateAdd checks the list lengths of an add request.
func ValidateAdd(req AddRequest) error {
	if len(req.IDs) != len(req.Documents) {
		return fmt.Errorf("%w: got %d ids for %d documents", ErrInvalidArgument, len(req.IDs), len(req.Documents))
	}
	if req.Metadatas != nil && len(req.Metadatas) != len(req.Documents) {
		return fmt.Errorf("%w: got %d metadatas for %d documents", ErrInvalidArgument, len(req.Metadatas), len(req.Documents))
	}
	seen := make(map[string]struct{}, len(req.IDs))
	for _, id := range req.IDs {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidArgument, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// MergeMetadata overlays update onto base and returns a new map; nil values remove keys.
func MergeMetadata(base, update map[string]any) map[string]any {
	if update == nil {
		return base
	}
	out := make(map[string]any, len(base)+len(update))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range update {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}
