package surreal

import "github.com/raphaelgruber/chroma-mcp/internal/chroma"

// schemaSQL defines the collection and document tables.
// Metadata objects are free-form, so both tables are schemaless with indexes on the lookup keys.
const schemaSQL = `
    DEFINE TABLE IF NOT EXISTS chroma_collection SCHEMALESS;
    DEFINE INDEX IF NOT EXISTS chroma_collection_name ON chroma_collection FIELDS name UNIQUE;
    DEFINE INDEX IF NOT EXISTS chroma_collection_seq ON chroma_collection FIELDS seq;

    DEFINE TABLE IF NOT EXISTS chroma_document SCHEMALESS;
    DEFINE INDEX IF NOT EXISTS chroma_document_key ON chroma_document FIELDS collection_id, doc_id UNIQUE;
    DEFINE INDEX IF NOT EXISTS chroma_document_seq ON chroma_document FIELDS collection_id, seq;
`

// distanceExpr returns the SurrealQL expression for a distance space.
// l2 is squared to match the local backend.
func distanceExpr(space string) string {
	switch space {
	case chroma.SpaceCosine:
		return "1 - vector::similarity::cosine(embedding, $emb)"
	case chroma.SpaceIP:
		return "1 - vector::dot(embedding, $emb)"
	default:
		return "math::pow(vector::distance::euclidean(embedding, $emb), 2)"
	}
}
