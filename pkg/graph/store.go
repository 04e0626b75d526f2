package graph

import (
	"context"
	"errors"
)

// ErrMissingEntity is returned by MergeRelationship when the subject or
// object node has not been merged yet. Callers skip the single write and
// continue the batch.
var ErrMissingEntity = errors.New("subject or object entity not found")

// ViewFilter selects which edges a neighborhood query returns.
type ViewFilter int

const (
	// FilterAll returns every inferred edge touching the focal node.
	FilterAll ViewFilter = iota
	// FilterSystem1 returns only edges with high or medium system1 strength.
	FilterSystem1
)

// EdgeOrder selects the sort applied before the per-direction limit.
type EdgeOrder int

const (
	// OrderCountConfidence sorts by count desc, then confidence desc.
	OrderCountConfidence EdgeOrder = iota
	// OrderRelevanceEvidence sorts by system2 relevance desc, then
	// evidence count desc.
	OrderRelevanceEvidence
	// OrderCount sorts by count desc.
	OrderCount
)

// NeighborQuery describes a depth-1 neighborhood read around a focal entity.
// Limit caps each direction independently, matching the paired UNION queries
// the views are built from.
type NeighborQuery struct {
	Entity string
	Type   *EntityType
	Filter ViewFilter
	Order  EdgeOrder
	Limit  int
}

// EdgeRow is one inferred relationship returned by a neighborhood read.
type EdgeRow struct {
	SourceName       string
	SourceType       string
	TargetName       string
	TargetType       string
	Relation         string
	Count            int64
	Confidence       float64
	EvidenceCount    int64
	System1Strength  DualProcessLabel
	System2Relevance DualProcessLabel
}

// SourceMention reports how often an entity is mentioned in one source.
type SourceMention struct {
	SourceID     string `json:"source_id"`
	SourceTitle  string `json:"source_title"`
	SourceType   string `json:"source_type"`
	MentionCount int64  `json:"mention_count"`
}

// EntityRecord is the aggregate stored for one entity node.
type EntityRecord struct {
	Name      string          `json:"name"`
	Type      EntityType      `json:"type"`
	Frequency int64           `json:"frequency"`
	Sources   []SourceMention `json:"sources"`
}

// RelatedEntity is one directly connected entity with its edge statistics.
type RelatedEntity struct {
	Name     string `json:"entity_name"`
	Type     string `json:"entity_type"`
	Relation string `json:"relationship"`
	Count    int64  `json:"frequency"`
}

// EntityHit is one search result.
type EntityHit struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Frequency int64  `json:"frequency"`
}

// GraphStore is the persistent property-graph store consumed by the
// aggregator and the view generator. Implementations carry an explicit
// lifecycle and are passed down to each component; there is no shared
// global handle.
type GraphStore interface {
	Connect(ctx context.Context) error
	Close() error

	// InitSchema creates uniqueness constraints, indexes and the static
	// taxonomy scaffold. Idempotent.
	InitSchema(ctx context.Context) error
	// Reset wipes the whole graph. Irreversible; callers gate it behind
	// explicit confirmation.
	Reset(ctx context.Context) error

	// MergeSource upserts the source node for a document and returns its
	// id. Static properties are set on first creation only.
	MergeSource(ctx context.Context, doc *Document) (string, error)
	// MergeEntity upserts the entity node for a mention, bumps its
	// frequency, and maintains the mention and category edges.
	MergeEntity(ctx context.Context, mention EntityMention, sourceID string) error
	// MergeRelationship upserts the edge for an observation, maintaining
	// count, running-average confidence, evidence count and the evidence
	// edge. Returns ErrMissingEntity on a referential gap.
	MergeRelationship(ctx context.Context, obs Observation, sourceID string) error
	// RecomputeDualProcessLabels reclassifies every inferred edge and
	// returns the number updated. Idempotent.
	RecomputeDualProcessLabels(ctx context.Context) (int64, error)

	// NeighborEdges returns the depth-1 edges around a focal entity,
	// filtered, ordered and capped per direction.
	NeighborEdges(ctx context.Context, q NeighborQuery) ([]EdgeRow, error)
	// GetEntity returns the aggregate record for a node, with found=false
	// (and no error) when the node is absent.
	GetEntity(ctx context.Context, name string, entityType *EntityType) (*EntityRecord, bool, error)
	// RelatedEntities returns up to limit directly connected entities
	// ordered by edge count, both directions.
	RelatedEntities(ctx context.Context, name string, entityType *EntityType, limit int) ([]RelatedEntity, error)
	// SearchEntities performs a case-insensitive substring search over
	// entity names, excluding taxonomy and source nodes, frequency desc.
	SearchEntities(ctx context.Context, term string, limit int) ([]EntityHit, error)
}
