package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/athapong/cardiograph/pkg/graph"
	"github.com/sirupsen/logrus"
)

type entityKey struct {
	entityType graph.EntityType
	name       string
}

type memEntity struct {
	name       string
	entityType graph.EntityType
	frequency  int64
	mentions   map[string]int64 // source id -> mention count
	category   string           // linked category, "" when none matched
}

type edgeKey struct {
	subject  entityKey
	object   entityKey
	relation graph.RelationType
}

type memEdge struct {
	count            int64
	confidence       float64
	evidenceCount    int64
	system1Strength  graph.DualProcessLabel
	system2Relevance graph.DualProcessLabel
	evidence         map[string]string // source id -> context, set on create only
}

type memSource struct {
	id         string
	title      string
	sourceType string
	url        string
}

// MemoryStore implements GraphStore in process memory with the same merge
// semantics as the Neo4j store. It backs the tests and `-store memory` runs.
type MemoryStore struct {
	entities   map[entityKey]*memEntity
	edges      map[edgeKey]*memEdge
	sources    map[string]*memSource
	categories map[string]bool
	mutex      sync.RWMutex
	logger     *logrus.Logger
}

// NewMemoryStore creates an empty in-memory graph store.
func NewMemoryStore() *MemoryStore {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &MemoryStore{
		entities:   make(map[entityKey]*memEntity),
		edges:      make(map[edgeKey]*memEdge),
		sources:    make(map[string]*memSource),
		categories: make(map[string]bool),
		logger:     logger,
	}
}

// Connect implements GraphStore; the memory store has no connection state.
func (s *MemoryStore) Connect(ctx context.Context) error { return nil }

// Close implements GraphStore.
func (s *MemoryStore) Close() error { return nil }

// InitSchema creates the taxonomy category set. Idempotent.
func (s *MemoryStore) InitSchema(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	// Bootstrap category names as created by the schema scaffold; note
	// "Cardiac Anatomy" carries no trailing "s".
	for _, name := range []string{
		"Cardiac Conditions",
		"Cardiac Anatomy",
		"Cardiac Procedures",
		"Cardiac Diagnostics",
		"Cardiac Treatments",
		"Cardiac Mechanisms",
		"Cardiac Findings",
	} {
		s.categories[name] = true
	}
	return nil
}

// Reset wipes the whole graph including the taxonomy.
func (s *MemoryStore) Reset(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.entities = make(map[entityKey]*memEntity)
	s.edges = make(map[edgeKey]*memEdge)
	s.sources = make(map[string]*memSource)
	s.categories = make(map[string]bool)
	return nil
}

// MergeSource upserts the source node for a document; static properties are
// only written on creation.
func (s *MemoryStore) MergeSource(ctx context.Context, doc *graph.Document) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	id := doc.SourceID()
	if _, exists := s.sources[id]; !exists {
		title := doc.Title
		if title == "" {
			title = "Untitled"
		}
		s.sources[id] = &memSource{
			id:         id,
			title:      title,
			sourceType: doc.SourceType,
			url:        doc.URL,
		}
	}
	return id, nil
}

// MergeEntity upserts an entity node, bumping its frequency and the
// per-source mention count. The category edge is only created when the
// derived category node exists, mirroring the cypher MATCH.
func (s *MemoryStore) MergeEntity(ctx context.Context, mention graph.EntityMention, sourceID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := entityKey{mention.Type, graph.NormalizeName(mention.Text)}
	e, exists := s.entities[key]
	if !exists {
		e = &memEntity{
			name:       key.name,
			entityType: mention.Type,
			frequency:  1,
			mentions:   make(map[string]int64),
		}
		s.entities[key] = e
	} else {
		e.frequency++
	}
	e.mentions[sourceID]++

	category := mention.Type.CategoryName()
	if s.categories[category] {
		e.category = category
	}
	return nil
}

// MergeRelationship upserts the edge for an observation. On match the
// confidence becomes the running average weighted by the prior evidence
// count. count and evidence_count increment independently.
func (s *MemoryStore) MergeRelationship(ctx context.Context, obs graph.Observation, sourceID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	subjectKey := entityKey{obs.SubjectType, graph.NormalizeName(obs.Subject)}
	objectKey := entityKey{obs.ObjectType, graph.NormalizeName(obs.Object)}

	if _, ok := s.entities[subjectKey]; !ok {
		return graph.ErrMissingEntity
	}
	if _, ok := s.entities[objectKey]; !ok {
		return graph.ErrMissingEntity
	}

	key := edgeKey{subjectKey, objectKey, obs.Relation}
	e, exists := s.edges[key]
	if !exists {
		e = &memEdge{
			count:         1,
			confidence:    obs.Confidence,
			evidenceCount: 1,
			evidence:      make(map[string]string),
		}
		s.edges[key] = e
	} else {
		e.count++
		e.confidence = (e.confidence*float64(e.evidenceCount) + obs.Confidence) / float64(e.evidenceCount+1)
		e.evidenceCount++
	}

	if _, ok := e.evidence[sourceID]; !ok {
		e.evidence[sourceID] = obs.Context
	}
	return nil
}

// RecomputeDualProcessLabels reclassifies every inferred edge from its
// aggregate statistics. Idempotent.
func (s *MemoryStore) RecomputeDualProcessLabels(ctx context.Context) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var updated int64
	for _, e := range s.edges {
		e.system1Strength = graph.System1Strength(e.count, e.confidence)
		e.system2Relevance = graph.System2Relevance(e.evidenceCount)
		updated++
	}
	return updated, nil
}

// NeighborEdges returns the depth-1 edges around a focal entity, each
// direction filtered, ordered and capped independently.
func (s *MemoryStore) NeighborEdges(ctx context.Context, q graph.NeighborQuery) ([]graph.EdgeRow, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	name := graph.NormalizeName(q.Entity)

	var outgoing, incoming []graph.EdgeRow
	for key, e := range s.edges {
		if key.subject.name == name && s.typeMatches(key.subject, q.Type) {
			outgoing = append(outgoing, s.edgeRow(key, e))
		}
		if key.object.name == name && s.typeMatches(key.object, q.Type) {
			incoming = append(incoming, s.edgeRow(key, e))
		}
	}

	outgoing = filterAndRank(outgoing, q)
	incoming = filterAndRank(incoming, q)
	return append(outgoing, incoming...), nil
}

func (s *MemoryStore) typeMatches(key entityKey, want *graph.EntityType) bool {
	return want == nil || key.entityType == *want
}

func (s *MemoryStore) edgeRow(key edgeKey, e *memEdge) graph.EdgeRow {
	return graph.EdgeRow{
		SourceName:       key.subject.name,
		SourceType:       key.subject.entityType.Label(),
		TargetName:       key.object.name,
		TargetType:       key.object.entityType.Label(),
		Relation:         key.relation.Type(),
		Count:            e.count,
		Confidence:       e.confidence,
		EvidenceCount:    e.evidenceCount,
		System1Strength:  e.system1Strength,
		System2Relevance: e.system2Relevance,
	}
}

func filterAndRank(rows []graph.EdgeRow, q graph.NeighborQuery) []graph.EdgeRow {
	if q.Filter == graph.FilterSystem1 {
		kept := rows[:0]
		for _, r := range rows {
			if r.System1Strength == graph.LabelHigh || r.System1Strength == graph.LabelMedium {
				kept = append(kept, r)
			}
		}
		rows = kept
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch q.Order {
		case graph.OrderRelevanceEvidence:
			if a.System2Relevance != b.System2Relevance {
				return labelRank(a.System2Relevance) > labelRank(b.System2Relevance)
			}
			return a.EvidenceCount > b.EvidenceCount
		case graph.OrderCount:
			return a.Count > b.Count
		default:
			if a.Count != b.Count {
				return a.Count > b.Count
			}
			return a.Confidence > b.Confidence
		}
	})

	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return rows
}

func labelRank(l graph.DualProcessLabel) int {
	switch l {
	case graph.LabelHigh:
		return 2
	case graph.LabelMedium:
		return 1
	default:
		return 0
	}
}

// GetEntity returns the aggregate record for a node, found=false when it is
// absent.
func (s *MemoryStore) GetEntity(ctx context.Context, name string, entityType *graph.EntityType) (*graph.EntityRecord, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	e := s.lookup(name, entityType)
	if e == nil {
		return nil, false, nil
	}

	sources := make([]graph.SourceMention, 0, len(e.mentions))
	for sourceID, count := range e.mentions {
		sm := graph.SourceMention{SourceID: sourceID, MentionCount: count}
		if src, ok := s.sources[sourceID]; ok {
			sm.SourceTitle = src.title
			sm.SourceType = src.sourceType
		}
		sources = append(sources, sm)
	}
	sort.Slice(sources, func(i, j int) bool {
		return sources[i].SourceID < sources[j].SourceID
	})

	return &graph.EntityRecord{
		Name:      e.name,
		Type:      e.entityType,
		Frequency: e.frequency,
		Sources:   sources,
	}, true, nil
}

func (s *MemoryStore) lookup(name string, entityType *graph.EntityType) *memEntity {
	normalized := graph.NormalizeName(name)
	if entityType != nil {
		return s.entities[entityKey{*entityType, normalized}]
	}
	for key, e := range s.entities {
		if key.name == normalized {
			return e
		}
	}
	return nil
}

// RelatedEntities returns up to limit directly connected entities over both
// directions, ordered by edge count.
func (s *MemoryStore) RelatedEntities(ctx context.Context, name string, entityType *graph.EntityType, limit int) ([]graph.RelatedEntity, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	normalized := graph.NormalizeName(name)

	var related []graph.RelatedEntity
	for key, e := range s.edges {
		if key.subject.name == normalized && s.typeMatches(key.subject, entityType) {
			related = append(related, graph.RelatedEntity{
				Name:     key.object.name,
				Type:     key.object.entityType.Label(),
				Relation: key.relation.Type(),
				Count:    e.count,
			})
		}
		if key.object.name == normalized && s.typeMatches(key.object, entityType) {
			related = append(related, graph.RelatedEntity{
				Name:     key.subject.name,
				Type:     key.subject.entityType.Label(),
				Relation: key.relation.Type(),
				Count:    e.count,
			})
		}
	}

	sort.SliceStable(related, func(i, j int) bool {
		return related[i].Count > related[j].Count
	})
	if limit > 0 && len(related) > limit {
		related = related[:limit]
	}
	return related, nil
}

// SearchEntities performs a case-insensitive substring search over entity
// names. Taxonomy and source nodes live in separate maps and are never
// candidates.
func (s *MemoryStore) SearchEntities(ctx context.Context, term string, limit int) ([]graph.EntityHit, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	needle := strings.ToLower(term)

	var hits []graph.EntityHit
	for _, e := range s.entities {
		if strings.Contains(strings.ToLower(e.name), needle) {
			hits = append(hits, graph.EntityHit{
				Name:      e.name,
				Type:      e.entityType.Label(),
				Frequency: e.frequency,
			})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Frequency != hits[j].Frequency {
			return hits[i].Frequency > hits[j].Frequency
		}
		return hits[i].Name < hits[j].Name
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}
