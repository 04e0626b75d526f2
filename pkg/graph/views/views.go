// Package views renders dual-process projections of the knowledge graph.
//
// The same neighborhood can be read two ways: a System 1 view keeps only the
// strong, frequently reinforced associations a reader should recall
// instantly, while a System 2 view ranks every edge by the breadth of
// evidence behind it. The complete view overlays both classifications.
package views

import (
	"context"
	"fmt"

	"github.com/athapong/cardiograph/pkg/graph"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// KindSystem1 selects the intuitive view.
	KindSystem1 = "system1"
	// KindSystem2 selects the analytical view.
	KindSystem2 = "system2"
	// KindComplete selects the combined view.
	KindComplete = "complete"

	// DefaultLimit caps each direction of a system1/system2 neighborhood.
	DefaultLimit = 50
	// DefaultCompleteLimit caps each direction of a complete neighborhood.
	DefaultCompleteLimit = 100

	relatedEntityLimit = 10
)

// Node is one entity in a rendered view. The focal node carries
// central=true and a larger display value.
type Node struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Type    string `json:"type"`
	Group   string `json:"group"`
	Central bool   `json:"central"`
	Value   int    `json:"value"`
}

// Link is one rendered relationship. The per-view annotations are optional:
// system1 views carry strength and confidence, system2 views carry relevance
// and evidence count, complete views carry both classifications plus the
// derived membership booleans.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
	Type   string `json:"type"`
	Value  int64  `json:"value"`

	Strength      string  `json:"strength,omitempty"`
	Relevance     string  `json:"relevance,omitempty"`
	EvidenceCount int64   `json:"evidence_count,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`

	System1          *bool  `json:"system1,omitempty"`
	System2          *bool  `json:"system2,omitempty"`
	System1Strength  string `json:"system1_strength,omitempty"`
	System2Relevance string `json:"system2_relevance,omitempty"`
}

// GraphView is a renderable projection centered on one entity.
type GraphView struct {
	ViewType      string `json:"viewType"`
	CentralEntity string `json:"centralEntity"`
	EntityType    string `json:"entityType,omitempty"`
	Nodes         []Node `json:"nodes"`
	Links         []Link `json:"links"`
	Description   string `json:"description"`
}

// EntityInfo is the detail record for one entity, including per-source
// mention counts and its most frequent direct connections.
type EntityInfo struct {
	Found     bool                  `json:"found"`
	Message   string                `json:"message,omitempty"`
	Name      string                `json:"name,omitempty"`
	Type      string                `json:"type,omitempty"`
	Frequency int64                 `json:"frequency,omitempty"`
	Sources   []graph.SourceMention `json:"sources,omitempty"`
	Related   []graph.RelatedEntity `json:"related_entities,omitempty"`
}

// Generator reads neighborhoods from a graph store and shapes them into
// view payloads.
type Generator struct {
	store  graph.GraphStore
	logger *logrus.Logger
}

// NewGenerator creates a view generator over the given store.
func NewGenerator(store graph.GraphStore) *Generator {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	return &Generator{store: store, logger: logger}
}

// View dispatches on the view kind. An unknown kind is a caller error.
func (g *Generator) View(ctx context.Context, kind, entity string, entityType *graph.EntityType, limit int) (*GraphView, error) {
	switch kind {
	case KindSystem1:
		return g.System1View(ctx, entity, entityType, limit)
	case KindSystem2:
		return g.System2View(ctx, entity, entityType, limit)
	case KindComplete:
		return g.CompleteView(ctx, entity, entityType, limit)
	default:
		return nil, errors.Errorf("unknown view kind %q: expected system1, system2 or complete", kind)
	}
}

// System1View renders the intuitive neighborhood: only edges with high or
// medium system1 strength, strongest and most frequent first.
func (g *Generator) System1View(ctx context.Context, entity string, entityType *graph.EntityType, limit int) (*GraphView, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	edges, err := g.store.NeighborEdges(ctx, graph.NeighborQuery{
		Entity: graph.NormalizeName(entity),
		Type:   entityType,
		Filter: graph.FilterSystem1,
		Order:  graph.OrderCountConfidence,
		Limit:  limit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "system1 view of %q failed", entity)
	}

	view := g.assemble(ctx, KindSystem1, entity, entityType, edges, func(e graph.EdgeRow) Link {
		return Link{
			Source:     e.SourceName,
			Target:     e.TargetName,
			Label:      e.Relation,
			Type:       e.Relation,
			Value:      orOne(e.Count),
			Strength:   string(e.System1Strength),
			Confidence: e.Confidence,
		}
	})
	view.Description = fmt.Sprintf("System 1 (Intuitive) view centered on %s showing %d high-confidence relationships.", entity, len(view.Links))
	return view, nil
}

// System2View renders the analytical neighborhood: every inferred edge,
// ranked by relevance and then by breadth of evidence.
func (g *Generator) System2View(ctx context.Context, entity string, entityType *graph.EntityType, limit int) (*GraphView, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	edges, err := g.store.NeighborEdges(ctx, graph.NeighborQuery{
		Entity: graph.NormalizeName(entity),
		Type:   entityType,
		Filter: graph.FilterAll,
		Order:  graph.OrderRelevanceEvidence,
		Limit:  limit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "system2 view of %q failed", entity)
	}

	view := g.assemble(ctx, KindSystem2, entity, entityType, edges, func(e graph.EdgeRow) Link {
		return Link{
			Source:        e.SourceName,
			Target:        e.TargetName,
			Label:         e.Relation,
			Type:          e.Relation,
			Value:         orOne(e.Count),
			Relevance:     string(e.System2Relevance),
			EvidenceCount: orOne(e.EvidenceCount),
		}
	})
	view.Description = fmt.Sprintf("System 2 (Analytical) view centered on %s showing %d relationships.", entity, len(view.Links))
	return view, nil
}

// CompleteView renders every inferred edge by raw count, annotating each
// link with membership in both classifications.
func (g *Generator) CompleteView(ctx context.Context, entity string, entityType *graph.EntityType, limit int) (*GraphView, error) {
	if limit <= 0 {
		limit = DefaultCompleteLimit
	}

	edges, err := g.store.NeighborEdges(ctx, graph.NeighborQuery{
		Entity: graph.NormalizeName(entity),
		Type:   entityType,
		Filter: graph.FilterAll,
		Order:  graph.OrderCount,
		Limit:  limit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "complete view of %q failed", entity)
	}

	view := g.assemble(ctx, KindComplete, entity, entityType, edges, func(e graph.EdgeRow) Link {
		system1 := e.System1Strength == graph.LabelHigh || e.System1Strength == graph.LabelMedium
		system2 := e.System2Relevance == graph.LabelHigh || e.System2Relevance == graph.LabelMedium
		return Link{
			Source:           e.SourceName,
			Target:           e.TargetName,
			Label:            e.Relation,
			Type:             e.Relation,
			Value:            orOne(e.Count),
			System1:          &system1,
			System2:          &system2,
			System1Strength:  string(e.System1Strength),
			System2Relevance: string(e.System2Relevance),
			Confidence:       e.Confidence,
		}
	})
	view.Description = fmt.Sprintf("Complete view centered on %s showing %d relationships.", entity, len(view.Links))
	return view, nil
}

// assemble collects the distinct endpoints of the edge rows into nodes and
// maps each row through mkLink. A focal entity with no qualifying edges
// still renders as a single node when it exists in the graph.
func (g *Generator) assemble(ctx context.Context, kind, entity string, entityType *graph.EntityType, edges []graph.EdgeRow, mkLink func(graph.EdgeRow) Link) *GraphView {
	focal := graph.NormalizeName(entity)

	seen := make(map[string]*Node)
	nodes := make([]Node, 0, len(edges)+1)
	links := make([]Link, 0, len(edges))

	addNode := func(name, nodeType string) {
		if _, ok := seen[name]; ok {
			return
		}
		node := Node{ID: name, Label: name, Type: nodeType, Group: nodeType, Value: 10}
		if name == focal {
			node.Central = true
			node.Value = 20
		}
		nodes = append(nodes, node)
		seen[name] = &nodes[len(nodes)-1]
	}

	for _, e := range edges {
		addNode(e.SourceName, e.SourceType)
		addNode(e.TargetName, e.TargetType)
		links = append(links, mkLink(e))
	}

	if len(nodes) == 0 {
		record, found, err := g.store.GetEntity(ctx, focal, entityType)
		if err != nil {
			g.logger.WithError(err).WithField("entity", entity).Warn("Focal entity lookup failed")
		} else if found {
			nodes = append(nodes, Node{
				ID:      record.Name,
				Label:   record.Name,
				Type:    record.Type.Label(),
				Group:   record.Type.Label(),
				Central: true,
				Value:   20,
			})
		}
	}

	view := &GraphView{
		ViewType:      kind,
		CentralEntity: entity,
		Nodes:         nodes,
		Links:         links,
	}
	if entityType != nil {
		view.EntityType = entityType.Label()
	}
	return view
}

// EntityInfo returns the detail record for an entity, or a found=false
// result when the graph has no such node.
func (g *Generator) EntityInfo(ctx context.Context, name string, entityType *graph.EntityType) (*EntityInfo, error) {
	record, found, err := g.store.GetEntity(ctx, graph.NormalizeName(name), entityType)
	if err != nil {
		return nil, errors.Wrapf(err, "entity lookup for %q failed", name)
	}
	if !found {
		return &EntityInfo{
			Found:   false,
			Message: fmt.Sprintf("Entity %s not found", name),
		}, nil
	}

	related, err := g.store.RelatedEntities(ctx, graph.NormalizeName(name), entityType, relatedEntityLimit)
	if err != nil {
		return nil, errors.Wrapf(err, "related entity lookup for %q failed", name)
	}

	return &EntityInfo{
		Found:     true,
		Name:      record.Name,
		Type:      record.Type.Label(),
		Frequency: record.Frequency,
		Sources:   record.Sources,
		Related:   related,
	}, nil
}

// Search performs a case-insensitive substring search over entity names.
func (g *Generator) Search(ctx context.Context, term string, limit int) ([]graph.EntityHit, error) {
	if limit <= 0 {
		limit = relatedEntityLimit
	}
	hits, err := g.store.SearchEntities(ctx, term, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "entity search for %q failed", term)
	}
	return hits, nil
}

func orOne(n int64) int64 {
	if n < 1 {
		return 1
	}
	return n
}
