package views

import (
	"context"
	"testing"

	"github.com/athapong/cardiograph/pkg/graph"
	"github.com/athapong/cardiograph/pkg/graph/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededGenerator(t *testing.T) *Generator {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.InitSchema(ctx))

	entities := []struct {
		name string
		typ  graph.EntityType
	}{
		{"aspirin", graph.EntityTreatment},
		{"angina", graph.EntityCondition},
		{"statin", graph.EntityTreatment},
		{"syncope", graph.EntityFinding},
	}
	for _, e := range entities {
		require.NoError(t, store.MergeEntity(ctx, graph.EntityMention{
			Text: e.name,
			Type: e.typ,
		}, "src1"))
	}

	// A strong, repeatedly observed edge and a weak one-off edge.
	strong := graph.Observation{
		Subject: "aspirin", SubjectType: graph.EntityTreatment,
		Object: "angina", ObjectType: graph.EntityCondition,
		Relation: graph.RelTreats, Confidence: 0.9,
	}
	for i := 0; i < 6; i++ {
		require.NoError(t, store.MergeRelationship(ctx, strong, "src1"))
	}
	require.NoError(t, store.MergeRelationship(ctx, graph.Observation{
		Subject: "statin", SubjectType: graph.EntityTreatment,
		Object: "angina", ObjectType: graph.EntityCondition,
		Relation: graph.RelTreats, Confidence: 0.7,
	}, "src1"))

	_, err := store.RecomputeDualProcessLabels(ctx)
	require.NoError(t, err)

	return NewGenerator(store)
}

func TestSystem1ViewKeepsOnlyStrongEdges(t *testing.T) {
	gen := seededGenerator(t)

	view, err := gen.System1View(context.Background(), "angina", nil, 0)
	require.NoError(t, err)

	assert.Equal(t, "system1", view.ViewType)
	assert.Equal(t, "angina", view.CentralEntity)
	require.Len(t, view.Links, 1)
	assert.Equal(t, "aspirin", view.Links[0].Source)
	assert.Equal(t, "TREATS", view.Links[0].Type)
	assert.Equal(t, "high", view.Links[0].Strength)
	assert.Contains(t, view.Description, "1 high-confidence relationships")

	require.Len(t, view.Nodes, 2)
	for _, node := range view.Nodes {
		if node.ID == "angina" {
			assert.True(t, node.Central)
			assert.Equal(t, 20, node.Value)
		} else {
			assert.False(t, node.Central)
			assert.Equal(t, 10, node.Value)
		}
	}
}

func TestSystem2ViewIncludesWeakEdges(t *testing.T) {
	gen := seededGenerator(t)

	view, err := gen.System2View(context.Background(), "angina", nil, 0)
	require.NoError(t, err)

	assert.Equal(t, "system2", view.ViewType)
	require.Len(t, view.Links, 2)
	// Higher relevance sorts first within the incoming direction.
	assert.Equal(t, "aspirin", view.Links[0].Source)
	assert.Equal(t, "high", view.Links[0].Relevance)
	assert.Equal(t, int64(6), view.Links[0].EvidenceCount)
	assert.Equal(t, "statin", view.Links[1].Source)
	assert.Equal(t, "low", view.Links[1].Relevance)
}

func TestCompleteViewAnnotatesBothClassifications(t *testing.T) {
	gen := seededGenerator(t)

	view, err := gen.CompleteView(context.Background(), "angina", nil, 0)
	require.NoError(t, err)

	assert.Equal(t, "complete", view.ViewType)
	require.Len(t, view.Links, 2)

	for _, link := range view.Links {
		require.NotNil(t, link.System1)
		require.NotNil(t, link.System2)
		if link.Source == "aspirin" {
			assert.True(t, *link.System1)
			assert.True(t, *link.System2)
		} else {
			assert.False(t, *link.System1)
			assert.False(t, *link.System2)
		}
	}
}

func TestViewOfIsolatedEntity(t *testing.T) {
	gen := seededGenerator(t)

	// syncope exists but has no edges: one central node, no links.
	view, err := gen.System1View(context.Background(), "syncope", nil, 0)
	require.NoError(t, err)

	assert.Empty(t, view.Links)
	require.Len(t, view.Nodes, 1)
	assert.Equal(t, "syncope", view.Nodes[0].ID)
	assert.True(t, view.Nodes[0].Central)
}

func TestViewOfAbsentEntity(t *testing.T) {
	gen := seededGenerator(t)

	for _, kind := range []string{KindSystem1, KindSystem2, KindComplete} {
		view, err := gen.View(context.Background(), kind, "nonexistent", nil, 0)
		require.NoError(t, err)
		assert.Empty(t, view.Nodes)
		assert.Empty(t, view.Links)
	}
}

func TestViewUnknownKind(t *testing.T) {
	gen := seededGenerator(t)

	_, err := gen.View(context.Background(), "system3", "angina", nil, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown view kind")
}

func TestEntityInfo(t *testing.T) {
	gen := seededGenerator(t)

	info, err := gen.EntityInfo(context.Background(), "Angina", nil)
	require.NoError(t, err)
	require.True(t, info.Found)
	assert.Equal(t, "angina", info.Name)
	assert.Equal(t, "Condition", info.Type)
	assert.Equal(t, int64(1), info.Frequency)
	require.Len(t, info.Related, 2)

	missing, err := gen.EntityInfo(context.Background(), "nonexistent", nil)
	require.NoError(t, err)
	assert.False(t, missing.Found)
	assert.Contains(t, missing.Message, "not found")
}

func TestSearch(t *testing.T) {
	gen := seededGenerator(t)

	hits, err := gen.Search(context.Background(), "as", 10)
	require.NoError(t, err)

	names := make([]string, 0, len(hits))
	for _, h := range hits {
		names = append(names, h.Name)
	}
	assert.Contains(t, names, "aspirin")
}
