package storage

import (
	"context"
	"testing"

	"github.com/athapong/cardiograph/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	require.NoError(t, store.InitSchema(context.Background()))
	return store
}

func mergeEntity(t *testing.T, store *MemoryStore, name string, entityType graph.EntityType, sourceID string) {
	t.Helper()
	err := store.MergeEntity(context.Background(), graph.EntityMention{
		Text: name,
		Type: entityType,
	}, sourceID)
	require.NoError(t, err)
}

func TestMergeEntityFrequency(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i := 0; i < 5; i++ {
		mergeEntity(t, store, "Heart Failure", graph.EntityCondition, "src1")
	}

	record, found, err := store.GetEntity(ctx, "heart failure", nil)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(5), record.Frequency)
	assert.Equal(t, "heart failure", record.Name)
	require.Len(t, record.Sources, 1)
	assert.Equal(t, int64(5), record.Sources[0].MentionCount)
}

func TestMergeEntityNormalizesName(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	mergeEntity(t, store, "ASPIRIN", graph.EntityTreatment, "src1")
	mergeEntity(t, store, "aspirin", graph.EntityTreatment, "src2")

	record, found, err := store.GetEntity(ctx, "Aspirin", nil)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(2), record.Frequency)
	assert.Len(t, record.Sources, 2)
}

func TestGetEntityNotFound(t *testing.T) {
	store := newTestStore(t)

	record, found, err := store.GetEntity(context.Background(), "nonexistent", nil)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, record)
}

func TestMergeRelationshipMissingEntity(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	mergeEntity(t, store, "aspirin", graph.EntityTreatment, "src1")

	err := store.MergeRelationship(ctx, graph.Observation{
		Subject:     "aspirin",
		SubjectType: graph.EntityTreatment,
		Object:      "angina",
		ObjectType:  graph.EntityCondition,
		Relation:    graph.RelTreats,
		Confidence:  0.7,
	}, "src1")
	assert.ErrorIs(t, err, graph.ErrMissingEntity)
}

func TestMergeRelationshipConfidenceAverage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	mergeEntity(t, store, "aspirin", graph.EntityTreatment, "src1")
	mergeEntity(t, store, "angina", graph.EntityCondition, "src1")

	obs := graph.Observation{
		Subject:     "aspirin",
		SubjectType: graph.EntityTreatment,
		Object:      "angina",
		ObjectType:  graph.EntityCondition,
		Relation:    graph.RelTreats,
		Confidence:  0.7,
	}

	// Two 0.7 observations keep the average at 0.7; a third at 0.4 moves
	// it to (0.7*2 + 0.4) / 3 = 0.6.
	require.NoError(t, store.MergeRelationship(ctx, obs, "src1"))
	require.NoError(t, store.MergeRelationship(ctx, obs, "src2"))

	rows, err := store.NeighborEdges(ctx, graph.NeighborQuery{Entity: "aspirin"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 0.7, rows[0].Confidence, 1e-9)
	assert.Equal(t, int64(2), rows[0].Count)
	assert.Equal(t, int64(2), rows[0].EvidenceCount)

	obs.Confidence = 0.4
	require.NoError(t, store.MergeRelationship(ctx, obs, "src3"))

	rows, err = store.NeighborEdges(ctx, graph.NeighborQuery{Entity: "aspirin"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 0.6, rows[0].Confidence, 1e-9)
	assert.Equal(t, int64(3), rows[0].Count)
	assert.Equal(t, int64(3), rows[0].EvidenceCount)
}

func TestDualProcessClassificationBoundaries(t *testing.T) {
	cases := []struct {
		name       string
		count      int64
		confidence float64
		expected   graph.DualProcessLabel
	}{
		{"high needs count over 5 and confidence over 0.7", 6, 0.71, graph.LabelHigh},
		{"exactly 0.7 confidence is not high", 6, 0.7, graph.LabelMedium},
		{"medium needs count over 2 and confidence over 0.5", 3, 0.51, graph.LabelMedium},
		{"low frequency stays low regardless of confidence", 1, 0.9, graph.LabelLow},
		{"count boundary of 5 is not high", 5, 0.9, graph.LabelMedium},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, graph.System1Strength(tc.count, tc.confidence))
		})
	}

	assert.Equal(t, graph.LabelHigh, graph.System2Relevance(4))
	assert.Equal(t, graph.LabelMedium, graph.System2Relevance(2))
	assert.Equal(t, graph.LabelLow, graph.System2Relevance(1))
}

func TestRecomputeDualProcessLabelsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	mergeEntity(t, store, "aspirin", graph.EntityTreatment, "src1")
	mergeEntity(t, store, "angina", graph.EntityCondition, "src1")

	obs := graph.Observation{
		Subject:     "aspirin",
		SubjectType: graph.EntityTreatment,
		Object:      "angina",
		ObjectType:  graph.EntityCondition,
		Relation:    graph.RelTreats,
		Confidence:  0.8,
	}
	for i := 0; i < 6; i++ {
		require.NoError(t, store.MergeRelationship(ctx, obs, "src1"))
	}

	updated, err := store.RecomputeDualProcessLabels(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	rows, err := store.NeighborEdges(ctx, graph.NeighborQuery{Entity: "aspirin"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	first := rows[0]
	assert.Equal(t, graph.LabelHigh, first.System1Strength)
	assert.Equal(t, graph.LabelHigh, first.System2Relevance)

	// A second pass does not change any classification.
	_, err = store.RecomputeDualProcessLabels(ctx)
	require.NoError(t, err)

	rows, err = store.NeighborEdges(ctx, graph.NeighborQuery{Entity: "aspirin"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, first, rows[0])
}

func TestNeighborEdgesSystem1Filter(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	mergeEntity(t, store, "aspirin", graph.EntityTreatment, "src1")
	mergeEntity(t, store, "angina", graph.EntityCondition, "src1")
	mergeEntity(t, store, "statin", graph.EntityTreatment, "src1")

	strong := graph.Observation{
		Subject: "aspirin", SubjectType: graph.EntityTreatment,
		Object: "angina", ObjectType: graph.EntityCondition,
		Relation: graph.RelTreats, Confidence: 0.9,
	}
	for i := 0; i < 6; i++ {
		require.NoError(t, store.MergeRelationship(ctx, strong, "src1"))
	}

	weak := graph.Observation{
		Subject: "statin", SubjectType: graph.EntityTreatment,
		Object: "angina", ObjectType: graph.EntityCondition,
		Relation: graph.RelTreats, Confidence: 0.7,
	}
	require.NoError(t, store.MergeRelationship(ctx, weak, "src1"))

	_, err := store.RecomputeDualProcessLabels(ctx)
	require.NoError(t, err)

	all, err := store.NeighborEdges(ctx, graph.NeighborQuery{Entity: "angina"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	filtered, err := store.NeighborEdges(ctx, graph.NeighborQuery{
		Entity: "angina",
		Filter: graph.FilterSystem1,
	})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "aspirin", filtered[0].SourceName)
}

func TestNeighborEdgesLimitPerDirection(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	mergeEntity(t, store, "heart failure", graph.EntityCondition, "src1")
	mergeEntity(t, store, "diuretic", graph.EntityTreatment, "src1")
	mergeEntity(t, store, "digoxin", graph.EntityTreatment, "src1")
	mergeEntity(t, store, "heart", graph.EntityAnatomy, "src1")

	// Two incoming edges (treatments) and one outgoing (anatomy).
	for _, subject := range []string{"diuretic", "digoxin"} {
		require.NoError(t, store.MergeRelationship(ctx, graph.Observation{
			Subject: subject, SubjectType: graph.EntityTreatment,
			Object: "heart failure", ObjectType: graph.EntityCondition,
			Relation: graph.RelTreats, Confidence: 0.7,
		}, "src1"))
	}
	require.NoError(t, store.MergeRelationship(ctx, graph.Observation{
		Subject: "heart failure", SubjectType: graph.EntityCondition,
		Object: "heart", ObjectType: graph.EntityAnatomy,
		Relation: graph.RelAffects, Confidence: 0.7,
	}, "src1"))

	rows, err := store.NeighborEdges(ctx, graph.NeighborQuery{
		Entity: "heart failure",
		Limit:  1,
	})
	require.NoError(t, err)

	// The limit caps each direction independently.
	assert.Len(t, rows, 2)
}

func TestSearchEntities(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	mergeEntity(t, store, "myocardial infarction", graph.EntityCondition, "src1")
	mergeEntity(t, store, "myocardial infarction", graph.EntityCondition, "src1")
	mergeEntity(t, store, "myocarditis", graph.EntityCondition, "src1")
	mergeEntity(t, store, "aspirin", graph.EntityTreatment, "src1")

	hits, err := store.SearchEntities(ctx, "MYOCARD", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "myocardial infarction", hits[0].Name)
	assert.Equal(t, int64(2), hits[0].Frequency)
	assert.Equal(t, "myocarditis", hits[1].Name)
}

func TestRelatedEntitiesBothDirections(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	mergeEntity(t, store, "heart failure", graph.EntityCondition, "src1")
	mergeEntity(t, store, "diuretic", graph.EntityTreatment, "src1")
	mergeEntity(t, store, "heart", graph.EntityAnatomy, "src1")

	require.NoError(t, store.MergeRelationship(ctx, graph.Observation{
		Subject: "diuretic", SubjectType: graph.EntityTreatment,
		Object: "heart failure", ObjectType: graph.EntityCondition,
		Relation: graph.RelTreats, Confidence: 0.7,
	}, "src1"))
	require.NoError(t, store.MergeRelationship(ctx, graph.Observation{
		Subject: "heart failure", SubjectType: graph.EntityCondition,
		Object: "heart", ObjectType: graph.EntityAnatomy,
		Relation: graph.RelAffects, Confidence: 0.7,
	}, "src1"))

	related, err := store.RelatedEntities(ctx, "heart failure", nil, 10)
	require.NoError(t, err)
	require.Len(t, related, 2)

	names := map[string]string{}
	for _, r := range related {
		names[r.Name] = r.Relation
	}
	assert.Equal(t, "TREATS", names["diuretic"])
	assert.Equal(t, "AFFECTS", names["heart"])
}

func TestResetClearsEverything(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	mergeEntity(t, store, "aspirin", graph.EntityTreatment, "src1")
	require.NoError(t, store.Reset(ctx))

	_, found, err := store.GetEntity(ctx, "aspirin", nil)
	require.NoError(t, err)
	assert.False(t, found)
}
