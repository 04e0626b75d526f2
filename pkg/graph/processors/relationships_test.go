package processors

import (
	"testing"

	"github.com/athapong/cardiograph/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferTreatmentRelationship(t *testing.T) {
	tagger := NewEntityTagger()
	inferrer := NewRelationshipInferrer()

	text := "Aspirin is used for myocardial infarction."
	observations := inferrer.Infer(text, tagger.Tag(text))

	require.Len(t, observations, 1)
	obs := observations[0]
	assert.Equal(t, "Aspirin", obs.Subject)
	assert.Equal(t, graph.EntityTreatment, obs.SubjectType)
	assert.Equal(t, "myocardial infarction", obs.Object)
	assert.Equal(t, graph.EntityCondition, obs.ObjectType)
	assert.Equal(t, graph.RelTreats, obs.Relation)
	assert.Equal(t, ObservationConfidence, obs.Confidence)
	assert.Contains(t, obs.Context, "Aspirin")
}

func TestInferReversedMentionOrder(t *testing.T) {
	tagger := NewEntityTagger()
	inferrer := NewRelationshipInferrer()

	// The condition appears before the treatment; the rule still assigns
	// the treatment as subject.
	text := "For heart failure, a diuretic is indicated for symptom control."
	observations := inferrer.Infer(text, tagger.Tag(text))

	require.NotEmpty(t, observations)
	var treats *graph.Observation
	for i := range observations {
		if observations[i].Relation == graph.RelTreats {
			treats = &observations[i]
		}
	}
	require.NotNil(t, treats)
	assert.Equal(t, "diuretic", treats.Subject)
	assert.Equal(t, "heart failure", treats.Object)
}

func TestInferMultipleRulesInOneSentence(t *testing.T) {
	tagger := NewEntityTagger()
	inferrer := NewRelationshipInferrer()

	text := "Heart failure affects the heart and involves cardiac remodeling."
	observations := inferrer.Infer(text, tagger.Tag(text))

	relations := make(map[graph.RelationType]bool)
	for _, obs := range observations {
		relations[obs.Relation] = true
	}
	assert.True(t, relations[graph.RelAffects], "expected an AFFECTS observation")
	assert.True(t, relations[graph.RelInvolves], "expected an INVOLVES observation")
}

func TestInferSkipsUntypedPairs(t *testing.T) {
	tagger := NewEntityTagger()
	inferrer := NewRelationshipInferrer()

	// Anatomy next to a finding matches no rule signature.
	text := "The ventricle showed edema."
	observations := inferrer.Infer(text, tagger.Tag(text))
	assert.Empty(t, observations)
}

func TestInferNoMentions(t *testing.T) {
	inferrer := NewRelationshipInferrer()

	assert.Empty(t, inferrer.Infer("", nil))
	assert.Empty(t, inferrer.Infer("No cardiology terms here.", nil))
}

func TestInferIdenticalMentionTextsSkipped(t *testing.T) {
	inferrer := NewRelationshipInferrer()

	text := "The heart connects to the heart."
	mentions := []graph.EntityMention{
		{Text: "heart", Type: graph.EntityAnatomy, Start: 4, End: 9, Context: text},
		{Text: "heart", Type: graph.EntityAnatomy, Start: 26, End: 31, Context: text},
	}
	assert.Empty(t, inferrer.Infer(text, mentions))
}

func TestBetweenTextClamping(t *testing.T) {
	sentence := "Aspirin treats angina."
	a := graph.EntityMention{Text: "Aspirin", Start: 0, End: 7}
	b := graph.EntityMention{Text: "angina", Start: 15, End: 21}

	assert.Equal(t, " treats ", betweenText(sentence, a, b))
	assert.Equal(t, " treats ", betweenText(sentence, b, a))

	// Document-level offsets beyond the sentence clamp to empty.
	far := graph.EntityMention{Text: "angina", Start: 500, End: 506}
	assert.Equal(t, "", betweenText(sentence, far, graph.EntityMention{Start: 510, End: 516}))
}
