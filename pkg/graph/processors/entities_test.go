package processors

import (
	"strings"
	"testing"

	"github.com/athapong/cardiograph/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagFindsEveryEntityType(t *testing.T) {
	tagger := NewEntityTagger()

	cases := []struct {
		term     string
		expected graph.EntityType
	}{
		{"ventricle", graph.EntityAnatomy},
		{"heart failure", graph.EntityCondition},
		{"echocardiogram", graph.EntityDiagnostic},
		{"angioplasty", graph.EntityProcedure},
		{"beta blocker", graph.EntityTreatment},
		{"chest pain", graph.EntityFinding},
		{"ischemia", graph.EntityMechanism},
	}

	for _, tc := range cases {
		t.Run(tc.term, func(t *testing.T) {
			text := "Patient presented with " + tc.term + " yesterday."
			mentions := tagger.Tag(text)

			require.NotEmpty(t, mentions)
			found := false
			for _, m := range mentions {
				if strings.EqualFold(m.Text, tc.term) {
					found = true
					assert.Equal(t, tc.expected, m.Type)
				}
			}
			assert.True(t, found, "expected a mention for %q", tc.term)
		})
	}
}

func TestTagOffsetsAndContext(t *testing.T) {
	tagger := NewEntityTagger()

	text := "A large anterior myocardial infarction was confirmed by troponin test results in the emergency department after the patient arrived."
	mentions := tagger.Tag(text)
	require.NotEmpty(t, mentions)

	for _, m := range mentions {
		assert.Equal(t, m.Text, text[m.Start:m.End])
		assert.Contains(t, m.Context, m.Text)
		assert.LessOrEqual(t, len(m.Context), m.End-m.Start+2*contextWindow)
	}
}

func TestTagEmptyInput(t *testing.T) {
	tagger := NewEntityTagger()
	assert.Empty(t, tagger.Tag(""))
}

func TestTagLongerTermSuppressesShorter(t *testing.T) {
	tagger := NewEntityTagger()

	mentions := tagger.Tag("The mitral valve appeared thickened.")
	require.Len(t, mentions, 1)
	assert.Equal(t, "mitral valve", mentions[0].Text)
	assert.Equal(t, graph.EntityAnatomy, mentions[0].Type)
}

func TestTagIsCaseInsensitive(t *testing.T) {
	tagger := NewEntityTagger()

	mentions := tagger.Tag("HEART FAILURE was diagnosed.")
	require.NotEmpty(t, mentions)
	assert.Equal(t, "HEART FAILURE", mentions[0].Text)
	assert.Equal(t, graph.EntityCondition, mentions[0].Type)
}

func TestClipContextBounds(t *testing.T) {
	text := strings.Repeat("a", 200)

	assert.Equal(t, text[:60], clipContext(text, 0, 10))
	assert.Equal(t, text[40:160], clipContext(text, 90, 110))
	assert.Equal(t, text[140:], clipContext(text, 190, 200))
}

func TestResolveOverlapsPrefersVocabulary(t *testing.T) {
	candidates := []candidate{
		{start: 0, end: 5, text: "heart", label: "GPE", base: true},
		{start: 0, end: 13, text: "heart failure", label: "Condition"},
	}

	selected := resolveOverlaps(candidates)
	require.Len(t, selected, 1)
	assert.Equal(t, "heart failure", selected[0].text)
	assert.False(t, selected[0].base)
}
