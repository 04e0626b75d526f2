package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/athapong/cardiograph/pkg/graph"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed", "extracted_entities.json")
	store := NewResultStore(path)

	results := graph.StageResults{
		"pubmed_123": {
			Article: &graph.Document{
				PMID:       "123",
				Title:      "Test Article",
				Abstract:   "An abstract about heart failure.",
				SourceType: "pubmed",
			},
			Entities: []graph.EntityMention{
				{Text: "heart failure", Type: graph.EntityCondition, Start: 18, End: 31, Context: "An abstract about heart failure."},
			},
		},
	}

	require.NoError(t, store.Store(results))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Contains(t, loaded, "pubmed_123")

	article := loaded["pubmed_123"]
	assert.Equal(t, "123", article.Article.PMID)
	require.Len(t, article.Entities, 1)
	assert.Equal(t, "heart failure", article.Entities[0].Text)
	assert.Equal(t, graph.EntityCondition, article.Entities[0].Type)
	assert.Empty(t, article.Relationships)
}

func TestResultStoreLoadMissingFile(t *testing.T) {
	store := NewResultStore(filepath.Join(t.TempDir(), "missing.json"))

	_, err := store.Load()
	require.Error(t, err)
	assert.True(t, os.IsNotExist(errors.Cause(err)))
}
