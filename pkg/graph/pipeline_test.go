package graph_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/athapong/cardiograph/pkg/graph"
	"github.com/athapong/cardiograph/pkg/graph/processors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRawFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoadRawDocuments(t *testing.T) {
	dir := t.TempDir()

	writeRawFile(t, dir, "pubmed_1.json", `{
		"pmid": "1",
		"title": "Aspirin in angina",
		"abstract": "Aspirin is used for angina.",
		"source_type": "pubmed"
	}`)
	writeRawFile(t, dir, "batch.json", `[
		{"id": "a", "title": "First", "content": "The heart has a ventricle.", "source_type": "textbook"},
		{"id": "b", "title": "Second", "content": "Statin therapy.", "source_type": "textbook"}
	]`)
	writeRawFile(t, dir, "malformed.json", `{not json`)
	writeRawFile(t, dir, "empty_record.json", `{"title": "", "source_type": "pubmed"}`)
	writeRawFile(t, dir, "notes.txt", "not a corpus file")

	pipeline := graph.NewPipeline(processors.NewEntityTagger(), processors.NewRelationshipInferrer())

	docs, err := pipeline.LoadRawDocuments(dir)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	ids := make(map[string]bool)
	for _, doc := range docs {
		ids[doc.SourceID()] = true
	}
	assert.True(t, ids["1"])
	assert.True(t, ids["a"])
	assert.True(t, ids["b"])
}

func TestLoadRawDocumentsMissingDir(t *testing.T) {
	pipeline := graph.NewPipeline(processors.NewEntityTagger(), processors.NewRelationshipInferrer())

	_, err := pipeline.LoadRawDocuments(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestPipelineStages(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	writeRawFile(t, dir, "pubmed_1.json", `{
		"pmid": "1",
		"title": "Treatment options",
		"abstract": "Aspirin is used for angina.",
		"source_type": "pubmed"
	}`)

	pipeline := graph.NewPipeline(processors.NewEntityTagger(), processors.NewRelationshipInferrer())

	docs, err := pipeline.LoadRawDocuments(dir)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	results, err := pipeline.ExtractEntities(ctx, docs)
	require.NoError(t, err)
	require.Contains(t, results, "1")
	assert.NotEmpty(t, results["1"].Entities)
	assert.Empty(t, results["1"].Relationships)

	results, err = pipeline.InferRelationships(ctx, results)
	require.NoError(t, err)
	require.NotEmpty(t, results["1"].Relationships)
	assert.Equal(t, graph.RelTreats, results["1"].Relationships[0].Relation)
}

func TestDocumentExtractionText(t *testing.T) {
	doc := &graph.Document{
		Title:    "Title",
		Abstract: "Abstract.",
		Content:  "Body.",
	}
	assert.Equal(t, "Title\n\nAbstract.\n\nBody.", doc.ExtractionText())

	// The access placeholder counts as no content at all.
	ref := &graph.Document{
		Title:   "Book",
		Content: graph.ContentPlaceholder,
	}
	assert.Equal(t, "Book", ref.ExtractionText())

	full := &graph.Document{Title: "T", FullText: "Full text."}
	assert.Equal(t, "T\n\nFull text.", full.ExtractionText())
}
