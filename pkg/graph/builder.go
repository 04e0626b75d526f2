package graph

import (
	"context"
	"sort"

	"github.com/athapong/cardiograph/pkg/graph/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ArticleResult bundles one document with its extraction output. The
// entities stage leaves Relationships empty; the relate stage fills it in.
type ArticleResult struct {
	Article       *Document       `json:"article_data"`
	Entities      []EntityMention `json:"entities"`
	Relationships []Observation   `json:"relationships,omitempty"`
}

// StageResults is the persisted output of a pipeline stage, keyed by
// article id. Persisting each stage lets a run restart from any stage.
type StageResults map[string]*ArticleResult

// BuildStats reports what a build pass accomplished. Batches never abort on
// a single failure; the skip counters record what was left behind.
type BuildStats struct {
	Sources              int `json:"sources"`
	Entities             int `json:"entities"`
	Relationships        int `json:"relationships"`
	SkippedArticles      int `json:"skipped_articles"`
	SkippedRelationships int `json:"skipped_relationships"`
}

// Builder is the incremental merge engine: it upserts sources, entities and
// relationship edges into the graph store, aggregating repeated observations
// into frequency- and confidence-weighted statistics.
//
// Building is NOT idempotent: re-running the same stage results
// double-increments every counter. A stage file is meant to be built exactly
// once per extraction run.
type Builder struct {
	store  GraphStore
	logger *logrus.Logger
}

// NewBuilder creates a builder writing into the given store.
func NewBuilder(store GraphStore) *Builder {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	return &Builder{store: store, logger: logger}
}

// Build merge-writes every article's source, entities and relationships.
// Entities are merged before relationships within each article, so a
// referential gap only occurs when an observation references a mention the
// tagger never produced.
func (b *Builder) Build(ctx context.Context, results StageResults) (*BuildStats, error) {
	stats := &BuildStats{}

	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		result := results[id]
		if result == nil || result.Article == nil {
			b.logger.WithField("article_id", id).Warn("Skipping malformed article result")
			stats.SkippedArticles++
			continue
		}

		sourceID, err := b.store.MergeSource(ctx, result.Article)
		if err != nil {
			b.logger.WithError(err).WithField("article_id", id).Error("Failed to merge source; skipping article")
			stats.SkippedArticles++
			continue
		}
		stats.Sources++
		metrics.SourcesMerged.Inc()

		// Count distinct (type, name) pairs per article, not raw mentions.
		seen := make(map[string]bool)
		for _, mention := range result.Entities {
			if err := b.store.MergeEntity(ctx, mention, sourceID); err != nil {
				b.logger.WithError(err).WithFields(logrus.Fields{
					"article_id": id,
					"entity":     mention.Text,
				}).Error("Failed to merge entity")
				continue
			}
			seen[mention.Type.Label()+"\x00"+NormalizeName(mention.Text)] = true
			metrics.EntitiesMerged.WithLabelValues(mention.Type.Label()).Inc()
		}
		stats.Entities += len(seen)

		for _, obs := range result.Relationships {
			err := b.store.MergeRelationship(ctx, obs, sourceID)
			switch {
			case err == nil:
				stats.Relationships++
				metrics.RelationshipsMerged.WithLabelValues(obs.Relation.Type()).Inc()
			case errors.Is(err, ErrMissingEntity):
				b.logger.WithFields(logrus.Fields{
					"article_id": id,
					"subject":    obs.Subject,
					"object":     obs.Object,
					"relation":   obs.Relation,
				}).Warn("Skipping relationship with unmerged entities")
				stats.SkippedRelationships++
				metrics.RelationshipsSkipped.Inc()
			default:
				b.logger.WithError(err).WithField("article_id", id).Error("Failed to merge relationship")
				stats.SkippedRelationships++
				metrics.RelationshipsSkipped.Inc()
			}
		}
	}

	b.logger.WithFields(logrus.Fields{
		"sources":       stats.Sources,
		"entities":      stats.Entities,
		"relationships": stats.Relationships,
		"skipped":       stats.SkippedRelationships,
	}).Info("Knowledge graph build completed")

	return stats, nil
}

// RecomputeDualProcessLabels runs the idempotent whole-graph classification
// pass. Safe to run any number of times after ingestion.
func (b *Builder) RecomputeDualProcessLabels(ctx context.Context) (int64, error) {
	updated, err := b.store.RecomputeDualProcessLabels(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "dual-process label pass failed")
	}
	metrics.GraphRelationshipEdges.Set(float64(updated))
	b.logger.WithField("updated", updated).Info("Dual-process labels recomputed")
	return updated, nil
}
