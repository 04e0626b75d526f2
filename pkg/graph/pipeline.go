package graph

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/athapong/cardiograph/pkg/graph/metrics"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

var stageDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "pipeline_stage_duration_seconds",
		Help: "Time spent in each pipeline stage",
	},
	[]string{"stage"},
)

func init() {
	prometheus.MustRegister(stageDuration)
}

// Tagger marks entity mentions in raw text.
type Tagger interface {
	Tag(text string) []EntityMention
}

// Inferrer derives relationship observations from tagged text.
type Inferrer interface {
	Infer(text string, mentions []EntityMention) []Observation
}

// ResultSink persists stage results between pipeline runs.
type ResultSink interface {
	Store(results StageResults) error
	Load() (StageResults, error)
}

// Pipeline runs the extraction stages over a corpus of raw documents.
// Each stage produces a complete StageResults snapshot, so a run can be
// resumed from any persisted stage.
type Pipeline struct {
	tagger    Tagger
	inferrer  Inferrer
	logger    *logrus.Logger
	batchSize int
}

// NewPipeline creates an extraction pipeline over the given processors.
func NewPipeline(tagger Tagger, inferrer Inferrer) *Pipeline {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Pipeline{
		tagger:    tagger,
		inferrer:  inferrer,
		batchSize: 10,
		logger:    logger,
	}
}

// LoadRawDocuments reads every JSON file under dir into document records.
// A file may hold a single document, an array of documents, or a map keyed
// by article id. Malformed records are skipped with a warning rather than
// failing the whole corpus.
func (p *Pipeline) LoadRawDocuments(dir string) ([]*Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read corpus directory %s", dir)
	}

	var docs []*Document
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			p.logger.WithError(err).WithField("file", path).Warn("Skipping unreadable corpus file")
			continue
		}

		parsed := gjson.ParseBytes(data)
		records := make([]gjson.Result, 0)
		switch {
		case parsed.IsArray():
			records = append(records, parsed.Array()...)
		case parsed.IsObject() && (parsed.Get("title").Exists() || parsed.Get("pmid").Exists()):
			records = append(records, parsed)
		case parsed.IsObject():
			parsed.ForEach(func(_, value gjson.Result) bool {
				records = append(records, value)
				return true
			})
		default:
			p.logger.WithField("file", path).Warn("Skipping corpus file with unrecognized structure")
			continue
		}

		for _, record := range records {
			var doc Document
			if err := json.Unmarshal([]byte(record.Raw), &doc); err != nil {
				p.logger.WithError(err).WithField("file", path).Warn("Skipping malformed document record")
				continue
			}
			if doc.SourceID() == "" || doc.ExtractionText() == "" {
				p.logger.WithField("file", path).Warn("Skipping document without id or text")
				continue
			}
			docs = append(docs, &doc)
		}
	}

	p.logger.WithFields(logrus.Fields{
		"directory": dir,
		"documents": len(docs),
	}).Info("Loaded raw corpus")

	return docs, nil
}

// ExtractEntities runs the tagging stage over every document.
func (p *Pipeline) ExtractEntities(ctx context.Context, docs []*Document) (StageResults, error) {
	timer := prometheus.NewTimer(stageDuration.WithLabelValues("entities"))
	defer timer.ObserveDuration()

	p.logger.WithField("documents", len(docs)).Info("Starting entity extraction")

	results := make(StageResults, len(docs))
	var mu sync.Mutex

	err := p.runBatches(ctx, len(docs), func(i int) {
		doc := docs[i]
		mentions := p.tagger.Tag(doc.ExtractionText())

		mu.Lock()
		results[doc.SourceID()] = &ArticleResult{Article: doc, Entities: mentions}
		mu.Unlock()

		metrics.DocumentsProcessed.WithLabelValues("entities").Inc()
	})
	if err != nil {
		return nil, err
	}

	p.logger.WithField("articles", len(results)).Info("Entity extraction completed")
	return results, nil
}

// InferRelationships runs the relationship stage over tagged articles,
// filling in each article's Relationships in place.
func (p *Pipeline) InferRelationships(ctx context.Context, results StageResults) (StageResults, error) {
	timer := prometheus.NewTimer(stageDuration.WithLabelValues("relationships"))
	defer timer.ObserveDuration()

	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	p.logger.WithField("articles", len(ids)).Info("Starting relationship inference")

	err := p.runBatches(ctx, len(ids), func(i int) {
		result := results[ids[i]]
		if result == nil || result.Article == nil {
			return
		}
		result.Relationships = p.inferrer.Infer(result.Article.ExtractionText(), result.Entities)
		metrics.DocumentsProcessed.WithLabelValues("relationships").Inc()
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("Relationship inference completed")
	return results, nil
}

// runBatches executes fn over n items, batchSize at a time, stopping between
// batches when the context is cancelled. The processors are pure functions
// over their inputs, so items within a batch run concurrently.
func (p *Pipeline) runBatches(ctx context.Context, n int, fn func(i int)) error {
	for start := 0; start < n; start += p.batchSize {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "pipeline cancelled")
		}

		end := start + p.batchSize
		if end > n {
			end = n
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				fn(i)
			}(i)
		}
		wg.Wait()
	}
	return nil
}
