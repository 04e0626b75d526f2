package processors

import (
	"regexp"
	"sort"
	"strings"

	"github.com/athapong/cardiograph/pkg/graph"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/jdkato/prose/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var (
	taggingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "cardiograph_tagging_duration_seconds",
			Help: "Time spent tagging entities in documents",
		},
	)

	mentionsTagged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardiograph_mentions_tagged_total",
			Help: "Number of entity mentions tagged",
		},
		[]string{"entity_type"},
	)
)

func init() {
	prometheus.MustRegister(taggingDuration)
	prometheus.MustRegister(mentionsTagged)
}

// contextWindow is the number of bytes captured on each side of a mention.
const contextWindow = 50

type termPattern struct {
	re         *regexp.Regexp
	entityType graph.EntityType
	length     int
}

// candidate is a span proposed either by the vocabulary patterns or by the
// base NER layer. Vocabulary spans take priority over base spans.
type candidate struct {
	start, end int
	text       string
	label      string
	base       bool
}

// EntityTagger tags cardiology vocabulary terms in free text. Vocabulary
// patterns are matched ahead of the general-purpose recognizer, so a generic
// span overlapping a domain term is suppressed; recognizer output that does
// not carry one of the seven domain labels is discarded.
type EntityTagger struct {
	patterns     []termPattern
	domainLabels mapset.Set[string]
	logger       *logrus.Logger
}

// NewEntityTagger compiles the vocabulary into match patterns.
func NewEntityTagger() *EntityTagger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	patterns := make([]termPattern, 0, 128)
	for entityType, terms := range graph.CardioTerms {
		for _, term := range terms {
			re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
			patterns = append(patterns, termPattern{
				re:         re,
				entityType: entityType,
				length:     len(term),
			})
		}
	}
	// Longer terms first so "mitral valve" wins over "valve".
	sort.Slice(patterns, func(i, j int) bool {
		return patterns[i].length > patterns[j].length
	})

	domainLabels := mapset.NewSet[string]()
	for _, t := range graph.AllEntityTypes {
		domainLabels.Add(t.Label())
	}

	logger.WithField("pattern_count", len(patterns)).Info("Compiled cardiology entity patterns")

	return &EntityTagger{
		patterns:     patterns,
		domainLabels: domainLabels,
		logger:       logger,
	}
}

// Tag returns every domain entity mention in text with byte offsets and a
// clipped context window. Empty input yields an empty result.
func (t *EntityTagger) Tag(text string) []graph.EntityMention {
	timer := prometheus.NewTimer(taggingDuration)
	defer timer.ObserveDuration()

	if text == "" {
		return []graph.EntityMention{}
	}

	candidates := make([]candidate, 0, 32)

	// Vocabulary layer.
	for _, p := range t.patterns {
		for _, m := range p.re.FindAllStringIndex(text, -1) {
			candidates = append(candidates, candidate{
				start: m[0],
				end:   m[1],
				text:  text[m[0]:m[1]],
				label: p.entityType.Label(),
			})
		}
	}

	// Base NER layer. Its spans only survive when no vocabulary span
	// overlaps them, and only domain labels pass the retain filter below.
	doc, err := prose.NewDocument(text)
	if err != nil {
		t.logger.WithError(err).Warn("Base NER layer failed; using vocabulary matches only")
	} else {
		for _, ent := range doc.Entities() {
			idx := strings.Index(text, ent.Text)
			if idx < 0 {
				continue
			}
			candidates = append(candidates, candidate{
				start: idx,
				end:   idx + len(ent.Text),
				text:  ent.Text,
				label: ent.Label,
				base:  true,
			})
		}
	}

	selected := resolveOverlaps(candidates)

	mentions := make([]graph.EntityMention, 0, len(selected))
	for _, c := range selected {
		if !t.domainLabels.Contains(c.label) {
			continue
		}
		entityType, err := graph.ParseEntityType(c.label)
		if err != nil {
			continue
		}
		mentions = append(mentions, graph.EntityMention{
			Text:    c.text,
			Type:    entityType,
			Start:   c.start,
			End:     c.end,
			Context: clipContext(text, c.start, c.end),
		})
		mentionsTagged.WithLabelValues(c.label).Inc()
	}

	return mentions
}

// resolveOverlaps keeps at most one span per text region: vocabulary spans
// beat base spans, longer spans beat shorter ones, earlier spans beat later
// ties.
func resolveOverlaps(candidates []candidate) []candidate {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.base != b.base {
			return !a.base
		}
		if a.end-a.start != b.end-b.start {
			return a.end-a.start > b.end-b.start
		}
		return a.start < b.start
	})

	selected := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		overlaps := false
		for _, s := range selected {
			if c.start < s.end && s.start < c.end {
				overlaps = true
				break
			}
		}
		if !overlaps {
			selected = append(selected, c)
		}
	}

	sort.Slice(selected, func(i, j int) bool {
		return selected[i].start < selected[j].start
	})
	return selected
}

func clipContext(text string, start, end int) string {
	lo := start - contextWindow
	if lo < 0 {
		lo = 0
	}
	hi := end + contextWindow
	if hi > len(text) {
		hi = len(text)
	}
	return text[lo:hi]
}
