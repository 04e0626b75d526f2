package processors

import (
	"regexp"
	"strings"

	"github.com/athapong/cardiograph/pkg/graph"
	"github.com/jdkato/prose/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var (
	inferenceDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "cardiograph_inference_duration_seconds",
			Help: "Time spent inferring relationships in documents",
		},
	)

	observationsInferred = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardiograph_observations_inferred_total",
			Help: "Number of relationship observations inferred",
		},
		[]string{"relation_type"},
	)
)

func init() {
	prometheus.MustRegister(inferenceDuration)
	prometheus.MustRegister(observationsInferred)
}

// ObservationConfidence is the fixed confidence assigned to every
// pattern-matched observation.
const ObservationConfidence = 0.7

type relationRule struct {
	subjectType graph.EntityType
	objectType  graph.EntityType
	connector   *regexp.Regexp
	relType     graph.RelationType
}

// relationRules is the fixed typed-pattern grammar: subject type, object
// type, connector regex, emitted relationship type.
var relationRules = []relationRule{
	{graph.EntityCondition, graph.EntityAnatomy,
		regexp.MustCompile(`(?i)(affects|involves|in|of|associated with|related to)`),
		graph.RelAffects},
	{graph.EntityCondition, graph.EntityMechanism,
		regexp.MustCompile(`(?i)(involves|causes|leads to|results in|associated with|characterized by)`),
		graph.RelInvolves},
	{graph.EntityTreatment, graph.EntityCondition,
		regexp.MustCompile(`(?i)(treats|used for|effective for|indicated for|manages|therapy for)`),
		graph.RelTreats},
	{graph.EntityDiagnostic, graph.EntityCondition,
		regexp.MustCompile(`(?i)(diagnoses|detects|identifies|confirms|rules out|evaluates|assesses|screens for)`),
		graph.RelDiagnoses},
	{graph.EntityFinding, graph.EntityCondition,
		regexp.MustCompile(`(?i)(indicates|suggests|sign of|symptom of|manifestation of|associated with|seen in)`),
		graph.RelIndicates},
	{graph.EntityProcedure, graph.EntityAnatomy,
		regexp.MustCompile(`(?i)(performed on|targets|involves|repairs|replaces|treats)`),
		graph.RelPerformedOn},
	{graph.EntityAnatomy, graph.EntityAnatomy,
		regexp.MustCompile(`(?i)(connected to|adjacent to|part of|contains|supplies|drains|attaches to)`),
		graph.RelConnectedTo},
	{graph.EntityMechanism, graph.EntityMechanism,
		regexp.MustCompile(`(?i)(leads to|causes|triggers|activates|inhibits|promotes|precedes|follows)`),
		graph.RelLeadsTo},
}

// RelationshipInferrer infers typed relationships between entity mentions
// that co-occur in the same sentence.
type RelationshipInferrer struct {
	logger *logrus.Logger
}

// NewRelationshipInferrer creates a relationship inferrer.
func NewRelationshipInferrer() *RelationshipInferrer {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	return &RelationshipInferrer{logger: logger}
}

// Infer segments text into sentences, buckets mentions into sentences, and
// tests each entity pair against the rule grammar.
//
// A mention belongs to a sentence when the sentence text is a substring of
// the mention's context window. A context window spanning a sentence
// boundary can assign a mention to zero or several sentences; this is a
// known source of false negatives and positives, kept for behavioral parity.
func (r *RelationshipInferrer) Infer(text string, mentions []graph.EntityMention) []graph.Observation {
	timer := prometheus.NewTimer(inferenceDuration)
	defer timer.ObserveDuration()

	if text == "" || len(mentions) == 0 {
		return []graph.Observation{}
	}

	doc, err := prose.NewDocument(text, prose.WithTagging(false), prose.WithExtraction(false))
	if err != nil {
		r.logger.WithError(err).Error("Sentence segmentation failed")
		return []graph.Observation{}
	}

	observations := make([]graph.Observation, 0, 16)
	for _, sent := range doc.Sentences() {
		var inSentence []graph.EntityMention
		for _, m := range mentions {
			if m.Context != "" && strings.Contains(m.Context, sent.Text) {
				inSentence = append(inSentence, m)
			}
		}
		observations = append(observations, r.inferFromSentence(sent.Text, inSentence)...)
	}

	return observations
}

// inferFromSentence tests every unordered pair of distinct-text mentions in
// one sentence against the rule grammar. A pair can emit one observation per
// matching rule.
func (r *RelationshipInferrer) inferFromSentence(sentence string, mentions []graph.EntityMention) []graph.Observation {
	if len(mentions) < 2 {
		return nil
	}

	var observations []graph.Observation
	for i := 0; i < len(mentions); i++ {
		for j := i + 1; j < len(mentions); j++ {
			first, second := mentions[i], mentions[j]
			if first.Text == second.Text {
				continue
			}

			for _, rule := range relationRules {
				forward := first.Type == rule.subjectType && second.Type == rule.objectType
				reverse := second.Type == rule.subjectType && first.Type == rule.objectType
				if !forward && !reverse {
					continue
				}

				between := betweenText(sentence, first, second)
				if !rule.connector.MatchString(between) && !rule.connector.MatchString(sentence) {
					continue
				}

				subject, object := first, second
				if !forward {
					subject, object = second, first
				}

				observations = append(observations, graph.Observation{
					Subject:     subject.Text,
					SubjectType: subject.Type,
					Object:      object.Text,
					ObjectType:  object.Type,
					Relation:    rule.relType,
					Context:     sentence,
					Confidence:  ObservationConfidence,
				})
				observationsInferred.WithLabelValues(rule.relType.Type()).Inc()
			}
		}
	}

	return observations
}

// betweenText slices the sentence between the two mentions' offsets. Mention
// offsets are document-level, so they are clamped to the sentence bounds;
// out-of-range offsets yield "" and the full-sentence connector test still
// applies.
func betweenText(sentence string, a, b graph.EntityMention) string {
	start := a.End
	if b.End < start {
		start = b.End
	}
	end := a.Start
	if b.Start > end {
		end = b.Start
	}
	if start < 0 {
		start = 0
	}
	if end > len(sentence) {
		end = len(sentence)
	}
	if start >= end || start >= len(sentence) {
		return ""
	}
	return sentence[start:end]
}
