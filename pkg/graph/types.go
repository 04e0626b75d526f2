package graph

import (
	"fmt"
	"strings"
)

// EntityType is the closed set of node labels used by the cardiology graph.
// Labels are never built from untrusted input; every cypher template receives
// the fixed string returned by Label().
type EntityType string

const (
	EntityAnatomy    EntityType = "Anatomy"
	EntityCondition  EntityType = "Condition"
	EntityDiagnostic EntityType = "Diagnostic"
	EntityProcedure  EntityType = "Procedure"
	EntityTreatment  EntityType = "Treatment"
	EntityFinding    EntityType = "Finding"
	EntityMechanism  EntityType = "Mechanism"
)

// AllEntityTypes lists the seven entity labels in schema order.
var AllEntityTypes = []EntityType{
	EntityAnatomy,
	EntityCondition,
	EntityDiagnostic,
	EntityProcedure,
	EntityTreatment,
	EntityFinding,
	EntityMechanism,
}

// ParseEntityType maps a string onto the closed label set.
func ParseEntityType(s string) (EntityType, error) {
	for _, t := range AllEntityTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown entity type: %q", s)
}

// Label returns the node label for cypher templates.
func (t EntityType) Label() string { return string(t) }

// CategoryName derives the taxonomy category an entity belongs to.
// The naive plural yields "Cardiac Anatomys", which does not match the
// bootstrap category "Cardiac Anatomy"; anatomy entities therefore never
// receive a CONTAINS edge. Kept as-is to match existing graphs.
func (t EntityType) CategoryName() string {
	return "Cardiac " + string(t) + "s"
}

// RelationType is the closed set of inferred relationship types.
type RelationType string

const (
	RelAffects     RelationType = "AFFECTS"
	RelInvolves    RelationType = "INVOLVES"
	RelTreats      RelationType = "TREATS"
	RelDiagnoses   RelationType = "DIAGNOSES"
	RelIndicates   RelationType = "INDICATES"
	RelPerformedOn RelationType = "PERFORMED_ON"
	RelConnectedTo RelationType = "CONNECTED_TO"
	RelLeadsTo     RelationType = "LEADS_TO"
)

// AllRelationTypes lists the eight inferred relationship types.
var AllRelationTypes = []RelationType{
	RelAffects,
	RelInvolves,
	RelTreats,
	RelDiagnoses,
	RelIndicates,
	RelPerformedOn,
	RelConnectedTo,
	RelLeadsTo,
}

// ParseRelationType maps a string onto the closed relationship set.
func ParseRelationType(s string) (RelationType, error) {
	for _, t := range AllRelationTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown relation type: %q", s)
}

// Type returns the relationship type for cypher templates.
func (t RelationType) Type() string { return string(t) }

// Structural edge types. These link entities and relationships to sources
// and the taxonomy; they are excluded from the dual-process passes and views.
const (
	EdgeMentionedIn = "MENTIONED_IN"
	EdgeEvidence    = "EVIDENCE"
	EdgeContains    = "CONTAINS"
	EdgeDefines     = "DEFINES"
)

// Document is one raw article or textbook chapter, write-once after fetch.
type Document struct {
	ID              string   `json:"id,omitempty"`
	PMID            string   `json:"pmid,omitempty"`
	Title           string   `json:"title"`
	Abstract        string   `json:"abstract,omitempty"`
	Content         string   `json:"content,omitempty"`
	FullText        string   `json:"full_text,omitempty"`
	Authors         []string `json:"authors,omitempty"`
	Journal         string   `json:"journal,omitempty"`
	PublicationDate string   `json:"publication_date,omitempty"`
	SourceType      string   `json:"source_type"`
	Source          string   `json:"source,omitempty"`
	URL             string   `json:"url,omitempty"`
	MeshTerms       []string `json:"mesh_terms,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
}

// ContentPlaceholder marks textbook records whose body could not be
// downloaded; such content is treated as absent.
const ContentPlaceholder = "See URL for access to this resource."

// SourceID resolves the stable identifier for a document, preferring the
// explicit id, then the PMID.
func (d *Document) SourceID() string {
	if d.ID != "" {
		return d.ID
	}
	return d.PMID
}

// ExtractionText assembles the text the pipeline runs over: title, abstract
// and whichever of content/full text is present, joined with blank lines.
func (d *Document) ExtractionText() string {
	parts := make([]string, 0, 3)
	if d.Title != "" {
		parts = append(parts, d.Title)
	}
	if d.Abstract != "" {
		parts = append(parts, d.Abstract)
	}
	if d.Content != "" && d.Content != ContentPlaceholder {
		parts = append(parts, d.Content)
	} else if d.FullText != "" {
		parts = append(parts, d.FullText)
	}
	return strings.Join(parts, "\n\n")
}

// EntityMention is one textual occurrence of a vocabulary term. Mentions are
// per-document and ephemeral; only their aggregates reach the graph.
// Offsets are byte offsets into the extraction text.
type EntityMention struct {
	Text    string     `json:"text"`
	Type    EntityType `json:"type"`
	Start   int        `json:"start"`
	End     int        `json:"end"`
	Context string     `json:"context"`
}

// Observation is one inferred instance of a typed relationship between two
// entities found in a single sentence.
type Observation struct {
	Subject     string       `json:"subject"`
	SubjectType EntityType   `json:"subject_type"`
	Object      string       `json:"object"`
	ObjectType  EntityType   `json:"object_type"`
	Relation    RelationType `json:"relationship"`
	Context     string       `json:"context"`
	Confidence  float64      `json:"confidence"`
}

// DualProcessLabel is a derived categorical strength/relevance bucket.
type DualProcessLabel string

const (
	LabelLow    DualProcessLabel = "low"
	LabelMedium DualProcessLabel = "medium"
	LabelHigh   DualProcessLabel = "high"
)

// System1Strength classifies an edge for the intuitive view from its
// aggregate count and running-average confidence.
func System1Strength(count int64, confidence float64) DualProcessLabel {
	switch {
	case count > 5 && confidence > 0.7:
		return LabelHigh
	case count > 2 && confidence > 0.5:
		return LabelMedium
	default:
		return LabelLow
	}
}

// System2Relevance classifies an edge for the analytical view from its
// evidence count.
func System2Relevance(evidenceCount int64) DualProcessLabel {
	switch {
	case evidenceCount > 3:
		return LabelHigh
	case evidenceCount > 1:
		return LabelMedium
	default:
		return LabelLow
	}
}

// NormalizeName case-normalizes an entity surface form into its node name.
func NormalizeName(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
