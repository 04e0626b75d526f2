package storage

import (
	"context"
	"fmt"

	"github.com/athapong/cardiograph/pkg/graph"
	"github.com/neo4j/neo4j-go-driver/v4/neo4j"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// structuralEdgeFilter excludes mention, evidence and taxonomy edges from
// the view and recompute queries.
const structuralEdgeFilter = "type(r) <> 'MENTIONED_IN' AND type(r) <> 'EVIDENCE' AND type(r) <> 'CONTAINS' AND type(r) <> 'DEFINES'"

// Neo4jStore implements GraphStore against a Neo4j database. Node labels and
// relationship types in its cypher come exclusively from the closed
// EntityType/RelationType enums; user input only ever travels as parameters.
type Neo4jStore struct {
	driver  neo4j.Driver
	uri     string
	session neo4j.Session
	logger  *logrus.Logger
}

// NewNeo4jStore creates a store for the given connection settings.
func NewNeo4jStore(uri, username, password string) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriver(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Neo4j driver")
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Neo4jStore{
		driver: driver,
		uri:    uri,
		logger: logger,
	}, nil
}

// Connect implements GraphStore.
func (s *Neo4jStore) Connect(ctx context.Context) error {
	s.session = s.driver.NewSession(neo4j.SessionConfig{})
	return nil
}

// Close implements GraphStore.
func (s *Neo4jStore) Close() error {
	if s.session != nil {
		s.session.Close()
	}
	if s.driver != nil {
		return s.driver.Close()
	}
	return nil
}

// InitSchema creates uniqueness constraints, indexes and the taxonomy
// scaffold. Every statement merges, so the bootstrap is idempotent.
func (s *Neo4jStore) InitSchema(ctx context.Context) error {
	statements := make([]string, 0, 32)

	for _, t := range graph.AllEntityTypes {
		statements = append(statements,
			fmt.Sprintf("CREATE CONSTRAINT IF NOT EXISTS FOR (n:%s) REQUIRE n.name IS UNIQUE", t.Label()),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS FOR (n:%s) ON (n.name)", t.Label()),
		)
	}
	statements = append(statements,
		"CREATE CONSTRAINT IF NOT EXISTS FOR (s:Source) REQUIRE s.id IS UNIQUE",
		"CREATE INDEX IF NOT EXISTS FOR (s:Source) ON (s.id)",
		"CREATE INDEX IF NOT EXISTS FOR (s:Source) ON (s.type)",
	)

	for _, stmt := range statements {
		if _, err := s.session.Run(stmt, nil); err != nil {
			return errors.Wrapf(err, "schema statement failed: %s", stmt)
		}
	}

	if _, err := s.session.Run(`
		MERGE (root:Root {name: 'Cardiology Knowledge Graph'})
		MERGE (conditions:Category {name: 'Cardiac Conditions'})
		MERGE (anatomy:Category {name: 'Cardiac Anatomy'})
		MERGE (procedures:Category {name: 'Cardiac Procedures'})
		MERGE (diagnostics:Category {name: 'Cardiac Diagnostics'})
		MERGE (treatments:Category {name: 'Cardiac Treatments'})
		MERGE (mechanisms:Category {name: 'Cardiac Mechanisms'})
		MERGE (findings:Category {name: 'Cardiac Findings'})
		MERGE (root)-[:CONTAINS]->(conditions)
		MERGE (root)-[:CONTAINS]->(anatomy)
		MERGE (root)-[:CONTAINS]->(procedures)
		MERGE (root)-[:CONTAINS]->(diagnostics)
		MERGE (root)-[:CONTAINS]->(treatments)
		MERGE (root)-[:CONTAINS]->(mechanisms)
		MERGE (root)-[:CONTAINS]->(findings)
	`, nil); err != nil {
		return errors.Wrap(err, "failed to create taxonomy scaffold")
	}

	if _, err := s.session.Run(`
		MERGE (relSchema:RelationshipSchema {name: 'Relationship Schema'})
	`, nil); err != nil {
		return errors.Wrap(err, "failed to create relationship schema node")
	}

	descriptions := map[graph.RelationType]string{
		graph.RelAffects:     "A condition affects an anatomical structure",
		graph.RelInvolves:    "A condition involves a mechanism",
		graph.RelTreats:      "A treatment addresses a condition",
		graph.RelDiagnoses:   "A diagnostic procedure diagnoses a condition",
		graph.RelIndicates:   "A finding indicates a condition",
		graph.RelPerformedOn: "A procedure is performed on an anatomical structure",
		graph.RelConnectedTo: "An anatomical structure is connected to another",
		graph.RelLeadsTo:     "A mechanism leads to another mechanism",
	}
	for _, rt := range graph.AllRelationTypes {
		if _, err := s.session.Run(`
			MATCH (relSchema:RelationshipSchema {name: 'Relationship Schema'})
			MERGE (t:RelationType {name: $name})
			ON CREATE SET t.description = $description
			MERGE (relSchema)-[:DEFINES]->(t)
		`, map[string]interface{}{
			"name":        rt.Type(),
			"description": descriptions[rt],
		}); err != nil {
			return errors.Wrapf(err, "failed to create relation type %s", rt)
		}
	}

	s.logger.Info("Cardiology schema initialized")
	return nil
}

// Reset destroys the whole graph. Irreversible.
func (s *Neo4jStore) Reset(ctx context.Context) error {
	_, err := s.session.Run("MATCH (n) DETACH DELETE n", nil)
	return errors.Wrap(err, "failed to reset graph")
}

// MergeSource implements GraphStore.
func (s *Neo4jStore) MergeSource(ctx context.Context, doc *graph.Document) (string, error) {
	id := doc.SourceID()
	title := doc.Title
	if title == "" {
		title = "Untitled"
	}

	query := `
		MERGE (s:Source {id: $id})
		ON CREATE SET s.type = $type,
		              s.title = $title,
		              s.url = $url
	`
	params := map[string]interface{}{
		"id":    id,
		"type":  doc.SourceType,
		"title": title,
		"url":   doc.URL,
	}

	if doc.SourceType == "pubmed" {
		query += ", s.journal = $journal, s.publication_date = $publication_date, s.pmid = $pmid"
		params["journal"] = doc.Journal
		params["publication_date"] = doc.PublicationDate
		params["pmid"] = doc.PMID
	}

	if _, err := s.session.Run(query, params); err != nil {
		return "", errors.Wrapf(err, "failed to merge source %s", id)
	}
	return id, nil
}

// MergeEntity implements GraphStore. The entity label comes from the closed
// enum; the name is case-normalized and passed as a parameter.
func (s *Neo4jStore) MergeEntity(ctx context.Context, mention graph.EntityMention, sourceID string) error {
	label := mention.Type.Label()
	name := graph.NormalizeName(mention.Text)

	query := fmt.Sprintf(`
		MERGE (e:%s {name: $name})
		ON CREATE SET e.frequency = 1
		ON MATCH SET e.frequency = e.frequency + 1

		WITH e

		MATCH (s:Source {id: $source_id})
		MERGE (e)-[r:MENTIONED_IN]->(s)
		ON CREATE SET r.count = 1
		ON MATCH SET r.count = r.count + 1

		RETURN e.name, e.frequency
	`, label)

	if _, err := s.session.Run(query, map[string]interface{}{
		"name":      name,
		"source_id": sourceID,
	}); err != nil {
		return errors.Wrapf(err, "failed to merge entity %q", name)
	}

	// The category MATCH silently finds nothing when the derived name has
	// no bootstrap counterpart (see EntityType.CategoryName).
	categoryQuery := fmt.Sprintf(`
		MATCH (e:%s {name: $name})
		MATCH (c:Category {name: $category})
		MERGE (c)-[:CONTAINS]->(e)
	`, label)

	if _, err := s.session.Run(categoryQuery, map[string]interface{}{
		"name":     name,
		"category": mention.Type.CategoryName(),
	}); err != nil {
		return errors.Wrapf(err, "failed to link entity %q to category", name)
	}
	return nil
}

// MergeRelationship implements GraphStore, carrying the running-average
// confidence formula in the ON MATCH clause.
func (s *Neo4jStore) MergeRelationship(ctx context.Context, obs graph.Observation, sourceID string) error {
	query := fmt.Sprintf(`
		MATCH (subj:%s {name: $subject})
		MATCH (obj:%s {name: $object})
		MATCH (s:Source {id: $source_id})

		MERGE (subj)-[r:%s]->(obj)
		ON CREATE SET r.count = 1,
		              r.confidence = $confidence,
		              r.evidence_count = 1
		ON MATCH SET r.count = r.count + 1,
		             r.confidence = (r.confidence * r.evidence_count + $confidence) / (r.evidence_count + 1),
		             r.evidence_count = r.evidence_count + 1

		MERGE (r)-[e:EVIDENCE]->(s)
		ON CREATE SET e.context = $context

		RETURN subj.name, type(r), obj.name
	`, obs.SubjectType.Label(), obs.ObjectType.Label(), obs.Relation.Type())

	result, err := s.session.Run(query, map[string]interface{}{
		"subject":    graph.NormalizeName(obs.Subject),
		"object":     graph.NormalizeName(obs.Object),
		"source_id":  sourceID,
		"confidence": obs.Confidence,
		"context":    obs.Context,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to merge relationship %s-%s->%s",
			obs.Subject, obs.Relation, obs.Object)
	}
	if !result.Next() {
		return graph.ErrMissingEntity
	}
	return nil
}

// RecomputeDualProcessLabels implements GraphStore as two whole-graph CASE
// passes, one per system.
func (s *Neo4jStore) RecomputeDualProcessLabels(ctx context.Context) (int64, error) {
	system1Query := `
		MATCH ()-[r]->()
		WHERE ` + structuralEdgeFilter + `
		SET r.system1_strength = CASE
			WHEN r.count > 5 AND r.confidence > 0.7 THEN 'high'
			WHEN r.count > 2 AND r.confidence > 0.5 THEN 'medium'
			ELSE 'low'
		END
		RETURN count(r) as updated
	`
	system2Query := `
		MATCH ()-[r]->()
		WHERE ` + structuralEdgeFilter + `
		SET r.system2_relevance = CASE
			WHEN r.evidence_count > 3 THEN 'high'
			WHEN r.evidence_count > 1 THEN 'medium'
			ELSE 'low'
		END
		RETURN count(r) as updated
	`

	count1, err := s.runCountQuery(system1Query)
	if err != nil {
		return 0, errors.Wrap(err, "system 1 pass failed")
	}
	count2, err := s.runCountQuery(system2Query)
	if err != nil {
		return 0, errors.Wrap(err, "system 2 pass failed")
	}

	if count2 > count1 {
		count1 = count2
	}
	return count1, nil
}

func (s *Neo4jStore) runCountQuery(query string) (int64, error) {
	result, err := s.session.Run(query, nil)
	if err != nil {
		return 0, err
	}
	if result.Next() {
		return asInt64(result.Record().Values[0]), nil
	}
	return 0, result.Err()
}

// NeighborEdges implements GraphStore with one directed query per direction,
// each ordered and capped before the rows are merged.
func (s *Neo4jStore) NeighborEdges(ctx context.Context, q graph.NeighborQuery) ([]graph.EdgeRow, error) {
	where := structuralEdgeFilter
	if q.Filter == graph.FilterSystem1 {
		where += " AND (r.system1_strength = 'high' OR r.system1_strength = 'medium')"
	}

	var orderBy string
	switch q.Order {
	case graph.OrderRelevanceEvidence:
		orderBy = `ORDER BY CASE r.system2_relevance WHEN 'high' THEN 2 WHEN 'medium' THEN 1 ELSE 0 END DESC,
			r.evidence_count DESC`
	case graph.OrderCount:
		orderBy = "ORDER BY r.count DESC"
	default:
		orderBy = "ORDER BY r.count DESC, r.confidence DESC"
	}

	focal := "(n {name: $name})"
	if q.Type != nil {
		focal = fmt.Sprintf("(n:%s {name: $name})", q.Type.Label())
	}

	returns := `r.count as count, r.confidence as confidence,
		r.evidence_count as evidence_count,
		r.system1_strength as system1_strength,
		r.system2_relevance as system2_relevance`

	outgoing := fmt.Sprintf(`
		MATCH %s
		MATCH (n)-[r]->(target)
		WHERE %s
		WITH n, r, target
		%s
		LIMIT $limit
		RETURN n.name as source_name, labels(n)[0] as source_type,
		       type(r) as relationship,
		       target.name as target_name, labels(target)[0] as target_type,
		       %s
	`, focal, where, orderBy, returns)

	incoming := fmt.Sprintf(`
		MATCH %s
		MATCH (source)-[r]->(n)
		WHERE %s
		WITH n, r, source
		%s
		LIMIT $limit
		RETURN source.name as source_name, labels(source)[0] as source_type,
		       type(r) as relationship,
		       n.name as target_name, labels(n)[0] as target_type,
		       %s
	`, focal, where, orderBy, returns)

	params := map[string]interface{}{
		"name":  graph.NormalizeName(q.Entity),
		"limit": q.Limit,
	}

	rows, err := s.collectEdgeRows(outgoing, params)
	if err != nil {
		return nil, errors.Wrap(err, "outgoing neighbor query failed")
	}
	incomingRows, err := s.collectEdgeRows(incoming, params)
	if err != nil {
		return nil, errors.Wrap(err, "incoming neighbor query failed")
	}
	return append(rows, incomingRows...), nil
}

func (s *Neo4jStore) collectEdgeRows(query string, params map[string]interface{}) ([]graph.EdgeRow, error) {
	result, err := s.session.Run(query, params)
	if err != nil {
		return nil, err
	}

	rows := make([]graph.EdgeRow, 0, 16)
	for result.Next() {
		record := result.Record()
		rows = append(rows, graph.EdgeRow{
			SourceName:       asString(recordValue(record, "source_name")),
			SourceType:       asString(recordValue(record, "source_type")),
			Relation:         asString(recordValue(record, "relationship")),
			TargetName:       asString(recordValue(record, "target_name")),
			TargetType:       asString(recordValue(record, "target_type")),
			Count:            asInt64(recordValue(record, "count")),
			Confidence:       asFloat64(recordValue(record, "confidence")),
			EvidenceCount:    asInt64(recordValue(record, "evidence_count")),
			System1Strength:  asLabel(recordValue(record, "system1_strength")),
			System2Relevance: asLabel(recordValue(record, "system2_relevance")),
		})
	}
	return rows, result.Err()
}

// GetEntity implements GraphStore.
func (s *Neo4jStore) GetEntity(ctx context.Context, name string, entityType *graph.EntityType) (*graph.EntityRecord, bool, error) {
	focal := "(n {name: $name})"
	if entityType != nil {
		focal = fmt.Sprintf("(n:%s {name: $name})", entityType.Label())
	}

	query := fmt.Sprintf(`
		MATCH %s
		OPTIONAL MATCH (n)-[r:MENTIONED_IN]->(s:Source)
		WITH n, collect({
			source_id: s.id,
			source_title: s.title,
			source_type: s.type,
			mention_count: r.count
		}) as sources
		RETURN n.name as name,
		       labels(n)[0] as type,
		       n.frequency as total_frequency,
		       sources
	`, focal)

	result, err := s.session.Run(query, map[string]interface{}{
		"name": graph.NormalizeName(name),
	})
	if err != nil {
		return nil, false, errors.Wrapf(err, "entity lookup failed for %q", name)
	}
	if !result.Next() {
		return nil, false, result.Err()
	}

	record := result.Record()
	parsedType, err := graph.ParseEntityType(asString(recordValue(record, "type")))
	if err != nil {
		return nil, false, nil
	}

	entity := &graph.EntityRecord{
		Name:      asString(recordValue(record, "name")),
		Type:      parsedType,
		Frequency: asInt64(recordValue(record, "total_frequency")),
	}

	if raw, ok := recordValue(record, "sources").([]interface{}); ok {
		for _, item := range raw {
			m, ok := item.(map[string]interface{})
			if !ok || m["source_id"] == nil {
				continue
			}
			entity.Sources = append(entity.Sources, graph.SourceMention{
				SourceID:     asString(m["source_id"]),
				SourceTitle:  asString(m["source_title"]),
				SourceType:   asString(m["source_type"]),
				MentionCount: asInt64(m["mention_count"]),
			})
		}
	}
	return entity, true, nil
}

// RelatedEntities implements GraphStore.
func (s *Neo4jStore) RelatedEntities(ctx context.Context, name string, entityType *graph.EntityType, limit int) ([]graph.RelatedEntity, error) {
	focal := "(n {name: $name})"
	if entityType != nil {
		focal = fmt.Sprintf("(n:%s {name: $name})", entityType.Label())
	}

	query := fmt.Sprintf(`
		MATCH %s
		MATCH (n)-[r]->(target)
		WHERE %s
		RETURN target.name as entity_name,
		       labels(target)[0] as entity_type,
		       type(r) as relationship,
		       r.count as frequency
		UNION
		MATCH %s
		MATCH (source)-[r]->(n)
		WHERE %s
		RETURN source.name as entity_name,
		       labels(source)[0] as entity_type,
		       type(r) as relationship,
		       r.count as frequency
		ORDER BY frequency DESC
		LIMIT $limit
	`, focal, structuralEdgeFilter, focal, structuralEdgeFilter)

	result, err := s.session.Run(query, map[string]interface{}{
		"name":  graph.NormalizeName(name),
		"limit": limit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "related entity query failed for %q", name)
	}

	related := make([]graph.RelatedEntity, 0, limit)
	for result.Next() {
		record := result.Record()
		if recordValue(record, "entity_name") == nil {
			continue
		}
		related = append(related, graph.RelatedEntity{
			Name:     asString(recordValue(record, "entity_name")),
			Type:     asString(recordValue(record, "entity_type")),
			Relation: asString(recordValue(record, "relationship")),
			Count:    asInt64(recordValue(record, "frequency")),
		})
	}
	return related, result.Err()
}

// SearchEntities implements GraphStore. Case-insensitive substring match,
// excluding taxonomy and source nodes.
func (s *Neo4jStore) SearchEntities(ctx context.Context, term string, limit int) ([]graph.EntityHit, error) {
	query := `
		MATCH (n)
		WHERE toLower(n.name) CONTAINS toLower($term)
		AND NOT n:Category AND NOT n:Source AND NOT n:Root
		AND NOT n:RelationshipSchema AND NOT n:RelationType
		RETURN n.name as name,
		       labels(n)[0] as type,
		       n.frequency as frequency
		ORDER BY n.frequency DESC
		LIMIT $limit
	`

	result, err := s.session.Run(query, map[string]interface{}{
		"term":  term,
		"limit": limit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "entity search failed for %q", term)
	}

	hits := make([]graph.EntityHit, 0, limit)
	for result.Next() {
		record := result.Record()
		hits = append(hits, graph.EntityHit{
			Name:      asString(recordValue(record, "name")),
			Type:      asString(recordValue(record, "type")),
			Frequency: asInt64(recordValue(record, "frequency")),
		})
	}
	return hits, result.Err()
}

func recordValue(record *neo4j.Record, key string) interface{} {
	value, _ := record.Get(key)
	return value
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func asFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func asLabel(v interface{}) graph.DualProcessLabel {
	if s, ok := v.(string); ok && s != "" {
		return graph.DualProcessLabel(s)
	}
	return graph.LabelLow
}
