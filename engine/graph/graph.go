// Package graph persists the mapping set into Neo4j for downstream
// knowledge-graph builders: vocabulary terms and source traits become
// nodes, mapping records become MAPPED_TO edges carrying predicate,
// justification, and confidence.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/microbetraits/traitalign/engine/domain"
)

// Store provides graph operations for the mapping set.
type Store struct {
	driver neo4j.DriverWithContext
}

// New creates a Store over an existing driver.
func New(driver neo4j.DriverWithContext) *Store {
	return &Store{driver: driver}
}

// Connect opens a driver and wraps it in a Store.
func Connect(uri, user, pass string) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, pass, ""))
	if err != nil {
		return nil, fmt.Errorf("graph: connect %s: %w", uri, err)
	}
	return New(driver), nil
}

// Close releases the underlying driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// SaveTerm creates or updates a vocabulary term node.
func (s *Store) SaveTerm(ctx context.Context, t domain.Term) error {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MERGE (n:Term {id: $id}) SET n.label = $label, n.synonyms = $synonyms`
	_, err := sess.Run(ctx, cypher, map[string]any{
		"id":       t.ID,
		"label":    t.Label,
		"synonyms": t.Synonyms,
	})
	return err
}

// SaveMapping creates or updates the subject trait node and its
// MAPPED_TO edge onto the object term. The term node is merged too, so
// mappings can load before the vocabulary sync.
func (s *Store) SaveMapping(ctx context.Context, m domain.MappingRecord) error {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MERGE (a:Trait {id: $subject_id})
	           SET a.label = $subject_label
	           MERGE (b:Term {id: $object_id})
	           SET b.label = $object_label
	           MERGE (a)-[r:MAPPED_TO]->(b)
	           SET r.predicate = $predicate,
	               r.justification = $justification,
	               r.confidence = $confidence,
	               r.comment = $comment`
	_, err := sess.Run(ctx, cypher, map[string]any{
		"subject_id":    m.SubjectID,
		"subject_label": m.SubjectLabel,
		"object_id":     m.ObjectID,
		"object_label":  m.ObjectLabel,
		"predicate":     string(m.Predicate),
		"justification": string(m.Justification),
		"confidence":    m.Confidence,
		"comment":       m.Comment,
	})
	return err
}

// SaveEdgeTemplate persists a composed-trait edge template as a
// TraitCard node linked to its property pair and substrate. The organism
// subject is bound later by the graph builder, not here.
func (s *Store) SaveEdgeTemplate(ctx context.Context, e domain.EdgeTemplate) error {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MERGE (c:TraitCard {id: $card_id})
	           SET c.trait_name = $trait_name
	           MERGE (p:Property {id: $pos_id}) SET p.label = $pos_label
	           MERGE (n:Property {id: $neg_id}) SET n.label = $neg_label
	           MERGE (o:Chemical {id: $obj_id}) SET o.label = $obj_label
	           MERGE (c)-[:ASSERTS_WITH]->(p)
	           MERGE (c)-[:DENIES_WITH]->(n)
	           MERGE (c)-[:SUBSTRATE]->(o)`
	_, err := sess.Run(ctx, cypher, map[string]any{
		"card_id":    e.SourceCardID,
		"trait_name": e.TraitName,
		"pos_id":     e.PredicatePositive.ID,
		"pos_label":  e.PredicatePositive.Label,
		"neg_id":     e.PredicateNegative.ID,
		"neg_label":  e.PredicateNegative.Label,
		"obj_id":     e.Object.ID,
		"obj_label":  e.Object.Label,
	})
	return err
}

// SaveAll persists a full run result: every mapping and edge template.
// The first error aborts the sync; mappings already written stay.
func (s *Store) SaveAll(ctx context.Context, mappings []domain.MappingRecord, edges []domain.EdgeTemplate) error {
	for _, m := range mappings {
		if err := s.SaveMapping(ctx, m); err != nil {
			return fmt.Errorf("graph: mapping %s -> %s: %w", m.SubjectID, m.ObjectID, err)
		}
	}
	for _, e := range edges {
		if err := s.SaveEdgeTemplate(ctx, e); err != nil {
			return fmt.Errorf("graph: edge template %s: %w", e.SourceCardID, err)
		}
	}
	return nil
}

// MappingsFor returns the persisted mappings for one subject trait.
func (s *Store) MappingsFor(ctx context.Context, subjectID string) ([]domain.MappingRecord, error) {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH (a:Trait {id: $id})-[r:MAPPED_TO]->(b:Term)
	           RETURN a.label AS subject_label, b.id AS object_id, b.label AS object_label,
	                  r.predicate AS predicate, r.justification AS justification,
	                  r.confidence AS confidence, r.comment AS comment
	           ORDER BY r.confidence DESC, b.id`
	result, err := sess.Run(ctx, cypher, map[string]any{"id": subjectID})
	if err != nil {
		return nil, err
	}

	var out []domain.MappingRecord
	for result.Next(ctx) {
		rec := result.Record()
		m := domain.MappingRecord{SubjectID: subjectID}
		if v, ok := rec.Get("subject_label"); ok {
			m.SubjectLabel, _ = v.(string)
		}
		if v, ok := rec.Get("object_id"); ok {
			m.ObjectID, _ = v.(string)
		}
		if v, ok := rec.Get("object_label"); ok {
			m.ObjectLabel, _ = v.(string)
		}
		if v, ok := rec.Get("predicate"); ok {
			if s, ok := v.(string); ok {
				m.Predicate = domain.Predicate(s)
			}
		}
		if v, ok := rec.Get("justification"); ok {
			if s, ok := v.(string); ok {
				m.Justification = domain.Justification(s)
			}
		}
		if v, ok := rec.Get("confidence"); ok {
			m.Confidence, _ = v.(float64)
		}
		if v, ok := rec.Get("comment"); ok {
			m.Comment, _ = v.(string)
		}
		out = append(out, m)
	}
	return out, result.Err()
}
