package questionbank

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
	"unicode"

	"gorm.io/gorm"
)

const (
	defaultTopK     = 5
	maxScanDocs     = 1000
	SourceSymptomDB = "medical_symptoms_database"
)

type KnowledgeDocument struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	DocType   string    `gorm:"type:varchar(64);index;not null" json:"doc_type"`
	Symptom   string    `gorm:"type:varchar(255);index" json:"symptom"`
	Source    string    `gorm:"type:varchar(128)" json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

func (KnowledgeDocument) TableName() string { return "knowledge_documents" }

// SymptomEntry is one record of the symptom question JSON file.
type SymptomEntry struct {
	Symptom           string              `json:"symptom"`
	FollowUpQuestions map[string][]string `json:"follow_up_questions"`
}

// DocumentStore keeps knowledge documents in the relational store and
// answers free-text queries by token overlap.
type DocumentStore struct {
	db   *gorm.DB
	topK int
}

func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db, topK: defaultTopK}
}

func (s *DocumentStore) Add(ctx context.Context, docs ...KnowledgeDocument) error {
	if len(docs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&docs).Error
}

// ReplaceSymptoms stores one document per entry, replacing earlier imports of
// the same symptom.
func (s *DocumentStore) ReplaceSymptoms(ctx context.Context, entries []SymptomEntry) (int, error) {
	n := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, e := range entries {
			symptom := strings.TrimSpace(e.Symptom)
			if symptom == "" {
				continue
			}
			if err := tx.Where("symptom = ? AND source = ?", symptom, SourceSymptomDB).
				Delete(&KnowledgeDocument{}).Error; err != nil {
				return err
			}
			doc := KnowledgeDocument{
				Content: BuildDocument(e),
				DocType: DocTypeMedicalSymptom,
				Symptom: symptom,
				Source:  SourceSymptomDB,
			}
			if err := tx.Create(&doc).Error; err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ImportFile loads a JSON array of SymptomEntry from path.
func (s *DocumentStore) ImportFile(ctx context.Context, path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var entries []SymptomEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return 0, fmt.Errorf("decode %s: %w", path, err)
	}
	return s.ReplaceSymptoms(ctx, entries)
}

// Retrieve returns up to topK documents sharing the most tokens with query.
func (s *DocumentStore) Retrieve(ctx context.Context, query string) ([]Document, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	var rows []KnowledgeDocument
	if err := s.db.WithContext(ctx).
		Order("id ASC").
		Limit(maxScanDocs).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	lowerQuery := strings.ToLower(query)
	type scored struct {
		doc   KnowledgeDocument
		score int
	}
	var hits []scored
	for _, row := range rows {
		have := map[string]bool{}
		for _, t := range tokenize(row.Content + " " + row.Symptom) {
			have[t] = true
		}
		score := 0
		for _, t := range terms {
			if have[t] {
				score++
			}
		}
		if row.Symptom != "" && strings.Contains(lowerQuery, strings.ToLower(row.Symptom)) {
			score += len(terms)
		}
		if score > 0 {
			hits = append(hits, scored{doc: row, score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > s.topK {
		hits = hits[:s.topK]
	}

	out := make([]Document, 0, len(hits))
	for _, h := range hits {
		out = append(out, Document{
			Content: h.doc.Content,
			Metadata: map[string]string{
				"type":    h.doc.DocType,
				"symptom": h.doc.Symptom,
				"source":  h.doc.Source,
			},
		})
	}
	return out, nil
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := map[string]bool{}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// BuildDocument renders an entry in the layout Parse reads back: one
// "<Category> Questions:" header per category followed by numbered lines.
// Categories are written in name order.
func BuildDocument(e SymptomEntry) string {
	cats := make([]string, 0, len(e.FollowUpQuestions))
	for c := range e.FollowUpQuestions {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	parts := []string{
		"Medical Symptom: " + e.Symptom,
		strings.Repeat("=", 50),
	}
	keywords := []string{strings.ToLower(e.Symptom)}
	for _, c := range cats {
		parts = append(parts, "\n"+titleCase(strings.ReplaceAll(c, "_", " "))+" Questions:")
		parts = append(parts, strings.Repeat("-", 30))
		for i, q := range e.FollowUpQuestions[c] {
			parts = append(parts, fmt.Sprintf("%d. %s", i+1, q))
		}
		parts = append(parts, "")
		keywords = append(keywords, strings.ReplaceAll(c, "_", " "))
	}
	parts = append(parts, "\nSearchable Keywords:", strings.Join(keywords, ", "))
	return strings.Join(parts, "\n")
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
