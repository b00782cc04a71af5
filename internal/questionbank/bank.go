package questionbank

import (
	"context"
	"fmt"
	"log"
	"strings"
)

const DocTypeMedicalSymptom = "medical_symptom"

// Document is one retrieved text block with its metadata
// ("type", "symptom", "source").
type Document struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]Document, error)
}

type Cache interface {
	GetQuestions(ctx context.Context, symptom string) (*QuestionSet, bool, error)
	SetQuestions(ctx context.Context, symptom string, set *QuestionSet) error
}

type Bank struct {
	retriever Retriever
	cache     Cache
}

// NewBank builds a question bank over retriever. cache may be nil.
func NewBank(retriever Retriever, cache Cache) *Bank {
	return &Bank{retriever: retriever, cache: cache}
}

// Lookup finds and parses the best follow-up document for symptom.
// A miss is not an error: the returned set is empty and carries a Message.
func (b *Bank) Lookup(ctx context.Context, symptom string) (*QuestionSet, error) {
	symptom = strings.TrimSpace(symptom)
	key := strings.ToLower(symptom)

	if b.cache != nil {
		set, ok, err := b.cache.GetQuestions(ctx, key)
		if err != nil {
			log.Printf("[questionbank] cache get symptom=%q err=%v", key, err)
		} else if ok {
			return set, nil
		}
	}

	query := fmt.Sprintf("medical symptom %s follow-up questions assessment", symptom)
	docs, err := b.retriever.Retrieve(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieve %q: %w", symptom, err)
	}

	best, ok := pickDocument(docs, key)
	if !ok {
		return &QuestionSet{
			Symptom:             symptom,
			Categories:          []string{},
			QuestionsByCategory: map[string][]Question{},
			Prioritized:         []Question{},
			Message:             fmt.Sprintf("No specific follow-up questions found for %s. Please use general assessment questions.", symptom),
		}, nil
	}

	set := Parse(best.Content, symptom)
	if b.cache != nil && !set.Empty() {
		if err := b.cache.SetQuestions(ctx, key, set); err != nil {
			log.Printf("[questionbank] cache set symptom=%q err=%v", key, err)
		}
	}
	return set, nil
}

// pickDocument prefers symptom documents labelled with the symptom, then any
// document whose text mentions both "symptom" and the symptom itself.
func pickDocument(docs []Document, symptom string) (Document, bool) {
	for _, d := range docs {
		if d.Metadata["type"] == DocTypeMedicalSymptom &&
			strings.Contains(strings.ToLower(d.Metadata["symptom"]), symptom) {
			return d, true
		}
	}
	for _, d := range docs {
		lower := strings.ToLower(d.Content)
		if strings.Contains(lower, "symptom") && strings.Contains(lower, symptom) {
			return d, true
		}
	}
	return Document{}, false
}

// FollowUps returns up to limit prioritized questions for symptom, reworded
// for patients.
func (b *Bank) FollowUps(ctx context.Context, symptom string, limit int) ([]Question, error) {
	set, err := b.Lookup(ctx, symptom)
	if err != nil {
		return nil, err
	}
	qs := set.Prioritized
	if limit > 0 && len(qs) > limit {
		qs = qs[:limit]
	}
	out := make([]Question, 0, len(qs))
	for _, q := range qs {
		q.Text = MakePatientFriendly(q.Text)
		out = append(out, q)
	}
	return out, nil
}

// PatientFriendly renders a numbered question list for display.
func (b *Bank) PatientFriendly(ctx context.Context, symptom string, limit int) string {
	if limit <= 0 {
		limit = 10
	}
	qs, err := b.FollowUps(ctx, symptom, limit)
	if err != nil {
		log.Printf("[questionbank] follow-ups symptom=%q err=%v", symptom, err)
		return fmt.Sprintf("Let me ask you about your %s. When did it start?", symptom)
	}
	if len(qs) == 0 {
		return fmt.Sprintf("Let me ask you some questions about your %s.", symptom)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "I'd like to ask you some questions about your %s:\n\n", symptom)
	for i, q := range qs {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%d. %s", i+1, q.Text)
	}
	return sb.String()
}
