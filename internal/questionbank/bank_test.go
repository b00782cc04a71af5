package questionbank

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRetriever struct {
	docs    []Document
	err     error
	queries []string
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string) ([]Document, error) {
	_ = ctx
	f.queries = append(f.queries, query)
	return f.docs, f.err
}

type memoryCache struct {
	sets map[string]*QuestionSet
}

func (m *memoryCache) GetQuestions(ctx context.Context, symptom string) (*QuestionSet, bool, error) {
	s, ok := m.sets[symptom]
	return s, ok, nil
}

func (m *memoryCache) SetQuestions(ctx context.Context, symptom string, set *QuestionSet) error {
	m.sets[symptom] = set
	return nil
}

func symptomDoc(symptom, content string) Document {
	return Document{
		Content:  content,
		Metadata: map[string]string{"type": DocTypeMedicalSymptom, "symptom": symptom},
	}
}

func TestLookup_PrefersLabelledDocument(t *testing.T) {
	r := &fakeRetriever{docs: []Document{
		{Content: "General symptom advice for chest pain", Metadata: map[string]string{"type": "article"}},
		symptomDoc("Headache", "Red Flags Questions:\n1. Is this the worst headache of your life?"),
		symptomDoc("Chest Pain", chestPainDoc),
	}}
	b := NewBank(r, nil)

	set, err := b.Lookup(context.Background(), "chest pain")
	require.NoError(t, err)
	require.Len(t, r.queries, 1)
	assert.Equal(t, "medical symptom chest pain follow-up questions assessment", r.queries[0])
	assert.Equal(t, 4, set.TotalQuestions)
	assert.Empty(t, set.Message)
}

func TestLookup_ContentFallback(t *testing.T) {
	r := &fakeRetriever{docs: []Document{
		{Content: "Symptom: cough\nSymptom Details:\n1. Is your cough dry or productive?"},
	}}
	set, err := NewBank(r, nil).Lookup(context.Background(), "Cough")
	require.NoError(t, err)
	require.Len(t, set.Prioritized, 1)
	assert.Equal(t, "Is your cough dry or productive?", set.Prioritized[0].Text)
}

func TestLookup_MissReturnsMessage(t *testing.T) {
	cache := &memoryCache{sets: map[string]*QuestionSet{}}
	r := &fakeRetriever{docs: []Document{symptomDoc("fever", "Red Flags Questions:\n1. Any stiff neck with the fever?")}}
	set, err := NewBank(r, cache).Lookup(context.Background(), "rash")
	require.NoError(t, err)
	assert.True(t, set.Empty())
	assert.Contains(t, set.Message, "No specific follow-up questions found for rash")
	assert.Empty(t, cache.sets, "misses must not be cached")
}

func TestLookup_UsesCache(t *testing.T) {
	cache := &memoryCache{sets: map[string]*QuestionSet{}}
	r := &fakeRetriever{docs: []Document{symptomDoc("chest pain", chestPainDoc)}}
	b := NewBank(r, cache)

	_, err := b.Lookup(context.Background(), "Chest Pain")
	require.NoError(t, err)
	require.Contains(t, cache.sets, "chest pain")

	set, err := b.Lookup(context.Background(), "chest pain")
	require.NoError(t, err)
	assert.Len(t, r.queries, 1, "second lookup should be served from cache")
	assert.Equal(t, 4, set.TotalQuestions)
}

func TestLookup_RetrieverError(t *testing.T) {
	boom := errors.New("index offline")
	_, err := NewBank(&fakeRetriever{err: boom}, nil).Lookup(context.Background(), "cough")
	require.ErrorIs(t, err, boom)
}

func TestFollowUps_LimitAndFriendlyWording(t *testing.T) {
	r := &fakeRetriever{docs: []Document{symptomDoc("chest pain", chestPainDoc)}}
	qs, err := NewBank(r, nil).FollowUps(context.Background(), "chest pain", 2)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, "Red Flags Questions", qs[0].Category)
	assert.Equal(t, "Have you had fainting or losing consciousness with the pain?", qs[1].Text)
}

func TestPatientFriendly(t *testing.T) {
	r := &fakeRetriever{docs: []Document{symptomDoc("chest pain", chestPainDoc)}}
	b := NewBank(r, nil)

	text := b.PatientFriendly(context.Background(), "chest pain", 0)
	assert.True(t, strings.HasPrefix(text, "I'd like to ask you some questions about your chest pain:\n\n1. "))
	assert.Contains(t, text, "\n4. ")

	empty := NewBank(&fakeRetriever{}, nil).PatientFriendly(context.Background(), "cough", 3)
	assert.Equal(t, "Let me ask you some questions about your cough.", empty)

	failing := NewBank(&fakeRetriever{err: errors.New("down")}, nil).PatientFriendly(context.Background(), "cough", 3)
	assert.Equal(t, "Let me ask you about your cough. When did it start?", failing)
}
