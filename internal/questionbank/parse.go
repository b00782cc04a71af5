package questionbank

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// DefaultPriority is given to categories that match nothing in the table.
const DefaultPriority = 8

type Question struct {
	Text     string `json:"text"`
	Category string `json:"category"`
	Priority int    `json:"priority"`
}

type QuestionSet struct {
	Symptom             string                `json:"symptom"`
	TotalQuestions      int                   `json:"total_questions"`
	Categories          []string              `json:"categories"`
	QuestionsByCategory map[string][]Question `json:"questions_by_category"`
	Prioritized         []Question            `json:"prioritized_questions"`
	Message             string                `json:"message,omitempty"`
}

func (s *QuestionSet) Empty() bool { return s == nil || len(s.Prioritized) == 0 }

var categoryKeywords = []string{
	"symptom details",
	"vital signs",
	"medical history",
	"red flags",
	"lifestyle",
	"psychosocial",
}

type priorityEntry struct {
	name     string
	priority int
}

// ordered; the first entry that overlaps a category wins
var priorityTable = []priorityEntry{
	{"Red Flags", 1},
	{"Vital Signs", 2},
	{"Symptom Details", 3},
	{"Medical History", 4},
	{"Past Medical History", 5},
	{"Lifestyle Risk Factors", 6},
	{"Psychosocial", 7},
}

var (
	numberMarker = regexp.MustCompile(`^\d+\.\s*`)
	bulletMarker = regexp.MustCompile(`^[-•]\s*`)
)

const minQuestionLen = 10

// Parse extracts categorized questions from a retrieved symptom document.
func Parse(content, symptom string) *QuestionSet {
	byCategory := map[string][]Question{}
	var categories []string
	current := ""

	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if strings.HasSuffix(line, ":") && isCategoryHeader(line) {
			current = strings.TrimRight(line, ":")
			if _, seen := byCategory[current]; !seen {
				categories = append(categories, current)
			}
			byCategory[current] = []Question{}
			continue
		}

		if current == "" || !looksLikeQuestion(line) {
			continue
		}

		text := numberMarker.ReplaceAllString(line, "")
		text = bulletMarker.ReplaceAllString(text, "")
		text = strings.TrimSpace(text)
		if isNoise(text) || utf8.RuneCountInString(text) <= minQuestionLen {
			continue
		}

		byCategory[current] = append(byCategory[current], Question{
			Text:     text,
			Category: current,
			Priority: Priority(current),
		})
	}

	set := &QuestionSet{
		Symptom:             symptom,
		Categories:          categories,
		QuestionsByCategory: byCategory,
	}
	if set.Categories == nil {
		set.Categories = []string{}
	}
	for _, c := range categories {
		set.TotalQuestions += len(byCategory[c])
	}
	set.Prioritized = prioritize(categories, byCategory)
	return set
}

func isCategoryHeader(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range categoryKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func looksLikeQuestion(line string) bool {
	for _, m := range []string{"1.", "2.", "3.", "4.", "5.", "-", "•"} {
		if strings.HasPrefix(line, m) {
			return true
		}
	}
	return strings.HasSuffix(line, "?")
}

// isNoise reports separator rules such as "-----" or "=====".
func isNoise(text string) bool {
	return strings.Trim(text, "-•=*_ \t") == ""
}

// Priority ranks a category name, 1 being the most urgent.
func Priority(category string) int {
	words := significantWords(category)
	if len(words) == 0 {
		return DefaultPriority
	}

	joined := strings.Join(words, " ")
	for _, e := range priorityTable {
		if strings.Join(significantWords(e.name), " ") == joined {
			return e.priority
		}
	}

	have := map[string]bool{}
	for _, w := range words {
		have[w] = true
	}
	for _, e := range priorityTable {
		for _, w := range significantWords(e.name) {
			if have[w] {
				return e.priority
			}
		}
	}
	return DefaultPriority
}

// significantWords lowercases and splits s, dropping the generic "questions".
func significantWords(s string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ":,.;()")
		if w == "" || w == "questions" || w == "question" {
			continue
		}
		out = append(out, w)
	}
	return out
}

func prioritize(categories []string, byCategory map[string][]Question) []Question {
	all := make([]Question, 0)
	for _, c := range categories {
		all = append(all, byCategory[c]...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Priority != all[j].Priority {
			return all[i].Priority < all[j].Priority
		}
		return all[i].Category < all[j].Category
	})
	return all
}
