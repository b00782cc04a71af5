package consultation

import "fmt"

const (
	// MaxQuestions caps follow-up questions for the whole session, not per symptom.
	MaxQuestions = 5

	CategorySymptomDetails = "symptom_details"
)

// Question is one follow-up question as asked.
type Question struct {
	Text     string
	Category string
}

// TemplateQuestions returns the fixed follow-up list for a symptom. The
// asking step and the answer-capture step both index into this list, so its
// length and order must not change between them.
func TemplateQuestions(symptom string) []Question {
	return []Question{
		{Text: fmt.Sprintf("When did your %s first start?", symptom), Category: CategorySymptomDetails},
		{Text: fmt.Sprintf("How would you describe your %s (mild, moderate, severe)?", symptom), Category: CategorySymptomDetails},
		{Text: fmt.Sprintf("Does your %s get worse with activity or at rest?", symptom), Category: CategorySymptomDetails},
		{Text: fmt.Sprintf("Have you taken any medication for your %s?", symptom), Category: CategorySymptomDetails},
		{Text: "Do you have any other symptoms that occur along with this one?", Category: CategorySymptomDetails},
	}
}

func QuestionID(symptomIdx, questionIdx int) string {
	return fmt.Sprintf("q_%d_%d", symptomIdx, questionIdx)
}

// askedTemplateQuestion recomputes the template question that was asked
// before the cursor moved to questionIdx.
func askedTemplateQuestion(symptom string, questionIdx int) Question {
	qs := TemplateQuestions(symptom)
	i := (questionIdx - 1) % len(qs)
	if i < 0 {
		i += len(qs)
	}
	return qs[i]
}
