package consultation

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type Consultation struct {
	ID                    uint64     `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionID             string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"session_id"`
	UserID                *string    `gorm:"type:varchar(128);index" json:"user_id,omitempty"`
	PatientName           *string    `gorm:"type:varchar(255)" json:"patient_name"`
	PatientEmail          *string    `gorm:"type:varchar(255)" json:"patient_email"`
	Stage                 Stage      `gorm:"column:consultation_stage;type:varchar(32);not null" json:"consultation_stage"`
	SymptomsReported      string     `gorm:"type:text" json:"-"`
	CurrentSymptomIndex   int        `gorm:"not null;default:0" json:"current_symptom_index"`
	CurrentQuestionIndex  int        `gorm:"not null;default:0" json:"current_question_index"`
	LastQuestionID        *string    `gorm:"type:varchar(32)" json:"last_question_id,omitempty"`
	LastQuestionText      *string    `gorm:"type:text" json:"last_question_text,omitempty"`
	LastQuestionCategory  *string    `gorm:"type:varchar(128)" json:"last_question_category,omitempty"`
	ConsultationStartTime time.Time  `gorm:"not null" json:"consultation_start_time"`
	ConsultationEndTime   *time.Time `json:"consultation_end_time"`
	Completed             bool       `gorm:"not null;default:false" json:"completed"`
	SummaryGenerated      bool       `gorm:"not null;default:false" json:"summary_generated"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (Consultation) TableName() string { return "patient_consultations" }

// Symptoms decodes the persisted symptom list. A malformed value reads as empty.
func (c *Consultation) Symptoms() []string {
	if c.SymptomsReported == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(c.SymptomsReported), &out); err != nil {
		return nil
	}
	return out
}

func encodeSymptoms(list []string) string {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(b)
}

type Response struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID      string    `gorm:"type:varchar(64);index;not null" json:"session_id"`
	QuestionID     string    `gorm:"type:varchar(32);not null" json:"question_id"`
	QuestionText   string    `gorm:"type:text;not null" json:"question_text"`
	Category       string    `gorm:"column:question_category;type:varchar(128);not null" json:"category"`
	ResponseText   string    `gorm:"type:text;not null" json:"response_text"`
	SymptomName    *string   `gorm:"type:varchar(255)" json:"symptom_name,omitempty"`
	FollowUpNeeded bool      `gorm:"not null;default:false" json:"follow_up_needed"`
	CreatedAt      time.Time `gorm:"column:response_timestamp;index" json:"response_timestamp"`
}

func (Response) TableName() string { return "patient_responses" }

type Summary struct {
	ID              uint64         `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionID       string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"session_id"`
	SummaryText     string         `gorm:"type:text;not null" json:"summary_text"`
	KeyFindings     datatypes.JSON `json:"key_findings"`
	RedFlags        datatypes.JSON `json:"red_flags"`
	Recommendations datatypes.JSON `json:"recommendations"`
	NextSteps       datatypes.JSON `json:"next_steps"`
	GeneratedAt     time.Time      `gorm:"not null" json:"generated_at"`
}

func (Summary) TableName() string { return "consultation_summaries" }

// NewSummary builds a Summary row with each list column JSON-encoded.
// Nil lists are stored as [].
func NewSummary(sessionID, text string, keyFindings, redFlags, recommendations, nextSteps []string) (*Summary, error) {
	enc := func(v []string) (datatypes.JSON, error) {
		if v == nil {
			v = []string{}
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return datatypes.JSON(b), nil
	}

	s := &Summary{SessionID: sessionID, SummaryText: text}
	var err error
	if s.KeyFindings, err = enc(keyFindings); err != nil {
		return nil, err
	}
	if s.RedFlags, err = enc(redFlags); err != nil {
		return nil, err
	}
	if s.Recommendations, err = enc(recommendations); err != nil {
		return nil, err
	}
	if s.NextSteps, err = enc(nextSteps); err != nil {
		return nil, err
	}
	return s, nil
}

// Strings decodes one of the JSON list columns.
func Strings(v datatypes.JSON) []string {
	if len(v) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(v, &out); err != nil {
		return nil
	}
	return out
}

// AllModels lists every table this package owns, for AutoMigrate.
func AllModels() []any {
	return []any{&Consultation{}, &Response{}, &Summary{}}
}
