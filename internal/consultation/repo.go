package consultation

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrSessionNotFound = errors.New("consultation session not found")

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// ConsultationUpdate enumerates the mutable consultation fields.
// Nil fields are left untouched.
type ConsultationUpdate struct {
	PatientName          *string
	PatientEmail         *string
	Stage                *Stage
	Symptoms             *[]string
	CurrentSymptomIndex  *int
	CurrentQuestionIndex *int
	LastQuestionID       *string
	LastQuestionText     *string
	LastQuestionCategory *string
	Completed            *bool
	SummaryGenerated     *bool
	EndTime              *time.Time
}

func (u ConsultationUpdate) columns() map[string]any {
	cols := map[string]any{}
	if u.PatientName != nil {
		cols["patient_name"] = *u.PatientName
	}
	if u.PatientEmail != nil {
		cols["patient_email"] = *u.PatientEmail
	}
	if u.Stage != nil {
		cols["consultation_stage"] = *u.Stage
	}
	if u.Symptoms != nil {
		cols["symptoms_reported"] = encodeSymptoms(*u.Symptoms)
	}
	if u.CurrentSymptomIndex != nil {
		cols["current_symptom_index"] = *u.CurrentSymptomIndex
	}
	if u.CurrentQuestionIndex != nil {
		cols["current_question_index"] = *u.CurrentQuestionIndex
	}
	if u.LastQuestionID != nil {
		cols["last_question_id"] = *u.LastQuestionID
	}
	if u.LastQuestionText != nil {
		cols["last_question_text"] = *u.LastQuestionText
	}
	if u.LastQuestionCategory != nil {
		cols["last_question_category"] = *u.LastQuestionCategory
	}
	if u.Completed != nil {
		cols["completed"] = *u.Completed
	}
	if u.SummaryGenerated != nil {
		cols["summary_generated"] = *u.SummaryGenerated
	}
	if u.EndTime != nil {
		cols["consultation_end_time"] = *u.EndTime
	}
	return cols
}

// GetOrCreate returns the consultation for sessionID, inserting a fresh one
// at the greeting stage when none exists. created reports whether this call
// inserted the row.
func (r *Repo) GetOrCreate(ctx context.Context, sessionID string, userID *string) (c *Consultation, created bool, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Consultation
		err := tx.Where("session_id = ?", sessionID).First(&existing).Error
		if err == nil {
			c = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now()
		fresh := &Consultation{
			SessionID:             sessionID,
			UserID:                userID,
			Stage:                 StageGreeting,
			SymptomsReported:      "[]",
			ConsultationStartTime: now,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(fresh)
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected == 1
		if created {
			c = fresh
			return nil
		}

		// lost an insert race; read the winner
		var winner Consultation
		if err := tx.Where("session_id = ?", sessionID).First(&winner).Error; err != nil {
			return err
		}
		c = &winner
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return c, created, nil
}

func (r *Repo) GetBySessionID(ctx context.Context, sessionID string) (*Consultation, error) {
	var c Consultation
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Update writes the non-nil fields of u and stamps updated_at.
// An empty update does nothing.
func (r *Repo) Update(ctx context.Context, sessionID string, u ConsultationUpdate) error {
	cols := u.columns()
	if len(cols) == 0 {
		return nil
	}
	cols["updated_at"] = time.Now()

	res := r.db.WithContext(ctx).Model(&Consultation{}).
		Where("session_id = ?", sessionID).
		Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.ensureExists(r.db.WithContext(ctx), sessionID)
	}
	return nil
}

func (r *Repo) ensureExists(tx *gorm.DB, sessionID string) error {
	var cnt int64
	if err := tx.Model(&Consultation{}).
		Where("session_id = ?", sessionID).
		Count(&cnt).Error; err != nil {
		return err
	}
	if cnt == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// SaveResponse appends an answer. Responses are never updated.
func (r *Repo) SaveResponse(ctx context.Context, resp *Response) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.ensureExists(tx, resp.SessionID); err != nil {
			return err
		}
		resp.ID = 0
		return tx.Create(resp).Error
	})
}

func (r *Repo) HasResponse(ctx context.Context, sessionID, questionID string) (bool, error) {
	var cnt int64
	if err := r.db.WithContext(ctx).Model(&Response{}).
		Where("session_id = ? AND question_id = ?", sessionID, questionID).
		Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

// ListResponses returns the session's responses in the order they were given.
func (r *Repo) ListResponses(ctx context.Context, sessionID string) ([]Response, error) {
	var out []Response
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("response_timestamp ASC").
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// SaveSummary inserts the session summary or replaces the existing one.
func (r *Repo) SaveSummary(ctx context.Context, s *Summary) error {
	if s.GeneratedAt.IsZero() {
		s.GeneratedAt = time.Now()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.ensureExists(tx, s.SessionID); err != nil {
			return err
		}
		return upsertSummary(tx, s)
	})
}

// Finalize stores the summary and closes the consultation in one transaction.
func (r *Repo) Finalize(ctx context.Context, s *Summary, endTime time.Time) error {
	if s.GeneratedAt.IsZero() {
		s.GeneratedAt = endTime
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.ensureExists(tx, s.SessionID); err != nil {
			return err
		}
		if err := upsertSummary(tx, s); err != nil {
			return err
		}
		return tx.Model(&Consultation{}).
			Where("session_id = ?", s.SessionID).
			Updates(map[string]any{
				"completed":             true,
				"summary_generated":     true,
				"consultation_end_time": endTime,
				"consultation_stage":    StageCompleted,
				"updated_at":            time.Now(),
			}).Error
	})
}

func upsertSummary(tx *gorm.DB, s *Summary) error {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"summary_text", "key_findings", "red_flags",
			"recommendations", "next_steps", "generated_at",
		}),
	}).Create(s).Error
}

func (r *Repo) GetSummary(ctx context.Context, sessionID string) (*Summary, error) {
	var s Summary
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ListCompleted returns finished consultations, newest first.
func (r *Repo) ListCompleted(ctx context.Context, limit int) ([]Consultation, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var out []Consultation
	if err := r.db.WithContext(ctx).
		Where("completed = ?", true).
		Order("consultation_start_time DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
