package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(AllModels()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestGetOrCreate_Idempotent(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()
	uid := "user-1"

	first, created, err := repo.GetOrCreate(ctx, "sess-1", &uid)
	if err != nil {
		t.Fatalf("first get or create: %v", err)
	}
	if !created {
		t.Fatalf("expected first call to create the row")
	}
	if first.Stage != StageGreeting {
		t.Fatalf("expected greeting stage, got %q", first.Stage)
	}
	if len(first.Symptoms()) != 0 {
		t.Fatalf("expected no symptoms, got %v", first.Symptoms())
	}

	second, created, err := repo.GetOrCreate(ctx, "sess-1", nil)
	if err != nil {
		t.Fatalf("second get or create: %v", err)
	}
	if created {
		t.Fatalf("expected second call to reuse the row")
	}
	if second.ID != first.ID {
		t.Fatalf("expected same row, got ids %d and %d", first.ID, second.ID)
	}
	if second.UserID == nil || *second.UserID != uid {
		t.Fatalf("user id must not change, got %v", second.UserID)
	}

	var cnt int64
	if err := db.Model(&Consultation{}).Where("session_id = ?", "sess-1").Count(&cnt).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("expected 1 row, got %d", cnt)
	}
}

func TestUpdate_OnlyTouchesGivenFields(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	c, _, err := repo.GetOrCreate(ctx, "sess-1", nil)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	before := c.UpdatedAt

	time.Sleep(5 * time.Millisecond)
	name := "Jane Doe"
	symptoms := []string{"headache"}
	if err := repo.Update(ctx, "sess-1", ConsultationUpdate{PatientName: &name, Symptoms: &symptoms}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.GetBySessionID(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PatientName == nil || *got.PatientName != name {
		t.Fatalf("name not stored: %v", got.PatientName)
	}
	if got.PatientEmail != nil {
		t.Fatalf("email must stay unset, got %q", *got.PatientEmail)
	}
	if got.Stage != StageGreeting {
		t.Fatalf("stage must stay greeting, got %q", got.Stage)
	}
	if s := got.Symptoms(); len(s) != 1 || s[0] != "headache" {
		t.Fatalf("unexpected symptoms %v", s)
	}
	if !got.UpdatedAt.After(before) {
		t.Fatalf("expected updated_at to move forward: before=%s after=%s", before, got.UpdatedAt)
	}
}

func TestUpdate_EmptyIsNoop(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)

	if err := repo.Update(context.Background(), "missing", ConsultationUpdate{}); err != nil {
		t.Fatalf("empty update should be a no-op, got %v", err)
	}
}

func TestUpdate_MissingSession(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)

	next := StageCompleted
	err := repo.Update(context.Background(), "missing", ConsultationUpdate{Stage: &next})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSaveResponse_UnknownSession(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)

	err := repo.SaveResponse(context.Background(), &Response{
		SessionID:    "missing",
		QuestionID:   "q_0_0",
		QuestionText: "When did it start?",
		Category:     CategorySymptomDetails,
		ResponseText: "yesterday",
	})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestListResponses_OrderedByTimestamp(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	if _, _, err := repo.GetOrCreate(ctx, "sess-1", nil); err != nil {
		t.Fatalf("get or create: %v", err)
	}

	base := time.Now().Add(-time.Hour)
	for _, r := range []struct {
		id string
		at time.Time
	}{
		{"q_0_2", base.Add(2 * time.Minute)},
		{"q_0_0", base},
		{"q_0_1", base.Add(time.Minute)},
	} {
		if err := repo.SaveResponse(ctx, &Response{
			SessionID:    "sess-1",
			QuestionID:   r.id,
			QuestionText: "question " + r.id,
			Category:     CategorySymptomDetails,
			ResponseText: "answer " + r.id,
			CreatedAt:    r.at,
		}); err != nil {
			t.Fatalf("save response %s: %v", r.id, err)
		}
	}

	got, err := repo.ListResponses(ctx, "sess-1")
	if err != nil {
		t.Fatalf("list responses: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 responses, got %d", len(got))
	}
	for i, want := range []string{"q_0_0", "q_0_1", "q_0_2"} {
		if got[i].QuestionID != want {
			t.Fatalf("response %d: expected %s, got %s", i, want, got[i].QuestionID)
		}
	}

	ok, err := repo.HasResponse(ctx, "sess-1", "q_0_1")
	if err != nil || !ok {
		t.Fatalf("expected q_0_1 to be answered, ok=%v err=%v", ok, err)
	}
	ok, err = repo.HasResponse(ctx, "sess-1", "q_0_4")
	if err != nil || ok {
		t.Fatalf("expected q_0_4 to be unanswered, ok=%v err=%v", ok, err)
	}
}

func TestSaveSummary_Upserts(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	if _, _, err := repo.GetOrCreate(ctx, "sess-1", nil); err != nil {
		t.Fatalf("get or create: %v", err)
	}

	first, err := NewSummary("sess-1", "first", []string{"severe pain"}, nil, nil, nil)
	if err != nil {
		t.Fatalf("new summary: %v", err)
	}
	if err := repo.SaveSummary(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}

	second, err := NewSummary("sess-1", "second", nil, nil, []string{"rest"}, nil)
	if err != nil {
		t.Fatalf("new summary: %v", err)
	}
	if err := repo.SaveSummary(ctx, second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	var cnt int64
	if err := db.Model(&Summary{}).Where("session_id = ?", "sess-1").Count(&cnt).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("expected one summary row, got %d", cnt)
	}

	got, err := repo.GetSummary(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if got.SummaryText != "second" {
		t.Fatalf("expected replaced text, got %q", got.SummaryText)
	}
	if kf := Strings(got.KeyFindings); len(kf) != 0 {
		t.Fatalf("expected key findings replaced by [], got %v", kf)
	}
	if rec := Strings(got.Recommendations); len(rec) != 1 || rec[0] != "rest" {
		t.Fatalf("unexpected recommendations %v", rec)
	}
}

func TestGetBySessionID_UnknownStageFails(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	if _, _, err := repo.GetOrCreate(ctx, "sess-1", nil); err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if err := db.Exec("UPDATE patient_consultations SET consultation_stage = ? WHERE session_id = ?", "triage", "sess-1").Error; err != nil {
		t.Fatalf("corrupt stage: %v", err)
	}

	_, err := repo.GetBySessionID(ctx, "sess-1")
	if err == nil || !strings.Contains(err.Error(), ErrUnknownStage.Error()) {
		t.Fatalf("expected unknown stage error, got %v", err)
	}
}

func TestGetBySessionID_NotFound(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)

	_, err := repo.GetBySessionID(context.Background(), "missing")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSymptoms_MalformedReadsEmpty(t *testing.T) {
	c := &Consultation{SymptomsReported: "{not json"}
	if got := c.Symptoms(); len(got) != 0 {
		t.Fatalf("expected empty symptoms, got %v", got)
	}
}

func TestParseStage(t *testing.T) {
	for _, st := range Stages {
		got, err := ParseStage(string(st))
		if err != nil || got != st {
			t.Fatalf("parse %q: got %q err=%v", st, got, err)
		}
	}
	if _, err := ParseStage("GREETING"); !errors.Is(err, ErrUnknownStage) {
		t.Fatalf("expected ErrUnknownStage, got %v", err)
	}
	if _, err := Stage("bogus").Value(); !errors.Is(err, ErrUnknownStage) {
		t.Fatalf("expected Value to reject unknown stage, got %v", err)
	}
}
