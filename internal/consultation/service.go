package consultation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/suPer8Hu/patient-intake/internal/common"
	"github.com/suPer8Hu/patient-intake/internal/questionbank"
	"gorm.io/gorm"
)

// QuestionSource supplies symptom-specific follow-up questions, best first.
type QuestionSource interface {
	FollowUps(ctx context.Context, symptom string, limit int) ([]questionbank.Question, error)
}

type Options struct {
	Questions    QuestionSource
	Locker       SessionLocker
	Publisher    Publisher
	MaxQuestions int
}

type Service struct {
	repo         *Repo
	questions    QuestionSource
	locker       SessionLocker
	summaries    *SummaryGenerator
	maxQuestions int
}

func NewService(repo *Repo, opts Options) *Service {
	if opts.MaxQuestions <= 0 || opts.MaxQuestions > MaxQuestions {
		opts.MaxQuestions = MaxQuestions
	}
	if opts.Locker == nil {
		opts.Locker = NewLocalLocker()
	}
	return &Service{
		repo:         repo,
		questions:    opts.Questions,
		locker:       opts.Locker,
		summaries:    NewSummaryGenerator(repo, opts.Publisher),
		maxQuestions: opts.MaxQuestions,
	}
}

type TurnInput struct {
	SessionID string
	UserID    *string
	Message   string
}

type TurnResult struct {
	SessionID string
	Messages  []string
	Stage     Stage
	// Entered lists the stages this turn moved into, in order.
	Entered      []Stage
	Completed    bool
	Consultation *Consultation
}

const (
	msgGreeting = "Hello! I'm PatientBot, your medical consultation assistant. " +
		"I'll help collect information about your symptoms for your healthcare provider.\n\n" +
		"This will take about 10-15 minutes. Let's start with your full name."
	msgAskEmail        = "Thank you, %s. Now I need your email address for sending you the consultation summary."
	msgAskSymptoms     = "Perfect! Now, %s, please tell me what symptoms or health concerns brought you here today. Describe them in your own words."
	msgInvalidEmail    = "Please provide a valid email address (example: name@email.com)."
	msgNeedInfo        = "Please provide the requested information so we can continue."
	msgSymptomsAck     = "I understand you're experiencing: %s.\n\nNow I'll ask you some specific questions about each symptom to help your healthcare provider better understand your condition."
	msgNeedSymptoms    = "Please describe your symptoms or health concerns."
	msgAlreadyComplete = "Your consultation is already complete."
)

var emailPattern = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.\w+$`)

// turn carries the state of one ProcessTurn call through the stage handlers.
type turn struct {
	c        *Consultation
	input    string
	messages []string
	entered  []Stage
}

func (t *turn) say(msg string) { t.messages = append(t.messages, msg) }

func (t *turn) enter(s Stage) {
	t.c.Stage = s
	t.entered = append(t.entered, s)
}

// ProcessTurn applies one user message to the session and returns what to
// show next. An empty SessionID starts a new session.
func (s *Service) ProcessTurn(ctx context.Context, in TurnInput) (*TurnResult, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		id, err := common.NewULID()
		if err != nil {
			return nil, err
		}
		sessionID = id
	}

	unlock, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("lock session: %w", err)
	}
	defer unlock()

	c, created, err := s.repo.GetOrCreate(ctx, sessionID, in.UserID)
	if err != nil {
		return nil, err
	}
	if created {
		log.Printf("[ProcessTurn] new consultation session=%s", sessionID)
	}
	if !Owns(c, in.UserID) {
		return nil, ErrSessionNotFound
	}

	t := &turn{c: c, input: strings.TrimSpace(in.Message)}
	switch c.Stage {
	case StageGreeting:
		err = s.greet(ctx, t)
	case StageCollectingInfo:
		err = s.collectBasicInfo(ctx, t)
	case StageCollectingSymptoms:
		err = s.collectSymptoms(ctx, t)
	case StageCompleted:
		err = s.replaySummary(ctx, t)
	default:
		// summary, follow-up, or anything unexpected
		err = s.followUp(ctx, t)
	}
	if err != nil {
		log.Printf("[ProcessTurn] session=%s stage=%s err=%v", sessionID, c.Stage, err)
		return nil, err
	}

	return &TurnResult{
		SessionID:    sessionID,
		Messages:     t.messages,
		Stage:        c.Stage,
		Entered:      t.entered,
		Completed:    c.Completed,
		Consultation: c,
	}, nil
}

func (s *Service) greet(ctx context.Context, t *turn) error {
	next := StageCollectingInfo
	if err := s.repo.Update(ctx, t.c.SessionID, ConsultationUpdate{Stage: &next}); err != nil {
		return err
	}
	t.enter(next)
	t.say(msgGreeting)
	return nil
}

func (s *Service) collectBasicInfo(ctx context.Context, t *turn) error {
	c := t.c
	switch {
	case isBlank(c.PatientName) && t.input != "":
		name := t.input
		if err := s.repo.Update(ctx, c.SessionID, ConsultationUpdate{PatientName: &name}); err != nil {
			return err
		}
		c.PatientName = &name
		t.say(fmt.Sprintf(msgAskEmail, name))

	case isBlank(c.PatientEmail) && t.input != "":
		if !emailPattern.MatchString(t.input) {
			t.say(msgInvalidEmail)
			return nil
		}
		email := t.input
		next := StageCollectingSymptoms
		if err := s.repo.Update(ctx, c.SessionID, ConsultationUpdate{PatientEmail: &email, Stage: &next}); err != nil {
			return err
		}
		c.PatientEmail = &email
		t.enter(next)
		t.say(fmt.Sprintf(msgAskSymptoms, deref(c.PatientName)))

	default:
		t.say(msgNeedInfo)
	}
	return nil
}

func (s *Service) collectSymptoms(ctx context.Context, t *turn) error {
	c := t.c
	if t.input == "" || len(c.Symptoms()) > 0 {
		t.say(msgNeedSymptoms)
		return nil
	}

	symptoms := SplitSymptoms(t.input)
	next := StageFollowUp
	if err := s.repo.Update(ctx, c.SessionID, ConsultationUpdate{Symptoms: &symptoms, Stage: &next}); err != nil {
		return err
	}
	c.SymptomsReported = encodeSymptoms(symptoms)
	t.enter(next)
	t.say(fmt.Sprintf(msgSymptomsAck, strings.Join(symptoms, ", ")))

	return s.askNext(ctx, t)
}

// SplitSymptoms splits comma-separated input into trimmed, non-empty symptoms.
// Input without any usable token becomes a single symptom.
func SplitSymptoms(input string) []string {
	var out []string
	for _, p := range strings.Split(input, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		if whole := strings.TrimSpace(input); whole != "" {
			out = []string{whole}
		}
	}
	return out
}

func (s *Service) followUp(ctx context.Context, t *turn) error {
	if t.c.Stage != StageFollowUp {
		log.Printf("[followUp] session=%s treating stage %q as follow-up", t.c.SessionID, t.c.Stage)
	}

	if t.input == "" {
		if t.c.Stage == StageFollowUp && t.c.CurrentQuestionIndex > 0 && t.c.LastQuestionText != nil {
			t.say(*t.c.LastQuestionText)
			return nil
		}
	} else if err := s.captureAnswer(ctx, t); err != nil {
		return err
	}
	return s.askNext(ctx, t)
}

// captureAnswer stores the message as the answer to the question asked on
// the previous turn. A question that already has an answer is left alone.
func (s *Service) captureAnswer(ctx context.Context, t *turn) error {
	c := t.c
	qidx := c.CurrentQuestionIndex
	symptoms := c.Symptoms()
	if qidx <= 0 || c.CurrentSymptomIndex < 0 || c.CurrentSymptomIndex >= len(symptoms) {
		return nil
	}
	symptom := symptoms[c.CurrentSymptomIndex]
	questionID := QuestionID(c.CurrentSymptomIndex, qidx-1)

	var asked Question
	if c.LastQuestionID != nil && *c.LastQuestionID == questionID && c.LastQuestionText != nil {
		asked = Question{Text: *c.LastQuestionText, Category: CategorySymptomDetails}
		if c.LastQuestionCategory != nil && *c.LastQuestionCategory != "" {
			asked.Category = *c.LastQuestionCategory
		}
	} else {
		asked = askedTemplateQuestion(symptom, qidx)
	}

	answered, err := s.repo.HasResponse(ctx, c.SessionID, questionID)
	if err != nil {
		return err
	}
	if answered {
		return nil
	}

	return s.repo.SaveResponse(ctx, &Response{
		SessionID:    c.SessionID,
		QuestionID:   questionID,
		QuestionText: asked.Text,
		Category:     asked.Category,
		ResponseText: t.input,
		SymptomName:  &symptom,
	})
}

// askNext emits the next follow-up question, or the summary once the session
// cap is reached. The symptom cursor is never advanced here.
func (s *Service) askNext(ctx context.Context, t *turn) error {
	c := t.c
	symptoms := c.Symptoms()
	if len(symptoms) == 0 || c.CurrentQuestionIndex >= s.maxQuestions {
		return s.summarize(ctx, t)
	}
	if c.CurrentSymptomIndex < 0 || c.CurrentSymptomIndex >= len(symptoms) {
		return s.summarize(ctx, t)
	}

	symIdx, qidx := c.CurrentSymptomIndex, c.CurrentQuestionIndex
	questions := s.questionsFor(ctx, symptoms[symIdx])
	if qidx >= len(questions) {
		return s.summarize(ctx, t)
	}

	q := questions[qidx]
	id := QuestionID(symIdx, qidx)
	next := qidx + 1
	if err := s.repo.Update(ctx, c.SessionID, ConsultationUpdate{
		CurrentQuestionIndex: &next,
		LastQuestionID:       &id,
		LastQuestionText:     &q.Text,
		LastQuestionCategory: &q.Category,
	}); err != nil {
		return err
	}
	c.CurrentQuestionIndex = next
	c.LastQuestionID = &id
	c.LastQuestionText = &q.Text
	c.LastQuestionCategory = &q.Category

	t.say(q.Text)
	return nil
}

// questionsFor prefers the question bank and falls back to the fixed template.
func (s *Service) questionsFor(ctx context.Context, symptom string) []Question {
	if s.questions != nil {
		found, err := s.questions.FollowUps(ctx, symptom, s.maxQuestions)
		switch {
		case err != nil:
			log.Printf("[questionsFor] symptom=%q bank err=%v, using template", symptom, err)
		case len(found) == 0:
			log.Printf("[questionsFor] symptom=%q no bank questions, using template", symptom)
		default:
			out := make([]Question, 0, len(found))
			for _, q := range found {
				out = append(out, Question{Text: q.Text, Category: q.Category})
			}
			return out
		}
	}
	return TemplateQuestions(symptom)
}

func (s *Service) summarize(ctx context.Context, t *turn) error {
	t.enter(StageSummary)
	sum, err := s.summaries.Generate(ctx, t.c)
	if err != nil {
		return err
	}
	t.entered = append(t.entered, StageCompleted)
	t.say(sum.SummaryText)
	return nil
}

func (s *Service) replaySummary(ctx context.Context, t *turn) error {
	sum, err := s.repo.GetSummary(ctx, t.c.SessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			t.say(msgAlreadyComplete)
			return nil
		}
		return err
	}
	t.say(sum.SummaryText)
	return nil
}

// Get returns the consultation if userID may see it.
func (s *Service) Get(ctx context.Context, sessionID string, userID *string) (*Consultation, error) {
	c, err := s.repo.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !Owns(c, userID) {
		return nil, ErrSessionNotFound
	}
	return c, nil
}

func (s *Service) Responses(ctx context.Context, sessionID string, userID *string) ([]Response, error) {
	if _, err := s.Get(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	return s.repo.ListResponses(ctx, sessionID)
}

func (s *Service) Summary(ctx context.Context, sessionID string, userID *string) (*Summary, error) {
	if _, err := s.Get(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	return s.repo.GetSummary(ctx, sessionID)
}

// Owns reports whether userID may act on c. Sessions started anonymously are
// open to any caller.
func Owns(c *Consultation, userID *string) bool {
	if c.UserID == nil {
		return true
	}
	return userID != nil && *userID == *c.UserID
}

func isBlank(p *string) bool { return p == nil || strings.TrimSpace(*p) == "" }

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
