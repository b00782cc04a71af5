package consultation

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// Publisher is notified once a consultation has been finalized.
type Publisher interface {
	PublishCompleted(ctx context.Context, sessionID string, completedAt time.Time) error
}

var (
	defaultRecommendations = []string{
		"Schedule appointment with healthcare provider",
		"Bring consultation summary to appointment",
		"Seek immediate care for emergency symptoms",
	}
	defaultNextSteps = []string{
		"Contact primary care physician",
		"Review summary before appointment",
		"Monitor symptoms",
	}
)

// SummaryGenerator turns the stored responses of a session into its final
// report and closes the session.
type SummaryGenerator struct {
	repo      *Repo
	publisher Publisher
	now       func() time.Time
}

// NewSummaryGenerator returns a generator writing through repo. publisher may be nil.
func NewSummaryGenerator(repo *Repo, publisher Publisher) *SummaryGenerator {
	return &SummaryGenerator{repo: repo, publisher: publisher, now: time.Now}
}

// Generate builds, stores and returns the summary for c, then marks the
// consultation completed.
func (g *SummaryGenerator) Generate(ctx context.Context, c *Consultation) (*Summary, error) {
	responses, err := g.repo.ListResponses(ctx, c.SessionID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}

	now := g.now()
	text := RenderReport(c, responses, now)
	s, err := NewSummary(c.SessionID, text, KeyFindings(responses), nil, defaultRecommendations, defaultNextSteps)
	if err != nil {
		return nil, err
	}
	s.GeneratedAt = now

	if err := g.repo.Finalize(ctx, s, now); err != nil {
		return nil, fmt.Errorf("finalize: %w", err)
	}

	c.Stage = StageCompleted
	c.Completed = true
	c.SummaryGenerated = true
	c.ConsultationEndTime = &now

	if g.publisher != nil {
		if err := g.publisher.PublishCompleted(ctx, c.SessionID, now); err != nil {
			// the session is already closed; the event is best effort
			log.Printf("[Summary] publish completed session=%s err=%v", c.SessionID, err)
		}
	}
	return s, nil
}

// KeyFindings returns the answers that mention "severe", in order.
func KeyFindings(responses []Response) []string {
	out := []string{}
	for _, r := range responses {
		if strings.Contains(strings.ToLower(r.ResponseText), "severe") {
			out = append(out, r.ResponseText)
		}
	}
	return out
}

func RenderReport(c *Consultation, responses []Response, at time.Time) string {
	name := "Not provided"
	if c.PatientName != nil && *c.PatientName != "" {
		name = *c.PatientName
	}
	email := "Not provided"
	if c.PatientEmail != nil && *c.PatientEmail != "" {
		email = *c.PatientEmail
	}

	var b strings.Builder
	b.WriteString("## Consultation Summary\n\n")
	b.WriteString("**Patient Information:**\n")
	fmt.Fprintf(&b, "- Name: %s\n", name)
	fmt.Fprintf(&b, "- Email: %s\n", email)
	fmt.Fprintf(&b, "- Date: %s\n\n", at.Format("January 02, 2006 at 03:04 PM"))

	b.WriteString("**Reported Symptoms:**\n")
	for _, s := range c.Symptoms() {
		fmt.Fprintf(&b, "• %s\n", s)
	}
	b.WriteString("\n**Responses Collected:**\n")
	for _, r := range responses {
		fmt.Fprintf(&b, "• %s: %s\n", r.QuestionText, r.ResponseText)
	}

	b.WriteString("\n---\n\n")
	b.WriteString("**Next Steps:**\n")
	b.WriteString("1. Schedule an appointment with your healthcare provider\n")
	b.WriteString("2. Bring this summary to your appointment\n")
	b.WriteString("3. If you have emergency symptoms, seek immediate medical attention\n\n")
	b.WriteString("**Important:** This consultation collected information only. ")
	b.WriteString("Please consult healthcare professionals for proper diagnosis and treatment.\n\n")

	thanks := "Thank you for your time"
	if c.PatientName != nil && *c.PatientName != "" {
		thanks += ", " + *c.PatientName
	}
	fmt.Fprintf(&b, "%s! Your consultation is now complete.", thanks)
	return b.String()
}
