package consultation

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

type Stage string

const (
	StageGreeting           Stage = "greeting"
	StageCollectingInfo     Stage = "collecting_basic_info"
	StageCollectingSymptoms Stage = "collecting_symptoms"
	StageFollowUp           Stage = "asking_followup_questions"
	StageSummary            Stage = "summary"
	StageCompleted          Stage = "completed"
)

var ErrUnknownStage = errors.New("unknown consultation stage")

// Stages lists every stage in interview order.
var Stages = []Stage{
	StageGreeting,
	StageCollectingInfo,
	StageCollectingSymptoms,
	StageFollowUp,
	StageSummary,
	StageCompleted,
}

func ParseStage(s string) (Stage, error) {
	for _, st := range Stages {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStage, s)
}

func (s Stage) String() string { return string(s) }

// Order returns the position of s in the interview, or -1.
func (s Stage) Order() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

func (s Stage) Value() (driver.Value, error) {
	if s.Order() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, string(s))
	}
	return string(s), nil
}

// Scan rejects strings that are not a known stage.
func (s *Stage) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case nil:
		return fmt.Errorf("%w: null", ErrUnknownStage)
	default:
		return fmt.Errorf("consultation stage: unsupported type %T", src)
	}
	st, err := ParseStage(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}
