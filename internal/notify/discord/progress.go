package discord

import (
	"time"

	"pittmc/backend/internal/domain"
)

// Progress is the per-session bookkeeping kept under webhook:<sessionId>.
type Progress struct {
	StartTime   time.Time                           `json:"startTime"`
	Email       string                              `json:"email,omitempty"`
	Username    string                              `json:"username,omitempty"`
	Edition     domain.Edition                      `json:"edition,omitempty"`
	Device      domain.Device                       `json:"device,omitempty"`
	CurrentStep domain.WhitelistStep                `json:"currentStep"`
	Steps       map[domain.WhitelistStep]StepRecord `json:"steps"`
}

type StepRecord struct {
	Timestamp time.Time `json:"timestamp"`
}

// Apply folds ev into the record. Empty event fields keep stored values.
func (p *Progress) Apply(ev domain.ProgressEvent) {
	if p.StartTime.IsZero() {
		p.StartTime = ev.At
	}
	if ev.Email != "" {
		p.Email = ev.Email
	}
	if ev.Username != "" {
		p.Username = ev.Username
	}
	if ev.Edition != "" {
		p.Edition = ev.Edition
	}
	if ev.Device != "" {
		p.Device = ev.Device
	}
	if p.Steps == nil {
		p.Steps = make(map[domain.WhitelistStep]StepRecord)
	}
	p.Steps[ev.Step] = StepRecord{Timestamp: ev.At}
	p.CurrentStep = ev.Step
}
