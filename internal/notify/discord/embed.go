package discord

import (
	"fmt"
	"time"

	"pittmc/backend/internal/domain"
)

// Embed colours.
const (
	ColorStarted    = 16754432
	ColorInProgress = 16776960
	ColorCompleted  = 5814783
	ColorError      = 16711680
)

const startTimeLayout = "Jan 2, 03:04 PM"

// Payload is the body of a Discord webhook execution.
type Payload struct {
	Embeds []Embed `json:"embeds"`
}

type Embed struct {
	Title     string  `json:"title"`
	Color     int     `json:"color"`
	Fields    []Field `json:"fields"`
	Footer    Footer  `json:"footer"`
	Timestamp string  `json:"timestamp"`
}

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type Footer struct {
	Text string `json:"text"`
}

// BuildEmbed renders the progress of a session at the given step.
func BuildEmbed(sessionID string, rec Progress, ev domain.ProgressEvent, now time.Time) Embed {
	email := rec.Email
	if email == "" {
		email = "Unknown"
	}

	fields := []Field{
		{Name: "Email", Value: email, Inline: true},
		{Name: "Session ID", Value: shortSession(sessionID), Inline: true},
		{Name: "Start Time", Value: rec.StartTime.Format(startTimeLayout), Inline: true},
	}
	if rec.Edition != "" {
		fields = append(fields, Field{Name: "Edition", Value: string(rec.Edition), Inline: true})
	}
	if rec.Username != "" {
		fields = append(fields, Field{Name: "Username", Value: rec.Username, Inline: true})
	}
	if rec.Device != "" {
		fields = append(fields, Field{Name: "Device", Value: string(rec.Device), Inline: true})
	}
	fields = append(fields, Field{Name: "Elapsed Time", Value: FormatElapsed(now.Sub(rec.StartTime)), Inline: true})

	status := statusMessage(ev.Step)
	if ev.Err != "" {
		status = "Error: " + ev.Err
	}
	fields = append(fields, Field{Name: "Status", Value: status})

	return Embed{
		Title:     "Whitelist Process: " + ev.Step.Title(),
		Color:     colorFor(ev.Step, ev.Err != ""),
		Fields:    fields,
		Footer:    Footer{Text: fmt.Sprintf("Step %d/%d: %s", ev.Step.Number(), domain.StepCount, ev.Step.Title())},
		Timestamp: now.UTC().Format(time.RFC3339),
	}
}

// FormatElapsed renders d as "1h 2m 3s", dropping leading zero units.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h, m, s := total/3600, (total/60)%60, total%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

func shortSession(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return id + "..."
}

func colorFor(step domain.WhitelistStep, failed bool) int {
	if failed {
		return ColorError
	}
	switch step {
	case domain.StepStarted:
		return ColorStarted
	case domain.StepCompleted:
		return ColorCompleted
	default:
		return ColorInProgress
	}
}

func statusMessage(step domain.WhitelistStep) string {
	switch step {
	case domain.StepStarted:
		return "Awaiting Email Verification"
	case domain.StepVerified:
		return "Email Verified, Selecting Device"
	case domain.StepDeviceSelected:
		return "Device Selected, Entering Username"
	case domain.StepUsernameEntered:
		return "Username Entered, Processing"
	case domain.StepCompleted:
		return "Whitelist Request Completed"
	default:
		return "Unknown"
	}
}
