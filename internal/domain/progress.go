package domain

import "time"

// WhitelistStep tags a notification with how far the wizard got.
// Steps are observational and carry no authority over verification state.
type WhitelistStep string

const (
	StepStarted         WhitelistStep = "started"
	StepVerified        WhitelistStep = "verified"
	StepDeviceSelected  WhitelistStep = "device_selected"
	StepUsernameEntered WhitelistStep = "username_entered"
	StepCompleted       WhitelistStep = "completed"
)

// StepCount is the number of steps in the wizard.
const StepCount = 5

var stepOrder = []WhitelistStep{
	StepStarted,
	StepVerified,
	StepDeviceSelected,
	StepUsernameEntered,
	StepCompleted,
}

// Number returns the 1-based position of the step, or 0 if unknown.
func (s WhitelistStep) Number() int {
	for i, step := range stepOrder {
		if step == s {
			return i + 1
		}
	}
	return 0
}

// Title is the human-readable step name.
func (s WhitelistStep) Title() string {
	switch s {
	case StepStarted:
		return "Started"
	case StepVerified:
		return "Email Verified"
	case StepDeviceSelected:
		return "Device Selected"
	case StepUsernameEntered:
		return "Username Entered"
	case StepCompleted:
		return "Completed"
	default:
		return string(s)
	}
}

// ProgressEvent is handed to the notifier. Empty fields are left unchanged
// in the stored progress record.
type ProgressEvent struct {
	SessionID string
	Step      WhitelistStep
	Email     string
	Username  string
	Edition   Edition
	Device    Device
	Err       string
	At        time.Time
}
