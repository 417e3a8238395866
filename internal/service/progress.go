package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"pittmc/backend/internal/domain"
)

// ProgressService forwards wizard steps that happen between verification and
// submission to the notifier. It holds no state of its own.
type ProgressService struct {
	notifier Notifier
	log      *zap.Logger
}

// NewProgressService creates a ProgressService.
func NewProgressService(notifier Notifier, log *zap.Logger) *ProgressService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ProgressService{notifier: notifier, log: log.Named("progress")}
}

// UpdateDevice records the device picked for sessionID. edition is optional.
func (s *ProgressService) UpdateDevice(ctx context.Context, sessionID, device, edition string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || strings.TrimSpace(device) == "" {
		return domain.ErrMissingFields
	}
	dev, err := domain.ParseDevice(device)
	if err != nil {
		return err
	}
	ev := domain.ProgressEvent{
		SessionID: sessionID,
		Step:      domain.StepDeviceSelected,
		Device:    dev,
	}
	if edition != "" {
		if ev.Edition, err = domain.ParseEdition(edition); err != nil {
			return err
		}
	}

	s.notifier.Notify(ctx, ev)
	s.log.Debug("device selected", zap.String("session", sessionID), zap.String("device", string(dev)))
	return nil
}

// UpdateUsername records the username entered for sessionID.
func (s *ProgressService) UpdateUsername(ctx context.Context, sessionID, username, edition string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || strings.TrimSpace(username) == "" || strings.TrimSpace(edition) == "" {
		return domain.ErrMissingFields
	}
	ed, err := domain.ParseEdition(edition)
	if err != nil {
		return err
	}

	s.notifier.Notify(ctx, domain.ProgressEvent{
		SessionID: sessionID,
		Step:      domain.StepUsernameEntered,
		Username:  username,
		Edition:   ed,
	})
	s.log.Debug("username entered", zap.String("session", sessionID), zap.String("username", username))
	return nil
}
