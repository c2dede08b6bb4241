package upload

import (
	"context"
	"time"

	"github.com/registryx/registryx/pkg/logging"
)

// RunExpirySweep loops, per the donor's main.go worker-loop shape, scanning
// for sessions past their expiry and canceling them until ctx is done.
func (m *Manager) RunExpirySweep(ctx context.Context) {
	ticker := time.NewTicker(m.Cfg.UploadExpirySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepOnce(ctx)
		}
	}
}

func (m *Manager) sweepOnce(ctx context.Context) {
	sessions, err := m.DB.ListExpiredUploadSessions(ctx, time.Now())
	if err != nil {
		logging.Log.WithError(err).Warn("upload expiry sweep: failed to list expired sessions")
		return
	}
	for _, sess := range sessions {
		if err := m.Cancel(ctx, sess.ID); err != nil {
			logging.Log.WithError(err).WithField("upload_id", sess.ID).Warn("upload expiry sweep: failed to cancel session")
			continue
		}
		logging.WithFields(map[string]any{"upload_id": sess.ID}).Debug("upload expiry sweep: session canceled")
	}
}
