// Package usage records anonymous question activity for capacity planning.
// Recording is fire and forget: failures are logged, never surfaced, and
// never delay an answer.
package usage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/threadwise/internal/metastore"
)

// Recorder writes usage-log rows asynchronously.
type Recorder struct {
	meta    *metastore.Store
	logger  *zap.Logger
	timeout time.Duration
}

// NewRecorder creates a recorder over the metadata store.
func NewRecorder(meta *metastore.Store, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{meta: meta, logger: logger, timeout: 5 * time.Second}
}

// Record logs one answered question in the background. Only the question
// length is stored; the text never reaches the database.
func (r *Recorder) Record(workspaceID string, questionLength int) {
	if r == nil || r.meta == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.meta.RecordUsage(ctx, workspaceID, questionLength, time.Now().UTC()); err != nil {
			r.logger.Warn("recording usage failed",
				zap.String("workspace_id", workspaceID),
				zap.Error(err))
		}
	}()
}
