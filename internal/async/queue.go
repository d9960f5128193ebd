package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/syllabus-templates/constants"
)

// ErrQueueClosed is returned by Enqueue once Shutdown has started.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job asks for one document on disk to be extracted into SessionID.
type Job struct {
	Path        string
	SessionID   string
	Category    constants.Category
	CreatedBy   *string
	SubmittedAt time.Time
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Handler processes one job. It runs on a worker goroutine under the queue's timeout.
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

type HandlerFunc func(ctx context.Context, job Job) error

func (f HandlerFunc) Handle(ctx context.Context, job Job) error { return f(ctx, job) }
