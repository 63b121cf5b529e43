package workers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoavatar/internal/metrics"
	"github.com/yoockh/yoavatar/internal/models"
	"github.com/yoockh/yoavatar/internal/realtime"
	"github.com/yoockh/yoavatar/internal/utils"
	"golang.org/x/sync/semaphore"
)

type Runner interface {
	Run(ctx context.Context, job *models.Job)
}

// ChatDispatcher starts one goroutine per job. Jobs run on the dispatcher's
// context, not the requesting connection's, so a client disconnect does not
// cancel its job. With MaxConcurrent > 0 excess jobs are refused.
type ChatDispatcher struct {
	Runner        Runner
	Events        realtime.Emitter
	Metrics       *metrics.Metrics
	Log           *logrus.Logger
	MaxConcurrent int

	ctx      context.Context
	sem      *semaphore.Weighted
	wg       sync.WaitGroup
	inFlight atomic.Int64
}

func NewChatDispatcher(ctx context.Context, runner Runner, events realtime.Emitter, maxConcurrent int, m *metrics.Metrics, l *logrus.Logger) *ChatDispatcher {
	if l == nil {
		l = logrus.New()
	}
	d := &ChatDispatcher{
		Runner:        runner,
		Events:        events,
		Metrics:       m,
		Log:           l,
		MaxConcurrent: maxConcurrent,
		ctx:           ctx,
	}
	if maxConcurrent > 0 {
		d.sem = semaphore.NewWeighted(int64(maxConcurrent))
	}
	return d
}

// Dispatch reports whether the job was started.
func (d *ChatDispatcher) Dispatch(job *models.Job) bool {
	const op = "ChatDispatcher.Dispatch"

	if d.sem != nil && !d.sem.TryAcquire(1) {
		err := utils.K(utils.KindBusy, op, fmt.Sprintf("%d jobs already running, try again later", d.MaxConcurrent), nil)
		d.Log.WithFields(logrus.Fields{"job_id": job.ID, "client_id": job.ClientID}).Warn("job rejected: busy")
		d.Metrics.JobRejected()
		d.Events.Emit(d.ctx, job.ClientID, models.EventError, models.ErrorEvent{
			Message: utils.ClientMessage(err),
			Kind:    string(utils.KindBusy),
		})
		return false
	}

	d.wg.Add(1)
	d.inFlight.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.inFlight.Add(-1)
		if d.sem != nil {
			defer d.sem.Release(1)
		}
		d.Runner.Run(d.ctx, job)
	}()
	return true
}

func (d *ChatDispatcher) InFlight() int { return int(d.inFlight.Load()) }

// Wait blocks until every dispatched job has returned or ctx is done.
func (d *ChatDispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
