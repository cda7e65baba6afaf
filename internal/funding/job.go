package funding

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/smartwallet/smartwallet/internal/ledger"
)

const (
	jobScheduled int32 = iota
	jobRunning
	jobCanceled
)

// Job is the handle of a scheduled settlement.
type Job struct {
	// Transaction is the pending transaction as recorded.
	Transaction ledger.Transaction
	SettlesAt   time.Time

	timer    clockwork.Timer
	onCancel func()
	state    atomic.Int32
	done     chan struct{}
	result   ledger.Transaction
	err      error
}

func newJob(tx ledger.Transaction, settlesAt time.Time) *Job {
	return &Job{Transaction: tx, SettlesAt: settlesAt, done: make(chan struct{})}
}

// Done is closed once the job has settled or was canceled.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job completes and returns the settled transaction.
func (j *Job) Wait(ctx context.Context) (ledger.Transaction, error) {
	select {
	case <-j.done:
		return j.result, j.err
	case <-ctx.Done():
		return ledger.Transaction{}, ctx.Err()
	}
}

// Cancel stops a settlement that has not started yet. The transaction stays
// pending. It reports whether the job was canceled by this call. Whichever of
// Cancel and the timer callback wins the state transition releases the job.
func (j *Job) Cancel() bool {
	if !j.state.CompareAndSwap(jobScheduled, jobCanceled) {
		return false
	}
	if j.timer != nil {
		j.timer.Stop()
	}
	if j.onCancel != nil {
		j.onCancel()
	}
	j.finish(j.Transaction, ErrCanceled)
	return true
}

func (j *Job) claim() bool {
	return j.state.CompareAndSwap(jobScheduled, jobRunning)
}

func (j *Job) finish(tx ledger.Transaction, err error) {
	j.result, j.err = tx, err
	close(j.done)
}
