package risk

import (
	"log/slog"
	"sync"

	attemptledger "github.com/djenkins452/dbawholelifejourney-sub000/pkg/db/attempt-ledger"
	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/privacy"
)

const DEFAULT_WRITER_QUEUE_SIZE = 256

// attemptWriter persists ledger records off the request path. Writes are
// best effort: the queue is bounded, a failed insert is retried once and
// then dropped with a log entry. The decision itself never waits on the
// ledger.
type attemptWriter struct {
	recorder AttemptRecorder
	queue    chan attemptledger.SignupAttempt
	wg       sync.WaitGroup

	closeOnce sync.Once
}

func newAttemptWriter(recorder AttemptRecorder, queueSize int) *attemptWriter {
	if queueSize <= 0 {
		queueSize = DEFAULT_WRITER_QUEUE_SIZE
	}
	w := &attemptWriter{
		recorder: recorder,
		queue:    make(chan attemptledger.SignupAttempt, queueSize),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *attemptWriter) run() {
	defer w.wg.Done()
	for attempt := range w.queue {
		w.write(attempt)
	}
}

func (w *attemptWriter) write(attempt attemptledger.SignupAttempt) {
	if _, err := w.recorder.AddAttempt(attempt); err == nil {
		return
	}
	if _, err := w.recorder.AddAttempt(attempt); err != nil {
		slog.Error("dropping signup attempt record",
			slog.String("emailHash", privacy.ShortHash(attempt.EmailHash)),
			slog.String("error", err.Error()))
	}
}

func (w *attemptWriter) enqueue(attempt attemptledger.SignupAttempt) {
	select {
	case w.queue <- attempt:
	default:
		slog.Error("signup attempt queue full, dropping record",
			slog.String("emailHash", privacy.ShortHash(attempt.EmailHash)))
	}
}

// close drains the queue and stops the background writer.
func (w *attemptWriter) close() {
	w.closeOnce.Do(func() {
		close(w.queue)
	})
	w.wg.Wait()
}
