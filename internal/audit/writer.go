package audit

import (
	"context"
	"sync"

	"github.com/nerrad567/biobridge/internal/bridges/fingerprint"
)

// writerBuffer is the queue length between the gateway and SQLite.
// Entries beyond it are dropped.
const writerBuffer = 256

// Logger is the subset of logging.Logger the writer uses.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Writer persists command records off the submission path. It satisfies
// fingerprint.CommandAuditor: RecordCommand never blocks, and a full queue
// drops the entry with a warning.
type Writer struct {
	repo   Repository
	logger Logger
	ch     chan *Entry

	wg       sync.WaitGroup
	stopOnce sync.Once
	done     chan struct{}
}

// NewWriter creates a writer. Call Start before recording.
func NewWriter(repo Repository, logger Logger) *Writer {
	return &Writer{
		repo:   repo,
		logger: logger,
		ch:     make(chan *Entry, writerBuffer),
		done:   make(chan struct{}),
	}
}

// Start launches the drain goroutine.
func (w *Writer) Start() {
	w.wg.Add(1)
	go w.drain()
}

// Stop writes queued entries and returns. Safe to call multiple times.
func (w *Writer) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
	})
}

// RecordCommand queues one submission outcome.
func (w *Writer) RecordCommand(rec fingerprint.CommandRecord) {
	outcome := OutcomeAccepted
	if !rec.Accepted {
		outcome = OutcomeRejected
	}
	e := &Entry{
		Command:   string(rec.Command),
		FingerID:  rec.FingerID,
		Source:    rec.Source,
		Outcome:   outcome,
		Code:      rec.Code,
		Message:   rec.Message,
		CreatedAt: rec.At,
	}

	select {
	case <-w.done:
		return
	default:
	}

	select {
	case w.ch <- e:
	default:
		if w.logger != nil {
			w.logger.Warn("command audit queue full, dropping entry",
				"command", e.Command,
				"outcome", e.Outcome,
			)
		}
	}
}

// drain writes entries serially until Stop, then flushes what is left.
func (w *Writer) drain() {
	defer w.wg.Done()
	for {
		select {
		case e := <-w.ch:
			w.write(e)
		case <-w.done:
			for {
				select {
				case e := <-w.ch:
					w.write(e)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) write(e *Entry) {
	if err := w.repo.Create(context.Background(), e); err != nil && w.logger != nil {
		w.logger.Error("command audit write failed",
			"command", e.Command,
			"outcome", e.Outcome,
			"error", err,
		)
	}
}
