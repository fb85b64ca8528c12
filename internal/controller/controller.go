// Package controller implements the upload-and-poll workflow: select files,
// upload them, then poll the backend until the batch reaches a terminal
// status, re-rendering the results on every poll.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oacracker/photoqa/internal/files"
	"github.com/oacracker/photoqa/internal/models"
	"github.com/oacracker/photoqa/internal/render"
	"github.com/oacracker/photoqa/internal/scheduler"
)

// DefaultInterval is the time between status polls.
const DefaultInterval = 3 * time.Second

// User-facing messages.
const (
	MsgNoFiles    = "Please select at least one image."
	MsgProcessing = "Uploading and processing..."
)

// Phase is the state of the current upload attempt.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseUploading Phase = "uploading"
	PhasePolling   Phase = "polling"
	PhaseDone      Phase = "done"
	PhaseError     Phase = "error"
)

// IsActive reports whether an attempt is in flight.
func (p Phase) IsActive() bool {
	return p == PhaseUploading || p == PhasePolling
}

// Backend is the subset of the API client the controller uses.
type Backend interface {
	CreateUpload(ctx context.Context, selected []files.Handle) (*models.Upload, error)
	GetUpload(ctx context.Context, id string) (*models.Upload, error)
}

// View is the presentation layer. Calls are serialized and made while the
// controller holds its state lock, so a View must not call back into the
// Controller.
type View interface {
	ClearPreviews()
	AddPreview(p files.Preview)
	SetTriggerEnabled(enabled bool)
	ShowPage(p render.Page)
}

// State is a snapshot of everything the controller tracks.
type State struct {
	Phase          Phase
	Selected       []files.Handle
	UploadID       string
	TriggerEnabled bool
	Polling        bool
	Polls          int
	Record         *models.Upload
	Err            error
}

// Outcome is the result of a finished attempt.
type Outcome struct {
	Phase  Phase
	Record *models.Upload
	Err    error
}

// Options tune polling. Zero values pick the defaults.
type Options struct {
	Interval    time.Duration
	MaxPolls    int           // 0 means unbounded
	MaxDuration time.Duration // 0 means unbounded
	Clock       scheduler.Clock // drives polling and the MaxDuration check
	Logger      *slog.Logger
}

// Controller drives one upload attempt at a time.
type Controller struct {
	backend Backend
	view    View
	opts    Options
	logger  *slog.Logger
	now     func() time.Time

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu         sync.Mutex
	state      State
	generation uint64
	attempt    uint64
	task       *scheduler.Task
	finished   chan struct{}
	pollStart  time.Time
	closed     bool

	previews sync.WaitGroup
}

// New creates a controller in the idle phase with the trigger enabled.
func New(backend Backend, view View, opts Options) *Controller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := time.Now
	if opts.Clock != nil {
		now = opts.Clock.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		backend:    backend,
		view:       view,
		opts:       opts,
		logger:     logger,
		now:        now,
		baseCtx:    ctx,
		baseCancel: cancel,
		state: State{
			Phase:          PhaseIdle,
			TriggerEnabled: true,
		},
	}
	return c
}

// SelectFiles replaces the current selection and regenerates previews.
// Previews are read concurrently and appear in completion order. Previews
// still being read for an earlier selection are discarded.
func (c *Controller) SelectFiles(selected []files.Handle) {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.state.Selected = append([]files.Handle(nil), selected...)
	c.view.ClearPreviews()
	c.mu.Unlock()

	for i, h := range selected {
		c.previews.Add(1)
		go c.readPreview(gen, i, h)
	}
}

func (c *Controller) readPreview(gen uint64, index int, h files.Handle) {
	defer c.previews.Done()

	p, err := files.ReadPreview(index, h)
	if err != nil {
		c.logger.Debug("preview read failed", "file", h.Name(), "err", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.view.AddPreview(p)
}

// WaitPreviews blocks until every started preview read has finished.
func (c *Controller) WaitPreviews() {
	c.previews.Wait()
}

// TriggerUpload uploads the current selection and starts polling. It returns
// ErrNoFiles for an empty selection, ErrBusy while another attempt is
// running, or an *UploadError when the upload request fails.
func (c *Controller) TriggerUpload(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("controller closed")
	}
	if c.state.Phase.IsActive() {
		c.mu.Unlock()
		return ErrBusy
	}
	if len(c.state.Selected) == 0 {
		c.view.ShowPage(render.NoticePage(render.NoticeValidation, MsgNoFiles))
		c.mu.Unlock()
		return ErrNoFiles
	}

	c.attempt++
	attempt := c.attempt
	selected := append([]files.Handle(nil), c.state.Selected...)

	c.state.Phase = PhaseUploading
	c.state.UploadID = ""
	c.state.Record = nil
	c.state.Err = nil
	c.state.Polls = 0
	c.finished = make(chan struct{})
	c.setTriggerLocked(false)
	c.view.ShowPage(render.NoticePage(render.NoticeInfo, MsgProcessing))
	c.mu.Unlock()

	c.logger.Info("uploading files", "count", len(selected))
	record, err := c.backend.CreateUpload(ctx, selected)

	c.mu.Lock()
	defer c.mu.Unlock()

	if attempt != c.attempt || c.closed {
		return errors.New("upload attempt superseded")
	}

	if err != nil {
		uploadErr := &UploadError{Err: err}
		c.logger.Warn("upload failed", "err", err)
		c.view.ShowPage(render.NoticePage(render.NoticeError, fmt.Sprintf("Upload failed: %v", err)))
		c.finishLocked(PhaseError, uploadErr)
		return uploadErr
	}

	c.logger.Info("upload accepted", "id", record.ID, "status", record.Status)
	c.state.Phase = PhasePolling
	c.state.UploadID = record.ID
	c.state.Polling = true
	c.pollStart = c.now()

	taskOpts := []scheduler.Option{scheduler.WithLogger(c.logger)}
	if c.opts.Clock != nil {
		taskOpts = append(taskOpts, scheduler.WithClock(c.opts.Clock))
	}
	c.task = scheduler.Start(c.baseCtx, c.opts.Interval, c.pollFunc(attempt, record.ID), taskOpts...)
	return nil
}

// pollFunc returns the scheduled function for one polling session.
func (c *Controller) pollFunc(attempt uint64, id string) scheduler.Func {
	return func(ctx context.Context) bool {
		record, err := c.backend.GetUpload(ctx, id)

		c.mu.Lock()
		defer c.mu.Unlock()

		if attempt != c.attempt || c.closed || ctx.Err() != nil {
			return true
		}

		c.state.Polls++
		polls := c.state.Polls

		if err != nil {
			pollErr := &PollError{UploadID: id, Attempt: polls, Err: err}
			c.logger.Warn("poll failed", "id", id, "attempt", polls, "err", err)
			c.view.ShowPage(render.NoticePage(render.NoticeError, fmt.Sprintf("Error fetching results: %v", err)))
			c.finishLocked(PhaseError, pollErr)
			return true
		}

		c.logger.Debug("poll", "id", id, "attempt", polls, "status", record.Status)
		c.state.Record = record
		c.view.ShowPage(render.Build(record))

		if record.Status.IsTerminal() {
			phase := PhaseDone
			if record.Status == models.UploadStatusError {
				phase = PhaseError
			}
			c.logger.Info("upload finished", "id", id, "status", record.Status, "polls", polls)
			c.finishLocked(phase, nil)
			return true
		}

		if c.limitReachedLocked() {
			pollErr := &PollError{UploadID: id, Attempt: polls, Err: ErrPollLimit}
			c.logger.Warn("giving up on upload", "id", id, "polls", polls)
			c.view.ShowPage(render.NoticePage(render.NoticeError,
				fmt.Sprintf("Stopped waiting for upload %s after %d polls; it is still %s.", id, polls, record.Status)))
			c.finishLocked(PhaseError, pollErr)
			return true
		}

		return false
	}
}

func (c *Controller) limitReachedLocked() bool {
	if c.opts.MaxPolls > 0 && c.state.Polls >= c.opts.MaxPolls {
		return true
	}
	if c.opts.MaxDuration > 0 && c.now().Sub(c.pollStart) >= c.opts.MaxDuration {
		return true
	}
	return false
}

// finishLocked ends the current attempt in a terminal phase.
func (c *Controller) finishLocked(phase Phase, err error) {
	c.state.Phase = phase
	c.state.Err = err
	c.state.Polling = false
	c.task = nil
	c.setTriggerLocked(true)
	if c.finished != nil {
		close(c.finished)
		c.finished = nil
	}
}

func (c *Controller) setTriggerLocked(enabled bool) {
	c.state.TriggerEnabled = enabled
	c.view.SetTriggerEnabled(enabled)
}

// Wait blocks until the current attempt finishes or ctx is done. If no
// attempt is running it returns the last outcome immediately. The returned
// error is the attempt's error, or ctx's error on cancellation.
func (c *Controller) Wait(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	finished := c.finished
	c.mu.Unlock()

	if finished != nil {
		select {
		case <-finished:
		case <-ctx.Done():
			return Outcome{Phase: c.Snapshot().Phase}, ctx.Err()
		}
	}

	s := c.Snapshot()
	return Outcome{Phase: s.Phase, Record: s.Record, Err: s.Err}, s.Err
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state
	s.Selected = append([]files.Handle(nil), c.state.Selected...)
	return s
}

// Close stops any running poller. An attempt still in flight ends in the
// error phase with context.Canceled.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	task := c.task
	if c.state.Phase.IsActive() {
		c.finishLocked(PhaseError, context.Canceled)
	}
	c.mu.Unlock()

	c.baseCancel()
	if task != nil {
		task.Stop()
	}
	c.previews.Wait()
}
