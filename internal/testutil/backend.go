// backend.go - Scripted in-process backend for controller tests
package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/oacracker/photoqa/internal/files"
	"github.com/oacracker/photoqa/internal/models"
)

// Response is one scripted reply.
type Response struct {
	Upload *models.Upload
	Err    error
}

// ScriptedBackend replays queued responses and records every call.
type ScriptedBackend struct {
	mu          sync.Mutex
	creates     []Response
	polls       []Response
	lastPoll    *Response
	createCalls [][]string
	pollCalls   []string
	pollGate    chan struct{}
}

// NewScriptedBackend creates a backend with empty queues.
func NewScriptedBackend() *ScriptedBackend {
	return &ScriptedBackend{}
}

// QueueCreate appends a reply for the next CreateUpload call.
func (b *ScriptedBackend) QueueCreate(u *models.Upload, err error) *ScriptedBackend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.creates = append(b.creates, Response{Upload: u, Err: err})
	return b
}

// QueuePoll appends a reply for the next GetUpload call.
func (b *ScriptedBackend) QueuePoll(u *models.Upload, err error) *ScriptedBackend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.polls = append(b.polls, Response{Upload: u, Err: err})
	return b
}

// GatePolls makes every GetUpload block until the returned channel receives
// or is closed.
func (b *ScriptedBackend) GatePolls() chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pollGate = make(chan struct{})
	return b.pollGate
}

// CreateUpload implements controller.Backend.
func (b *ScriptedBackend) CreateUpload(ctx context.Context, selected []files.Handle) (*models.Upload, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	names := make([]string, 0, len(selected))
	for _, h := range selected {
		names = append(names, h.Name())
	}
	b.createCalls = append(b.createCalls, names)

	if len(b.creates) == 0 {
		return nil, errors.New("no scripted create response")
	}
	r := b.creates[0]
	b.creates = b.creates[1:]
	return r.Upload.Clone(), r.Err
}

// GetUpload implements controller.Backend. When the queue runs dry the last
// reply is repeated.
func (b *ScriptedBackend) GetUpload(ctx context.Context, id string) (*models.Upload, error) {
	b.mu.Lock()
	gate := b.pollGate
	b.pollCalls = append(b.pollCalls, id)
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.polls) > 0 {
		r := b.polls[0]
		b.polls = b.polls[1:]
		b.lastPoll = &r
	}
	if b.lastPoll == nil {
		return nil, errors.New("no scripted poll response")
	}
	return b.lastPoll.Upload.Clone(), b.lastPoll.Err
}

// CreateCalls returns the file names sent by each CreateUpload call.
func (b *ScriptedBackend) CreateCalls() [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]string(nil), b.createCalls...)
}

// PollCalls returns the ids passed to each GetUpload call.
func (b *ScriptedBackend) PollCalls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.pollCalls...)
}
