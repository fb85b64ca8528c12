// Package jobs simulates the photo processing backend: uploads are registered
// in memory and advanced through extraction and answering stages by a
// background goroutine per upload.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oacracker/photoqa/internal/models"
)

// DefaultProviders are the stub answer providers used when none are configured.
var DefaultProviders = []string{"gemini", "openai", "anthropic", "groq"}

// Filename markers that steer the simulated processing of a photo.
const (
	failMarker      = "fail"      // text extraction fails
	rateLimitMarker = "ratelimit" // every provider is rate limited
	noAnswerMarker  = "noanswer"  // every provider fails
)

// Options configures a Manager.
type Options struct {
	StepDelay time.Duration // pause between processing stages
	Providers []string
	Logger    *slog.Logger
}

// Manager holds upload records and runs their simulated processing.
type Manager struct {
	uploads map[string]*models.Upload
	cancels map[string]context.CancelFunc
	mu      sync.RWMutex

	stepDelay time.Duration
	providers []string
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a new job manager.
func NewManager(opts Options) *Manager {
	providers := opts.Providers
	if len(providers) == 0 {
		providers = DefaultProviders
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		uploads:   make(map[string]*models.Upload),
		cancels:   make(map[string]context.CancelFunc),
		stepDelay: opts.StepDelay,
		providers: append([]string(nil), providers...),
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Create registers a pending upload with one photo per filename and starts
// processing it. The returned record is a copy.
func (m *Manager) Create(filenames []string) *models.Upload {
	u := models.NewUpload(uuid.New().String(), filenames)
	for i := range u.Photos {
		u.Photos[i].ID = uuid.New().String()
	}

	ctx, cancel := context.WithCancel(m.ctx)

	m.mu.Lock()
	m.uploads[u.ID] = u
	m.cancels[u.ID] = cancel
	snapshot := u.Clone()
	m.mu.Unlock()

	m.logger.Info("upload created", "id", u.ID, "photos", len(filenames))

	m.wg.Add(1)
	go m.process(ctx, u.ID)

	return snapshot
}

// Get returns a copy of the upload with the given id.
func (m *Manager) Get(id string) (*models.Upload, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.uploads[id]
	if !ok {
		return nil, false
	}
	return u.Clone(), true
}

// List returns one page of uploads, newest first, and the total count.
// Pages start at 1.
func (m *Manager) List(page, size int) ([]*models.Upload, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}

	m.mu.RLock()
	all := make([]*models.Upload, 0, len(m.uploads))
	for _, u := range m.uploads {
		all = append(all, u.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	start := (page - 1) * size
	if start >= len(all) {
		return []*models.Upload{}, len(all)
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all)
}

// SetImageURL records where a stored photo is served. It reports false if
// the upload or photo is unknown.
func (m *Manager) SetImageURL(uploadID, photoID, url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.uploads[uploadID]
	if !ok {
		return false
	}
	for i := range u.Photos {
		if u.Photos[i].ID == photoID {
			u.Photos[i].ImageURL = url
			return true
		}
	}
	return false
}

// Delete removes an upload and stops its processing. It reports false if
// the upload is unknown.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.uploads[id]; !ok {
		return false
	}
	delete(m.uploads, id)
	if cancel, ok := m.cancels[id]; ok {
		cancel()
		delete(m.cancels, id)
	}
	m.logger.Info("upload deleted", "id", id)
	return true
}

// CleanupOldJobs removes finished uploads last updated before maxAge ago and
// returns their ids.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []string
	cutoff := time.Now().Add(-maxAge)
	for id, u := range m.uploads {
		if u.Status.IsTerminal() && u.UpdatedAt.Before(cutoff) {
			delete(m.uploads, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// Close stops all processing goroutines and waits for them to exit.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

// process advances one upload through its stages.
func (m *Manager) process(ctx context.Context, id string) {
	defer m.wg.Done()
	defer m.release(id)
	short := id[:8]

	if !m.pause(ctx) {
		return
	}

	total := m.update(id, func(u *models.Upload) {
		if len(u.Photos) == 0 {
			u.Status = models.UploadStatusDone
			return
		}
		u.Status = models.UploadStatusProcessing
	})
	if total == 0 {
		m.logger.Info("empty upload finished", "id", short)
		return
	}

	for i := 0; i < total; i++ {
		if !m.processPhoto(ctx, id, i) {
			m.logger.Debug("processing cancelled", "id", short)
			return
		}
	}

	m.update(id, func(u *models.Upload) {
		u.Status = models.UploadStatusDone
	})
	m.logger.Info("upload finished", "id", short, "photos", total)
}

// processPhoto walks photo i through extraction and answering. It returns
// false if the manager was closed.
func (m *Manager) processPhoto(ctx context.Context, id string, i int) bool {
	var filename string
	m.update(id, func(u *models.Upload) {
		now := time.Now().UTC()
		filename = u.Photos[i].Filename
		u.Photos[i].Question = &models.Question{
			ID:        uuid.New().String(),
			Status:    models.QuestionStatusQueued,
			Answers:   []models.Answer{},
			CreatedAt: now,
			UpdatedAt: now,
		}
	})

	if !m.pause(ctx) {
		return false
	}
	m.setQuestion(id, i, func(q *models.Question) {
		q.Status = models.QuestionStatusExtracting
	})

	if !m.pause(ctx) {
		return false
	}

	if strings.Contains(strings.ToLower(filename), failMarker) {
		m.setQuestion(id, i, func(q *models.Question) {
			q.Status = models.QuestionStatusError
			q.ErrorMessage = fmt.Sprintf("could not extract text from %s", filename)
		})
		m.markProcessed(id)
		m.logger.Warn("photo failed", "id", id[:8], "file", filename)
		return true
	}

	text := fmt.Sprintf("Question read from %s", filename)
	m.setQuestion(id, i, func(q *models.Question) {
		q.ExtractedText = models.StringPtr(text)
		q.Status = models.QuestionStatusSolving
	})

	return m.solve(ctx, id, i, filename, text)
}

// attempt is one provider's reply, or a cancelled request.
type attempt struct {
	answer    models.Answer
	cancelled bool
}

// solve asks every provider at once and keeps the first successful answer.
// Failed attempts that arrive before it are recorded. When all providers
// fail the question ends in error with a summary of their errors.
func (m *Manager) solve(ctx context.Context, id string, i int, filename, text string) bool {
	solveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan attempt, len(m.providers))
	for _, provider := range m.providers {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if !m.pause(solveCtx) {
				results <- attempt{cancelled: true}
				return
			}
			results <- attempt{answer: m.stubAnswer(provider, filename, text)}
		}()
	}

	var failures []string
	for range m.providers {
		res := <-results
		if res.cancelled {
			return false
		}

		answer := res.answer
		if answer.Status != models.AnswerStatusSuccess {
			failures = append(failures, fmt.Sprintf("%s: %s", answer.Provider, answer.ErrorMessage))
			m.setQuestion(id, i, func(q *models.Question) {
				q.Answers = append(q.Answers, answer)
			})
			continue
		}

		m.setQuestion(id, i, func(q *models.Question) {
			q.Answers = append(q.Answers, answer)
			latest := answer
			q.LatestAnswer = &latest
			q.Status = models.QuestionStatusAnswered
		})
		m.markProcessed(id)
		return true
	}

	summary := strings.Join(failures, " | ")
	if summary == "" {
		summary = "no answer providers configured"
	}
	m.setQuestion(id, i, func(q *models.Question) {
		q.Status = models.QuestionStatusError
		q.ErrorMessage = summary
	})
	m.markProcessed(id)
	m.logger.Warn("all providers failed", "id", id[:8], "file", filename)
	return true
}

// stubAnswer produces a provider's reply. Filename markers select rate
// limited or failed replies.
func (m *Manager) stubAnswer(provider, filename, text string) models.Answer {
	answer := models.Answer{
		ID:        uuid.New().String(),
		Provider:  provider,
		Model:     provider + "-stub",
		CreatedAt: time.Now().UTC(),
	}

	lower := strings.ToLower(filename)
	switch {
	case strings.Contains(lower, rateLimitMarker):
		answer.Status = models.AnswerStatusRateLimited
		answer.ErrorMessage = "rate limit exceeded"
		return answer
	case strings.Contains(lower, noAnswerMarker):
		answer.Status = models.AnswerStatusFailed
		answer.ErrorMessage = "provider unavailable"
		return answer
	}

	content := fmt.Sprintf("%s's answer to %q", provider, text)
	tokens := len(strings.Fields(text)) + len(strings.Fields(content))
	latency := m.stepDelay.Seconds()
	answer.Content = &content
	answer.Status = models.AnswerStatusSuccess
	answer.TokensUsed = &tokens
	answer.ResponseTime = &latency
	return answer
}

func (m *Manager) markProcessed(id string) {
	m.update(id, func(u *models.Upload) {
		u.ProcessedPhotos++
		u.ProgressPercentage = u.Progress()
	})
}

// update applies fn to the stored upload under the write lock and returns
// the photo count. Removed uploads are ignored.
func (m *Manager) update(id string, fn func(u *models.Upload)) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.uploads[id]
	if !ok {
		return 0
	}
	fn(u)
	u.UpdatedAt = time.Now().UTC()
	return len(u.Photos)
}

func (m *Manager) setQuestion(id string, i int, fn func(q *models.Question)) {
	m.update(id, func(u *models.Upload) {
		q := u.Photos[i].Question
		if q == nil {
			return
		}
		fn(q)
		q.UpdatedAt = time.Now().UTC()
	})
}

// release drops the cancel func of an upload whose processing has ended.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.cancels[id]; ok {
		cancel()
		delete(m.cancels, id)
	}
}

// pause waits one step and reports false once ctx is done.
func (m *Manager) pause(ctx context.Context) bool {
	if m.stepDelay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(m.stepDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
