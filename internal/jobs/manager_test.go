package jobs

import (
	"testing"
	"time"

	"github.com/oacracker/photoqa/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, delay time.Duration) *Manager {
	t.Helper()
	m := NewManager(Options{StepDelay: delay, Providers: []string{"openai", "groq"}})
	t.Cleanup(m.Close)
	return m
}

func waitTerminal(t *testing.T, m *Manager, id string) *models.Upload {
	t.Helper()
	var got *models.Upload
	require.Eventually(t, func() bool {
		u, ok := m.Get(id)
		if !ok {
			return false
		}
		got = u
		return u.Status.IsTerminal()
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func TestManager_CreateReturnsPendingRecord(t *testing.T) {
	m := newTestManager(t, time.Hour)

	u := m.Create([]string{"a.png", "b.png"})

	assert.NotEmpty(t, u.ID)
	assert.Equal(t, models.UploadStatusPending, u.Status)
	assert.Equal(t, 2, u.TotalPhotos)
	require.Len(t, u.Photos, 2)
	assert.Equal(t, "a.png", u.Photos[0].Filename)
	assert.Equal(t, "b.png", u.Photos[1].Filename)
	assert.NotEmpty(t, u.Photos[0].ID)
	assert.Nil(t, u.Photos[0].Question)
}

func TestManager_ProcessesToDone(t *testing.T) {
	m := newTestManager(t, 0)

	created := m.Create([]string{"a.png", "b.png"})
	u := waitTerminal(t, m, created.ID)

	assert.Equal(t, models.UploadStatusDone, u.Status)
	assert.Equal(t, 2, u.ProcessedPhotos)
	assert.InDelta(t, 100.0, u.ProgressPercentage, 0.001)
	for _, p := range u.Photos {
		require.NotNil(t, p.Question)
		assert.Equal(t, models.QuestionStatusAnswered, p.Question.Status)
		require.NotNil(t, p.Question.ExtractedText)
		assert.Contains(t, *p.Question.ExtractedText, p.Filename)
		require.Len(t, p.Question.Answers, 1, "only the first successful answer is kept")
		answer := p.Question.Answers[0]
		assert.Contains(t, []string{"openai", "groq"}, answer.Provider)
		assert.Equal(t, models.AnswerStatusSuccess, answer.Status)
		require.NotNil(t, answer.Content)
		require.NotNil(t, p.Question.LatestAnswer)
		assert.Equal(t, answer.ID, p.Question.LatestAnswer.ID)
	}
}

func TestManager_AllProvidersFail(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		wantStatus models.AnswerStatus
		wantError  string
	}{
		{"rate limited", "quiz-ratelimit.png", models.AnswerStatusRateLimited, "rate limit exceeded"},
		{"unavailable", "quiz-noanswer.png", models.AnswerStatusFailed, "provider unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t, 0)

			created := m.Create([]string{tt.filename})
			u := waitTerminal(t, m, created.ID)

			assert.Equal(t, models.UploadStatusDone, u.Status)
			assert.Equal(t, 1, u.ProcessedPhotos)

			q := u.Photos[0].Question
			require.NotNil(t, q)
			assert.Equal(t, models.QuestionStatusError, q.Status)
			require.NotNil(t, q.ExtractedText, "text was extracted before solving")
			assert.Nil(t, q.LatestAnswer)
			require.Len(t, q.Answers, 2)
			for _, a := range q.Answers {
				assert.Equal(t, tt.wantStatus, a.Status)
				assert.Equal(t, tt.wantError, a.ErrorMessage)
				assert.Nil(t, a.Content)
			}
			assert.Contains(t, q.ErrorMessage, "openai: "+tt.wantError)
			assert.Contains(t, q.ErrorMessage, "groq: "+tt.wantError)
			assert.Contains(t, q.ErrorMessage, " | ")
		})
	}
}

func TestManager_Delete(t *testing.T) {
	m := newTestManager(t, time.Hour)
	created := m.Create([]string{"a.png"})

	assert.True(t, m.Delete(created.ID))
	_, ok := m.Get(created.ID)
	assert.False(t, ok)
	_, total := m.List(1, 10)
	assert.Equal(t, 0, total)

	assert.False(t, m.Delete(created.ID))

	m.mu.RLock()
	assert.Empty(t, m.cancels, "processing of the deleted upload is cancelled")
	m.mu.RUnlock()

	exited := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(exited)
	}()
	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("processing goroutine still running after Delete")
	}
}

func TestManager_FailingPhoto(t *testing.T) {
	m := newTestManager(t, 0)

	created := m.Create([]string{"ok.png", "will-fail.png"})
	u := waitTerminal(t, m, created.ID)

	assert.Equal(t, models.UploadStatusDone, u.Status)
	assert.Equal(t, 2, u.ProcessedPhotos)
	assert.Equal(t, models.QuestionStatusAnswered, u.Photos[0].Question.Status)

	failed := u.Photos[1].Question
	assert.Equal(t, models.QuestionStatusError, failed.Status)
	assert.NotEmpty(t, failed.ErrorMessage)
	assert.Nil(t, failed.ExtractedText)
	assert.Empty(t, failed.Answers)
}

func TestManager_EmptyBatchFinishesImmediately(t *testing.T) {
	m := newTestManager(t, 0)

	created := m.Create(nil)
	u := waitTerminal(t, m, created.ID)

	assert.Equal(t, models.UploadStatusDone, u.Status)
	assert.Empty(t, u.Photos)
}

func TestManager_GetReturnsCopy(t *testing.T) {
	m := newTestManager(t, time.Hour)
	created := m.Create([]string{"a.png"})

	u, ok := m.Get(created.ID)
	require.True(t, ok)
	u.Photos[0].Filename = "changed.png"

	again, _ := m.Get(created.ID)
	assert.Equal(t, "a.png", again.Photos[0].Filename)

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestManager_List(t *testing.T) {
	m := newTestManager(t, time.Hour)
	var ids []string
	for i := 0; i < 3; i++ {
		ids = append(ids, m.Create([]string{"a.png"}).ID)
		time.Sleep(2 * time.Millisecond)
	}

	page, total := m.List(1, 2)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID, "newest first")
	assert.Equal(t, ids[1], page[1].ID)

	page, _ = m.List(2, 2)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)

	page, _ = m.List(5, 2)
	assert.Empty(t, page)
}

func TestManager_CleanupOldJobs(t *testing.T) {
	m := newTestManager(t, 0)
	done := m.Create([]string{"a.png"})
	waitTerminal(t, m, done.ID)

	assert.Empty(t, m.CleanupOldJobs(time.Hour), "recent uploads are kept")
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, []string{done.ID}, m.CleanupOldJobs(time.Millisecond))

	_, ok := m.Get(done.ID)
	assert.False(t, ok)
}

func TestManager_CleanupKeepsActiveUploads(t *testing.T) {
	m := newTestManager(t, time.Hour)
	active := m.Create([]string{"a.png"})
	time.Sleep(5 * time.Millisecond)

	assert.Empty(t, m.CleanupOldJobs(time.Millisecond))
	_, ok := m.Get(active.ID)
	assert.True(t, ok)
}

func TestManager_SetImageURL(t *testing.T) {
	m := newTestManager(t, time.Hour)
	created := m.Create([]string{"a.png"})
	photoID := created.Photos[0].ID

	assert.True(t, m.SetImageURL(created.ID, photoID, "/media/uploads/x/y.png"))
	u, _ := m.Get(created.ID)
	assert.Equal(t, "/media/uploads/x/y.png", u.Photos[0].ImageURL)

	assert.False(t, m.SetImageURL(created.ID, "nope", "/x"))
	assert.False(t, m.SetImageURL("nope", photoID, "/x"))
}
