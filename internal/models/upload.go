package models

import "time"

// UploadStatus represents the processing status of an upload batch.
type UploadStatus string

const (
	UploadStatusPending    UploadStatus = "pending"
	UploadStatusProcessing UploadStatus = "processing"
	UploadStatusDone       UploadStatus = "done"
	UploadStatusError      UploadStatus = "error"
)

// IsTerminal reports whether polling must stop once this status is observed.
func (s UploadStatus) IsTerminal() bool {
	return s == UploadStatusDone || s == UploadStatusError
}

// Upload is the server-side record of a batch of photos.
type Upload struct {
	ID                 string       `json:"id" yaml:"id"`
	Status             UploadStatus `json:"status" yaml:"status"`
	TotalPhotos        int          `json:"total_photos" yaml:"total_photos"`
	ProcessedPhotos    int          `json:"processed_photos" yaml:"processed_photos"`
	ProgressPercentage float64      `json:"progress_percentage" yaml:"progress_percentage"`
	CreatedAt          time.Time    `json:"created_at" yaml:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at" yaml:"updated_at"`
	Photos             []Photo      `json:"photos" yaml:"photos"`
}

// NewUpload creates an Upload in pending status with one photo per filename,
// ordered as given.
func NewUpload(id string, filenames []string) *Upload {
	now := time.Now().UTC()
	u := &Upload{
		ID:          id,
		Status:      UploadStatusPending,
		TotalPhotos: len(filenames),
		CreatedAt:   now,
		UpdatedAt:   now,
		Photos:      make([]Photo, 0, len(filenames)),
	}
	for i, name := range filenames {
		u.Photos = append(u.Photos, Photo{
			Order:      i,
			Filename:   name,
			UploadedAt: now,
		})
	}
	return u
}

// Progress returns processed/total as a percentage. An empty batch is 0%.
func (u *Upload) Progress() float64 {
	if u.TotalPhotos == 0 {
		return 0
	}
	return float64(u.ProcessedPhotos) / float64(u.TotalPhotos) * 100
}

// Clone returns a deep copy of the upload.
func (u *Upload) Clone() *Upload {
	if u == nil {
		return nil
	}
	c := *u
	c.Photos = make([]Photo, len(u.Photos))
	for i, p := range u.Photos {
		c.Photos[i] = p
		if p.Question != nil {
			c.Photos[i].Question = p.Question.clone()
		}
	}
	return &c
}

// Photo is a single uploaded image within a batch.
type Photo struct {
	ID         string    `json:"id" yaml:"id"`
	Order      int       `json:"order" yaml:"order"`
	Filename   string    `json:"filename" yaml:"filename"`
	ImageURL   string    `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	Question   *Question `json:"question" yaml:"question,omitempty"`
	UploadedAt time.Time `json:"uploaded_at" yaml:"uploaded_at"`
}

// QuestionStatus tracks text extraction and solving for one photo.
type QuestionStatus string

const (
	QuestionStatusQueued     QuestionStatus = "queued"
	QuestionStatusExtracting QuestionStatus = "extracting"
	QuestionStatusSolving    QuestionStatus = "solving"
	QuestionStatusAnswered   QuestionStatus = "answered"
	QuestionStatusError      QuestionStatus = "error"
)

// IsFinished reports whether the question counts as processed.
func (s QuestionStatus) IsFinished() bool {
	return s == QuestionStatusAnswered || s == QuestionStatusError
}

// Question is the text extracted from a photo and the answers it received.
type Question struct {
	ID            string         `json:"id" yaml:"id"`
	ExtractedText *string        `json:"extracted_text" yaml:"extracted_text,omitempty"`
	Status        QuestionStatus `json:"status" yaml:"status"`
	ErrorMessage  string         `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	Answers       []Answer       `json:"answers" yaml:"answers"`
	LatestAnswer  *Answer        `json:"latest_answer,omitempty" yaml:"latest_answer,omitempty"`
	CreatedAt     time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" yaml:"updated_at"`
}

func (q *Question) clone() *Question {
	c := *q
	if q.ExtractedText != nil {
		text := *q.ExtractedText
		c.ExtractedText = &text
	}
	c.Answers = make([]Answer, len(q.Answers))
	for i, a := range q.Answers {
		c.Answers[i] = a.clone()
	}
	if q.LatestAnswer != nil {
		latest := q.LatestAnswer.clone()
		c.LatestAnswer = &latest
	}
	return &c
}

// AnswerStatus is the per-provider outcome of an answer request.
type AnswerStatus string

const (
	AnswerStatusPending     AnswerStatus = "pending"
	AnswerStatusSuccess     AnswerStatus = "success"
	AnswerStatusFailed      AnswerStatus = "failed"
	AnswerStatusRateLimited AnswerStatus = "rate_limited"
)

// Answer is one provider/model response to a question.
type Answer struct {
	ID           string       `json:"id" yaml:"id"`
	Provider     string       `json:"provider" yaml:"provider"`
	Model        string       `json:"model" yaml:"model"`
	Content      *string      `json:"content" yaml:"content,omitempty"`
	Status       AnswerStatus `json:"status" yaml:"status"`
	ErrorMessage string       `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	TokensUsed   *int         `json:"tokens_used,omitempty" yaml:"tokens_used,omitempty"`
	ResponseTime *float64     `json:"response_time,omitempty" yaml:"response_time,omitempty"` // seconds
	CreatedAt    time.Time    `json:"created_at" yaml:"created_at"`
}

func (a Answer) clone() Answer {
	if a.Content != nil {
		content := *a.Content
		a.Content = &content
	}
	if a.TokensUsed != nil {
		tokens := *a.TokensUsed
		a.TokensUsed = &tokens
	}
	if a.ResponseTime != nil {
		rt := *a.ResponseTime
		a.ResponseTime = &rt
	}
	return a
}

// UploadPage is one page of the upload listing.
type UploadPage struct {
	Count    int       `json:"count" yaml:"count"`
	Next     *string   `json:"next" yaml:"next,omitempty"`
	Previous *string   `json:"previous" yaml:"previous,omitempty"`
	Results  []*Upload `json:"results" yaml:"results"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
