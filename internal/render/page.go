// Package render turns upload records into a presentation-neutral page model
// and writes that model as terminal text or HTML.
package render

import (
	"fmt"

	"github.com/oacracker/photoqa/internal/models"
)

// Placeholders shown while the backend has not produced a value yet.
const (
	PlaceholderText   = "Extracting text..."
	PlaceholderAnswer = "Waiting for answer..."
)

// NoticeKind classifies a notice that replaces the results region.
type NoticeKind string

const (
	NoticeInfo       NoticeKind = "info"
	NoticeValidation NoticeKind = "validation"
	NoticeError      NoticeKind = "error"
)

// Notice is a single message shown instead of results.
type Notice struct {
	Kind    NoticeKind
	Message string
}

// Page is the full content of the results region.
type Page struct {
	Notice *Notice

	UploadID  string
	Status    string
	Processed int
	Total     int
	Percent   float64
	Photos    []PhotoCard
}

// PhotoCard is one photo and its extracted question.
type PhotoCard struct {
	Filename       string
	Text           string
	TextPending    bool
	QuestionStatus string
	Error          string
	Answers        []AnswerCard
}

// AnswerCard is one provider's answer.
type AnswerCard struct {
	Provider string
	Model    string
	Content  string
	Status   string
	Error    string
	Tokens   string
	Latency  string
}

// IsNotice reports whether the page carries a notice rather than a record.
func (p Page) IsNotice() bool {
	return p.Notice != nil
}

// Terminal reports whether the page shows a finished upload.
func (p Page) Terminal() bool {
	return models.UploadStatus(p.Status).IsTerminal()
}

// NoticePage builds a page that shows only msg.
func NoticePage(kind NoticeKind, msg string) Page {
	return Page{Notice: &Notice{Kind: kind, Message: msg}}
}

// Build maps an upload record to a page. It does not modify u and returns an
// equal page for equal input.
func Build(u *models.Upload) Page {
	if u == nil {
		return NoticePage(NoticeError, "no upload record")
	}

	page := Page{
		UploadID:  u.ID,
		Status:    string(u.Status),
		Processed: u.ProcessedPhotos,
		Total:     u.TotalPhotos,
		Percent:   u.ProgressPercentage,
		Photos:    make([]PhotoCard, 0, len(u.Photos)),
	}
	if page.Percent == 0 {
		page.Percent = u.Progress()
	}

	for _, photo := range u.Photos {
		page.Photos = append(page.Photos, buildPhoto(photo))
	}
	return page
}

func buildPhoto(photo models.Photo) PhotoCard {
	card := PhotoCard{
		Filename:    photo.Filename,
		Text:        PlaceholderText,
		TextPending: true,
	}

	q := photo.Question
	if q == nil {
		return card
	}

	card.QuestionStatus = string(q.Status)
	card.Error = q.ErrorMessage
	if q.ExtractedText != nil && *q.ExtractedText != "" {
		card.Text = *q.ExtractedText
		card.TextPending = false
	}

	card.Answers = make([]AnswerCard, 0, len(q.Answers))
	for _, a := range q.Answers {
		card.Answers = append(card.Answers, buildAnswer(a))
	}
	return card
}

func buildAnswer(a models.Answer) AnswerCard {
	card := AnswerCard{
		Provider: a.Provider,
		Model:    a.Model,
		Content:  PlaceholderAnswer,
		Status:   string(a.Status),
		Error:    a.ErrorMessage,
	}
	if a.Content != nil && *a.Content != "" {
		card.Content = *a.Content
	}
	if a.TokensUsed != nil {
		card.Tokens = fmt.Sprintf("%d tokens", *a.TokensUsed)
	}
	if a.ResponseTime != nil {
		card.Latency = fmt.Sprintf("%.2fs", *a.ResponseTime)
	}
	return card
}
