// view.go - Recording view for controller tests
package testutil

import (
	"sync"

	"github.com/oacracker/photoqa/internal/files"
	"github.com/oacracker/photoqa/internal/render"
)

// RecordingView records every call the controller makes on its view.
type RecordingView struct {
	mu       sync.Mutex
	previews []files.Preview
	clears   int
	trigger  []bool
	pages    []render.Page
}

// NewRecordingView creates an empty view with the trigger enabled.
func NewRecordingView() *RecordingView {
	return &RecordingView{}
}

func (v *RecordingView) ClearPreviews() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clears++
	v.previews = nil
}

func (v *RecordingView) AddPreview(p files.Preview) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.previews = append(v.previews, p)
}

func (v *RecordingView) SetTriggerEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.trigger = append(v.trigger, enabled)
}

func (v *RecordingView) ShowPage(p render.Page) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pages = append(v.pages, p)
}

// Test Helper Methods

// Previews returns the previews shown since the last clear.
func (v *RecordingView) Previews() []files.Preview {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]files.Preview(nil), v.previews...)
}

// Clears returns how many times previews were cleared.
func (v *RecordingView) Clears() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.clears
}

// TriggerEnabled returns the last trigger state, true if never set.
func (v *RecordingView) TriggerEnabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.trigger) == 0 {
		return true
	}
	return v.trigger[len(v.trigger)-1]
}

// Pages returns every page shown, oldest first.
func (v *RecordingView) Pages() []render.Page {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]render.Page(nil), v.pages...)
}

// PageCount returns how many pages were shown.
func (v *RecordingView) PageCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.pages)
}

// LastPage returns the most recent page and false if none was shown.
func (v *RecordingView) LastPage() (render.Page, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.pages) == 0 {
		return render.Page{}, false
	}
	return v.pages[len(v.pages)-1], true
}
