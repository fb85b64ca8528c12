package main

import (
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sync"

	"github.com/oacracker/photoqa/internal/files"
	"github.com/oacracker/photoqa/internal/render"
)

// terminalView prints previews and result pages to a writer. A page equal to
// the previous one is not printed again.
type terminalView struct {
	mu     sync.Mutex
	out    io.Writer
	logger *slog.Logger
	last   *render.Page
}

func newTerminalView(out io.Writer, logger *slog.Logger) *terminalView {
	return &terminalView{out: out, logger: logger}
}

func (v *terminalView) ClearPreviews() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.last = nil
}

func (v *terminalView) AddPreview(p files.Preview) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, "selected %s\n", p)
}

func (v *terminalView) SetTriggerEnabled(enabled bool) {
	v.logger.Debug("upload trigger", "enabled", enabled)
}

func (v *terminalView) ShowPage(p render.Page) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.last != nil && reflect.DeepEqual(*v.last, p) {
		return
	}
	v.last = &p

	fmt.Fprintln(v.out)
	if err := render.WriteText(v.out, p); err != nil {
		v.logger.Warn("failed to print results", "err", err)
	}
}
