package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/getlantern/netwatch/screen"
)

const (
	bold  = "\x1b[1m"
	reset = "\x1b[0m"
)

// termWidgets prints every widget update as a line. Labels are highlighted when writing to a
// terminal.
type termWidgets struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
}

var _ screen.Widgets = (*termWidgets)(nil)

func newTermWidgets(out io.Writer, color bool) *termWidgets {
	return &termWidgets{out: out, color: color}
}

func (w *termWidgets) SetConnectivity(text string) {
	w.print("connectivity", text)
}

func (w *termWidgets) SetSignalLevel(text string) {
	w.print("signal", text)
}

func (w *termWidgets) SetAccessPoints(ssids []string) {
	if len(ssids) == 0 {
		w.print("access points", "none")
		return
	}
	w.print("access points", strings.Join(ssids, ", "))
}

func (w *termWidgets) SetInternet(text string) {
	w.print("internet", text)
}

func (w *termWidgets) print(label, text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.color {
		fmt.Fprintf(w.out, "%s%s:%s %s\n", bold, label, reset, text)
		return
	}
	fmt.Fprintf(w.out, "%s: %s\n", label, text)
}
