package markup

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Writer serializes events.
//
// Tags are written by hand rather than through xml.Encoder so the output
// keeps raw prefixes. A start event is held back until the next event
// shows whether the element is empty; it is written as <name/> only when
// that event is its end marked Empty, and as <name></name> otherwise.
// Flush must be called after the last event.
type Writer struct {
	w       *bufio.Writer
	pending *Event
	err     error
}

// NewWriter returns a Writer that writes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write serializes a single event.
func (w *Writer) Write(ev Event) error {
	if w.err != nil {
		return w.err
	}
	if w.pending != nil {
		p := w.pending
		w.pending = nil
		if ev.Kind == KindEnd && ev.Empty && ev.Name == p.Name {
			w.writeStart(*p, true)
			return w.err
		}
		w.writeStart(*p, false)
	}

	switch ev.Kind {
	case KindStart:
		if ev.Name == "" {
			w.err = fmt.Errorf("markup: start element without a name")
			return w.err
		}
		held := ev
		w.pending = &held
	case KindEnd:
		// An Empty end after content still needs its closing tag.
		w.str("</")
		w.str(ev.Name)
		w.str(">")
	case KindText:
		escapeText(w, ev.Text)
	case KindDoctype, KindOther:
		w.str(ev.Text)
	default:
		w.err = fmt.Errorf("markup: cannot write event of kind %s", ev.Kind)
	}
	return w.err
}

// WriteAll writes every event in order.
func (w *Writer) WriteAll(events []Event) error {
	for _, ev := range events {
		if err := w.Write(ev); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes any held start tag and flushes buffered output.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	if w.pending != nil {
		w.writeStart(*w.pending, false)
		w.pending = nil
	}
	if w.err != nil {
		return w.err
	}
	if err := w.w.Flush(); err != nil {
		w.err = fmt.Errorf("markup: flush: %w", err)
	}
	return w.err
}

func (w *Writer) writeStart(ev Event, empty bool) {
	w.str("<")
	w.str(ev.Name)
	for _, a := range ev.Attrs {
		w.str(" ")
		w.str(a.Name)
		w.str(`="`)
		escapeAttr(w, a.Value)
		w.str(`"`)
	}
	if empty {
		w.str("/>")
		return
	}
	w.str(">")
}

func (w *Writer) str(s string) {
	if w.err != nil {
		return
	}
	if _, err := w.w.WriteString(s); err != nil {
		w.err = fmt.Errorf("markup: write: %w", err)
	}
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", `"`, "&quot;", "\n", "&#xA;", "\t", "&#x9;")
)

func escapeText(w *Writer, s string) {
	w.str(textEscaper.Replace(s))
}

func escapeAttr(w *Writer, s string) {
	w.str(attrEscaper.Replace(s))
}

// Serialize writes events to a string.
func Serialize(events []Event) (string, error) {
	var b strings.Builder
	w := NewWriter(&b)
	if err := w.WriteAll(events); err != nil {
		return "", err
	}
	if err := w.Flush(); err != nil {
		return "", err
	}
	return b.String(), nil
}
