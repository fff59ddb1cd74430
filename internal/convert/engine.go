package convert

import (
	"errors"
	"fmt"
	"io"

	"github.com/starford/noteml/internal/markup"
	"github.com/starford/noteml/internal/models"
)

// Output document prologue.
const (
	XHTMLDoctype = `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Transitional//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-transitional.dtd">`
	XHTMLNS      = "http://www.w3.org/1999/xhtml"
)

var (
	// ErrStackUnderflow is returned when a registered end tag has no
	// matching start tag.
	ErrStackUnderflow = errors.New("convert: end tag without matching start tag")
	// ErrUnclosed is returned when a stream ends with registered tags open.
	ErrUnclosed = errors.New("convert: registered tags left open")
)

// Source yields events until io.EOF.
type Source interface {
	Next() (markup.Event, error)
}

// Sink receives output events.
type Sink interface {
	Write(markup.Event) error
}

// Transform reads markup from r and writes XHTML to w using reg.
func Transform(r io.Reader, w io.Writer, reg *Registry, note *models.Note, ctx Context) error {
	out := markup.NewWriter(w)
	if err := Run(markup.NewReader(r), out, reg, note, ctx); err != nil {
		return err
	}
	return out.Flush()
}

// TransformEvents converts an in-memory event list.
func TransformEvents(events []markup.Event, reg *Registry, note *models.Note, ctx Context) ([]markup.Event, error) {
	src := &sliceSource{events: events}
	dst := &sliceSink{}
	if err := Run(src, dst, reg, note, ctx); err != nil {
		return nil, err
	}
	return dst.events, nil
}

// Run streams src into dst in a single pass.
func Run(src Source, dst Sink, reg *Registry, note *models.Note, ctx Context) error {
	st := &state{
		reg:      reg,
		note:     note,
		ctx:      ctx,
		dst:      dst,
		deferred: make(map[uint64][]markup.Event),
	}
	for {
		ev, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("convert: read: %w", err)
		}
		if err := st.handle(ev); err != nil {
			return err
		}
		st.prev = ev
	}
	if len(st.stack) > 0 {
		return fmt.Errorf("%w: <%s>", ErrUnclosed, st.stack[len(st.stack)-1].end.Name)
	}
	if st.rooted {
		return st.emit(markup.End("html"))
	}
	return nil
}

// frame is an end tag waiting for its registered element to close.
type frame struct {
	end   markup.Event
	token uint64
}

type state struct {
	reg  *Registry
	note *models.Note
	ctx  Context
	dst  Sink

	stack    []frame
	deferred map[uint64][]markup.Event
	next     uint64
	prev     markup.Event
	rooted   bool
}

func (s *state) handle(ev markup.Event) error {
	switch ev.Kind {
	case markup.KindDoctype:
		s.rooted = true
		return s.emit(
			markup.Doctype(XHTMLDoctype),
			markup.Start("html", markup.A("xmlns", XHTMLNS)),
		)
	case markup.KindStart:
		conv, ok := s.reg.Lookup(ev.Name)
		if !ok {
			return s.emit(ev)
		}
		return s.open(conv, ev)
	case markup.KindText:
		if s.prev.Kind == markup.KindStart {
			if conv, ok := s.reg.Lookup(s.prev.Name); ok {
				if repl, ok := conv.ConvertCharacter(ev, s.prev, s.note, s.ctx); ok {
					return s.emit(repl)
				}
			}
		}
		return s.emit(ev)
	case markup.KindEnd:
		if _, ok := s.reg.Lookup(ev.Name); !ok {
			return s.emit(ev)
		}
		return s.close(ev)
	default:
		return s.emit(ev)
	}
}

func (s *state) open(conv Converter, tag markup.Event) error {
	if err := s.emit(conv.InsertBefore(tag, s.note, s.ctx)...); err != nil {
		return err
	}
	start, end := conv.ConvertElement(tag, s.note, s.ctx)
	if err := s.emit(start); err != nil {
		return err
	}
	s.next++
	s.stack = append(s.stack, frame{end: end, token: s.next})
	if after := conv.InsertAfter(tag, s.note, s.ctx); len(after) > 0 {
		s.deferred[s.next] = after
	}
	return s.emit(conv.InsertIn(tag, s.note, s.ctx)...)
}

func (s *state) close(ev markup.Event) error {
	if len(s.stack) == 0 {
		return fmt.Errorf("%w: </%s>", ErrStackUnderflow, ev.Name)
	}
	top := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	end := top.end
	if ev.Empty && end.Name == ev.Name {
		// A kept element stays self-closed.
		end.Empty = true
	}
	if err := s.emit(end); err != nil {
		return err
	}
	after := s.deferred[top.token]
	delete(s.deferred, top.token)
	return s.emit(after...)
}

func (s *state) emit(events ...markup.Event) error {
	for _, ev := range events {
		if err := s.dst.Write(ev); err != nil {
			return fmt.Errorf("convert: write: %w", err)
		}
	}
	return nil
}

type sliceSource struct {
	events []markup.Event
	pos    int
}

func (s *sliceSource) Next() (markup.Event, error) {
	if s.pos >= len(s.events) {
		return markup.Event{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

type sliceSink struct {
	events []markup.Event
}

func (s *sliceSink) Write(ev markup.Event) error {
	s.events = append(s.events, ev)
	return nil
}
