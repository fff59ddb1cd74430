package markup

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Reader pulls events from a markup document.
//
// The underlying decoder runs in raw mode so prefixed names survive
// untouched; element balance is tracked here instead. An end element read
// without moving the input offset past its start tag came from <name/>.
type Reader struct {
	dec  *xml.Decoder
	open []string
	err  error

	startOff int64
	opened   bool
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	dec := xml.NewDecoder(r)
	dec.Strict = true
	dec.Entity = xml.HTMLEntity
	return &Reader{dec: dec}
}

// Next returns the next event. It returns io.EOF after the last event of a
// well-formed document and an error wrapping ErrMalformed otherwise. Once
// an error is returned every later call returns the same error.
func (r *Reader) Next() (Event, error) {
	if r.err != nil {
		return Event{}, r.err
	}
	ev, err := r.next()
	if err != nil {
		r.err = err
	}
	return ev, err
}

func (r *Reader) next() (Event, error) {
	tok, err := r.dec.RawToken()
	if errors.Is(err, io.EOF) {
		if len(r.open) > 0 {
			return Event{}, fmt.Errorf("%w: unclosed element <%s>", ErrMalformed, r.open[len(r.open)-1])
		}
		return Event{}, io.EOF
	}
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	opened := r.opened
	r.opened = false

	switch t := tok.(type) {
	case xml.StartElement:
		name := qualified(t.Name)
		r.open = append(r.open, name)
		r.startOff = r.dec.InputOffset()
		r.opened = true
		var attrs []Attr
		if len(t.Attr) > 0 {
			attrs = make([]Attr, len(t.Attr))
			for i, a := range t.Attr {
				attrs[i] = Attr{Name: qualified(a.Name), Value: a.Value}
			}
		}
		return Event{Kind: KindStart, Name: name, Attrs: attrs}, nil
	case xml.EndElement:
		name := qualified(t.Name)
		if len(r.open) == 0 {
			return Event{}, fmt.Errorf("%w: unexpected end element </%s>", ErrMalformed, name)
		}
		top := r.open[len(r.open)-1]
		if top != name {
			return Event{}, fmt.Errorf("%w: element <%s> closed by </%s>", ErrMalformed, top, name)
		}
		r.open = r.open[:len(r.open)-1]
		empty := opened && r.dec.InputOffset() == r.startOff
		return Event{Kind: KindEnd, Name: name, Empty: empty}, nil
	case xml.CharData:
		return Event{Kind: KindText, Text: string(t)}, nil
	case xml.Comment:
		return Event{Kind: KindOther, Text: "<!--" + string(t) + "-->"}, nil
	case xml.ProcInst:
		var b strings.Builder
		b.WriteString("<?")
		b.WriteString(t.Target)
		if len(t.Inst) > 0 {
			b.WriteByte(' ')
			b.Write(t.Inst)
		}
		b.WriteString("?>")
		return Event{Kind: KindOther, Text: b.String()}, nil
	case xml.Directive:
		raw := "<!" + string(t) + ">"
		if bytes.HasPrefix(bytes.TrimSpace(t), []byte("DOCTYPE")) {
			return Event{Kind: KindDoctype, Text: raw}, nil
		}
		return Event{Kind: KindOther, Text: raw}, nil
	default:
		return Event{}, fmt.Errorf("%w: unsupported token %T", ErrMalformed, tok)
	}
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// Parse reads a whole document into memory.
func Parse(text string) ([]Event, error) {
	return ParseReader(strings.NewReader(text))
}

// ParseReader reads every event from r.
func ParseReader(r io.Reader) ([]Event, error) {
	rd := NewReader(r)
	var out []Event
	for {
		ev, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
}
