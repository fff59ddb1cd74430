// Package markup adapts note markup to and from a flat stream of events.
//
// A document is parsed into doctype, start element, end element, text and
// pass-through events in document order. Element and attribute names keep
// their raw prefixes (for example "xml:lang"); no namespace resolution is
// performed. Serialization writes the events back without reordering
// attributes.
package markup

import "errors"

// ErrMalformed is returned for input that is not well-formed markup.
var ErrMalformed = errors.New("markup: malformed input")

// Kind identifies the type of an Event.
type Kind int

// Event kinds.
const (
	KindDoctype Kind = iota + 1
	KindStart
	KindEnd
	KindText
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindDoctype:
		return "doctype"
	case KindStart:
		return "start"
	case KindEnd:
		return "end"
	case KindText:
		return "text"
	case KindOther:
		return "other"
	default:
		return "unknown"
	}
}

// Attr is a single element attribute.
type Attr struct {
	Name  string
	Value string
}

// Event is one item of a markup stream.
//
// Name is set for start and end events, Attrs only for start events.
// Text holds the unescaped character data of a text event, or the raw
// markup of a doctype or other event (written back verbatim). Empty is
// set on the end event of an element written as <name/>.
type Event struct {
	Kind  Kind
	Name  string
	Attrs []Attr
	Text  string
	Empty bool
}

// Start returns a start element event.
func Start(name string, attrs ...Attr) Event {
	return Event{Kind: KindStart, Name: name, Attrs: attrs}
}

// End returns an end element event.
func End(name string) Event {
	return Event{Kind: KindEnd, Name: name}
}

// EmptyEnd returns an end event that closes an element with no content
// as <name/>.
func EmptyEnd(name string) Event {
	return Event{Kind: KindEnd, Name: name, Empty: true}
}

// Text returns a text event.
func Text(s string) Event {
	return Event{Kind: KindText, Text: s}
}

// Doctype returns a doctype event; raw is written as is.
func Doctype(raw string) Event {
	return Event{Kind: KindDoctype, Text: raw}
}

// A returns an attribute.
func A(name, value string) Attr {
	return Attr{Name: name, Value: value}
}

// AttrValue returns the value of the named attribute.
func (e Event) AttrValue(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// WithAttr returns a copy of e where the first attribute called name has
// its value replaced. A missing attribute is appended.
func (e Event) WithAttr(name, value string) Event {
	attrs := make([]Attr, len(e.Attrs), len(e.Attrs)+1)
	copy(attrs, e.Attrs)
	for i := range attrs {
		if attrs[i].Name == name {
			attrs[i].Value = value
			e.Attrs = attrs
			return e
		}
	}
	e.Attrs = append(attrs, Attr{Name: name, Value: value})
	return e
}

// WithoutAttrs returns a copy of e with every attribute in names removed.
func (e Event) WithoutAttrs(names ...string) Event {
	attrs := make([]Attr, 0, len(e.Attrs))
next:
	for _, a := range e.Attrs {
		for _, n := range names {
			if a.Name == n {
				continue next
			}
		}
		attrs = append(attrs, a)
	}
	e.Attrs = attrs
	return e
}

// Rename returns a copy of e with a new element name.
func (e Event) Rename(name string) Event {
	e.Name = name
	if e.Attrs != nil {
		attrs := make([]Attr, len(e.Attrs))
		copy(attrs, e.Attrs)
		e.Attrs = attrs
	}
	return e
}
