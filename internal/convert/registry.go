package convert

// Tag identifies one of the special note tags.
type Tag int

// Registered tags.
const (
	TagNote Tag = iota
	TagMedia
	TagTodo
	TagCrypt

	tagCount
)

var tagNames = [tagCount]string{
	TagNote:  "en-note",
	TagMedia: "en-media",
	TagTodo:  "en-todo",
	TagCrypt: "en-crypt",
}

// Name returns the element name of the tag.
func (t Tag) Name() string {
	if t < 0 || t >= tagCount {
		return ""
	}
	return tagNames[t]
}

// TagByName returns the tag with the given element name.
func TagByName(name string) (Tag, bool) {
	for t, n := range tagNames {
		if n == name {
			return Tag(t), true
		}
	}
	return 0, false
}

// Mode selects the built-in converter set.
type Mode int

const (
	// ModeReference renders media as links to external URLs.
	ModeReference Mode = iota
	// ModeInline embeds media payloads as data URIs.
	ModeInline
)

func (m Mode) String() string {
	if m == ModeInline {
		return "inline"
	}
	return "reference"
}

// ParseMode accepts "reference" and "inline".
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "reference", "":
		return ModeReference, true
	case "inline":
		return ModeInline, true
	}
	return 0, false
}

// Set holds optional converter overrides. Nil fields are unset.
type Set struct {
	Note  Converter
	Media Converter
	Todo  Converter
	Crypt Converter
}

func (s Set) slots() [tagCount]Converter {
	return [tagCount]Converter{
		TagNote:  s.Note,
		TagMedia: s.Media,
		TagTodo:  s.Todo,
		TagCrypt: s.Crypt,
	}
}

// Registry maps every tag to exactly one converter. It is immutable once
// built and safe for concurrent use.
type Registry struct {
	mode Mode
	conv [tagCount]Converter
}

// NewRegistry returns a registry where every slot left unset in overrides
// holds the built-in converter for mode.
func NewRegistry(mode Mode, overrides Set) *Registry {
	r := &Registry{mode: mode, conv: defaults(mode)}
	for t, c := range overrides.slots() {
		if c != nil {
			r.conv[t] = c
		}
	}
	return r
}

// With returns a copy of r with the set slots of overrides replaced.
// Unset slots keep their current converter.
func (r *Registry) With(overrides Set) *Registry {
	next := &Registry{mode: r.mode, conv: r.conv}
	for t, c := range overrides.slots() {
		if c != nil {
			next.conv[t] = c
		}
	}
	return next
}

// Mode returns the mode the registry defaults were built for.
func (r *Registry) Mode() Mode {
	return r.mode
}

// Get returns the converter for t.
func (r *Registry) Get(t Tag) Converter {
	if t < 0 || t >= tagCount {
		return nil
	}
	return r.conv[t]
}

// Lookup returns the converter registered for an element name.
func (r *Registry) Lookup(name string) (Converter, bool) {
	t, ok := TagByName(name)
	if !ok {
		return nil, false
	}
	return r.conv[t], true
}

func defaults(mode Mode) [tagCount]Converter {
	media := Converter(ReferenceMedia{})
	if mode == ModeInline {
		media = InlineMedia{}
	}
	return [tagCount]Converter{
		TagNote:  NoteBody{},
		TagMedia: media,
		TagTodo:  TodoCheckbox{},
		TagCrypt: CryptPlaceholder{},
	}
}
