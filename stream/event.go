package stream

import "fmt"

// Kind tags the variant of an Event.
type Kind int

const (
	KindText Kind = iota
	KindDone
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindDone:
		return "done"
	case KindError:
		return "error"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is one logical item of a stream. Done and Error are terminal.
type Event struct {
	Kind       Kind
	Text       string // KindText
	TotalChars int    // KindDone
	Err        error  // KindError
}

func Text(fragment string) Event {
	return Event{Kind: KindText, Text: fragment}
}

func Done(totalChars int) Event {
	return Event{Kind: KindDone, TotalChars: totalChars}
}

func Error(err error) Event {
	return Event{Kind: KindError, Err: err}
}

// Terminal reports whether no events may follow e.
func (e Event) Terminal() bool {
	return e.Kind == KindDone || e.Kind == KindError
}

func (e Event) String() string {
	switch e.Kind {
	case KindText:
		return fmt.Sprintf("Text(%q)", e.Text)
	case KindDone:
		return fmt.Sprintf("Done(%d)", e.TotalChars)
	case KindError:
		return fmt.Sprintf("Error(%v)", e.Err)
	}
	return e.Kind.String()
}
