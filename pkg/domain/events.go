package domain

import "strings"

// EventKind distinguishes the three shapes an inbound request can take.
type EventKind int

const (
	EventCommand EventKind = iota
	EventCallback
	EventText
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventCallback:
		return "callback"
	case EventText:
		return "text"
	}
	return "unknown"
}

// Event is one inbound signal. Name holds the command name or callback id,
// Args holds free text or the raw argument string.
type Event struct {
	Kind EventKind
	Name string
	Args string
}

// Command builds a command event. A leading slash is dropped.
func Command(name, args string) Event {
	name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
	return Event{Kind: EventCommand, Name: name, Args: strings.TrimSpace(args)}
}

// Callback builds a button callback event.
func Callback(id, args string) Event {
	return Event{Kind: EventCallback, Name: strings.TrimSpace(id), Args: strings.TrimSpace(args)}
}

// Text builds a free-form text event.
func Text(value string) Event {
	return Event{Kind: EventText, Args: strings.TrimSpace(value)}
}

// Button is one inline option offered to the user.
type Button struct {
	Label    string `json:"label"`
	Callback string `json:"callback"`
}

// Reply is the response to one event.
type Reply struct {
	Text    string     `json:"response"`
	Buttons [][]Button `json:"buttons,omitempty"`
}

// Prefix prepends a notice line to the reply text.
func (r Reply) Prefix(notice string) Reply {
	if notice == "" {
		return r
	}
	r.Text = notice + "\n\n" + r.Text
	return r
}
