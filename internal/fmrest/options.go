package fmrest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// Event identifies a point in the request pipeline that can be printed.
type Event int

const (
	EventSubscription Event = iota
	EventOutput
	EventCompletion
	EventCancel
	EventDemand
	EventRequestHeader
	EventRequestURL
	EventRequestBody
	EventRequestMethod
	EventRequest
)

var eventNames = map[Event]string{
	EventSubscription:  "subscription",
	EventOutput:        "output",
	EventCompletion:    "completion",
	EventCancel:        "cancel",
	EventDemand:        "demand",
	EventRequestHeader: "request-header",
	EventRequestURL:    "request-url",
	EventRequestBody:   "request-body",
	EventRequestMethod: "request-method",
	EventRequest:       "request",
}

func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// ParseEvent maps an event name (as printed by Event.String) back to an Event.
func ParseEvent(name string) (Event, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for ev, n := range eventNames {
		if n == name {
			return ev, true
		}
	}
	return 0, false
}

// EventNames returns every event name in declaration order.
func EventNames() []string {
	out := make([]string, 0, len(eventNames))
	for ev := EventSubscription; ev <= EventRequest; ev++ {
		out = append(out, ev.String())
	}
	return out
}

// DebugEvent is a single toggle. The zero value is inactive.
type DebugEvent struct {
	Active bool
	Label  string
}

// Print returns an active toggle whose lines are prefixed with label.
func Print(label string) DebugEvent {
	return DebugEvent{Active: true, Label: label}
}

// PrintSet holds one toggle per Event.
type PrintSet struct {
	ReceiveSubscription DebugEvent
	ReceiveOutput       DebugEvent
	ReceiveCompletion   DebugEvent
	ReceiveCancel       DebugEvent
	ReceiveRequest      DebugEvent
	RequestHeader       DebugEvent
	RequestURL          DebugEvent
	RequestBody         DebugEvent
	RequestMethod       DebugEvent
	Request             DebugEvent
}

// ServerOptions groups the debug toggles of a Config.
type ServerOptions struct {
	PrintDebug PrintSet
}

// Toggle returns the toggle for ev.
func (p PrintSet) Toggle(ev Event) DebugEvent {
	switch ev {
	case EventSubscription:
		return p.ReceiveSubscription
	case EventOutput:
		return p.ReceiveOutput
	case EventCompletion:
		return p.ReceiveCompletion
	case EventCancel:
		return p.ReceiveCancel
	case EventDemand:
		return p.ReceiveRequest
	case EventRequestHeader:
		return p.RequestHeader
	case EventRequestURL:
		return p.RequestURL
	case EventRequestBody:
		return p.RequestBody
	case EventRequestMethod:
		return p.RequestMethod
	case EventRequest:
		return p.Request
	}
	return DebugEvent{}
}

// Set returns a copy of p with the toggle for ev replaced.
func (p PrintSet) Set(ev Event, t DebugEvent) PrintSet {
	switch ev {
	case EventSubscription:
		p.ReceiveSubscription = t
	case EventOutput:
		p.ReceiveOutput = t
	case EventCompletion:
		p.ReceiveCompletion = t
	case EventCancel:
		p.ReceiveCancel = t
	case EventDemand:
		p.ReceiveRequest = t
	case EventRequestHeader:
		p.RequestHeader = t
	case EventRequestURL:
		p.RequestURL = t
	case EventRequestBody:
		p.RequestBody = t
	case EventRequestMethod:
		p.RequestMethod = t
	case EventRequest:
		p.Request = t
	}
	return p
}

// Sink receives formatted debug lines. It must not block for long and has no
// way to influence the call it observes.
type Sink interface {
	Emit(ev Event, line string)
}

// WriterSink writes one line per event to W.
type WriterSink struct {
	mu sync.Mutex
	W  io.Writer
}

// NewWriterSink returns a sink printing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{W: w}
}

// Emit implements Sink.
func (s *WriterSink) Emit(_ Event, line string) {
	if s == nil || s.W == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.W, line)
}

// SlogSink forwards lines to a structured logger at debug level.
type SlogSink struct {
	Logger *slog.Logger
}

// Emit implements Sink.
func (s SlogSink) Emit(ev Event, line string) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.LogAttrs(context.Background(), slog.LevelDebug, line, slog.String("event", ev.String()))
}

// emit formats "<label> <value>", or just the value for an empty label, for an
// active toggle and hands it to sink.
func emit(sink Sink, opts ServerOptions, ev Event, value any) {
	if sink == nil {
		return
	}
	t := opts.PrintDebug.Toggle(ev)
	if !t.Active {
		return
	}
	if t.Label == "" {
		sink.Emit(ev, fmt.Sprint(value))
		return
	}
	sink.Emit(ev, fmt.Sprintf("%s %v", t.Label, value))
}
