package domain

import "time"

// EventType tags every message relayed to a caller.
type EventType string

const (
	EventStdout   EventType = "stdout"
	EventStderr   EventType = "stderr"
	EventProgress EventType = "progress"
	EventWarning  EventType = "warning"
	EventSuccess  EventType = "success"
	EventError    EventType = "error"
)

// Event is one discrete message of a build stream.
// Exactly one terminal event (success or error) ends every stream.
type Event struct {
	Type    EventType `json:"type"`
	Data    string    `json:"data,omitempty"`
	Message string    `json:"message,omitempty"`
	APKPath string    `json:"apkPath,omitempty"`
	APKName string    `json:"apkName,omitempty"`
	BuildID string    `json:"buildId,omitempty"`
}

// Terminal reports whether the event closes the stream.
func (e Event) Terminal() bool {
	return e.Type == EventSuccess || e.Type == EventError
}

// EmitFunc receives events in arrival order.
type EmitFunc func(Event)

// Stream identifies the pipe a chunk of toolchain output came from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// OutputChunk is a piece of subprocess output, delivered as it arrives.
type OutputChunk struct {
	Stream Stream
	Data   []byte
}

// Event converts the chunk into its relay form.
func (c OutputChunk) Event() Event {
	t := EventStdout
	if c.Stream == StreamStderr {
		t = EventStderr
	}
	return Event{Type: t, Data: string(c.Data)}
}

// BuildOutcome is the terminal result of one toolchain invocation. It is never mutated after creation.
type BuildOutcome struct {
	ExitCode     int
	ArtifactPath string
	Stdout       []byte
	Stderr       []byte
	Duration     time.Duration
	Err          error
}

// Success reports a zero exit code with no spawn or timeout error.
func (o BuildOutcome) Success() bool {
	return o.Err == nil && o.ExitCode == 0
}
