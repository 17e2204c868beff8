// Package events defines the wire shape written to duplex sessions.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Type is the event frame's discriminator.
type Type string

const (
	TypeInfo     Type = "info"
	TypeSuccess  Type = "success"
	TypeWarning  Type = "warning"
	TypeError    Type = "error"
	TypeProgress Type = "progress"
	TypePing     Type = "ping"
)

// Frame is the JSON shape written to every subscriber of a topic.
type Frame struct {
	ID        string      `json:"id"`
	TaskID    string      `json:"task_id"`
	Message   string      `json:"message"`
	Type      Type        `json:"type"`
	Timestamp string      `json:"timestamp"`
	Progress  *float64    `json:"progress"`
	Data      interface{} `json:"data"`
}

// NewFrame stamps a fresh id and UTC timestamp onto a frame.
func NewFrame(taskID, message string, typ Type, progress *float64, data interface{}) Frame {
	return Frame{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		Message:   message,
		Type:      typ,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Progress:  progress,
		Data:      data,
	}
}

// Progress builds a *float64 progress value inline.
func Progress(p float64) *float64 { return &p }

// Emitter is the capability handlers receive instead of importing the
// connection manager directly — breaks the manager/handler reference cycle.
type Emitter interface {
	Emit(topic string, frame Frame)
}
