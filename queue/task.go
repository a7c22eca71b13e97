package queue

import (
	"image"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/inferops/frame"
)

// HighPriorityAbove is the priority past which a task survives stale eviction.
const HighPriorityAbove = 1.5

// DefaultPriority is the priority of an ordinary frame.
const DefaultPriority = 1.0

// Task is one frame awaiting inference.
type Task struct {
	// ID is a short unique identifier assigned on Enqueue when empty.
	ID string

	// Image is the input frame. The queue does not copy it.
	Image image.Image

	// TargetResolution is the inference resolution. Zero means the
	// scheduler's current target.
	TargetResolution frame.Resolution

	// Priority orders nothing; it only protects the task from stale eviction
	// when above HighPriorityAbove.
	Priority float64

	// EnqueuedAt is set on Enqueue.
	EnqueuedAt time.Time
}

// HighPriority reports whether t survives stale eviction.
func (t Task) HighPriority() bool {
	return t.Priority > HighPriorityAbove
}

// NewID returns a fresh 8 character task identifier.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
