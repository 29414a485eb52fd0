// ABOUTME: Activity context enum attached to every reading.
// ABOUTME: Covers resting, running, walking, and exercising states.
package models

import "fmt"

// Context is the activity label attached to a reading.
type Context string

const (
	ContextResting    Context = "resting"
	ContextRunning    Context = "running"
	ContextWalking    Context = "walking"
	ContextExercising Context = "exercising"
)

// AllContexts lists the activity states in rotation order.
var AllContexts = []Context{
	ContextResting,
	ContextRunning,
	ContextWalking,
	ContextExercising,
}

// IsValidContext checks if a string is a known activity context.
func IsValidContext(s string) bool {
	for _, c := range AllContexts {
		if string(c) == s {
			return true
		}
	}
	return false
}

// ParseContext converts a string to a Context, rejecting unknown labels.
func ParseContext(s string) (Context, error) {
	if !IsValidContext(s) {
		return "", fmt.Errorf("unknown context: %q", s)
	}
	return Context(s), nil
}

// Next returns the context that follows c in rotation order.
func (c Context) Next() Context {
	for i, ctx := range AllContexts {
		if ctx == c {
			return AllContexts[(i+1)%len(AllContexts)]
		}
	}
	return ContextResting
}
