package agent

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAgentNotFound is returned when an agent id is not in the registry.
var ErrAgentNotFound = errors.New("agent not found")

// InvalidAgentTypeError reports an unknown agent type and the valid set.
type InvalidAgentTypeError struct {
	Type Type
}

func (e *InvalidAgentTypeError) Error() string {
	valid := make([]string, 0, len(profiles))
	for _, t := range ValidTypes() {
		valid = append(valid, string(t))
	}
	return fmt.Sprintf("invalid agent type %q (valid: %s)", e.Type, strings.Join(valid, ", "))
}

// InsufficientResourcesError reports which pool dimension is exhausted.
type InsufficientResourcesError struct {
	Dimension string // "memory" or "cpu"
	Required  float64
	Available float64
}

func (e *InsufficientResourcesError) Error() string {
	return fmt.Sprintf("insufficient %s: need %.2f, %.2f available", e.Dimension, e.Required, e.Available)
}
