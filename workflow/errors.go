package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownNode is returned when an operation names a node id that is
	// not in the store.
	ErrUnknownNode = errors.New("unknown node")

	// ErrInvalidPort is returned when a port is not declared for a node kind
	// in the requested direction.
	ErrInvalidPort = errors.New("invalid port")

	// ErrUnknownKind is returned when adding a node of an unregistered kind.
	ErrUnknownKind = errors.New("unknown node kind")

	// ErrDuplicateID is returned when a loaded graph repeats a node or edge id.
	ErrDuplicateID = errors.New("duplicate id")
)

// Rule identifies a build rule.
type Rule int

const (
	RuleNone Rule = iota
	RuleRequiredKinds
	RuleModelCredential
	RuleConnectivity
)

func (r Rule) String() string {
	switch r {
	case RuleRequiredKinds:
		return "required-kinds"
	case RuleModelCredential:
		return "model-credential"
	case RuleConnectivity:
		return "connectivity"
	default:
		return "none"
	}
}

// ValidationError reports a graph that does not meet the build
// preconditions. It is a dismissable notice, never fatal.
type ValidationError struct {
	Rule   Rule
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// ConfigurationError reports a missing credential caught before any request
// is sent.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return e.Reason
}

func unknownNode(id string) error {
	return fmt.Errorf("%w: %q", ErrUnknownNode, id)
}

func invalidPort(kind Kind, port Port, direction string) error {
	return fmt.Errorf("%w: %s has no %s port %q", ErrInvalidPort, kind, direction, port)
}
