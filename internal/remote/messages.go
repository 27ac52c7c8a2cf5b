package remote

import (
	"errors"
	"time"

	"github.com/nerrad567/uts-core/internal/component"
	"github.com/nerrad567/uts-core/internal/location"
	"github.com/nerrad567/uts-core/internal/manager"
)

// Action is a lifecycle operation requested over MQTT.
type Action string

// Supported actions.
const (
	ActionAdd      Action = "add"
	ActionInit     Action = "init"
	ActionShutdown Action = "shutdown"
	ActionRemove   Action = "remove"
)

// CommandMessage is the payload on uts/command/{kind}/{class}/{name}.
type CommandMessage struct {
	// ID correlates the command with its acknowledgement. Optional.
	ID string `json:"id,omitempty"`

	Timestamp time.Time `json:"timestamp,omitempty"`

	Action Action `json:"action"`

	// Options are passed to the factory on add and on init's implicit add.
	Options component.Options `json:"options,omitempty"`
}

// AckStatus is the outcome of a command.
type AckStatus string

const (
	// AckAccepted indicates the operation completed.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the operation was rejected or failed.
	AckFailed AckStatus = "failed"
)

// AckMessage is the payload published on uts/ack/{kind}/{class}/{name}.
type AckMessage struct {
	CommandID string            `json:"command_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Location  location.Location `json:"location"`
	Action    Action            `json:"action"`
	Status    AckStatus         `json:"status"`
	Error     *AckError         `json:"error,omitempty"`
}

// AckError describes why a command failed.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeInvalidCommand  = "INVALID_COMMAND"
	ErrCodeResolution      = "RESOLUTION_FAILED"
	ErrCodeConstruction    = "CONSTRUCTION_FAILED"
	ErrCodePoolUnavailable = "POOL_UNAVAILABLE"
	ErrCodeLifecycle       = "LIFECYCLE_FAILED"
	ErrCodeDuplicate       = "ALREADY_REGISTERED"
	ErrCodeNotRegistered   = "NOT_REGISTERED"
	ErrCodeAlreadyRunning  = "ALREADY_RUNNING"
	ErrCodeShuttingDown    = "SHUTTING_DOWN"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// errorCode classifies a manager error.
func errorCode(err error) string {
	switch {
	case errors.Is(err, manager.ErrResolution):
		return ErrCodeResolution
	case errors.Is(err, manager.ErrConstruction):
		return ErrCodeConstruction
	case errors.Is(err, manager.ErrPoolUnavailable):
		return ErrCodePoolUnavailable
	case errors.Is(err, manager.ErrLifecycle):
		return ErrCodeLifecycle
	case errors.Is(err, manager.ErrDuplicate):
		return ErrCodeDuplicate
	case errors.Is(err, manager.ErrNotRegistered):
		return ErrCodeNotRegistered
	case errors.Is(err, manager.ErrAlreadyRunning):
		return ErrCodeAlreadyRunning
	case errors.Is(err, manager.ErrClosed):
		return ErrCodeShuttingDown
	case errors.Is(err, ErrInvalidCommand):
		return ErrCodeInvalidCommand
	default:
		return ErrCodeInternal
	}
}
