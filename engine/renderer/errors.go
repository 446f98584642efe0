package renderer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/shader"
)

var (
	// ErrAllocation matches any *AllocationError via errors.Is.
	ErrAllocation = errors.New("device allocation failed")

	// ErrDeviceUnavailable matches any *DeviceUnavailableError via errors.Is.
	ErrDeviceUnavailable = errors.New("device unavailable")

	// ErrShaderCompile matches any *ShaderCompileError via errors.Is.
	ErrShaderCompile = errors.New("shader compilation failed")
)

// AllocationError reports a device memory allocation that could not be satisfied, either because
// the request exceeds a device limit or because the device refused it.
type AllocationError struct {
	// Label names the resource being allocated.
	Label string
	// Size is the requested size in bytes.
	Size uint64
	// Limit is the device limit that was exceeded, or zero when the device failed for another reason.
	Limit uint64
	// Err is the underlying device error, if any.
	Err error
}

func (e *AllocationError) Error() string {
	switch {
	case e.Limit > 0 && e.Err == nil:
		return fmt.Sprintf("allocate %s: %d bytes exceeds device limit of %d bytes", e.Label, e.Size, e.Limit)
	case e.Err != nil:
		return fmt.Sprintf("allocate %s (%d bytes): %v", e.Label, e.Size, e.Err)
	default:
		return fmt.Sprintf("allocate %s (%d bytes) failed", e.Label, e.Size)
	}
}

func (e *AllocationError) Unwrap() error { return e.Err }

func (e *AllocationError) Is(target error) bool { return target == ErrAllocation }

// DeviceUnavailableError reports that no device or context could be acquired for an execution model.
type DeviceUnavailableError struct {
	Model   ExecutionModel
	Backend BackendType
	Reason  string
	Err     error
}

func (e *DeviceUnavailableError) Error() string {
	msg := fmt.Sprintf("%s device unavailable for %s", e.Backend, e.Model)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DeviceUnavailableError) Unwrap() error { return e.Err }

func (e *DeviceUnavailableError) Is(target error) bool { return target == ErrDeviceUnavailable }

// ShaderCompileError reports a shader stage that failed to compile or a program that failed to link.
// Log carries the backend's diagnostic output.
type ShaderCompileError struct {
	Pipeline string
	Stage    shader.ShaderType
	Log      string
}

func (e *ShaderCompileError) Error() string {
	return fmt.Sprintf("pipeline %s: %s stage failed to compile: %s", e.Pipeline, e.Stage, e.Log)
}

func (e *ShaderCompileError) Is(target error) bool { return target == ErrShaderCompile }
