// Package docker wraps the two ways quay talks to Docker: the compose CLI for
// stack lifecycle and the engine API for networks, container state and exec.
package docker

import "errors"

// ErrContainerNotFound is returned when no container matches a service.
var ErrContainerNotFound = errors.New("container not found")
