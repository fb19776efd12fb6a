package manager

import (
	"bytes"
	"os/exec"
	"time"
)

// State represents the lifecycle state of a cached runtime.
type State string

const (
	StateSpawning State = "spawning"
	StateReady    State = "ready"
)

// Runtime is a live inference server subprocess serving one artifact.
type Runtime struct {
	ModelPath string
	State     State
	LastUsed  time.Time
	Port      int
	PID       int

	baseURL string
	cmd     *exec.Cmd
	stderr  *bytes.Buffer
	waitCh  chan error

	// Queueing primitives
	genCh   chan struct{} // size 1: single in-flight generation
	queueCh chan struct{} // buffered: queue slots
}
