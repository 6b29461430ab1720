package services

import (
	"bytes"
	"context"
	"os/exec"
)

// CommandRunner abstracts external process execution so the renderer can
// be tested with a fake ffmpeg.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs real commands, returning stderr output on failure for
// diagnostics.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	var errout bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errout

	if err := cmd.Run(); err != nil {
		return errout.String(), err
	}

	return out.String(), nil
}
