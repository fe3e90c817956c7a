package export

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// ErrFailed wraps any exporter failure so the session can decide whether
// the local file may be deleted.
var ErrFailed = errors.New("export: handoff failed")

// Exporter hands a finalized track file to an external share target.
// The path is read-only for the exporter; the session keeps ownership of
// the file and deletes it only after Export returns nil.
type Exporter interface {
	Export(ctx context.Context, path, subject string) error
}

// Func adapts a function to the Exporter interface.
type Func func(ctx context.Context, path, subject string) error

func (f Func) Export(ctx context.Context, path, subject string) error {
	return f(ctx, path, subject)
}

// Command invokes an external program as the share action, passing the
// file path and subject as arguments.
type Command struct {
	Name string
}

// NewCommand creates a command exporter.
func NewCommand(name string) *Command {
	return &Command{Name: name}
}

func (c *Command) Export(ctx context.Context, path, subject string) error {
	if c.Name == "" {
		return fmt.Errorf("%w: no export command configured", ErrFailed)
	}
	cmd := exec.CommandContext(ctx, c.Name, path, subject)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s: %v (output: %.200s)", ErrFailed, c.Name, err, out)
	}
	return nil
}
