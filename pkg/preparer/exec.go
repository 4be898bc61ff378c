package preparer

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

type Command struct {
	Path string
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env replaces the environment when not nil.
	Env []string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// Runner runs a command to completion.
type Runner interface {
	Run(ctx context.Context, c Command) error
}

type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	out := &bytes.Buffer{}
	cmd.Stdout = out
	cmd.Stderr = out
	err := cmd.Run()
	if ctx.Err() != nil {
		return errors.Wrapf(ctx.Err(), "running %s", c)
	}
	if err != nil {
		msg := findErrorMessage(out)
		if msg == "" {
			return errors.Wrapf(err, "running %s", c)
		}
		return errors.Wrapf(errors.New(msg), "running %s", c)
	}
	return nil
}

// findErrorMessage picks the last non-blank line of output, which is
// usually where pip and shell scripts say what went wrong.
func findErrorMessage(output *bytes.Buffer) string {
	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
