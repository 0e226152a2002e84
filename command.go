package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Command wraps an external process. Whatever stream is not piped to the
// caller is collected in an output buffer for error reporting.
type Command struct {
	cmd    *exec.Cmd
	name   string
	output bytes.Buffer
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

func NewCommandContext(ctx context.Context, cmd_name string, args ...string) *Command {
	cmd := exec.CommandContext(ctx, cmd_name, args...)

	c := Command{cmd: cmd, name: cmd_name + " " + strings.Join(args, " ")}
	return &c
}

func (c *Command) Name() string {
	return c.name
}

func (c *Command) GetStdin() (io.WriteCloser, error) {
	if c.stdin == nil {
		stdin, err := c.cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
		c.stdin = stdin
	}
	return c.stdin, nil
}

func (c *Command) GetStdout() (io.ReadCloser, error) {
	if c.stdout == nil {
		stdout, err := c.cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		c.stdout = stdout
	}
	return c.stdout, nil
}

func (c *Command) Start() error {
	if c.stdout == nil {
		c.cmd.Stdout = &c.output
	}
	c.cmd.Stderr = &c.output

	return c.cmd.Start()
}

func (c *Command) Wait() error {
	if err := c.cmd.Wait(); err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}
	return nil
}

func (c *Command) CombinedOutput() (string, error) {
	if err := c.Start(); err != nil {
		return "", err
	}

	err := c.Wait()
	return c.GetOutput(), err
}

func (c *Command) GetOutput() string {
	return c.output.String()
}
