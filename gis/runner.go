// GRASS module execution with an allowlist policy.
//
// Information Hiding:
// - Argument pruning and validation hidden
// - Process spawning abstracted behind an injectable exec function
package gis

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultModules is the set of GRASS modules the tool may invoke. Their
// semantics are opaque here: each one is a command name plus key=value
// arguments and flags on the command line.
var DefaultModules = []string{
	"v.net",
	"v.net.path",
	"v.net.salesman",
	"v.net.flow",
	"v.net.alloc",
	"v.net.distance",
	"v.net.iso",
	"v.net.steiner",
	"v.category",
	"v.edit",
	"v.to.points",
	"g.remove",
	"g.copy",
}

// Command is one GRASS module invocation.
type Command struct {
	Module string
	Args   []string
}

// NewCommand starts a command for the given module.
func NewCommand(module string) *Command {
	return &Command{Module: module}
}

// Arg appends a key=value argument.
func (c *Command) Arg(key, value string) *Command {
	c.Args = append(c.Args, key+"="+value)
	return c
}

// Flag appends a bare flag such as --overwrite or -n.
func (c *Command) Flag(flag string) *Command {
	c.Args = append(c.Args, flag)
	return c
}

// String renders the command the way it would appear on a shell line.
func (c *Command) String() string {
	return strings.Join(append([]string{c.Module}, c.Args...), " ")
}

// ExecFunc spawns a process and returns its combined output.
type ExecFunc func(ctx context.Context, name string, args []string) ([]byte, error)

// Runner executes allowlisted GRASS modules as subprocesses.
type Runner struct {
	timeout time.Duration
	allowed map[string]bool
	execFn  ExecFunc
}

// NewRunner creates a runner with the default module allowlist.
func NewRunner(timeout time.Duration) *Runner {
	r := &Runner{
		timeout: timeout,
		allowed: map[string]bool{},
		execFn:  runProcess,
	}
	for _, m := range DefaultModules {
		r.allowed[m] = true
	}
	return r
}

// WithAllowedModules replaces the module allowlist.
func (r *Runner) WithAllowedModules(modules []string) *Runner {
	r.allowed = map[string]bool{}
	for _, m := range modules {
		r.allowed[m] = true
	}
	return r
}

// WithExec replaces the process spawner. Used by tests.
func (r *Runner) WithExec(fn ExecFunc) *Runner {
	r.execFn = fn
	return r
}

// Run executes the command and returns its combined output. Arguments with
// an empty value or more than one '=' are pruned before execution, the way
// the original tool sanitized its command lists.
func (r *Runner) Run(ctx context.Context, cmd *Command) (string, error) {
	if !r.allowed[cmd.Module] {
		return "", fmt.Errorf("module %q is not allowed", cmd.Module)
	}

	args := PrepareArgs(cmd.Args)

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	out, err := r.execFn(ctx, cmd.Module, args)
	if err != nil {
		return string(out), fmt.Errorf("%s failed: %w: %s", cmd.Module, err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// PrepareArgs drops key=value arguments whose value is empty or which do
// not split into exactly key and value. Flags pass through untouched.
func PrepareArgs(args []string) []string {
	kept := make([]string, 0, len(args))
	for _, a := range args {
		if !strings.Contains(a, "=") {
			kept = append(kept, a)
			continue
		}
		parts := strings.Split(a, "=")
		if len(parts) != 2 || strings.TrimSpace(parts[1]) == "" {
			continue
		}
		kept = append(kept, a)
	}
	return kept
}

func runProcess(ctx context.Context, name string, args []string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
