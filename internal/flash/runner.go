package flash

import (
	"bufio"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

// CommandResult is the outcome of one programmer invocation.
type CommandResult struct {
	Output   string
	ExitCode int
	Duration time.Duration
}

// Runner executes external commands. The error is reserved for commands
// that could not be started or were cancelled; a non-zero exit is reported
// through ExitCode.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (CommandResult, error)
}

// ExecRunner runs commands with os/exec, merging stderr into stdout.
type ExecRunner struct {
	// Dir is the working directory. Empty inherits the process's.
	Dir string
	// ToolDir, when set, is prepended to PATH so a bundled programmer wins
	// over the system one.
	ToolDir string
	// OnLine receives each output line as it is produced.
	OnLine func(line string)
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	r.applyEnv(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return CommandResult{ExitCode: -1}, err
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return CommandResult{ExitCode: -1, Duration: time.Since(start)}, err
	}

	var out strings.Builder
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		out.WriteString(line)
		out.WriteByte('\n')
		if r.OnLine != nil {
			r.OnLine(line)
		}
	}

	res := CommandResult{Output: out.String()}
	err = cmd.Wait()
	res.Duration = time.Since(start)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		res.ExitCode = -1
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return res, err
	}
	return res, nil
}

func (r ExecRunner) applyEnv(cmd *exec.Cmd) {
	if r.ToolDir != "" {
		cmd.Env = buildEnvWithPath(r.ToolDir)
	}
	if r.Dir != "" {
		cmd.Dir = r.Dir
	}
}

// buildEnvWithPath creates a copy of the current environment with binDir
// prepended to PATH.
func buildEnvWithPath(binDir string) []string {
	env := os.Environ()
	result := make([]string, 0, len(env)+1)
	pathSet := false

	for _, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			result = append(result, "PATH="+binDir+string(os.PathListSeparator)+e[5:])
			pathSet = true
		} else {
			result = append(result, e)
		}
	}

	if !pathSet {
		result = append(result, "PATH="+binDir)
	}

	return result
}
