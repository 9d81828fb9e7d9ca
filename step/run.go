package step

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
)

// outputSentinel is the literal line prefix a running step uses to emit a
// captured name/value pair on stdout.
const outputSentinel = "CSM-OUTPUT-DATA:"

// Run executes the step's status machine:
//
//   - if any predecessor status is not in {Done, DryRun}, s becomes
//     SkippedAfterFailure;
//   - else if s.Skipped, s becomes Done without running anything;
//   - else if dryRun, s becomes DryRun without running anything;
//   - else s binds its inputs, composes its environment, and runs the
//     underlying subprocess, becoming Done or RunError.
//
// previous maps each precedent id to its terminal status; inputData maps
// each declared input name to the resolved predecessor output value.
func (s *Step) Run(ctx context.Context, dryRun bool, previous map[string]Status, inputData map[string]string) Status {
	logger := s.logger()
	logger.Info("starting step", "step", s.ID)

	s.Status = StatusReady
	for pred, st := range previous {
		if !st.Terminal() {
			logger.Warn("skipping step due to previous failures", "step", s.ID, "precedent", pred, "precedent_status", st)
			s.Status = StatusSkippedAfterFailure
			return s.Status
		}
	}

	if s.Skipped {
		logger.Info("skipping step as required", "step", s.ID)
		s.Status = StatusDone
		return s.Status
	}

	if dryRun {
		s.Status = StatusDryRun
		return s.Status
	}

	composed := s.EffectiveEnv()
	if err := s.BindInputs(inputData, composed); err != nil {
		logger.Error("missing input", "step", s.ID, "error", err)
		s.Status = StatusRunError
		return s.Status
	}

	if err := s.runSubprocess(ctx, composed, logger); err != nil {
		logger.Error("error during step", "step", s.ID, "error", err)
		s.Status = StatusRunError
		return s.Status
	}

	logger.Info("done running step", "step", s.ID)
	s.Status = StatusDone
	return s.Status
}

// runSubprocess writes a transient shell script invoking the step's command,
// runs it under the composed environment, and streams stdout/stderr,
// capturing output-data sentinel lines from stdout along the way.
func (s *Step) runSubprocess(ctx context.Context, composedEnv map[string]string, logger *slog.Logger) error {
	scriptPath, err := s.writeTransientScript()
	if err != nil {
		return fmt.Errorf("writing transient script: %w", err)
	}
	defer os.Remove(scriptPath)

	cmd := exec.CommandContext(ctx, "bash", scriptPath)
	cmd.Env = envSlice(composedEnv)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	// Cancellation kills the whole process group, not just the direct
	// child, so grandchildren spawned by the user's command die too.
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	logger.Debug("running step command", "script", scriptPath)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawning subprocess: %w", err)
	}

	done := make(chan struct{})
	go func() {
		s.streamStdout(stdout)
		done <- struct{}{}
	}()
	go func() {
		s.streamStderr(stderr)
		done <- struct{}{}
	}()
	<-done
	<-done

	waitErr := cmd.Wait()

	if waitErr != nil {
		return fmt.Errorf("subprocess exited with error: %w", waitErr)
	}
	return nil
}

// streamStdout forwards ordinary lines to the step's line log and captures
// output-data sentinel lines into s.CapturedOutputs.
func (s *Step) streamStdout(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if name, value, ok := parseSentinel(line); ok {
			s.CapturedOutputs[name] = value
			continue
		}
		s.logger().Info(line, "step", s.ID, "stream", "stdout")
	}
}

// streamStderr forwards every line (sentinel-looking or not) as ordinary
// stderr content — the sentinel protocol only applies to stdout.
func (s *Step) streamStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		s.logger().Warn(scanner.Text(), "step", s.ID, "stream", "stderr")
	}
}

// parseSentinel parses a single line against the output-data grammar: the
// first colon after the sentinel prefix separates name from value; any
// further colons are part of the value. Lines not matching the grammar
// exactly are rejected.
func parseSentinel(line string) (name, value string, ok bool) {
	rest, found := strings.CutPrefix(line, outputSentinel)
	if !found {
		return "", "", false
	}
	idx := strings.IndexByte(rest, ':')
	if idx < 0 {
		return "", "", false
	}
	name = rest[:idx]
	if name == "" {
		return "", "", false
	}
	value = rest[idx+1:]
	return name, value, true
}

// writeTransientScript writes a uniquely-named shell script under the
// system temp directory containing, in order: an optional source of a
// runtime activation script (if present next to the running executable),
// then the step's command line with each argument double-quoted. The
// command itself is written verbatim: it may be a multi-word shell
// fragment, and the shell must see it unquoted.
func (s *Step) writeTransientScript() (string, error) {
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")

	if exe, err := os.Executable(); err == nil {
		activate := filepath.Join(filepath.Dir(exe), "activate")
		if _, err := os.Stat(activate); err == nil {
			fmt.Fprintf(&b, "source %s\n", shellQuote(activate))
		}
	}

	b.WriteString(s.Command)
	for _, arg := range s.Arguments {
		b.WriteString(" ")
		b.WriteString(quoteArg(arg))
	}
	b.WriteString("\n")

	path := filepath.Join(os.TempDir(), "csm-orc-"+s.ID+"-"+uuid.NewString()+".sh")
	if err := os.WriteFile(path, []byte(b.String()), 0o700); err != nil {
		return "", err
	}
	return path, nil
}

// quoteArg double-quotes a single command argument, escaping embedded
// double quotes. Double quoting keeps $VAR references expandable by the
// shell while protecting whitespace.
func quoteArg(arg string) string {
	return `"` + strings.ReplaceAll(arg, `"`, `\"`) + `"`
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func envSlice(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	return out
}
