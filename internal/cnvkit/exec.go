package cnvkit

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"syscall"
	"time"

	"cnvpilot/internal/logging"
)

// ExecInvoker runs commands through os/exec, streaming their combined output
// to the log. A zero Timeout waits forever, matching the source pipelines; a
// positive Timeout bounds the call with SIGTERM, escalating to SIGKILL after
// GraceDelay.
type ExecInvoker struct {
	Timeout    time.Duration
	GraceDelay time.Duration // default 30s
}

func (e *ExecInvoker) Run(ctx context.Context, name string, args ...string) error {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	logger := logging.New("cnvkit")
	logger.Info("exec", "cmd", name, "args", args)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = e.GraceDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = 30 * time.Second
	}

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	done := make(chan struct{})
	go func() {
		defer close(done)
		sc := bufio.NewScanner(pr)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			logger.Debug("output", "cmd", name, "line", sc.Text())
		}
	}()

	err := cmd.Run()
	pw.Close()
	<-done

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%s timed out after %s: %w", name, e.Timeout, err)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
