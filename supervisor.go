package relayd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/nostrkit/relayd/internal/syncbuffer"
)

// stopGracePeriod is how long stop waits after the interrupt before force
// killing the relay.
const stopGracePeriod = 10 * time.Second

// supervisor owns the relay child process for its whole lifetime. The
// association is 1:1 and nothing else signals or reaps the process.
type supervisor struct {
	cmd  *exec.Cmd
	logs *syncbuffer.SyncBuffer

	// waitErr is written once by the wait goroutine before done is closed,
	// readers must observe done first.
	done    chan struct{}
	waitErr error

	stopOnce sync.Once
	stopErr  error
}

// startProcess spawns the resolved binary with the workspace as its working
// directory. Output is teed to the workspace log file and an in-memory
// buffer so callers can inspect it while the relay runs.
func startProcess(binary string, args []string, ws *workspace) (*supervisor, error) {
	logFile, err := os.Create(ws.logFile)
	if err != nil {
		return nil, fmt.Errorf("create relay log file: %w", err)
	}

	s := &supervisor{
		logs: &syncbuffer.SyncBuffer{},
		done: make(chan struct{}),
	}

	//#nosec:G204 // launching the resolved relay binary is the whole point
	cmd := exec.Command(binary, append([]string{"--config", ws.configFile}, args...)...)
	cmd.Dir = ws.dir
	cmd.Env = append(os.Environ(), "RUST_LOG=debug")
	out := io.MultiWriter(s.logs, logFile)
	cmd.Stdout = out
	cmd.Stderr = out

	err = cmd.Start()
	if err != nil {
		_ = logFile.Close()
		return nil, fmt.Errorf("start relay: %w", err)
	}
	s.cmd = cmd

	go func() {
		s.waitErr = cmd.Wait()
		_ = logFile.Close()
		close(s.done)
	}()

	return s, nil
}

// exitStatus reports whether the relay has exited, and with what status.
// A signalled process reports -1.
func (s *supervisor) exitStatus() (int, bool) {
	select {
	case <-s.done:
	default:
		return 0, false
	}
	exitErr := &exec.ExitError{}
	switch {
	case s.waitErr == nil:
		return 0, true
	case errors.As(s.waitErr, &exitErr):
		return exitErr.ExitCode(), true
	default:
		return -1, true
	}
}

// stop terminates the relay: interrupt, a bounded grace wait for in flight
// work, then a kill. Stopping an already stopped or already dead relay is a
// no-op.
func (s *supervisor) stop() error {
	s.stopOnce.Do(func() {
		s.stopErr = s.terminate()
	})
	return s.stopErr
}

func (s *supervisor) terminate() error {
	select {
	case <-s.done:
		return nil
	default:
	}

	err := s.cmd.Process.Signal(os.Interrupt)
	if err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			<-s.done
			return nil
		}
		return fmt.Errorf("interrupt relay: %w", err)
	}

	select {
	case <-s.done:
		return nil
	case <-time.After(stopGracePeriod):
	}

	err = s.cmd.Process.Kill()
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill relay: %w", err)
	}
	<-s.done
	return nil
}
