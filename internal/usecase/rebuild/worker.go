package rebuild

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"
)

// WorkerCommand is the subcommand that runs a rebuild worker.
const WorkerCommand = "rebuild-worker"

// ReportFD is the file descriptor the worker writes its outcome to.
const ReportFD = 3

// Environment passed to the worker.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvMode        = "ENV"
)

// Outcome is the single message a worker reports before exiting.
type Outcome struct {
	Success bool   `cbor:"success"`
	Error   string `cbor:"error,omitempty"`
}

// Report writes the outcome of runErr to w.
func Report(w io.Writer, runErr error) error {
	out := Outcome{Success: runErr == nil}
	if runErr != nil {
		out.Error = runErr.Error()
	}
	if err := cbor.NewEncoder(w).Encode(out); err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	return nil
}

// ReadOutcome decodes one outcome message from r.
func ReadOutcome(r io.Reader) (Outcome, error) {
	var out Outcome
	if err := cbor.NewDecoder(r).Decode(&out); err != nil {
		return Outcome{}, fmt.Errorf("decode outcome: %w", err)
	}
	return out, nil
}

// WorkerDeps is what a rebuild worker needs once settings are loaded.
type WorkerDeps struct {
	Indices IndexLifecycle
	Syncer  Syncer
	Logger  *zap.Logger
}

// RunWorker performs the rebuild inside the worker: drop every index,
// recreate it, then resync all sources.
func RunWorker(ctx context.Context, deps WorkerDeps) error {
	start := time.Now()
	deps.Logger.Info("Starting index rebuild")

	if err := deps.Indices.DeleteAll(ctx); err != nil {
		return fmt.Errorf("delete indices: %w", err)
	}
	if err := deps.Indices.CreateAll(ctx); err != nil {
		return fmt.Errorf("create indices: %w", err)
	}
	if err := deps.Syncer.Sync(ctx); err != nil {
		return fmt.Errorf("sync sources: %w", err)
	}

	deps.Logger.Info("Index rebuild completed", zap.Duration("took", time.Since(start)))
	return nil
}

// ExecSpawner re-executes a binary in worker mode with a report pipe on fd 3.
type ExecSpawner struct {
	// Path of the binary; the running executable when empty.
	Path string
	// Args follow the binary path; [WorkerCommand] when nil.
	Args        []string
	DatabaseURL string
	Mode        string
	// Env is appended to the inherited environment.
	Env    []string
	Logger *zap.Logger
}

// Spawn implements Spawner. The worker is not tied to ctx.
func (s *ExecSpawner) Spawn(_ context.Context) (Worker, error) {
	path := s.Path
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		path = exe
	}
	args := s.Args
	if args == nil {
		args = []string{WorkerCommand}
	}

	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create report pipe: %w", err)
	}

	cmd := exec.Command(path, args...)
	cmd.Env = append(os.Environ(), EnvDatabaseURL+"="+s.DatabaseURL, EnvMode+"="+s.Mode)
	cmd.Env = append(cmd.Env, s.Env...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{w}

	if err := cmd.Start(); err != nil {
		_ = r.Close()
		_ = w.Close()
		return nil, fmt.Errorf("start worker: %w", err)
	}
	// the child holds its own copy; closing ours lets reads see EOF when it exits
	_ = w.Close()

	if s.Logger != nil {
		s.Logger.Info("Rebuild worker started", zap.Int("pid", cmd.Process.Pid))
	}
	return &execWorker{cmd: cmd, report: r}, nil
}

type execWorker struct {
	cmd    *exec.Cmd
	report *os.File
}

func (w *execWorker) Wait() Outcome {
	out, readErr := ReadOutcome(w.report)
	_ = w.report.Close()
	waitErr := w.cmd.Wait()

	if readErr != nil {
		msg := "worker exited without reporting"
		if waitErr != nil {
			msg += ": " + waitErr.Error()
		} else if !errors.Is(readErr, io.EOF) {
			msg += ": " + readErr.Error()
		}
		return Outcome{Error: msg}
	}
	return out
}

func (w *execWorker) Terminate() error {
	if err := w.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("signal worker: %w", err)
	}
	return nil
}
