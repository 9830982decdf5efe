package rebuild

import (
	"bytes"
	"context"
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestReport_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		runErr error
		want   Outcome
	}{
		{"success", nil, Outcome{Success: true}},
		{"failure", errors.New("create indices: boom"), Outcome{Error: "create indices: boom"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Report(&buf, tt.runErr); err != nil {
				t.Fatalf("report: %v", err)
			}
			got, err := ReadOutcome(&buf)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if got != tt.want {
				t.Errorf("outcome = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestReadOutcome_Empty(t *testing.T) {
	if _, err := ReadOutcome(strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty stream")
	}
}

func TestRunWorker_Order(t *testing.T) {
	lc := &recordingLifecycle{}
	synced := false
	syncer := syncerFunc(func(context.Context) error {
		lc.calls = append(lc.calls, "sync")
		synced = true
		return nil
	})

	if err := RunWorker(context.Background(), WorkerDeps{Indices: lc, Syncer: syncer, Logger: zap.NewNop()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !synced {
		t.Fatal("sources not synced")
	}
	want := []string{"delete", "create", "sync"}
	if !reflect.DeepEqual(lc.calls, want) {
		t.Errorf("calls = %v, want %v", lc.calls, want)
	}
}

func TestRunWorker_StopsOnFirstError(t *testing.T) {
	boom := errors.New("boom")
	lc := &recordingLifecycle{createErr: boom}
	syncer := syncerFunc(func(context.Context) error {
		t.Error("sync must not run after a failed create")
		return nil
	})

	err := RunWorker(context.Background(), WorkerDeps{Indices: lc, Syncer: syncer, Logger: zap.NewNop()})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
}

// TestHelperWorker is not a real test; ExecSpawner tests run it as the child process.
func TestHelperWorker(t *testing.T) {
	mode := os.Getenv("DESKINDEX_HELPER_WORKER")
	if mode == "" {
		return
	}
	if os.Getenv(EnvDatabaseURL) != "postgres://helper" {
		os.Exit(3)
	}
	report := os.NewFile(ReportFD, "report")
	switch mode {
	case "ok":
		_ = Report(report, nil)
	case "fail":
		_ = Report(report, errors.New("sync failed"))
	case "silent":
	}
	os.Exit(0)
}

func helperSpawner(mode string) *ExecSpawner {
	return &ExecSpawner{
		Path:        os.Args[0],
		Args:        []string{"-test.run=^TestHelperWorker$"},
		DatabaseURL: "postgres://helper",
		Mode:        "test",
		Env:         []string{"DESKINDEX_HELPER_WORKER=" + mode},
	}
}

func TestExecSpawner(t *testing.T) {
	tests := []struct {
		mode    string
		success bool
		errPart string
	}{
		{"ok", true, ""},
		{"fail", false, "sync failed"},
		{"silent", false, "without reporting"},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			w, err := helperSpawner(tt.mode).Spawn(context.Background())
			if err != nil {
				t.Fatalf("spawn: %v", err)
			}
			out := w.Wait()
			if out.Success != tt.success {
				t.Fatalf("success = %v, want %v (outcome %+v)", out.Success, tt.success, out)
			}
			if !strings.Contains(out.Error, tt.errPart) {
				t.Errorf("error = %q, want it to contain %q", out.Error, tt.errPart)
			}
		})
	}
}
