package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "default config",
			cfg:     Config{Path: tmpDir, Level: "info", Format: "json"},
			wantErr: false,
		},
		{
			name:    "text format",
			cfg:     Config{Path: tmpDir, Level: "debug", Format: "text"},
			wantErr: false,
		},
		{
			name:    "invalid level",
			cfg:     Config{Path: tmpDir, Level: "verbose"},
			wantErr: true,
		},
		{
			name:    "no path (stderr only)",
			cfg:     Config{Level: "info", Format: "json"},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if logger != nil {
				logger.Close()
			}
		})
	}
}

func TestLogFileCreated(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := New(Config{Path: tmpDir, Level: "info", Format: "json"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer logger.Close()

	logger.Info("hello")

	want := filepath.Join(tmpDir, fmt.Sprintf("%s%s.log", filePrefix, time.Now().Format("2006-01-02")))
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log file missing message: %s", data)
	}
}

func TestWithComponent(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := New(Config{Path: tmpDir, Level: "debug", Format: "json"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer logger.Close()

	logger.WithComponent("orchestrator").InfoCtx("step complete", map[string]any{
		"step": 2,
	})

	files, err := logger.LogFiles()
	if err != nil || len(files) == 0 {
		t.Fatalf("LogFiles: files=%v err=%v", files, err)
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, `"component":"orchestrator"`) {
		t.Errorf("component field missing: %s", line)
	}
	if !strings.Contains(line, `"step":2`) {
		t.Errorf("structured field missing: %s", line)
	}
}

func TestLevelFiltering(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := New(Config{Path: tmpDir, Level: "warn", Format: "json"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer logger.Close()

	logger.Info("not logged")
	logger.Warn("logged")

	files, _ := logger.LogFiles()
	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if strings.Contains(string(data), "not logged") {
		t.Error("info message written despite warn level")
	}
	if !strings.Contains(string(data), "logged") {
		t.Error("warn message missing")
	}
}

func TestSweepOldLogs(t *testing.T) {
	tmpDir := t.TempDir()

	old := filepath.Join(tmpDir, filePrefix+"2020-01-01.log")
	recent := filepath.Join(tmpDir, filePrefix+time.Now().AddDate(0, 0, -1).Format("2006-01-02")+".log")
	unrelated := filepath.Join(tmpDir, "other.log")
	for _, path := range []string{old, recent, unrelated} {
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	l := &Logger{logDir: tmpDir}
	l.sweepOldLogs(7)

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("old log not swept")
	}
	if _, err := os.Stat(recent); err != nil {
		t.Errorf("recent log swept: %v", err)
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Errorf("unrelated file swept: %v", err)
	}
}

func TestListLogFilesNewestFirst(t *testing.T) {
	tmpDir := t.TempDir()

	names := []string{
		filePrefix + "2024-05-01.log",
		filePrefix + "2024-05-03.log",
		filePrefix + "2024-05-02.log",
		"notes.txt",
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	files, err := ListLogFiles(tmpDir)
	if err != nil {
		t.Fatalf("ListLogFiles: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("got %d files, want 3: %v", len(files), files)
	}
	want := []string{
		filepath.Join(tmpDir, filePrefix+"2024-05-03.log"),
		filepath.Join(tmpDir, filePrefix+"2024-05-02.log"),
		filepath.Join(tmpDir, filePrefix+"2024-05-01.log"),
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %s, want %s", i, files[i], want[i])
		}
	}
}

func TestListLogFilesEmptyDir(t *testing.T) {
	files, err := ListLogFiles("")
	if err != nil || files != nil {
		t.Errorf("empty dir: files=%v err=%v", files, err)
	}
}

func TestGlobalLogger(t *testing.T) {
	tmpDir := t.TempDir()

	if err := Init(Config{Path: tmpDir, Level: "info", Format: "json"}); err != nil {
		t.Fatalf("Init: %v", err)
	}

	Component("scheduler").Info("tick")

	files, err := ListLogFiles(tmpDir)
	if err != nil || len(files) == 0 {
		t.Fatalf("ListLogFiles: files=%v err=%v", files, err)
	}
	data, _ := os.ReadFile(files[0])
	if !strings.Contains(string(data), `"component":"scheduler"`) {
		t.Errorf("global component log missing: %s", data)
	}
}
