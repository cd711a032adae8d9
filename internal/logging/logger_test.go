package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func resetState(t *testing.T) {
	t.Helper()
	CloseAll()
	SetBase(nil)
	mu.Lock()
	opts = Options{}
	logsDir = ""
	minLevel = zapcore.InfoLevel
	mu.Unlock()
	t.Cleanup(func() {
		CloseAll()
		SetBase(nil)
	})
}

func TestCategoriesWriteThroughBase(t *testing.T) {
	resetState(t)

	core, logs := observer.New(zapcore.DebugLevel)
	SetBase(zap.New(core))

	for _, cat := range AllCategories {
		Get(cat).Info("hello from %s", cat)
	}

	entries := logs.All()
	if len(entries) != len(AllCategories) {
		t.Fatalf("expected %d entries, got %d", len(AllCategories), len(entries))
	}
	for i, cat := range AllCategories {
		if entries[i].LoggerName != string(cat) {
			t.Errorf("entry %d: expected logger name %q, got %q", i, cat, entries[i].LoggerName)
		}
		if !strings.Contains(entries[i].Message, string(cat)) {
			t.Errorf("entry %d: message %q does not mention category", i, entries[i].Message)
		}
	}
}

func TestDisabledCategoryIsSilent(t *testing.T) {
	resetState(t)

	core, logs := observer.New(zapcore.DebugLevel)
	SetBase(zap.New(core))

	ws := t.TempDir()
	if err := Initialize(ws, Options{Level: "debug", Categories: map[string]bool{"gateway": false}}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	GatewayError("should not appear")
	BuildWarn("should appear")

	if logs.Len() != 1 {
		t.Fatalf("expected exactly one entry, got %d", logs.Len())
	}
	if logs.All()[0].LoggerName != string(CategoryBuild) {
		t.Errorf("unexpected logger %q", logs.All()[0].LoggerName)
	}
}

func TestDebugModeCreatesCategoryFiles(t *testing.T) {
	resetState(t)

	ws := t.TempDir()
	if err := Initialize(ws, Options{Level: "debug", DebugMode: true}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	Parse("parsed %d spans", 3)
	Store("ledger opened")
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(ws, ".splice", "logs"))
	if err != nil {
		t.Fatalf("read logs dir: %v", err)
	}

	want := map[string]bool{"parse": false, "store": false, "boot": false}
	for _, e := range entries {
		for cat := range want {
			if strings.HasSuffix(e.Name(), "_"+cat+".log") {
				content, err := os.ReadFile(filepath.Join(ws, ".splice", "logs", e.Name()))
				if err != nil {
					t.Fatalf("read %s: %v", e.Name(), err)
				}
				if len(content) == 0 {
					t.Errorf("log file for %s is empty", cat)
				}
				want[cat] = true
			}
		}
	}
	for cat, found := range want {
		if !found {
			t.Errorf("no log file found for category %s", cat)
		}
	}
}

func TestInitializeRequiresWorkspace(t *testing.T) {
	resetState(t)
	if err := Initialize("", Options{}); err == nil {
		t.Fatal("expected error for empty workspace")
	}
}

func TestTimerThreshold(t *testing.T) {
	resetState(t)

	core, logs := observer.New(zapcore.DebugLevel)
	SetBase(zap.New(core))

	timer := StartTimer(CategoryBuild, "noop")
	timer.StopWithThreshold(0)

	if logs.FilterLevelExact(zapcore.WarnLevel).Len() != 1 {
		t.Fatalf("expected a warning when threshold is exceeded, got %v", logs.All())
	}
}
