package logging

import (
	"bytes"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

func TestDebug_DisabledInProduction(t *testing.T) {
	var buf bytes.Buffer

	logger := log.NewWithOptions(&buf, log.Options{
		ReportTimestamp: false,
		ReportCaller:    false,
	})
	logger.SetLevel(log.DebugLevel)

	appLogger := &AppLogger{
		logger: logger,
		debug:  false, // Production mode
	}

	appLogger.Debug("debug message that should not appear")

	output := buf.String()
	if strings.Contains(output, "debug message that should not appear") {
		t.Errorf("Expected debug message to be suppressed in production mode, got: %s", output)
	}
}

func TestLogToolCall(t *testing.T) {
	logger, buf := NewTestLogger()

	logger.LogToolCall("get_merge_request", map[string]any{"projectId": "group/project", "iid": "7"})

	output := buf.String()
	if !strings.Contains(output, "Tool call received") {
		t.Errorf("Expected log output to contain 'Tool call received', got: %s", output)
	}
	if !strings.Contains(output, "get_merge_request") {
		t.Errorf("Expected log output to contain tool name, got: %s", output)
	}
	if !strings.Contains(output, "group/project") {
		t.Errorf("Expected log output to contain arguments, got: %s", output)
	}
}

func TestLogToolCall_DisabledInProduction(t *testing.T) {
	var buf bytes.Buffer

	logger := log.NewWithOptions(&buf, log.Options{})
	logger.SetLevel(log.DebugLevel)

	appLogger := &AppLogger{
		logger: logger,
		debug:  false,
	}

	appLogger.LogToolCall("get_current_branch", nil)

	if strings.Contains(buf.String(), "Tool call received") {
		t.Errorf("Expected tool call logging to be suppressed in production mode, got: %s", buf.String())
	}
}

func TestDebugObject(t *testing.T) {
	logger, buf := NewTestLogger()

	testObj := struct {
		Name  string
		Value int
	}{
		Name:  "test",
		Value: 42,
	}

	logger.DebugObject("test_object", testObj)

	output := buf.String()
	if !strings.Contains(output, "Object dump") {
		t.Errorf("Expected log output to contain 'Object dump', got: %s", output)
	}
	if !strings.Contains(output, "test_object") {
		t.Errorf("Expected log output to contain object name, got: %s", output)
	}
}

func TestLogPerformance(t *testing.T) {
	logger, buf := NewTestLogger()

	start := time.Now()
	time.Sleep(1 * time.Millisecond)
	logger.LogPerformance("resolve_project", start)

	output := buf.String()
	if !strings.Contains(output, "Performance") {
		t.Errorf("Expected log output to contain 'Performance', got: %s", output)
	}
	if !strings.Contains(output, "resolve_project") {
		t.Errorf("Expected log output to contain operation name, got: %s", output)
	}
	if !strings.Contains(output, "duration") {
		t.Errorf("Expected log output to contain duration, got: %s", output)
	}
}

func TestLogStateTransition(t *testing.T) {
	logger, buf := NewTestLogger()

	logger.LogStateTransition("resolver", "pending", "verifying")

	output := buf.String()
	if !strings.Contains(output, "State transition") {
		t.Errorf("Expected log output to contain 'State transition', got: %s", output)
	}
	if !strings.Contains(output, "resolver") {
		t.Errorf("Expected log output to contain component name, got: %s", output)
	}
	if !strings.Contains(output, "pending") || !strings.Contains(output, "verifying") {
		t.Errorf("Expected log output to contain both states, got: %s", output)
	}
}

func TestWith_CarriesFields(t *testing.T) {
	logger, buf := NewTestLogger()

	logger.With("tool", "create_merge_request").Info("starting")

	output := buf.String()
	if !strings.Contains(output, "create_merge_request") {
		t.Errorf("Expected derived logger to carry fields, got: %s", output)
	}
}

func TestStandardLog(t *testing.T) {
	logger, buf := NewTestLogger()

	logger.StandardLog().Print("stdio transport closed")

	output := buf.String()
	if !strings.Contains(output, "stdio transport closed") || !strings.Contains(output, "ERRO") {
		t.Errorf("Expected error-level entry from standard logger, got: %s", output)
	}
}

func TestSetLevel(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		wantErr bool
	}{
		{"empty keeps level", "", false},
		{"info", "info", false},
		{"error", "error", false},
		{"debug", "debug", false},
		{"unknown", "chatty", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := NewTestLogger()
			err := logger.SetLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("SetLevel(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
		})
	}
}

func TestSetLevel_FiltersBelowThreshold(t *testing.T) {
	logger, buf := NewTestLogger()

	if err := logger.SetLevel("error"); err != nil {
		t.Fatalf("SetLevel failed: %v", err)
	}
	logger.Info("should be filtered")
	logger.Error("should appear")

	output := buf.String()
	if strings.Contains(output, "should be filtered") {
		t.Errorf("Expected info entry to be filtered, got: %s", output)
	}
	if !strings.Contains(output, "should appear") {
		t.Errorf("Expected error entry to be written, got: %s", output)
	}
}

func TestPackageLevelFunctions(t *testing.T) {
	// Reset the singleton for testing
	defaultLogger = nil
	once = sync.Once{}
	t.Cleanup(func() {
		defaultLogger = nil
		once = sync.Once{}
	})

	t.Setenv("XDG_STATE_HOME", t.TempDir())
	xdg.Reload()
	t.Setenv("DEBUG", "1")

	Info("package level info")
	Warn("package level warn")
	Error("package level error")
	Debug("package level debug")
	LogPerformance("package_operation", time.Now())

	if _, err := os.Stat(DebugLogPath()); err != nil {
		t.Errorf("Expected debug log file at %s: %v", DebugLogPath(), err)
	}
}

func TestGetDefault_Singleton(t *testing.T) {
	defaultLogger = nil
	once = sync.Once{}

	logger1 := GetDefault()
	logger2 := GetDefault()

	if logger1 != logger2 {
		t.Error("Expected GetDefault() to return the same instance (singleton)")
	}
}

// Benchmark tests
func BenchmarkInfo(b *testing.B) {
	logger, _ := NewTestLogger()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("benchmark message", "iteration", i)
	}
}

func BenchmarkDebug(b *testing.B) {
	logger, _ := NewTestLogger()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Debug("benchmark debug message", "iteration", i)
	}
}
