// Crash Protection - Fatal error handling and crash file generation

package common

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// CrashLogDir is the directory where crash files are written.
// Set during application initialization.
var CrashLogDir = "./logs"

// InstallCrashHandler sets up process-level crash protection.
// Call at the very start of main() before deferring RecoverWithCrashFile.
func InstallCrashHandler(logDir string) {
	if logDir != "" {
		CrashLogDir = logDir
	}
	if err := os.MkdirAll(CrashLogDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: Failed to create log directory: %v\n", err)
	}
}

// WriteCrashFile writes a crash report and returns its path.
func WriteCrashFile(panicVal interface{}, stackTrace string) string {
	crashPath := filepath.Join(CrashLogDir, fmt.Sprintf("crash-%s.log", time.Now().Format("2006-01-02T15-04-05")))

	var report bytes.Buffer
	report.WriteString("=== COLLIGO CRASH REPORT ===\n")
	report.WriteString(fmt.Sprintf("Time: %s\n", time.Now().Format(time.RFC3339)))
	report.WriteString(fmt.Sprintf("Version: %s\n\n", GetFullVersion()))
	report.WriteString("=== PANIC VALUE ===\n")
	report.WriteString(fmt.Sprintf("%v\n\n", panicVal))
	report.WriteString("=== STACK TRACE ===\n")
	report.WriteString(stackTrace)
	report.WriteString("\n=== ALL GOROUTINES ===\n")
	report.WriteString(allGoroutineStacks())
	report.WriteString(fmt.Sprintf("\nNumGoroutine: %d GOOS: %s GOARCH: %s\n", runtime.NumGoroutine(), runtime.GOOS, runtime.GOARCH))

	if err := os.WriteFile(crashPath, report.Bytes(), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: Failed to write crash file: %v\n%s", err, report.String())
		return ""
	}

	fmt.Fprintf(os.Stderr, "\n!!! FATAL CRASH - Report saved to: %s !!!\nPanic: %v\n", crashPath, panicVal)
	return crashPath
}

// RecoverWithCrashFile is a deferred panic recovery helper.
// Usage: defer common.RecoverWithCrashFile()
func RecoverWithCrashFile() {
	if r := recover(); r != nil {
		buf := make([]byte, 8192)
		n := runtime.Stack(buf, false)
		WriteCrashFile(r, string(buf[:n]))
		os.Exit(1)
	}
}

// allGoroutineStacks returns stack traces for all goroutines.
func allGoroutineStacks() string {
	buf := make([]byte, 64*1024)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return string(buf[:n])
		}
		buf = make([]byte, len(buf)*2)
		if len(buf) > 16*1024*1024 {
			return string(buf[:runtime.Stack(buf, true)])
		}
	}
}
