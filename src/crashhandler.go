package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
)

// installCrashHandler logs fatal signals with a full goroutine dump, then
// re-raises them with the default handler.
func installCrashHandler() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGABRT, syscall.SIGBUS)

	go func() {
		sig := <-sigChan

		logMsg(fmt.Sprintf("FATAL: Fatal signal: %v", sig))
		logMsg(fmt.Sprintf("FATAL: Stack trace:\n%s", stackTrace()))
		syncLog()

		signal.Reset(sig.(syscall.Signal))
		syscall.Kill(syscall.Getpid(), sig.(syscall.Signal))
	}()
}

// logPanic records a recovered panic. The caller re-panics.
func logPanic(r any) {
	logMsg(fmt.Sprintf("FATAL: Application crashed with panic: %v", r))
	logMsg(fmt.Sprintf("FATAL: Stack trace:\n%s", stackTrace()))
	syncLog()
}

func stackTrace() string {
	buf := make([]byte, 16384)
	n := runtime.Stack(buf, true)
	return string(buf[:n])
}

// haltWithFault signals an unrecoverable startup fault on the screen, if there
// is one, and blocks until the process is told to stop. It never returns.
func haltWithFault(panel *ggPanel, disp Display, frame *frameBuffer, reason string) {
	logMsg(fmt.Sprintf("FATAL: %s", reason))
	syncLog()

	if panel != nil {
		panel.drawFault(reason)
		if disp != nil && frame != nil {
			if err := frame.present(disp); err != nil {
				logMsg(fmt.Sprintf("ERROR: Could not show fault screen: %v", err))
			}
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logMsg("INFO: Halted device stopped by signal")
	syncLog()
	os.Exit(1)
}
