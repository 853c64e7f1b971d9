package main

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const LOG_PATH = "./spotideck.log"

var (
	logMu      sync.Mutex
	logOut     io.Writer = os.Stdout
	logFile    *os.File
	logDebugOn bool
)

// initLogger sends log lines to stdout and, when toFile is set, appends them to path.
func initLogger(path string, toFile bool, debug bool) error {
	logMu.Lock()
	defer logMu.Unlock()

	logDebugOn = debug
	if !toFile {
		logOut = os.Stdout
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	logFile = f
	logOut = io.MultiWriter(os.Stdout, f)
	return nil
}

// setLogOutput redirects logging, used by tests to capture output.
func setLogOutput(w io.Writer) {
	logMu.Lock()
	logOut = w
	logMu.Unlock()
}

func logMsg(message string) {
	logMu.Lock()
	defer logMu.Unlock()
	if strings.HasPrefix(message, "DEBUG:") && !logDebugOn {
		return
	}
	io.WriteString(logOut, time.Now().Format("2006-01-02 15:04:05.999")+" - "+message+"\n")
}

func syncLog() {
	logMu.Lock()
	if logFile != nil {
		logFile.Sync()
	}
	logMu.Unlock()
}
