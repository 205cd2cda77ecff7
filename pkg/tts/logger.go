package tts

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	logPath = ""
	mu      sync.RWMutex
)

// SetLogPath configures the path for the TTS history file. An empty path
// disables it.
func SetLogPath(path string) {
	mu.Lock()
	defer mu.Unlock()
	logPath = path
}

// Log appends a synthesis request and its outcome to the history file.
func Log(provider, voice, text string, bytes int, err error) {
	mu.RLock()
	path := logPath
	mu.RUnlock()
	if path == "" {
		return
	}

	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	f, fileErr := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if fileErr != nil {
		return
	}
	defer f.Close()

	status := fmt.Sprintf("OK %d bytes", bytes)
	if err != nil {
		status = fmt.Sprintf("ERROR(%v)", err)
	}

	entry := fmt.Sprintf("[%s] [%s/%s] STATUS: %s\nTEXT:\n%s\n--------------------------------------------------\n",
		time.Now().Format("2006-01-02 15:04:05"), provider, voice, status, text)
	_, _ = f.WriteString(entry)
}
