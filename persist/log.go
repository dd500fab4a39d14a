package persist

import (
	"log"
	"os"
	"time"
)

// Logger wraps a standard library logger that writes to a file, bracketing
// the file's lifetime with STARTUP and SHUTDOWN lines so that a truncated
// log is immediately recognizable as such.
type Logger struct {
	*log.Logger
	file *os.File
}

// NewLogger returns a logger that appends to (or creates) the file at
// filename, writing a STARTUP line immediately.
func NewLogger(filename string) (*Logger, error) {
	file, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	logger := log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile|log.LUTC)
	logger.Println("STARTUP: logging has started.")
	return &Logger{Logger: logger, file: file}, nil
}

// Close writes a SHUTDOWN line and closes the underlying file.
func (l *Logger) Close() error {
	l.Println("SHUTDOWN: logging has terminated.")
	return l.file.Close()
}

// timestamp is a small helper retained for callers that want to embed a
// human-readable time in a message rather than relying on the logger's own
// prefix formatting.
func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
