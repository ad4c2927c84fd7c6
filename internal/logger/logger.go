package logger

import (
	"fmt"
	"sync"

	"github.com/fatih/color"
)

// Logger is the status output used by packages that can run inside the
// server as well as the CLI.
type Logger interface {
	Infof(format string, args ...interface{})
	Successf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Console prints coloured status lines to stdout.
type Console struct{}

func (Console) Infof(format string, args ...interface{})    { color.Cyan(format, args...) }
func (Console) Successf(format string, args ...interface{}) { color.Green(format, args...) }
func (Console) Warnf(format string, args ...interface{})    { color.Yellow(format, args...) }
func (Console) Errorf(format string, args ...interface{})   { color.Red(format, args...) }

type Discard struct{}

func (Discard) Infof(string, ...interface{})    {}
func (Discard) Successf(string, ...interface{}) {}
func (Discard) Warnf(string, ...interface{})    {}
func (Discard) Errorf(string, ...interface{})   {}

// Recorder keeps every line; tests use it to assert on warnings.
type Recorder struct {
	mu    sync.Mutex
	Lines []string
}

func (r *Recorder) add(level, format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Lines = append(r.Lines, level+": "+fmt.Sprintf(format, args...))
}

func (r *Recorder) Infof(format string, args ...interface{})    { r.add("info", format, args...) }
func (r *Recorder) Successf(format string, args ...interface{}) { r.add("success", format, args...) }
func (r *Recorder) Warnf(format string, args ...interface{})    { r.add("warn", format, args...) }
func (r *Recorder) Errorf(format string, args ...interface{})   { r.add("error", format, args...) }

// Count returns how many recorded lines have the given level.
func (r *Recorder) Count(level string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, line := range r.Lines {
		if len(line) > len(level) && line[:len(level)+1] == level+":" {
			n++
		}
	}
	return n
}

// OrDefault returns l, or a Console logger when l is nil.
func OrDefault(l Logger) Logger {
	if l == nil {
		return Console{}
	}
	return l
}
