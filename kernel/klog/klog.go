// Package klog is the kernel's logging collaborator: a leveled
// log(level, fmt, args…) entry point. Formatting happens once, here, at the
// call boundary — callers never build strings themselves.
package klog

import (
	"fmt"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"talus/kernel/caller"
	"talus/kernel/circbuf"
)

// Level orders log severities from least to most urgent.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
	Critical
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	case Critical:
		return "CRIT"
	default:
		return "?"
	}
}

// defaultQueueBytes is the size of the pending-output ring buffer handed
// to the (out-of-scope) serial logger collaborator.
const defaultQueueBytes = 16 * 1024

var (
	mu       sync.Mutex
	queue    = circbuf.New(defaultQueueBytes)
	minLevel = Debug
	distinct = &caller.Distinct_caller_t{Enabled: true}
	printer  = message.NewPrinter(language.English)
)

// SetMinLevel suppresses log lines below the given severity. Tests and the
// boot console use this to quiet Debug noise without recompiling.
func SetMinLevel(l Level) {
	mu.Lock()
	minLevel = l
	mu.Unlock()
}

// Log formats and queues a log line at the given level. It never blocks and
// never fails: the queue silently overwrites its oldest unread bytes under
// sustained pressure (circbuf.Buf.Write). The logger must never become a
// reason the kernel wedges, since the fatal path relies on logging
// succeeding.
func Log(level Level, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if level < minLevel {
		return
	}
	line := fmt.Sprintf("[%s] %s\n", level, fmt.Sprintf(format, args...))
	queue.Write([]byte(line))
}

func Debugf(format string, args ...any) { Log(Debug, format, args...) }
func Infof(format string, args ...any)  { Log(Info, format, args...) }
func Warnf(format string, args ...any)  { Log(Warn, format, args...) }
func Errorf(format string, args ...any) { Log(Error, format, args...) }

// Criticalf logs at Critical severity and attaches a Go call-stack dump
// the first time this particular call chain is observed, via a
// first-time-per-call-chain dedup (kernel/caller). This matters on a
// hot fault loop (e.g. repeated page faults from one buggy task), where
// dumping a full stack every time would itself starve the log queue.
func Criticalf(format string, args ...any) {
	Log(Critical, format, args...)
	if fresh, trace := distinct.Distinct(); fresh {
		mu.Lock()
		queue.Write([]byte(trace))
		mu.Unlock()
	}
}

// FormatBytes renders a byte count with locale-grouped digits, e.g.
// "16,777,216 bytes", so large counts stay readable.
func FormatBytes(n uint64) string {
	return printer.Sprintf("%d bytes", n)
}

// Drain copies up to len(dst) queued bytes out of the pending log buffer,
// the interface point the (out-of-scope) serial logger collaborator uses to
// pull formatted lines off of talus.
func Drain(dst []byte) int {
	mu.Lock()
	defer mu.Unlock()
	return queue.Drain(dst)
}
