// Package stats provides always-on atomic counters for scheduler
// bookkeeping (context switches, preemptions, tasks created/reaped).
// The scheduler's GetStats contract needs these to be live in every
// build, never gated behind a debug flag.
package stats

import (
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
)

// Counter is a monotonically increasing named event counter.
type Counter struct {
	n atomic.Int64
}

// Inc increments the counter by one.
func (c *Counter) Inc() {
	c.n.Add(1)
}

// Add adds delta to the counter.
func (c *Counter) Add(delta int64) {
	c.n.Add(delta)
}

// Value returns the current count.
func (c *Counter) Value() int64 {
	return c.n.Load()
}

// Dump renders every exported Counter field of the struct st points to
// as "name: value" lines, via reflection, so a new counter field needs
// no change here. st must be a pointer to a struct.
func Dump(st any) string {
	v := reflect.ValueOf(st).Elem()
	var b strings.Builder
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if !strings.HasSuffix(field.Type().String(), "stats.Counter") {
			continue
		}
		c := field.Addr().Interface().(*Counter)
		b.WriteString("\n\t#")
		b.WriteString(v.Type().Field(i).Name)
		b.WriteString(": ")
		b.WriteString(strconv.FormatInt(c.Value(), 10))
	}
	b.WriteString("\n")
	return b.String()
}
