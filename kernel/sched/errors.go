package sched

import "errors"

var (
	errNoFreeSlot  = errors.New("sched: task table full")
	errOutOfFrames = errors.New("sched: out of physical frames")
	errMapFailed   = errors.New("sched: failed to map task memory")
	errBadELF      = errors.New("sched: invalid ELF image")
	errUnknownTask = errors.New("sched: no task with that id")
)
