package mem

// Stats is a read-only snapshot of pool occupancy, used by tests to
// compare the pool before and after allocation round trips.
type Stats struct {
	TotalFrames uint64
	FreeFrames  uint64
	TotalBytes  uint64
	FreeBytes   uint64
}

// Stats returns a snapshot of the pool's current occupancy.
func (p *Pool) Stats() Stats {
	return Stats{
		TotalFrames: p.nframes,
		FreeFrames:  p.free,
		TotalBytes:  p.TotalBytes(),
		FreeBytes:   p.FreeBytes(),
	}
}
