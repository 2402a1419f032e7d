// Command ktrace converts a JSON-encoded kernel scheduler snapshot
// (talus/kernel/sched.Snapshot) into a pprof profile, so per-task CPU-tick
// distribution can be inspected with `go tool pprof`.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/pprof/profile"

	"talus/kernel/sched"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <snapshot.json> <out.pb.gz>\n", os.Args[0])
		os.Exit(1)
	}

	in, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, "ktrace:", err)
		os.Exit(1)
	}
	var snap sched.Snapshot
	if err := json.Unmarshal(in, &snap); err != nil {
		fmt.Fprintln(os.Stderr, "ktrace: decoding snapshot:", err)
		os.Exit(1)
	}

	p, err := buildProfile(snap)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ktrace:", err)
		os.Exit(1)
	}

	out, err := os.Create(os.Args[2])
	if err != nil {
		fmt.Fprintln(os.Stderr, "ktrace:", err)
		os.Exit(1)
	}
	defer out.Close()
	if err := p.Write(out); err != nil {
		fmt.Fprintln(os.Stderr, "ktrace:", err)
		os.Exit(1)
	}
}

// buildProfile maps each task in the snapshot to one pprof sample whose
// single stack frame names the task, and whose value is its accumulated
// tick count.
func buildProfile(snap sched.Snapshot) (*profile.Profile, error) {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "ticks", Unit: "count"}},
		PeriodType: &profile.ValueType{Type: "ticks", Unit: "count"},
		Period:     1,
	}

	for i, t := range snap.Tasks {
		fn := &profile.Function{
			ID:   uint64(i + 1),
			Name: fmt.Sprintf("task[%d] %s (%s)", t.ID, t.Name, t.State),
		}
		loc := &profile.Location{
			ID:   uint64(i + 1),
			Line: []profile.Line{{Function: fn, Line: 1}},
		}
		p.Function = append(p.Function, fn)
		p.Location = append(p.Location, loc)
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{int64(t.Ticks)},
		})
	}

	return p, p.CheckValid()
}
