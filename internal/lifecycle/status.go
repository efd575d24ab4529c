package lifecycle

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/sarth-shah20/quay/internal/config"
	"github.com/sarth-shah20/quay/internal/docker"
)

// State is the coarse state of a stack.
type State int

const (
	NotDeployed State = iota
	Down
	Running
	Partial
	Unknown
)

// Status is the result of probing one stack.
type Status struct {
	Name    string
	State   State
	Running int
	Total   int
	// Err is set when State is Unknown.
	Err error
}

func (s Status) String() string {
	switch s.State {
	case NotDeployed:
		return "× Not deployed"
	case Down:
		return "× Down"
	case Running:
		return fmt.Sprintf("✓ Running (%d/%d)", s.Running, s.Total)
	case Partial:
		return fmt.Sprintf("⚠ Partial (%d/%d)", s.Running, s.Total)
	default:
		return "? Unknown"
	}
}

// MarshalJSON renders the status for `quay status --json`.
func (s Status) MarshalJSON() ([]byte, error) {
	out := struct {
		Name    string `json:"name"`
		State   string `json:"state"`
		Running int    `json:"running"`
		Total   int    `json:"total"`
		Error   string `json:"error,omitempty"`
	}{Name: s.Name, State: s.State.key(), Running: s.Running, Total: s.Total}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	return json.Marshal(out)
}

func (st State) key() string {
	switch st {
	case NotDeployed:
		return "not_deployed"
	case Down:
		return "down"
	case Running:
		return "running"
	case Partial:
		return "partial"
	default:
		return "unknown"
	}
}

// maxConcurrentProbes bounds ProbeAll.
const maxConcurrentProbes = 8

// Prober reads stack state back from the orchestrator. It never modifies
// anything.
type Prober struct {
	Paths   config.Paths
	Compose docker.Compose
	Fs      afero.Fs
}

// Probe returns the status of one stack.
func (p *Prober) Probe(ctx context.Context, name string) (Status, error) {
	fs := p.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	st := Status{Name: name}
	file := p.Paths.ManifestPath(name)
	if ok, _ := afero.Exists(fs, file); !ok {
		st.State = NotDeployed
		return st, nil
	}

	out, err := p.Compose.Output(ctx, docker.Invocation{
		File:       file,
		ProjectDir: p.Paths.ProjectDir(name),
		Command:    "ps",
		Args:       []string{"--all", "--format", "json"},
	})
	if err != nil {
		return Status{Name: name, State: Unknown, Err: err}, err
	}

	states := containerStates(out)
	st.Total = len(states)
	for _, s := range states {
		if strings.EqualFold(s, "running") {
			st.Running++
		}
	}
	switch {
	case st.Running == 0:
		st.State = Down
	case st.Running == st.Total:
		st.State = Running
	default:
		st.State = Partial
	}
	return st, nil
}

// ProbeAll probes every stack concurrently. The result follows the order of
// names; a stack whose probe fails is reported as Unknown.
func (p *Prober) ProbeAll(ctx context.Context, names []string) []Status {
	out := make([]Status, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProbes)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			st, err := p.Probe(ctx, name)
			if err != nil {
				st = Status{Name: name, State: Unknown, Err: err}
			}
			out[i] = st
			return nil
		})
	}
	g.Wait()
	return out
}

type psRecord struct {
	State string `json:"State"`
}

// containerStates parses `ps --format json` output, which is either one
// JSON object per line or a single JSON array. Malformed records and
// records without a state are dropped.
func containerStates(out []byte) []string {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil
	}
	var states []string
	if trimmed[0] == '[' {
		var records []json.RawMessage
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil
		}
		for _, raw := range records {
			var r psRecord
			if json.Unmarshal(raw, &r) == nil && r.State != "" {
				states = append(states, r.State)
			}
		}
		return states
	}

	sc := bufio.NewScanner(bytes.NewReader(trimmed))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var r psRecord
		if err := json.Unmarshal(line, &r); err != nil || r.State == "" {
			continue
		}
		states = append(states, r.State)
	}
	return states
}
