package lifecycle

import (
	"context"
	"errors"
	"os"
	"testing"
)

func deployFake(t *testing.T, e *env, name string) {
	t.Helper()
	if err := os.MkdirAll(e.ctl.Paths.ProjectDir(name), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(e.ctl.Paths.ManifestPath(name), []byte("services: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestProbe(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   Status
	}{
		{"down", "", Status{State: Down}},
		{"running", `{"Name":"a","State":"running"}
{"Name":"b","State":"running"}`, Status{State: Running, Running: 2, Total: 2}},
		{"partial", `{"State":"running"}
{"State":"exited"}
{"State":"exited"}`, Status{State: Partial, Running: 1, Total: 3}},
		{"all exited", `{"State":"exited"}`, Status{State: Down, Total: 1}},
		{"malformed lines dropped", `{"State":"running"}
not json
{"Name":"no state"}
{"State":"exited"}`, Status{State: Partial, Running: 1, Total: 2}},
		{"array output", `[{"State":"running"},{"State":"running"}]`, Status{State: Running, Running: 2, Total: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			deployFake(t, e, "site")
			e.compose.outputs["site"] = tt.output
			p := &Prober{Paths: e.ctl.Paths, Compose: e.compose}

			got, err := p.Probe(context.Background(), "site")
			if err != nil {
				t.Fatalf("Probe: %v", err)
			}
			tt.want.Name = "site"
			if got != tt.want {
				t.Errorf("Probe = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestProbeNotDeployed(t *testing.T) {
	e := newEnv(t)
	p := &Prober{Paths: e.ctl.Paths, Compose: e.compose}
	got, err := p.Probe(context.Background(), "ghost")
	if err != nil || got.State != NotDeployed {
		t.Fatalf("Probe = %+v, %v", got, err)
	}
}

func TestProbeAllKeepsOrder(t *testing.T) {
	e := newEnv(t)
	for _, n := range []string{"a", "b", "c"} {
		deployFake(t, e, n)
	}
	e.compose.outputs["a"] = `{"State":"running"}`
	e.compose.outputs["c"] = `{"State":"exited"}`
	p := &Prober{Paths: e.ctl.Paths, Compose: e.compose}

	got := p.ProbeAll(context.Background(), []string{"c", "missing", "a", "b"})
	want := []State{Down, NotDeployed, Running, Down}
	if len(got) != len(want) {
		t.Fatalf("len = %d", len(got))
	}
	for i, st := range got {
		if st.State != want[i] {
			t.Errorf("%s: state = %v, want %v", st.Name, st.State, want[i])
		}
	}
}

func TestProbeAllReportsFailures(t *testing.T) {
	e := newEnv(t)
	deployFake(t, e, "a")
	e.compose.err = errors.New("daemon unavailable")
	p := &Prober{Paths: e.ctl.Paths, Compose: e.compose}

	got := p.ProbeAll(context.Background(), []string{"a"})
	if got[0].State != Unknown || got[0].Err == nil {
		t.Errorf("status = %+v, want Unknown with error", got[0])
	}
}

func TestStatusString(t *testing.T) {
	tests := map[string]Status{
		"× Not deployed":  {State: NotDeployed},
		"× Down":          {State: Down},
		"✓ Running (3/3)": {State: Running, Running: 3, Total: 3},
		"⚠ Partial (1/3)": {State: Partial, Running: 1, Total: 3},
	}
	for want, st := range tests {
		if got := st.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
