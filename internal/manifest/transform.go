package manifest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sarth-shah20/quay/internal/config"
	"github.com/sarth-shah20/quay/internal/stack"
	"github.com/sarth-shah20/quay/internal/variables"
)

const (
	// Network is the shared, externally created network every service joins.
	Network = "quay"
	// ManagedLabel marks resources created by quay.
	ManagedLabel = "quay.managed"
)

var (
	// ErrServiceNotDefined is returned when a public endpoint targets a
	// service missing from the manifest.
	ErrServiceNotDefined = errors.New("service not defined in compose config")
	// ErrInvalidAuth is returned when an endpoint auth value has no ':'.
	ErrInvalidAuth = errors.New("auth must be in 'user:password' format")
)

// Result is a transformed manifest plus the directories that must exist
// before it is handed to the orchestrator.
type Result struct {
	Manifest *Manifest
	Dirs     []string
}

// Transformer rewrites a user manifest into the host-specific one.
type Transformer struct {
	// VolumesDir is the bind-mount root, <data>/volumes.
	VolumesDir string
	// Fs is where volume directories are created.
	Fs     afero.Fs
	Hasher Hasher
	Logger *zap.Logger
	// InternalTLS makes the proxy issue certificates from its internal CA.
	InternalTLS bool
}

// Transform returns a rewritten copy of m; m itself is never modified.
// Nothing is created on disk unless every rewrite succeeded.
func (t *Transformer) Transform(m *Manifest, s *stack.Stack, cfg *config.Config) (*Result, error) {
	out := m.Clone()
	if s.IsSystem() {
		TransformSystem(out, cfg)
	}

	t.declareNetwork(out)
	dirs := t.rewriteVolumes(out, s)
	if err := t.addPublicLabels(out, s, cfg); err != nil {
		return nil, err
	}
	if err := injectEnv(out, s, cfg); err != nil {
		return nil, err
	}
	if err := t.createDirs(dirs); err != nil {
		return nil, err
	}
	attachNetwork(out)

	return &Result{Manifest: out, Dirs: dirs}, nil
}

func (t *Transformer) logger() *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger
}

func (t *Transformer) fs() afero.Fs {
	if t.Fs == nil {
		return afero.NewOsFs()
	}
	return t.Fs
}

func (t *Transformer) hasher() Hasher {
	if t.Hasher == nil {
		return BcryptHasher{}
	}
	return t.Hasher
}

func (t *Transformer) declareNetwork(m *Manifest) {
	m.Networks()[Network] = map[string]any{
		"name":     Network,
		"external": true,
	}
}

func (t *Transformer) rewriteVolumes(m *Manifest, s *stack.Stack) []string {
	volumes := m.Volumes()
	var dirs []string
	for _, name := range sortedKeys(volumes) {
		if s.Backup.Excludes(name) {
			continue
		}
		dir := filepath.Join(t.VolumesDir, s.Name, name)
		if cfg, ok := volumes[name].(map[string]any); ok && len(cfg) > 0 && !isManagedBind(cfg, dir) {
			t.logger().Warn("volume is pre-configured and will be skipped on backup",
				zap.String("stack", s.Name), zap.String("volume", name))
			continue
		}
		dirs = append(dirs, dir)
		volumes[name] = map[string]any{
			"driver": "local",
			"driver_opts": map[string]any{
				"type":   "none",
				"o":      "bind",
				"device": dir,
			},
			"labels": map[string]any{ManagedLabel: "true"},
		}
	}
	return dirs
}

// isManagedBind reports whether cfg is the bind mount quay itself writes for
// dir, so a manifest that was already transformed is rewritten the same way.
func isManagedBind(cfg map[string]any, dir string) bool {
	opts, _ := cfg["driver_opts"].(map[string]any)
	labels, _ := cfg["labels"].(map[string]any)
	return cfg["driver"] == "local" && opts["device"] == dir && labels[ManagedLabel] == "true"
}

func (t *Transformer) addPublicLabels(m *Manifest, s *stack.Stack, cfg *config.Config) error {
	perService := map[string]int{}
	for _, ep := range s.Public {
		perService[ep.ServiceName()]++
	}
	seen := map[string]int{}

	for _, ep := range s.Public {
		name := ep.ServiceName()
		svc, ok := m.Service(name)
		if !ok {
			return fmt.Errorf("%w: %q", ErrServiceNotDefined, name)
		}

		domain, err := variables.ExpandStrict(ep.Domain, cfg)
		if err != nil {
			return fmt.Errorf("public endpoint %s: %w", ep.Target, err)
		}

		// A service with several endpoints gets caddy_0, caddy_1, ...
		prefix := "caddy"
		if perService[name] > 1 {
			prefix = fmt.Sprintf("caddy_%d", seen[name])
		}
		seen[name]++

		existing, err := CollectionOf(svc["labels"], MapEncoding)
		if err != nil {
			return fmt.Errorf("service %s labels: %w", name, err)
		}

		labels := []Entry{
			{Key: ManagedLabel, Value: "true"},
			{Key: prefix, Value: domain},
			{Key: prefix + ".reverse_proxy", Value: fmt.Sprintf("{{upstreams %d}}", ep.Port())},
		}
		if t.InternalTLS {
			labels = append(labels, Entry{Key: prefix + ".tls", Value: "internal"})
		}
		if ep.Auth != "" {
			auth, err := t.basicAuth(ep, prefix, existing, cfg)
			if err != nil {
				return err
			}
			labels = append(labels, auth...)
		}

		svc["labels"] = MergeLabels(existing, labels...).Value()
	}
	return nil
}

func (t *Transformer) basicAuth(ep stack.PublicEndpoint, prefix string, existing Collection, cfg *config.Config) ([]Entry, error) {
	auth, err := variables.ExpandStrict(ep.Auth, cfg)
	if err != nil {
		return nil, fmt.Errorf("public endpoint %s: %w", ep.Target, err)
	}
	user, secret, ok := strings.Cut(auth, ":")
	if !ok {
		return nil, fmt.Errorf("public endpoint %s: %w", ep.Target, ErrInvalidAuth)
	}

	key := prefix + ".basic_auth." + user
	var hash string
	// Keep a hash that already matches so re-running on transformed output
	// does not churn the salt.
	if prev, ok := existing.Lookup(key); ok && prev != "" {
		if unescaped := unescapeDollar(prev); t.hasher().Matches(unescaped, secret) {
			hash = unescaped
		}
	}
	if hash == "" {
		hash, err = t.hasher().Hash(secret, AuthCost)
		if err != nil {
			return nil, fmt.Errorf("hash auth secret for %s: %w", ep.Target, err)
		}
	}

	return []Entry{
		{Key: prefix + ".basic_auth", Value: ""},
		{Key: key, Value: escapeDollar(hash)},
	}, nil
}

// escapeDollar doubles every '$', which compose otherwise treats as the start
// of a variable reference.
func escapeDollar(s string) string { return strings.ReplaceAll(s, "$", "$$") }

func unescapeDollar(s string) string { return strings.ReplaceAll(s, "$$", "$") }

func injectEnv(m *Manifest, s *stack.Stack, cfg *config.Config) error {
	if s.Env == nil || (len(s.Env.Shared) == 0 && len(s.Env.ByContainer) == 0) {
		return nil
	}
	for _, name := range m.ServiceNames() {
		raw := append(append([]string(nil), s.Env.Shared...), s.Env.ByContainer[name]...)
		if len(raw) == 0 {
			continue
		}
		env, err := variables.ExpandAll(raw, cfg)
		if err != nil {
			return fmt.Errorf("service %s environment: %w", name, err)
		}
		svc, _ := m.Service(name)
		existing, err := CollectionOf(svc["environment"], ListEncoding)
		if err != nil {
			return fmt.Errorf("service %s environment: %w", name, err)
		}
		svc["environment"] = MergeEnv(existing, env...).Value()
	}
	return nil
}

func (t *Transformer) createDirs(dirs []string) error {
	fs := t.fs()
	for _, dir := range dirs {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create volume directory %s: %w", dir, err)
		}
	}
	return nil
}

func attachNetwork(m *Manifest) {
	for _, name := range m.ServiceNames() {
		svc, _ := m.Service(name)
		if _, ok := svc["network_mode"]; ok {
			continue
		}
		switch nets := svc["networks"].(type) {
		case nil:
			svc["networks"] = []any{Network}
		case []any:
			if !containsString(nets, Network) {
				svc["networks"] = append(append([]any(nil), nets...), Network)
			}
		case map[string]any:
			if _, ok := nets[Network]; !ok {
				nets[Network] = nil
			}
		}
	}
}

func containsString(list []any, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
