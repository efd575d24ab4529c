// Package stack reads stack descriptors (quay.stack.yml) and discovers them
// under a stacks root.
package stack

import (
	"strings"

	"github.com/docker/go-connections/nat"
)

const (
	// FileName is the descriptor file name looked for during discovery.
	FileName = "quay.stack.yml"
	// SystemName is the stack that runs quay's own infrastructure services.
	SystemName = "quay-system"
	// DefaultComposeFile is used when a descriptor omits compose_file_path.
	DefaultComposeFile = "./docker-compose.yml"
	// DefaultRef is the ref used for remote sources that do not name one.
	DefaultRef = "HEAD"
	// DefaultPort is the upstream port of a public endpoint without one.
	DefaultPort = 80
)

// reservedNames cannot be used by user stacks (compared case-insensitively).
var reservedNames = []string{"system", SystemName}

// SourceType tags where a stack's files come from.
type SourceType string

const (
	SourceLocal  SourceType = "local"
	SourceGitHub SourceType = "github"
)

// Source describes where a stack's files come from.
type Source struct {
	Type SourceType `yaml:"type"`
	Slug string     `yaml:"slug,omitempty"` // "owner/repo" or "owner/repo#ref"
}

// IsRemote reports whether the source must be fetched before deploying.
func (s Source) IsRemote() bool { return s.Type == SourceGitHub }

// Owner returns the repository owner of a remote source.
func (s Source) Owner() string {
	owner, _, _ := strings.Cut(s.Slug, "/")
	return owner
}

// Repo returns the repository name of a remote source, without ref.
func (s Source) Repo() string {
	_, rest, _ := strings.Cut(s.Slug, "/")
	repo, _, _ := strings.Cut(rest, "#")
	return repo
}

// Ref returns the branch, tag or commit of a remote source.
func (s Source) Ref() string {
	if _, ref, ok := strings.Cut(s.Slug, "#"); ok && ref != "" {
		return ref
	}
	return DefaultRef
}

func (s Source) String() string {
	if s.IsRemote() {
		return "GitHub " + s.Slug
	}
	return string(s.Type)
}

// PublicEndpoint exposes one service port through the reverse proxy.
type PublicEndpoint struct {
	Domain string `yaml:"domain"`
	Target string `yaml:"target"`         // "service" or "service:port"
	Auth   string `yaml:"auth,omitempty"` // "user:password"
}

// ServiceName returns the service part of Target.
func (e PublicEndpoint) ServiceName() string {
	name, _, _ := strings.Cut(e.Target, ":")
	return name
}

// Port returns the port part of Target, DefaultPort when absent.
func (e PublicEndpoint) Port() int {
	_, raw, ok := strings.Cut(e.Target, ":")
	if !ok {
		return DefaultPort
	}
	port, err := nat.ParsePort(raw)
	if err != nil || port == 0 {
		return DefaultPort
	}
	return port
}

// Env lists environment entries ("KEY=value") injected into services.
type Env struct {
	Shared      []string            `yaml:"shared"`
	ByContainer map[string][]string `yaml:"by_container"`
}

// Backup holds the backup settings of a stack.
type Backup struct {
	ExcludeVolumes []string `yaml:"exclude_volumes,omitempty"`
}

// Excludes reports whether volume is left out of the bind-mount rewrite.
func (b Backup) Excludes(volume string) bool {
	for _, v := range b.ExcludeVolumes {
		if v == volume {
			return true
		}
	}
	return false
}

// Stack is a parsed and validated quay.stack.yml.
type Stack struct {
	Name            string           `yaml:"name"`
	Source          Source           `yaml:"source"`
	ComposeFilePath string           `yaml:"compose_file_path"`
	Public          []PublicEndpoint `yaml:"public,omitempty"`
	Env             *Env             `yaml:"env,omitempty"`
	Backup          Backup           `yaml:"backup,omitempty"`
}

// IsSystem reports whether s is the reserved system stack.
func (s *Stack) IsSystem() bool { return s.Name == SystemName }
