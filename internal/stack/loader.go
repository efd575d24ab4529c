package stack

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/docker/go-connections/nat"
	"gopkg.in/yaml.v3"

	"github.com/sarth-shah20/quay/internal/config"
)

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// ValidName reports whether name is usable as a stack name: non-empty,
// starting with a letter or digit, then letters, digits, '_' or '-'.
func ValidName(name string) bool { return namePattern.MatchString(name) }

// Load reads a descriptor file from path, parses it, and validates it.
func Load(path string) (*Stack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read stack config %q: %w", path, err)
	}
	return LoadBytes(data, path)
}

// LoadBytes parses and validates a descriptor from raw YAML bytes.
// The source parameter is used only for error messages.
func LoadBytes(data []byte, source string) (*Stack, error) {
	return load(data, source, false)
}

// LoadSystem parses the descriptor of the system stack, which is the only
// one allowed to use a reserved name.
func LoadSystem(data []byte, source string) (*Stack, error) {
	return load(data, source, true)
}

func load(data []byte, source string, system bool) (*Stack, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("stack config %q is empty", source)
	}
	expanded, err := config.ExpandEnv(data)
	if err != nil {
		return nil, fmt.Errorf("stack config %q: %w", source, err)
	}

	var s Stack
	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("stack config %q is empty", source)
		}
		return nil, fmt.Errorf("stack config %q: YAML parse error: %w", source, err)
	}
	if s.ComposeFilePath == "" {
		s.ComposeFilePath = DefaultComposeFile
	}
	if err := Validate(&s, source, system); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks a parsed descriptor and returns a descriptive error listing
// every problem found.
func Validate(s *Stack, source string, system bool) error {
	var errs []string

	switch {
	case strings.TrimSpace(s.Name) == "":
		errs = append(errs, "name: stack name cannot be empty")
	case !system && isReserved(s.Name):
		errs = append(errs, fmt.Sprintf("name: %q is a reserved stack name and cannot be used", s.Name))
	case !namePattern.MatchString(s.Name):
		errs = append(errs, "name: must start with alphanumeric and contain only alphanumeric, underscore, or hyphen characters")
	}

	switch s.Source.Type {
	case "":
		errs = append(errs, "source.type: field is required (local or github)")
	case SourceLocal:
		if s.Source.Slug != "" {
			errs = append(errs, "source.slug: only valid for github sources")
		}
	case SourceGitHub:
		errs = append(errs, validateSlug(s.Source.Slug)...)
	default:
		errs = append(errs, fmt.Sprintf("source.type: unsupported type %q (expected local or github)", s.Source.Type))
	}

	for i, ep := range s.Public {
		field := fmt.Sprintf("public[%d]", i)
		if strings.TrimSpace(ep.Domain) == "" {
			errs = append(errs, field+".domain: field is required")
		}
		errs = append(errs, validateTarget(field, ep.Target)...)
		if ep.Auth != "" && !strings.Contains(ep.Auth, ":") && !strings.Contains(ep.Auth, "<") {
			errs = append(errs, field+".auth: must be in 'user:password' format")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid stack config at %s:\n  - %s", source, strings.Join(errs, "\n  - "))
	}
	return nil
}

func isReserved(name string) bool {
	for _, r := range reservedNames {
		if strings.EqualFold(name, r) {
			return true
		}
	}
	return false
}

func validateSlug(slug string) []string {
	if slug == "" {
		return []string{"source.slug: field is required for github sources"}
	}
	repoPart, ref, hasRef := strings.Cut(slug, "#")
	parts := strings.Split(repoPart, "/")
	if len(parts) != 2 {
		return []string{"source.slug: must be in 'owner/repo' or 'owner/repo#ref' format"}
	}
	var errs []string
	if parts[0] == "" {
		errs = append(errs, "source.slug: owner cannot be empty")
	}
	if parts[1] == "" {
		errs = append(errs, "source.slug: repo cannot be empty")
	}
	if hasRef && ref == "" {
		errs = append(errs, "source.slug: ref cannot be empty after '#'")
	}
	return errs
}

func validateTarget(field, target string) []string {
	service, rawPort, hasPort := strings.Cut(target, ":")
	if strings.TrimSpace(service) == "" {
		return []string{field + ".target: service name is required"}
	}
	if !hasPort {
		return nil
	}
	port, err := nat.ParsePort(rawPort)
	if err != nil || port == 0 {
		return []string{fmt.Sprintf("%s.target: invalid port %q", field, rawPort)}
	}
	return nil
}
