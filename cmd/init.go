package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/sarth-shah20/quay/internal/config"
	"github.com/sarth-shah20/quay/internal/stack"
)

var initOpts struct {
	rootDomain string
	user       string
	password   string
	githubPAT  string
	gitOnly    bool
	force      bool
}

// initFile is the quay.yml written by `quay init`.
type initFile struct {
	RootDomain  string            `yaml:"root_domain"`
	DefaultAuth string            `yaml:"default_auth"`
	GitHub      map[string]string `yaml:"github,omitempty"`
}

var initCmd = &cobra.Command{
	Use:         "init",
	Short:       "Create quay.yml and the stacks directory in the working directory",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipConfig: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if initOpts.gitOnly {
			if err := addToGitignore(config.DataDirName); err != nil {
				return err
			}
			out.Ok("Added %q to .gitignore", config.DataDirName)
			return nil
		}

		file := config.FileNames[0]
		if _, err := os.Stat(file); err == nil && !initOpts.force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", file)
		}

		password := initOpts.password
		if password == "" {
			var err error
			if password, err = readPassword("Default password: "); err != nil {
				return err
			}
		}
		if password == "" || strings.Contains(initOpts.user, ":") || initOpts.user == "" {
			return errors.New("default user and password must be non-empty and the user must not contain ':'")
		}

		doc := initFile{RootDomain: initOpts.rootDomain, DefaultAuth: initOpts.user + ":" + password}
		if initOpts.githubPAT != "" {
			doc.GitHub = map[string]string{"pat": initOpts.githubPAT}
		}
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		if err := os.WriteFile(file, buf.Bytes(), 0o600); err != nil {
			return err
		}
		if err := os.MkdirAll(config.StacksDirName, 0o755); err != nil {
			return err
		}
		if err := addToGitignore(config.DataDirName); err != nil {
			return err
		}
		out.Ok("Created %s and %s/ directory", file, config.StacksDirName)
		return nil
	},
}

func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("--default-password is required when not running in a terminal")
	}
	fmt.Print(prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func addToGitignore(entry string) error {
	const path = ".gitignore"
	content, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) == entry {
			return nil
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
		entry = "\n" + entry
	}
	_, err = fmt.Fprintln(f, entry)
	return err
}

var newOpts struct {
	github string
	domain string
	target string
	auth   bool
}

var newCmd = &cobra.Command{
	Use:         "new <stack>",
	Short:       "Scaffold a new stack under the stacks directory",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{skipConfig: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		s := &stack.Stack{
			Name:            args[0],
			Source:          stack.Source{Type: stack.SourceLocal},
			ComposeFilePath: stack.DefaultComposeFile,
		}
		if newOpts.github != "" {
			s.Source = stack.Source{Type: stack.SourceGitHub, Slug: newOpts.github}
		}
		if newOpts.domain != "" {
			ep := stack.PublicEndpoint{Domain: newOpts.domain, Target: newOpts.target}
			if newOpts.auth {
				ep.Auth = "<default_auth>"
			}
			s.Public = append(s.Public, ep)
		}
		if err := stack.Validate(s, "new stack", false); err != nil {
			return err
		}

		dir := filepath.Join(paths.Stacks, s.Name)
		descriptor := filepath.Join(dir, stack.FileName)
		if _, err := os.Stat(descriptor); err == nil {
			return fmt.Errorf("%s already exists", descriptor)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		data, err := yaml.Marshal(s)
		if err != nil {
			return err
		}
		if err := os.WriteFile(descriptor, data, 0o644); err != nil {
			return err
		}
		if !s.Source.IsRemote() {
			compose := filepath.Join(dir, "docker-compose.yml")
			if _, err := os.Stat(compose); os.IsNotExist(err) {
				service := "app"
				if s.Public != nil {
					service = s.Public[0].ServiceName()
				}
				body := fmt.Sprintf("services:\n  %s:\n    image: nginx:alpine\n", service)
				if err := os.WriteFile(compose, []byte(body), 0o644); err != nil {
					return err
				}
			}
		}
		out.Ok("Created stack %q at %s", s.Name, dir)
		return nil
	},
}

func init() {
	f := initCmd.Flags()
	f.StringVar(&initOpts.rootDomain, "root-domain", "example.com", "domain the public endpoints live under")
	f.StringVar(&initOpts.user, "default-user", "admin", "user of the default basic-auth credentials")
	f.StringVar(&initOpts.password, "default-password", "", "password of the default basic-auth credentials (prompted when empty)")
	f.StringVar(&initOpts.githubPAT, "github-pat", "", "GitHub token for stacks with github sources")
	f.BoolVar(&initOpts.gitOnly, "git-only", false, "only add the data directory to .gitignore")
	f.BoolVar(&initOpts.force, "force", false, "overwrite an existing quay.yml")

	nf := newCmd.Flags()
	nf.StringVar(&newOpts.github, "github", "", "use a GitHub source: owner/repo or owner/repo#ref")
	nf.StringVar(&newOpts.domain, "domain", "", "public domain, e.g. app.<root>")
	nf.StringVar(&newOpts.target, "target", "app:80", "service[:port] the domain routes to")
	nf.BoolVar(&newOpts.auth, "auth", false, "protect the endpoint with the default credentials")

	rootCmd.AddCommand(initCmd, newCmd)
}
