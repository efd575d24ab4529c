package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/mattn/go-shellwords"
	"github.com/spf13/viper"
)

// FileNames are the config file names looked up in the working directory.
var FileNames = []string{"quay.yml", "quay.yaml"}

const defaultComposeCommand = "docker compose"

// ErrNotFound is returned when no config file exists.
var ErrNotFound = errors.New("config file not found")

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// Find returns the first config file present in dir.
func Find(dir string) (string, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: make sure you have %s in %s", ErrNotFound, FileNames[0], dir)
}

// Load reads the configuration from the given filename (e.g., "quay.yml").
// ${VAR} references are expanded from the environment before decoding.
func Load(filename string) (*Config, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return LoadBytes(raw, filename)
}

// LoadBytes decodes and validates a config document. The source parameter is
// used only for error messages.
func LoadBytes(raw []byte, source string) (*Config, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("config file %s is empty", source)
	}
	expanded, err := ExpandEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", source, err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("system_services.portainer", true)
	v.SetDefault("system_services.netdata", true)
	if err := v.ReadConfig(bytes.NewReader(expanded)); err != nil {
		return nil, fmt.Errorf("invalid YAML in config file %s: %w", source, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.ErrorUnused = true
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config file %s: %w", source, err)
	}

	if err := cfg.validate(source); err != nil {
		return nil, err
	}
	cfg.DefaultUser, cfg.DefaultPassword, _ = strings.Cut(cfg.DefaultAuth, ":")
	return &cfg, nil
}

func (c *Config) validate(source string) error {
	var errs []string

	if strings.TrimSpace(c.RootDomain) == "" {
		errs = append(errs, "root_domain: field is required")
	}
	switch n := strings.Count(c.DefaultAuth, ":"); {
	case c.DefaultAuth == "":
		errs = append(errs, "default_auth: field is required")
	case n == 0:
		errs = append(errs, "default_auth: must be in 'user:password' format (missing ':')")
	case n > 1:
		errs = append(errs, "default_auth: must be in 'user:password' format (multiple ':' found)")
	default:
		user, password, _ := strings.Cut(c.DefaultAuth, ":")
		if user == "" {
			errs = append(errs, "default_auth: username cannot be empty")
		}
		if password == "" {
			errs = append(errs, "default_auth: password cannot be empty")
		}
	}

	if b := c.Backup; b != nil {
		for field, val := range map[string]string{
			"password":      b.Password,
			"s3_endpoint":   b.S3Endpoint,
			"s3_bucket":     b.S3Bucket,
			"s3_access_key": b.S3AccessKey,
			"s3_secret_key": b.S3SecretKey,
		} {
			if val == "" {
				errs = append(errs, fmt.Sprintf("backup.%s: field is required", field))
			}
		}
	}
	if c.GitHub != nil && c.GitHub.PAT == "" {
		errs = append(errs, "github.pat: field is required")
	}
	if _, err := c.ComposeArgv(); err != nil {
		errs = append(errs, fmt.Sprintf("compose_command: %v", err))
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("invalid configuration in %s:\n  - %s", source, strings.Join(errs, "\n  - "))
	}
	return nil
}

// ComposeArgv splits the configured orchestrator command into argv.
func (c *Config) ComposeArgv() ([]string, error) {
	cmd := strings.TrimSpace(c.ComposeCommand)
	if cmd == "" {
		cmd = defaultComposeCommand
	}
	argv, err := shellwords.Parse(cmd)
	if err != nil {
		return nil, err
	}
	if len(argv) == 0 {
		return nil, errors.New("command is empty")
	}
	return argv, nil
}

// ExpandEnv replaces every ${VAR} in raw with the value of the environment
// variable VAR. An unset variable is an error.
func ExpandEnv(raw []byte) ([]byte, error) {
	var missing []string
	out := envRef.ReplaceAllFunc(raw, func(m []byte) []byte {
		name := string(envRef.FindSubmatch(m)[1])
		val, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return m
		}
		return []byte(val)
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("environment variable %q is not set", missing[0])
	}
	return out, nil
}
