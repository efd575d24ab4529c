package config

// Config represents the root of quay.yml
type Config struct {
	RootDomain     string         `mapstructure:"root_domain"`
	DefaultAuth    string         `mapstructure:"default_auth"` // "user:password"
	Backup         *Backup        `mapstructure:"backup"`
	GitHub         *GitHub        `mapstructure:"github"`
	SystemServices SystemServices `mapstructure:"system_services"`
	ComposeCommand string         `mapstructure:"compose_command"` // e.g. "docker compose"

	// Split out of DefaultAuth by Load.
	DefaultUser     string `mapstructure:"-"`
	DefaultPassword string `mapstructure:"-"`
}

// Backup holds the S3 settings used by the backup system service and the
// backup commands.
type Backup struct {
	Password    string `mapstructure:"password"`
	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3Bucket    string `mapstructure:"s3_bucket"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`
}

// GitHub holds the personal access token used for remote stack sources.
type GitHub struct {
	PAT string `mapstructure:"pat"`
}

// SystemServices toggles the optional services of the system stack.
type SystemServices struct {
	Portainer bool `mapstructure:"portainer"`
	Netdata   bool `mapstructure:"netdata"`
}

// GitHubToken returns the configured access token, or "" when none is set.
func (c *Config) GitHubToken() string {
	if c == nil || c.GitHub == nil {
		return ""
	}
	return c.GitHub.PAT
}
