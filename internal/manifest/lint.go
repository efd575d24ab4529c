package manifest

import (
	"fmt"
	"os"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	composetypes "github.com/compose-spec/compose-go/v2/types"
)

// Lint loads m the way the orchestrator will, so that an invalid manifest is
// rejected before anything is started. workingDir resolves relative paths.
func Lint(m *Manifest, project, workingDir string) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}

	env := make(composetypes.Mapping)
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		env[key] = value
	}

	details := composetypes.ConfigDetails{
		WorkingDir: workingDir,
		ConfigFiles: []composetypes.ConfigFile{
			{Filename: "docker-compose.yml", Content: data},
		},
		Environment: env,
	}
	if _, err := loader.Load(details, func(o *loader.Options) {
		o.SetProjectName(loader.NormalizeProjectName(project), true)
	}); err != nil {
		return fmt.Errorf("compose file for %s is invalid: %w", project, err)
	}
	return nil
}
