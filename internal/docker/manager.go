package docker

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

const (
	// ProjectLabel and ServiceLabel are set by compose on every container.
	ProjectLabel = "com.docker.compose.project"
	ServiceLabel = "com.docker.compose.service"
)

// ProjectName returns the compose project name of a stack. Compose derives
// it from the project directory and lowercases it.
func ProjectName(stack string) string { return loader.NormalizeProjectName(stack) }

// projectFilter matches the containers of a stack, optionally narrowed to
// one service.
func projectFilter(stack, service string) filters.Args {
	args := filters.NewArgs(filters.Arg("label", ProjectLabel+"="+ProjectName(stack)))
	if service != "" {
		args.Add("label", ServiceLabel+"="+service)
	}
	return args
}

// Manager handles direct interactions with the Docker daemon.
type Manager struct {
	cli *client.Client
}

// NewManager creates a Docker client connected to the local daemon.
func NewManager() (*Manager, error) {
	// FromEnv honours DOCKER_HOST, defaulting to the unix socket.
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Manager{cli: cli}, nil
}

func (m *Manager) Close() error { return m.cli.Close() }

// EnsureNetwork creates the shared bridge network unless it already exists.
// It reports whether the network was created.
func (m *Manager) EnsureNetwork(ctx context.Context, name string, labels map[string]string) (bool, error) {
	networks, err := m.cli.NetworkList(ctx, types.NetworkListOptions{
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return false, fmt.Errorf("failed to list networks: %w", err)
	}
	// The name filter matches substrings.
	for _, n := range networks {
		if n.Name == name {
			return false, nil
		}
	}

	_, err = m.cli.NetworkCreate(ctx, name, types.NetworkCreate{
		Driver: "bridge",
		Labels: labels,
	})
	if err != nil {
		return false, fmt.Errorf("failed to create network %s: %w", name, err)
	}
	return true, nil
}

// ServiceHealth is the state of one container of a stack.
type ServiceHealth struct {
	Service string
	State   string // running, exited, paused, ...
	Health  string // healthy, unhealthy, starting or ""
	Image   string
}

// ProjectServices lists every container of a compose project, sorted by
// service name.
func (m *Manager) ProjectServices(ctx context.Context, project string) ([]ServiceHealth, error) {
	containers, err := m.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: projectFilter(project, ""),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers of %s: %w", project, err)
	}

	services := make([]ServiceHealth, 0, len(containers))
	for _, c := range containers {
		name := c.Labels[ServiceLabel]
		if name == "" && len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		services = append(services, ServiceHealth{
			Service: name,
			State:   c.State,
			Health:  healthFromStatus(c.Status),
			Image:   c.Image,
		})
	}
	sort.Slice(services, func(i, j int) bool { return services[i].Service < services[j].Service })
	return services, nil
}

// healthFromStatus extracts the health suffix of a status such as
// "Up 3 minutes (healthy)".
func healthFromStatus(status string) string {
	for _, h := range []string{"unhealthy", "healthy", "health: starting"} {
		if strings.Contains(status, "("+h+")") {
			return strings.TrimPrefix(h, "health: ")
		}
	}
	return ""
}

// Exec runs cmd in the first running container of project/service and
// returns its combined output. A non-zero exit is an error carrying that
// output.
func (m *Manager) Exec(ctx context.Context, project, service string, cmd []string) (string, error) {
	containers, err := m.cli.ContainerList(ctx, container.ListOptions{
		Filters: projectFilter(project, service),
	})
	if err != nil {
		return "", fmt.Errorf("failed to list containers: %w", err)
	}
	if len(containers) == 0 {
		return "", fmt.Errorf("%w: %s/%s", ErrContainerNotFound, project, service)
	}

	exec, err := m.cli.ContainerExecCreate(ctx, containers[0].ID, types.ExecConfig{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create exec: %w", err)
	}
	resp, err := m.cli.ContainerExecAttach(ctx, exec.ID, types.ExecStartCheck{})
	if err != nil {
		return "", fmt.Errorf("failed to attach exec: %w", err)
	}
	defer resp.Close()

	var out bytes.Buffer
	if _, err := stdcopy.StdCopy(&out, &out, resp.Reader); err != nil {
		return "", fmt.Errorf("error reading exec output: %w", err)
	}
	inspect, err := m.cli.ContainerExecInspect(ctx, exec.ID)
	if err != nil {
		return "", fmt.Errorf("failed to inspect exec: %w", err)
	}
	if inspect.ExitCode != 0 {
		return out.String(), &ExitError{Command: "exec", Code: inspect.ExitCode, Stderr: out.String()}
	}
	return out.String(), nil
}

// PruneReport summarizes a Prune call.
type PruneReport struct {
	Containers     int
	Networks       int
	Images         int
	Volumes        int
	SpaceReclaimed uint64
}

// Prune removes stopped containers, unused networks and dangling images, and
// unused volumes when volumes is set.
func (m *Manager) Prune(ctx context.Context, volumes bool) (PruneReport, error) {
	var report PruneReport
	none := filters.NewArgs()

	containers, err := m.cli.ContainersPrune(ctx, none)
	if err != nil {
		return report, fmt.Errorf("failed to prune containers: %w", err)
	}
	report.Containers = len(containers.ContainersDeleted)
	report.SpaceReclaimed += containers.SpaceReclaimed

	networks, err := m.cli.NetworksPrune(ctx, none)
	if err != nil {
		return report, fmt.Errorf("failed to prune networks: %w", err)
	}
	report.Networks = len(networks.NetworksDeleted)

	images, err := m.cli.ImagesPrune(ctx, filters.NewArgs(filters.Arg("dangling", "true")))
	if err != nil {
		return report, fmt.Errorf("failed to prune images: %w", err)
	}
	report.Images = len(images.ImagesDeleted)
	report.SpaceReclaimed += images.SpaceReclaimed

	if volumes {
		vols, err := m.cli.VolumesPrune(ctx, none)
		if err != nil {
			return report, fmt.Errorf("failed to prune volumes: %w", err)
		}
		report.Volumes = len(vols.VolumesDeleted)
		report.SpaceReclaimed += vols.SpaceReclaimed
	}
	return report, nil
}
