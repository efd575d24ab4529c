package manifest

import "github.com/sarth-shah20/quay/internal/config"

// Optional services of the system stack.
const (
	BackupService    = "backup"
	PortainerService = "portainer"
	NetdataService   = "netdata"
)

// TransformSystem drops the optional system services whose feature is
// disabled. It edits m in place.
func TransformSystem(m *Manifest, cfg *config.Config) {
	if cfg.Backup == nil {
		m.RemoveService(BackupService)
	}
	if !cfg.SystemServices.Portainer {
		m.RemoveService(PortainerService)
	}
	if !cfg.SystemServices.Netdata {
		m.RemoveService(NetdataService)
	}
}

// ServiceEnabled reports whether an optional system service is switched on.
// Services that are not optional are always enabled.
func ServiceEnabled(name string, cfg *config.Config) bool {
	switch name {
	case BackupService:
		return cfg.Backup != nil
	case PortainerService:
		return cfg.SystemServices.Portainer
	case NetdataService:
		return cfg.SystemServices.Netdata
	}
	return true
}
