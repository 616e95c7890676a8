package updater

import (
	"context"

	"github.com/haukened/auto-hosts/internal/hosts/domain"
)

// SSIDSource reports the network the host is associated with. "" means not connected.
type SSIDSource interface {
	CurrentSSID(ctx context.Context) (string, error)
}

// SettingsStore loads the SSID to block mapping. It is called once per cycle.
type SettingsStore interface {
	Load() (domain.Settings, error)
}

// HostsFile reads and replaces the whole hosts file.
type HostsFile interface {
	Read() (string, error)
	Write(content string) error
}

// ReportSink persists cycle reports.
type ReportSink interface {
	Append(r domain.Report) error
}

// Recorder observes cycle reports for metrics.
type Recorder interface {
	ObserveCycle(r domain.Report)
}
