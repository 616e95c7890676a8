// Package updater runs one update cycle: read the active SSID and the user mapping,
// compute the managed block for the hosts file and write it back only when it changed.
package updater

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/haukened/auto-hosts/internal/hosts/common/clock"
	"github.com/haukened/auto-hosts/internal/hosts/common/log"
	"github.com/haukened/auto-hosts/internal/hosts/domain"
)

// Updater owns the collaborators of a cycle. It holds no state between cycles.
type Updater struct {
	ssid      SSIDSource
	settings  SettingsStore
	openHosts func(path string) HostsFile
	history   ReportSink
	metrics   Recorder
	clock     clock.Clock
	logger    log.Logger
	newID     func() string
}

// Options configures an Updater. SSID, Settings and OpenHosts are required;
// History and Metrics are optional.
type Options struct {
	SSID      SSIDSource
	Settings  SettingsStore
	OpenHosts func(path string) HostsFile
	History   ReportSink
	Metrics   Recorder
	Clock     clock.Clock
	Logger    log.Logger
	NewID     func() string
}

// New creates an Updater from opts. A nil Clock defaults to the real clock, a nil Logger
// discards output and a nil NewID generates UUIDs.
func New(opts Options) *Updater {
	u := &Updater{
		ssid:      opts.SSID,
		settings:  opts.Settings,
		openHosts: opts.OpenHosts,
		history:   opts.History,
		metrics:   opts.Metrics,
		clock:     opts.Clock,
		logger:    opts.Logger,
		newID:     opts.NewID,
	}
	if u.clock == nil {
		u.clock = clock.RealClock{}
	}
	if u.logger == nil {
		u.logger = log.NewNoopLogger()
	}
	if u.newID == nil {
		u.newID = uuid.NewString
	}
	return u
}

// Run executes one cycle and returns its report. Errors are returned, not logged;
// the report of a failed cycle has OutcomeFailed and the error text.
func (u *Updater) Run(ctx context.Context) (domain.Report, error) {
	start := u.clock.Now()
	rep := domain.Report{ID: u.newID(), At: start}

	rep, err := u.run(ctx, rep)
	rep.Duration = u.clock.Now().Sub(start)
	if err != nil {
		rep.Outcome = domain.OutcomeFailed
		rep.Changed = false
		rep.Error = err.Error()
	}
	return rep, err
}

func (u *Updater) run(ctx context.Context, rep domain.Report) (domain.Report, error) {
	ssid, err := u.ssid.CurrentSSID(ctx)
	if err != nil {
		// Shutdown must not be mistaken for "disconnected", which would clear the block.
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		u.logger.Debug(map[string]any{"id": rep.ID, "error": err.Error()}, "SSID query failed, treating as disconnected")
		ssid = ""
	}
	rep.SSID = ssid

	st, err := u.settings.Load()
	if err != nil {
		return rep, err
	}
	rep.HostsPath = st.HostsPath

	hosts := u.openHosts(st.HostsPath)
	content, err := hosts.Read()
	if err != nil {
		return rep, err
	}

	value, found := st.Lookup(ssid)
	if found && strings.TrimSpace(value) == "" {
		rep.Outcome = domain.OutcomeSkippedEmpty
		u.logger.Warn(map[string]any{"id": rep.ID, "ssid": ssid}, fmt.Sprintf("SSID %q has an empty value assigned. Skipping...", ssid))
		return rep, nil
	}

	var desired *string
	if found {
		desired = &value
	}

	lines, changed := domain.Apply(domain.SplitLines(content), desired)
	if !changed {
		rep.Outcome = domain.OutcomeNoChange
		u.logger.Debug(map[string]any{"id": rep.ID, "ssid": ssid, "hosts_path": st.HostsPath}, "Hosts file already up to date")
		return rep, nil
	}

	if err := hosts.Write(domain.JoinLines(lines)); err != nil {
		return rep, err
	}
	rep.Changed = true

	fields := map[string]any{"id": rep.ID, "ssid": ssid, "hosts_path": st.HostsPath}
	switch {
	case desired != nil:
		rep.Outcome = domain.OutcomeUpdated
		if issues := domain.CheckBlock(value); len(issues) > 0 {
			fields["suspicious_lines"] = issueStrings(issues)
		}
		u.logger.Info(fields, fmt.Sprintf("Hosts file updated with the new value(s) for the SSID %q.", ssid))
	case ssid == "":
		rep.Outcome = domain.OutcomeCleared
		u.logger.Info(fields, "Not connected to any network. Clearing the existing value(s).")
	default:
		rep.Outcome = domain.OutcomeCleared
		u.logger.Info(fields, fmt.Sprintf("No value found for the SSID %q. Clearing the existing value(s).", ssid))
	}
	return rep, nil
}

// Tick runs one cycle and absorbs its failure: the error is logged, the report is
// recorded, and nothing is returned so the next scheduled cycle proceeds normally.
func (u *Updater) Tick(ctx context.Context) {
	rep, err := u.Run(ctx)
	if err != nil {
		u.logger.Error(map[string]any{
			"id":         rep.ID,
			"ssid":       rep.SSID,
			"hosts_path": rep.HostsPath,
			"error":      err.Error(),
		}, "Update cycle failed")
	}

	if u.history != nil {
		if herr := u.history.Append(rep); herr != nil {
			u.logger.Warn(map[string]any{"id": rep.ID, "error": herr.Error()}, "Failed to record cycle report")
		}
	}
	if u.metrics != nil {
		u.metrics.ObserveCycle(rep)
	}
}

func issueStrings(issues []domain.LineIssue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.String())
	}
	return out
}
