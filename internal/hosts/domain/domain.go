package domain

import (
	"fmt"
	"strings"
	"time"
)

// Settings is the user mapping loaded from config.toml on every cycle.
type Settings struct {
	// HostsPath is the absolute path of the hosts file to manage.
	HostsPath string
	// Entries maps an SSID to the block text installed while connected to it.
	// The empty SSID denotes "not connected".
	Entries map[string]string
}

// Validate checks that Settings can drive a cycle.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.HostsPath) == "" {
		return fmt.Errorf("hosts_path must not be empty")
	}
	return nil
}

// Lookup returns the block text for ssid by exact, case-sensitive match.
func (s Settings) Lookup(ssid string) (string, bool) {
	v, ok := s.Entries[ssid]
	return v, ok
}

// Outcome classifies what a cycle did to the hosts file.
type Outcome uint8

const (
	// OutcomeNoChange means the computed document equals the one on disk.
	OutcomeNoChange Outcome = iota
	// OutcomeUpdated means the managed block was written or replaced.
	OutcomeUpdated
	// OutcomeCleared means the managed block was removed.
	OutcomeCleared
	// OutcomeSkippedEmpty means the SSID entry was blank and the file was left alone.
	OutcomeSkippedEmpty
	// OutcomeFailed means the cycle stopped on an error.
	OutcomeFailed
)

// String returns a stable string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeNoChange:
		return "no-change"
	case OutcomeUpdated:
		return "updated"
	case OutcomeCleared:
		return "cleared"
	case OutcomeSkippedEmpty:
		return "skipped-empty"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", o)
	}
}

// ParseOutcome converts a string produced by Outcome.String back into an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "no-change":
		return OutcomeNoChange, nil
	case "updated":
		return OutcomeUpdated, nil
	case "cleared":
		return OutcomeCleared, nil
	case "skipped-empty":
		return OutcomeSkippedEmpty, nil
	case "failed":
		return OutcomeFailed, nil
	default:
		return 0, fmt.Errorf("unsupported Outcome: %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(b []byte) error {
	v, err := ParseOutcome(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// Report describes one update cycle.
type Report struct {
	ID        string        `json:"id"`
	SSID      string        `json:"ssid"`
	HostsPath string        `json:"hosts_path,omitempty"`
	Outcome   Outcome       `json:"outcome"`
	Changed   bool          `json:"changed"`
	Error     string        `json:"error,omitempty"`
	At        time.Time     `json:"at"`
	Duration  time.Duration `json:"duration"`
}

// Connected reports whether the cycle ran while associated with a network.
func (r Report) Connected() bool {
	return r.SSID != ""
}
