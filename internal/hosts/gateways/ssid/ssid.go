// Package ssid reports the name of the wireless network the host is associated with.
//
// Each supported OS shells out to its native tool and extracts the SSID from the
// output. An empty SSID with a nil error means "not connected".
package ssid

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/haukened/auto-hosts/internal/hosts/domain"
)

// ErrUnsupportedPlatform is returned by New when no query backend exists for this OS,
// or none of the required tools are installed.
var ErrUnsupportedPlatform = errors.New("ssid query not supported on this platform")

const commandTimeout = 5 * time.Second

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// queryFunc resolves the current SSID using run.
type queryFunc func(ctx context.Context, run Runner) (string, error)

// Querier is the OS-backed SSID source.
type Querier struct {
	run   Runner
	query queryFunc
}

// New returns a Querier for the running OS.
func New() (*Querier, error) {
	q, err := platformQuery()
	if err != nil {
		return nil, err
	}
	return &Querier{run: execRunner, query: q}, nil
}

// CurrentSSID returns the associated network name, or "" when not connected.
// Failures wrap domain.ErrNetworkQuery.
func (q *Querier) CurrentSSID(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	name, err := q.query(ctx, q.run)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrNetworkQuery, err)
	}
	return name, nil
}

// Static is a fixed SSID source for tests and for running without a wireless backend.
type Static struct {
	SSID string
	Err  error
}

func (s Static) CurrentSSID(context.Context) (string, error) {
	return s.SSID, s.Err
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	hideWindow(cmd)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, fmt.Errorf("%s exited with status %d", name, exitErr.ExitCode())
		}
		return out, err
	}
	return out, nil
}

var netshSSID = regexp.MustCompile(`(?m)^\s+SSID\s+:\s?(.*?)\s*$`)

// parseNetsh extracts the SSID from `netsh wlan show interfaces`. CRLF endings are accepted.
// The BSSID line is not matched.
func parseNetsh(out string) string {
	out = strings.ReplaceAll(out, "\r\n", "\n")
	m := netshSSID.FindStringSubmatch(out)
	if m == nil {
		return ""
	}
	return m[1]
}

const airportPrefix = "Current Wi-Fi Network: "

// parseAirport extracts the SSID from `networksetup -getairportnetwork <iface>`.
// "You are not associated..." and "... is not a Wi-Fi interface" both yield "".
func parseAirport(out string) string {
	line := strings.TrimSpace(out)
	if !strings.HasPrefix(line, airportPrefix) {
		return ""
	}
	return strings.TrimPrefix(line, airportPrefix)
}

// parseIPConfigSummary extracts the SSID from `ipconfig getsummary <iface>` on macOS.
func parseIPConfigSummary(out string) string {
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		key, val, ok := strings.Cut(strings.TrimSpace(sc.Text()), " : ")
		if ok && key == "SSID" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}

// parseIwgetid trims the output of `iwgetid <iface> -r`.
func parseIwgetid(out string) string {
	return strings.TrimRight(out, "\r\n")
}

// parseNmcli extracts the active SSID from `nmcli -t -f active,ssid dev wifi`.
// Colons inside the SSID are escaped by nmcli as "\:".
func parseNmcli(out string) string {
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		active, name, ok := strings.Cut(sc.Text(), ":")
		if ok && active == "yes" {
			return strings.ReplaceAll(name, `\:`, ":")
		}
	}
	return ""
}
