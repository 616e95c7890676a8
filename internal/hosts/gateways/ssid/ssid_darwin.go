//go:build darwin

package ssid

import (
	"context"
	"os/exec"
	"slices"
	"strings"

	psnet "github.com/shirou/gopsutil/v3/net"
)

func hideWindow(*exec.Cmd) {}

func platformQuery() (queryFunc, error) {
	if _, err := exec.LookPath("networksetup"); err != nil {
		return nil, ErrUnsupportedPlatform
	}
	return queryDarwin, nil
}

// queryDarwin asks networksetup about every up, non-loopback interface and falls back to
// ipconfig getsummary, which still reports the SSID when networksetup redacts it.
func queryDarwin(ctx context.Context, run Runner) (string, error) {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return "", err
	}

	var lastErr error
	for _, iface := range ifaces {
		if !slices.Contains(iface.Flags, "up") || slices.Contains(iface.Flags, "loopback") {
			continue
		}
		if !strings.HasPrefix(iface.Name, "en") {
			continue
		}
		out, err := run(ctx, "networksetup", "-getairportnetwork", iface.Name)
		if err != nil {
			lastErr = err
			continue
		}
		if name := parseAirport(string(out)); name != "" {
			return name, nil
		}
		if out, err := run(ctx, "ipconfig", "getsummary", iface.Name); err == nil {
			if name := parseIPConfigSummary(string(out)); name != "" {
				return name, nil
			}
		}
	}
	return "", lastErr
}
