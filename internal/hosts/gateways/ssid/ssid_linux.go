//go:build linux

package ssid

import (
	"context"
	"net"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/vishvananda/netlink"
)

func hideWindow(*exec.Cmd) {}

// sysClassNet is where the kernel exposes a "wireless" directory for wifi links.
var sysClassNet = "/sys/class/net"

func platformQuery() (queryFunc, error) {
	_, iwErr := exec.LookPath("iwgetid")
	_, nmErr := exec.LookPath("nmcli")
	if iwErr != nil && nmErr != nil {
		return nil, ErrUnsupportedPlatform
	}
	return queryLinux(iwErr == nil, nmErr == nil), nil
}

// queryLinux prefers iwgetid on kernel-reported wireless links and falls back to
// NetworkManager when iwgetid is missing or finds nothing.
func queryLinux(haveIwgetid, haveNmcli bool) queryFunc {
	return func(ctx context.Context, run Runner) (string, error) {
		var iwErr error
		if haveIwgetid {
			links, err := wirelessLinks()
			if err == nil {
				var name string
				name, err = queryIwgetid(ctx, run, links)
				if err == nil && name != "" {
					return name, nil
				}
			}
			iwErr = err
		}
		if !haveNmcli {
			return "", iwErr
		}
		return queryNmcli(ctx, run)
	}
}

// wirelessLinks lists up, non-loopback links that the kernel marks as wireless.
func wirelessLinks() ([]string, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, l := range links {
		attrs := l.Attrs()
		if attrs == nil || attrs.Flags&net.FlagUp == 0 || attrs.Flags&net.FlagLoopback != 0 {
			continue
		}
		if _, err := os.Stat(filepath.Join(sysClassNet, attrs.Name, "wireless")); err != nil {
			continue
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

// queryIwgetid returns the first non-empty SSID reported for links. iwgetid exits non-zero
// for a link that is not associated, which counts as "not connected" on that link.
func queryIwgetid(ctx context.Context, run Runner, links []string) (string, error) {
	for _, link := range links {
		out, err := run(ctx, "iwgetid", link, "-r")
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}
		if name := parseIwgetid(string(out)); name != "" {
			return name, nil
		}
	}
	return "", nil
}

func queryNmcli(ctx context.Context, run Runner) (string, error) {
	out, err := run(ctx, "nmcli", "-t", "-f", "active,ssid", "dev", "wifi")
	if err != nil {
		return "", err
	}
	return parseNmcli(string(out)), nil
}
