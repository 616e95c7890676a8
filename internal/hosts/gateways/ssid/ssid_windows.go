//go:build windows

package ssid

import (
	"context"
	"os/exec"
	"syscall"
)

const createNoWindow = 0x08000000

func hideWindow(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true, CreationFlags: createNoWindow}
}

func platformQuery() (queryFunc, error) {
	if _, err := exec.LookPath("netsh"); err != nil {
		return nil, ErrUnsupportedPlatform
	}
	return queryNetsh, nil
}

func queryNetsh(ctx context.Context, run Runner) (string, error) {
	out, err := run(ctx, "netsh", "wlan", "show", "interfaces")
	if err != nil {
		return "", err
	}
	return parseNetsh(string(out)), nil
}
