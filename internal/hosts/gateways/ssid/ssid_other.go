//go:build !windows && !darwin && !linux

package ssid

import "os/exec"

func hideWindow(*exec.Cmd) {}

func platformQuery() (queryFunc, error) {
	return nil, ErrUnsupportedPlatform
}
