package domain

import "errors"

var (
	// ErrConfigLoad means config.toml is missing, unreadable, or malformed. Fatal to one cycle only.
	ErrConfigLoad = errors.New("config load failed")
	// ErrPathNotFound means the configured hosts_path does not exist.
	ErrPathNotFound = errors.New("hosts file not found")
	// ErrEncoding means the hosts file is not valid UTF-8 text.
	ErrEncoding = errors.New("hosts file is not valid text")
	// ErrNetworkQuery means the active SSID could not be determined.
	// Cycles treat it as "disconnected" and never surface it as a failure.
	ErrNetworkQuery = errors.New("network query failed")
)
