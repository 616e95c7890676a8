package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/auto-hosts/internal/hosts/common/log"
	"github.com/haukened/auto-hosts/internal/hosts/config"
	"github.com/haukened/auto-hosts/internal/hosts/domain"
	"github.com/haukened/auto-hosts/internal/hosts/gateways/ssid"
	"github.com/haukened/auto-hosts/internal/hosts/services/updater"
)

// testEnv points the executable directory at a temp dir, fakes the SSID source and writes a
// config.toml that manages a temp hosts file. It returns the temp dir and the hosts path.
func testEnv(t *testing.T, network string) (string, string) {
	t.Helper()
	dir := t.TempDir()

	origExe, origSSID := executablePath, newSSIDSource
	t.Cleanup(func() {
		executablePath, newSSIDSource = origExe, origSSID
		log.SetLogger(log.NewNoopLogger())
	})
	executablePath = func() (string, error) { return filepath.Join(dir, appName), nil }
	newSSIDSource = func() (updater.SSIDSource, error) { return ssid.Static{SSID: network}, nil }
	log.SetLogger(log.NewNoopLogger())

	hosts := filepath.Join(dir, "hosts")
	require.NoError(t, os.WriteFile(hosts, []byte("127.0.0.1 localhost"), 0o644))

	toml := "hosts_path = '" + filepath.ToSlash(hosts) + "'\n\n[ssid]\nHome = \"\"\"\n10.0.0.5 nas.lan\n\"\"\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0o644))

	t.Setenv("AHU_ENV", "dev")
	t.Setenv("AHU_LOG_LEVEL", "error")
	return dir, hosts
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "Version: v"+version+"\n", out)
}

func TestSSIDCommand(t *testing.T) {
	testEnv(t, "Home")
	out, err := execute(t, "ssid")
	require.NoError(t, err)
	assert.Equal(t, "Home\n", out)
}

func TestRootCommand_RejectsArgs(t *testing.T) {
	_, err := execute(t, "bogus")
	assert.Error(t, err)
}

func TestLoadConfig_ResolvesNextToExecutable(t *testing.T) {
	dir, _ := testEnv(t, "Home")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), cfg.ConfigFile)
	assert.Equal(t, filepath.Join(dir, "history.db"), cfg.HistoryFile)
	assert.Equal(t, filepath.Join(dir, "logs.txt"), cfg.LogFile)
}

func TestLoadConfig_Invalid(t *testing.T) {
	testEnv(t, "Home")
	t.Setenv("AHU_INTERVAL", "1ms")
	_, err := loadConfig()
	assert.ErrorContains(t, err, "configuration error")
}

func TestCheckCommand_UpdatesHosts(t *testing.T) {
	dir, hosts := testEnv(t, "Home")

	out, err := execute(t, "check")
	require.NoError(t, err)
	assert.Equal(t, "SSID \"Home\": updated\n", out)

	b, err := os.ReadFile(hosts)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1 localhost\n"+domain.StartMarker+"\n10.0.0.5 nas.lan\n"+domain.EndMarker, string(b))

	out, err = execute(t, "check")
	require.NoError(t, err)
	assert.Equal(t, "SSID \"Home\": no-change\n", out)

	_, err = os.Stat(filepath.Join(dir, "history.db"))
	assert.NoError(t, err)
}

func TestCheckCommand_Disconnected(t *testing.T) {
	testEnv(t, "")
	out, err := execute(t, "check")
	require.NoError(t, err)
	assert.Equal(t, "not connected: no-change\n", out)
}

func TestCheckCommand_MissingHostsFile(t *testing.T) {
	_, hosts := testEnv(t, "Home")
	require.NoError(t, os.Remove(hosts))

	_, err := execute(t, "check")
	assert.ErrorIs(t, err, domain.ErrPathNotFound)
}

func TestBuildApplication_CreatesDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DEFAULT_APP_CONFIG
	cfg.ResolvePaths(dir)

	app, err := buildApplication(&cfg, ssid.Static{})
	require.NoError(t, err)
	require.NotNil(t, app)

	b, err := os.ReadFile(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "hosts_path = "))
}

func TestBuildApplication_BadHistoryPath(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DEFAULT_APP_CONFIG
	cfg.ResolvePaths(dir)
	cfg.HistoryFile = filepath.Join(dir, "missing", "history.db")

	app, err := buildApplication(&cfg, ssid.Static{})
	assert.ErrorContains(t, err, "failed to open history")
	assert.Nil(t, app)
}

func TestApplication_RunAndShutdown(t *testing.T) {
	_, hosts := testEnv(t, "Home")
	cfg, err := loadConfig()
	require.NoError(t, err)
	cfg.Interval = 20 * time.Millisecond

	app, err := buildApplication(cfg, ssid.Static{SSID: "Home"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		b, err := os.ReadFile(hosts)
		return err == nil && strings.Contains(string(b), "10.0.0.5 nas.lan")
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("application did not stop")
	}

	st, err := app.history.Stats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, st.Total, uint64(1))
}

func TestApplication_WatchTriggersEarlyCycle(t *testing.T) {
	dir, hosts := testEnv(t, "Home")
	cfg, err := loadConfig()
	require.NoError(t, err)
	cfg.Interval = time.Hour
	cfg.Watch = true

	app, err := buildApplication(cfg, ssid.Static{SSID: "Home"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		b, err := os.ReadFile(hosts)
		return err == nil && strings.Contains(string(b), "10.0.0.5 nas.lan")
	}, 3*time.Second, 10*time.Millisecond)

	toml := "hosts_path = '" + filepath.ToSlash(hosts) + "'\n\n[ssid]\nHome = '10.0.0.6 nas.lan'\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0o644))

	assert.Eventually(t, func() bool {
		b, err := os.ReadFile(hosts)
		return err == nil && strings.Contains(string(b), "10.0.0.6 nas.lan")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	<-done
}

func TestApplication_MetricsBindFailure(t *testing.T) {
	testEnv(t, "Home")
	cfg, err := loadConfig()
	require.NoError(t, err)
	cfg.Watch = false
	cfg.MetricsAddr = "127.0.0.1:99999"

	app, err := buildApplication(cfg, ssid.Static{SSID: "Home"})
	require.NoError(t, err)

	select {
	case err := <-runAsync(app):
		assert.ErrorContains(t, err, "metrics endpoint")
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not fail")
	}
}

func TestStatusCommand(t *testing.T) {
	testEnv(t, "Home")

	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "No cycles recorded yet.")

	_, err = execute(t, "check")
	require.NoError(t, err)

	out, err = execute(t, "status", "-n", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "1 recorded, 1 kept")
	assert.Contains(t, out, "Home")
	assert.Contains(t, out, "updated")
}

func runAsync(app *Application) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- app.Run(context.Background()) }()
	return ch
}
