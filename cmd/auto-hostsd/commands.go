package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/haukened/auto-hosts/internal/hosts/common/log"
	"github.com/haukened/auto-hosts/internal/hosts/config"
	"github.com/haukened/auto-hosts/internal/hosts/domain"
	"github.com/haukened/auto-hosts/internal/hosts/gateways/launcher"
	"github.com/haukened/auto-hosts/internal/hosts/repos/history"
	"github.com/haukened/auto-hosts/internal/hosts/repos/settings"
)

const ssidCommandTimeout = 10 * time.Second

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Rewrite a managed block of the hosts file based on the current Wi-Fi network",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(*cobra.Command, []string) error {
			return runDaemon()
		},
	}
	root.AddCommand(
		newSSIDCmd(),
		newVersionCmd(),
		newInstallCmd(),
		newUninstallCmd(),
		newStatusCmd(),
		newCheckCmd(),
	)
	return root
}

// runDaemon is the default command: configure logging, build the app and hand it to the
// service manager. Any error here is a startup failure.
func runDaemon() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	err = log.ConfigureWith(log.Options{
		Env:        cfg.Env,
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	if err != nil {
		return fmt.Errorf("logging configuration error: %w", err)
	}
	defer log.Sync()

	src, err := newSSIDSource()
	if err != nil {
		log.Error(map[string]any{"error": err.Error()}, "SSID query unavailable")
		return err
	}

	app, err := buildApplication(cfg, src)
	if err != nil {
		log.Error(map[string]any{"error": err.Error()}, "Failed to build application")
		return err
	}

	l, err := newLauncher(cfg, app.Run)
	if err != nil {
		return err
	}
	return l.Run()
}

func newLauncher(cfg *config.AppConfig, run launcher.RunFunc) (*launcher.Launcher, error) {
	return launcher.New(run, launcher.Options{
		Name:        cfg.ServiceName,
		DisplayName: "Auto Hosts Updater",
		Description: "Updates the hosts file for the current Wi-Fi network",
		Logger:      log.GetLogger(),
	})
}

func newSSIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ssid",
		Short: "Print the SSID of the current Wi-Fi network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := newSSIDSource()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), ssidCommandTimeout)
			defer cancel()
			name, err := src.CurrentSSID(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Version: v%s\n", version)
		},
	}
}

func newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Start auto-hosts automatically at login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := settings.New(cfg.ConfigFile)
			if err != nil {
				return err
			}
			if created, err := store.EnsureDefault(); err != nil {
				return err
			} else if created {
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s; edit it to map your networks.\n", store.Path())
			}

			l, err := newLauncher(cfg, nil)
			if err != nil {
				return err
			}
			if err := l.Install(); err != nil {
				return fmt.Errorf("install %s: %w", cfg.ServiceName, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Installed %s (%s)\n", cfg.ServiceName, l.Platform())
			return nil
		},
	}
}

func newUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Stop starting auto-hosts at login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			l, err := newLauncher(cfg, nil)
			if err != nil {
				return err
			}
			if err := l.Uninstall(); err != nil {
				return fmt.Errorf("uninstall %s: %w", cfg.ServiceName, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uninstalled %s\n", cfg.ServiceName)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the service state and the most recent update cycles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if l, err := newLauncher(cfg, nil); err == nil {
				state, err := l.Status()
				if err != nil {
					state = fmt.Sprintf("%s (%v)", state, err)
				}
				fmt.Fprintf(out, "Service:  %s\n", state)
			}
			fmt.Fprintf(out, "Config:   %s\n", cfg.ConfigFile)
			fmt.Fprintf(out, "History:  %s\n", cfg.HistoryFile)

			if _, err := os.Stat(cfg.HistoryFile); errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintln(out, "\nNo cycles recorded yet.")
				return nil
			}
			hist, err := history.New(cfg.HistoryFile, cfg.HistoryLimit)
			if err != nil {
				return err
			}
			return printHistory(out, hist, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of cycles to show")
	return cmd
}

func printHistory(out io.Writer, hist *history.Store, limit int) error {
	stats, err := hist.Stats()
	if err != nil {
		return err
	}
	reports, err := hist.Recent(limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Cycles:   %d recorded, %d kept\n\n", stats.Total, stats.Kept)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSSID\tOUTCOME\tDURATION\tERROR")
	for _, r := range reports {
		name := r.SSID
		if !r.Connected() {
			name = "(disconnected)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.At.Local().Format(time.DateTime), name, r.Outcome, r.Duration.Round(time.Millisecond), r.Error)
	}
	return tw.Flush()
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run a single update cycle and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
				return fmt.Errorf("logging configuration error: %w", err)
			}
			defer log.Sync()

			src, err := newSSIDSource()
			if err != nil {
				return err
			}
			app, err := buildApplication(cfg, src)
			if err != nil {
				return err
			}

			rep, err := app.updater.Run(cmd.Context())
			if herr := app.history.Append(rep); herr != nil {
				log.Warn(map[string]any{"error": herr.Error()}, "Failed to record cycle report")
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", describeSSID(rep), rep.Outcome)
			return nil
		},
	}
}

func describeSSID(r domain.Report) string {
	if !r.Connected() {
		return "not connected"
	}
	return fmt.Sprintf("SSID %q", r.SSID)
}
