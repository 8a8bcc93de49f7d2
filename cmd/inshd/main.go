package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/inshproject/insh/internal/config"
	"github.com/inshproject/insh/internal/ctl"
	"github.com/inshproject/insh/internal/daemon"
	"github.com/inshproject/insh/internal/logger"
	"github.com/inshproject/insh/internal/paths"
)

var (
	forceStart  bool
	forceStop   bool
	stopTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "inshd",
	Short: "The insh daemon",
	Long: `inshd runs file operations in the background on behalf of insh
clients. Clients connect over a unix domain socket and send requests that a
fixed pool of workers executes.`,
	SilenceUsage: true,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolving executable: %w", err)
		}
		if err := ctl.Start(exe, forceStart); err != nil {
			return err
		}
		fmt.Println("daemon started")
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daemon in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadDefault()
		if err != nil {
			return err
		}

		log, err := initLogger(cfg)
		if err != nil {
			return err
		}

		d := daemon.New(cfg, log)
		if err := d.Run(); err != nil {
			if errors.Is(err, daemon.ErrAlreadyRunning) {
				return errors.New("daemon already running")
			}
			log.Error("daemon failed: %v", err)
			return err
		}
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ctl.Stop(forceStop, stopTimeout); err != nil {
			if errors.Is(err, ctl.ErrNotRunning) {
				fmt.Println("daemon not running")
				return nil
			}
			return err
		}
		fmt.Println("daemon stopped")
		return nil
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolving executable: %w", err)
		}
		if err := ctl.Restart(exe, stopTimeout); err != nil {
			return err
		}
		fmt.Println("daemon restarted")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the daemon is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := ctl.Current()
		if err != nil {
			return err
		}
		if !st.Running {
			fmt.Println("daemon not running")
			return nil
		}
		socket, err := paths.Socket()
		if err != nil {
			return err
		}
		fmt.Printf("daemon running with pid %d\n", st.Pid)
		if st.SocketReachable {
			fmt.Printf("socket %s reachable\n", socket)
		} else {
			fmt.Printf("socket %s not reachable\n", socket)
		}
		return nil
	},
}

func initLogger(cfg *config.Config) (*logger.Logger, error) {
	logPath := cfg.LogPath
	if logPath == "" {
		logsDir, err := paths.LogsDir()
		if err != nil {
			return nil, err
		}
		logPath = filepath.Join(logsDir, "inshd.log")
	}
	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), logPath); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	return logger.Global(), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	startCmd.Flags().BoolVarP(&forceStart, "force", "f", false, "Replace a running daemon")
	stopCmd.Flags().BoolVarP(&forceStop, "force", "f", false, "Kill instead of terminating gracefully")
	stopCmd.Flags().DurationVar(&stopTimeout, "timeout", 10*time.Second, "How long to wait for the daemon to exit")
	restartCmd.Flags().DurationVar(&stopTimeout, "timeout", 10*time.Second, "How long to wait for the old daemon to exit")

	rootCmd.AddCommand(startCmd, runCmd, stopCmd, restartCmd, statusCmd)
}
