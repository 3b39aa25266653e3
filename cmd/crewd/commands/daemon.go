package commands

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/crewd/internal/config"
	"github.com/marcus/crewd/internal/logging"
	"github.com/marcus/crewd/internal/scheduler"
)

const pidFileName = "crewd.pid"

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage background daemon",
	Long:  `Start, stop, or check status of the crewd background daemon.`,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start <project-name>",
	Short: "Start background daemon",
	Long: `Start the crewd daemon as a background process.

The daemon runs the development pipeline for the named project on the
configured cron schedule, advancing it a fixed number of steps per tick.`,
	Args: cobra.ExactArgs(1),
	RunE: runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop background daemon",
	Long:  `Stop the running crewd daemon by sending SIGTERM.`,
	RunE:  runDaemonStop,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check daemon status",
	Long:  `Check if the crewd daemon is running and show status information.`,
	RunE:  runDaemonStatus,
}

var daemonForegroundFlag bool

func init() {
	daemonStartCmd.Flags().BoolVarP(&daemonForegroundFlag, "foreground", "f", false, "Run in foreground (don't daemonize)")
	daemonStartCmd.Flags().StringP("description", "d", "", "Project description")
	daemonStartCmd.Flags().StringP("requirements", "r", "", "Requirements text")
	daemonStartCmd.Flags().String("requirements-file", "", "Read requirements from a file")
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	rootCmd.AddCommand(daemonCmd)
}

// pidFilePath returns the path to the PID file.
func pidFilePath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "crewd", pidFileName)
}

// writePidFile writes the current process PID to the PID file.
func writePidFile() error {
	if err := os.MkdirAll(filepath.Dir(pidFilePath()), 0755); err != nil {
		return fmt.Errorf("creating pid dir: %w", err)
	}
	return os.WriteFile(pidFilePath(), []byte(strconv.Itoa(os.Getpid())), 0644)
}

// readPidFile reads the PID from the PID file.
func readPidFile() (int, error) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(data))
}

func removePidFile() error {
	return os.Remove(pidFilePath())
}

// isProcessRunning checks if a process with the given PID is running.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds; send signal 0 to check if alive
	return process.Signal(syscall.Signal(0)) == nil
}

// isDaemonRunning checks if the daemon is currently running.
func isDaemonRunning() (bool, int) {
	pid, err := readPidFile()
	if err != nil {
		return false, 0
	}
	return isProcessRunning(pid), pid
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	if running, pid := isDaemonRunning(); running {
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}

	name := args[0]
	description, _ := cmd.Flags().GetString("description")
	requirements, err := requirementsFromFlags(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Daemon.Cron == "" {
		return fmt.Errorf("no schedule configured (set daemon.cron in config)")
	}

	if daemonForegroundFlag {
		return runDaemonLoop(cmd, cfg, name, description, requirements)
	}

	// Daemonize: start a new process with --foreground flag
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("getting executable: %w", err)
	}

	daemonArgs := []string{"daemon", "start", name, "--foreground",
		"--requirements", requirements}
	if description != "" {
		daemonArgs = append(daemonArgs, "--description", description)
	}
	if configPath, _ := cmd.Flags().GetString("config"); configPath != "" {
		daemonArgs = append(daemonArgs, "--config", configPath)
	}

	child := exec.Command(executable, daemonArgs...)
	child.Stdout = nil
	child.Stderr = nil
	child.Stdin = nil
	// Detach from parent process group
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := child.Start(); err != nil {
		return fmt.Errorf("starting daemon: %w", err)
	}

	fmt.Printf("daemon started (pid %d)\n", child.Process.Pid)
	return nil
}

func runDaemonLoop(cmd *cobra.Command, cfg *config.Config, name, description, requirements string) error {
	if err := initLogging(cmd, cfg); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	log := logging.Component("daemon")

	if err := writePidFile(); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer func() { _ = removePidFile() }()

	log.Info("daemon starting")

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Infof("received signal %v, shutting down", sig)
		cancel()
	}()

	orch := newOrchestrator(cfg, st, nil)

	sched := scheduler.New(logging.Component("scheduler"))
	_, err = sched.ScheduleCron(cfg.Daemon.Cron, func(jobCtx context.Context) {
		runScheduledPipeline(jobCtx, orch, cfg, name, description, requirements, log)
	})
	if err != nil {
		return fmt.Errorf("schedule pipeline: %w", err)
	}

	sched.Start()
	log.InfoCtx("daemon running", map[string]any{
		"schedule": cfg.Daemon.Cron,
		"project":  name,
	})

	<-ctx.Done()
	sched.Stop()

	log.Info("daemon stopped")
	return nil
}

// runScheduledPipeline runs one full pipeline session for the project.
func runScheduledPipeline(ctx context.Context, orch pipelineRunner, cfg *config.Config, name, description, requirements string, log *logging.Logger) {
	log.Info("scheduled run starting")
	start := time.Now()

	projectID, err := orch.InitializeProject(ctx, name, description, requirements)
	if err != nil {
		log.Errorf("initialize project: %v", err)
		return
	}

	snapshot, err := orch.Run(ctx, cfg.Daemon.Steps)
	if err != nil {
		log.ErrorCtx("scheduled run failed", map[string]any{
			"project_id": projectID,
			"error":      err.Error(),
		})
		return
	}

	fields := map[string]any{
		"project_id": projectID,
		"duration":   time.Since(start).String(),
	}
	if status, ok := snapshot["status"].(string); ok {
		fields["status"] = status
	}
	log.InfoCtx("scheduled run complete", fields)
}

// pipelineRunner is the orchestrator surface the daemon loop needs.
type pipelineRunner interface {
	InitializeProject(ctx context.Context, name, description, requirements string) (string, error)
	Run(ctx context.Context, steps int) (map[string]any, error)
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	running, pid := isDaemonRunning()
	if !running {
		if _, err := readPidFile(); err == nil {
			_ = removePidFile()
			fmt.Println("daemon not running (stale pid file removed)")
			return nil
		}
		fmt.Println("daemon not running")
		return nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("sending SIGTERM: %w", err)
	}

	fmt.Printf("stopping daemon (pid %d)...\n", pid)

	timeout := time.After(10 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-timeout:
			fmt.Println("daemon did not stop, sending SIGKILL")
			_ = process.Signal(syscall.SIGKILL)
			_ = removePidFile()
			return nil
		case <-tick.C:
			if !isProcessRunning(pid) {
				fmt.Println("daemon stopped")
				_ = removePidFile()
				return nil
			}
		}
	}
}

func runDaemonStatus(cmd *cobra.Command, args []string) error {
	running, pid := isDaemonRunning()
	if !running {
		fmt.Println("Status: not running")
		return nil
	}

	fmt.Printf("Status: running\n")
	fmt.Printf("PID: %d\n", pid)

	if cfg, err := loadConfig(cmd); err == nil && cfg.Daemon.Cron != "" {
		fmt.Printf("Schedule: cron %s (%d steps per run)\n", cfg.Daemon.Cron, cfg.Daemon.Steps)
	}
	fmt.Printf("PID file: %s\n", pidFilePath())
	return nil
}
