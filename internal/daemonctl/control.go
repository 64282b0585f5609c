package daemonctl

import (
	"fmt"
	"os/exec"
	"strings"
	"time"

	"furrow/internal/ipc"
)

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	SocketPath string
	ConfigPath string
}

// StartState describes the outcome of a start orchestration.
type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	Message  string
}

// Launch starts a detached furrow daemon process using the given executable.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if socket := strings.TrimSpace(opts.SocketPath); socket != "" {
		args = append(args, "--socket", socket)
	}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}

	proc := exec.Command(executablePath, args...)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient waits for IPC socket availability and returns a connected
// client.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("socket %s never became available", socketPath)
	}
	return nil, fmt.Errorf("wait for daemon: %w", lastErr)
}

// EnsureStarted connects to a running daemon or launches one, then asks it to
// start processing.
func EnsureStarted(executablePath string, opts LaunchOptions, timeout time.Duration) (StartResult, error) {
	if client, err := ipc.Dial(opts.SocketPath); err == nil {
		defer client.Close()
		resp, err := client.Start()
		if err != nil {
			return StartResult{}, fmt.Errorf("start daemon: %w", err)
		}
		if resp.Started {
			return StartResult{State: StartStateStarted, Message: resp.Message}, nil
		}
		return StartResult{State: StartStateAlreadyRunning, Message: resp.Message}, nil
	}

	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}

	client, err := WaitForClient(opts.SocketPath, timeout)
	if err != nil {
		return StartResult{}, err
	}
	defer client.Close()

	resp, err := client.Start()
	if err != nil {
		return StartResult{}, fmt.Errorf("start daemon: %w", err)
	}
	state := StartStateStarted
	if !resp.Started {
		state = StartStateAlreadyRunning
	}
	return StartResult{State: state, Launched: true, Message: resp.Message}, nil
}
