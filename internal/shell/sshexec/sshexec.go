// Package sshexec runs named commands and uploads files over SSH. It is the
// remote-executor capability the compose backend is written against: commands
// are named programs with ordered string arguments, never ad hoc script files.
package sshexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrInvalidTarget is returned for targets not in user@host[:port] form.
	ErrInvalidTarget = errors.New("SSH target must be user@host or user@host:port")

	// ErrNoAuth is returned when neither an SSH agent nor a default key file
	// is available.
	ErrNoAuth = errors.New("no SSH authentication available: start an agent or provide ~/.ssh/id_ed25519 or ~/.ssh/id_rsa")

	// ErrConnectFailed is returned when the SSH dial fails.
	ErrConnectFailed = errors.New("SSH connection failed")
)

// ExecError wraps a remote command failure with its captured output.
type ExecError struct {
	Target  string
	Command string
	Output  string
	Err     error
}

func (e *ExecError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s on %s: %v: %s", e.Command, e.Target, e.Err, strings.TrimSpace(e.Output))
	}
	return fmt.Sprintf("%s on %s: %v", e.Command, e.Target, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Executor Interface
// =============================================================================

// Executor runs commands against a remote target and uploads files to it.
type Executor interface {
	// Run executes a named command with ordered arguments on the target and
	// returns its captured stdout. A non-zero exit is an error carrying the
	// captured stderr.
	Run(ctx context.Context, target, command string, args []string) (string, error)

	// Upload copies a local file to remotePath on the target, creating parent
	// directories as needed.
	Upload(ctx context.Context, target, localPath, remotePath string) error

	// Close releases any open connections.
	Close() error
}

// =============================================================================
// SSH Implementation
// =============================================================================

// SSHExecutor implements Executor over golang.org/x/crypto/ssh. Connections
// are established lazily and reused per target.
type SSHExecutor struct {
	// ConnectTimeout bounds the SSH dial. Default 10 seconds. Commands
	// themselves are unbounded; the remote program's behavior governs.
	ConnectTimeout time.Duration

	mu      sync.Mutex
	clients map[string]*ssh.Client
}

// NewSSHExecutor creates an SSH executor with default settings.
func NewSSHExecutor() *SSHExecutor {
	return &SSHExecutor{
		ConnectTimeout: 10 * time.Second,
		clients:        make(map[string]*ssh.Client),
	}
}

// Run executes command with args on target, capturing stdout.
func (e *SSHExecutor) Run(ctx context.Context, target, command string, args []string) (string, error) {
	session, err := e.newSession(target)
	if err != nil {
		return "", err
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	cmd := buildCommand(command, args)

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			return "", &ExecError{Target: target, Command: command, Output: stderr.String(), Err: err}
		}
	}

	return stdout.String(), nil
}

// Upload streams a local file into `cat > remotePath` on the target. The
// parent directory is created first so callers can address fresh layouts.
func (e *SSHExecutor) Upload(ctx context.Context, target, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	session, err := e.newSession(target)
	if err != nil {
		return err
	}
	defer session.Close()

	session.Stdin = f
	var stderr bytes.Buffer
	session.Stderr = &stderr

	dir := path.Dir(remotePath)
	cmd := fmt.Sprintf("mkdir -p %s && cat > %s", quote(dir), quote(remotePath))

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return &ExecError{Target: target, Command: "upload " + filepath.Base(localPath), Output: stderr.String(), Err: err}
		}
	}

	return nil
}

// Close closes all cached connections.
func (e *SSHExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	for target, client := range e.clients {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(e.clients, target)
	}
	return firstErr
}

// newSession returns a session on a live connection to target, reconnecting
// when a cached connection has gone stale.
func (e *SSHExecutor) newSession(target string) (*ssh.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if client, ok := e.clients[target]; ok {
		if _, _, err := client.SendRequest("keepalive@deploykit", true, nil); err == nil {
			return client.NewSession()
		}
		client.Close()
		delete(e.clients, target)
	}

	client, err := e.connect(target)
	if err != nil {
		return nil, err
	}
	e.clients[target] = client

	return client.NewSession()
}

func (e *SSHExecutor) connect(target string) (*ssh.Client, error) {
	user, addr, err := ParseTarget(target)
	if err != nil {
		return nil, err
	}

	auth, err := authMethods()
	if err != nil {
		return nil, err
	}

	timeout := e.ConnectTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // TODO: verify against known_hosts
		Timeout:         timeout,
	}

	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w: %v", addr, ErrConnectFailed, err)
	}
	return client, nil
}

// ParseTarget splits user@host[:port] into the user and a dialable address.
func ParseTarget(target string) (user, addr string, err error) {
	user, host, found := strings.Cut(target, "@")
	if !found || user == "" || host == "" {
		return "", "", fmt.Errorf("%w: got %q", ErrInvalidTarget, target)
	}

	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "22")
	}
	return user, host, nil
}

// authMethods assembles SSH auth from the running agent and default key files.
func authMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		for _, name := range []string{"id_ed25519", "id_rsa"} {
			key, err := os.ReadFile(filepath.Join(home, ".ssh", name))
			if err != nil {
				continue
			}
			signer, err := ssh.ParsePrivateKey(key)
			if err != nil {
				continue
			}
			methods = append(methods, ssh.PublicKeys(signer))
		}
	}

	if len(methods) == 0 {
		return nil, ErrNoAuth
	}
	return methods, nil
}

// buildCommand joins a named command and its arguments into a shell line,
// quoting each argument.
func buildCommand(command string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, command)
	for _, a := range args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

// quote single-quotes s for POSIX shells.
func quote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$&|;<>()*?[]#~%{}`!") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
