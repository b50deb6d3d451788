package gerrit

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
)

// CommandRunner executes a single Gerrit command over the server's command
// channel and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, command string) (string, error)
}

// SSHRunner runs `gerrit <command>` over an SSH connection, dialing a fresh
// connection per command. The Gerrit SSH daemon expects short-lived sessions;
// a persistent connection buys nothing and complicates reconnect handling.
type SSHRunner struct {
	host        string
	port        int
	clientCfg   *ssh.ClientConfig
	dialTimeout time.Duration
}

// NewSSHRunner builds a runner authenticated with the given private key.
func NewSSHRunner(host string, port int, username, keyPath string) (*SSHRunner, error) {
	keyBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read ssh key %s: %w", keyPath, err)
	}

	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key %s: %w", keyPath, err)
	}

	return &SSHRunner{
		host: host,
		port: port,
		clientCfg: &ssh.ClientConfig{
			User:            username,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
			HostKeyCallback: ssh.InsecureIgnoreHostKey(),
			Timeout:         15 * time.Second,
		},
		dialTimeout: 15 * time.Second,
	}, nil
}

// Run executes one Gerrit command and returns its stdout. The context bounds
// the whole dial-exec-read sequence.
func (r *SSHRunner) Run(ctx context.Context, command string) (string, error) {
	addr := net.JoinHostPort(r.host, strconv.Itoa(r.port))

	conn, err := ssh.Dial("tcp", addr, r.clientCfg)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	session, err := conn.NewSession()
	if err != nil {
		return "", fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run("gerrit " + command)
	}()

	select {
	case <-ctx.Done():
		// Closing the connection unblocks session.Run.
		conn.Close()
		<-done
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("gerrit command failed: %w: %s", err, stderr.String())
		}
		return stdout.String(), nil
	}
}
