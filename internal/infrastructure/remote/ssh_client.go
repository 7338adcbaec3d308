package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

var (
	ErrSSHConnection     = errors.New("ssh: connection failed")
	ErrSSHAuthentication = errors.New("ssh: authentication failed")
	ErrSSHCommandFailed  = errors.New("ssh: command execution failed")
	ErrSFTPDownload      = errors.New("sftp: download failed")
)

type SSHConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	PrivateKey string
	Timeout    time.Duration
	MaxRetries int
}

type SSHClient struct {
	config SSHConfig
}

func NewSSHClient(cfg SSHConfig) *SSHClient {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	return &SSHClient{config: cfg}
}

func (c *SSHClient) getAuthMethods() ([]ssh.AuthMethod, error) {
	var authMethods []ssh.AuthMethod

	if c.config.PrivateKey != "" {
		signer, err := ssh.ParsePrivateKey([]byte(c.config.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid private key", ErrSSHAuthentication)
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	if c.config.Password != "" {
		authMethods = append(authMethods, ssh.Password(c.config.Password))
	}

	if len(authMethods) == 0 {
		return nil, fmt.Errorf("%w: no credentials provided", ErrSSHAuthentication)
	}

	return authMethods, nil
}

// ConnectWithRetry attempts to connect to the SSH server with backoff between
// attempts.
func (c *SSHClient) ConnectWithRetry() (*ssh.Client, error) {
	authMethods, err := c.getAuthMethods()
	if err != nil {
		return nil, err
	}

	sshConfig := &ssh.ClientConfig{
		User:            c.config.User,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.config.Timeout,
	}

	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)
	var connectErr error

	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		dialer := net.Dialer{
			Timeout:   c.config.Timeout,
			KeepAlive: 60 * time.Second,
		}

		conn, err := dialer.Dial("tcp", addr)
		if err != nil {
			connectErr = err
		} else {
			conn.SetDeadline(time.Now().Add(c.config.Timeout))

			sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, sshConfig)
			if err != nil {
				conn.Close()
				connectErr = err
			} else {
				// Clear the handshake deadline for the long-running session
				conn.SetDeadline(time.Time{})
				return ssh.NewClient(sshConn, chans, reqs), nil
			}
		}

		if attempt < c.config.MaxRetries {
			time.Sleep(time.Duration(attempt*3) * time.Second)
		}
	}

	return nil, fmt.Errorf("%w: %v (after %d attempts)", ErrSSHConnection, connectErr, c.config.MaxRetries)
}

// Execute runs a command on an existing SSH client connection. The context
// bounds the command; a stuck command is killed and reported as an error.
func (c *SSHClient) Execute(ctx context.Context, client *ssh.Client, cmd string) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("%w: failed to create session", ErrSSHConnection)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		session.Close()
		return "", fmt.Errorf("%w: command timed out or cancelled", ctx.Err())
	case err := <-done:
		if err != nil {
			errMsg := stderr.String()
			if errMsg == "" {
				errMsg = err.Error()
			}
			return stdout.String(), fmt.Errorf("%w: %s", ErrSSHCommandFailed, errMsg)
		}
	}

	return stdout.String(), nil
}

// DownloadLimits caps a tree download so a runaway remote source cannot fill
// the workspace.
type DownloadLimits struct {
	MaxFileSize int64
	MaxTotal    int64
	MaxEntries  int
}

// DownloadStats summarizes one completed tree download.
type DownloadStats struct {
	Files     int
	Bytes     int64
	Skipped   int
	Truncated bool
}

// DownloadTree copies the remote directory tree rooted at remoteRoot into
// localRoot over SFTP. .git trees are skipped, as are files exceeding the
// size cap. When an entry or total-byte cap is hit the walk stops and the
// stats are marked truncated; what was downloaded so far stays in place.
func (c *SSHClient) DownloadTree(ctx context.Context, conn *ssh.Client, remoteRoot, localRoot string, limits DownloadLimits) (*DownloadStats, error) {
	sftpClient, err := sftp.NewClient(conn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create sftp client: %v", ErrSFTPDownload, err)
	}
	defer sftpClient.Close()

	rootInfo, err := sftpClient.Stat(remoteRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot stat %s: %v", ErrSFTPDownload, remoteRoot, err)
	}
	if !rootInfo.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrSFTPDownload, remoteRoot)
	}

	if err := os.MkdirAll(localRoot, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSFTPDownload, err)
	}

	stats := &DownloadStats{}
	walker := sftpClient.Walk(remoteRoot)
	for walker.Step() {
		if ctx.Err() != nil {
			return stats, fmt.Errorf("%w: %v", ErrSFTPDownload, ctx.Err())
		}
		if walker.Err() != nil {
			stats.Skipped++
			continue
		}

		rel, err := filepath.Rel(remoteRoot, walker.Path())
		if err != nil || rel == "." {
			continue
		}
		info := walker.Stat()

		if info.IsDir() {
			if info.Name() == ".git" {
				walker.SkipDir()
				continue
			}
			if err := os.MkdirAll(filepath.Join(localRoot, rel), 0o755); err != nil {
				return stats, fmt.Errorf("%w: %v", ErrSFTPDownload, err)
			}
			continue
		}
		if !info.Mode().IsRegular() {
			stats.Skipped++
			continue
		}
		if limits.MaxFileSize > 0 && info.Size() > limits.MaxFileSize {
			stats.Skipped++
			continue
		}
		if (limits.MaxEntries > 0 && stats.Files >= limits.MaxEntries) ||
			(limits.MaxTotal > 0 && stats.Bytes+info.Size() > limits.MaxTotal) {
			stats.Truncated = true
			return stats, nil
		}

		n, err := c.downloadFile(sftpClient, walker.Path(), filepath.Join(localRoot, rel))
		if err != nil {
			return stats, err
		}
		stats.Files++
		stats.Bytes += n
	}

	return stats, nil
}

func (c *SSHClient) downloadFile(sftpClient *sftp.Client, remotePath, localPath string) (int64, error) {
	src, err := sftpClient.Open(remotePath)
	if err != nil {
		return 0, fmt.Errorf("%w: open %s: %v", ErrSFTPDownload, remotePath, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("%w: create %s: %v", ErrSFTPDownload, localPath, err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, src)
	if err != nil {
		return n, fmt.Errorf("%w: copy %s: %v", ErrSFTPDownload, remotePath, err)
	}
	return n, nil
}
