package executor

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"bedrockcron/config"
)

const dialTimeout = 10 * time.Second

// SSH sends console commands through the container CLI on a remote host,
// over a key-authenticated SSH session. The client connection is reused
// across calls and redialed when it goes stale.
type SSH struct {
	addr       string
	user       string
	keyFile    string
	container  string
	dockerPath string

	mu     sync.Mutex
	client *ssh.Client
}

func NewSSH(profile config.Profile) *SSH {
	port := profile.Port
	if port == 0 {
		port = 22
	}
	return &SSH{
		addr:       net.JoinHostPort(profile.Host, strconv.Itoa(port)),
		user:       profile.User,
		keyFile:    expandHome(profile.KeyFile),
		container:  profile.Container,
		dockerPath: profile.DockerPath,
	}
}

func (s *SSH) Execute(ctx context.Context, command string) (string, error) {
	if err := ValidateCommand(command); err != nil {
		return "", err
	}

	client, err := s.connect(ctx)
	if err != nil {
		return "", execErr(KindConnectionFailed, "ssh %s: %v", s.addr, err)
	}

	session, err := client.NewSession()
	if err != nil {
		// Stale connection; drop it so the next call redials.
		s.drop(client)
		return "", execErr(KindConnectionFailed, "ssh session on %s: %v", s.addr, err)
	}
	defer session.Close()

	// The remote side is a shell string, so the command is quoted down to a
	// single literal argument.
	remote := fmt.Sprintf("%s exec -i %s send-command %s",
		s.dockerPath, shellQuote(s.container), shellQuote(command))

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := session.CombinedOutput(remote)
		done <- result{out, err}
	}()

	select {
	case <-ctx.Done():
		// Abandon the in-flight session. The command may or may not have
		// reached the console before the deadline; the caller surfaces that
		// ambiguity instead of hiding it.
		s.drop(client)
		return "", execErr(KindTimeout, "no response from %s within deadline", s.addr)
	case res := <-done:
		output := strings.TrimSpace(string(res.out))
		if res.err == nil {
			return output, nil
		}
		if isContainerDown(output) {
			return output, execErr(KindContainerNotRunning, "container %s is not running on %s", s.container, s.addr)
		}
		return output, execErr(KindExecFailed, "remote send-command: %v: %s", res.err, firstLine(output))
	}
}

// connect returns the cached client or dials a new one.
func (s *SSH) connect(ctx context.Context) (*ssh.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}

	key, err := os.ReadFile(s.keyFile)
	if err != nil {
		return nil, fmt.Errorf("read key %s: %w", s.keyFile, err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parse key %s: %w", s.keyFile, err)
	}

	cfg := &ssh.ClientConfig{
		User: s.user,
		Auth: []ssh.AuthMethod{ssh.PublicKeys(signer)},
		// Equivalent of ssh -o StrictHostKeyChecking=no.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         dialTimeout,
	}
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < cfg.Timeout {
			cfg.Timeout = until
		}
	}

	client, err := ssh.Dial("tcp", s.addr, cfg)
	if err != nil {
		return nil, err
	}
	s.client = client
	return client, nil
}

// drop closes and forgets a client, unless another call already replaced it.
func (s *SSH) drop(client *ssh.Client) {
	s.mu.Lock()
	if s.client == client {
		s.client = nil
	}
	s.mu.Unlock()
	_ = client.Close()
}

// Close tears down the cached connection, if any.
func (s *SSH) Close() error {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()
	if client != nil {
		return client.Close()
	}
	return nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
