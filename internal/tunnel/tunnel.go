// Package tunnel provides local port forwarding through an SSH host.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/sync/errgroup"

	"github.com/peternagy/mongobrowse/internal/debug"
	"github.com/peternagy/mongobrowse/internal/types"
)

// DefaultHandshakeTimeout bounds the SSH handshake when ctx has no deadline.
const DefaultHandshakeTimeout = 10 * time.Second

// Tunnel is an open forward. Connections to LocalAddr reach the remote endpoint.
type Tunnel interface {
	LocalAddr() types.Address
	Close() error
}

// Forwarder opens tunnels.
type Forwarder interface {
	Open(ctx context.Context, settings types.SSHTunnel, remote types.Address) (Tunnel, error)
}

// SSHForwarder forwards a loopback port to a remote address over SSH.
type SSHForwarder struct {
	HandshakeTimeout time.Duration
}

// NewSSHForwarder creates a forwarder with default timeouts.
func NewSSHForwarder() *SSHForwarder {
	return &SSHForwarder{HandshakeTimeout: DefaultHandshakeTimeout}
}

// Open connects to the SSH host, then listens on 127.0.0.1:settings.LocalPort
// (a free port when 0) and relays every accepted connection to remote.
func (f *SSHForwarder) Open(ctx context.Context, settings types.SSHTunnel, remote types.Address) (Tunnel, error) {
	config, err := clientConfig(settings)
	if err != nil {
		return nil, err
	}

	client, err := f.dial(ctx, settings.Addr(), config)
	if err != nil {
		return nil, fmt.Errorf("ssh connect to %s: %w", settings.Addr(), err)
	}

	listener, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(settings.LocalPort)))
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("listen on local port %d: %w", settings.LocalPort, err)
	}

	t := &sshTunnel{
		client:   client,
		listener: listener,
		remote:   remote,
		done:     make(chan struct{}),
	}
	go t.serve()

	debug.LogTunnel("Tunnel established", map[string]interface{}{
		"ssh":    settings.Addr(),
		"local":  t.LocalAddr().String(),
		"remote": remote.String(),
	})
	return t, nil
}

func (f *SSHForwarder) dial(ctx context.Context, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		timeout := f.HandshakeTimeout
		if timeout <= 0 {
			timeout = DefaultHandshakeTimeout
		}
		deadline = time.Now().Add(timeout)
	}
	_ = conn.SetDeadline(deadline)

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(c, chans, reqs), nil
}

func clientConfig(settings types.SSHTunnel) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	switch settings.AuthMethod {
	case types.SSHAuthPrivateKey:
		signer, err := loadSigner(settings.PrivateKeyPath, settings.Passphrase)
		if err != nil {
			return nil, err
		}
		auth = append(auth, ssh.PublicKeys(signer))
	default:
		auth = append(auth,
			ssh.Password(settings.Password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = settings.Password
				}
				return answers, nil
			}),
		)
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if settings.KnownHostsFile != "" {
		cb, err := knownhosts.New(settings.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}
		hostKey = cb
	}

	return &ssh.ClientConfig{
		User:            settings.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
	}, nil
}

func loadSigner(path, passphrase string) (ssh.Signer, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(pemBytes, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(pemBytes)
	}
	if err != nil {
		return nil, fmt.Errorf("parse private key %s: %w", path, err)
	}
	return signer, nil
}

type sshTunnel struct {
	client   *ssh.Client
	listener net.Listener
	remote   types.Address
	done     chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func (t *sshTunnel) LocalAddr() types.Address {
	addr := t.listener.Addr().(*net.TCPAddr)
	return types.Address{Host: "127.0.0.1", Port: addr.Port}
}

func (t *sshTunnel) serve() {
	defer close(t.done)
	var wg sync.WaitGroup
	for {
		local, err := t.listener.Accept()
		if err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			t.forward(local)
		}()
	}
	wg.Wait()
}

// forward relays one local connection. Whichever side finishes first closes both.
func (t *sshTunnel) forward(local net.Conn) {
	remote, err := t.client.Dial("tcp", t.remote.String())
	if err != nil {
		local.Close()
		debug.LogTunnel("Forward failed", map[string]interface{}{
			"remote": t.remote.String(),
			"error":  err.Error(),
		})
		return
	}

	var closeBoth sync.Once
	shutdown := func() {
		closeBoth.Do(func() {
			local.Close()
			remote.Close()
		})
	}

	var g errgroup.Group
	g.Go(func() error {
		defer shutdown()
		_, err := io.Copy(remote, local)
		return err
	})
	g.Go(func() error {
		defer shutdown()
		_, err := io.Copy(local, remote)
		return err
	})
	if err := g.Wait(); err != nil && !isClosed(err) {
		debug.LogTunnel("Forward ended with error", map[string]interface{}{
			"remote": t.remote.String(),
			"error":  err.Error(),
		})
	}
}

// Close stops accepting, closes the SSH session and waits for active
// forwards to end. It is safe to call more than once.
func (t *sshTunnel) Close() error {
	t.closeOnce.Do(func() {
		lerr := t.listener.Close()
		cerr := t.client.Close()
		<-t.done
		if lerr != nil && !isClosed(lerr) {
			t.closeErr = lerr
		} else if cerr != nil && !isClosed(cerr) {
			t.closeErr = cerr
		}
		debug.LogTunnel("Tunnel closed", map[string]interface{}{
			"remote": t.remote.String(),
		})
	})
	return t.closeErr
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF)
}
