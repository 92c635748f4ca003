package tunnel

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/peternagy/mongobrowse/internal/types"
)

const (
	testUser     = "deploy"
	testPassword = "secret"
)

// sshServer is a minimal SSH server that only accepts direct-tcpip channels.
type sshServer struct {
	addr    types.Address
	hostKey ssh.Signer
}

func startSSHServer(t *testing.T, authorized ssh.PublicKey) *sshServer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	hostKey, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	config := &ssh.ServerConfig{
		PasswordCallback: func(meta ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if meta.User() == testUser && string(pass) == testPassword {
				return nil, nil
			}
			return nil, assert.AnError
		},
		PublicKeyCallback: func(meta ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if authorized != nil && string(key.Marshal()) == string(authorized.Marshal()) {
				return nil, nil
			}
			return nil, assert.AnError
		},
	}
	config.AddHostKey(hostKey)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveSSH(conn, config)
		}
	}()

	return &sshServer{addr: tcpAddress(ln.Addr()), hostKey: hostKey}
}

func serveSSH(conn net.Conn, config *ssh.ServerConfig) {
	_, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		conn.Close()
		return
	}
	go ssh.DiscardRequests(reqs)
	for newCh := range chans {
		if newCh.ChannelType() != "direct-tcpip" {
			newCh.Reject(ssh.UnknownChannelType, "only direct-tcpip")
			continue
		}
		var payload struct {
			DestAddr string
			DestPort uint32
			OrigAddr string
			OrigPort uint32
		}
		if err := ssh.Unmarshal(newCh.ExtraData(), &payload); err != nil {
			newCh.Reject(ssh.ConnectionFailed, err.Error())
			continue
		}
		target, err := net.Dial("tcp", net.JoinHostPort(payload.DestAddr, strconv.Itoa(int(payload.DestPort))))
		if err != nil {
			newCh.Reject(ssh.ConnectionFailed, err.Error())
			continue
		}
		ch, chReqs, err := newCh.Accept()
		if err != nil {
			target.Close()
			continue
		}
		go ssh.DiscardRequests(chReqs)
		go func() {
			defer ch.Close()
			defer target.Close()
			go io.Copy(target, ch)
			io.Copy(ch, target)
		}()
	}
}

// startEchoServer returns the address of a TCP server echoing what it receives.
func startEchoServer(t *testing.T) types.Address {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				io.Copy(conn, conn)
			}()
		}
	}()
	return tcpAddress(ln.Addr())
}

func tcpAddress(addr net.Addr) types.Address {
	tcp := addr.(*net.TCPAddr)
	return types.Address{Host: "127.0.0.1", Port: tcp.Port}
}

func assertEcho(t *testing.T, addr types.Address) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr.String(), 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))
}

func tunnelConfig(server *sshServer) types.SSHTunnel {
	return types.SSHTunnel{
		Host:       server.addr.Host,
		Port:       server.addr.Port,
		User:       testUser,
		AuthMethod: types.SSHAuthPassword,
		Password:   testPassword,
	}
}

func TestPasswordTunnelForwards(t *testing.T) {
	server := startSSHServer(t, nil)
	echo := startEchoServer(t)

	tun, err := NewSSHForwarder().Open(context.Background(), tunnelConfig(server), echo)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", tun.LocalAddr().Host)
	assert.NotZero(t, tun.LocalAddr().Port)

	assertEcho(t, tun.LocalAddr())
	assertEcho(t, tun.LocalAddr())

	local := tun.LocalAddr()
	require.NoError(t, tun.Close())
	require.NoError(t, tun.Close(), "second Close is a no-op")

	_, err = net.DialTimeout("tcp", local.String(), time.Second)
	assert.Error(t, err, "listener must be gone after Close")
}

func TestCloseWithActiveConnection(t *testing.T) {
	server := startSSHServer(t, nil)
	echo := startEchoServer(t)

	tun, err := NewSSHForwarder().Open(context.Background(), tunnelConfig(server), echo)
	require.NoError(t, err)

	conn, err := net.Dial("tcp", tun.LocalAddr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- tun.Close() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked on an active forward")
	}
}

func TestWrongPasswordFails(t *testing.T) {
	server := startSSHServer(t, nil)
	s := tunnelConfig(server)
	s.Password = "wrong"

	_, err := NewSSHForwarder().Open(context.Background(), s, startEchoServer(t))
	require.Error(t, err)
}

func TestPrivateKeyAuth(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)

	server := startSSHServer(t, sshPub)
	echo := startEchoServer(t)
	dir := t.TempDir()

	t.Run("plain key", func(t *testing.T) {
		block, err := ssh.MarshalPrivateKey(priv, "test")
		require.NoError(t, err)
		path := filepath.Join(dir, "id_plain")
		require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0600))

		s := tunnelConfig(server)
		s.AuthMethod = types.SSHAuthPrivateKey
		s.PrivateKeyPath = path
		tun, err := NewSSHForwarder().Open(context.Background(), s, echo)
		require.NoError(t, err)
		defer tun.Close()
		assertEcho(t, tun.LocalAddr())
	})

	t.Run("encrypted key", func(t *testing.T) {
		block, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "test", []byte("hunter2"))
		require.NoError(t, err)
		path := filepath.Join(dir, "id_encrypted")
		require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0600))

		s := tunnelConfig(server)
		s.AuthMethod = types.SSHAuthPrivateKey
		s.PrivateKeyPath = path

		_, err = NewSSHForwarder().Open(context.Background(), s, echo)
		require.Error(t, err, "missing passphrase must fail")

		s.Passphrase = "hunter2"
		tun, err := NewSSHForwarder().Open(context.Background(), s, echo)
		require.NoError(t, err)
		defer tun.Close()
		assertEcho(t, tun.LocalAddr())
	})

	t.Run("missing key file", func(t *testing.T) {
		s := tunnelConfig(server)
		s.AuthMethod = types.SSHAuthPrivateKey
		s.PrivateKeyPath = filepath.Join(dir, "nope")
		_, err := NewSSHForwarder().Open(context.Background(), s, echo)
		require.Error(t, err)
	})
}

func TestKnownHosts(t *testing.T) {
	server := startSSHServer(t, nil)
	echo := startEchoServer(t)
	dir := t.TempDir()
	hostPattern := knownhosts.Normalize(server.addr.String())

	t.Run("matching key", func(t *testing.T) {
		path := filepath.Join(dir, "known_hosts_ok")
		line := knownhosts.Line([]string{hostPattern}, server.hostKey.PublicKey())
		require.NoError(t, os.WriteFile(path, []byte(line+"\n"), 0600))

		s := tunnelConfig(server)
		s.KnownHostsFile = path
		tun, err := NewSSHForwarder().Open(context.Background(), s, echo)
		require.NoError(t, err)
		tun.Close()
	})

	t.Run("mismatched key", func(t *testing.T) {
		_, other, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		otherSigner, err := ssh.NewSignerFromKey(other)
		require.NoError(t, err)

		path := filepath.Join(dir, "known_hosts_bad")
		line := knownhosts.Line([]string{hostPattern}, otherSigner.PublicKey())
		require.NoError(t, os.WriteFile(path, []byte(line+"\n"), 0600))

		s := tunnelConfig(server)
		s.KnownHostsFile = path
		_, err = NewSSHForwarder().Open(context.Background(), s, echo)
		require.Error(t, err)
	})
}

func TestUnreachableSSHHost(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := tcpAddress(ln.Addr())
	ln.Close()

	s := types.SSHTunnel{Host: addr.Host, Port: addr.Port, User: testUser, Password: testPassword}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = NewSSHForwarder().Open(ctx, s, startEchoServer(t))
	require.Error(t, err)
}
