package storage

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

type SCPConfig struct {
	Host           string
	Port           int
	User           string
	KeyFile        string
	KnownHostsFile string // empty: host key not checked
	RemoteDir      string
	PublicBaseURL  string // URL the remote dir is served at
	Timeout        time.Duration
}

// SCPUploader pushes files to a remote directory with the scp sink protocol
// over an SSH session.
type SCPUploader struct {
	cfg      SCPConfig
	auth     ssh.AuthMethod
	hostKeys ssh.HostKeyCallback
}

func NewSCPUploader(cfg SCPConfig) (*SCPUploader, error) {
	if cfg.Host == "" {
		return nil, errors.New("DELIVERY_HOST not configured")
	}
	if cfg.RemoteDir == "" || cfg.PublicBaseURL == "" {
		return nil, errors.New("DELIVERY_REMOTE_DIR and DELIVERY_PUBLIC_BASE_URL are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}

	pem, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		return nil, fmt.Errorf("parse key file: %w", err)
	}

	hostKeys := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHostsFile != "" {
		if hostKeys, err = knownhosts.New(cfg.KnownHostsFile); err != nil {
			return nil, fmt.Errorf("known hosts: %w", err)
		}
	}

	return &SCPUploader{cfg: cfg, auth: ssh.PublicKeys(signer), hostKeys: hostKeys}, nil
}

func (u *SCPUploader) Upload(ctx context.Context, objectName string, _ string, r io.Reader) (string, error) {
	if strings.ContainsAny(objectName, "/\n") {
		return "", fmt.Errorf("invalid object name %q", objectName)
	}
	size, body, err := sized(r)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, u.cfg.Timeout)
	defer cancel()

	client, err := u.dial(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	// unblock protocol reads when ctx ends
	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()

	if err := u.copy(client, objectName, size, body); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("scp: %w", ctx.Err())
		}
		return "", err
	}
	return u.cfg.PublicBaseURL + "/" + objectName, nil
}

func (u *SCPUploader) dial(ctx context.Context) (*ssh.Client, error) {
	addr := net.JoinHostPort(u.cfg.Host, strconv.Itoa(u.cfg.Port))
	conn, err := (&net.Dialer{Timeout: u.cfg.Timeout}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, &ssh.ClientConfig{
		User:            u.cfg.User,
		Auth:            []ssh.AuthMethod{u.auth},
		HostKeyCallback: u.hostKeys,
		Timeout:         u.cfg.Timeout,
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ssh handshake: %w", err)
	}
	return ssh.NewClient(c, chans, reqs), nil
}

func (u *SCPUploader) copy(client *ssh.Client, name string, size int64, body io.Reader) error {
	sess, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("ssh session: %w", err)
	}
	defer sess.Close()

	stdin, err := sess.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		return err
	}
	acks := bufio.NewReader(stdout)

	if err := sess.Start("scp -qt " + shellQuote(u.cfg.RemoteDir)); err != nil {
		return fmt.Errorf("start scp: %w", err)
	}
	if err := readAck(acks); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(stdin, "C0644 %d %s\n", size, name); err != nil {
		return err
	}
	if err := readAck(acks); err != nil {
		return err
	}
	if _, err := io.Copy(stdin, body); err != nil {
		return err
	}
	if _, err := stdin.Write([]byte{0}); err != nil {
		return err
	}
	if err := readAck(acks); err != nil {
		return err
	}
	_ = stdin.Close()
	return sess.Wait()
}

// readAck reads one scp status byte. 1 and 2 are followed by a message line.
func readAck(r *bufio.Reader) error {
	b, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("scp ack: %w", err)
	}
	if b == 0 {
		return nil
	}
	msg, _ := r.ReadString('\n')
	return fmt.Errorf("scp remote error: %s", strings.TrimSpace(msg))
}

// sized returns the length of r, buffering it when it cannot be stat'ed.
func sized(r io.Reader) (int64, io.Reader, error) {
	if f, ok := r.(interface{ Stat() (os.FileInfo, error) }); ok {
		if info, err := f.Stat(); err == nil && info.Mode().IsRegular() {
			return info.Size(), r, nil
		}
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, nil, err
	}
	return int64(len(b)), bytes.NewReader(b), nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
