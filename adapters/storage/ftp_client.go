package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/jlaffaye/ftp"
)

// FTPConfig holds the connection parameters for JlaffayeDialer.
type FTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	TLS      bool // explicit FTPS (AUTH TLS)
	Timeout  time.Duration
}

// JlaffayeDialer dials real FTP servers with github.com/jlaffaye/ftp.
type JlaffayeDialer struct {
	cfg FTPConfig
}

// NewFTPDialer returns a dialer for cfg.
func NewFTPDialer(cfg FTPConfig) *JlaffayeDialer {
	if cfg.Port == 0 {
		cfg.Port = 21
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &JlaffayeDialer{cfg: cfg}
}

// Dial connects and logs in.
func (d *JlaffayeDialer) Dial(ctx context.Context) (FTPConn, error) {
	addr := net.JoinHostPort(d.cfg.Host, strconv.Itoa(d.cfg.Port))
	opts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(d.cfg.Timeout),
	}
	if d.cfg.TLS {
		opts = append(opts, ftp.DialWithExplicitTLS(&tls.Config{ServerName: d.cfg.Host, MinVersion: tls.VersionTLS12}))
	}
	c, err := ftp.Dial(addr, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Login(d.cfg.User, d.cfg.Password); err != nil {
		_ = c.Quit()
		return nil, fmt.Errorf("login as %s: %w", d.cfg.User, err)
	}
	return &jlaffayeConn{c: c}, nil
}

type jlaffayeConn struct {
	c *ftp.ServerConn
}

func (j *jlaffayeConn) MakeDir(path string) error { return j.c.MakeDir(path) }
func (j *jlaffayeConn) ChangeDir(path string) error { return j.c.ChangeDir(path) }
func (j *jlaffayeConn) Stor(path string, r io.Reader) error { return j.c.Stor(path, r) }
func (j *jlaffayeConn) FileSize(path string) (int64, error) { return j.c.FileSize(path) }
func (j *jlaffayeConn) GetTime(path string) (time.Time, error) { return j.c.GetTime(path) }
func (j *jlaffayeConn) Delete(path string) error { return j.c.Delete(path) }
func (j *jlaffayeConn) RemoveDir(path string) error { return j.c.RemoveDir(path) }
func (j *jlaffayeConn) Quit() error { return j.c.Quit() }

func (j *jlaffayeConn) List(path string) ([]RemoteEntry, error) {
	entries, err := j.c.List(path)
	if err != nil {
		return nil, err
	}
	out := make([]RemoteEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, RemoteEntry{
			Name:    e.Name,
			Dir:     e.Type == ftp.EntryTypeFolder,
			Size:    int64(e.Size),
			ModTime: e.Time,
		})
	}
	return out, nil
}

var (
	_ FTPDialer = (*JlaffayeDialer)(nil)
	_ FTPConn   = (*jlaffayeConn)(nil)
)
