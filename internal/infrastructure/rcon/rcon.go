package rcon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"syscall"
	"time"

	gorcon "github.com/gorcon/rcon"
)

var (
	// ErrConnection means no session could be opened (unreachable, refused, bad password).
	ErrConnection = errors.New("rcon connection failed")
	// ErrCommand means one command failed. The session is still usable unless
	// ErrConnectionLost is also in the chain.
	ErrCommand = errors.New("rcon command failed")
	// ErrConnectionLost means the stream broke while sending; the session must be dropped.
	ErrConnectionLost = errors.New("rcon connection lost")
	// ErrTimeout is joined with ErrCommand and ErrConnectionLost when a send
	// exceeds its deadline. Every exec packet carries the same id, so a late
	// reply would be read as the answer to the next command.
	ErrTimeout = errors.New("rcon command timed out")
)

type Config struct {
	Host           string
	Port           int
	Password       string
	DialTimeout    time.Duration
	CommandTimeout time.Duration
}

func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Session is one authenticated connection. Commands are sent one at a time.
type Session interface {
	Send(ctx context.Context, command string) (string, error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// WithSession opens a session, runs fn and always closes the session.
func WithSession(ctx context.Context, d Dialer, fn func(Session) error) (err error) {
	s, err := d.Dial(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close rcon session: %w", cerr)
		}
	}()
	return fn(s)
}

type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 10 * time.Second
	}
	return &Client{cfg: cfg}
}

func (c *Client) Dial(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	timeout := c.cfg.DialTimeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}

	conn, err := gorcon.Dial(
		c.cfg.Address(),
		c.cfg.Password,
		gorcon.SetDialTimeout(timeout),
		gorcon.SetDeadline(c.cfg.CommandTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnection, c.cfg.Address(), err)
	}
	return &session{conn: conn}, nil
}

type session struct {
	conn   *gorcon.Conn
	broken bool
}

func (s *session) Send(ctx context.Context, command string) (string, error) {
	if s.broken {
		return "", fmt.Errorf("%w: session out of sync", ErrConnectionLost)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCommand, err)
	}
	resp, err := s.conn.Execute(command)
	if err != nil {
		err = classify(err)
		if errors.Is(err, ErrConnectionLost) {
			s.broken = true
			resp = ""
		}
		return resp, err
	}
	return resp, nil
}

func (s *session) Close() error {
	return s.conn.Close()
}

func classify(err error) error {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %w: %w: %v", ErrConnectionLost, ErrCommand, ErrTimeout, err)
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	default:
		return fmt.Errorf("%w: %v", ErrCommand, err)
	}
}
