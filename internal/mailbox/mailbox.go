package mailbox

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"

	"liftmail/internal/config"
	"liftmail/internal/logging"
)

// ErrNotFound is returned when a fetched UID is no longer in the folder.
var ErrNotFound = errors.New("message not found")

// Session is an authenticated connection with the submission folder selected.
type Session interface {
	// Unseen lists the UIDs of messages without the \Seen flag, ascending.
	Unseen(ctx context.Context) ([]uint32, error)
	// Fetch returns the full RFC 822 bytes without setting \Seen.
	Fetch(ctx context.Context, uid uint32) ([]byte, error)
	// MarkSeen adds the \Seen flag.
	MarkSeen(ctx context.Context, uid uint32) error
	Close() error
}

// Dialer opens mailbox sessions.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// Options configures an IMAP dialer.
type Options struct {
	Address  string
	Username string
	Password string
	Folder   string
	Timeout  time.Duration
	// Plaintext disables implicit TLS. Only local test servers use it.
	Plaintext bool
	TLSConfig *tls.Config
	Logger    *slog.Logger
}

// IMAPDialer connects to an IMAP server over implicit TLS.
type IMAPDialer struct {
	opts Options
}

// NewDialer builds an IMAP dialer from the mailbox configuration.
func NewDialer(cfg *config.Config, logger *slog.Logger) *IMAPDialer {
	return NewIMAPDialer(Options{
		Address:  cfg.IMAPAddress(),
		Username: cfg.Mailbox.Username,
		Password: cfg.Mailbox.Password,
		Folder:   cfg.Mailbox.Folder,
		Timeout:  time.Duration(cfg.Mailbox.DialTimeout) * time.Second,
		Logger:   logger,
	})
}

// NewIMAPDialer returns a dialer for opts.
func NewIMAPDialer(opts Options) *IMAPDialer {
	if strings.TrimSpace(opts.Folder) == "" {
		opts.Folder = "INBOX"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &IMAPDialer{opts: opts}
}

// Dial connects, logs in and selects the folder read-write.
func (d *IMAPDialer) Dial(ctx context.Context) (Session, error) {
	host, _, err := net.SplitHostPort(d.opts.Address)
	if err != nil {
		return nil, fmt.Errorf("parse imap address %q: %w", d.opts.Address, err)
	}

	dialer := net.Dialer{Timeout: d.opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", d.opts.Address)
	if err != nil {
		return nil, fmt.Errorf("dial imap: %w", err)
	}
	if !d.opts.Plaintext {
		tlsConfig := d.opts.TLSConfig
		if tlsConfig == nil {
			tlsConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
		}
		conn = tls.Client(conn, tlsConfig)
	}

	// The greeting is read inside imapclient.New, before Timeout applies.
	_ = conn.SetDeadline(time.Now().Add(d.opts.Timeout))
	client, err := imapclient.New(conn)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("imap greeting: %w", err)
	}
	_ = conn.SetDeadline(time.Time{})
	client.Timeout = d.opts.Timeout
	client.ErrorLog = slog.NewLogLogger(d.opts.Logger.Handler(), slog.LevelWarn)

	// Cancelling ctx tears the connection down so blocked commands return.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	if err := client.Login(d.opts.Username, d.opts.Password); err != nil {
		stop()
		_ = client.Logout()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if _, err := client.Select(d.opts.Folder, false); err != nil {
		stop()
		_ = client.Logout()
		return nil, fmt.Errorf("select %s: %w", d.opts.Folder, err)
	}
	return &imapSession{client: client, stop: stop}, nil
}

type imapSession struct {
	client *imapclient.Client
	stop   func() bool
}

func (s *imapSession) Unseen(ctx context.Context) ([]uint32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("search unseen: %w", err)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids, nil
}

func (s *imapSession) Fetch(ctx context.Context, uid uint32) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchUid}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqset, items, messages)
	}()

	var raw []byte
	var readErr error
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, body); err != nil && readErr == nil {
			readErr = err
			continue
		}
		raw = buf.Bytes()
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch uid %d: %w", uid, err)
	}
	if readErr != nil {
		return nil, fmt.Errorf("read uid %d: %w", uid, readErr)
	}
	if raw == nil {
		return nil, fmt.Errorf("uid %d: %w", uid, ErrNotFound)
	}
	return raw, nil
}

func (s *imapSession) MarkSeen(ctx context.Context, uid uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := s.client.UidStore(seqset, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		return fmt.Errorf("mark uid %d seen: %w", uid, err)
	}
	return nil
}

func (s *imapSession) Close() error {
	defer s.stop()
	if err := s.client.Logout(); err != nil && !errors.Is(err, imapclient.ErrAlreadyLoggedOut) {
		return fmt.Errorf("imap logout: %w", err)
	}
	return nil
}
