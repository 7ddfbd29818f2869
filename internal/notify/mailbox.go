package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/hotel-ops/internal/model"
)

// MailboxSink appends each event as a plain-text message to a shared
// IMAP folder, where front-desk staff read it like any other mail.
type MailboxSink struct {
	host     string
	port     string
	username string
	password string
	folder   string
	from     string
	tls      bool
}

// NewMailboxSink creates a mailbox sink from config and the resolved
// password.
func NewMailboxSink(cfg model.MailboxConfig, password string) *MailboxSink {
	folder := cfg.Folder
	if folder == "" {
		folder = "INBOX"
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &MailboxSink{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: password,
		folder:   folder,
		from:     from,
		tls:      cfg.TLS,
	}
}

// Name implements Sink.
func (m *MailboxSink) Name() string { return "mailbox" }

// dialTimeout bounds the TCP connect when ctx carries no deadline.
const dialTimeout = 30 * time.Second

// connect establishes a connection to the IMAP server and authenticates.
// The connection is closed as soon as ctx is done, which fails any
// command still waiting on the server. The caller must call stop and
// log out.
func (m *MailboxSink) connect(ctx context.Context) (client *imapclient.Client, stop func() bool, err error) {
	addr := net.JoinHostPort(m.host, m.port)

	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}
	stop = context.AfterFunc(ctx, func() { _ = conn.Close() })

	tlsConfig := &tls.Config{ServerName: m.host, NextProtos: []string{"imap"}}
	if m.tls {
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			stop()
			_ = conn.Close()
			return nil, nil, fmt.Errorf("TLS handshake with %s: %w", addr, err)
		}
		client = imapclient.New(tlsConn, nil)
	} else {
		client, err = imapclient.NewStartTLS(conn, &imapclient.Options{TLSConfig: tlsConfig})
		if err != nil {
			stop()
			_ = conn.Close()
			return nil, nil, fmt.Errorf("starting TLS with %s: %w", addr, ctxErr(ctx, err))
		}
	}

	if err := client.Login(m.username, m.password).Wait(); err != nil {
		stop()
		_ = client.Close()
		if ctx.Err() != nil {
			return nil, nil, fmt.Errorf("logging in to %s: %w", addr, ctx.Err())
		}
		return nil, nil, Permanent(fmt.Errorf("authentication failed for %s: %w", m.username, err))
	}

	return client, stop, nil
}

// ctxErr prefers the context's error when ctx ended the operation.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Send implements Sink.
func (m *MailboxSink) Send(ctx context.Context, ev model.Event) error {
	raw, err := buildMessage(m.from, ev)
	if err != nil {
		return Permanent(err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	client, stop, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if stop() {
			_ = client.Logout().Wait()
		}
		_ = client.Close()
	}()

	cmd := client.Append(m.folder, int64(len(raw)), &imap.AppendOptions{
		Time: ev.OccurredAt,
	})
	if _, err := cmd.Write(raw); err != nil {
		_ = cmd.Close()
		return fmt.Errorf("writing message to %s: %w", m.folder, err)
	}
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("closing append to %s: %w", m.folder, err)
	}
	if _, err := cmd.Wait(); err != nil {
		return fmt.Errorf("appending to %s: %w", m.folder, ctxErr(ctx, err))
	}
	return nil
}

// buildMessage renders ev as an RFC 5322 message.
func buildMessage(from string, ev model.Event) ([]byte, error) {
	var h mail.Header
	h.SetDate(ev.OccurredAt)
	h.SetAddressList("From", []*mail.Address{{Name: "Hotel Ops", Address: from}})
	h.SetAddressList("To", []*mail.Address{{Name: "Hotel Ops", Address: from}})
	h.SetSubject(subjectFor(ev))
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	h.Set("X-Hotelops-Event", string(ev.Kind))
	h.Set("X-Hotelops-Task", ev.TaskID)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generating message id: %w", err)
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := w.Write([]byte(bodyFor(ev))); err != nil {
		return nil, fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message writer: %w", err)
	}
	return buf.Bytes(), nil
}

func subjectFor(ev model.Event) string {
	title, _ := ev.Payload["title"].(string)
	if title == "" {
		title = ev.TaskID
	}
	switch ev.Kind {
	case model.EventStatusChanged:
		return fmt.Sprintf("[hotelops] %s moved to %v", title, ev.Payload["to"])
	case model.EventMembersAssigned:
		return fmt.Sprintf("[hotelops] New assignees on %s", title)
	case model.EventReminderSet:
		return fmt.Sprintf("[hotelops] Reminder set for %s", title)
	case model.EventReminderDue:
		return fmt.Sprintf("[hotelops] Reminder: %s", title)
	}
	return fmt.Sprintf("[hotelops] %s: %s", ev.Kind, title)
}

func bodyFor(ev model.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s\r\n", ev.Kind)
	fmt.Fprintf(&b, "Task: %s\r\n", ev.TaskID)
	fmt.Fprintf(&b, "Time: %s\r\n\r\n", ev.OccurredAt.Format(time.RFC1123Z))

	keys := make([]string, 0, len(ev.Payload))
	for k := range ev.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, err := json.Marshal(ev.Payload[k])
		if err != nil {
			v = []byte(fmt.Sprint(ev.Payload[k]))
		}
		fmt.Fprintf(&b, "%s: %s\r\n", k, v)
	}
	return b.String()
}
