package twitchirc

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/you/eaglechat/internal/colorize"
	"github.com/you/eaglechat/internal/core"
)

type Config struct {
	Channel string
	Nick    string
	UseTLS  bool
	Addr    string
}

type Handler func(core.ChatMessage)

// Client reads a single channel's chat over anonymous IRC. Connect starts a
// reconnect loop in the background; Disconnect stops it. Both are idempotent.
type Client struct {
	cfg    Config
	handle Handler

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config, h Handler) *Client {
	return &Client{cfg: cfg, handle: h}
}

// Connect validates the config and starts the read loop. Calling Connect on
// an already-connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	if strings.TrimSpace(c.cfg.Channel) == "" {
		return errors.New("twitchirc: channel is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil
	}
	if strings.TrimSpace(c.cfg.Nick) == "" {
		c.cfg.Nick = fmt.Sprintf("justinfan%05d", rand.Intn(100000))
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	go func() {
		defer close(done)
		c.run(runCtx)
	}()
	return nil
}

// Disconnect stops the read loop and waits for it to exit.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Client) run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		err := c.runOnce(ctx)
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}

		log.Printf("twitchirc: disconnected: %v; reconnecting in %s", err, backoff)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if backoff < 60*time.Second {
			backoff *= 2
			if backoff > 60*time.Second {
				backoff = 60 * time.Second
			}
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	host := "irc.chat.twitch.tv"
	addr := host + ":6667"
	if c.cfg.UseTLS {
		addr = host + ":6697"
	}
	if strings.TrimSpace(c.cfg.Addr) != "" {
		addr = strings.TrimSpace(c.cfg.Addr)
	}

	log.Printf("twitchirc: connecting to %s (tls=%v)", addr, c.cfg.UseTLS)

	d := &net.Dialer{Timeout: 10 * time.Second}
	var conn net.Conn
	var err error
	if c.cfg.UseTLS {
		conn, err = tls.DialWithDialer(d, "tcp", addr, &tls.Config{ServerName: host})
	} else {
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))

	// write one IRC line and flush
	send := func(s string) error {
		_, err := rw.WriteString(s + "\r\n")
		if err != nil {
			return err
		}
		return rw.Flush()
	}

	// ensure the per-connection closer goroutine exits when this runOnce returns
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close() // unblock reader
		case <-done:
			// this connection ended normally; nothing to do
		}
	}()

	// anonymous (justinfan) login needs no PASS
	if err := send("NICK " + c.cfg.Nick); err != nil {
		return fmt.Errorf("send NICK: %w", err)
	}
	if err := send("CAP REQ :twitch.tv/tags twitch.tv/commands"); err != nil {
		return fmt.Errorf("send CAP REQ: %w", err)
	}
	if err := send("JOIN #" + c.cfg.Channel); err != nil {
		return fmt.Errorf("send JOIN: %w", err)
	}
	log.Printf("twitchirc: joined #%s as %s", c.cfg.Channel, c.cfg.Nick)

	reader := rw.Reader
	drops := newDropLogger(time.Now(), readChatDropDebugEnv(), dropSummaryInterval)
	var (
		total        int
		window       int
		nextTick     = time.Now().Add(10 * time.Second)
		readDeadline = 2 * time.Minute
		nextPing     = time.Now().Add(4 * time.Minute)
	)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			return fmt.Errorf("set deadline: %w", err)
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				now := time.Now()
				if now.After(nextPing) || now.Equal(nextPing) {
					if err := send("PING :keepalive"); err != nil {
						return fmt.Errorf("send PING: %w", err)
					}
					nextPing = now.Add(4 * time.Minute)
				}
				if now.After(nextTick) || now.Equal(nextTick) {
					log.Printf("twitchirc: recv %d msgs (total %d)", window, total)
					window = 0
					nextTick = now.Add(10 * time.Second)
				}
				continue
			}
			return fmt.Errorf("read: %w", err)
		}

		now := time.Now()
		if now.After(nextTick) || now.Equal(nextTick) {
			log.Printf("twitchirc: recv %d msgs (total %d)", window, total)
			window = 0
			nextTick = now.Add(10 * time.Second)
		}
		nextPing = now.Add(4 * time.Minute)

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "PING ") {
			if err := send("PONG " + strings.TrimPrefix(line, "PING ")); err != nil {
				return fmt.Errorf("send PONG: %w", err)
			}
			nextPing = time.Now().Add(4 * time.Minute)
			continue
		}

		if strings.Contains(line, " RECONNECT") {
			return fmt.Errorf("server requested reconnect")
		}

		msg, ok := parsePrivmsg(line, c.cfg.Channel)
		if !ok {
			chatMetrics.incDropped("not_privmsg")
			drops.note(now, "not_privmsg", line)
			continue
		}
		if strings.EqualFold(msg.Username, c.cfg.Nick) {
			chatMetrics.incDropped("own_message")
			continue
		}

		total++
		window++
		chatMetrics.incSeen()
		if c.handle != nil {
			c.handle(msg)
		}
	}
}

func parsePrivmsg(line, channel string) (core.ChatMessage, bool) {
	rest := line
	tags := map[string]string{}

	if strings.HasPrefix(rest, "@") {
		idx := strings.Index(rest, " ")
		if idx == -1 {
			return core.ChatMessage{}, false
		}
		tagPart := rest[1:idx]
		rest = strings.TrimSpace(rest[idx+1:])
		for _, kv := range strings.Split(tagPart, ";") {
			if kv == "" {
				continue
			}
			parts := strings.SplitN(kv, "=", 2)
			key := parts[0]
			val := ""
			if len(parts) == 2 {
				val = unescapeIRC(parts[1])
			}
			tags[key] = val
		}
	}

	if !strings.HasPrefix(rest, ":") {
		return core.ChatMessage{}, false
	}
	rest = rest[1:]

	idx := strings.Index(rest, " ")
	if idx == -1 {
		return core.ChatMessage{}, false
	}
	prefix := rest[:idx]
	rest = strings.TrimSpace(rest[idx+1:])

	if !strings.HasPrefix(strings.ToUpper(rest), "PRIVMSG #") {
		return core.ChatMessage{}, false
	}
	rest = rest[len("PRIVMSG #"):]

	idx = strings.Index(rest, " ")
	if idx == -1 {
		return core.ChatMessage{}, false
	}
	chanName := rest[:idx]
	rest = strings.TrimSpace(rest[idx+1:])
	if !strings.EqualFold(chanName, channel) {
		return core.ChatMessage{}, false
	}

	if !strings.HasPrefix(rest, ":") {
		return core.ChatMessage{}, false
	}
	text := rest[1:]

	user := extractUser(prefix)
	display := tags["display-name"]
	if display == "" {
		display = user
	}

	ts := time.Now().UTC()
	if tsStr := tags["tmi-sent-ts"]; tsStr != "" {
		if ms, err := strconv.ParseInt(tsStr, 10, 64); err == nil {
			ts = time.Unix(0, ms*int64(time.Millisecond)).UTC()
		}
	}

	id := tags["id"]
	if id == "" {
		id = fmt.Sprintf("%s-%d", user, ts.UnixNano())
	}

	colour := tags["color"]
	if colour == "" {
		colour = colorize.Fallback(user)
	}

	return core.ChatMessage{
		ID:          id,
		Ts:          ts,
		Username:    user,
		DisplayName: display,
		Text:        text,
		Colour:      colour,
		Badges:      parseBadgesTag(tags["badges"]),
	}, true
}

// parseBadgesTag splits "moderator/1,subscriber/6" into a set-id to version
// map. A trailing slash with no version keeps the set with an empty version.
func parseBadgesTag(raw string) map[string]string {
	out := map[string]string{}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		set, version, _ := strings.Cut(entry, "/")
		if set == "" {
			continue
		}
		out[set] = version
	}
	return out
}

func extractUser(prefix string) string {
	if strings.HasPrefix(prefix, ":") {
		prefix = prefix[1:]
	}
	if idx := strings.Index(prefix, "!"); idx != -1 {
		return prefix[:idx]
	}
	return prefix
}

func unescapeIRC(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 's':
			b.WriteByte(' ')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case ':':
			b.WriteByte(';')
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
