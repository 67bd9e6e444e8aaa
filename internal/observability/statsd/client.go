package statsd

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Sink describes the minimal interface required to emit StatsD-style metrics.
type Sink interface {
	Count(name string, value int64, tags map[string]string)
	Gauge(name string, value float64, tags map[string]string)
	Timing(name string, value time.Duration, tags map[string]string)
}

// DefaultMaxPacketSize keeps a batched datagram under a typical Ethernet MTU.
const DefaultMaxPacketSize = 1432

// Config describes how to connect to a StatsD-compatible sink.
type Config struct {
	Enabled    bool
	Address    string
	Prefix     string
	GlobalTags map[string]string
	// FlushInterval bounds how long a metric waits in the batch buffer.
	// Zero writes every metric immediately.
	FlushInterval time.Duration
	MaxPacketSize int
	Logger        *slog.Logger
}

// Client emits metrics over UDP using the StatsD line protocol, batching
// newline-separated lines into datagrams. It is safe for concurrent use.
type Client struct {
	prefix     string
	globalTags map[string]string
	maxPacket  int
	batching   bool
	logger     *slog.Logger

	mu   sync.Mutex
	conn net.Conn
	buf  bytes.Buffer

	stop chan struct{}
	done chan struct{}
}

var _ Sink = (*Client)(nil)

// NewClient dials the configured StatsD endpoint. A disabled config or a
// blank address yields a client that drops everything.
func NewClient(cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		prefix:     sanitizePrefix(cfg.Prefix),
		globalTags: cloneTags(cfg.GlobalTags),
		maxPacket:  cfg.MaxPacketSize,
		batching:   cfg.FlushInterval > 0,
		logger:     logger,
	}
	if c.maxPacket <= 0 {
		c.maxPacket = DefaultMaxPacketSize
	}

	address := strings.TrimSpace(cfg.Address)
	if !cfg.Enabled || address == "" {
		return c, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := (&net.Dialer{}).DialContext(ctx, "udp", address)
	if err != nil {
		return nil, fmt.Errorf("statsd dial %s: %w", address, err)
	}
	c.conn = conn

	if c.batching {
		c.stop = make(chan struct{})
		c.done = make(chan struct{})
		go c.flushLoop(cfg.FlushInterval, c.stop, c.done)
	}
	return c, nil
}

// Enabled reports whether the client actively emits metrics.
func (c *Client) Enabled() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Count increments a counter metric.
func (c *Client) Count(name string, value int64, tags map[string]string) {
	c.emit(name, strconv.FormatInt(value, 10), "c", tags)
}

// Gauge records the current value for a gauge metric.
func (c *Client) Gauge(name string, value float64, tags map[string]string) {
	c.emit(name, formatFloat(value), "g", tags)
}

// Timing records a timing metric in milliseconds.
func (c *Client) Timing(name string, value time.Duration, tags map[string]string) {
	c.emit(name, formatFloat(float64(value)/float64(time.Millisecond)), "ms", tags)
}

// Flush writes any buffered lines.
func (c *Client) Flush() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
}

// Close flushes pending metrics and releases the UDP connection.
// It may be called more than once.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	stop := c.stop
	c.stop = nil
	c.mu.Unlock()
	if stop != nil {
		close(stop)
		<-c.done
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.flushLocked()
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) flushLoop(every time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.Flush()
		}
	}
}

func (c *Client) emit(name, value, kind string, tags map[string]string) {
	if c == nil {
		return
	}
	line := c.line(name, value, kind, tags)
	if line == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return
	}
	if !c.batching {
		c.writeLocked([]byte(line))
		return
	}
	if c.buf.Len() > 0 && c.buf.Len()+1+len(line) > c.maxPacket {
		c.flushLocked()
	}
	if c.buf.Len() > 0 {
		c.buf.WriteByte('\n')
	}
	c.buf.WriteString(line)
}

// line renders one metric in the DogStatsD flavour: name:value|kind|#k:v,...
func (c *Client) line(name, value, kind string, tags map[string]string) string {
	metric := c.metricName(name)
	if metric == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(metric)
	b.WriteByte(':')
	b.WriteString(value)
	b.WriteByte('|')
	b.WriteString(kind)
	b.WriteString(formatTags(c.globalTags, tags))
	return b.String()
}

func (c *Client) flushLocked() {
	if c.buf.Len() == 0 || c.conn == nil {
		c.buf.Reset()
		return
	}
	c.writeLocked(c.buf.Bytes())
	c.buf.Reset()
}

func (c *Client) writeLocked(p []byte) {
	if _, err := c.conn.Write(p); err != nil {
		c.logger.Debug("statsd write failed", "error", err, "bytes", len(p))
	}
}

func (c *Client) metricName(name string) string {
	normalized := normalizeMetricName(name)
	switch {
	case normalized == "":
		return ""
	case c.prefix == "":
		return normalized
	default:
		return c.prefix + "." + normalized
	}
}

func sanitizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), ".")
}

var metricNameReplacer = strings.NewReplacer(" ", "_", "/", "_", ":", "_", "|", "_", "@", "_", "#", "_")

// normalizeMetricName strips characters that would break the line protocol.
func normalizeMetricName(name string) string {
	n := metricNameReplacer.Replace(strings.TrimSpace(name))
	for strings.Contains(n, "..") {
		n = strings.ReplaceAll(n, "..", ".")
	}
	return strings.Trim(n, ".")
}

func formatTags(global, local map[string]string) string {
	merged := cloneTags(global)
	maps.Copy(merged, cloneTags(local))
	if len(merged) == 0 {
		return ""
	}

	pairs := make([]string, 0, len(merged))
	for _, k := range slices.Sorted(maps.Keys(merged)) {
		pairs = append(pairs, k+":"+merged[k])
	}
	return "|#" + strings.Join(pairs, ",")
}

func cloneTags(tags map[string]string) map[string]string {
	cp := make(map[string]string, len(tags))
	for k, v := range tags {
		if key := strings.TrimSpace(k); key != "" {
			cp[key] = strings.TrimSpace(v)
		}
	}
	return cp
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
