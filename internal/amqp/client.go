// Package amqp forwards table change notifications between processes that
// share one record store, so each process invalidates its own caches.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures = 5
	openTimeout = 30 * time.Second
	maxBackoff  = 30 * time.Second
)

var errDeliveriesClosed = errors.New("message channel closed")

// Listener is the part of the change hub the forwarder reads from.
type Listener interface {
	Listen(fn func(tables []string)) (cancel func())
}

// Deliverer is the part of the change hub remote changes are handed to.
type Deliverer interface {
	Deliver(tables ...string)
}

type Client struct {
	url          string
	exchangeName string
	origin       string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	failureCount int64
	state        int32
	lastFailure  time.Time
}

// NewClient connects to the broker and declares the fanout exchange every
// process publishes its changes to.
func NewClient(url, exchangeName string) (*Client, error) {
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		origin:       uuid.NewString(),
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// Origin identifies this process in published messages.
func (c *Client) Origin() string { return c.origin }

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *Client) connectLocked() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		c.exchangeName, // name
		"fanout",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}

	c.conn, c.channel = conn, channel
	return nil
}

func (c *Client) ensureChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil && !c.channel.IsClosed() {
		return c.channel, nil
	}
	if c.conn != nil {
		c.conn.Close()
	}
	if err := c.connectLocked(); err != nil {
		return nil, err
	}
	slog.Info("Reconnected to AMQP broker", "component", "amqp", "exchange", c.exchangeName)
	return c.channel, nil
}

// PublishTableChange announces locally changed tables to the other processes.
func (c *Client) PublishTableChange(ctx context.Context, tables []string) error {
	if c.isCircuitOpen() {
		return errors.New("circuit breaker is open, refusing to publish")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := NewTableChangeMessage(c.origin, tables).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	channel, err := c.ensureChannel()
	if err != nil {
		c.recordFailure()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		"",             // routing key, ignored by fanout
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			AppId:       c.origin,
			Body:        body,
		},
	)
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	slog.DebugContext(ctx, "Published table change",
		"component", "amqp",
		"tables", tables,
		"exchange", c.exchangeName)
	return nil
}

// Forward publishes every local change set of hub until cancel is called.
// The hub listener only queues tables; a goroutine publishes them, merging
// changes that arrive while a publish is in flight.
func (c *Client) Forward(ctx context.Context, hub Listener) (cancel func()) {
	return forward(ctx, hub, c.PublishTableChange)
}

func forward(ctx context.Context, hub Listener, publish func(context.Context, []string) error) (cancel func()) {
	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		wake    = make(chan struct{}, 1)
		done    = make(chan struct{})
		wg      sync.WaitGroup
	)

	take := func() []string {
		mu.Lock()
		defer mu.Unlock()
		tables := make([]string, 0, len(pending))
		for t := range pending {
			tables = append(tables, t)
		}
		clear(pending)
		sort.Strings(tables)
		return tables
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-wake:
			}
			tables := take()
			if len(tables) == 0 {
				continue
			}
			if err := publish(ctx, tables); err != nil {
				slog.WarnContext(ctx, "Failed to forward table change",
					"component", "amqp", "tables", tables, "error", err)
			}
		}
	}()

	stop := hub.Listen(func(tables []string) {
		mu.Lock()
		for _, t := range tables {
			pending[t] = struct{}{}
		}
		mu.Unlock()
		select {
		case wake <- struct{}{}:
		default:
		}
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			close(done)
			wg.Wait()
		})
	}
}

// ConsumeTableChanges binds an exclusive queue to the exchange and calls
// handler for every message from another process. Messages published by this
// client are acknowledged and skipped.
func (c *Client) ConsumeTableChanges(ctx context.Context, handler func(*TableChangeMessage) error) error {
	channel, err := c.ensureChannel()
	if err != nil {
		return err
	}

	q, err := channel.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := channel.QueueBind(q.Name, "", c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	msgs, err := channel.Consume(
		q.Name, // queue
		"",     // consumer
		false,  // auto-ack (we want manual ack)
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming table changes", "component", "amqp", "queue", q.Name)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "component", "amqp", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errDeliveriesClosed
			}

			msg, err := TableChangeMessageFromJSON(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to unmarshal message", "component", "amqp", "error", err)
				delivery.Nack(false, false)
				continue
			}
			if msg.Origin == c.origin {
				delivery.Ack(false)
				continue
			}

			if err := handler(msg); err != nil {
				slog.ErrorContext(ctx, "Failed to handle table change",
					"component", "amqp", "error", err, "origin", msg.Origin)
				delivery.Nack(false, false)
				continue
			}
			delivery.Ack(false)
		}
	}
}

// DeliverTo consumes remote table changes into hub until ctx is done,
// reconnecting with exponential backoff when the broker goes away.
func (c *Client) DeliverTo(ctx context.Context, hub Deliverer) error {
	handler := func(msg *TableChangeMessage) error {
		slog.DebugContext(ctx, "Remote table change", "component", "amqp", "origin", msg.Origin, "tables", msg.Tables)
		hub.Deliver(msg.Tables...)
		return nil
	}

	for attempt := 0; ; attempt++ {
		err := c.ConsumeTableChanges(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(err, errDeliveriesClosed) && !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		slog.WarnContext(ctx, "AMQP consumer disconnected, retrying",
			"component", "amqp", "error", err, "attempt", attempt+1, "backoff", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) isCircuitOpen() bool {
	switch atomic.LoadInt32(&c.state) {
	case StateOpen:
		c.mu.Lock()
		last := c.lastFailure
		c.mu.Unlock()
		if time.Since(last) > openTimeout {
			atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
			return false
		}
		return true
	default:
		return false
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()

	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func exponentialBackoff(attempt int) time.Duration {
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "dial"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
