package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/uts-core/internal/component"
	"github.com/nerrad567/uts-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/uts-core/internal/location"
	"github.com/nerrad567/uts-core/internal/manager"
)

// DefaultTimeout bounds one remote lifecycle operation.
const DefaultTimeout = 30 * time.Second

// DefaultQueueSize is how many received commands may wait to be applied.
const DefaultQueueSize = 64

// Manager is the part of *manager.Manager the dispatcher drives.
type Manager interface {
	Add(loc location.Location, opts component.Options) error
	Init(ctx context.Context, loc location.Location, opts component.Options) error
	ShutdownComponent(ctx context.Context, loc location.Location) error
	Remove(loc location.Location) bool
}

// Transport is the part of *mqtt.Client the dispatcher uses.
type Transport interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger defines the logging interface used by the Dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Dispatcher applies lifecycle commands received on the command topics to
// the manager and publishes an acknowledgement for each.
//
// Commands are applied one at a time, in arrival order, on the dispatcher's
// own goroutine; the MQTT handler only queues them.
type Dispatcher struct {
	mgr       Manager
	transport Transport
	qos       byte
	timeout   time.Duration
	logger    Logger

	mu      sync.Mutex // guards running and sends on queue
	running bool
	queue   chan command
	done    chan struct{}
}

// command is a received message waiting to be applied.
type command struct {
	loc     location.Location
	payload []byte
}

// New creates a dispatcher. qos is used for the subscription and the acks.
func New(mgr Manager, transport Transport, qos byte) *Dispatcher {
	return &Dispatcher{
		mgr:       mgr,
		transport: transport,
		qos:       qos,
		timeout:   DefaultTimeout,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	d.logger = logger
}

// SetTimeout changes the per-command timeout.
func (d *Dispatcher) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		d.timeout = timeout
	}
}

// Start subscribes to every component command topic and starts applying
// commands. It is a no-op while the dispatcher is running.
func (d *Dispatcher) Start() error {
	if d.transport == nil {
		return ErrNoTransport
	}
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	queue, done := make(chan command, DefaultQueueSize), make(chan struct{})
	d.queue, d.done, d.running = queue, done, true
	d.mu.Unlock()
	go d.loop(queue, done)

	topic := mqtt.Topics{}.AllComponentCommands()
	if err := d.transport.Subscribe(topic, d.qos, d.handleMessage); err != nil {
		d.mu.Lock()
		if d.running {
			d.running = false
			close(queue)
		}
		d.mu.Unlock()
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}

	d.logger.Info("remote commands enabled", "topic", topic)
	return nil
}

// Stop unsubscribes from the command topics and waits for queued commands
// to be applied, or for ctx to end.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	close(d.queue)
	done := d.done
	d.mu.Unlock()

	var errs []error
	topic := mqtt.Topics{}.AllComponentCommands()
	if err := d.transport.Unsubscribe(topic); err != nil {
		errs = append(errs, fmt.Errorf("unsubscribing from %s: %w", topic, err))
	}
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for queued commands: %w", ctx.Err()))
	}
	d.logger.Info("remote commands disabled")
	return errors.Join(errs...)
}

func (d *Dispatcher) loop(queue <-chan command, done chan<- struct{}) {
	defer close(done)
	for cmd := range queue {
		if err := d.process(cmd.loc, cmd.payload); err != nil {
			d.logger.Warn("remote command not acknowledged", "location", cmd.loc.String(), "error", err)
		}
	}
}

// handleMessage is the MQTT handler for command topics. It runs on the MQTT
// client's delivery goroutine, so it only validates the topic and queues.
func (d *Dispatcher) handleMessage(topic string, payload []byte) error {
	channel, loc, err := mqtt.ParseComponentTopic(topic)
	if err != nil {
		return err
	}
	if channel != mqtt.ChannelCommand {
		return fmt.Errorf("%w: %s is not a command topic", ErrInvalidCommand, topic)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return ErrStopped
	}
	select {
	case d.queue <- command{loc: loc, payload: bytes.Clone(payload)}:
		return nil
	default:
		return fmt.Errorf("%w: dropping command for %s", ErrQueueFull, loc)
	}
}

// process decodes and applies one command, then publishes its ack.
func (d *Dispatcher) process(loc location.Location, payload []byte) error {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		ack := d.ack(loc, cmd, fmt.Errorf("%w: %w", ErrInvalidCommand, err))
		return d.publishAck(ack)
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	ack := d.Execute(ctx, loc, cmd)
	return d.publishAck(ack)
}

// Execute applies cmd to loc and returns the acknowledgement.
func (d *Dispatcher) Execute(ctx context.Context, loc location.Location, cmd CommandMessage) AckMessage {
	var err error
	switch cmd.Action {
	case ActionAdd:
		err = d.mgr.Add(loc, cmd.Options)
	case ActionInit:
		err = d.mgr.Init(ctx, loc, cmd.Options)
	case ActionShutdown:
		err = d.mgr.ShutdownComponent(ctx, loc)
	case ActionRemove:
		if !d.mgr.Remove(loc) {
			err = fmt.Errorf("%w: %s", manager.ErrNotRegistered, loc)
		}
	default:
		err = fmt.Errorf("%w: unknown action %q", ErrInvalidCommand, cmd.Action)
	}

	if err != nil {
		d.logger.Warn("remote command failed", "location", loc.String(), "action", string(cmd.Action), "error", err)
	} else {
		d.logger.Info("remote command applied", "location", loc.String(), "action", string(cmd.Action))
	}
	return d.ack(loc, cmd, err)
}

func (d *Dispatcher) ack(loc location.Location, cmd CommandMessage, err error) AckMessage {
	ack := AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		Location:  loc,
		Action:    cmd.Action,
		Status:    AckAccepted,
	}
	if err != nil {
		ack.Status = AckFailed
		ack.Error = &AckError{Code: errorCode(err), Message: err.Error()}
	}
	return ack
}

func (d *Dispatcher) publishAck(ack AckMessage) error {
	payload, err := json.Marshal(ack)
	if err != nil {
		return fmt.Errorf("marshalling ack: %w", err)
	}
	topic := mqtt.Topics{}.ComponentAck(ack.Location)
	if err := d.transport.Publish(topic, payload, d.qos, false); err != nil {
		return fmt.Errorf("publishing ack to %s: %w", topic, err)
	}
	return nil
}
