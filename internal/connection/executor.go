package connection

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/peternagy/mongobrowse/internal/core"
	"github.com/peternagy/mongobrowse/internal/debug"
	"github.com/peternagy/mongobrowse/internal/tunnel"
	"github.com/peternagy/mongobrowse/internal/types"
)

// State is a step in the life of one Execute call.
type State int

const (
	Idle State = iota
	Connecting
	TunnelEstablishing
	TunnelReady
	DriverConnecting
	DriverReady
	Running
	Closing
	Failed
)

var stateNames = [...]string{
	Idle:               "idle",
	Connecting:         "connecting",
	TunnelEstablishing: "tunnelEstablishing",
	TunnelReady:        "tunnelReady",
	DriverConnecting:   "driverConnecting",
	DriverReady:        "driverReady",
	Running:            "running",
	Closing:            "closing",
	Failed:             "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Transition is reported to Executor.OnTransition.
type Transition struct {
	Call   uint64
	Target string
	From   State
	To     State
}

// Executor opens a fresh connection per call and always tears it down.
// It holds no connection state and is safe for concurrent use.
type Executor struct {
	dialer    Dialer
	forwarder tunnel.Forwarder

	// OnTransition, if set, is called on every state change. Calls from
	// concurrent Execute invocations may interleave.
	OnTransition func(Transition)

	calls atomic.Uint64
}

// NewExecutor creates an executor. forwarder may be nil when no target uses a tunnel.
func NewExecutor(dialer Dialer, forwarder tunnel.Forwarder) *Executor {
	return &Executor{dialer: dialer, forwarder: forwarder}
}

// NewDefaultExecutor wires the official driver and the SSH forwarder.
func NewDefaultExecutor() *Executor {
	return NewExecutor(NewMongoDialer(), tunnel.NewSSHForwarder())
}

// Work is a unit of work run against a live client.
type Work[T any] func(ctx context.Context, client Client) (T, error)

// Execute validates target, opens a tunnel if one is configured, connects the
// driver and runs work. Resources are released in reverse order of
// acquisition on every exit path.
//
// Validation and query errors reach the caller unchanged; every other
// failure, from the tunnel, the driver or work, is a *core.ConnectionError.
func Execute[T any](ctx context.Context, e *Executor, target types.ServerTarget, work Work[T]) (result T, err error) {
	c := &call{id: e.calls.Add(1), target: target.Label, notify: e.OnTransition}
	c.to(Connecting)

	defer func() {
		c.to(Closing)
		c.releaseAll()
		if r := recover(); r != nil {
			c.to(Failed)
			panic(r)
		}
		if err != nil {
			c.to(Failed)
		} else {
			c.to(Idle)
		}
	}()

	if err := target.Validate(); err != nil {
		return result, err
	}

	hosts, direct := target.Addresses, false
	if target.Tunneled() {
		if e.forwarder == nil {
			return result, &core.ConfigurationError{Field: "sshTunnel", Reason: "no tunnel forwarder configured"}
		}
		c.to(TunnelEstablishing)
		tun, err := e.forwarder.Open(ctx, *target.Tunnel, target.Addresses[0])
		if err != nil {
			return result, &core.ConnectionError{Message: "failed to open SSH tunnel to " + target.Tunnel.Addr(), Err: err}
		}
		c.acquired("tunnel", tun.Close)
		c.to(TunnelReady)
		hosts, direct = []types.Address{tun.LocalAddr()}, true
	}

	c.to(DriverConnecting)
	client, err := e.dialer.Dial(ctx, DialRequest{Target: target, Hosts: hosts, Direct: direct})
	if err != nil {
		if core.IsCallerError(err) {
			return result, err
		}
		return result, &core.ConnectionError{Message: "failed to connect to " + describe(target), Err: err}
	}
	c.acquired("client", func() error { return client.Disconnect(context.Background()) })
	c.to(DriverReady)

	c.to(Running)
	result, err = work(ctx, client)
	if err != nil {
		return result, wrapWorkError(err)
	}
	return result, nil
}

// Run is Execute for work without a result.
func Run(ctx context.Context, e *Executor, target types.ServerTarget, work func(ctx context.Context, client Client) error) error {
	_, err := Execute(ctx, e, target, func(ctx context.Context, client Client) (struct{}, error) {
		return struct{}{}, work(ctx, client)
	})
	return err
}

func wrapWorkError(err error) error {
	var connErr *core.ConnectionError
	if core.IsCallerError(err) || errors.As(err, &connErr) {
		return err
	}
	return &core.ConnectionError{Message: "operation failed", Err: err}
}

func describe(t types.ServerTarget) string {
	if t.Label != "" {
		return t.Label
	}
	if len(t.Addresses) > 0 {
		return t.Addresses[0].String()
	}
	return "server"
}

type resource struct {
	name    string
	release func() error
}

// call tracks the state and acquired resources of one Execute invocation.
type call struct {
	id        uint64
	target    string
	state     State
	notify    func(Transition)
	resources []resource
}

func (c *call) to(next State) {
	prev := c.state
	c.state = next
	debug.LogConnection("State transition", map[string]interface{}{
		"call":   c.id,
		"target": c.target,
		"from":   prev.String(),
		"to":     next.String(),
	})
	if c.notify != nil {
		c.notify(Transition{Call: c.id, Target: c.target, From: prev, To: next})
	}
}

func (c *call) acquired(name string, release func() error) {
	c.resources = append(c.resources, resource{name: name, release: release})
}

// releaseAll releases in LIFO order. Release errors are logged, never returned.
func (c *call) releaseAll() {
	for i := len(c.resources) - 1; i >= 0; i-- {
		r := c.resources[i]
		if err := r.release(); err != nil {
			debug.LogConnection("Release failed", map[string]interface{}{
				"call":     c.id,
				"resource": r.name,
				"error":    err.Error(),
			})
		}
	}
	c.resources = nil
}
