// Package plugin assembles the request-path plugin chain described in
// spec.md §2: Limitless -> Failover -> Custom-EP -> Next -> wrapped
// driver. The chain only needs forward traversal (spec.md §9's note
// on cyclic references): each plugin is constructed already holding a
// reference to the next link, so Connect simply recurses forward.
package plugin

import (
	"context"
	"time"

	"github.com/auroralink/wrapper-core/auroraerrors"
	"github.com/auroralink/wrapper-core/driverconn"
	"github.com/auroralink/wrapper-core/hostinfo"
	"github.com/auroralink/wrapper-core/resilience"
)

// Connector is the shared seam every plugin (and the terminal driver
// adapter) implements: establish a connection to host.
type Connector interface {
	Connect(ctx context.Context, host hostinfo.HostInfo) (driverconn.Conn, error)
}

// TerminalConnector is the last link in the chain: the actual dial
// against the underlying driver. RetryPolicy, if set, bounds transient
// dial failures (a dropped SYN, a DNS hiccup) in exponential backoff
// before the error is handed back up the chain for failover/limitless
// to treat as a dead candidate; a nil RetryPolicy dials exactly once.
type TerminalConnector struct {
	Dialer      driverconn.Dialer
	DSN         func(host string, port int) string
	RetryPolicy *resilience.RetryPolicy
}

func (t TerminalConnector) Connect(ctx context.Context, host hostinfo.HostInfo) (driverconn.Conn, error) {
	dial := func() (driverconn.Conn, error) {
		return t.Dialer.Dial(ctx, t.DSN(host.Host, host.Port))
	}
	if t.RetryPolicy == nil {
		return dial()
	}
	policy := *t.RetryPolicy
	if policy.ErrorChecker == nil {
		policy.ErrorChecker = resilience.RetryableFunc(auroraerrors.IsRetryable)
	}
	if policy.OperationName == "" {
		policy.OperationName = "terminal_dial"
	}
	return resilience.WithRetryFunc(ctx, &policy, dial)
}

// FilterSource reports the Custom Endpoint plugin's "has_info": the
// active hostinfo.Filter for this connection's custom endpoint, and
// whether that filter has been resolved yet (it arrives asynchronously
// from a describe-custom-endpoint call the caller's driver layer
// makes out of band).
type FilterSource func() (hostinfo.Filter, bool)

// DefaultWaitForInfoSleep is WAIT_FOR_INFO_SLEEP_MS's default.
const DefaultWaitForInfoSleep = 50 * time.Millisecond

// CustomEndpointPlugin is the Custom-EP stage: it blocks a connect
// attempt until the endpoint's host filter is known, then rejects any
// host that filter excludes.
type CustomEndpointPlugin struct {
	Next             Connector
	Filter           FilterSource
	WaitForInfoSleep time.Duration
	Timeout          time.Duration
}

func (p *CustomEndpointPlugin) Connect(ctx context.Context, host hostinfo.HostInfo) (driverconn.Conn, error) {
	sleep := p.WaitForInfoSleep
	if sleep <= 0 {
		sleep = DefaultWaitForInfoSleep
	}

	if p.Filter != nil {
		deadline := time.Now().Add(p.Timeout)
		for {
			if filter, ok := p.Filter(); ok {
				if !filter.Allows(host) {
					return nil, auroraerrors.ErrNoCandidate
				}
				break
			}
			if p.Timeout > 0 && time.Now().After(deadline) {
				break
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(sleep):
			}
		}
	}

	return p.Next.Connect(ctx, host)
}

// Chain is the fully assembled plugin pipeline's single entry point,
// corresponding to the DBC's Connect in the original driver.
type Chain struct {
	Head Connector
}

func (c Chain) Connect(ctx context.Context, host hostinfo.HostInfo) (driverconn.Conn, error) {
	return c.Head.Connect(ctx, host)
}
