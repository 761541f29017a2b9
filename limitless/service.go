package limitless

import (
	"context"
	"fmt"
	"time"

	"github.com/auroralink/wrapper-core/driverconn"
	"github.com/auroralink/wrapper-core/hostinfo"
	"github.com/auroralink/wrapper-core/selector"
)

// Connector is the next link in the plugin chain: RouterService never
// opens the caller's connection itself, it rewrites the server
// attribute to the chosen router and hands off to Next.Connect.
type Connector interface {
	Connect(ctx context.Context, host hostinfo.HostInfo) (driverconn.Conn, error)
}

// RouterService implements establish_connection (spec.md §4.7): it
// tries the monitor's shared router list first, falls back to a
// direct query if the list is empty, and finally retries by
// highest-weight if round robin can't place the connection.
type RouterService struct {
	Monitor  *RouterMonitor
	Next     Connector
	RR       *selector.RoundRobin
	HW       selector.Strategy
	Config   Config
}

// NewRouterService builds a RouterService sharing monitor's list and
// config.
func NewRouterService(monitor *RouterMonitor, next Connector) *RouterService {
	return &RouterService{
		Monitor: monitor,
		Next:    next,
		RR:      selector.NewRoundRobin(),
		HW:      selector.HighestWeight{},
		Config:  monitor.cfg,
	}
}

// EstablishConnection runs the full six-step algorithm.
func (s *RouterService) EstablishConnection(ctx context.Context) (driverconn.Conn, hostinfo.HostInfo, error) {
	list := s.Monitor.Snapshot()

	if len(list) == 0 {
		var err error
		list, err = s.fetchDirectly(ctx)
		if err != nil {
			return nil, hostinfo.HostInfo{}, err
		}
	}
	// Corrected from the source driver's establish_connection, which
	// logged its "router list empty" warning unconditionally on every
	// call regardless of whether the direct-query fallback above had
	// already repopulated it. The warning now fires only when the list
	// is still empty after the fallback, i.e. the actual failure case.
	if len(list) == 0 {
		s.Config.Logger.Warn("limitless router list empty after direct-query fallback", "service", s.Config.ServiceKey)
		return nil, hostinfo.HostInfo{}, fmt.Errorf("limitless: %w", errNoRouters)
	}

	if host, err := s.RR.Select(s.Config.ServiceKey, list); err == nil {
		if conn, cerr := s.Next.Connect(ctx, host); cerr == nil {
			return conn, host, nil
		}
	}

	return s.highestWeightRetry(ctx, list)
}

// fetchDirectly opens a side connection and queries the router
// endpoint list, retrying up to MaxRouterRetries with Interval sleep
// between attempts.
func (s *RouterService) fetchDirectly(ctx context.Context) (hostinfo.Topology, error) {
	for attempt := 0; attempt <= s.Config.MaxRouterRetries; attempt++ {
		conn, err := s.Monitor.dialSideConnection()
		if err == nil {
			topo, qerr := s.Monitor.queryRouters(conn)
			closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			conn.Close(closeCtx)
			cancel()
			if qerr == nil && len(topo) > 0 {
				s.Monitor.replaceList(topo)
				return topo, nil
			}
		}
		if attempt < s.Config.MaxRouterRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.Config.Interval):
			}
		}
	}
	return nil, nil
}

// highestWeightRetry retries up to MaxConnectRetries times, each
// attempt picking the least-loaded remaining candidate and marking it
// DOWN in a local copy on failure.
func (s *RouterService) highestWeightRetry(ctx context.Context, list hostinfo.Topology) (driverconn.Conn, hostinfo.HostInfo, error) {
	working := list.Clone()
	var lastErr error
	for attempt := 0; attempt < s.Config.MaxConnectRetries && len(working) > 0; attempt++ {
		host, err := s.HW.Select(working)
		if err != nil {
			break
		}
		conn, err := s.Next.Connect(ctx, host)
		if err == nil {
			return conn, host, nil
		}
		lastErr = err
		working = removeHostByID(working, host.HostID)
	}
	return nil, hostinfo.HostInfo{}, fmt.Errorf("limitless: unable to establish connection: %w", joinNoRouters(lastErr))
}

func removeHostByID(candidates []hostinfo.HostInfo, hostID string) []hostinfo.HostInfo {
	out := make([]hostinfo.HostInfo, 0, len(candidates))
	for _, h := range candidates {
		if h.HostID == hostID {
			continue
		}
		out = append(out, h)
	}
	return out
}

func joinNoRouters(err error) error {
	if err == nil {
		return errNoRouters
	}
	return err
}
