// Package netmon tracks backend reachability for the terminal.
//
// The monitor keeps a cached boolean flag and notifies subscribers on every
// transition, but the cached flag is advisory only: connectivity events can
// be missed while the process is suspended, so anything about to act on
// connectivity must call CheckNow and use the live answer. The reconciler
// does exactly that before committing or draining.
package netmon

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Prober answers whether the backend is reachable right now. A nil error
// means reachable. client.Client satisfies this.
type Prober interface {
	Probe(ctx context.Context) error
}

// Monitor watches connectivity and fans out transitions.
//
// It is driven by two inputs: a periodic probe and external hints delivered
// via Hint (for integrations that surface OS-level link events). A hint never
// flips the flag by itself; it only schedules an immediate live probe.
type Monitor struct {
	prober   Prober
	interval time.Duration

	mu     sync.Mutex
	online bool
	known  bool // false until the first probe completes
	subs   []chan bool

	hints chan struct{}
}

// New constructs a Monitor probing at the given interval.
func New(p Prober, interval time.Duration) *Monitor {
	return &Monitor{
		prober:   p,
		interval: interval,
		hints:    make(chan struct{}, 1),
	}
}

// IsOnline returns the cached connectivity flag. Callers that are about to
// mutate state should prefer CheckNow.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// CheckNow performs a live probe, updates the cached flag, and delivers
// transition notifications. It returns the live result.
func (m *Monitor) CheckNow(ctx context.Context) bool {
	online := m.prober.Probe(ctx) == nil
	m.update(online)
	return online
}

// Subscribe returns a channel receiving the new connectivity state on every
// transition. Delivery is non-blocking: a subscriber that has not consumed
// the previous notification only sees the most recent state, which is all a
// drain trigger needs.
func (m *Monitor) Subscribe() <-chan bool {
	ch := make(chan bool, 1)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

// Hint signals that connectivity may have changed (for example an OS link
// event). The monitor responds by probing immediately rather than trusting
// the event, so a stale or duplicated hint is harmless.
func (m *Monitor) Hint() {
	select {
	case m.hints <- struct{}{}:
	default:
	}
}

// Run probes until ctx is cancelled: once immediately, then on every tick
// and on every hint.
func (m *Monitor) Run(ctx context.Context) {
	m.CheckNow(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		case <-m.hints:
			m.CheckNow(ctx)
		}
	}
}

// update stores the new state and notifies subscribers when it changed.
func (m *Monitor) update(online bool) {
	m.mu.Lock()
	changed := !m.known || m.online != online
	m.online = online
	m.known = true
	subs := m.subs
	m.mu.Unlock()

	if !changed {
		return
	}

	log.Info().Bool("online", online).Msg("connectivity changed")
	for _, ch := range subs {
		select {
		case ch <- online:
		default:
			// Subscriber still holds an undelivered notification; drop the
			// old one so it observes the latest state.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- online:
			default:
			}
		}
	}
}
