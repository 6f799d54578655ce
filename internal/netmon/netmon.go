package netmon

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	// PortScanThreshold is how many distinct ports one IP may touch before
	// it is flagged as scanning.
	PortScanThreshold = 10
	// FloodThreshold is how many connections one IP may open before it is
	// flagged as flooding.
	FloodThreshold = 50
)

// Kind classifies a network event.
type Kind int

const (
	KindConnection Kind = iota
	KindSuspicious
	KindBlocked
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindSuspicious:
		return "suspicious"
	case KindBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Conn is one observed connection attempt.
type Conn struct {
	IP   string
	Port int
	At   time.Time
}

// Event is a classified connection.
type Event struct {
	Kind    Kind      `json:"kind"`
	IP      string    `json:"ip"`
	Port    int       `json:"port,omitempty"`
	Reasons []string  `json:"reasons,omitempty"`
	At      time.Time `json:"at"`
}

// Source produces connections. Next blocks until one is available and
// returns io.EOF when the source is exhausted.
type Source interface {
	Next(ctx context.Context) (Conn, error)
}

// Stats counts events by kind.
type Stats struct {
	Connections int `json:"connections"`
	Suspicious  int `json:"suspicious"`
	Blocked     int `json:"blocked"`
}

// Total returns the number of classified connections.
func (s Stats) Total() int {
	return s.Connections + s.Suspicious + s.Blocked
}

type peer struct {
	conns int
	ports map[int]struct{}
}

// Monitor classifies connections against a blacklist and per-IP counters.
// It is safe for concurrent use.
type Monitor struct {
	mu        sync.Mutex
	blacklist map[string]struct{}
	peers     map[string]*peer
}

// NewMonitor returns a monitor for the given blacklist.
func NewMonitor(blacklist []string) *Monitor {
	m := &Monitor{
		blacklist: make(map[string]struct{}, len(blacklist)),
		peers:     make(map[string]*peer),
	}
	for _, ip := range blacklist {
		m.blacklist[ip] = struct{}{}
	}
	return m
}

// Classify records c and returns its event.
func (m *Monitor) Classify(c Conn) Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev := Event{Kind: KindConnection, IP: c.IP, Port: c.Port, At: c.At}

	if _, bad := m.blacklist[c.IP]; bad {
		ev.Kind = KindBlocked
		ev.Reasons = []string{"Blacklisted IP"}
		return ev
	}

	p, ok := m.peers[c.IP]
	if !ok {
		p = &peer{ports: make(map[int]struct{})}
		m.peers[c.IP] = p
	}
	p.conns++
	if c.Port > 0 {
		p.ports[c.Port] = struct{}{}
	}

	if len(p.ports) > PortScanThreshold {
		ev.Reasons = append(ev.Reasons, fmt.Sprintf("Possible port scan: %d ports", len(p.ports)))
	}
	if p.conns > FloodThreshold {
		ev.Reasons = append(ev.Reasons, fmt.Sprintf("Possible flood: %d connections", p.conns))
	}
	if len(ev.Reasons) > 0 {
		ev.Kind = KindSuspicious
	}
	return ev
}

// Run classifies connections from src until ctx is done or src is
// exhausted. onEvent is called for every event in order. Cancellation is
// not an error.
func (m *Monitor) Run(ctx context.Context, src Source, onEvent func(Event)) (Stats, error) {
	var stats Stats
	for {
		c, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return stats, nil
			}
			return stats, errors.Wrap(err, "network source failed")
		}
		if c.At.IsZero() {
			c.At = time.Now()
		}

		ev := m.Classify(c)
		switch ev.Kind {
		case KindBlocked:
			stats.Blocked++
			log.Debug().Str("ip", ev.IP).Int("port", ev.Port).Msg("blocked connection")
		case KindSuspicious:
			stats.Suspicious++
			log.Debug().Str("ip", ev.IP).Strs("reasons", ev.Reasons).Msg("suspicious connection")
		default:
			stats.Connections++
		}
		if onEvent != nil {
			onEvent(ev)
		}
	}
}
