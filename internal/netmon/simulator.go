package netmon

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

var commonPorts = []int{22, 53, 80, 443, 3306, 5432, 8080}

// Simulator is a Source producing pseudo-random traffic. A few hosts are
// noisy enough to trip the scan and flood heuristics, and some traffic
// comes from the blacklist.
type Simulator struct {
	rng       *rand.Rand
	blacklist []string
	noisy     []string
	interval  time.Duration
}

// NewSimulator returns a simulator seeded with seed that emits one
// connection per interval. A zero interval emits as fast as it is read.
func NewSimulator(seed uint64, blacklist []string, interval time.Duration) *Simulator {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	s := &Simulator{
		rng:       rng,
		blacklist: append([]string(nil), blacklist...),
		interval:  interval,
	}
	for i := 0; i < 2; i++ {
		s.noisy = append(s.noisy, s.randomIP())
	}
	return s
}

func (s *Simulator) randomIP() string {
	return fmt.Sprintf("%d.%d.%d.%d",
		s.rng.IntN(223)+1, s.rng.IntN(256), s.rng.IntN(256), s.rng.IntN(254)+1)
}

// Next waits one interval and returns a connection.
func (s *Simulator) Next(ctx context.Context) (Conn, error) {
	if s.interval > 0 {
		timer := time.NewTimer(s.interval)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Conn{}, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return Conn{}, err
	}

	roll := s.rng.Float64()
	switch {
	case roll < 0.1 && len(s.blacklist) > 0:
		ip := s.blacklist[s.rng.IntN(len(s.blacklist))]
		return Conn{IP: ip, Port: commonPorts[s.rng.IntN(len(commonPorts))], At: time.Now()}, nil
	case roll < 0.4:
		ip := s.noisy[s.rng.IntN(len(s.noisy))]
		return Conn{IP: ip, Port: s.rng.IntN(65535) + 1, At: time.Now()}, nil
	default:
		return Conn{IP: s.randomIP(), Port: commonPorts[s.rng.IntN(len(commonPorts))], At: time.Now()}, nil
	}
}
