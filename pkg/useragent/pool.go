package useragent

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync/atomic"
)

// Strategy selects how a Pool hands out User-Agents.
type Strategy string

const (
	Sequential Strategy = "sequential"
	Random     Strategy = "random"
)

// DefaultPool is a set of current desktop browser User-Agents. Retail sites
// serve full listing markup to these, and trimmed or blocked pages to
// obvious HTTP libraries.
var DefaultPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0",
}

// Pool hands out User-Agents according to its Strategy. Safe for concurrent use.
type Pool struct {
	uas      []string
	strategy Strategy
	counter  atomic.Uint64
}

// NewPool creates a sequential pool. An empty slice falls back to DefaultPool.
func NewPool(uas []string) *Pool {
	p, _ := NewPoolWithStrategy(uas, Sequential)
	return p
}

// NewPoolWithStrategy creates a pool using the given strategy. An empty
// strategy means Sequential.
func NewPoolWithStrategy(uas []string, strategy Strategy) (*Pool, error) {
	switch strategy {
	case "":
		strategy = Sequential
	case Sequential, Random:
	default:
		return nil, fmt.Errorf("useragent: unknown strategy %q", strategy)
	}
	if len(uas) == 0 {
		uas = DefaultPool
	}
	copied := make([]string, len(uas))
	copy(copied, uas)
	return &Pool{uas: copied, strategy: strategy}, nil
}

// Pick returns the next User-Agent according to the pool's strategy.
func (p *Pool) Pick() string {
	if p.strategy == Random {
		return p.GetRandom()
	}
	return p.GetSequential()
}

// GetSequential returns the next User-Agent in round-robin order.
func (p *Pool) GetSequential() string {
	if len(p.uas) == 0 {
		return ""
	}
	idx := p.counter.Add(1) - 1
	return p.uas[idx%uint64(len(p.uas))]
}

// GetRandom returns a User-Agent chosen with crypto/rand, falling back to
// round-robin if the random source fails.
func (p *Pool) GetRandom() string {
	if len(p.uas) == 0 {
		return ""
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(p.uas))))
	if err != nil {
		return p.GetSequential()
	}
	return p.uas[n.Int64()]
}

// Len returns the number of User-Agents in the pool.
func (p *Pool) Len() int { return len(p.uas) }
