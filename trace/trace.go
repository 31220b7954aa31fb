// Package trace records request/response exchanges as they pass through a
// client or server, for later export in HAR form.
package trace

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Header is one header line as it appeared on the wire. Order is preserved;
// a folded continuation shows up as a second entry under the same name.
type Header struct {
	Name  string
	Value string
}

// Request is the recorded half of an exchange sent to the peer.
type Request struct {
	Method  string
	Path    string
	Version string
	Headers []Header
}

// Response is the recorded half of an exchange received from the peer.
type Response struct {
	Version  string
	Status   int
	Reason   string
	Headers  []Header
	BodySize int64
}

// Exchange is one request/response pair on one connection.
type Exchange struct {
	// ID identifies the exchange as a specific interaction at a particular
	// time; hosts and ports may be reused across exchanges.
	ID uuid.UUID

	Host     string
	Start    time.Time
	Duration time.Duration

	Request  Request
	Response Response
}

// NewExchange stamps a fresh exchange for the given peer.
func NewExchange(host string) Exchange {
	return Exchange{
		ID:    uuid.New(),
		Host:  host,
		Start: time.Now(),
	}
}

// Collector accumulates exchanges. Safe for concurrent use.
type Collector struct {
	mu        sync.Mutex
	exchanges []Exchange
}

func NewCollector() *Collector {
	return &Collector{}
}

// Record appends one finished exchange.
func (c *Collector) Record(ex Exchange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exchanges = append(c.exchanges, ex)
}

// Exchanges returns a copy of everything recorded so far.
func (c *Collector) Exchanges() []Exchange {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]Exchange, len(c.exchanges))
	copy(result, c.exchanges)
	return result
}
