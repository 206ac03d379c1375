package sms

import (
	"context"
	"log"
	"sync"
)

// LogGateway replaces real delivery in dev mode. It never logs the body, which carries the code.
type LogGateway struct {
	mu   sync.Mutex
	sent int
}

// NewLogGateway returns a gateway that only logs deliveries
func NewLogGateway() *LogGateway {
	return &LogGateway{}
}

// Send implements Gateway
func (g *LogGateway) Send(ctx context.Context, to, body string) error {
	g.mu.Lock()
	g.sent++
	g.mu.Unlock()
	log.Printf("[DEV SMS] message for %s suppressed (%d chars)", MaskPhone(to), len(body))
	return nil
}

// Sent returns how many messages were accepted
func (g *LogGateway) Sent() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sent
}
