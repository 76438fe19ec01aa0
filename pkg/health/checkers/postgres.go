package checkers

import (
	"context"
	"fmt"
)

// Pinger is anything with a context-aware Ping, such as a pgx pool or the
// session store wrapping one.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PostgresChecker probes database connectivity through a Pinger.
type PostgresChecker struct {
	pinger Pinger
	name   string
}

// NewPostgresChecker creates a database health checker. An empty name
// defaults to "postgres".
func NewPostgresChecker(pinger Pinger, name string) *PostgresChecker {
	if name == "" {
		name = "postgres"
	}
	return &PostgresChecker{pinger: pinger, name: name}
}

func (p *PostgresChecker) Name() string { return p.name }

func (p *PostgresChecker) Check(ctx context.Context) error {
	if err := p.pinger.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
