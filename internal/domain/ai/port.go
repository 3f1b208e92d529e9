package ai

import "context"

// Client sends one system+user prompt pair and returns the raw model reply.
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
}
