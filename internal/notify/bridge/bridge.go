// Package bridge mirrors fan-out summaries to external chat channels.
// Senders are best-effort: the caller logs failures and moves on, so a
// broken token never affects an import.
package bridge

import "context"

// Sender posts one plain-text message to an external channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, text string) error
}
