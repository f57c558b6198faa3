// Package bus defines the publish/subscribe transport contract the core
// depends on (spec.md §1 non-goal: "the wire codec and pub/sub transport"
// are external collaborators). The production implementation lives in the
// redisbus subpackage; the in-memory Fake used by unit tests lives in this
// package.
package bus

import "context"

// Bus is the minimum transport surface the event loop needs: publish a
// payload on a channel, subscribe to receive payloads from one, and tear
// the connection down on shutdown. It does not interpret message
// contents — decoding is the wire package's job.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Fixed channel names this deputy speaks on (spec.md §6).
const (
	OrdersChannel = "procman.orders"
	InfoChannel   = "procman.info"
	PrintfChannel = "procman.printf"
)
