// Package bridge connects relay instances so a frame published on one reaches
// the subscribers of its thread on all of them.
package bridge

// Bridge fans thread frames out to other relay instances.
type Bridge interface {
	Publish(threadID int64, frame []byte) error
	Start() error
	Stop() error
	// Available reports whether frames are currently being relayed.
	Available() bool
}

// BroadcastTarget receives frames published by other instances.
// The hub implements it; delivery must not re-publish.
type BroadcastTarget interface {
	BroadcastToLocal(threadID int64, frame []byte)
}
