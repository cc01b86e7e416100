// Package state persists device state as flat records, so that saving and
// restoring an emulation reproduces bit-identical subsequent behavior, even
// for commands that are mid-flight.
package state

// A Snapshotter can dump its complete state into a flat record and later
// restore itself from one. The record must cover every register, the active
// state-machine tag, transfer buffers, and all pending timer origins.
type Snapshotter interface {
	Snapshot() (map[string]any, error)
	Restore(record map[string]any) error
}
