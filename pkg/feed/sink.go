package feed

// Handle identifies one mounted unit. The engine never looks inside it
// beyond the ID; it only hands it back to Unmount.
type Handle interface {
	ID() string
}

// Sink is where served descriptors become visible units. The bubbletea UI is
// the real implementation; feedtest.RecordingSink covers tests.
//
// Mount must return promptly and must not invoke done before returning.
// Exactly one done(nil) or done(err) call follows asynchronously once the
// unit has finished loading or failed. The engine removes failed units and
// reports them in stats; a unit failure never affects controller state.
//
// Unmount releases a mounted unit. It is idempotent: unmounting an already
// unmounted or unknown handle is a no-op.
type Sink interface {
	Mount(d Descriptor, done func(error)) Handle
	Unmount(h Handle)
}
