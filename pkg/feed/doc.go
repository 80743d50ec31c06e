// Package feed implements the stream-supply engine behind reel's infinite
// image feed: a prefetch buffer between a paged supply source and the
// rendered stream, a demand-driven controller with retry/backoff, and a
// bounded render window that evicts far-offscreen units.
//
// The engine is presentation-agnostic. It talks to the outside world through
// two small contracts: Source (where descriptors come from) and Sink (where
// mounted units go). The bubbletea UI in pkg/ui implements Sink and drives
// the controller from its update loop; headless callers (robot mode, tests)
// plug in their own.
//
// Data flow:
//
//	Source.Fetch -> Buffer (dedup against everything ever served)
//	             -> Controller.Demand -> Sink.Mount -> Window entry
//	             -> Window eviction   -> Sink.Unmount
//
// Demand processing is synchronous and cheap: it only moves descriptors that
// are already buffered. Network fetches happen in background refills, at most
// one in flight at a time. Transient fetch errors are retried on an
// escalating schedule; rate limiting and exhausted retries halt the
// controller for the rest of the session. A fresh session (new query, new
// source) means a fresh Controller.
//
// All exported methods on Controller and Buffer are safe for concurrent use.
package feed
