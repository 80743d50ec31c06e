package feed

import "time"

// Stats is a consistent snapshot of the session for the stats overlay and
// robot mode.
type Stats struct {
	State      State
	HaltReason HaltReason
	LastErr    error
	// Attempt is the count of consecutive failed fetch attempts.
	Attempt int
	// ResumeAt is when the pending backoff expires. Zero outside backoff.
	ResumeAt time.Time
	// RateLimitResume is the source's resume hint recorded at a rate-limit
	// halt. Zero when the source gave none. Informational only; the
	// controller never auto-resumes.
	RateLimitResume time.Time

	Buffer    BufferStats
	WindowLen int

	Demands        int64
	DemandsIgnored int64
	Appended       int64
	Evicted        int64
	UnitFailures   int64
}

// Stats returns a snapshot of controller and buffer counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	s := Stats{
		State:           c.state,
		HaltReason:      c.haltReason,
		LastErr:         c.lastErr,
		Attempt:         c.attempt,
		RateLimitResume: c.rateLimitResume,
		WindowLen:       c.win.Len(),
		Demands:         c.demands,
		DemandsIgnored:  c.demandsIgnored,
		Appended:        c.appended,
		Evicted:         c.evicted,
		UnitFailures:    c.unitFailures,
	}
	if c.state == StateBackoff {
		s.ResumeAt = c.resumeAt
	}
	c.mu.Unlock()

	s.Buffer = c.buf.Stats()
	return s
}
