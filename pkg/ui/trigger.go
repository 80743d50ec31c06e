package ui

// demandTrigger decides when the viewport is close enough to the end of the
// rendered content to ask the engine for more. It is push-based: the model
// consults it on scroll, resize and append events, never on a timer. The
// at-most-one-outstanding guarantee lives in the controller, which ignores
// demands while it is not idle; the trigger only keeps the obviously
// pointless ones (stream exhausted, engine busy) from being issued at all.
type demandTrigger struct {
	// lead is how many rows of unrendered runway below the bottom edge are
	// acceptable before demanding more content.
	lead int
}

// shouldDemand reports whether the bottom edge of the viewport is within
// the lead distance of the end of the content. bottom and contentRows are
// absolute positions in feed rows (viewport offset plus rows already
// trimmed off the top by eviction).
func (t demandTrigger) shouldDemand(bottom, contentRows int) bool {
	lead := t.lead
	if lead < 0 {
		lead = 0
	}
	return contentRows-bottom <= lead
}
