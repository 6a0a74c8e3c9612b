package chatsync

// DefaultScrollThreshold is the near-bottom distance, in the viewport's own
// units, used when no threshold is configured.
const DefaultScrollThreshold = 100

// Viewport is the scrollable area that shows the message list.
type Viewport interface {
	ScrollTop() int
	ClientHeight() int
	ScrollHeight() int
	ScrollToBottom()
}

// ScrollPolicy decides whether a change to the message list should move the
// viewport to the newest message. Opening a conversation always lands on the
// latest message; later updates only follow along when the reader was
// already at the bottom.
type ScrollPolicy struct {
	threshold            int
	initialRenderPending bool
}

// NewScrollPolicy returns a policy for a freshly opened session. A negative
// threshold selects DefaultScrollThreshold.
func NewScrollPolicy(threshold int) *ScrollPolicy {
	if threshold < 0 {
		threshold = DefaultScrollThreshold
	}
	return &ScrollPolicy{threshold: threshold, initialRenderPending: true}
}

// Reset arms the initial jump again. Call it whenever a new session opens.
func (p *ScrollPolicy) Reset() {
	p.initialRenderPending = true
}

// InitialRenderPending reports whether the first non-empty render is still ahead.
func (p *ScrollPolicy) InitialRenderPending() bool {
	return p.initialRenderPending
}

// IsNearBottom reports whether vp is within the threshold of its end.
func (p *ScrollPolicy) IsNearBottom(vp Viewport) bool {
	return vp.ScrollTop()+vp.ClientHeight() >= vp.ScrollHeight()-p.threshold
}

// Apply runs after the viewport content was replaced. wasNearBottom must be
// measured before the replacement. It reports whether it scrolled.
func (p *ScrollPolicy) Apply(vp Viewport, wasNearBottom bool, messageCount int) bool {
	if p.initialRenderPending {
		if messageCount == 0 {
			return false
		}
		p.initialRenderPending = false
		vp.ScrollToBottom()
		return true
	}
	if wasNearBottom {
		vp.ScrollToBottom()
		return true
	}
	return false
}

// Update measures vp, calls setContent to install the new list and applies
// the policy.
func (p *ScrollPolicy) Update(vp Viewport, messageCount int, setContent func()) bool {
	near := p.IsNearBottom(vp)
	setContent()
	return p.Apply(vp, near, messageCount)
}
