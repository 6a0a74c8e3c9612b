// Package chatsync keeps a client-side copy of one conversation in sync with
// a request/response message backend. A Controller owns the active session:
// it bulk-loads history, polls for deltas, dedups them into an ordered list
// and publishes snapshots for a host UI.
package chatsync

import (
	"context"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/adi-253/Talkie/chatsync/internal/models"
)

const (
	// DefaultPollInterval is how often the sync engine asks for new messages.
	DefaultPollInterval = 3 * time.Second

	// DefaultRequestTimeout bounds a single poll fetch.
	DefaultRequestTimeout = 10 * time.Second

	// DefaultLoadTimeout bounds a whole history load, which may span many
	// paged requests.
	DefaultLoadTimeout = 5 * time.Minute
)

// MessageSource fetches messages for a conversation. A nil since asks for
// the full history; otherwise messages at or after since are returned.
type MessageSource interface {
	FetchMessages(ctx context.Context, conversationID string, since *time.Time) ([]models.Message, error)
}

// Options configures a Controller. Zero values fall back to defaults.
type Options struct {
	PollInterval   time.Duration
	RequestTimeout time.Duration
	LoadTimeout    time.Duration
	Clock          Clock
	Logger         *zerolog.Logger
}

type fetchKind int

const (
	fetchLoad fetchKind = iota
	fetchPoll
)

func (k fetchKind) String() string {
	if k == fetchPoll {
		return "poll"
	}
	return "load"
}

// fetchResult carries a finished fetch back to the event loop, tagged with
// the identity of the request that produced it.
type fetchResult struct {
	kind           fetchKind
	generation     uint64
	seq            uint64
	conversationID string
	messages       []models.Message
	err            error
}

type openRequest struct {
	conversationID string
	reply          chan uint64
}

// session is the state of one opened conversation. It is only touched by
// the Run goroutine.
type session struct {
	conversationID string
	generation     uint64
	messages       []models.Message
	anchor         *time.Time
	state          LoadingState
	err            string

	// loadSeq identifies the newest bulk load; older loads are stale
	loadSeq uint64
	// pollBusy is set while a poll fetch is outstanding
	pollBusy bool

	ctx    context.Context
	cancel context.CancelFunc
}

// Controller is the conversation session controller. All state lives in the
// goroutine running Run; the exported methods hand requests to it.
type Controller struct {
	source         MessageSource
	clock          Clock
	pollInterval   time.Duration
	requestTimeout time.Duration
	loadTimeout    time.Duration
	logger         zerolog.Logger

	open        chan openRequest
	refresh     chan struct{}
	retry       chan struct{}
	teardown    chan struct{}
	results     chan fetchResult
	snapshotReq chan chan Snapshot
	subscribe   chan chan Snapshot
	done        chan struct{}

	// owned by Run
	sess        session
	generation  uint64
	ticker      Ticker
	tickC       <-chan time.Time
	subscribers []chan Snapshot
	version     uint64
}

// NewController creates a controller reading from source. Call Run to start it.
func NewController(source MessageSource, opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Controller{
		source:         source,
		clock:          opts.Clock,
		pollInterval:   opts.PollInterval,
		requestTimeout: opts.RequestTimeout,
		loadTimeout:    opts.LoadTimeout,
		logger:         logger.With().Str("component", "chatsync").Logger(),
		open:           make(chan openRequest),
		refresh:        make(chan struct{}),
		retry:          make(chan struct{}),
		teardown:       make(chan struct{}),
		results:        make(chan fetchResult),
		snapshotReq:    make(chan chan Snapshot),
		subscribe:      make(chan chan Snapshot),
		done:           make(chan struct{}),
		sess:           session{state: StateIdle},
	}
}

// Run processes requests, fetch results and poll ticks until ctx is done.
// It must be called exactly once.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.done)
	defer c.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case req := <-c.open:
			c.openSession(ctx, req.conversationID)
			req.reply <- c.version

		case <-c.refresh:
			c.forceRefresh()

		case <-c.retry:
			c.retrySession()

		case <-c.teardown:
			c.teardownSession()

		case res := <-c.results:
			c.handleResult(res)

		case <-c.tickC:
			c.pollTick()

		case reply := <-c.snapshotReq:
			reply <- c.snapshot()

		case sub := <-c.subscribe:
			c.subscribers = append(c.subscribers, sub)
			sub <- c.snapshot()
		}
	}
}

// OpenSession makes conversationID the active conversation. An empty ID
// selects no conversation and leaves the controller idle.
//
// It returns the Version of the first snapshot of the new session. Any
// snapshot with a lower Version belongs to an earlier session, even one of
// the same conversation. After Run has returned it returns 0.
func (c *Controller) OpenSession(conversationID string) uint64 {
	reply := make(chan uint64, 1)
	if !submit(c, c.open, openRequest{conversationID: conversationID, reply: reply}) {
		return 0
	}
	return <-reply
}

// ForceRefresh reloads the full history of the active conversation while
// keeping the current list visible. A failed refresh leaves the list as is.
func (c *Controller) ForceRefresh() {
	submit(c, c.refresh, struct{}{})
}

// NotifyExternalChange tells the controller that something outside it, such
// as a sent message, changed the conversation.
func (c *Controller) NotifyExternalChange() {
	c.ForceRefresh()
}

// Retry restarts a failed initial load. On a healthy session it refreshes.
func (c *Controller) Retry() {
	submit(c, c.retry, struct{}{})
}

// Teardown stops polling and discards the active session. Safe to call
// repeatedly.
func (c *Controller) Teardown() {
	submit(c, c.teardown, struct{}{})
}

// Snapshot returns the current state. After Run has returned it returns the
// zero Snapshot.
func (c *Controller) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	if !submit(c, c.snapshotReq, reply) {
		return Snapshot{}
	}
	return <-reply
}

// Subscribe returns a channel that always holds the latest snapshot.
// Intermediate snapshots are dropped when the reader falls behind.
// The channel is closed when Run returns.
func (c *Controller) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	if !submit(c, c.subscribe, ch) {
		close(ch)
	}
	return ch
}

// Done is closed once Run has returned.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func submit[T any](c *Controller, ch chan<- T, v T) bool {
	select {
	case ch <- v:
		return true
	case <-c.done:
		return false
	}
}

func (c *Controller) openSession(ctx context.Context, conversationID string) {
	c.endSession()

	c.generation++
	c.sess = session{
		conversationID: conversationID,
		generation:     c.generation,
		state:          StateIdle,
	}

	if conversationID == "" {
		c.logger.Debug().Msg("No conversation selected")
		c.publish()
		return
	}

	c.sess.ctx, c.sess.cancel = context.WithCancel(ctx)
	c.sess.state = StateInitialLoading
	c.logger.Info().Str("conversation", conversationID).Msg("Opening conversation")
	c.startLoad()
	c.publish()
}

func (c *Controller) forceRefresh() {
	switch c.sess.state {
	case StateIdle:
		return
	case StateError:
		c.retrySession()
		return
	}
	c.logger.Debug().Str("conversation", c.sess.conversationID).Msg("Refreshing conversation")
	c.startLoad()
}

func (c *Controller) retrySession() {
	if c.sess.state != StateError {
		c.forceRefresh()
		return
	}
	c.logger.Info().Str("conversation", c.sess.conversationID).Msg("Retrying initial load")
	c.sess.state = StateInitialLoading
	c.sess.err = ""
	c.startLoad()
	c.publish()
}

func (c *Controller) teardownSession() {
	if c.sess.conversationID == "" && c.ticker == nil {
		return
	}
	c.logger.Info().Str("conversation", c.sess.conversationID).Msg("Tearing down conversation")
	c.endSession()
	c.generation++
	c.sess = session{generation: c.generation, state: StateIdle}
	c.publish()
}

// endSession cancels the timer and in-flight fetches of the current session.
func (c *Controller) endSession() {
	c.stopPolling()
	if c.sess.cancel != nil {
		c.sess.cancel()
	}
}

func (c *Controller) shutdown() {
	c.endSession()
	for _, sub := range c.subscribers {
		close(sub)
	}
	c.subscribers = nil
}

func (c *Controller) startLoad() {
	c.sess.loadSeq++
	go c.fetch(c.sess.ctx, fetchResult{
		kind:           fetchLoad,
		generation:     c.sess.generation,
		seq:            c.sess.loadSeq,
		conversationID: c.sess.conversationID,
	}, nil)
}

func (c *Controller) pollTick() {
	if c.sess.conversationID == "" || c.sess.anchor == nil {
		return
	}
	if c.sess.pollBusy {
		c.logger.Debug().Str("conversation", c.sess.conversationID).Msg("Previous poll still outstanding, skipping tick")
		return
	}
	c.sess.pollBusy = true
	since := *c.sess.anchor
	go c.fetch(c.sess.ctx, fetchResult{
		kind:           fetchPoll,
		generation:     c.sess.generation,
		conversationID: c.sess.conversationID,
	}, &since)
}

// fetch runs on its own goroutine and reports back to the event loop.
func (c *Controller) fetch(ctx context.Context, res fetchResult, since *time.Time) {
	timeout := c.requestTimeout
	if res.kind == fetchLoad {
		timeout = c.loadTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res.messages, res.err = c.source.FetchMessages(ctx, res.conversationID, since)

	select {
	case c.results <- res:
	case <-c.done:
	}
}

func (c *Controller) handleResult(res fetchResult) {
	if res.generation != c.sess.generation {
		c.logger.Debug().
			Str("conversation", res.conversationID).
			Stringer("kind", res.kind).
			Msg("Discarding response for superseded session")
		return
	}

	switch res.kind {
	case fetchLoad:
		c.applyLoad(res)
	case fetchPoll:
		c.applyPoll(res)
	}
}

func (c *Controller) applyLoad(res fetchResult) {
	if res.seq != c.sess.loadSeq {
		c.logger.Debug().Str("conversation", res.conversationID).Msg("Discarding superseded load")
		return
	}

	if res.err != nil {
		if c.sess.state == StateInitialLoading {
			c.logger.Error().Err(res.err).Str("conversation", res.conversationID).Msg("Initial load failed")
			c.sess.state = StateError
			c.sess.err = res.err.Error()
			c.publish()
			return
		}
		c.logger.Warn().Err(res.err).Str("conversation", res.conversationID).Msg("Refresh failed, keeping current messages")
		return
	}

	// The list is append-only, so anything a poll delivered while this load
	// was in flight is kept.
	merged := Normalize(append(slices.Clone(res.messages), c.sess.messages...))
	c.sess.messages = merged
	c.sess.anchor = LatestTimestamp(merged)
	c.sess.state = StateReady
	c.sess.err = ""

	c.logger.Debug().
		Str("conversation", res.conversationID).
		Int("messages", len(merged)).
		Msg("Conversation loaded")

	if len(merged) > 0 {
		c.armPolling()
	}
	c.publish()
}

func (c *Controller) applyPoll(res fetchResult) {
	c.sess.pollBusy = false

	if res.err != nil {
		c.logger.Warn().Err(res.err).Str("conversation", res.conversationID).Msg("Poll failed")
		return
	}

	merged, anchor, changed := MergeDelta(c.sess.messages, c.sess.anchor, res.messages)
	if !changed {
		return
	}
	c.logger.Debug().
		Str("conversation", res.conversationID).
		Int("new", len(merged)-len(c.sess.messages)).
		Msg("Merged new messages")
	c.sess.messages = merged
	c.sess.anchor = anchor
	c.publish()
}

// armPolling is the only place a ticker is created.
func (c *Controller) armPolling() {
	if c.ticker != nil {
		return
	}
	c.ticker = c.clock.NewTicker(c.pollInterval)
	c.tickC = c.ticker.C()
	c.logger.Debug().Str("conversation", c.sess.conversationID).Dur("interval", c.pollInterval).Msg("Polling armed")
}

func (c *Controller) stopPolling() {
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	c.ticker = nil
	c.tickC = nil
	c.logger.Debug().Str("conversation", c.sess.conversationID).Msg("Polling stopped")
}

func (c *Controller) snapshot() Snapshot {
	snap := Snapshot{
		ConversationID: c.sess.conversationID,
		Messages:       slices.Clone(c.sess.messages),
		LoadingState:   c.sess.state,
		Err:            c.sess.err,
		PollingActive:  c.ticker != nil,
		Version:        c.version,
	}
	if c.sess.anchor != nil {
		anchor := *c.sess.anchor
		snap.Anchor = &anchor
	}
	return snap
}

// publish hands the current snapshot to every subscriber, replacing any
// snapshot the subscriber has not read yet.
func (c *Controller) publish() {
	c.version++
	snap := c.snapshot()
	for _, sub := range c.subscribers {
		select {
		case <-sub:
		default:
		}
		sub <- snap
	}
}
