package chatsync

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/adi-253/Talkie/chatsync/internal/models"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ts(sec int) time.Time {
	return baseTime.Add(time.Duration(sec) * time.Second)
}

func msg(id string, sec int) models.Message {
	return models.Message{ID: id, SenderID: "u-" + id, Body: "body " + id, CreatedAt: ts(sec)}
}

func ids(msgs []models.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

// fakeClock hands out manually driven tickers and remembers all of them.
type fakeClock struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time), interval: d}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) created() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

func (c *fakeClock) active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		if t.stops.Load() == 0 {
			n++
		}
	}
	return n
}

func (c *fakeClock) ticker(i int) *fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickers[i]
}

func (c *fakeClock) current(t *testing.T) *fakeTicker {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.tickers, "no ticker armed")
	return c.tickers[len(c.tickers)-1]
}

type fakeTicker struct {
	ch       chan time.Time
	interval time.Duration
	stops    atomic.Int32
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               { t.stops.Add(1) }

// tick blocks until the controller has received the tick.
func (t *fakeTicker) tick(tb testing.TB) {
	tb.Helper()
	select {
	case t.ch <- time.Now():
	case <-time.After(2 * time.Second):
		tb.Fatal("tick was not consumed")
	}
}

// fetchCall is one outstanding FetchMessages call, answered by the test.
type fetchCall struct {
	conversationID string
	since          *time.Time
	reply          chan fetchReply
}

type fetchReply struct {
	msgs []models.Message
	err  error
}

func (c fetchCall) respond(msgs []models.Message, err error) {
	c.reply <- fetchReply{msgs: msgs, err: err}
}

// fakeSource parks every fetch until the test answers it. It ignores ctx so
// late answers reach the controller and exercise the stale-response guard.
type fakeSource struct {
	calls chan fetchCall
}

func newFakeSource() *fakeSource {
	return &fakeSource{calls: make(chan fetchCall, 16)}
}

func (s *fakeSource) FetchMessages(_ context.Context, conversationID string, since *time.Time) ([]models.Message, error) {
	call := fetchCall{conversationID: conversationID, since: since, reply: make(chan fetchReply, 1)}
	s.calls <- call
	r := <-call.reply
	return r.msgs, r.err
}

func (s *fakeSource) next(t *testing.T) fetchCall {
	t.Helper()
	select {
	case call := <-s.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("expected a fetch")
		return fetchCall{}
	}
}

func (s *fakeSource) expectNone(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case call := <-s.calls:
		t.Fatalf("unexpected fetch for %q", call.conversationID)
	case <-time.After(wait):
	}
}

type harness struct {
	c     *Controller
	src   *fakeSource
	clock *fakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithSource(t, newFakeSource())
}

func newHarnessWithSource(t *testing.T, src MessageSource) *harness {
	t.Helper()
	clock := &fakeClock{}
	logger := zerolog.Nop()
	c := NewController(src, Options{
		PollInterval:   time.Second,
		RequestTimeout: 5 * time.Second,
		Clock:          clock,
		Logger:         &logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-c.Done()
	})

	h := &harness{c: c, clock: clock}
	if fs, ok := src.(*fakeSource); ok {
		h.src = fs
	}
	return h
}

func (h *harness) waitFor(t *testing.T, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		snap = h.c.Snapshot()
		return cond(snap)
	}, 2*time.Second, 5*time.Millisecond)
	return snap
}

// open opens conversationID and answers its initial load with msgs.
func (h *harness) open(t *testing.T, conversationID string, msgs ...models.Message) Snapshot {
	t.Helper()
	h.c.OpenSession(conversationID)
	call := h.src.next(t)
	require.Equal(t, conversationID, call.conversationID)
	require.Nil(t, call.since)
	call.respond(msgs, nil)
	return h.waitFor(t, func(s Snapshot) bool {
		return s.ConversationID == conversationID && s.LoadingState == StateReady
	})
}

// tickForFetch ticks until a poll fetch is issued. A poll is only issued
// once the previous one has been applied, so returning also proves that.
func (h *harness) tickForFetch(t *testing.T) fetchCall {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.clock.current(t).tick(t)
		select {
		case call := <-h.src.calls:
			return call
		case <-time.After(20 * time.Millisecond):
		}
	}
	t.Fatal("no poll fetch issued")
	return fetchCall{}
}
