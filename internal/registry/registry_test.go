package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"tickerstream/internal/browser"
	"tickerstream/internal/session"
)

var errUnknownSymbol = errors.New("symbol not found")

// fakeSessions records Ensure/Teardown calls and can reject symbols.
// Setting teardownStarted/teardownRelease makes Teardown announce itself
// and block until released, to force teardown-vs-add interleavings.
type fakeSessions struct {
	mu        sync.Mutex
	invalid   map[string]bool
	ensures   map[string]int
	teardowns map[string]int
	live      map[string]bool

	teardownStarted chan string
	teardownRelease chan struct{}
}

func newFakeSessions(invalid ...string) *fakeSessions {
	f := &fakeSessions{
		invalid:   make(map[string]bool),
		ensures:   make(map[string]int),
		teardowns: make(map[string]int),
		live:      make(map[string]bool),
	}
	for _, s := range invalid {
		f.invalid[s] = true
	}
	return f
}

func (f *fakeSessions) Ensure(ctx context.Context, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.invalid[symbol] {
		return errUnknownSymbol
	}
	f.ensures[symbol]++
	f.live[symbol] = true
	return nil
}

func (f *fakeSessions) Teardown(symbol string) {
	if f.teardownStarted != nil {
		f.teardownStarted <- symbol
	}
	if f.teardownRelease != nil {
		<-f.teardownRelease
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teardowns[symbol]++
	f.live[symbol] = false
}

func (f *fakeSessions) teardownCount(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.teardowns[symbol]
}

func (f *fakeSessions) isLive(symbol string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live[symbol]
}

// fakePrices is a static price lookup.
type fakePrices struct {
	prices map[string]float64
}

func (f *fakePrices) Get(symbol string) (float64, bool) {
	p, ok := f.prices[symbol]
	return p, ok
}

func newRegistry(sessions *fakeSessions, prices map[string]float64) *Registry {
	return New(sessions, &fakePrices{prices: prices}, nil)
}

func TestRegistry_AddAndWatch(t *testing.T) {
	sessions := newFakeSessions()
	r := newRegistry(sessions, nil)

	ctx := context.Background()
	_, hasPrice, err := r.Add(ctx, "BTCUSD", "u1")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if hasPrice {
		t.Error("hasPrice = true before any scrape")
	}

	watched := r.Watched()
	if len(watched) != 1 || watched[0] != "BTCUSD" {
		t.Errorf("Watched = %v, want [BTCUSD]", watched)
	}
	if got := r.Subscribers("BTCUSD"); len(got) != 1 || got[0] != "u1" {
		t.Errorf("Subscribers = %v, want [u1]", got)
	}
}

func TestRegistry_AddReturnsCachedPrice(t *testing.T) {
	sessions := newFakeSessions()
	r := newRegistry(sessions, map[string]float64{"BTCUSD": 50000})

	price, hasPrice, err := r.Add(context.Background(), "BTCUSD", "u2")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if !hasPrice || price != 50000 {
		t.Errorf("price = %v hasPrice = %v, want 50000 true", price, hasPrice)
	}
}

func TestRegistry_AddInvalidSymbolNoMutation(t *testing.T) {
	sessions := newFakeSessions("NOTASYMBOL")
	r := newRegistry(sessions, nil)

	_, _, err := r.Add(context.Background(), "NOTASYMBOL", "u1")
	if !errors.Is(err, errUnknownSymbol) {
		t.Fatalf("Add error = %v, want errUnknownSymbol", err)
	}

	if got := r.Watched(); len(got) != 0 {
		t.Errorf("Watched = %v, want empty", got)
	}
	if got := r.Subscribers("NOTASYMBOL"); got != nil {
		t.Errorf("Subscribers = %v, want nil", got)
	}
}

func TestRegistry_AddIdempotent(t *testing.T) {
	sessions := newFakeSessions()
	r := newRegistry(sessions, nil)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, _, err := r.Add(ctx, "BTCUSD", "u1"); err != nil {
			t.Fatalf("Add #%d failed: %v", i+1, err)
		}
	}

	if got := len(r.Subscribers("BTCUSD")); got != 1 {
		t.Errorf("subscriber count = %d, want 1 (set semantics)", got)
	}
}

func TestRegistry_RemoveLastSubscriberTearsDownOnce(t *testing.T) {
	sessions := newFakeSessions()
	r := newRegistry(sessions, nil)

	ctx := context.Background()
	if _, _, err := r.Add(ctx, "BTCUSD", "u1"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	r.Remove("BTCUSD", "u1")
	r.Remove("BTCUSD", "u1") // second remove hits an absent entry

	if got := sessions.teardownCount("BTCUSD"); got != 1 {
		t.Errorf("teardowns = %d, want exactly 1", got)
	}
	if got := r.Watched(); len(got) != 0 {
		t.Errorf("Watched = %v, want empty", got)
	}
}

func TestRegistry_RemoveKeepsSessionWhileOthersWatch(t *testing.T) {
	sessions := newFakeSessions()
	r := newRegistry(sessions, nil)

	ctx := context.Background()
	for _, u := range []string{"u1", "u2"} {
		if _, _, err := r.Add(ctx, "ETHUSD", u); err != nil {
			t.Fatalf("Add %s failed: %v", u, err)
		}
	}

	r.Remove("ETHUSD", "u1")
	if got := sessions.teardownCount("ETHUSD"); got != 0 {
		t.Errorf("teardowns = %d after first leave, want 0", got)
	}
	if got := r.Watched(); len(got) != 1 {
		t.Errorf("Watched = %v, want [ETHUSD]", got)
	}

	r.Remove("ETHUSD", "u2")
	if got := sessions.teardownCount("ETHUSD"); got != 1 {
		t.Errorf("teardowns = %d after last leave, want 1", got)
	}
	if got := r.Watched(); len(got) != 0 {
		t.Errorf("Watched = %v, want empty", got)
	}
}

func TestRegistry_RemoveUnknownIsNoop(t *testing.T) {
	sessions := newFakeSessions()
	r := newRegistry(sessions, nil)

	r.Remove("NEVERSEEN", "u1") // must not panic or tear down
	if got := sessions.teardownCount("NEVERSEEN"); got != 0 {
		t.Errorf("teardowns = %d, want 0", got)
	}
}

func TestRegistry_RemoveSubscriberCascades(t *testing.T) {
	sessions := newFakeSessions()
	r := newRegistry(sessions, nil)

	ctx := context.Background()
	// u1 alone on BTCUSD, shares ETHUSD with u2.
	for _, add := range []struct{ sym, user string }{
		{"BTCUSD", "u1"},
		{"ETHUSD", "u1"},
		{"ETHUSD", "u2"},
	} {
		if _, _, err := r.Add(ctx, add.sym, add.user); err != nil {
			t.Fatalf("Add %s/%s failed: %v", add.sym, add.user, err)
		}
	}

	r.RemoveSubscriber("u1")

	watched := r.Watched()
	sort.Strings(watched)
	if len(watched) != 1 || watched[0] != "ETHUSD" {
		t.Errorf("Watched = %v, want [ETHUSD]", watched)
	}
	if got := sessions.teardownCount("BTCUSD"); got != 1 {
		t.Errorf("BTCUSD teardowns = %d, want 1", got)
	}
	if got := sessions.teardownCount("ETHUSD"); got != 0 {
		t.Errorf("ETHUSD teardowns = %d, want 0", got)
	}
	if got := r.Subscribers("ETHUSD"); len(got) != 1 || got[0] != "u2" {
		t.Errorf("ETHUSD subscribers = %v, want [u2]", got)
	}
}

func TestRegistry_WatchSetMatchesSessions(t *testing.T) {
	// Invariant: subscribers(symbol) > 0 <=> symbol watched <=> session ensured
	// and not yet torn down.
	sessions := newFakeSessions()
	r := newRegistry(sessions, nil)

	ctx := context.Background()
	symbols := []string{"BTCUSD", "ETHUSD", "SOLUSD"}
	for _, sym := range symbols {
		if _, _, err := r.Add(ctx, sym, "u1"); err != nil {
			t.Fatalf("Add %s failed: %v", sym, err)
		}
	}

	r.Remove("ETHUSD", "u1")

	watched := r.Watched()
	sort.Strings(watched)
	want := []string{"BTCUSD", "SOLUSD"}
	if len(watched) != len(want) || watched[0] != want[0] || watched[1] != want[1] {
		t.Errorf("Watched = %v, want %v", watched, want)
	}

	for _, sym := range symbols {
		live := sessions.ensures[sym]-sessions.teardowns[sym] > 0
		inWatch := len(r.Subscribers(sym)) > 0
		if live != inWatch {
			t.Errorf("%s: session live = %v, watched = %v", sym, live, inWatch)
		}
	}
}

func TestRegistry_AddDuringTeardownWaitsForFreshSession(t *testing.T) {
	sessions := newFakeSessions()
	sessions.teardownStarted = make(chan string, 1)
	sessions.teardownRelease = make(chan struct{})
	r := newRegistry(sessions, nil)

	ctx := context.Background()
	if _, _, err := r.Add(ctx, "BTCUSD", "u1"); err != nil {
		t.Fatalf("Add u1 failed: %v", err)
	}

	// u1 leaves; the resulting session teardown stalls mid-flight.
	removeDone := make(chan struct{})
	go func() {
		r.Remove("BTCUSD", "u1")
		close(removeDone)
	}()
	<-sessions.teardownStarted

	// u2 subscribes while the teardown is running. Its insert must not
	// land until the teardown completes and the session is re-ensured,
	// or u2 would be left watching a symbol with no session.
	addDone := make(chan struct{})
	go func() {
		defer close(addDone)
		if _, _, err := r.Add(ctx, "BTCUSD", "u2"); err != nil {
			t.Errorf("Add u2 failed: %v", err)
		}
	}()

	select {
	case <-addDone:
		t.Fatal("Add completed while the session teardown was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(sessions.teardownRelease)
	<-removeDone
	<-addDone

	if !sessions.isLive("BTCUSD") {
		t.Error("watched symbol has no live session after racing add and teardown")
	}
	if got := r.Subscribers("BTCUSD"); len(got) != 1 || got[0] != "u2" {
		t.Errorf("Subscribers = %v, want [u2]", got)
	}
	if got := sessions.teardownCount("BTCUSD"); got != 1 {
		t.Errorf("teardowns = %d, want 1", got)
	}
}

func TestRegistry_ChurnKeepsWatchAndSessionsAligned(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool := session.NewPool(session.Config{
		URLTemplate:   "https://example.com/symbols/%s/",
		PriceSelector: ".price",
		ScrapeTimeout: time.Second,
	}, stubProvider{}, logger)
	r := New(pool, &fakePrices{}, logger)

	ctx := context.Background()
	for i := 0; i < 200; i++ {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, _, err := r.Add(ctx, "BTCUSD", "a"); err != nil {
				t.Errorf("Add a: %v", err)
			}
			r.Remove("BTCUSD", "a")
		}()
		go func() {
			defer wg.Done()
			if _, _, err := r.Add(ctx, "BTCUSD", "b"); err != nil {
				t.Errorf("Add b: %v", err)
			}
		}()
		wg.Wait()

		// b is still subscribed, so the symbol must hold a session no
		// matter how a's unsubscribe interleaved with b's add.
		if len(r.Subscribers("BTCUSD")) > 0 && pool.Count() == 0 {
			t.Fatalf("iteration %d: watched symbol lost its session", i)
		}
		r.Remove("BTCUSD", "b")
	}
}

type stubSession struct{}

func (stubSession) WaitText(context.Context, string, time.Duration) (string, error) {
	return "1", nil
}

func (stubSession) Close(context.Context) error { return nil }

type stubProvider struct{}

func (stubProvider) Open(context.Context, string) (browser.Session, error) {
	return stubSession{}, nil
}
