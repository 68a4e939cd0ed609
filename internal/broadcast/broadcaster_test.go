package broadcast

import (
	"testing"

	"tickerstream/internal/model"
)

type fakeSubscribers struct {
	bySymbol map[string][]string
}

func (f *fakeSubscribers) Subscribers(symbol string) []string {
	return f.bySymbol[symbol]
}

type fakeSender struct {
	live     map[string]bool
	received map[string][]model.PriceUpdate
}

func newFakeSender(live ...string) *fakeSender {
	s := &fakeSender{
		live:     make(map[string]bool),
		received: make(map[string][]model.PriceUpdate),
	}
	for _, id := range live {
		s.live[id] = true
	}
	return s
}

func (f *fakeSender) Send(subscriber string, update model.PriceUpdate) bool {
	if !f.live[subscriber] {
		return false
	}
	f.received[subscriber] = append(f.received[subscriber], update)
	return true
}

func TestBroadcaster_FanOut(t *testing.T) {
	subs := &fakeSubscribers{bySymbol: map[string][]string{
		"BTCUSD": {"u1", "u2"},
	}}
	sender := newFakeSender("u1", "u2")
	b := New(subs, sender, nil)

	b.PriceChanged("BTCUSD", 50050)

	for _, u := range []string{"u1", "u2"} {
		got := sender.received[u]
		if len(got) != 1 {
			t.Fatalf("%s received %d updates, want 1", u, len(got))
		}
		want := model.PriceUpdate{Ticker: "BTCUSD", Price: 50050}
		if got[0] != want {
			t.Errorf("%s received %+v, want %+v", u, got[0], want)
		}
	}
}

func TestBroadcaster_SkipsDeadConnections(t *testing.T) {
	subs := &fakeSubscribers{bySymbol: map[string][]string{
		"BTCUSD": {"u1", "ghost"},
	}}
	sender := newFakeSender("u1")
	b := New(subs, sender, nil)

	var sent, skipped int
	b.SetCounters(func() { sent++ }, func() { skipped++ })

	b.PriceChanged("BTCUSD", 100)

	if len(sender.received["u1"]) != 1 {
		t.Errorf("u1 received %d updates, want 1", len(sender.received["u1"]))
	}
	if sent != 1 || skipped != 1 {
		t.Errorf("sent = %d skipped = %d, want 1 and 1", sent, skipped)
	}
}

func TestBroadcaster_EmptySubscriberSet(t *testing.T) {
	subs := &fakeSubscribers{bySymbol: map[string][]string{}}
	sender := newFakeSender()
	b := New(subs, sender, nil)

	// A scrape completing after the last unsubscribe broadcasts to nobody.
	b.PriceChanged("ETHUSD", 3000)

	if len(sender.received) != 0 {
		t.Errorf("received = %v, want none", sender.received)
	}
}
