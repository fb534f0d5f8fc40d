package mt5

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/peter-kozarec/equinox-mt5/pkg/bus"
	"github.com/peter-kozarec/equinox-mt5/pkg/tools/store"
)

const eurusdInfo = `{"result": {"name": "EURUSD", "currency_base": "EUR", "currency_profit": "USD",
	"digits": 5, "point": 0.00001, "volume_min": 0.01, "volume_max": 100.0, "volume_step": 0.01,
	"path": "Forex\\Majors\\EURUSD"}}`

const gbpusdInfo = `{"result": {"name": "GBPUSD", "currency_base": "GBP", "currency_profit": "USD",
	"digits": 5, "point": 0.00001, "volume_min": 0.01, "volume_max": 100.0, "volume_step": 0.01,
	"path": "Forex\\Majors\\GBPUSD"}}`

type recordedCall struct {
	method  Method
	payload any
}

type handler func(payload any) (string, error)

// fakeTransport answers calls from per method handlers and records every call.
type fakeTransport struct {
	mu       sync.Mutex
	handlers map[Method]handler
	calls    []recordedCall
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: make(map[Method]handler)}
}

func (f *fakeTransport) on(method Method, h handler) *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
	return f
}

func (f *fakeTransport) reply(method Method, raw string) *fakeTransport {
	return f.on(method, func(any) (string, error) { return raw, nil })
}

// sequence replies with raws in order and repeats the last one.
func (f *fakeTransport) sequence(method Method, raws ...string) *fakeTransport {
	var mu sync.Mutex
	i := 0
	return f.on(method, func(any) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		raw := raws[min(i, len(raws)-1)]
		i++
		return raw, nil
	})
}

func (f *fakeTransport) Call(ctx context.Context, method Method, payload any) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{method: method, payload: payload})
	h := f.handlers[method]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if h == nil {
		return "", fmt.Errorf("unexpected call to %s", method)
	}
	return h(payload)
}

func (f *fakeTransport) callsTo(method Method) []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedCall
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

type postedEvent struct {
	id   bus.EventId
	data any
}

type recordingPoster struct {
	mu     sync.Mutex
	events []postedEvent
	full   bool
}

func (p *recordingPoster) Post(id bus.EventId, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.full {
		return bus.ErrCapacityReached
	}
	p.events = append(p.events, postedEvent{id: id, data: data})
	return nil
}

func (p *recordingPoster) setFull(full bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.full = full
}

func (p *recordingPoster) count(id bus.EventId) int {
	return len(p.of(id))
}

func (p *recordingPoster) of(id bus.EventId) []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []any
	for _, e := range p.events {
		if e.id == id {
			out = append(out, e.data)
		}
	}
	return out
}

func eventsOf[T any](p *recordingPoster, id bus.EventId) []T {
	var out []T
	for _, d := range p.of(id) {
		out = append(out, d.(T))
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ChunkPause = 0
	cfg.PollInterval = 10 * time.Millisecond
	cfg.MinPollInterval = 5 * time.Millisecond
	cfg.MaxPollInterval = 20 * time.Millisecond
	return cfg
}

func newTestProvider(transport Transport) *InstrumentProvider {
	return NewInstrumentProvider(zap.NewNop(), transport, store.NewInstrumentStore(), 50, func() string { return "USD" })
}

func loadedProvider(t *testing.T, transport *fakeTransport) *InstrumentProvider {
	t.Helper()
	transport.on(MethodSymbolInfo, func(payload any) (string, error) {
		switch payload.([]any)[0] {
		case "EURUSD":
			return eurusdInfo, nil
		case "GBPUSD":
			return gbpusdInfo, nil
		}
		return `{"result": null}`, nil
	})
	p := newTestProvider(transport)
	_, err := p.Load(context.Background(), "EURUSD")
	require.NoError(t, err)
	return p
}
