package mt5

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/peter-kozarec/equinox-mt5/pkg/common"
	"github.com/peter-kozarec/equinox-mt5/pkg/tools/store"
)

// InstrumentProvider loads symbol metadata from the terminal into an InstrumentStore.
type InstrumentProvider struct {
	logger    *zap.Logger
	transport Transport
	store     *store.InstrumentStore
	batchSize int
	funding   func() string
}

func NewInstrumentProvider(logger *zap.Logger, transport Transport, instruments *store.InstrumentStore, batchSize int, funding func() string) *InstrumentProvider {
	return &InstrumentProvider{
		logger:    logger,
		transport: transport,
		store:     instruments,
		batchSize: batchSize,
		funding:   funding,
	}
}

func (p *InstrumentProvider) Store() *store.InstrumentStore {
	return p.store
}

// Load fetches, normalizes and stores a single symbol.
func (p *InstrumentProvider) Load(ctx context.Context, symbol string) (common.Instrument, error) {
	raw, err := p.transport.Call(ctx, MethodSymbolInfo, []any{symbol})
	if err != nil {
		return common.Instrument{}, fmt.Errorf("unable to fetch symbol info for %s: %w", symbol, err)
	}

	msg, err := ParseResponse(raw)
	if err != nil {
		return common.Instrument{}, fmt.Errorf("unable to parse symbol info for %s: %w", symbol, err)
	}
	if msg == nil {
		return common.Instrument{}, fmt.Errorf("symbol %s not found: %w", symbol, ErrEmptyResponse)
	}

	data, err := DecodeRawSymbol(msg)
	if err != nil {
		return common.Instrument{}, fmt.Errorf("unable to decode symbol info for %s: %w", symbol, err)
	}

	instrument, err := Normalize(data, p.funding())
	if err != nil {
		return common.Instrument{}, err
	}

	p.store.Put(instrument)
	p.logger.Info("instrument loaded", instrument.Fields()...)
	return instrument, nil
}

// Ensure returns the stored instrument, loading it on first use.
func (p *InstrumentProvider) Ensure(ctx context.Context, symbol string) (common.Instrument, error) {
	if instrument, err := p.store.Get(symbol); err == nil {
		return instrument, nil
	}
	return p.Load(ctx, symbol)
}

// LoadAll pages through symbols_get and replaces the store with every symbol
// that normalizes. Symbols that do not are logged and skipped.
func (p *InstrumentProvider) LoadAll(ctx context.Context) (int, error) {
	raw, err := p.transport.Call(ctx, MethodSymbolsTotal, nil)
	if err != nil {
		return 0, fmt.Errorf("unable to fetch symbols total: %w", err)
	}

	var total json.Number
	if _, err := decodeResponse(raw, &total); err != nil {
		return 0, fmt.Errorf("unable to parse symbols total: %w", err)
	}
	count, err := numberToInt64(total)
	if err != nil && total != "" {
		return 0, &ParsingError{Err: fmt.Errorf("symbols total %q: %w", total, err)}
	}

	p.logger.Info("loading all instruments", zap.Int64("available", count))

	instruments := make([]common.Instrument, 0, count)
	skipped := 0
	for start := int64(0); start < count; start += int64(p.batchSize) {
		batch, err := p.fetchBatch(ctx, start)
		if err != nil {
			return 0, err
		}
		for _, data := range batch {
			instrument, err := Normalize(data, p.funding())
			if err != nil {
				skipped++
				p.logger.Warn("skipping symbol", zap.Error(err))
				continue
			}
			instruments = append(instruments, instrument)
		}
	}

	p.store.Replace(instruments)
	p.logger.Info("instruments loaded", zap.Int("loaded", len(instruments)), zap.Int("skipped", skipped))
	return len(instruments), nil
}

func (p *InstrumentProvider) fetchBatch(ctx context.Context, start int64) ([]RawSymbol, error) {
	raw, err := p.transport.Call(ctx, MethodSymbolsGet, map[string]int64{"start": start, "count": int64(p.batchSize)})
	if err != nil {
		return nil, fmt.Errorf("unable to fetch symbols batch at %d: %w", start, err)
	}
	var batch []RawSymbol
	if _, err := decodeResponse(raw, &batch); err != nil {
		return nil, fmt.Errorf("unable to parse symbols batch at %d: %w", start, err)
	}
	return batch, nil
}
