package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/equinox-mt5/pkg/common"
	"github.com/peter-kozarec/equinox-mt5/pkg/utility/fixed"
)

func eurusd() common.Instrument {
	return common.Instrument{
		Symbol:         "EURUSD",
		Venue:          "MT5",
		Kind:           common.InstrumentKindCurrencyPair,
		BaseCurrency:   "EUR",
		QuoteCurrency:  "USD",
		PricePrecision: 5,
		SizePrecision:  2,
		PriceIncrement: fixed.MustParse("0.00001"),
		SizeIncrement:  fixed.MustParse("0.01"),
	}
}

func TestInstrumentStore_Get(t *testing.T) {
	s := NewInstrumentStore(eurusd())

	tests := []struct {
		symbol  string
		wantErr bool
	}{
		{"EURUSD", false},
		{"eurusd", false},
		{"GBPUSD", true},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			got, err := s.Get(tt.symbol)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInstrumentNotPresent)
				assert.False(t, s.Contains(tt.symbol))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "EURUSD", got.Symbol)
			assert.True(t, s.Contains(tt.symbol))
		})
	}
}

func TestInstrumentStore_MustGetPanics(t *testing.T) {
	s := NewInstrumentStore()
	assert.Panics(t, func() { s.MustGet("EURUSD") })
}

func TestInstrumentStore_ReplaceIsWholesale(t *testing.T) {
	s := NewInstrumentStore(eurusd())

	gold := eurusd()
	gold.Symbol = "XAUUSD"
	gold.Kind = common.InstrumentKindGenericContract
	s.Replace([]common.Instrument{gold})

	assert.False(t, s.Contains("EURUSD"))
	assert.True(t, s.Contains("XAUUSD"))
	assert.Equal(t, 1, s.Len())
}

func TestInstrumentStore_PutAndSymbols(t *testing.T) {
	s := NewInstrumentStore()
	for _, sym := range []string{"USDJPY", "EURUSD", "AUDUSD"} {
		i := eurusd()
		i.Symbol = sym
		s.Put(i)
	}
	assert.Equal(t, []string{"AUDUSD", "EURUSD", "USDJPY"}, s.Symbols())
}

func TestInstrumentStore_Concurrent(t *testing.T) {
	s := NewInstrumentStore(eurusd())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Put(eurusd())
		}()
		go func() {
			defer wg.Done()
			_, _ = s.Get("EURUSD")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, s.Len())
}
