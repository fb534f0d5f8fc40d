package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/peter-kozarec/equinox-mt5/pkg/common"
)

var (
	ErrInstrumentNotPresent = errors.New("instrument is not present in instrument table")
)

// InstrumentStore is safe for concurrent use. Symbol lookups are case insensitive.
type InstrumentStore struct {
	mu          sync.RWMutex
	instruments map[string]common.Instrument
}

func NewInstrumentStore(instruments ...common.Instrument) *InstrumentStore {
	s := &InstrumentStore{}
	s.Replace(instruments)
	return s
}

func key(symbol string) string {
	return strings.ToUpper(symbol)
}

func (s *InstrumentStore) Contains(symbol string) bool {
	_, err := s.Get(symbol)
	return err == nil
}

func (s *InstrumentStore) Get(symbol string) (common.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if instrument, ok := s.instruments[key(symbol)]; ok {
		return instrument, nil
	}
	return common.Instrument{}, fmt.Errorf("unable to get instrument %s: %w", symbol, ErrInstrumentNotPresent)
}

func (s *InstrumentStore) MustGet(symbol string) common.Instrument {
	instrument, err := s.Get(symbol)
	if err != nil {
		panic(err.Error())
	}
	return instrument
}

// Put adds or replaces a single instrument.
func (s *InstrumentStore) Put(instrument common.Instrument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instruments[key(instrument.Symbol)] = instrument
}

// Replace swaps the whole table.
func (s *InstrumentStore) Replace(instruments []common.Instrument) {
	table := make(map[string]common.Instrument, len(instruments))
	for _, instrument := range instruments {
		table[key(instrument.Symbol)] = instrument
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.instruments = table
}

func (s *InstrumentStore) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make([]string, 0, len(s.instruments))
	for _, instrument := range s.instruments {
		symbols = append(symbols, instrument.Symbol)
	}
	sort.Strings(symbols)
	return symbols
}

func (s *InstrumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.instruments)
}
