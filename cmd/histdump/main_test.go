package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/equinox-mt5/pkg/common"
	"github.com/peter-kozarec/equinox-mt5/pkg/utility/fixed"
)

func TestParseRange(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		from, to  string
		wantStart time.Time
		wantEnd   time.Time
		wantErr   bool
	}{
		{name: "empty", wantEnd: now},
		{name: "from only", from: "2024-02-01T00:00:00Z",
			wantStart: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), wantEnd: now},
		{name: "both", from: "2024-02-01T00:00:00Z", to: "2024-02-02T00:00:00Z",
			wantStart: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)},
		{name: "bad from", from: "yesterday", wantErr: true},
		{name: "bad to", to: "tomorrow", wantErr: true},
		{name: "inverted", from: "2024-02-02T00:00:00Z", to: "2024-02-01T00:00:00Z", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := parseRange(tt.from, tt.to, now)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.wantStart.Equal(start))
			assert.True(t, tt.wantEnd.Equal(end))
		})
	}
}

func TestBarRequest(t *testing.T) {
	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	ranged := barRequest("EURUSD", time.Minute, start, end, 0)
	assert.Equal(t, start, ranged.Start)
	assert.Equal(t, end, ranged.End)
	assert.Zero(t, ranged.Count)

	counted := barRequest("EURUSD", time.Minute, start, end, 50)
	assert.Equal(t, end, counted.Start)
	assert.True(t, counted.End.IsZero())
	assert.Equal(t, 50, counted.Count)

	noStart := barRequest("EURUSD", time.Hour, time.Time{}, end, 0)
	assert.Equal(t, end, noStart.Start)
	assert.True(t, noStart.End.IsZero())
}

func TestTickRequest(t *testing.T) {
	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	ranged := tickRequest("EURUSD", start, end, 0)
	assert.Equal(t, start, ranged.Start)
	assert.Equal(t, end, ranged.End)

	counted := tickRequest("EURUSD", time.Time{}, end, 0)
	assert.Equal(t, end, counted.Start)
	assert.True(t, counted.End.IsZero())
}

func TestWriteBars(t *testing.T) {
	open := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	bars := []common.Bar{{
		OpenTime:  open,
		CloseTime: open.Add(time.Minute),
		Open:      fixed.MustParse("1.10000"),
		High:      fixed.MustParse("1.10050"),
		Low:       fixed.MustParse("1.09990"),
		Close:     fixed.MustParse("1.10020"),
		Volume:    fixed.MustParse("42"),
	}}

	var buf bytes.Buffer
	require.NoError(t, writeBars(&buf, bars))
	assert.Equal(t,
		"open_time,close_time,open,high,low,close,volume\n"+
			"2024-02-01 10:00:00Z,2024-02-01 10:01:00Z,1.10000,1.10050,1.09990,1.10020,42\n",
		buf.String())
}

func TestWriteTicks(t *testing.T) {
	ts := time.Date(2024, 2, 1, 10, 0, 0, 500_000_000, time.UTC)

	var quotes bytes.Buffer
	require.NoError(t, writeQuotes(&quotes, []common.Tick{{
		TimeStamp: ts,
		Bid:       fixed.MustParse("1.1"),
		Ask:       fixed.MustParse("1.2"),
		BidVolume: fixed.One,
		AskVolume: fixed.One,
	}}))
	assert.Equal(t, "timestamp,bid,ask,bid_volume,ask_volume\n2024-02-01 10:00:00.5Z,1.1,1.2,1,1\n", quotes.String())

	var trades bytes.Buffer
	require.NoError(t, writeTrades(&trades, []common.Trade{{
		TimeStamp: ts,
		Price:     fixed.MustParse("1.15"),
		Size:      fixed.MustParse("2"),
		Aggressor: common.AggressorSideBuyer,
		TradeId:   "1706781600500",
	}}))
	assert.Equal(t, "timestamp,price,size,aggressor,trade_id\n2024-02-01 10:00:00.5Z,1.15,2,buyer,1706781600500\n", trades.String())
}
