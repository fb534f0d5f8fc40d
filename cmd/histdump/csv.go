package main

import (
	"encoding/csv"
	"io"

	"github.com/peter-kozarec/equinox-mt5/pkg/common"
)

const timeLayout = "2006-01-02 15:04:05.999999999Z07:00"

func writeCSV(w io.Writer, header []string, n int, record func(int) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := cw.Write(record(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeBars(w io.Writer, bars []common.Bar) error {
	header := []string{"open_time", "close_time", "open", "high", "low", "close", "volume"}
	return writeCSV(w, header, len(bars), func(i int) []string {
		b := bars[i]
		return []string{
			b.OpenTime.Format(timeLayout),
			b.CloseTime.Format(timeLayout),
			b.Open.String(),
			b.High.String(),
			b.Low.String(),
			b.Close.String(),
			b.Volume.String(),
		}
	})
}

func writeQuotes(w io.Writer, quotes []common.Tick) error {
	header := []string{"timestamp", "bid", "ask", "bid_volume", "ask_volume"}
	return writeCSV(w, header, len(quotes), func(i int) []string {
		q := quotes[i]
		return []string{
			q.TimeStamp.Format(timeLayout),
			q.Bid.String(),
			q.Ask.String(),
			q.BidVolume.String(),
			q.AskVolume.String(),
		}
	})
}

func writeTrades(w io.Writer, trades []common.Trade) error {
	header := []string{"timestamp", "price", "size", "aggressor", "trade_id"}
	return writeCSV(w, header, len(trades), func(i int) []string {
		t := trades[i]
		return []string{
			t.TimeStamp.Format(timeLayout),
			t.Price.String(),
			t.Size.String(),
			t.Aggressor.String(),
			t.TradeId,
		}
	})
}
