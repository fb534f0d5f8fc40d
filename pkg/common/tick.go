package common

import (
	"time"

	"github.com/peter-kozarec/equinox-mt5/pkg/utility"
	"github.com/peter-kozarec/equinox-mt5/pkg/utility/fixed"
)

type AggressorSide int

const (
	AggressorSideNone AggressorSide = iota
	AggressorSideBuyer
	AggressorSideSeller
)

func (a AggressorSide) String() string {
	switch a {
	case AggressorSideBuyer:
		return "buyer"
	case AggressorSideSeller:
		return "seller"
	}
	return "none"
}

// Tick is a top of book quote.
type Tick struct {
	Ask       fixed.Point `json:"ask"`
	Bid       fixed.Point `json:"bid"`
	AskVolume fixed.Point `json:"ask_volume"`
	BidVolume fixed.Point `json:"bid_volume"`

	Source      string              `json:"src,omitempty"`
	Symbol      string              `json:"symbol,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}

// Trade is a last price print.
type Trade struct {
	Price     fixed.Point   `json:"price"`
	Size      fixed.Point   `json:"size"`
	Aggressor AggressorSide `json:"aggressor"`
	TradeId   string        `json:"trade_id"`

	Source      string              `json:"src,omitempty"`
	Symbol      string              `json:"symbol,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}
