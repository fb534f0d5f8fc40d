package common

import (
	"time"

	"github.com/peter-kozarec/equinox-mt5/pkg/utility"
	"github.com/peter-kozarec/equinox-mt5/pkg/utility/fixed"
)

// Bar CloseTime is always OpenTime + Period.
type Bar struct {
	Source      string              `json:"src,omitempty"`
	Symbol      string              `json:"symbol,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
	Period      time.Duration       `json:"period"`
	OpenTime    time.Time           `json:"open_time"`
	CloseTime   time.Time           `json:"close_time"`
	Open        fixed.Point         `json:"open"`
	High        fixed.Point         `json:"high"`
	Low         fixed.Point         `json:"low"`
	Close       fixed.Point         `json:"close"`
	Volume      fixed.Point         `json:"volume"`
}
