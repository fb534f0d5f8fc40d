package mt5

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/peter-kozarec/equinox-mt5/pkg/bus"
	"github.com/peter-kozarec/equinox-mt5/pkg/common"
	"github.com/peter-kozarec/equinox-mt5/pkg/utility"
)

// SubmitOrder sends a new order. A terminal rejection is returned as a
// rejected result with a nil error; both outcomes are posted to the router.
func (c *Client) SubmitOrder(ctx context.Context, order common.Order) (SubmitResult, error) {
	req, err := NewSubmitRequest(order)
	if err != nil {
		c.reject(order, 0, err.Error())
		return SubmitResult{}, err
	}
	return c.send(ctx, order, req)
}

// ModifyOrder changes price, stops or expiry of a pending order.
func (c *Client) ModifyOrder(ctx context.Context, order common.Order) (SubmitResult, error) {
	req, err := NewModifyRequest(order)
	if err != nil {
		return SubmitResult{}, err
	}
	return c.send(ctx, order, req)
}

func (c *Client) CancelOrder(ctx context.Context, order common.Order) (SubmitResult, error) {
	req, err := NewCancelRequest(order.OrderId)
	if err != nil {
		return SubmitResult{}, err
	}
	return c.send(ctx, order, req)
}

// BatchCancelOrders cancels each order in turn. A failure does not stop the
// remaining cancels, all errors are joined.
func (c *Client) BatchCancelOrders(ctx context.Context, orders []common.Order) ([]SubmitResult, error) {
	results := make([]SubmitResult, 0, len(orders))
	var errs []error
	for _, order := range orders {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		result, err := c.CancelOrder(ctx, order)
		if err != nil {
			errs = append(errs, fmt.Errorf("cancel order %d: %w", order.OrderId, err))
			continue
		}
		results = append(results, result)
	}
	return results, errors.Join(errs...)
}

// CancelAllOrders removes every open pending order, optionally for one symbol.
func (c *Client) CancelAllOrders(ctx context.Context, symbol string) ([]SubmitResult, error) {
	records, err := c.fetchRecords(ctx, MethodOrdersGet, nil)
	if err != nil {
		return nil, &DataRequestError{Method: MethodOrdersGet, Symbol: symbol, Err: err}
	}

	now := c.now()
	var orders []common.Order
	for _, rec := range records {
		report, err := ToOrderStatusReport(rec, now)
		if err != nil {
			c.logger.Warn("skipping open order", zap.Error(err))
			continue
		}
		if symbol != "" && report.Symbol != symbol {
			continue
		}
		orders = append(orders, common.Order{
			Command:   common.OrderCommandCancel,
			Type:      report.Type,
			Side:      report.Side,
			Price:     report.Price,
			Size:      report.Quantity,
			OrderId:   report.OrderId,
			Symbol:    report.Symbol,
			Source:    Venue,
			TimeStamp: now,
		})
	}
	c.logger.Info("cancelling open orders", zap.String("symbol", symbol), zap.Int("count", len(orders)))
	return c.BatchCancelOrders(ctx, orders)
}

func (c *Client) send(ctx context.Context, order common.Order, req TradeRequest) (SubmitResult, error) {
	raw, err := c.transport.Call(ctx, MethodOrderSend, req)
	if err != nil {
		c.reject(order, 0, err.Error())
		return SubmitResult{}, &DataRequestError{Method: MethodOrderSend, Symbol: order.Symbol, Err: err}
	}

	result, err := ParseSendResult(raw)
	if err != nil {
		c.reject(order, 0, err.Error())
		return SubmitResult{}, &DataRequestError{Method: MethodOrderSend, Symbol: order.Symbol, Err: err}
	}

	if !result.Accepted() {
		c.reject(order, result.RetCode, result.Comment)
		return result, nil
	}

	orderId := result.OrderId
	if orderId == 0 {
		orderId = order.OrderId
	}
	c.post(bus.OrderAcceptedEvent, common.OrderAccepted{
		OriginalOrder: order,
		OrderId:       orderId,
		DealId:        result.DealId,
		RetCode:       result.RetCode,
		Source:        Venue,
		ExecutionId:   utility.GetExecutionID(),
		TraceID:       order.TraceID,
		TimeStamp:     c.now(),
	})
	c.logger.Info("order accepted",
		zap.String("symbol", order.Symbol),
		zap.Stringer("side", order.Side),
		zap.Stringer("type", order.Type),
		zap.Uint64("order_id", uint64(orderId)),
		zap.Int("retcode", result.RetCode))
	return result, nil
}

func (c *Client) reject(order common.Order, retcode int, reason string) {
	c.post(bus.OrderRejectedEvent, common.OrderRejected{
		OriginalOrder: order,
		RetCode:       retcode,
		Reason:        reason,
		Source:        Venue,
		ExecutionId:   utility.GetExecutionID(),
		TraceID:       order.TraceID,
		TimeStamp:     c.now(),
	})
	c.logger.Warn("order rejected",
		zap.String("symbol", order.Symbol),
		zap.Stringer("side", order.Side),
		zap.Stringer("type", order.Type),
		zap.Int("retcode", retcode),
		zap.String("reason", reason))
}

func (c *Client) fetchRecords(ctx context.Context, method Method, payload any) ([]Record, error) {
	raw, err := c.transport.Call(ctx, method, payload)
	if err != nil {
		return nil, err
	}
	var records []Record
	if _, err := decodeResponse(raw, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) historyWindow(q ReportQuery) map[string]any {
	start, end := q.window(c.now(), c.cfg.ReportLookback)
	return map[string]any{"from": start.Unix(), "to": end.Unix()}
}

// GenerateOrderStatusReports combines open orders with the order history of
// the query window. Orders seen in both keep the open record.
func (c *Client) GenerateOrderStatusReports(ctx context.Context, q ReportQuery) ([]common.OrderStatusReport, error) {
	records, err := c.fetchRecords(ctx, MethodOrdersGet, nil)
	if err != nil {
		return nil, &DataRequestError{Method: MethodOrdersGet, Symbol: q.Symbol, Err: err}
	}
	if !q.OpenOnly {
		history, err := c.fetchRecords(ctx, MethodHistoryOrdersGet, c.historyWindow(q))
		if err != nil {
			return nil, &DataRequestError{Method: MethodHistoryOrdersGet, Symbol: q.Symbol, Err: err}
		}
		records = append(records, history...)
	}

	now := c.now()
	seen := make(map[common.OrderId]struct{}, len(records))
	reports := make([]common.OrderStatusReport, 0, len(records))
	for _, rec := range records {
		report, err := ToOrderStatusReport(rec, now)
		if err != nil {
			return nil, err
		}
		if !q.matches(report.Symbol) {
			continue
		}
		if _, dup := seen[report.OrderId]; dup {
			continue
		}
		seen[report.OrderId] = struct{}{}
		reports = append(reports, report)
	}
	return reports, nil
}

// GenerateFillReports maps the deal history of the query window. Balance,
// credit and other non trade deals are skipped.
func (c *Client) GenerateFillReports(ctx context.Context, q ReportQuery) ([]common.FillReport, error) {
	records, err := c.fetchRecords(ctx, MethodHistoryDealsGet, c.historyWindow(q))
	if err != nil {
		return nil, &DataRequestError{Method: MethodHistoryDealsGet, Symbol: q.Symbol, Err: err}
	}

	now := c.now()
	reports := make([]common.FillReport, 0, len(records))
	for _, rec := range records {
		report, ok, err := ToFillReport(rec, now)
		if err != nil {
			return nil, err
		}
		if !ok || !q.matches(report.Symbol) {
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (c *Client) GeneratePositionStatusReports(ctx context.Context, q ReportQuery) ([]common.PositionStatusReport, error) {
	records, err := c.fetchRecords(ctx, MethodPositionsGet, nil)
	if err != nil {
		return nil, &DataRequestError{Method: MethodPositionsGet, Symbol: q.Symbol, Err: err}
	}

	now := c.now()
	reports := make([]common.PositionStatusReport, 0, len(records))
	for _, rec := range records {
		report, err := ToPositionStatusReport(rec, now)
		if err != nil {
			return nil, err
		}
		if !q.matches(report.Symbol) {
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// Reconcile generates every report kind and posts them to the router.
func (c *Client) Reconcile(ctx context.Context, q ReportQuery) error {
	orders, err := c.GenerateOrderStatusReports(ctx, q)
	if err != nil {
		return err
	}
	fills, err := c.GenerateFillReports(ctx, q)
	if err != nil {
		return err
	}
	positions, err := c.GeneratePositionStatusReports(ctx, q)
	if err != nil {
		return err
	}

	for _, r := range orders {
		c.post(bus.OrderStatusReportEvent, r)
	}
	for _, r := range fills {
		c.post(bus.FillReportEvent, r)
	}
	for _, r := range positions {
		c.post(bus.PositionStatusReportEvent, r)
	}

	c.logger.Info("reconciled",
		zap.Int("orders", len(orders)),
		zap.Int("fills", len(fills)),
		zap.Int("positions", len(positions)))
	return nil
}
