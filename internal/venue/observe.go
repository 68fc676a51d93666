package venue

import (
	"context"
	"strconv"
	"time"

	"main/internal/schema"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"
)

// privatePush is a loose envelope over everything the private connection
// delivers. Op is set on request acks, Arg.Channel on channel pushes.
type privatePush struct {
	ID    string `json:"id"`
	Op    string `json:"op"`
	Code  string `json:"code"`
	Msg   string `json:"msg"`
	Event string `json:"event"`
	Arg   struct {
		Channel string `json:"channel"`
	} `json:"arg"`
	Data []pushRow `json:"data"`
}

type pushRow struct {
	OrderID   string `json:"ordId"`
	ClientOID string `json:"clOrdId"`
	SCode     string `json:"sCode"`
	SMsg      string `json:"sMsg"`

	State     string `json:"state"`
	AccFillSz string `json:"accFillSz"`
	AvgPx     string `json:"avgPx"`
	Side      string `json:"side"`
	PnL       string `json:"pnl"`
	FillTime  string `json:"fillTime"`
	UTime     string `json:"uTime"`
	CTime     string `json:"cTime"`

	UplRatio string `json:"uplRatio"`

	Details []struct {
		Ccy      string `json:"ccy"`
		AvailBal string `json:"availBal"`
	} `json:"details"`
}

// Observe consumes the private stream and fans events out to the handlers.
// It blocks until the context ends or the connection closes.
func (repo *Client) Observe(ctx context.Context) {
	ch, cancel := repo.wss.Subscribe()
	defer cancel()

	for {
		select {
		case <-sys.Shutdown():
			return
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}

			push, ok := ws.ReadMessage[privatePush](m)
			if !ok {
				continue
			}

			repo.dispatch(push)
		}
	}
}

func (repo *Client) dispatch(push privatePush) {
	switch {
	case push.Op == "order":
		repo.handleOrderAck(push)
	case push.Op == "cancel-order":
		repo.handleCancelAck(push)
	case push.Arg.Channel == "orders":
		repo.handleOrderUpdates(push)
	case push.Arg.Channel == "account":
		repo.handleAccount(push)
	case push.Arg.Channel == "positions":
		repo.handlePositions(push)
	}
}

func (repo *Client) handleOrderAck(push privatePush) {
	for _, row := range push.Data {
		if row.SCode != "" && row.SCode != "0" {
			logs.Errorf("order rejected by venue, code %s: %s", row.SCode, row.SMsg)
			continue
		}

		stateID, err := strconv.ParseUint(row.ClientOID, 10, 32)
		if err != nil {
			logs.Errorf("order ack carries unparsable clOrdId %q", row.ClientOID)
			continue
		}

		if repo.handlers.OnVenueAck != nil {
			repo.handlers.OnVenueAck(uint32(stateID), row.OrderID)
		}
	}
}

func (repo *Client) handleCancelAck(push privatePush) {
	for _, row := range push.Data {
		if row.SCode != "" && row.SCode != "0" {
			logs.Errorf("cancel rejected by venue, code %s: %s", row.SCode, row.SMsg)
			continue
		}

		if repo.handlers.OnCancelAck != nil {
			repo.handlers.OnCancelAck(row.OrderID)
		}
	}
}

func (repo *Client) handleOrderUpdates(push privatePush) {
	for _, row := range push.Data {
		fill, ok := parseOrderUpdate(row)
		if !ok {
			continue
		}

		if repo.handlers.OnFill != nil {
			repo.handlers.OnFill(fill)
		}
	}
}

// parseOrderUpdate converts one orders-channel row into a fill
// notification. The venue omits fillTime on non-fill transitions, so the
// timestamp falls back through uTime and cTime.
func parseOrderUpdate(row pushRow) (schema.FillNotification, bool) {
	side, err := schema.ParseSide(row.Side)
	if err != nil {
		logs.Errorf("order update on %s carries side %q", row.OrderID, row.Side)
		return schema.FillNotification{}, false
	}

	fill := schema.FillNotification{
		VenueOrderID:     row.OrderID,
		Side:             side,
		State:            schema.ParseOrderState(row.State),
		CumulativeFilled: parseFloatField(row.AccFillSz),
		AvgPrice:         parseFloatField(row.AvgPx),
		PnL:              parseFloatField(row.PnL),
		TimestampMs:      parseTimestamp(row),
	}
	return fill, true
}

func parseTimestamp(row pushRow) int64 {
	for _, raw := range []string{row.FillTime, row.UTime, row.CTime} {
		if ts, err := strconv.ParseInt(raw, 10, 64); err == nil && ts > 0 {
			return ts
		}
	}
	return time.Now().UnixMilli()
}

func (repo *Client) handleAccount(push privatePush) {
	for _, row := range push.Data {
		for _, detail := range row.Details {
			if detail.Ccy != "USDT" {
				continue
			}

			balance, err := strconv.ParseFloat(detail.AvailBal, 64)
			if err != nil {
				logs.Errorf("account push carries unparsable availBal %q", detail.AvailBal)
				continue
			}

			repo.balanceOnce.Do(func() { close(repo.balanceReady) })
			if repo.handlers.OnBalance != nil {
				repo.handlers.OnBalance(balance)
			}
		}
	}
}

func (repo *Client) handlePositions(push privatePush) {
	for _, row := range push.Data {
		switch row.UplRatio {
		case "", "null", "-":
			continue
		}

		ratio, err := strconv.ParseFloat(row.UplRatio, 64)
		if err != nil {
			logs.Errorf("position push carries unparsable uplRatio %q", row.UplRatio)
			continue
		}

		if repo.handlers.OnUplRatio != nil {
			repo.handlers.OnUplRatio(ratio)
		}
	}
}

func parseFloatField(raw string) float64 {
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}
