package feed

import (
	"context"
	"strconv"

	"main/internal/schema"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"
)

const _okxPublicWsUrl = "wss://ws.okx.com:8443/ws/v5/public"

// OkxPub is the OKX public market data connection.
type OkxPub struct {
	wss *ws.WebSocket
}

func NewOkxPub(ctx context.Context, url string) *OkxPub {
	if url == "" {
		url = _okxPublicWsUrl
	}
	return &OkxPub{
		wss: ws.New(ctx, url),
	}
}

func (repo *OkxPub) Close() {
	repo.wss.Close()
}

func (repo *OkxPub) StartWebsocket(ctx context.Context) error {
	if err := repo.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}

	return nil
}

type OkxSubscribeRequest struct {
	Op   string            `json:"op"`
	Args []OkxSubscribeArg `json:"args"`
}

type OkxSubscribeArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type OkxSubscribeResponse struct {
	Event string          `json:"event"`
	Arg   OkxSubscribeArg `json:"arg"`
	Msg   string          `json:"msg"`
}

// SubscribeBooks subscribes the 400-level 'books' channel.
func (repo *OkxPub) SubscribeBooks(ctx context.Context, instID string) error {
	appendIntoRegister := true
	if err := repo.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			payload := OkxSubscribeRequest{
				Op: "subscribe",
				Args: []OkxSubscribeArg{
					{Channel: "books", InstID: instID},
				},
			}

			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}

			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			var resp OkxSubscribeResponse
			if err := m.Unmarshal(&resp); err != nil || resp.Arg.Channel != "books" {
				return false, nil
			}

			if resp.Event == "error" {
				return false, errors.Errorf("subscribe and wait, err: %s", resp.Msg)
			}
			return resp.Event == "subscribe", nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}

	return nil
}

// OkxBooks is one push on the books channel. Rows are
// (price, volume, liquidations, orders); the third entry is unused.
type OkxBooks struct {
	Arg    OkxSubscribeArg `json:"arg"`
	Action string          `json:"action"` // snapshot | update
	Data   []struct {
		Asks [][]decimal.Decimal `json:"asks"`
		Bids [][]decimal.Decimal `json:"bids"`
		Ts   string              `json:"ts"`
	} `json:"data"`
}

// ObserveBooks delivers decoded books pushes to handler until unsubscribed.
// Event frames and malformed rows are skipped.
func (repo *OkxPub) ObserveBooks(ctx context.Context, handler func(b OkxBooks)) (unsubscribe func()) {
	ch, cancel := repo.wss.Subscribe()

	go func() {
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

				resp, ok := ws.ReadMessage[OkxBooks](m)
				if !ok || resp.Arg.Channel != "books" || len(resp.Data) == 0 {
					continue
				}

				handler(resp)
			}
		}
	}()

	return cancel
}

// ParseLevels converts raw book rows into price levels. Rows with fewer
// than four entries are dropped and logged.
func ParseLevels(rows [][]decimal.Decimal) []schema.PriceLevel {
	levels := make([]schema.PriceLevel, 0, len(rows))
	for _, row := range rows {
		if len(row) < 4 {
			logs.Errorf("malformed book row with %d entries dropped", len(row))
			continue
		}

		price, err := strconv.ParseFloat(row[0].String(), 64)
		if err != nil {
			logs.Errorf("malformed book price %q dropped", row[0].String())
			continue
		}
		volume, err := strconv.ParseFloat(row[1].String(), 64)
		if err != nil {
			logs.Errorf("malformed book volume %q dropped", row[1].String())
			continue
		}
		orders, err := strconv.ParseFloat(row[3].String(), 64)
		if err != nil {
			logs.Errorf("malformed book order count %q dropped", row[3].String())
			continue
		}

		levels = append(levels, schema.PriceLevel{Price: price, Volume: volume, Orders: orders})
	}
	return levels
}
