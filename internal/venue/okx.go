package venue

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"sync"
	"time"

	"main/internal/schema"
	"main/pkg/exception"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/ws"
)

const (
	_okxPrivateWsUrl = "wss://ws.okx.com:8443/ws/v5/private"

	_balanceWaitTimeout = 30 * time.Second
)

// Config holds the credentials and instrument the client trades.
type Config struct {
	ApiKey     string
	SecretKey  string
	Passphrase string
	Instrument string
	WsURL      string
}

// Handlers receive decoded private-channel events. Nil handlers are skipped.
type Handlers struct {
	OnFill      func(schema.FillNotification)
	OnVenueAck  func(stateID uint32, venueOrderID string)
	OnCancelAck func(venueOrderID string)
	OnBalance   func(balance float64)
	OnUplRatio  func(ratio float64)
}

// Client is the authenticated OKX order-entry connection.
type Client struct {
	wss      *ws.WebSocket
	cfg      Config
	handlers Handlers

	balanceOnce  sync.Once
	balanceReady chan struct{}
}

// NewClient creates a client. Handlers must be set before Observe.
func NewClient(ctx context.Context, cfg Config, handlers Handlers) *Client {
	url := cfg.WsURL
	if url == "" {
		url = _okxPrivateWsUrl
	}
	return &Client{
		wss:          ws.New(ctx, url),
		cfg:          cfg,
		handlers:     handlers,
		balanceReady: make(chan struct{}),
	}
}

func (repo *Client) Close() {
	repo.wss.Close()
}

func (repo *Client) StartWebsocket(ctx context.Context) error {
	if err := repo.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}

	return nil
}

// sign produces the OKX websocket login signature.
func (repo *Client) sign(timestamp string) string {
	mac := hmac.New(sha256.New, []byte(repo.cfg.SecretKey))
	mac.Write([]byte(timestamp + "GET" + "/users/self/verify"))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

type loginRequest struct {
	Op   string      `json:"op"`
	Args []loginArgs `json:"args"`
}

type loginArgs struct {
	ApiKey     string `json:"apiKey"`
	Passphrase string `json:"passphrase"`
	Timestamp  string `json:"timestamp"`
	Sign       string `json:"sign"`
}

type eventResponse struct {
	Event string `json:"event"`
	Code  string `json:"code"`
	Msg   string `json:"msg"`
	Arg   struct {
		Channel string `json:"channel"`
	} `json:"arg"`
}

// Login authenticates the connection.
func (repo *Client) Login(ctx context.Context) error {
	appendIntoRegister := true
	if err := repo.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			timestamp := fmt.Sprintf("%.3f", float64(time.Now().UnixMilli())/1000.0)
			payload := loginRequest{
				Op: "login",
				Args: []loginArgs{{
					ApiKey:     repo.cfg.ApiKey,
					Passphrase: repo.cfg.Passphrase,
					Timestamp:  timestamp,
					Sign:       repo.sign(timestamp),
				}},
			}

			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write login payload")
			}

			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			var resp eventResponse
			if err := m.Unmarshal(&resp); err != nil {
				return false, nil
			}

			if resp.Event == "error" {
				return false, errors.Errorf("login, code %s: %s", resp.Code, resp.Msg)
			}
			return resp.Event == "login", nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}

	return nil
}

type subscribeRequest struct {
	Op   string         `json:"op"`
	Args []subscribeArg `json:"args"`
}

type subscribeArg struct {
	Channel  string `json:"channel"`
	InstType string `json:"instType,omitempty"`
	InstID   string `json:"instId,omitempty"`
	Ccy      string `json:"ccy,omitempty"`
}

func (repo *Client) subscribe(ctx context.Context, arg subscribeArg) error {
	appendIntoRegister := true
	if err := repo.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			payload := subscribeRequest{Op: "subscribe", Args: []subscribeArg{arg}}
			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("channel", arg.Channel)
			}

			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			var resp eventResponse
			if err := m.Unmarshal(&resp); err != nil || resp.Arg.Channel != arg.Channel {
				return false, nil
			}

			if resp.Event == "error" {
				return false, errors.Errorf("subscribe %s, code %s: %s", arg.Channel, resp.Code, resp.Msg)
			}
			return resp.Event == "subscribe", nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}

	return nil
}

// SubscribeAll subscribes the orders, account and positions channels.
func (repo *Client) SubscribeAll(ctx context.Context) error {
	if err := repo.subscribe(ctx, subscribeArg{Channel: "orders", InstType: "SWAP", InstID: repo.cfg.Instrument}); err != nil {
		return errors.Wrap(err, "subscribe orders")
	}
	if err := repo.subscribe(ctx, subscribeArg{Channel: "account", Ccy: "USDT"}); err != nil {
		return errors.Wrap(err, "subscribe account")
	}
	if err := repo.subscribe(ctx, subscribeArg{Channel: "positions", InstType: "SWAP", InstID: repo.cfg.Instrument}); err != nil {
		return errors.Wrap(err, "subscribe positions")
	}

	return nil
}

type orderRequest struct {
	ID   string      `json:"id"`
	Op   string      `json:"op"`
	Args []orderArgs `json:"args"`
}

type orderArgs struct {
	InstID    string `json:"instId"`
	TdMode    string `json:"tdMode"`
	Side      string `json:"side"`
	OrdType   string `json:"ordType"`
	Size      string `json:"sz"`
	Price     string `json:"px,omitempty"`
	ClientOID string `json:"clOrdId"`
}

// PlaceOrder submits an order. The state ID rides along as the client order
// ID so the venue ack can be tied back to the placing action.
func (repo *Client) PlaceOrder(_ context.Context, stateID uint32, instrument, tradeMode string, side schema.Side, orderType schema.OrderType, size, price float64) bool {
	args := orderArgs{
		InstID:    instrument,
		TdMode:    tradeMode,
		Side:      side.String(),
		OrdType:   orderType.String(),
		Size:      strconv.FormatFloat(size, 'f', -1, 64),
		ClientOID: strconv.FormatUint(uint64(stateID), 10),
	}
	if orderType == schema.OrderTypeLimit {
		args.Price = strconv.FormatFloat(price, 'f', -1, 64)
	}

	payload := orderRequest{
		ID:   requestID(),
		Op:   "order",
		Args: []orderArgs{args},
	}
	if err := repo.wss.WriteJSON(payload); err != nil {
		logs.Errorf("write order failed: %v", err)
		return false
	}
	return true
}

type cancelRequest struct {
	ID   string       `json:"id"`
	Op   string       `json:"op"`
	Args []cancelArgs `json:"args"`
}

type cancelArgs struct {
	InstID  string `json:"instId"`
	OrderID string `json:"ordId"`
}

// CancelOrder requests cancellation of a venue order.
func (repo *Client) CancelOrder(_ context.Context, venueOrderID string) bool {
	payload := cancelRequest{
		ID: requestID(),
		Op: "cancel-order",
		Args: []cancelArgs{{
			InstID:  repo.cfg.Instrument,
			OrderID: venueOrderID,
		}},
	}
	if err := repo.wss.WriteJSON(payload); err != nil {
		logs.Errorf("write cancel failed: %v", err)
		return false
	}
	return true
}

// requestID yields a unique ws request ID. OKX accepts up to 32
// alphanumeric characters, so the UUID sheds its hyphens.
func requestID() string {
	id := uuid.New()
	return fmt.Sprintf("%x", id[:])
}

// WaitBalance blocks until the first account push lands or the startup
// timeout expires. Failure is fatal to process start.
func (repo *Client) WaitBalance(ctx context.Context) error {
	select {
	case <-repo.balanceReady:
		return nil
	case <-time.After(_balanceWaitTimeout):
		return exception.ErrBalanceNotReceived
	case <-ctx.Done():
		return ctx.Err()
	}
}
