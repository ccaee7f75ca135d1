package exchange

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Request and push channel names of the MEXC contract websocket protocol.
const (
	methodSubscribeDeals = "sub.deal"
	methodPing           = "ping"

	channelDeals        = "push.deal"
	channelPong         = "pong"
	channelSubscribeAck = "rs.sub.deal"
	channelError        = "rs.error"
)

var errNoValidDeals = errors.New("deal push contains no valid deals")

// subscribeRequest subscribes to the public deal stream of one symbol.
type subscribeRequest struct {
	Method string         `json:"method"`
	Param  subscribeParam `json:"param"`
}

type subscribeParam struct {
	Symbol string `json:"symbol"`
}

// pingRequest is the application-level heartbeat.
type pingRequest struct {
	Method string `json:"method"`
}

// frame is the envelope of every message pushed by the edge endpoint.
type frame struct {
	Channel string `mapstructure:"channel"`
	Symbol  string `mapstructure:"symbol"`
	Data    any    `mapstructure:"data"`
}

// deal is a single trade execution inside a push.deal frame.
// Only the price is used; the exchange timestamp is kept for debugging.
type deal struct {
	Price     float64 `mapstructure:"p"`
	Timestamp int64   `mapstructure:"t"`
}

// decodeFrame parses a raw websocket message into a frame.
// Decoding is weakly typed to tolerate number-or-string field encodings.
func decodeFrame(raw []byte) (frame, error) {
	var jsonData map[string]any
	if err := json.Unmarshal(raw, &jsonData); err != nil {
		return frame{}, fmt.Errorf("message is not valid JSON: %v", err)
	}

	var f frame
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &f,
	})
	if err != nil {
		return frame{}, fmt.Errorf("failed to create frame decoder: %v", err)
	}
	if err := decoder.Decode(jsonData); err != nil {
		return frame{}, fmt.Errorf("message does not match the expected envelope: %v", err)
	}
	return f, nil
}

// decodeDeals parses the data field of a push.deal frame.
func decodeDeals(data any) ([]deal, error) {
	var deals []deal
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &deals,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create deals decoder: %v", err)
	}
	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("deal data does not match the expected structure: %v", err)
	}

	valid := deals[:0]
	for _, d := range deals {
		if d.Price <= 0 {
			continue
		}
		valid = append(valid, d)
	}
	if len(valid) == 0 {
		return nil, errNoValidDeals
	}
	return valid, nil
}
