package exchange

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fusionbot-go/internal/market"
)

// KlineEvent is one decoded kline update. Bar.Closed marks the final update
// of an interval.
type KlineEvent struct {
	Instrument string
	Timeframe  string
	Bar        market.Bar
}

// encoding/json falls back to case-insensitive key matching, so every
// upper-case Binance key that shadows a lower-case one needs its own field.
type binanceKlineMessage struct {
	Event     string       `json:"e"`
	EventTime int64        `json:"E"`
	Symbol    string       `json:"s"`
	Kline     binanceKline `json:"k"`
}

type binanceKline struct {
	OpenTime       int64  `json:"t"`
	CloseTime      int64  `json:"T"`
	Symbol         string `json:"s"`
	Interval       string `json:"i"`
	FirstTradeID   int64  `json:"f"`
	LastTradeID    int64  `json:"L"`
	Open           string `json:"o"`
	Close          string `json:"c"`
	High           string `json:"h"`
	Low            string `json:"l"`
	Volume         string `json:"v"`
	Trades         int64  `json:"n"`
	Closed         bool   `json:"x"`
	QuoteVolume    string `json:"q"`
	TakerBuyVolume string `json:"V"`
	TakerBuyQuote  string `json:"Q"`
	Ignore         string `json:"B"`
}

var errNotKline = errors.New("not a kline event")

// DecodeKline parses a Binance futures kline websocket payload.
func DecodeKline(message []byte) (KlineEvent, error) {
	var msg binanceKlineMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return KlineEvent{}, fmt.Errorf("decode kline: %w", err)
	}
	if msg.Event != "kline" {
		return KlineEvent{}, errNotKline
	}
	k := msg.Kline
	bar, err := parseOHLCV(k.OpenTime, k.Open, k.High, k.Low, k.Close, k.Volume)
	if err != nil {
		return KlineEvent{}, err
	}
	bar.Closed = k.Closed
	return KlineEvent{
		Instrument: strings.ToUpper(msg.Symbol),
		Timeframe:  k.Interval,
		Bar:        bar,
	}, nil
}

func parseOHLCV(openTime int64, o, h, l, c, v string) (market.Bar, error) {
	var vals [5]float64
	for i, s := range [...]string{o, h, l, c, v} {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("parse kline field %d: %w", i, err)
		}
		vals[i] = f
	}
	bar := market.Bar{
		OpenTime: time.UnixMilli(openTime).UTC(),
		Open:     vals[0],
		High:     vals[1],
		Low:      vals[2],
		Close:    vals[3],
		Volume:   vals[4],
	}
	if !bar.Valid() {
		return market.Bar{}, fmt.Errorf("kline %d fails OHLC invariants", openTime)
	}
	return bar, nil
}
