package exchange

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRESTFetcherDropsOpenBar(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	now := base.Add(3*time.Minute + 30*time.Second)

	var gotKey, gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-MBX-APIKEY")
		gotLimit = r.URL.Query().Get("limit")
		if r.URL.Path != "/fapi/v1/klines" || r.URL.Query().Get("symbol") != "ETHUSDT" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "[")
		for i := 0; i < 4; i++ {
			open := base.Add(time.Duration(i) * time.Minute)
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `[%d,"%d","%d","%d","%d","5.0",%d,"0",1,"0","0","0"]`,
				open.UnixMilli(), 100+i, 101+i, 99+i, 100+i, open.Add(time.Minute-time.Millisecond).UnixMilli())
		}
		fmt.Fprint(w, "]")
	}))
	defer srv.Close()

	f := NewRESTFetcher(RESTConfig{BaseURL: srv.URL, APIKey: "k1", RequestsPerSec: 100, Burst: 10}, zerolog.Nop())
	f.now = func() time.Time { return now }

	bars, err := f.Fetch(context.Background(), "ETHUSDT", "1m", 10)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("expected 3 closed bars, got %d", len(bars))
	}
	if bars[2].Close != 102 || !bars[2].Closed {
		t.Fatalf("unexpected last bar %+v", bars[2])
	}
	if gotKey != "k1" {
		t.Fatalf("expected api key header, got %q", gotKey)
	}
	if gotLimit != "11" {
		t.Fatalf("expected limit 11, got %s", gotLimit)
	}

	bars, err = f.Fetch(context.Background(), "ETHUSDT", "1m", 2)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(bars) != 2 || bars[1].Close != 102 {
		t.Fatalf("expected newest 2 bars, got %+v", bars)
	}
}

func TestRESTFetcherStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	f := NewRESTFetcher(RESTConfig{BaseURL: srv.URL}, zerolog.Nop())
	if _, err := f.Fetch(context.Background(), "BTCUSDT", "1m", 5); err == nil {
		t.Fatalf("expected status error")
	}
}
