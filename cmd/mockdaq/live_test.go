package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mockdaq/internal/config"
	"github.com/banshee-data/mockdaq/internal/live"
	"github.com/banshee-data/mockdaq/internal/sample"
)

// collector accepts one WebSocket and reports every message it read once the
// client goes away.
func collector(t *testing.T) (string, <-chan [][]byte) {
	t.Helper()
	received := make(chan [][]byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			received <- nil
			return
		}
		defer c.CloseNow()

		var msgs [][]byte
		for {
			typ, data, err := c.Read(r.Context())
			if err != nil {
				break
			}
			if typ == websocket.MessageBinary {
				msgs = append(msgs, data)
			}
		}
		received <- msgs
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ingest", received
}

func TestLive_StreamsToWebSocket(t *testing.T) {
	quiet(t)
	addr, received := collector(t)

	out, err := runCmd(t, "live", "-addr", addr, "-n", "3", "-interval", "1ms", "-seed", "7", "-lat", "44.56", "-lon", "-123.26")
	require.NoError(t, err)
	assert.Contains(t, out, "Live stream to "+addr+": 3 samples over 1 connection(s)")

	var msgs [][]byte
	select {
	case msgs = <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("collector received nothing")
	}

	require.Len(t, msgs, 4)
	assert.Equal(t, "S", string(msgs[0]))

	var prev string
	for _, raw := range msgs[1:] {
		var s sample.Sample
		require.NoError(t, json.Unmarshal(raw, &s))
		assert.InDelta(t, 44.56, s.Latitude, 1.01)
		assert.InDelta(t, -123.26, s.Longitude, 1.01)
		_, err := sample.ParseTimestamp(s.Timestamp)
		assert.NoError(t, err)
		assert.Greater(t, s.Timestamp, prev)
		prev = s.Timestamp
	}
}

func TestLive_CollectorUnreachable(t *testing.T) {
	quiet(t)
	out, err := runCmd(t, "live", "-addr", "ws://127.0.0.1:1/ws", "-max-tries", "1", "-retry-delay", "0s", "-n", "1")
	require.ErrorIs(t, err, live.ErrTriesExhausted)
	assert.Contains(t, out, "0 samples over 0 connection(s)")
}

func TestLive_FlagErrors(t *testing.T) {
	quiet(t)
	tests := []struct {
		args  []string
		field string
	}{
		{[]string{"-addr", "http://127.0.0.1:8080"}, "-addr"},
		{[]string{"-max-tries", "-1"}, "-max-tries"},
		{[]string{"-interval", "0s"}, "-interval"},
		{[]string{"-retry-delay", "-1s"}, "-retry-delay"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			_, err := runCmd(t, append([]string{"live"}, tt.args...)...)
			var cfgErr *config.ConfigError
			require.True(t, errors.As(err, &cfgErr), "want ConfigError, got %T: %v", err, err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}
