package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestActivityClient_Recent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/activity", r.URL.Path)
		assert.Equal(t, donorWallet, r.URL.Query().Get("user"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `[
			{"proxyWallet": "0xabc", "type": "TRADE", "side": "BUY", "price": 0.55,
			 "size": 10, "timestamp": 1700000095, "conditionId": "0xcond",
			 "outcomeIndex": 0, "outcome": "Up", "transactionHash": "0xtx"},
			{"proxyWallet": "0xabc", "type": "TRADE", "side": "SELL", "price": 0.60,
			 "size": 5, "timestamp": 1700000050, "conditionId": "0xcond",
			 "outcomeIndex": 1, "outcome": "Down", "transactionHash": "0xtx2"}
		]`)
	}))
	defer srv.Close()

	client := NewActivityClient(ActivityConfig{BaseURL: srv.URL, Logger: zap.NewNop()})

	records, err := client.Recent(context.Background(), donorWallet)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "BUY", records[0].Side)
	assert.Equal(t, int64(1700000095), records[0].Timestamp)
	assert.Equal(t, "0xtx2", records[1].TxRef())
}

func TestActivityClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewActivityClient(ActivityConfig{BaseURL: srv.URL})

	_, err := client.Recent(context.Background(), donorWallet)
	assert.Error(t, err)
}

func TestActivityClient_EmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	client := NewActivityClient(ActivityConfig{BaseURL: srv.URL})

	records, err := client.Recent(context.Background(), donorWallet)
	require.NoError(t, err)
	assert.Empty(t, records)
}
