package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chunkynosher/quicktabs/internal/logging"
)

func TestUpgradeDialSendReceive(t *testing.T) {
	received := make(chan []byte, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrade(w, r, "server", logging.Nop())
		require.NoError(t, err)
		defer conn.Close()
		conn.ReadLoop(context.Background(), func(payload []byte) {
			received <- payload
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):] + "/ws"
	client, err := Dial(context.Background(), wsURL, "client", logging.Nop())
	require.NoError(t, err)
	defer client.Close()

	err = client.Send(context.Background(), []byte("hello"))
	require.NoError(t, err)

	select {
	case payload := <-received:
		assert.Equal(t, "hello", string(payload))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server to receive message")
	}
}

func TestConnTargetSendRoundTrip(t *testing.T) {
	received := make(chan []byte, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrade(w, r, "server", logging.Nop())
		require.NoError(t, err)
		defer conn.Close()
		_, payload, err := conn.ws.ReadMessage()
		require.NoError(t, err)
		received <- payload
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):] + "/ws"
	client, err := Dial(context.Background(), wsURL, "client", logging.Nop())
	require.NoError(t, err)
	defer client.Close()

	target := client.Target()
	require.NoError(t, target.Send(context.Background(), []byte("payload")))

	select {
	case payload := <-received:
		assert.Equal(t, "payload", string(payload))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}
