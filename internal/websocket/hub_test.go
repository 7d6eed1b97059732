package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var flightKey = common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(zerolog.Nop())
	go hub.Run()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		srv.Close()
		hub.Stop()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func readNotification(t *testing.T, c *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_BroadcastsToAllAndFlightTopics(t *testing.T) {
	hub, srv := startHub(t)
	all := dial(t, srv, "")
	flight := dial(t, srv, "?flight="+flightKey.Hex())
	require.Eventually(t, func() bool {
		return hub.GetClientCount(TopicAll) == 1 && hub.GetClientCount(flightKey.Hex()) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Notify(ledger.Notification{
		ID:   uuid.New(),
		Seq:  7,
		Type: ledger.NotificationStatusResolved,
		Data: ledger.StatusResolved{FlightKey: flightKey, Flight: "ND1309", Status: ledger.StatusLateAirline},
	})

	msg := readNotification(t, all)
	assert.Equal(t, "flight-status-resolved", msg["type"])
	assert.Equal(t, float64(7), msg["seq"])

	msg = readNotification(t, flight)
	data := msg["data"].(map[string]any)
	assert.Equal(t, "ND1309", data["flight"])
	assert.Equal(t, float64(20), data["status"])
}

func TestHub_FlightTopicSkipsUnrelated(t *testing.T) {
	hub, srv := startHub(t)
	flight := dial(t, srv, "?flight="+flightKey.Hex())
	require.Eventually(t, func() bool { return hub.GetClientCount(flightKey.Hex()) == 1 }, time.Second, 10*time.Millisecond)

	hub.Notify(ledger.Notification{Seq: 1, Type: ledger.NotificationPayout, Data: ledger.PaidOut{Amount: "1"}})
	hub.Notify(ledger.Notification{Seq: 2, Type: ledger.NotificationFlightRegistered, Data: ledger.FlightRegistered{Key: flightKey}})

	msg := readNotification(t, flight)
	assert.Equal(t, float64(2), msg["seq"])
}

func TestHub_UnregistersClosedClients(t *testing.T) {
	hub, srv := startHub(t)
	c := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.GetClientCount(TopicAll) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, c.Close())
	assert.Eventually(t, func() bool { return hub.GetClientCount(TopicAll) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeWS_RejectsInvalidFlight(t *testing.T) {
	_, srv := startHub(t)

	resp, err := http.Get(srv.URL + "?flight=0x1234")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFlightKeyOf(t *testing.T) {
	key, ok := FlightKeyOf(ledger.Notification{Data: ledger.InsureeCredited{FlightKey: flightKey}})
	assert.True(t, ok)
	assert.Equal(t, flightKey, key)

	_, ok = FlightKeyOf(ledger.Notification{Data: ledger.VoteCast{}})
	assert.False(t, ok)
}
