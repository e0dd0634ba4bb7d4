package navcomm

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/roffe/navcomm/pkg/signalk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const skDelta = `{"context":"vessels.urn:mrn:imo:mmsi:234567890","updates":[{"source":{"label":"N2K","pgn":128267},"values":[{"path":"environment.depth.belowTransducer","value":3.5}]}]}`

func TestSignalKDriver(t *testing.T) {
	received := make(chan []byte, 4)
	paths := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"name":"signalk-server","version":"2.8.0","self":"vessels.self","roles":["master"]}`))
		conn.WriteMessage(websocket.TextMessage, []byte(skDelta))
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- msg
		}
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	netPort, err := strconv.Atoi(port)
	require.NoError(t, err)

	events := make(chan Event, 32)
	c, _ := newTestCore(t, WithStatusFunc(func(e Event) { events <- e }))
	msgs := collect(t, c, SubscriptionKey{Bus: BusSignalK})
	d, err := MakeDriver(context.Background(), &ConnectionParams{
		Transport: TransportNetwork,
		Protocol:  ProtocolSignalK,
		Host:      host,
		NetPort:   netPort,
	}, c)
	require.NoError(t, err)

	select {
	case p := <-paths:
		assert.Equal(t, signalk.StreamPath, p)
	case <-time.After(waitTimeout):
		t.Fatal("driver never connected")
	}

	m := next(t, msgs)
	assert.Equal(t, BusSignalK, m.Bus())
	p := m.Payload().(*SignalKPayload)
	assert.Equal(t, []string{"environment.depth.belowTransducer"}, p.Delta().Paths())
	// the hello is reported, not published
	assertNone(t, msgs, 50*time.Millisecond)

	deadline := time.After(waitTimeout)
	for hello := false; !hello; {
		select {
		case e := <-events:
			if e.Type == EventTypeInfo {
				hello = true
				assert.Contains(t, e.Details, "2.8.0")
			}
		case <-deadline:
			t.Fatal("server hello was not reported")
		}
	}

	waitState(t, d, StateConnected)
	require.NoError(t, d.SendMessage(context.Background(), m, d.Addr()))
	select {
	case got := <-received:
		assert.JSONEq(t, skDelta, string(got))
	case <-time.After(waitTimeout):
		t.Fatal("nothing sent")
	}

	// websocket reads have no timeout, close must interrupt them
	start := time.Now()
	require.NoError(t, c.Registry.Deactivate(d))
	assert.Less(t, time.Since(start), time.Second)
}
