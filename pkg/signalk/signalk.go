// Package signalk decodes the SignalK delta stream format.
package signalk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
)

const (
	StreamPath  = "/signalk/v1/stream"
	DefaultPort = 3000
)

var (
	// ErrHello is returned by Parse for the server hello message that opens
	// every stream. It carries no data.
	ErrHello    = errors.New("signalk: server hello")
	ErrNotDelta = errors.New("signalk: not a delta message")
)

type Source struct {
	Label    string `json:"label,omitempty"`
	Type     string `json:"type,omitempty"`
	Src      string `json:"src,omitempty"`
	Talker   string `json:"talker,omitempty"`
	Sentence string `json:"sentence,omitempty"`
	PGN      int    `json:"pgn,omitempty"`
}

type Value struct {
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value"`
}

// Float returns the value as a number.
func (v Value) Float() (float64, error) {
	var f float64
	if err := json.Unmarshal(v.Value, &f); err != nil {
		return 0, fmt.Errorf("signalk: %s is not a number: %w", v.Path, err)
	}
	return f, nil
}

type Update struct {
	Source    *Source `json:"source,omitempty"`
	SourceRef string  `json:"$source,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
	Values    []Value `json:"values"`
}

type Delta struct {
	Context string   `json:"context,omitempty"`
	Updates []Update `json:"updates"`
}

// Paths returns every value path in the delta, in order.
func (d Delta) Paths() []string {
	var out []string
	for _, u := range d.Updates {
		for _, v := range u.Values {
			out = append(out, v.Path)
		}
	}
	return out
}

type Hello struct {
	Name      string   `json:"name,omitempty"`
	Version   string   `json:"version"`
	Self      string   `json:"self,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
}

type envelope struct {
	Delta
	Version *string `json:"version"`
	Self    *string `json:"self"`
}

// Parse decodes one stream message. A hello message returns ErrHello, any
// other non-delta message ErrNotDelta.
func Parse(b []byte) (Delta, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Delta{}, fmt.Errorf("signalk: %w", err)
	}
	if env.Updates == nil {
		if env.Version != nil || env.Self != nil {
			return Delta{}, ErrHello
		}
		return Delta{}, ErrNotDelta
	}
	return env.Delta, nil
}

// ParseHello decodes a server hello message.
func ParseHello(b []byte) (Hello, error) {
	var h Hello
	if err := json.Unmarshal(b, &h); err != nil {
		return Hello{}, fmt.Errorf("signalk: %w", err)
	}
	return h, nil
}

// Marshal encodes a delta for sending to a server.
func Marshal(d Delta) ([]byte, error) {
	return json.Marshal(d)
}

// StreamURL returns the websocket stream endpoint of a server. A zero port
// selects DefaultPort.
func StreamURL(host string, port int) string {
	if port == 0 {
		port = DefaultPort
	}
	u := url.URL{
		Scheme:   "ws",
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     StreamPath,
		RawQuery: "subscribe=all",
	}
	return u.String()
}
