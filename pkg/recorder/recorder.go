// Package recorder logs bus traffic to an SQLite database so it can be
// inspected or replayed later.
package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/roffe/navcomm"
	"github.com/roffe/navcomm/pkg/nmea2000"
	"github.com/sirupsen/logrus"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS messages (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	received INTEGER NOT NULL,
	bus      TEXT NOT NULL,
	iface    TEXT NOT NULL,
	payload  BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_bus ON messages (bus, received);`

const queueSize = 512

var ErrClosed = errors.New("recorder closed")

// entry is the CBOR encoded payload column.
type entry struct {
	Data   []byte           `cbor:"1,keyasint"`
	Header *nmea2000.Header `cbor:"2,keyasint,omitempty"`
}

type Recorder struct {
	db  *sql.DB
	log logrus.FieldLogger

	mu     sync.Mutex
	subs   []*navcomm.Subscription
	closed bool

	queue   chan *navcomm.NavMsg
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

func Open(path string, log logrus.FieldLogger) (*Recorder, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single writer, sqlite serializes anyway
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	r := &Recorder{
		db:    db,
		log:   log.WithField("recorder", path),
		queue: make(chan *navcomm.NavMsg, queueSize),
	}
	r.wg.Add(1)
	go r.writer()
	return r, nil
}

// Attach subscribes to every bus. Messages are written on a separate
// goroutine, a full queue drops them.
func (r *Recorder) Attach(bus *navcomm.NavMsgBus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	for _, b := range navcomm.Buses() {
		sub, err := bus.Subscribe(navcomm.SubscriptionKey{Bus: b}, r.enqueue)
		if err != nil {
			return err
		}
		r.subs = append(r.subs, sub)
	}
	return nil
}

func (r *Recorder) enqueue(msg *navcomm.NavMsg) {
	select {
	case r.queue <- msg:
	default:
		if n := r.dropped.Add(1); n == 1 || n%100 == 0 {
			r.log.Warnf("queue full, dropped %d messages", n)
		}
	}
}

func (r *Recorder) writer() {
	defer r.wg.Done()
	for msg := range r.queue {
		if err := r.Record(context.Background(), msg); err != nil {
			r.log.WithError(err).Error("record message")
		}
	}
}

// Record writes msg immediately.
func (r *Recorder) Record(ctx context.Context, msg *navcomm.NavMsg) error {
	if msg == nil || msg.Payload() == nil {
		return errors.New("record: empty message")
	}
	e := entry{Data: msg.Payload().Bytes()}
	if p, ok := msg.Payload().(*navcomm.N2KPayload); ok {
		h := p.Header()
		e.Header = &h
	}
	b, err := cbor.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		"INSERT INTO messages (received, bus, iface, payload) VALUES (?, ?, ?, ?)",
		msg.Received().UnixNano(), msg.Bus().String(), msg.Source().Iface(), b,
	)
	return err
}

func (r *Recorder) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&n)
	return n, err
}

func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Messages returns up to limit recorded messages of bus in the order they
// were recorded. BusUndefined selects every bus.
func (r *Recorder) Messages(ctx context.Context, bus navcomm.Bus, limit int) ([]*navcomm.NavMsg, error) {
	query := "SELECT received, bus, iface, payload FROM messages"
	var args []any
	if bus != navcomm.BusUndefined {
		query += " WHERE bus = ?"
		args = append(args, bus.String())
	}
	query += " ORDER BY id LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*navcomm.NavMsg
	for rows.Next() {
		var (
			received int64
			busName  string
			iface    string
			raw      []byte
		)
		if err := rows.Scan(&received, &busName, &iface, &raw); err != nil {
			return nil, err
		}
		msg, err := decode(received, busName, iface, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func decode(received int64, busName, iface string, raw []byte) (*navcomm.NavMsg, error) {
	b, err := navcomm.ParseBus(busName)
	if err != nil {
		return nil, err
	}
	var e entry
	if err := cbor.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	var p navcomm.Payload
	switch b {
	case navcomm.BusNMEA0183:
		p, err = navcomm.NewN0183Payload(string(e.Data))
	case navcomm.BusNMEA2000:
		if e.Header == nil {
			return nil, errors.New("nmea2000 record without header")
		}
		p = navcomm.NewN2KPayload(*e.Header, e.Data)
	case navcomm.BusSignalK:
		p, err = navcomm.NewSignalKPayload(e.Data)
	}
	if err != nil {
		return nil, err
	}
	return navcomm.NewNavMsg(navcomm.NewNavAddr(b, iface), p, time.Unix(0, received)), nil
}

// Close detaches from the bus, writes what is queued and closes the
// database.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	close(r.queue)
	r.wg.Wait()
	return r.db.Close()
}
