// Package link runs a protocol engine over one byte-stream
// connection.
package link

import (
	"context"
	"io"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/ioboard.go/pkg/proto"
)

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// Ticker receives the link's scheduling tick, e.g. to advance a
// simulated board.
type Ticker interface {
	Tick()
}

// Resetter is consulted every tick; when it reports a pending reset
// the engine is reinitialized, standing in for the device rebooting
// and re-handshaking.
type Resetter interface {
	TakeHardReset() bool
}

// Link drives an Engine over an io.ReadWriter: received bytes feed
// the engine's delivery path, and on every tick the transmission
// pump and the optional Ticker run. A delivery failure tears the
// link down; the peer reconnects to recover.
type Link struct {
	Engine   *proto.Engine
	Conn     io.ReadWriter
	Interval time.Duration
	Ticker   Ticker
	Resetter Resetter
}

// streamChannel adapts an io.Writer to proto.Channel. Write is
// synchronous, so a submitted buffer is fully consumed by the time
// Transmit returns; Ready is true as long as no write failed.
type streamChannel struct {
	w   io.Writer
	err error
}

func (c *streamChannel) Ready() bool {
	return c.err == nil
}

func (c *streamChannel) Transmit(data []byte) {
	if c.err == nil {
		_, c.err = c.w.Write(data)
	}
}

// Run processes the link until the context is canceled, the
// connection drops, or the incoming stream is corrupted.
func (l *Link) Run(ctx context.Context) error {
	if err := l.Engine.Init(); err != nil {
		return err
	}
	interval := l.Interval
	if interval == 0 {
		interval = 10 * time.Millisecond
	}

	ch := &streamChannel{w: l.Conn}
	dataCh, errCh := make(chan []byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go l.readLoop(subCtx, dataCh, errCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case data := <-dataCh:
			if err := l.Engine.Deliver(data); err != nil {
				glog.Errorf("link: stream corrupted: %v", err)
				return err
			}
		case <-ticker.C:
			if l.Resetter != nil && l.Resetter.TakeHardReset() {
				glog.Info("link: hard reset, reinitializing")
				if err := l.Engine.Init(); err != nil {
					return err
				}
			}
			if l.Ticker != nil {
				l.Ticker.Tick()
			}
			l.Engine.Tasks(ch)
			if ch.err != nil {
				return ch.err
			}
		}
	}
}

func (l *Link) readLoop(ctx context.Context, dataCh chan []byte, errCh chan error) {
	buf := make([]byte, 256)
	for {
		n, err := l.Conn.Read(buf)
		if err != nil {
			errCh <- err
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case dataCh <- data:
		case <-ctx.Done():
			return
		}
	}
}
