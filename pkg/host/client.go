// Package host implements the host side of the board protocol: it
// encodes device-bound messages onto a connection and reassembles
// the board's outgoing stream with the same catalog, read in the
// other direction.
package host

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/ioboard.go/pkg/proto"
)

// Client speaks the protocol from the host end of a connection.
type Client struct {
	conn  io.ReadWriter
	msgCh chan *proto.Message

	writeLock sync.Mutex
	rx        proto.Reassembler
}

// NewClient wraps a connection to a board.
func NewClient(conn io.ReadWriter) *Client {
	c := &Client{
		conn:  conn,
		msgCh: make(chan *proto.Message, 16),
	}
	c.rx = proto.Reassembler{
		Dir:     proto.Outgoing,
		Handler: proto.HandleMessageFunc(c.handleMessage),
	}
	c.rx.Reset()
	return c
}

// Messages retrieves the chan reporting decoded board messages:
// the handshake, echoes, and status reports.
func (c *Client) Messages() <-chan *proto.Message {
	return c.msgCh
}

// Send encodes a device-bound message onto the connection. Safe for
// concurrent use.
func (c *Client) Send(msg *proto.Message) error {
	data, err := msg.Encode(proto.Incoming)
	if err != nil {
		return err
	}
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	_, err = c.conn.Write(data)
	return err
}

// Run reads the board's stream until the context is canceled or the
// connection drops. It implements Runnable.
func (c *Client) Run(ctx context.Context) error {
	buf := make([]byte, 256)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := c.conn.Read(buf)
		if err != nil {
			return err
		}
		if err = c.rx.Deliver(buf[:n]); err != nil {
			glog.Errorf("host: stream corrupted: %v", err)
			return err
		}
	}
}

func (c *Client) handleMessage(msg *proto.Message) error {
	select {
	case c.msgCh <- msg:
	default:
		// a slow consumer drops reports rather than stalling the link
		glog.V(1).Infof("host: dropped %v", msg.Type)
	}
	return nil
}
