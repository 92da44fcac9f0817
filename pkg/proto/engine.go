package proto

import (
	"sync"

	"github.com/golang/glog"
)

// Channel is the transport boundary the engine transmits through.
// Ready must report true only when the previously submitted buffer
// has been fully consumed, not merely that the channel is open: the
// pump relies on it to confirm in-flight bytes before dequeuing.
type Channel interface {
	Ready() bool
	Transmit(data []byte)
}

// Engine ties the reassembler, dispatcher, outgoing queue and
// transmission pump together for one link. Construct it once, call
// Init, then feed received bytes to Deliver and run Tasks on every
// scheduling tick.
type Engine struct {
	queue *ByteQueue
	rx    Reassembler
	disp  Dispatcher

	pumpLock sync.Mutex
	inflight int
}

// NewEngine creates an engine for a board and its drivers.
func NewEngine(board Board, drv Drivers) *Engine {
	e := &Engine{queue: NewByteQueue(TxQueueCapacity)}
	e.disp = Dispatcher{Board: board, Drivers: drv, Sender: e}
	e.rx = Reassembler{Dir: Incoming, Handler: &e.disp}
	e.rx.Reset()
	return e
}

// Board returns the board description the engine validates against.
func (e *Engine) Board() Board {
	return e.disp.Board
}

// Init resets all protocol state and enqueues the identification
// handshake, before any input is processed. Call it at startup and
// after any link reset.
func (e *Engine) Init() error {
	e.pumpLock.Lock()
	e.inflight = 0
	e.pumpLock.Unlock()
	e.rx.Reset()
	e.queue.Clear()
	return e.Send(&Message{
		Type: MsgEstablishConnection,
		Args: &EstablishConnectionArgs{
			Magic:      ProtocolMagic,
			Hardware:   HardwareVersion,
			Bootloader: BootloaderVersion,
			Firmware:   FirmwareID,
		},
	})
}

// Deliver feeds one chunk of received transport bytes into the frame
// reassembler, dispatching every message the chunk completes. A
// failure means the stream is corrupted; the caller owns recovery,
// typically by resetting the link and calling Init again.
//
// Deliver must be called from a single goroutine.
func (e *Engine) Deliver(data []byte) error {
	return e.rx.Deliver(data)
}

// Send serializes an outgoing message into the transmission queue.
// Safe for concurrent use from any call site. A message with a
// variable payload is pushed as header plus trailing run in one
// atomic queue operation.
func (e *Engine) Send(msg *Message) error {
	head, err := msg.encodeHead(make([]byte, 0, maxMessageBytes), Outgoing)
	if err != nil {
		return err
	}
	if va, ok := msg.Args.(varArgs); ok {
		err = e.queue.Push(head, va.trailing())
	} else {
		err = e.queue.Push(head)
	}
	if err != nil {
		glog.Errorf("send %v: %v", msg.Type, err)
		return err
	}
	glog.V(3).Infof("queued %v, %d bytes pending", msg.Type, e.queue.Len())
	return nil
}

// Tasks runs one transmission pump tick: confirm previously in-flight
// bytes if the channel consumed them, then submit the next head
// region of the queue. At most one transmission is in flight at a
// time, and bytes are dequeued only after the transport confirms
// them via Ready.
func (e *Engine) Tasks(ch Channel) {
	if !ch.Ready() {
		return
	}
	e.pumpLock.Lock()
	defer e.pumpLock.Unlock()
	if e.inflight > 0 {
		e.queue.Pull(e.inflight)
		e.inflight = 0
	}
	if data := e.queue.Peek(); len(data) > 0 {
		ch.Transmit(data)
		e.inflight = len(data)
	}
}

// Pending returns the number of bytes queued for transmission,
// including any in flight.
func (e *Engine) Pending() int {
	return e.queue.Len()
}
