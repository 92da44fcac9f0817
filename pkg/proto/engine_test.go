package proto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeChannel captures transmissions and models the transport's
// ready signal: a submitted buffer is confirmed consumed only when
// the test says so.
type fakeChannel struct {
	ready bool
	sent  [][]byte
}

func (c *fakeChannel) Ready() bool { return c.ready }

func (c *fakeChannel) Transmit(data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)
	c.sent = append(c.sent, buf)
}

func newTestEngine(t *testing.T) (*Engine, *fakeDrivers) {
	drv := &fakeDrivers{space: 256}
	e := NewEngine(DefaultBoard, drv)
	require.NoError(t, e.Init())
	return e, drv
}

// pumpAll runs ticks until the queue is drained.
func pumpAll(e *Engine, ch *fakeChannel) {
	ch.ready = true
	for e.Pending() > 0 {
		e.Tasks(ch)
	}
}

func TestEngineInitHandshake(t *testing.T) {
	e, _ := newTestEngine(t)
	// the handshake is queued before any input is delivered
	want, err := (&Message{MsgEstablishConnection, &EstablishConnectionArgs{
		Magic:      ProtocolMagic,
		Hardware:   HardwareVersion,
		Bootloader: BootloaderVersion,
		Firmware:   FirmwareID,
	}}).Encode(Outgoing)
	require.NoError(t, err)
	require.Equal(t, len(want), e.Pending())

	ch := &fakeChannel{}
	pumpAll(e, ch)
	require.Equal(t, [][]byte{want}, ch.sent)
}

func TestEngineByteAtATimeScenario(t *testing.T) {
	e, drv := newTestEngine(t)
	ch := &fakeChannel{}
	pumpAll(e, ch) // drain the handshake
	ch.sent = nil

	msg := &Message{MsgSetPinDigitalOut, &SetPinDigitalOutArgs{Pin: 3, Value: true}}
	stream, err := msg.Encode(Incoming)
	require.NoError(t, err)
	for _, b := range stream {
		require.NoError(t, e.Deliver([]byte{b}))
	}

	// exactly one hardware call and one echo of the same payload
	require.Equal(t, []string{"SetPinDigitalOut(3,true,false)"}, drv.calls)
	pumpAll(e, ch)
	require.Equal(t, [][]byte{stream}, ch.sent)
}

func TestEngineHardResetBadMagic(t *testing.T) {
	e, drv := newTestEngine(t)
	ch := &fakeChannel{}
	pumpAll(e, ch)
	ch.sent = nil

	stream, err := (&Message{MsgHardReset, &HardResetArgs{Magic: 0xbad}}).Encode(Incoming)
	require.NoError(t, err)
	err = e.Deliver(stream)
	require.Error(t, err)
	require.Empty(t, drv.calls)
	require.Zero(t, e.Pending())
}

func TestEnginePumpSingleInFlight(t *testing.T) {
	e, _ := newTestEngine(t)
	ch := &fakeChannel{}

	// not ready: nothing moves
	e.Tasks(ch)
	require.Empty(t, ch.sent)

	handshake := e.Pending()
	ch.ready = true
	e.Tasks(ch)
	require.Len(t, ch.sent, 1)
	// in-flight bytes stay queued until the next ready tick
	require.Equal(t, handshake, e.Pending())

	// new data queued mid-flight is not re-peeked
	require.NoError(t, e.Send(&Message{MsgReportDigitalInStatus,
		&ReportDigitalInStatusArgs{Pin: 1, Level: true}}))
	before := len(ch.sent)
	ch.ready = false
	e.Tasks(ch)
	require.Len(t, ch.sent, before)

	// ready again: confirmed bytes are pulled, the next region goes out
	ch.ready = true
	e.Tasks(ch)
	require.Len(t, ch.sent, 2)
	require.Equal(t, []byte{byte(MsgReportDigitalInStatus), 0x41}, ch.sent[1])

	e.Tasks(ch)
	require.Zero(t, e.Pending())
}

func TestEngineInitResetsState(t *testing.T) {
	e, drv := newTestEngine(t)

	// leave a partial message in the reassembler and data in the queue
	require.NoError(t, e.Deliver([]byte{byte(MsgSetPinDigitalOut)}))
	require.NoError(t, e.Init())

	ch := &fakeChannel{}
	pumpAll(e, ch)
	// only the fresh handshake was queued
	require.Len(t, ch.sent, 1)
	require.Equal(t, byte(MsgEstablishConnection), ch.sent[0][0])

	// the reassembler is back at await-type: a whole message parses
	stream, err := (&Message{MsgSoftReset, &SoftResetArgs{}}).Encode(Incoming)
	require.NoError(t, err)
	require.NoError(t, e.Deliver(stream))
	require.Equal(t, []string{"SoftReset()"}, drv.calls)
}

func TestEngineSendRejectsBadEncoding(t *testing.T) {
	e, _ := newTestEngine(t)
	pending := e.Pending()
	err := e.Send(&Message{MsgUARTData, &UARTDataArgs{UART: 0}})
	require.Error(t, err)
	require.IsType(t, &DecodeError{}, err)
	// nothing reached the queue, so the stream stays well-formed
	require.Equal(t, pending, e.Pending())
}

func TestEngineQueueOverflow(t *testing.T) {
	e, _ := newTestEngine(t)
	// fill the queue with maximum-size UART reports; with nothing
	// draining, the producer eventually sees an explicit error
	msg := &Message{MsgUARTData, &UARTDataArgs{UART: 0, Data: make([]byte, MaxUARTPayload)}}
	var err error
	for i := 0; i < TxQueueCapacity; i++ {
		if err = e.Send(msg); err != nil {
			break
		}
	}
	require.Equal(t, ErrQueueOverflow, err)
}
