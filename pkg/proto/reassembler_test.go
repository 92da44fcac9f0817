package proto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type collectHandler struct {
	msgs []*Message
	fail func(*Message) error
}

func (h *collectHandler) HandleMessage(msg *Message) error {
	if h.fail != nil {
		if err := h.fail(msg); err != nil {
			return err
		}
	}
	h.msgs = append(h.msgs, msg)
	return nil
}

func encodeAll(t *testing.T, dir Direction, msgs ...*Message) []byte {
	var stream []byte
	for _, msg := range msgs {
		data, err := msg.Encode(dir)
		require.NoError(t, err)
		stream = append(stream, data...)
	}
	return stream
}

func testMessages() []*Message {
	return []*Message{
		{MsgSetPinDigitalOut, &SetPinDigitalOutArgs{Pin: 3, Value: true}},
		{MsgSoftReset, &SoftResetArgs{}},
		{MsgUARTData, &UARTDataArgs{UART: 1, Data: []byte{1, 2, 3, 4, 5}}},
		{MsgUARTConfig, &UARTConfigArgs{UART: 0, Rate: 103, Speed4x: true}},
		{MsgHardReset, &HardResetArgs{Magic: ProtocolMagic}},
	}
}

// partitions of the same stream must yield identical messages
func TestReassemblerChunkingInvariance(t *testing.T) {
	expect := testMessages()
	stream := encodeAll(t, Incoming, expect...)

	testCases := []struct {
		name  string
		chunk int
	}{
		{"whole stream", len(stream)},
		{"one byte at a time", 1},
		{"two bytes", 2},
		{"three bytes", 3},
		{"seven bytes", 7},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := &collectHandler{}
			r := Reassembler{Dir: Incoming, Handler: handler}
			r.Reset()
			for off := 0; off < len(stream); off += tc.chunk {
				end := off + tc.chunk
				if end > len(stream) {
					end = len(stream)
				}
				require.NoError(t, r.Deliver(stream[off:end]))
			}
			require.Equal(t, expect, handler.msgs)
		})
	}
}

func TestReassemblerCompletenessGating(t *testing.T) {
	msg := &Message{MsgUARTData, &UARTDataArgs{UART: 0, Data: []byte{9, 8, 7}}}
	stream := encodeAll(t, Incoming, msg)

	handler := &collectHandler{}
	r := Reassembler{Dir: Incoming, Handler: handler}
	r.Reset()

	// all but the last byte produces zero dispatches
	require.NoError(t, r.Deliver(stream[:len(stream)-1]))
	require.Empty(t, handler.msgs)

	// the final byte completes exactly one message
	require.NoError(t, r.Deliver(stream[len(stream)-1:]))
	require.Equal(t, []*Message{msg}, handler.msgs)
}

func TestReassemblerZeroArgMessage(t *testing.T) {
	// a type with no fixed and no variable args completes the
	// instant its tag is read
	handler := &collectHandler{}
	r := Reassembler{Dir: Incoming, Handler: handler}
	r.Reset()
	require.NoError(t, r.Deliver([]byte{byte(MsgSoftReset)}))
	require.Len(t, handler.msgs, 1)
	require.Equal(t, MsgSoftReset, handler.msgs[0].Type)
}

func TestReassemblerUnknownType(t *testing.T) {
	r := Reassembler{Dir: Incoming, Handler: &collectHandler{}}
	r.Reset()
	err := r.Deliver([]byte{0x7f})
	require.Error(t, err)
	require.IsType(t, &UnknownTypeError{}, err)
}

func TestReassemblerRejectStopsChunk(t *testing.T) {
	reject := &ValidationError{Type: MsgSetPinDigitalOut, Field: "pin", Value: 63}
	handler := &collectHandler{
		fail: func(msg *Message) error {
			if a, ok := msg.Args.(*SetPinDigitalOutArgs); ok && a.Pin == 63 {
				return reject
			}
			return nil
		},
	}
	r := Reassembler{Dir: Incoming, Handler: handler}
	r.Reset()

	stream := encodeAll(t, Incoming,
		&Message{MsgSoftReset, &SoftResetArgs{}},
		&Message{MsgSetPinDigitalOut, &SetPinDigitalOutArgs{Pin: 63}},
		&Message{MsgSoftReset, &SoftResetArgs{}},
	)
	err := r.Deliver(stream)
	require.Equal(t, reject, err)
	// the first message was dispatched, the rest of the chunk abandoned
	require.Len(t, handler.msgs, 1)

	// the cursor is back at await-type: a fresh message parses fine
	require.NoError(t, r.Deliver(encodeAll(t, Incoming,
		&Message{MsgSetPinAnalogIn, &SetPinAnalogInArgs{Pin: 4}})))
	require.Len(t, handler.msgs, 2)
}

func TestReassemblerOutgoingDirection(t *testing.T) {
	// the host reads the same catalog in the other direction,
	// including the format-then-status analog report pairing
	expect := []*Message{
		{MsgEstablishConnection, &EstablishConnectionArgs{
			Magic: ProtocolMagic, Hardware: HardwareVersion,
			Bootloader: BootloaderVersion, Firmware: FirmwareID,
		}},
		{MsgReportAnalogInFormat, &ReportAnalogInFormatArgs{Pins: []byte{40, 41, 42}}},
		{MsgReportAnalogInStatus, &ReportAnalogInStatusArgs{Samples: []byte{10, 20, 30}}},
		{MsgReportAnalogInFormat, &ReportAnalogInFormatArgs{Pins: []byte{5}}},
		{MsgReportAnalogInStatus, &ReportAnalogInStatusArgs{Samples: []byte{99}}},
		{MsgUARTReportTxStatus, &UARTReportTxStatusArgs{UART: 1, Space: 256}},
	}
	stream := encodeAll(t, Outgoing, expect...)

	for _, chunk := range []int{len(stream), 1} {
		handler := &collectHandler{}
		r := Reassembler{Dir: Outgoing, Handler: handler}
		r.Reset()
		for off := 0; off < len(stream); off += chunk {
			end := off + chunk
			if end > len(stream) {
				end = len(stream)
			}
			require.NoError(t, r.Deliver(stream[off:end]))
		}
		require.Equal(t, expect, handler.msgs)
	}
}

func TestReassemblerResetClearsAnalogFrame(t *testing.T) {
	handler := &collectHandler{}
	r := Reassembler{Dir: Outgoing, Handler: handler}
	r.Reset()
	// one format pairs every following status in the session
	require.NoError(t, r.Deliver(encodeAll(t, Outgoing,
		&Message{MsgReportAnalogInFormat, &ReportAnalogInFormatArgs{Pins: []byte{40, 41}}},
		&Message{MsgReportAnalogInStatus, &ReportAnalogInStatusArgs{Samples: []byte{1, 2}}},
		&Message{MsgReportAnalogInStatus, &ReportAnalogInStatusArgs{Samples: []byte{3, 4}}},
	)))
	require.Len(t, handler.msgs, 3)

	// a link reset starts a fresh session: the stale frame length
	// must not swallow bytes of the new stream
	r.Reset()
	require.NoError(t, r.Deliver(encodeAll(t, Outgoing,
		&Message{MsgReportAnalogInStatus, &ReportAnalogInStatusArgs{}},
		&Message{MsgSoftReset, &SoftResetArgs{}},
	)))
	require.Len(t, handler.msgs, 5)
	require.Equal(t, &Message{MsgReportAnalogInStatus, &ReportAnalogInStatusArgs{}}, handler.msgs[3])
	require.Equal(t, MsgSoftReset, handler.msgs[4].Type)
}

func TestReassemblerOversizedVarRun(t *testing.T) {
	// an analog format announcing more pins than any board has
	// cannot fit the reassembly buffer and must fail cleanly
	r := Reassembler{Dir: Outgoing, Handler: &collectHandler{}}
	r.Reset()
	err := r.Deliver([]byte{byte(MsgReportAnalogInFormat), 0xff})
	require.Error(t, err)
	require.IsType(t, &DecodeError{}, err)

	// and the stream state is reusable afterwards
	handler := &collectHandler{}
	r.Handler = handler
	require.NoError(t, r.Deliver(encodeAll(t, Outgoing,
		&Message{MsgSoftReset, &SoftResetArgs{}})))
	require.Len(t, handler.msgs, 1)
}
