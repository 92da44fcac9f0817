package proto

// The catalog defines, per message type and direction, the fixed
// argument byte count and the rule for the variable trailing length.
// It is the single extension point of the protocol: a new message
// type adds a tag in types.go, an entry in each size table, and a
// case in the codec (message.go) and dispatcher.

// Fixed argument sizes indexed by tag, host to board.
var incomingArgSize = [MessageTypeLimit]int{
	4, // HardReset: magic
	0, // SoftReset
	1, // SetPinDigitalOut
	1, // SetDigitalOutLevel
	1, // SetPinDigitalIn
	1, // SetChangeNotify
	2, // RegisterPeriodicDigitalSampling
	1, // Reserved
	2, // SetPinPWM
	3, // SetPWMDutyCycle
	3, // SetPWMPeriod
	1, // SetPinAnalogIn
	1, // UARTData (+ variable payload)
	3, // UARTConfig
	2, // SetPinUARTRx
	2, // SetPinUARTTx
}

// Fixed argument sizes indexed by tag, board to host.
var outgoingArgSize = [MessageTypeLimit]int{
	10, // EstablishConnection: magic, hardware, bootloader, firmware
	0,  // SoftReset
	1,  // SetPinDigitalOut
	1,  // ReportDigitalInStatus
	1,  // SetPinDigitalIn
	1,  // SetChangeNotify
	2,  // RegisterPeriodicDigitalSampling
	1,  // Reserved
	1,  // ReportAnalogInFormat (+ pin list)
	0,  // ReportAnalogInStatus (+ sample run)
	2,  // UARTReportTxStatus
	1,  // SetPinAnalogIn
	1,  // UARTData (+ variable payload)
	3,  // UARTConfig
	2,  // SetPinUARTRx
	2,  // SetPinUARTTx
}

// FixedArgSize returns the fixed argument byte count of a message
// type in the given direction. A tag outside the catalog yields an
// UnknownTypeError.
func FixedArgSize(t MessageType, dir Direction) (int, error) {
	if t >= MessageTypeLimit {
		return 0, &UnknownTypeError{Type: t}
	}
	if dir == Incoming {
		return incomingArgSize[t], nil
	}
	return outgoingArgSize[t], nil
}

// varSizeTracked marks a variable length not derivable from the
// message's own fixed arguments; the reassembler supplies it from
// earlier stream state (see Reassembler.analogFrame).
const varSizeTracked = -1

// varArgSize returns the trailing variable byte count of a message,
// valid only once its fixed arguments are known.
func varArgSize(t MessageType, dir Direction, fixed []byte) int {
	switch {
	case t == MsgUARTData:
		// length field encodes actual length - 1
		return int(fixed[0]&0x3f) + 1
	case dir == Outgoing && t == MsgReportAnalogInFormat:
		return int(fixed[0])
	case dir == Outgoing && t == MsgReportAnalogInStatus:
		return varSizeTracked
	}
	return 0
}

// maxMessageBytes bounds a complete serialized message: tag plus the
// largest fixed argument block plus the largest variable run.
const maxMessageBytes = 1 + 10 + MaxUARTPayload
