package proto

// Message is one complete protocol unit: a type tag plus a typed
// argument payload. The payload type determines how the message is
// encoded and which direction(s) it is valid in.
type Message struct {
	Type MessageType
	Args Args
}

// Args is the typed argument payload of a Message. It is a closed
// set: every variant lives in this package, mirroring the catalog.
type Args interface {
	appendFixed(b []byte) []byte
}

// varArgs is implemented by payloads carrying a variable trailing
// byte run after the fixed arguments.
type varArgs interface {
	trailing() []byte
}

// EncodeTo appends the full wire encoding of the message for the
// given direction: tag, fixed arguments, then the trailing run if
// the payload has one.
func (m *Message) EncodeTo(b []byte, dir Direction) ([]byte, error) {
	b, err := m.encodeHead(b, dir)
	if err != nil {
		return nil, err
	}
	if va, ok := m.Args.(varArgs); ok {
		b = append(b, va.trailing()...)
	}
	return b, nil
}

// Encode returns the full wire encoding of the message.
func (m *Message) Encode(dir Direction) ([]byte, error) {
	return m.EncodeTo(make([]byte, 0, maxMessageBytes), dir)
}

// encodeHead appends the tag and fixed arguments only. The encoded
// lengths are checked against the catalog so a payload struct can
// never silently disagree with the size tables: a trailing run whose
// length does not match what the fixed arguments announce (an empty
// or oversized UART payload, a pin list longer than its count byte)
// is rejected before any byte reaches the stream.
func (m *Message) encodeHead(b []byte, dir Direction) ([]byte, error) {
	size, err := FixedArgSize(m.Type, dir)
	if err != nil {
		return nil, err
	}
	start := len(b)
	b = append(b, byte(m.Type))
	b = m.Args.appendFixed(b)
	if got := len(b) - start - 1; got != size {
		return nil, &DecodeError{Type: m.Type, Dir: dir, Len: got}
	}
	if va, ok := m.Args.(varArgs); ok {
		n := len(va.trailing())
		if want := varArgSize(m.Type, dir, b[start+1:]); want != varSizeTracked && want != n {
			return nil, &DecodeError{Type: m.Type, Dir: dir, Len: n}
		}
	}
	return b, nil
}

func bit(set bool, n uint) byte {
	if set {
		return 1 << n
	}
	return 0
}

func appendUint16(b []byte, v uint16) []byte {
	return append(b, byte(v), byte(v>>8))
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func getUint16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func getUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// HardResetArgs requests a full device reset. The magic must match
// ProtocolMagic or the request is rejected.
type HardResetArgs struct {
	Magic uint32
}

func (a *HardResetArgs) appendFixed(b []byte) []byte {
	return appendUint32(b, a.Magic)
}

// SoftResetArgs returns all pins and modules to their initial state.
type SoftResetArgs struct{}

func (a *SoftResetArgs) appendFixed(b []byte) []byte { return b }

// SetPinDigitalOutArgs configures a pin as digital output.
type SetPinDigitalOutArgs struct {
	Pin       byte
	Value     bool
	OpenDrain bool
}

func (a *SetPinDigitalOutArgs) appendFixed(b []byte) []byte {
	return append(b, a.Pin&0x3f|bit(a.Value, 6)|bit(a.OpenDrain, 7))
}

// SetDigitalOutLevelArgs sets the level of a digital output pin.
type SetDigitalOutLevelArgs struct {
	Pin   byte
	Value bool
}

func (a *SetDigitalOutLevelArgs) appendFixed(b []byte) []byte {
	return append(b, a.Pin&0x3f|bit(a.Value, 6))
}

// SetPinDigitalInArgs configures a pin as digital input with a pull
// mode (0 floating, 1 pull-up, 2 pull-down).
type SetPinDigitalInArgs struct {
	Pin  byte
	Pull byte
}

func (a *SetPinDigitalInArgs) appendFixed(b []byte) []byte {
	return append(b, a.Pin&0x3f|a.Pull<<6)
}

// SetChangeNotifyArgs enables or disables change notifications on a
// digital input pin.
type SetChangeNotifyArgs struct {
	Pin    byte
	Enable bool
}

func (a *SetChangeNotifyArgs) appendFixed(b []byte) []byte {
	return append(b, a.Pin&0x3f|bit(a.Enable, 6))
}

// RegisterPeriodicDigitalSamplingArgs registers a digital input pin
// for periodic sampling. FreqScale scales the base sampling rate; 0
// unregisters the pin.
type RegisterPeriodicDigitalSamplingArgs struct {
	Pin       byte
	FreqScale byte
}

func (a *RegisterPeriodicDigitalSamplingArgs) appendFixed(b []byte) []byte {
	return append(b, a.Pin&0x3f, a.FreqScale)
}

// ReservedArgs occupies the reserved tag. It is never dispatched.
type ReservedArgs struct {
	Raw byte
}

func (a *ReservedArgs) appendFixed(b []byte) []byte {
	return append(b, a.Raw)
}

// SetPinPWMArgs attaches a pin to a PWM module, or detaches it when
// PWM is PWMNone.
type SetPinPWMArgs struct {
	Pin byte
	PWM byte
}

func (a *SetPinPWMArgs) appendFixed(b []byte) []byte {
	return append(b, a.Pin&0x3f, a.PWM&0x0f)
}

// SetPWMDutyCycleArgs sets the duty cycle of a PWM module. Fraction
// holds sub-clock precision in quarters of a clock.
type SetPWMDutyCycleArgs struct {
	PWM      byte
	Fraction byte
	Duty     uint16
}

func (a *SetPWMDutyCycleArgs) appendFixed(b []byte) []byte {
	b = append(b, a.PWM&0x0f|a.Fraction<<4&0x30)
	return appendUint16(b, a.Duty)
}

// SetPWMPeriodArgs sets the period of a PWM module, optionally
// prescaled by 256.
type SetPWMPeriodArgs struct {
	PWM      byte
	Scale256 bool
	Period   uint16
}

func (a *SetPWMPeriodArgs) appendFixed(b []byte) []byte {
	b = append(b, a.PWM&0x0f|bit(a.Scale256, 4))
	return appendUint16(b, a.Period)
}

// SetPinAnalogInArgs configures a pin as analog input.
type SetPinAnalogInArgs struct {
	Pin byte
}

func (a *SetPinAnalogInArgs) appendFixed(b []byte) []byte {
	return append(b, a.Pin&0x3f)
}

// UARTDataArgs carries 1-64 raw bytes to or from a UART. The wire
// length field encodes len(Data)-1.
type UARTDataArgs struct {
	UART byte
	Data []byte
}

func (a *UARTDataArgs) appendFixed(b []byte) []byte {
	return append(b, byte(len(a.Data)-1)&0x3f|a.UART<<6)
}

func (a *UARTDataArgs) trailing() []byte { return a.Data }

// UARTConfigArgs configures a UART module. Rate is the raw divisor;
// Speed4x selects the 4x clock. Parity is 0 none, 1 even, 2 odd.
type UARTConfigArgs struct {
	UART        byte
	Rate        uint16
	Speed4x     bool
	TwoStopBits bool
	Parity      byte
}

func (a *UARTConfigArgs) appendFixed(b []byte) []byte {
	b = append(b, a.UART&0x03|a.Parity<<2&0x0c|bit(a.TwoStopBits, 4)|bit(a.Speed4x, 5))
	return appendUint16(b, a.Rate)
}

// SetPinUARTRxArgs attaches or detaches a pin as a UART receive pin.
type SetPinUARTRxArgs struct {
	Pin    byte
	UART   byte
	Enable bool
}

func (a *SetPinUARTRxArgs) appendFixed(b []byte) []byte {
	return append(b, a.Pin&0x3f, a.UART&0x03|bit(a.Enable, 7))
}

// SetPinUARTTxArgs attaches or detaches a pin as a UART transmit pin.
type SetPinUARTTxArgs struct {
	Pin    byte
	UART   byte
	Enable bool
}

func (a *SetPinUARTTxArgs) appendFixed(b []byte) []byte {
	return append(b, a.Pin&0x3f, a.UART&0x03|bit(a.Enable, 7))
}

// Outgoing-only payloads.

// EstablishConnectionArgs is the identification handshake sent once
// after initialization.
type EstablishConnectionArgs struct {
	Magic      uint32
	Hardware   byte
	Bootloader byte
	Firmware   uint32
}

func (a *EstablishConnectionArgs) appendFixed(b []byte) []byte {
	b = appendUint32(b, a.Magic)
	b = append(b, a.Hardware, a.Bootloader)
	return appendUint32(b, a.Firmware)
}

// ReportDigitalInStatusArgs reports the level of a digital input pin.
type ReportDigitalInStatusArgs struct {
	Pin   byte
	Level bool
}

func (a *ReportDigitalInStatusArgs) appendFixed(b []byte) []byte {
	return append(b, a.Pin&0x3f|bit(a.Level, 6))
}

// ReportAnalogInFormatArgs announces the set and order of analog
// input pins reported by subsequent ReportAnalogInStatus messages.
type ReportAnalogInFormatArgs struct {
	Pins []byte
}

func (a *ReportAnalogInFormatArgs) appendFixed(b []byte) []byte {
	return append(b, byte(len(a.Pins)))
}

func (a *ReportAnalogInFormatArgs) trailing() []byte { return a.Pins }

// ReportAnalogInStatusArgs carries one sample per pin of the last
// reported format, in format order.
type ReportAnalogInStatusArgs struct {
	Samples []byte
}

func (a *ReportAnalogInStatusArgs) appendFixed(b []byte) []byte { return b }

func (a *ReportAnalogInStatusArgs) trailing() []byte { return a.Samples }

// UARTReportTxStatusArgs reports free transmit buffer space of a
// UART, in bytes.
type UARTReportTxStatusArgs struct {
	UART  byte
	Space uint16
}

func (a *UARTReportTxStatusArgs) appendFixed(b []byte) []byte {
	return appendUint16(b, a.Space<<2|uint16(a.UART)&0x03)
}

// decodeMessage builds a typed Message from raw payload bytes whose
// lengths were already established by the catalog.
func decodeMessage(t MessageType, dir Direction, fixed, trailing []byte) (*Message, error) {
	msg := &Message{Type: t}
	switch t {
	case MsgHardReset: // MsgEstablishConnection
		if dir == Incoming {
			msg.Args = &HardResetArgs{Magic: getUint32(fixed)}
		} else {
			msg.Args = &EstablishConnectionArgs{
				Magic:      getUint32(fixed),
				Hardware:   fixed[4],
				Bootloader: fixed[5],
				Firmware:   getUint32(fixed[6:]),
			}
		}
	case MsgSoftReset:
		msg.Args = &SoftResetArgs{}
	case MsgSetPinDigitalOut:
		msg.Args = &SetPinDigitalOutArgs{
			Pin:       fixed[0] & 0x3f,
			Value:     fixed[0]&(1<<6) != 0,
			OpenDrain: fixed[0]&(1<<7) != 0,
		}
	case MsgSetDigitalOutLevel: // MsgReportDigitalInStatus
		if dir == Incoming {
			msg.Args = &SetDigitalOutLevelArgs{
				Pin:   fixed[0] & 0x3f,
				Value: fixed[0]&(1<<6) != 0,
			}
		} else {
			msg.Args = &ReportDigitalInStatusArgs{
				Pin:   fixed[0] & 0x3f,
				Level: fixed[0]&(1<<6) != 0,
			}
		}
	case MsgSetPinDigitalIn:
		msg.Args = &SetPinDigitalInArgs{
			Pin:  fixed[0] & 0x3f,
			Pull: fixed[0] >> 6,
		}
	case MsgSetChangeNotify:
		msg.Args = &SetChangeNotifyArgs{
			Pin:    fixed[0] & 0x3f,
			Enable: fixed[0]&(1<<6) != 0,
		}
	case MsgRegisterPeriodicDigitalSampling:
		msg.Args = &RegisterPeriodicDigitalSamplingArgs{
			Pin:       fixed[0] & 0x3f,
			FreqScale: fixed[1],
		}
	case MsgReserved:
		msg.Args = &ReservedArgs{Raw: fixed[0]}
	case MsgSetPinPWM: // MsgReportAnalogInFormat
		if dir == Incoming {
			msg.Args = &SetPinPWMArgs{
				Pin: fixed[0] & 0x3f,
				PWM: fixed[1] & 0x0f,
			}
		} else {
			msg.Args = &ReportAnalogInFormatArgs{Pins: dup(trailing)}
		}
	case MsgSetPWMDutyCycle: // MsgReportAnalogInStatus
		if dir == Incoming {
			msg.Args = &SetPWMDutyCycleArgs{
				PWM:      fixed[0] & 0x0f,
				Fraction: fixed[0] >> 4 & 0x03,
				Duty:     getUint16(fixed[1:]),
			}
		} else {
			msg.Args = &ReportAnalogInStatusArgs{Samples: dup(trailing)}
		}
	case MsgSetPWMPeriod: // MsgUARTReportTxStatus
		if dir == Incoming {
			msg.Args = &SetPWMPeriodArgs{
				PWM:      fixed[0] & 0x0f,
				Scale256: fixed[0]&(1<<4) != 0,
				Period:   getUint16(fixed[1:]),
			}
		} else {
			v := getUint16(fixed)
			msg.Args = &UARTReportTxStatusArgs{
				UART:  byte(v) & 0x03,
				Space: v >> 2,
			}
		}
	case MsgSetPinAnalogIn:
		msg.Args = &SetPinAnalogInArgs{Pin: fixed[0] & 0x3f}
	case MsgUARTData:
		if want := int(fixed[0]&0x3f) + 1; len(trailing) != want {
			return nil, &DecodeError{Type: t, Dir: dir, Len: len(trailing)}
		}
		msg.Args = &UARTDataArgs{
			UART: fixed[0] >> 6,
			Data: dup(trailing),
		}
	case MsgUARTConfig:
		msg.Args = &UARTConfigArgs{
			UART:        fixed[0] & 0x03,
			Parity:      fixed[0] >> 2 & 0x03,
			TwoStopBits: fixed[0]&(1<<4) != 0,
			Speed4x:     fixed[0]&(1<<5) != 0,
			Rate:        getUint16(fixed[1:]),
		}
	case MsgSetPinUARTRx:
		msg.Args = &SetPinUARTRxArgs{
			Pin:    fixed[0] & 0x3f,
			UART:   fixed[1] & 0x03,
			Enable: fixed[1]&(1<<7) != 0,
		}
	case MsgSetPinUARTTx:
		msg.Args = &SetPinUARTTxArgs{
			Pin:    fixed[0] & 0x3f,
			UART:   fixed[1] & 0x03,
			Enable: fixed[1]&(1<<7) != 0,
		}
	default:
		return nil, &UnknownTypeError{Type: t}
	}
	return msg, nil
}

// dup copies trailing bytes out of the reassembly buffer, which is
// reused for the next message as soon as the handler returns.
func dup(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
