package proto

// MessageType identifies the semantic kind of a protocol message.
// The tag space is shared by both directions; the payload shape of a
// tag depends on the direction it travels (see catalog.go).
type MessageType byte

// Incoming (host to board) message types, in catalog order.
const (
	MsgHardReset MessageType = iota
	MsgSoftReset
	MsgSetPinDigitalOut
	MsgSetDigitalOutLevel
	MsgSetPinDigitalIn
	MsgSetChangeNotify
	MsgRegisterPeriodicDigitalSampling
	MsgReserved
	MsgSetPinPWM
	MsgSetPWMDutyCycle
	MsgSetPWMPeriod
	MsgSetPinAnalogIn
	MsgUARTData
	MsgUARTConfig
	MsgSetPinUARTRx
	MsgSetPinUARTTx

	// MessageTypeLimit is one past the largest valid tag.
	MessageTypeLimit
)

// Outgoing (board to host) aliases for tags whose meaning differs by
// direction. Tags without an alias are echoed with identical payload.
const (
	MsgEstablishConnection   = MsgHardReset
	MsgReportDigitalInStatus = MsgSetDigitalOutLevel
	MsgReportAnalogInFormat  = MsgSetPinPWM
	MsgReportAnalogInStatus  = MsgSetPWMDutyCycle
	MsgUARTReportTxStatus    = MsgSetPWMPeriod
)

var messageTypeNames = [MessageTypeLimit]string{
	"HardReset/EstablishConnection",
	"SoftReset",
	"SetPinDigitalOut",
	"SetDigitalOutLevel/ReportDigitalInStatus",
	"SetPinDigitalIn",
	"SetChangeNotify",
	"RegisterPeriodicDigitalSampling",
	"Reserved",
	"SetPinPWM/ReportAnalogInFormat",
	"SetPWMDutyCycle/ReportAnalogInStatus",
	"SetPWMPeriod/UARTReportTxStatus",
	"SetPinAnalogIn",
	"UARTData",
	"UARTConfig",
	"SetPinUARTRx",
	"SetPinUARTTx",
}

// String implements fmt.Stringer.
func (t MessageType) String() string {
	if t < MessageTypeLimit {
		return messageTypeNames[t]
	}
	return "Invalid"
}

// Direction tells which way a message travels.
type Direction int

const (
	// Incoming is host to board.
	Incoming Direction = iota
	// Outgoing is board to host.
	Outgoing
)

// Protocol constants.
const (
	// ProtocolMagic identifies the protocol family. It is reported in
	// the identification handshake and must be presented by the host
	// to authorize a hard reset.
	ProtocolMagic uint32 = 0x4f494f49

	// HardwareVersion and BootloaderVersion are reported in the
	// identification handshake.
	HardwareVersion   byte = 2
	BootloaderVersion byte = 1

	// FirmwareID identifies this firmware build.
	FirmwareID uint32 = 0x00000001

	// PWMNone detaches a pin from any PWM module.
	PWMNone byte = 0xf

	// NumPullModes bounds the pull field: floating, pull-up, pull-down.
	NumPullModes byte = 3
	// NumParityModes bounds the parity field: none, even, odd.
	NumParityModes byte = 3

	// MaxUARTPayload is the largest byte run one UARTData message
	// carries. The wire length field encodes length-1 in 6 bits.
	MaxUARTPayload = 64

	// TxQueueCapacity is the outgoing queue size in bytes.
	TxQueueCapacity = 1024
)

// Board describes the capabilities the dispatcher validates
// arguments against.
type Board struct {
	NumPins  byte
	NumPWMs  byte
	NumUARTs byte
}

// DefaultBoard matches the reference hardware.
var DefaultBoard = Board{NumPins: 46, NumPWMs: 9, NumUARTs: 2}
