package proto

import (
	"github.com/golang/glog"
)

// Drivers is the hardware collaborator surface the dispatcher acts
// on. Implementations may assume every argument was validated; they
// are expected to be infallible at this layer.
type Drivers interface {
	// HardReset restarts the device. The link is expected to go down
	// and come back with a fresh handshake.
	HardReset()
	// SoftReset returns all pins and modules to their initial state.
	SoftReset()

	SetPinDigitalOut(pin byte, value, openDrain bool)
	SetDigitalOutLevel(pin byte, value bool)
	SetPinDigitalIn(pin byte, pull byte)
	SetChangeNotify(pin byte, enable bool)
	RegisterPeriodicDigitalSampling(pin byte, freqScale byte)
	SetPinAnalogIn(pin byte)

	SetPinPWM(pin byte, pwm byte)
	SetPWMDutyCycle(pwm byte, duty uint16, fraction byte)
	SetPWMPeriod(pwm byte, period uint16, scale256 bool)

	UARTTransmit(uart byte, data []byte)
	UARTConfig(uart byte, rate uint16, speed4x, twoStopBits bool, parity byte)
	SetPinUARTRx(pin byte, uart byte, enable bool)
	SetPinUARTTx(pin byte, uart byte, enable bool)

	// DigitalInLevel reads the current level of an input pin for the
	// status report following a change-notify enable.
	DigitalInLevel(pin byte) bool
	// UARTTxSpace reports free transmit buffer space for the status
	// report following a UART configuration.
	UARTTxSpace(uart byte) uint16
}

// MessageSender enqueues outgoing messages for transmission. It is
// safe for use from any call site, including hardware event paths.
type MessageSender interface {
	Send(*Message) error
}

// Dispatcher validates one complete incoming message, performs the
// matching hardware action, and enqueues the acknowledgment echo and
// follow-up reports the message calls for. It holds no per-message
// state and is invoked once per completed message.
type Dispatcher struct {
	Board   Board
	Drivers Drivers
	Sender  MessageSender
}

// HandleMessage implements MessageHandler. Validation failures and
// unrecognized tags reject the message before any hardware action;
// the error propagates to the delivery caller, who owns recovery.
func (d *Dispatcher) HandleMessage(msg *Message) error {
	if err := d.dispatch(msg); err != nil {
		glog.Errorf("dispatch %v: %v", msg.Type, err)
		return err
	}
	return nil
}

func (d *Dispatcher) dispatch(msg *Message) error {
	switch a := msg.Args.(type) {
	case *HardResetArgs:
		if a.Magic != ProtocolMagic {
			return &ValidationError{Type: msg.Type, Field: "magic", Value: int(a.Magic)}
		}
		// no echo: the link restarts and leads with a fresh handshake
		d.Drivers.HardReset()
		return nil

	case *SoftResetArgs:
		d.Drivers.SoftReset()
		return d.echo(msg)

	case *SetPinDigitalOutArgs:
		if err := d.checkPin(msg.Type, a.Pin); err != nil {
			return err
		}
		d.Drivers.SetPinDigitalOut(a.Pin, a.Value, a.OpenDrain)
		return d.echo(msg)

	case *SetDigitalOutLevelArgs:
		if err := d.checkPin(msg.Type, a.Pin); err != nil {
			return err
		}
		d.Drivers.SetDigitalOutLevel(a.Pin, a.Value)
		return nil

	case *SetPinDigitalInArgs:
		if err := d.checkPin(msg.Type, a.Pin); err != nil {
			return err
		}
		if a.Pull >= NumPullModes {
			return &ValidationError{Type: msg.Type, Field: "pull", Value: int(a.Pull)}
		}
		d.Drivers.SetPinDigitalIn(a.Pin, a.Pull)
		return d.echo(msg)

	case *SetChangeNotifyArgs:
		if err := d.checkPin(msg.Type, a.Pin); err != nil {
			return err
		}
		d.Drivers.SetChangeNotify(a.Pin, a.Enable)
		if err := d.echo(msg); err != nil {
			return err
		}
		if a.Enable {
			return d.Sender.Send(&Message{
				Type: MsgReportDigitalInStatus,
				Args: &ReportDigitalInStatusArgs{
					Pin:   a.Pin,
					Level: d.Drivers.DigitalInLevel(a.Pin),
				},
			})
		}
		return nil

	case *RegisterPeriodicDigitalSamplingArgs:
		if err := d.checkPin(msg.Type, a.Pin); err != nil {
			return err
		}
		d.Drivers.RegisterPeriodicDigitalSampling(a.Pin, a.FreqScale)
		return d.echo(msg)

	case *SetPinPWMArgs:
		if err := d.checkPin(msg.Type, a.Pin); err != nil {
			return err
		}
		if a.PWM >= d.Board.NumPWMs && a.PWM != PWMNone {
			return &ValidationError{Type: msg.Type, Field: "pwm", Value: int(a.PWM)}
		}
		d.Drivers.SetPinPWM(a.Pin, a.PWM)
		return nil

	case *SetPWMDutyCycleArgs:
		if err := d.checkPWM(msg.Type, a.PWM); err != nil {
			return err
		}
		d.Drivers.SetPWMDutyCycle(a.PWM, a.Duty, a.Fraction)
		return nil

	case *SetPWMPeriodArgs:
		if err := d.checkPWM(msg.Type, a.PWM); err != nil {
			return err
		}
		d.Drivers.SetPWMPeriod(a.PWM, a.Period, a.Scale256)
		return nil

	case *SetPinAnalogInArgs:
		if err := d.checkPin(msg.Type, a.Pin); err != nil {
			return err
		}
		d.Drivers.SetPinAnalogIn(a.Pin)
		return d.echo(msg)

	case *UARTDataArgs:
		if err := d.checkUART(msg.Type, a.UART); err != nil {
			return err
		}
		d.Drivers.UARTTransmit(a.UART, a.Data)
		return nil

	case *UARTConfigArgs:
		if err := d.checkUART(msg.Type, a.UART); err != nil {
			return err
		}
		if a.Parity >= NumParityModes {
			return &ValidationError{Type: msg.Type, Field: "parity", Value: int(a.Parity)}
		}
		d.Drivers.UARTConfig(a.UART, a.Rate, a.Speed4x, a.TwoStopBits, a.Parity)
		if err := d.echo(msg); err != nil {
			return err
		}
		return d.Sender.Send(&Message{
			Type: MsgUARTReportTxStatus,
			Args: &UARTReportTxStatusArgs{
				UART:  a.UART,
				Space: d.Drivers.UARTTxSpace(a.UART),
			},
		})

	case *SetPinUARTRxArgs:
		if err := d.checkPin(msg.Type, a.Pin); err != nil {
			return err
		}
		if err := d.checkUART(msg.Type, a.UART); err != nil {
			return err
		}
		d.Drivers.SetPinUARTRx(a.Pin, a.UART, a.Enable)
		return d.echo(msg)

	case *SetPinUARTTxArgs:
		if err := d.checkPin(msg.Type, a.Pin); err != nil {
			return err
		}
		if err := d.checkUART(msg.Type, a.UART); err != nil {
			return err
		}
		d.Drivers.SetPinUARTTx(a.Pin, a.UART, a.Enable)
		return d.echo(msg)

	default:
		// the reserved tag and any outgoing-only payload land here
		return &UnknownTypeError{Type: msg.Type}
	}
}

// echo enqueues an outgoing message of identical type and payload as
// the acknowledgment.
func (d *Dispatcher) echo(msg *Message) error {
	return d.Sender.Send(msg)
}

func (d *Dispatcher) checkPin(t MessageType, pin byte) error {
	if pin >= d.Board.NumPins {
		return &ValidationError{Type: t, Field: "pin", Value: int(pin)}
	}
	return nil
}

func (d *Dispatcher) checkPWM(t MessageType, pwm byte) error {
	if pwm >= d.Board.NumPWMs {
		return &ValidationError{Type: t, Field: "pwm", Value: int(pwm)}
	}
	return nil
}

func (d *Dispatcher) checkUART(t MessageType, uart byte) error {
	if uart >= d.Board.NumUARTs {
		return &ValidationError{Type: t, Field: "uart", Value: int(uart)}
	}
	return nil
}
