// Package board provides a simulated I/O board for the emulator
// daemon and tests.
package board

import (
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/ioboard.go/pkg/proto"
)

// Sim is an in-memory board. It implements proto.Drivers, and
// produces the board-originated reports a physical board would:
// change notifications, periodic digital samples, analog format and
// status reports, and UART loopback traffic.
//
// Driver calls arrive on the engine's delivery path; SetInputLevel
// and Tick may run from other goroutines, so all state is guarded.
type Sim struct {
	lock   sync.Mutex
	board  proto.Board
	sender proto.MessageSender

	pins  []pin
	pwms  []pwm
	uarts []uart

	analogOrder []byte
	formatDirty bool
	tick        uint

	hardReset  bool
	softResets int
}

type pinMode int

const (
	modeUnused pinMode = iota
	modeDigitalOut
	modeDigitalIn
	modeAnalogIn
)

type pin struct {
	mode      pinMode
	level     bool
	openDrain bool
	pull      byte
	notify    bool
	freqScale byte
	countdown byte
	pwm       byte
}

type pwm struct {
	duty     uint16
	fraction byte
	period   uint16
	scale256 bool
}

type uart struct {
	rate    uint16
	speed4x bool
	twoStop bool
	parity  byte
	rxPin   int
	txPin   int
	txBuf   []byte
}

// uartTxBufSize is the simulated transmit buffer per UART.
const uartTxBufSize = 256

// analogReportInterval spaces analog status reports, in ticks.
const analogReportInterval = 4

// New creates a simulated board.
func New(b proto.Board) *Sim {
	s := &Sim{board: b}
	s.reset()
	return s
}

// Bind attaches the outgoing message sender, normally the engine
// built on top of this board.
func (s *Sim) Bind(sender proto.MessageSender) {
	s.lock.Lock()
	s.sender = sender
	s.lock.Unlock()
}

func (s *Sim) reset() {
	s.pins = make([]pin, s.board.NumPins)
	for i := range s.pins {
		s.pins[i].pwm = proto.PWMNone
	}
	s.pwms = make([]pwm, s.board.NumPWMs)
	s.uarts = make([]uart, s.board.NumUARTs)
	for i := range s.uarts {
		s.uarts[i].rxPin, s.uarts[i].txPin = -1, -1
	}
	s.analogOrder = nil
	s.formatDirty = false
}

// dropAnalog removes a pin from the analog scan order when it is
// reconfigured for another function. Callers hold the lock.
func (s *Sim) dropAnalog(pin byte) {
	for i, p := range s.analogOrder {
		if p == pin {
			s.analogOrder = append(s.analogOrder[:i], s.analogOrder[i+1:]...)
			s.formatDirty = true
			return
		}
	}
}

// HardReset implements proto.Drivers.
func (s *Sim) HardReset() {
	s.lock.Lock()
	defer s.lock.Unlock()
	glog.V(1).Info("sim: hard reset")
	s.reset()
	s.hardReset = true
}

// SoftReset implements proto.Drivers.
func (s *Sim) SoftReset() {
	s.lock.Lock()
	defer s.lock.Unlock()
	glog.V(1).Info("sim: soft reset")
	s.reset()
	s.softResets++
}

// TakeHardReset reports whether a hard reset was requested since the
// last call, clearing the flag. The link uses it to restart the
// engine, standing in for the device rebooting.
func (s *Sim) TakeHardReset() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	requested := s.hardReset
	s.hardReset = false
	return requested
}

// SoftResets returns the number of soft resets performed.
func (s *Sim) SoftResets() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.softResets
}

// SetPinDigitalOut implements proto.Drivers.
func (s *Sim) SetPinDigitalOut(pin byte, value, openDrain bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	glog.V(2).Infof("sim: pin %d digital out value=%v openDrain=%v", pin, value, openDrain)
	p := &s.pins[pin]
	p.mode = modeDigitalOut
	p.level, p.openDrain = value, openDrain
	s.dropAnalog(pin)
}

// SetDigitalOutLevel implements proto.Drivers.
func (s *Sim) SetDigitalOutLevel(pin byte, value bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	glog.V(2).Infof("sim: pin %d level=%v", pin, value)
	s.pins[pin].level = value
}

// SetPinDigitalIn implements proto.Drivers.
func (s *Sim) SetPinDigitalIn(pin byte, pull byte) {
	s.lock.Lock()
	defer s.lock.Unlock()
	glog.V(2).Infof("sim: pin %d digital in pull=%d", pin, pull)
	p := &s.pins[pin]
	p.mode = modeDigitalIn
	p.pull = pull
	// pull-up reads high until driven
	p.level = pull == 1
	s.dropAnalog(pin)
}

// SetChangeNotify implements proto.Drivers.
func (s *Sim) SetChangeNotify(pin byte, enable bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	glog.V(2).Infof("sim: pin %d change notify=%v", pin, enable)
	s.pins[pin].notify = enable
}

// RegisterPeriodicDigitalSampling implements proto.Drivers. A zero
// freqScale unregisters the pin.
func (s *Sim) RegisterPeriodicDigitalSampling(pin byte, freqScale byte) {
	s.lock.Lock()
	defer s.lock.Unlock()
	glog.V(2).Infof("sim: pin %d periodic sampling freqScale=%d", pin, freqScale)
	p := &s.pins[pin]
	p.freqScale, p.countdown = freqScale, freqScale
}

// SetPinAnalogIn implements proto.Drivers.
func (s *Sim) SetPinAnalogIn(pin byte) {
	s.lock.Lock()
	defer s.lock.Unlock()
	glog.V(2).Infof("sim: pin %d analog in", pin)
	s.pins[pin].mode = modeAnalogIn
	for _, p := range s.analogOrder {
		if p == pin {
			return
		}
	}
	s.analogOrder = append(s.analogOrder, pin)
	s.formatDirty = true
}

// SetPinPWM implements proto.Drivers.
func (s *Sim) SetPinPWM(pin byte, pwm byte) {
	s.lock.Lock()
	defer s.lock.Unlock()
	glog.V(2).Infof("sim: pin %d pwm=%d", pin, pwm)
	s.pins[pin].pwm = pwm
}

// SetPWMDutyCycle implements proto.Drivers.
func (s *Sim) SetPWMDutyCycle(pwm byte, duty uint16, fraction byte) {
	s.lock.Lock()
	defer s.lock.Unlock()
	glog.V(2).Infof("sim: pwm %d duty=%d fraction=%d", pwm, duty, fraction)
	s.pwms[pwm].duty, s.pwms[pwm].fraction = duty, fraction
}

// SetPWMPeriod implements proto.Drivers.
func (s *Sim) SetPWMPeriod(pwm byte, period uint16, scale256 bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	glog.V(2).Infof("sim: pwm %d period=%d scale256=%v", pwm, period, scale256)
	s.pwms[pwm].period, s.pwms[pwm].scale256 = period, scale256
}

// UARTTransmit implements proto.Drivers. Bytes land in the simulated
// transmit buffer and are looped back as received data on the next
// tick. Bytes beyond the buffer space are dropped, as a saturated
// hardware FIFO would.
func (s *Sim) UARTTransmit(uart byte, data []byte) {
	s.lock.Lock()
	defer s.lock.Unlock()
	glog.V(2).Infof("sim: uart %d transmit %d bytes", uart, len(data))
	u := &s.uarts[uart]
	if space := uartTxBufSize - len(u.txBuf); len(data) > space {
		data = data[:space]
	}
	u.txBuf = append(u.txBuf, data...)
}

// UARTConfig implements proto.Drivers.
func (s *Sim) UARTConfig(uart byte, rate uint16, speed4x, twoStopBits bool, parity byte) {
	s.lock.Lock()
	defer s.lock.Unlock()
	glog.V(2).Infof("sim: uart %d rate=%d x4=%v twoStop=%v parity=%d",
		uart, rate, speed4x, twoStopBits, parity)
	u := &s.uarts[uart]
	u.rate, u.speed4x, u.twoStop, u.parity = rate, speed4x, twoStopBits, parity
}

// SetPinUARTRx implements proto.Drivers.
func (s *Sim) SetPinUARTRx(pin byte, uart byte, enable bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	glog.V(2).Infof("sim: pin %d uart %d rx enable=%v", pin, uart, enable)
	if enable {
		s.uarts[uart].rxPin = int(pin)
	} else {
		s.uarts[uart].rxPin = -1
	}
}

// SetPinUARTTx implements proto.Drivers.
func (s *Sim) SetPinUARTTx(pin byte, uart byte, enable bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	glog.V(2).Infof("sim: pin %d uart %d tx enable=%v", pin, uart, enable)
	if enable {
		s.uarts[uart].txPin = int(pin)
	} else {
		s.uarts[uart].txPin = -1
	}
}

// DigitalInLevel implements proto.Drivers.
func (s *Sim) DigitalInLevel(pin byte) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.pins[pin].level
}

// UARTTxSpace implements proto.Drivers.
func (s *Sim) UARTTxSpace(uart byte) uint16 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return uint16(uartTxBufSize - len(s.uarts[uart].txBuf))
}

// SetInputLevel drives an external level onto a digital input pin,
// as a signal on the physical pin would. A change on a pin with
// change notification enabled emits an immediate status report.
func (s *Sim) SetInputLevel(pin byte, level bool) error {
	s.lock.Lock()
	p := &s.pins[pin]
	changed := p.mode == modeDigitalIn && p.level != level
	p.level = level
	notify := changed && p.notify
	sender := s.sender
	s.lock.Unlock()
	if !notify || sender == nil {
		return nil
	}
	return sender.Send(&proto.Message{
		Type: proto.MsgReportDigitalInStatus,
		Args: &proto.ReportDigitalInStatusArgs{Pin: pin, Level: level},
	})
}

// Tick runs one simulation step: periodic digital samples, analog
// reports, and UART loopback. It is called from the link loop on
// every scheduling tick.
func (s *Sim) Tick() {
	s.lock.Lock()
	sender := s.sender
	var out []*proto.Message
	s.tick++

	for i := range s.pins {
		p := &s.pins[i]
		if p.mode != modeDigitalIn || p.freqScale == 0 {
			continue
		}
		if p.countdown--; p.countdown == 0 {
			p.countdown = p.freqScale
			out = append(out, &proto.Message{
				Type: proto.MsgReportDigitalInStatus,
				Args: &proto.ReportDigitalInStatusArgs{Pin: byte(i), Level: p.level},
			})
		}
	}

	if s.tick%analogReportInterval == 0 {
		if s.formatDirty {
			// an empty format tells the host the scan stopped
			s.formatDirty = false
			pins := make([]byte, len(s.analogOrder))
			copy(pins, s.analogOrder)
			out = append(out, &proto.Message{
				Type: proto.MsgReportAnalogInFormat,
				Args: &proto.ReportAnalogInFormatArgs{Pins: pins},
			})
		}
		if len(s.analogOrder) > 0 {
			samples := make([]byte, len(s.analogOrder))
			for i, pinNum := range s.analogOrder {
				// synthetic sawtooth, distinct per pin
				samples[i] = byte(s.tick)*7 + pinNum
			}
			out = append(out, &proto.Message{
				Type: proto.MsgReportAnalogInStatus,
				Args: &proto.ReportAnalogInStatusArgs{Samples: samples},
			})
		}
	}

	for i := range s.uarts {
		u := &s.uarts[i]
		if len(u.txBuf) == 0 {
			continue
		}
		n := len(u.txBuf)
		if n > proto.MaxUARTPayload {
			n = proto.MaxUARTPayload
		}
		data := make([]byte, n)
		copy(data, u.txBuf[:n])
		u.txBuf = u.txBuf[n:]
		out = append(out,
			&proto.Message{
				Type: proto.MsgUARTData,
				Args: &proto.UARTDataArgs{UART: byte(i), Data: data},
			},
			&proto.Message{
				Type: proto.MsgUARTReportTxStatus,
				Args: &proto.UARTReportTxStatusArgs{
					UART:  byte(i),
					Space: uint16(uartTxBufSize - len(u.txBuf)),
				},
			})
	}
	s.lock.Unlock()

	if sender == nil {
		return
	}
	for _, msg := range out {
		if err := sender.Send(msg); err != nil {
			glog.Errorf("sim: report %v dropped: %v", msg.Type, err)
			return
		}
	}
}
