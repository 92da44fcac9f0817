// Command iobsh is an interactive shell speaking the board protocol
// to a device (or the iobd emulator) over serial or websocket.
package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/robotalks/ioboard.go/pkg/host"
	"github.com/robotalks/ioboard.go/pkg/link"
	"github.com/robotalks/ioboard.go/pkg/proto"
)

const clientKey = "$client"

func main() {
	addr := flag.String("addr", "", "Board address, e.g. serial:/dev/ttyACM0?baud=115200 or ws://localhost:8980/.")
	flag.Parse()
	if *addr == "" {
		glog.Exit("-addr is required")
	}

	conn, err := link.Dial(*addr)
	if err != nil {
		glog.Exitf("dial %s: %v", *addr, err)
	}
	defer conn.Close()

	client := host.NewClient(conn)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := client.Run(ctx); err != nil && ctx.Err() == nil {
			glog.Exitf("connection lost: %v", err)
		}
	}()

	shell := ishell.New()
	shell.Set(clientKey, client)
	shell.SetPrompt(fmt.Sprintf("%s > ", *addr))
	for _, cmd := range commands {
		shell.AddCmd(cmd)
	}
	go printMessages(shell, client)

	if args := flag.Args(); len(args) > 0 {
		if err := shell.Process(args...); err != nil {
			glog.Exit(err)
		}
		return
	}
	shell.Run()
}

func printMessages(shell *ishell.Shell, client *host.Client) {
	for msg := range client.Messages() {
		shell.Printf("<< %s\n", formatMessage(msg))
	}
}

func clientFrom(c *ishell.Context) *host.Client {
	return c.Get(clientKey).(*host.Client)
}

// send encodes and writes one device-bound message.
func send(c *ishell.Context, t proto.MessageType, args proto.Args) {
	if err := clientFrom(c).Send(&proto.Message{Type: t, Args: args}); err != nil {
		c.Err(err)
	}
}

func formatMessage(msg *proto.Message) string {
	switch a := msg.Args.(type) {
	case *proto.EstablishConnectionArgs:
		return fmt.Sprintf("connected: hw=%d bl=%d fw=%08x", a.Hardware, a.Bootloader, a.Firmware)
	case *proto.ReportDigitalInStatusArgs:
		return fmt.Sprintf("pin %d level=%v", a.Pin, a.Level)
	case *proto.ReportAnalogInFormatArgs:
		return fmt.Sprintf("analog format: pins %v", a.Pins)
	case *proto.ReportAnalogInStatusArgs:
		return fmt.Sprintf("analog samples %v", a.Samples)
	case *proto.UARTReportTxStatusArgs:
		return fmt.Sprintf("uart %d tx space=%d", a.UART, a.Space)
	case *proto.UARTDataArgs:
		return fmt.Sprintf("uart %d data %q", a.UART, a.Data)
	}
	return fmt.Sprintf("echo %v", msg.Type)
}

func argByte(c *ishell.Context, n int) (byte, bool) {
	if n >= len(c.Args) {
		c.Err(fmt.Errorf("missing argument %d", n))
		return 0, false
	}
	v, err := strconv.ParseUint(c.Args[n], 0, 8)
	if err != nil {
		c.Err(err)
		return 0, false
	}
	return byte(v), true
}

func argUint16(c *ishell.Context, n int) (uint16, bool) {
	if n >= len(c.Args) {
		c.Err(fmt.Errorf("missing argument %d", n))
		return 0, false
	}
	v, err := strconv.ParseUint(c.Args[n], 0, 16)
	if err != nil {
		c.Err(err)
		return 0, false
	}
	return uint16(v), true
}

func argBool(c *ishell.Context, n int, dflt bool) bool {
	if n >= len(c.Args) {
		return dflt
	}
	switch c.Args[n] {
	case "1", "on", "true", "high":
		return true
	}
	return false
}

var commands = []*ishell.Cmd{
	{
		Name: "dout",
		Help: "PIN [VALUE] [opendrain] - configure pin as digital out",
		Func: func(c *ishell.Context) {
			pin, ok := argByte(c, 0)
			if !ok {
				return
			}
			send(c, proto.MsgSetPinDigitalOut, &proto.SetPinDigitalOutArgs{
				Pin: pin, Value: argBool(c, 1, false), OpenDrain: argBool(c, 2, false),
			})
		},
	},
	{
		Name: "level",
		Help: "PIN VALUE - set digital out level (no echo)",
		Func: func(c *ishell.Context) {
			pin, ok := argByte(c, 0)
			if !ok {
				return
			}
			send(c, proto.MsgSetDigitalOutLevel, &proto.SetDigitalOutLevelArgs{
				Pin: pin, Value: argBool(c, 1, false),
			})
		},
	},
	{
		Name: "din",
		Help: "PIN [PULL 0-2] - configure pin as digital in",
		Func: func(c *ishell.Context) {
			pin, ok := argByte(c, 0)
			if !ok {
				return
			}
			pull := byte(0)
			if len(c.Args) > 1 {
				if pull, ok = argByte(c, 1); !ok {
					return
				}
			}
			send(c, proto.MsgSetPinDigitalIn, &proto.SetPinDigitalInArgs{Pin: pin, Pull: pull})
		},
	},
	{
		Name: "notify",
		Help: "PIN [on|off] - change notification",
		Func: func(c *ishell.Context) {
			pin, ok := argByte(c, 0)
			if !ok {
				return
			}
			send(c, proto.MsgSetChangeNotify, &proto.SetChangeNotifyArgs{
				Pin: pin, Enable: argBool(c, 1, true),
			})
		},
	},
	{
		Name: "sample",
		Help: "PIN SCALE - periodic digital sampling (0 stops)",
		Func: func(c *ishell.Context) {
			pin, ok := argByte(c, 0)
			if !ok {
				return
			}
			scale, ok := argByte(c, 1)
			if !ok {
				return
			}
			send(c, proto.MsgRegisterPeriodicDigitalSampling,
				&proto.RegisterPeriodicDigitalSamplingArgs{Pin: pin, FreqScale: scale})
		},
	},
	{
		Name: "analog",
		Help: "PIN - configure pin as analog in",
		Func: func(c *ishell.Context) {
			pin, ok := argByte(c, 0)
			if !ok {
				return
			}
			send(c, proto.MsgSetPinAnalogIn, &proto.SetPinAnalogInArgs{Pin: pin})
		},
	},
	{
		Name: "pwmpin",
		Help: "PIN PWM - attach pin to PWM module (15 detaches)",
		Func: func(c *ishell.Context) {
			pin, ok := argByte(c, 0)
			if !ok {
				return
			}
			pwm, ok := argByte(c, 1)
			if !ok {
				return
			}
			send(c, proto.MsgSetPinPWM, &proto.SetPinPWMArgs{Pin: pin, PWM: pwm})
		},
	},
	{
		Name: "duty",
		Help: "PWM VALUE [FRACTION] - set PWM duty cycle (no echo)",
		Func: func(c *ishell.Context) {
			pwm, ok := argByte(c, 0)
			if !ok {
				return
			}
			duty, ok := argUint16(c, 1)
			if !ok {
				return
			}
			fraction := byte(0)
			if len(c.Args) > 2 {
				if fraction, ok = argByte(c, 2); !ok {
					return
				}
			}
			send(c, proto.MsgSetPWMDutyCycle,
				&proto.SetPWMDutyCycleArgs{PWM: pwm, Duty: duty, Fraction: fraction})
		},
	},
	{
		Name: "period",
		Help: "PWM VALUE [x256] - set PWM period (no echo)",
		Func: func(c *ishell.Context) {
			pwm, ok := argByte(c, 0)
			if !ok {
				return
			}
			period, ok := argUint16(c, 1)
			if !ok {
				return
			}
			send(c, proto.MsgSetPWMPeriod, &proto.SetPWMPeriodArgs{
				PWM: pwm, Period: period, Scale256: argBool(c, 2, false),
			})
		},
	},
	{
		Name: "uart",
		Help: "UART TEXT - transmit bytes on a UART (no echo)",
		Func: func(c *ishell.Context) {
			uart, ok := argByte(c, 0)
			if !ok {
				return
			}
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("missing data"))
				return
			}
			data := []byte(c.Args[1])
			if len(data) > proto.MaxUARTPayload {
				data = data[:proto.MaxUARTPayload]
			}
			send(c, proto.MsgUARTData, &proto.UARTDataArgs{UART: uart, Data: data})
		},
	},
	{
		Name: "uartcfg",
		Help: "UART RATE [PARITY 0-2] [x4] [twostop] - configure UART",
		Func: func(c *ishell.Context) {
			uart, ok := argByte(c, 0)
			if !ok {
				return
			}
			rate, ok := argUint16(c, 1)
			if !ok {
				return
			}
			parity := byte(0)
			if len(c.Args) > 2 {
				if parity, ok = argByte(c, 2); !ok {
					return
				}
			}
			send(c, proto.MsgUARTConfig, &proto.UARTConfigArgs{
				UART: uart, Rate: rate, Parity: parity,
				Speed4x: argBool(c, 3, false), TwoStopBits: argBool(c, 4, false),
			})
		},
	},
	{
		Name: "pinrx",
		Help: "PIN UART [on|off] - attach pin as UART rx",
		Func: func(c *ishell.Context) {
			pin, ok := argByte(c, 0)
			if !ok {
				return
			}
			uart, ok := argByte(c, 1)
			if !ok {
				return
			}
			send(c, proto.MsgSetPinUARTRx, &proto.SetPinUARTRxArgs{
				Pin: pin, UART: uart, Enable: argBool(c, 2, true),
			})
		},
	},
	{
		Name: "pintx",
		Help: "PIN UART [on|off] - attach pin as UART tx",
		Func: func(c *ishell.Context) {
			pin, ok := argByte(c, 0)
			if !ok {
				return
			}
			uart, ok := argByte(c, 1)
			if !ok {
				return
			}
			send(c, proto.MsgSetPinUARTTx, &proto.SetPinUARTTxArgs{
				Pin: pin, UART: uart, Enable: argBool(c, 2, true),
			})
		},
	},
	{
		Name: "softreset",
		Help: "soft reset the board",
		Func: func(c *ishell.Context) {
			send(c, proto.MsgSoftReset, &proto.SoftResetArgs{})
		},
	},
	{
		Name: "hardreset",
		Help: "[MAGIC] - hard reset the board, link restarts",
		Func: func(c *ishell.Context) {
			magic := proto.ProtocolMagic
			if len(c.Args) > 0 {
				v, err := strconv.ParseUint(c.Args[0], 0, 32)
				if err != nil {
					c.Err(err)
					return
				}
				magic = uint32(v)
			}
			send(c, proto.MsgHardReset, &proto.HardResetArgs{Magic: magic})
		},
	},
}
