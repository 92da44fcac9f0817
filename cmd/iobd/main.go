// Command iobd emulates an I/O board: it runs the application-layer
// protocol engine against a simulated board and serves the byte
// stream over a serial port or a websocket endpoint.
package main

import (
	"context"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"go.bug.st/serial"
	"golang.org/x/net/websocket"

	"github.com/robotalks/ioboard.go/pkg/board"
	"github.com/robotalks/ioboard.go/pkg/config"
	"github.com/robotalks/ioboard.go/pkg/link"
	"github.com/robotalks/ioboard.go/pkg/proto"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file.")
	port := flag.String("port", "", "Serial port to serve on, overrides config.")
	baud := flag.Int("baud", 0, "Serial baud rate, overrides config.")
	listen := flag.String("listen", "", "Websocket listen address, overrides config.")
	flag.Parse()

	conf := config.Default()
	if *configPath != "" {
		var err error
		if conf, err = config.Load(*configPath); err != nil {
			glog.Exitf("load config: %v", err)
		}
	}
	if *port != "" {
		conf.Serial.Port = *port
	}
	if *baud != 0 {
		conf.Serial.BaudRate = *baud
	}
	if *listen != "" {
		conf.Listen = *listen
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		glog.Info("stop requested")
		cancel()
	}()

	switch {
	case conf.Listen != "":
		serveWebsocket(ctx, conf)
	case conf.Serial.Port != "":
		serveSerial(ctx, conf)
	default:
		glog.Exit("either a serial port or a listen address is required")
	}
}

// runLink serves one connection with a fresh board and engine.
func runLink(ctx context.Context, conf *config.Config, conn io.ReadWriter) error {
	b := conf.ProtoBoard()
	sim := board.New(b)
	engine := proto.NewEngine(b, sim)
	sim.Bind(engine)
	l := &link.Link{
		Engine:   engine,
		Conn:     conn,
		Interval: conf.TickInterval(),
		Ticker:   sim,
		Resetter: sim,
	}
	return l.Run(ctx)
}

func serveSerial(ctx context.Context, conf *config.Config) {
	for ctx.Err() == nil {
		sp, err := serial.Open(conf.Serial.Port, &serial.Mode{BaudRate: conf.Serial.BaudRate})
		if err != nil {
			glog.Exitf("open %s: %v", conf.Serial.Port, err)
		}
		glog.Infof("serving on %s", conf.Serial.Port)
		if err = runLink(ctx, conf, sp); err != nil && ctx.Err() == nil {
			// a corrupted stream restarts the link with a fresh engine
			glog.Warningf("link down: %v", err)
		}
		sp.Close()
	}
}

func serveWebsocket(ctx context.Context, conf *config.Config) {
	server := &http.Server{
		Addr: conf.Listen,
		Handler: websocket.Handler(func(ws *websocket.Conn) {
			ws.PayloadType = websocket.BinaryFrame
			glog.Infof("channel connected from %s", ws.Request().RemoteAddr)
			if err := runLink(ctx, conf, ws); err != nil && ctx.Err() == nil {
				glog.Warningf("link down: %v", err)
			}
		}),
	}
	go func() {
		<-ctx.Done()
		server.Close()
	}()
	glog.Infof("listening on %s", conf.Listen)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		glog.Exit(err)
	}
}
