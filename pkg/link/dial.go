package link

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"go.bug.st/serial"
	"golang.org/x/net/websocket"
)

// Dial opens a byte-stream connection from an address spec:
//
//	serial:/dev/ttyACM0?baud=115200
//	ws://host:port/channel
//
// Both ends of the protocol use the same specs: the emulator daemon
// to expose a board, the host shell to reach one.
func Dial(spec string) (io.ReadWriteCloser, error) {
	switch {
	case strings.HasPrefix(spec, "serial:"):
		return dialSerial(strings.TrimPrefix(spec, "serial:"))
	case strings.HasPrefix(spec, "ws://"), strings.HasPrefix(spec, "wss://"):
		ws, err := websocket.Dial(spec, "", originFor(spec))
		if err != nil {
			return nil, err
		}
		ws.PayloadType = websocket.BinaryFrame
		return ws, nil
	}
	return nil, fmt.Errorf("unsupported address %q", spec)
}

func dialSerial(spec string) (serial.Port, error) {
	path, query := spec, ""
	if i := strings.IndexByte(spec, '?'); i >= 0 {
		path, query = spec[:i], spec[i+1:]
	}
	baud := 115200
	if query != "" {
		vals, err := url.ParseQuery(query)
		if err != nil {
			return nil, err
		}
		if v := vals.Get("baud"); v != "" {
			if baud, err = strconv.Atoi(v); err != nil {
				return nil, err
			}
		}
	}
	return serial.Open(path, &serial.Mode{BaudRate: baud})
}

func originFor(spec string) string {
	u, err := url.Parse(spec)
	if err != nil {
		return "http://localhost/"
	}
	return "http://" + u.Host + "/"
}
