package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/ioboard.go/pkg/proto"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iobd.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
serial:
  port: /dev/ttyUSB0
listen: :8980
board:
  pins: 16
tick_ms: 5
`), 0644))

	conf, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyUSB0", conf.Serial.Port)
	// unset fields keep the defaults
	require.Equal(t, 115200, conf.Serial.BaudRate)
	require.Equal(t, ":8980", conf.Listen)
	require.Equal(t, 5*time.Millisecond, conf.TickInterval())

	b := conf.ProtoBoard()
	require.Equal(t, byte(16), b.NumPins)
	require.Equal(t, proto.DefaultBoard.NumPWMs, b.NumPWMs)
	require.Equal(t, proto.DefaultBoard.NumUARTs, b.NumUARTs)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.Error(t, err)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [\n"), 0644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestDefaults(t *testing.T) {
	conf := Default()
	require.Equal(t, 10*time.Millisecond, conf.TickInterval())
	require.Equal(t, proto.DefaultBoard, conf.ProtoBoard())
}
