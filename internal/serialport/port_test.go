package serialport

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarm/serial"
)

type fakeTTY struct {
	buf    bytes.Buffer
	limit  int // >0 时每次最多写入 limit 字节
	err    error
	closed bool
	opened *serial.Config
}

func (f *fakeTTY) Read(p []byte) (int, error) { return 0, io.EOF }

func (f *fakeTTY) Write(p []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.limit > 0 && len(p) > f.limit {
		p = p[:f.limit]
	}
	return f.buf.Write(p)
}

func (f *fakeTTY) Close() error {
	f.closed = true
	return nil
}

func fakeOpener(ttys *[]*fakeTTY) opener {
	return func(c *serial.Config) (io.ReadWriteCloser, error) {
		tty := &fakeTTY{opened: c}
		*ttys = append(*ttys, tty)
		return tty, nil
	}
}

func TestOpen_Uses8N1(t *testing.T) {
	var ttys []*fakeTTY
	p, err := openWith(Config{Device: "/dev/ttyS0", Baud: 9600}, nil, fakeOpener(&ttys))
	require.NoError(t, err)
	require.Len(t, ttys, 1)

	c := ttys[0].opened
	assert.Equal(t, "/dev/ttyS0", c.Name)
	assert.Equal(t, 9600, c.Baud)
	assert.Equal(t, byte(8), c.Size)
	assert.Equal(t, serial.ParityNone, c.Parity)
	assert.Equal(t, serial.Stop1, c.StopBits)
	assert.Equal(t, 9600, p.Baud())
}

func TestOpen_Defaults(t *testing.T) {
	var ttys []*fakeTTY
	p, err := openWith(Config{}, nil, fakeOpener(&ttys))
	require.NoError(t, err)
	assert.Equal(t, DefaultDevice, p.Device())
	assert.Equal(t, DefaultBaud, p.Baud())
}

func TestOpen_UnsupportedBaud(t *testing.T) {
	var ttys []*fakeTTY
	_, err := openWith(Config{Baud: 12345}, nil, fakeOpener(&ttys))
	assert.ErrorIs(t, err, ErrUnsupportedBaud)
	assert.Empty(t, ttys)
}

func TestWrite_FullAndShort(t *testing.T) {
	var ttys []*fakeTTY
	p, err := openWith(Config{}, nil, fakeOpener(&ttys))
	require.NoError(t, err)

	frame := []byte{0x57, 0x68, 0x01, 0x00, 0x00, 0x3E}
	require.NoError(t, p.Write(frame))
	assert.Equal(t, frame, ttys[0].buf.Bytes())

	ttys[0].limit = 4
	err = p.Write(frame)
	assert.ErrorIs(t, err, ErrShortWrite, "部分写入视为失败")

	ttys[0].limit = 0
	ttys[0].err = errors.New("EIO")
	err = p.Write(frame)
	assert.ErrorContains(t, err, "EIO")
}

func TestReconfigure_ReopensAtNewRate(t *testing.T) {
	var ttys []*fakeTTY
	p, err := openWith(Config{Baud: 115200}, nil, fakeOpener(&ttys))
	require.NoError(t, err)

	require.NoError(t, p.Reconfigure(9600))
	require.Len(t, ttys, 2)
	assert.True(t, ttys[0].closed)
	assert.Equal(t, 9600, ttys[1].opened.Baud)
	assert.Equal(t, 9600, p.Baud())

	assert.ErrorIs(t, p.Reconfigure(300), ErrUnsupportedBaud)
}

func TestClose_Idempotent(t *testing.T) {
	var ttys []*fakeTTY
	p, err := openWith(Config{}, nil, fakeOpener(&ttys))
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.False(t, p.IsOpen())
	assert.ErrorIs(t, p.Write([]byte{0x00}), ErrClosedPort)
}
