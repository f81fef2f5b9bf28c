package control

import (
	"context"
	"fmt"

	"github.com/taoyao-code/scrhat/internal/device"
)

// fakeDevice 记录调用序列；达到 cancelAfter 次 SetAngle 后取消 ctx
type fakeDevice struct {
	calls       []string
	angles      map[int][]int
	failOn      string
	cancelAfter int
	cancel      context.CancelFunc
	setAngles   int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{angles: map[int][]int{}}
}

func (f *fakeDevice) record(call string) error {
	f.calls = append(f.calls, call)
	if f.failOn != "" && f.failOn == call {
		return &device.IOError{Err: fmt.Errorf("write %s", call)}
	}
	return nil
}

func (f *fakeDevice) SetMode(mode device.Mode) error {
	return f.record(fmt.Sprintf("mode %d", mode))
}

func (f *fakeDevice) EnableChannel(ch int) error {
	return f.record(fmt.Sprintf("enable %d", ch))
}

func (f *fakeDevice) DisableChannel(ch int) error {
	return f.record(fmt.Sprintf("disable %d", ch))
}

func (f *fakeDevice) SetAngle(ch int, angle int) error {
	if err := f.record(fmt.Sprintf("angle %d %d", ch, angle)); err != nil {
		return err
	}
	f.angles[ch] = append(f.angles[ch], angle)
	f.setAngles++
	if f.cancel != nil && f.setAngles == f.cancelAfter {
		f.cancel()
	}
	return nil
}

type fakeRelay struct {
	calls       []string
	offErr      error
	cancelAfter int
	cancel      context.CancelFunc
}

func (r *fakeRelay) TurnOn() error {
	r.calls = append(r.calls, "on")
	r.maybeCancel()
	return nil
}

func (r *fakeRelay) TurnOff() error {
	r.calls = append(r.calls, "off")
	r.maybeCancel()
	return r.offErr
}

func (r *fakeRelay) Release() { r.calls = append(r.calls, "release") }

func (r *fakeRelay) maybeCancel() {
	if r.cancel != nil && len(r.calls) == r.cancelAfter {
		r.cancel()
	}
}
