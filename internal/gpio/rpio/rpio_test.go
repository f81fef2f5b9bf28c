package rpio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taoyao-code/scrhat/internal/gpio"
)

var _ gpio.Driver = (*Driver)(nil)

func TestAcquire_InvalidPin(t *testing.T) {
	d := New()
	_, err := d.Acquire(gpio.Request{Offset: 54})
	assert.Error(t, err)
	_, err = d.Acquire(gpio.Request{Offset: -1})
	assert.Error(t, err)
}

func TestAcquire_OpenFailureDoesNotClaim(t *testing.T) {
	d := New()
	opens := 0
	d.open = func() error {
		opens++
		return errors.New("/dev/gpiomem: permission denied")
	}

	_, err := d.Acquire(gpio.Request{Offset: 17})
	assert.ErrorContains(t, err, "permission denied")
	assert.Empty(t, d.claimed)

	_, err = d.Acquire(gpio.Request{Offset: 17})
	assert.Error(t, err)
	assert.Equal(t, 2, opens, "失败后下次申请重新打开")
}

func TestRelease_UnclaimedIsNoop(t *testing.T) {
	d := New()
	closes := 0
	d.close = func() error { closes++; return nil }

	assert.NoError(t, d.release(4))
	assert.Equal(t, 0, closes)
}
