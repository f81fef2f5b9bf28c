package device

import (
	"errors"
	"fmt"

	"github.com/taoyao-code/scrhat/internal/protocol/scr"
)

// ErrInvalidParameter 参数超出寄存器定义的取值范围
var ErrInvalidParameter = errors.New("invalid parameter")

// IOError 串口写入失败或写入不完整，不做内部重试
type IOError struct {
	Register scr.Register
	Err      error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("scr write %s: %v", e.Register, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func invalidParam(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}
