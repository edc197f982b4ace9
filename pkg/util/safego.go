// safego.go — panic-catching goroutine launcher.
package util

import (
	"runtime/debug"

	"github.com/comppolicylab/pingpong-sub002/pkg/logger"
)

// SafeGo runs fn in a new goroutine, recovering panics and logging the stack.
func SafeGo(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("goroutine panicked",
					logger.FieldError, r,
					"stack", string(debug.Stack()),
				)
			}
		}()
		fn()
	}()
}
