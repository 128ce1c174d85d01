package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/Kestrel/flow"
)

// Delay возвращает StepFunc, приостанавливающий выполнение на d.
//
// Уважает отмену через context: при дедлайне flow шаг завершается
// сразу, не досыпая.
//
// Outputs:
//
//	{"duration_ms": 5000}
func Delay(d time.Duration) flow.StepFunc {
	return func(ctx context.Context, _ flow.Input, _ *flow.Context) (flow.Output, error) {
		if d <= 0 {
			return nil, fmt.Errorf("%w: delay: duration must be positive", ErrInvalidConfig)
		}

		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		case <-timer.C:
			return flow.Output{"duration_ms": d.Milliseconds()}, nil
		}
	}
}
