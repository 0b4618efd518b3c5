package mower

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/muurk/mowerble/internal/command"
	"github.com/muurk/mowerble/internal/protocol"
	"github.com/muurk/mowerble/internal/schema"
)

type step struct {
	name   schema.Name
	fields command.Fields
}

// run executes steps in order and stops at the first hard error.
// There is no rollback. Soft validation failures are logged and ignored.
func (m *Mower) run(ctx context.Context, op string, steps ...step) error {
	for i, s := range steps {
		if m.progress != nil {
			m.progress(i+1, len(steps), s.name)
		}
		res, err := m.Command(ctx, s.name, s.fields)
		if err != nil {
			return fmt.Errorf("%s step %d/%d: %w", op, i+1, len(steps), err)
		}
		if res.SoftFailed {
			m.log.Info("Continuing after soft validation failure",
				zap.String("operation", op),
				zap.String("command", string(s.name)),
			)
		}
	}
	return nil
}

// Override makes the mower mow for the given number of hours regardless
// of its schedule: SetMode(AUTO), SetOverrideMow, StartTrigger.
func (m *Mower) Override(ctx context.Context, hours float64) error {
	if math.IsNaN(hours) || hours <= 0 {
		return protocol.NewEncodingError(fmt.Sprintf("override duration must be positive, got %v hours", hours), nil)
	}
	seconds := hours * 3600
	if seconds > math.MaxUint32 {
		return protocol.NewEncodingError(fmt.Sprintf("override duration of %v hours is too long", hours), nil)
	}

	return m.run(ctx, "override",
		step{schema.SetMode, command.Fields{"mode": ModeAuto}},
		step{schema.SetOverrideMow, command.Fields{"duration": uint32(seconds)}},
		step{schema.StartTrigger, nil},
	)
}

// Park sends the mower home until its next scheduled start
func (m *Mower) Park(ctx context.Context) error {
	return m.run(ctx, "park",
		step{schema.SetOverrideParkUntilNextStart, nil},
		step{schema.StartTrigger, nil},
	)
}

// Resume continues after a pause
func (m *Mower) Resume(ctx context.Context) error {
	return m.run(ctx, "resume", step{schema.StartTrigger, nil})
}

// Pause stops the mower where it is
func (m *Mower) Pause(ctx context.Context) error {
	return m.run(ctx, "pause", step{schema.Pause, nil})
}

// SetMode changes the mode of operation
func (m *Mower) SetMode(ctx context.Context, mode ModeOfOperation) error {
	return m.run(ctx, "set mode", step{schema.SetMode, command.Fields{"mode": mode}})
}
