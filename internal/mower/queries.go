package mower

import (
	"context"
	"time"

	"github.com/muurk/mowerble/internal/command"
	"github.com/muurk/mowerble/internal/schema"
)

// TaskInformation is one schedule entry from GetTask
type TaskInformation struct {
	Start    time.Duration // offset from midnight
	Duration time.Duration
	Days     command.Weekdays
}

// Statistics are the lifetime counters from GetAllStatistics
type Statistics struct {
	TotalRunningTime       time.Duration
	TotalCuttingTime       time.Duration
	TotalChargingTime      time.Duration
	TotalSearchingTime     time.Duration
	NumberOfCollisions     uint32
	NumberOfChargingCycles uint32
	CuttingBladeUsageTime  time.Duration
}

// Message is an entry of the mower's message log
type Message struct {
	Time time.Time
	Code ErrorCode
}

func (m *Mower) query(ctx context.Context, name schema.Name, fields command.Fields) (command.Fields, error) {
	res, err := m.Command(ctx, name, fields)
	if err != nil {
		return nil, err
	}
	return res.Fields, nil
}

func (m *Mower) model(ctx context.Context) (int, int, error) {
	f, err := m.query(ctx, schema.GetModel, nil)
	if err != nil {
		return 0, 0, err
	}
	t, err := f.Uint("deviceType")
	if err != nil {
		return 0, 0, err
	}
	v, err := f.Uint("deviceVariant")
	if err != nil {
		return 0, 0, err
	}
	return int(t), int(v), nil
}

// Manufacturer returns the manufacturer name. Unknown models give
// "Unknown Manufacturer (type, variant)".
func (m *Mower) Manufacturer(ctx context.Context) (string, error) {
	t, v, err := m.model(ctx)
	if err != nil {
		return "", err
	}
	return m.registry.Models().Manufacturer(t, v), nil
}

// Model returns the model name. Unknown models give
// "Unknown Model (type, variant)".
func (m *Mower) Model(ctx context.Context) (string, error) {
	t, v, err := m.model(ctx)
	if err != nil {
		return "", err
	}
	return m.registry.Models().ModelName(t, v), nil
}

// IsCharging reports whether the mower is on its charging station and charging
func (m *Mower) IsCharging(ctx context.Context) (bool, error) {
	f, err := m.query(ctx, schema.IsCharging, nil)
	if err != nil {
		return false, err
	}
	return f.Bool("charging")
}

// BatteryLevel returns the charge in percent
func (m *Mower) BatteryLevel(ctx context.Context) (int, error) {
	f, err := m.query(ctx, schema.GetBatteryLevel, nil)
	if err != nil {
		return 0, err
	}
	n, err := f.Uint("batteryLevel")
	return int(n), err
}

// MowerState returns the operating state
func (m *Mower) MowerState(ctx context.Context) (MowerState, error) {
	f, err := m.query(ctx, schema.GetState, nil)
	if err != nil {
		return 0, err
	}
	n, err := f.Uint("state")
	return MowerState(n), err
}

// MowerActivity returns the current activity
func (m *Mower) MowerActivity(ctx context.Context) (MowerActivity, error) {
	f, err := m.query(ctx, schema.GetActivity, nil)
	if err != nil {
		return 0, err
	}
	n, err := f.Uint("activity")
	return MowerActivity(n), err
}

// Mode returns the mode of operation
func (m *Mower) Mode(ctx context.Context) (ModeOfOperation, error) {
	f, err := m.query(ctx, schema.GetMode, nil)
	if err != nil {
		return 0, err
	}
	n, err := f.Uint("mode")
	return ModeOfOperation(n), err
}

// NextStartTime returns the next scheduled start. ok is false when none is
// scheduled.
func (m *Mower) NextStartTime(ctx context.Context) (next time.Time, ok bool, err error) {
	f, err := m.query(ctx, schema.GetNextStartTime, nil)
	if err != nil {
		return time.Time{}, false, err
	}
	next, err = f.Time("nextStartTime")
	if err != nil {
		return time.Time{}, false, err
	}
	return next, !next.IsZero(), nil
}

// Task returns one schedule entry
func (m *Mower) Task(ctx context.Context, id uint32) (*TaskInformation, error) {
	f, err := m.query(ctx, schema.GetTask, command.Fields{"taskId": id})
	if err != nil {
		return nil, err
	}

	start, err := f.Uint("start")
	if err != nil {
		return nil, err
	}
	duration, err := f.Uint("duration")
	if err != nil {
		return nil, err
	}
	days, err := f.Weekdays("days")
	if err != nil {
		return nil, err
	}

	return &TaskInformation{
		Start:    time.Duration(start) * time.Second,
		Duration: time.Duration(duration) * time.Second,
		Days:     days,
	}, nil
}

// NumberOfTasks returns how many schedule entries exist
func (m *Mower) NumberOfTasks(ctx context.Context) (int, error) {
	f, err := m.query(ctx, schema.GetNumberOfTasks, nil)
	if err != nil {
		return 0, err
	}
	n, err := f.Uint("numberOfTasks")
	return int(n), err
}

// Statistics returns the lifetime counters
func (m *Mower) Statistics(ctx context.Context) (*Statistics, error) {
	f, err := m.query(ctx, schema.GetAllStatistics, nil)
	if err != nil {
		return nil, err
	}

	var s Statistics
	for _, field := range []struct {
		name string
		dur  *time.Duration
		cnt  *uint32
	}{
		{name: "totalRunningTime", dur: &s.TotalRunningTime},
		{name: "totalCuttingTime", dur: &s.TotalCuttingTime},
		{name: "totalChargingTime", dur: &s.TotalChargingTime},
		{name: "totalSearchingTime", dur: &s.TotalSearchingTime},
		{name: "numberOfCollisions", cnt: &s.NumberOfCollisions},
		{name: "numberOfChargingCycles", cnt: &s.NumberOfChargingCycles},
		{name: "cuttingBladeUsageTime", dur: &s.CuttingBladeUsageTime},
	} {
		n, err := f.Uint(field.name)
		if err != nil {
			return nil, err
		}
		if field.dur != nil {
			*field.dur = time.Duration(n) * time.Second
		} else {
			*field.cnt = uint32(n)
		}
	}
	return &s, nil
}

// SerialNumber returns the mower serial number
func (m *Mower) SerialNumber(ctx context.Context) (uint32, error) {
	f, err := m.query(ctx, schema.GetSerialNumber, nil)
	if err != nil {
		return 0, err
	}
	n, err := f.Uint("serialNumber")
	return uint32(n), err
}

// Name returns the name the owner gave the mower
func (m *Mower) Name(ctx context.Context) (string, error) {
	f, err := m.query(ctx, schema.GetUserMowerNameAsAsciiString, nil)
	if err != nil {
		return "", err
	}
	return f.Text("name")
}

// LastMessage returns an entry of the message log; index 0 is the newest
func (m *Mower) LastMessage(ctx context.Context, index uint32) (*Message, error) {
	f, err := m.query(ctx, schema.GetMessage, command.Fields{"messageId": index})
	if err != nil {
		return nil, err
	}
	at, err := f.Time("time")
	if err != nil {
		return nil, err
	}
	code, err := f.Uint("code")
	if err != nil {
		return nil, err
	}
	return &Message{Time: at, Code: ErrorCode(code)}, nil
}
