package mower

import (
	"context"
	"fmt"
	"time"
)

// Report is a full status snapshot
type Report struct {
	Manufacturer string
	Model        string
	Name         string
	SerialNumber uint32
	Charging     bool
	BatteryLevel int
	State        MowerState
	Activity     MowerActivity
	NextStart    time.Time // zero when nothing is scheduled
	Statistics   *Statistics
	LastMessage  *Message
	CollectedAt  time.Time
}

// Report queries everything a status screen shows, one command at a time.
// It stops at the first error and returns what it gathered so far.
func (m *Mower) Report(ctx context.Context) (*Report, error) {
	r := &Report{}

	t, v, err := m.model(ctx)
	if err != nil {
		return r, fmt.Errorf("model: %w", err)
	}
	r.Manufacturer = m.registry.Models().Manufacturer(t, v)
	r.Model = m.registry.Models().ModelName(t, v)

	steps := []struct {
		what string
		fn   func() error
	}{
		{"charging", func() (err error) { r.Charging, err = m.IsCharging(ctx); return }},
		{"battery", func() (err error) { r.BatteryLevel, err = m.BatteryLevel(ctx); return }},
		{"state", func() (err error) { r.State, err = m.MowerState(ctx); return }},
		{"activity", func() (err error) { r.Activity, err = m.MowerActivity(ctx); return }},
		{"next start", func() (err error) { r.NextStart, _, err = m.NextStartTime(ctx); return }},
		{"statistics", func() (err error) { r.Statistics, err = m.Statistics(ctx); return }},
		{"serial number", func() (err error) { r.SerialNumber, err = m.SerialNumber(ctx); return }},
		{"name", func() (err error) { r.Name, err = m.Name(ctx); return }},
		{"last message", func() (err error) { r.LastMessage, err = m.LastMessage(ctx, 0); return }},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return r, fmt.Errorf("%s: %w", s.what, err)
		}
	}

	r.CollectedAt = time.Now()
	return r, nil
}
