package command

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/muurk/mowerble/internal/protocol"
	"github.com/muurk/mowerble/internal/schema"
)

func TestFieldsAccessors(t *testing.T) {
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	f := Fields{
		"level": uint8(80),
		"delta": int16(-4),
		"on":    true,
		"name":  "Husky",
		"at":    at,
		"days":  Weekdays{true},
	}

	if n, err := f.Uint("level"); err != nil || n != 80 {
		t.Errorf("Uint(level) = %d, %v", n, err)
	}
	if n, err := f.Int("delta"); err != nil || n != -4 {
		t.Errorf("Int(delta) = %d, %v", n, err)
	}
	if n, err := f.Int("level"); err != nil || n != 80 {
		t.Errorf("Int(level) = %d, %v", n, err)
	}
	if b, err := f.Bool("on"); err != nil || !b {
		t.Errorf("Bool(on) = %v, %v", b, err)
	}
	if s, err := f.Text("name"); err != nil || s != "Husky" {
		t.Errorf("Text(name) = %q, %v", s, err)
	}
	if tm, err := f.Time("at"); err != nil || !tm.Equal(at) {
		t.Errorf("Time(at) = %v, %v", tm, err)
	}
	if w, err := f.Weekdays("days"); err != nil || !w[0] {
		t.Errorf("Weekdays(days) = %v, %v", w, err)
	}

	errCases := []func() error{
		func() error { _, err := f.Uint("missing"); return err },
		func() error { _, err := f.Uint("delta"); return err },
		func() error { _, err := f.Bool("level"); return err },
		func() error { _, err := f.Text("level"); return err },
		func() error { _, err := f.Time("name"); return err },
		func() error { _, err := f.Weekdays("on"); return err },
	}
	for i, fn := range errCases {
		if err := fn(); !errors.Is(err, protocol.ErrDecoding) {
			t.Errorf("case %d: error = %v, want ErrDecoding", i, err)
		}
	}
}

func TestFieldsSingleAndKeys(t *testing.T) {
	if _, ok := (Fields{}).Single(); ok {
		t.Error("Single() on empty Fields reported ok")
	}
	if _, ok := (Fields{"a": 1, "b": 2}).Single(); ok {
		t.Error("Single() on two fields reported ok")
	}
	if v, ok := (Fields{"a": 1}).Single(); !ok || v != 1 {
		t.Errorf("Single() = %v, %v", v, ok)
	}
	if got := (Fields{"b": 1, "a": 2}).Keys(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Keys() = %v", got)
	}
}

func TestWeekdays(t *testing.T) {
	w := WeekdaysFromByte(0b0100101)
	want := Weekdays{true, false, true, false, false, true, false}
	if w != want {
		t.Fatalf("WeekdaysFromByte() = %v, want %v", w, want)
	}
	if w.Byte() != 0b0100101 {
		t.Errorf("Byte() = %07b", w.Byte())
	}
	if w.String() != "Mon,Wed,Sat" {
		t.Errorf("String() = %q", w.String())
	}
	if !w.Has(time.Saturday) || w.Has(time.Sunday) || !w.Has(time.Monday) {
		t.Error("Has() mismatch")
	}
	if (Weekdays{}).String() != "none" {
		t.Errorf("empty String() = %q", (Weekdays{}).String())
	}
}

func TestParseWeekdays(t *testing.T) {
	tests := []struct {
		in      string
		want    Weekdays
		wantErr bool
	}{
		{in: "Mon,Wed,Sat", want: Weekdays{true, false, true, false, false, true, false}},
		{in: "monday, friday", want: Weekdays{true, false, false, false, true, false, false}},
		{in: "all", want: Weekdays{true, true, true, true, true, true, true}},
		{in: "none", want: Weekdays{}},
		{in: "mo", wantErr: true},
		{in: "Funday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWeekdays(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseWeekdays() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseWeekdays() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		name    string
		typ     schema.FieldType
		text    string
		want    any
		wantErr bool
	}{
		{"uint hex", schema.TypeUint16, "0x10", uint64(16), false},
		{"uint overflow", schema.TypeUint8, "300", nil, true},
		{"int negative", schema.TypeInt8, "-3", int64(-3), false},
		{"bool", schema.TypeBool, "true", true, false},
		{"string", schema.TypeASCII, "abc", "abc", false},
		{"weekdays", schema.TypeWeekdays, "sun", Weekdays{6: true}, false},
		{"timestamp unix", schema.TypeTimestamp, "1700000000", int64(1700000000), false},
		{"timestamp rfc3339", schema.TypeTimestamp, "2024-01-02T03:04:05Z", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), false},
		{"timestamp junk", schema.TypeTimestamp, "yesterday", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseValue(schema.FieldSpec{Name: "x", Type: tt.typ, MaxLength: 8}, tt.text)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseValue() = %#v, want %#v", got, tt.want)
			}
		})
	}
}
