package component

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestOptions_Merge(t *testing.T) {
	base := Options{"interval": "1s", "count": 3}
	merged := base.Merge(Options{"interval": "5s", "extra": true})

	if merged["interval"] != "5s" {
		t.Errorf("interval = %v, want 5s", merged["interval"])
	}
	if merged["count"] != 3 || merged["extra"] != true {
		t.Errorf("merged = %v", merged)
	}
	if base["interval"] != "1s" {
		t.Error("Merge must not modify the receiver")
	}

	var nilOpts Options
	if got := nilOpts.Merge(nil); got == nil || len(got) != 0 {
		t.Errorf("nil.Merge(nil) = %v, want empty non-nil map", got)
	}
}

func TestOptions_GetInt(t *testing.T) {
	opts := Options{"a": 4, "b": float64(7), "c": "12", "d": 1.5, "e": "x", "f": []int{1}, "g": int64(9)}

	tests := []struct {
		key     string
		want    int
		wantErr bool
	}{
		{key: "a", want: 4},
		{key: "b", want: 7},
		{key: "c", want: 12},
		{key: "g", want: 9},
		{key: "missing", want: 42},
		{key: "d", wantErr: true},
		{key: "e", wantErr: true},
		{key: "f", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := opts.GetInt(tt.key, 42)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidOption) {
					t.Errorf("GetInt(%q) error = %v, want ErrInvalidOption", tt.key, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("GetInt(%q) = %d, %v; want %d", tt.key, got, err, tt.want)
			}
		})
	}
}

func TestOptions_GetDuration(t *testing.T) {
	opts := Options{"s": "250ms", "i": 2, "f": 0.5, "d": 3 * time.Minute, "bad": "soon", "b": true}

	tests := []struct {
		key     string
		want    time.Duration
		wantErr bool
	}{
		{key: "s", want: 250 * time.Millisecond},
		{key: "i", want: 2 * time.Second},
		{key: "f", want: 500 * time.Millisecond},
		{key: "d", want: 3 * time.Minute},
		{key: "missing", want: time.Second},
		{key: "bad", wantErr: true},
		{key: "b", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := opts.GetDuration(tt.key, time.Second)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidOption) {
					t.Errorf("GetDuration(%q) error = %v, want ErrInvalidOption", tt.key, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("GetDuration(%q) = %v, %v; want %v", tt.key, got, err, tt.want)
			}
		})
	}
}

func TestOptions_GetBoolAndString(t *testing.T) {
	opts := Options{"on": true, "off": "false", "bad": "maybe", "name": "cam", "num": 3}

	if v, err := opts.GetBool("on", false); err != nil || !v {
		t.Errorf("GetBool(on) = %v, %v", v, err)
	}
	if v, err := opts.GetBool("off", true); err != nil || v {
		t.Errorf("GetBool(off) = %v, %v", v, err)
	}
	if _, err := opts.GetBool("bad", false); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("GetBool(bad) error = %v, want ErrInvalidOption", err)
	}
	if v := opts.GetString("name", ""); v != "cam" {
		t.Errorf("GetString(name) = %q", v)
	}
	if v := opts.GetString("num", ""); v != "3" {
		t.Errorf("GetString(num) = %q, want 3", v)
	}
	if v := opts.GetString("missing", "def"); v != "def" {
		t.Errorf("GetString(missing) = %q, want def", v)
	}
	if !opts.Has("name") || opts.Has("missing") {
		t.Error("Has() wrong")
	}
}

func TestOptions_GetStrings(t *testing.T) {
	opts := Options{"list": []any{"a", 1}, "typed": []string{"x"}, "one": "solo", "empty": ""}

	if got := opts.GetStrings("list"); len(got) != 2 || got[0] != "a" || got[1] != "1" {
		t.Errorf("GetStrings(list) = %v", got)
	}
	if got := opts.GetStrings("typed"); len(got) != 1 || got[0] != "x" {
		t.Errorf("GetStrings(typed) = %v", got)
	}
	if got := opts.GetStrings("one"); len(got) != 1 || got[0] != "solo" {
		t.Errorf("GetStrings(one) = %v", got)
	}
	if got := opts.GetStrings("empty"); got != nil {
		t.Errorf("GetStrings(empty) = %v, want nil", got)
	}
}

type recordingLogger struct {
	entries []string
}

func (r *recordingLogger) record(level, msg string, args []any) {
	r.entries = append(r.entries, fmt.Sprint(level, " ", msg, " ", args))
}

func (r *recordingLogger) Debug(msg string, args ...any) { r.record("DEBUG", msg, args) }
func (r *recordingLogger) Info(msg string, args ...any)  { r.record("INFO", msg, args) }
func (r *recordingLogger) Warn(msg string, args ...any)  { r.record("WARN", msg, args) }
func (r *recordingLogger) Error(msg string, args ...any) { r.record("ERROR", msg, args) }

func TestWithFields(t *testing.T) {
	rec := &recordingLogger{}
	l := WithFields(WithFields(rec, "location", "driver:Ticker/a"), "op", "init")
	l.Info("done", "ms", 3)

	want := "INFO done [location driver:Ticker/a op init ms 3]"
	if len(rec.entries) != 1 || rec.entries[0] != want {
		t.Errorf("entries = %q, want [%q]", rec.entries, want)
	}

	if _, ok := WithFields(nil).(NopLogger); !ok {
		t.Error("WithFields(nil) should return NopLogger")
	}
	if WithFields(rec) != Logger(rec) {
		t.Error("WithFields without args should return the logger unchanged")
	}
}
