package lifecycle

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/nerrad567/uts-core/internal/location"
)

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateRegistered, "registered"},
		{StateInitialized, "initialized"},
		{StateRunning, "running"},
		{StateStopped, "stopped"},
		{StateFailed, "failed"},
		{StateRemoved, "removed"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestParseState(t *testing.T) {
	for _, st := range append(States(), StateRemoved) {
		got, err := ParseState(st.String())
		if err != nil || got != st {
			t.Errorf("ParseState(%q) = %v, %v; want %v", st.String(), got, err, st)
		}
	}
	if _, err := ParseState("unknown"); err == nil {
		t.Error("ParseState(unknown) should error")
	}

	var st State
	if err := json.Unmarshal([]byte(`"running"`), &st); err != nil || st != StateRunning {
		t.Errorf("json.Unmarshal(running) = %v, %v", st, err)
	}
}

func TestEvent_JSON(t *testing.T) {
	e := Event{
		Op:       OpInit,
		Location: location.MustParse("driver:Ticker/clock"),
		State:    StateFailed,
		Err:      errors.New("no port"),
	}
	if e.OK() {
		t.Error("OK() = true for event with error")
	}
	if e.ErrorText() != "no port" {
		t.Errorf("ErrorText() = %q", e.ErrorText())
	}

	b, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("json.Marshal error = %v", err)
	}
	for _, want := range []string{`"op":"init"`, `"location":"driver:Ticker/clock"`, `"state":"failed"`} {
		if !strings.Contains(string(b), want) {
			t.Errorf("JSON %s missing %s", b, want)
		}
	}
}

func TestFanout(t *testing.T) {
	var got []string
	f := Fanout{
		SinkFunc(func(e Event) { got = append(got, "a:"+string(e.Op)) }),
		nil,
		SinkFunc(func(e Event) { got = append(got, "b:"+string(e.Op)) }),
	}
	f.Record(Event{Op: OpAdd})

	if strings.Join(got, ",") != "a:add,b:add" {
		t.Errorf("fanout delivered %v", got)
	}
}
