package json

import (
	"bytes"
	stdjson "encoding/json"
	"strings"
	"testing"
)

type testVariant struct {
	Name    string `json:"name"`
	Width   int    `json:"w" default:"100"`
	Height  int    `json:"h" default:"100"`
	Square  bool   `json:"square" default:"true"`
	Comment string `json:"comment,omitempty"`
}

func TestMarshalAppliesDefaults(t *testing.T) {
	v := &testVariant{Name: "small"}

	data, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	if v.Width != 100 || v.Height != 100 || !v.Square {
		t.Fatalf("expected defaults on source struct, got %+v", v)
	}

	var decoded testVariant
	if err := stdjson.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("encoded JSON should be valid: %v", err)
	}
	if decoded != *v {
		t.Fatalf("expected %+v, got %+v", *v, decoded)
	}
}

func TestUnmarshalKeepsExplicitValues(t *testing.T) {
	var v testVariant
	if err := Unmarshal([]byte(`{"name":"wide","w":300}`), &v); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if v.Width != 300 {
		t.Fatalf("expected explicit width 300, got %d", v.Width)
	}
	if v.Height != 100 {
		t.Fatalf("expected default height 100, got %d", v.Height)
	}
}

func TestMarshalNonStruct(t *testing.T) {
	data, err := Marshal(map[string]int{"small": 40})
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	if string(data) != `{"small":40}` {
		t.Fatalf("unexpected output %s", data)
	}
}

func TestEncoderAppliesDefaults(t *testing.T) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf).Encode(&testVariant{Name: "tiny"}); err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if !strings.Contains(buf.String(), `"w":100`) {
		t.Fatalf("expected default width in %s", buf.String())
	}
}
