package handlers

import (
	"encoding/json"
	"testing"
)

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"abc":          "",
		"":             "",
		"Bearer ":      "",
	}
	for header, want := range cases {
		if got := BearerToken(header); got != want {
			t.Fatalf("BearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestFlexID_Unmarshal(t *testing.T) {
	var body struct {
		A flexID `json:"a"`
		B flexID `json:"b"`
		C flexID `json:"c"`
		D flexID `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"a":12,"b":"34","c":null,"d":""}`), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.A != 12 || body.B != 34 || body.C != 0 || body.D != 0 {
		t.Fatalf("unexpected ids %+v", body)
	}

	var bad struct {
		A flexID `json:"a"`
	}
	if err := json.Unmarshal([]byte(`{"a":"x1"}`), &bad); err == nil {
		t.Fatalf("expected error for non-numeric id")
	}
	if err := json.Unmarshal([]byte(`{"a":-1}`), &bad); err == nil {
		t.Fatalf("expected error for negative id")
	}
}
