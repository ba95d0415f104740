package domain

import (
	"errors"
	"testing"
)

func TestParseEnabled(t *testing.T) {
	cases := map[string]bool{
		"enable": true, "TRUE": true, "1": true, "yes": true,
		"disable": false, "false": false, "0": false, "no": false,
	}
	for in, want := range cases {
		got, err := ParseEnabled(in)
		if err != nil {
			t.Fatalf("input %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("input %q: want %v, got %v", in, want, got)
		}
	}
	if _, err := ParseEnabled("maybe"); !errors.Is(err, ErrInvalidBool) {
		t.Fatalf("want ErrInvalidBool, got %v", err)
	}
}

func TestParseJitterRadius(t *testing.T) {
	if v, err := ParseJitterRadius("0.0001"); err != nil || v != 0.0001 {
		t.Fatalf("got %v, %v", v, err)
	}
	if _, err := ParseJitterRadius("-0.1"); !errors.Is(err, ErrNegativeRadius) {
		t.Fatalf("want ErrNegativeRadius, got %v", err)
	}
	if _, err := ParseJitterRadius("tiny"); !errors.Is(err, ErrInvalidRadius) {
		t.Fatalf("want ErrInvalidRadius, got %v", err)
	}
}
