package movie

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/text/encoding/japanese"
)

func TestUnwrapPayload(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "abc", "abc"},
		{"bytes", []byte("abc"), "abc"},
		{"reader", strings.NewReader("abc"), "abc"},
		{"payload data", Payload{Data: []byte("abc"), Text: "ignored"}, "abc"},
		{"payload text", &Payload{Text: "abc"}, "abc"},
		{"payload response", Payload{Response: []byte("abc")}, "abc"},
		{"map first non-empty", map[string]any{"data": nil, "text": "abc", "response": "zzz"}, "abc"},
		{"map response", map[string]any{"response": []byte("abc")}, "abc"},
		{"bom stripped", "\ufeffabc", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := unwrapPayload(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnwrapPayload_Errors(t *testing.T) {
	for _, in := range []any{nil, 42, "", map[string]any{"data": nil}, (*Payload)(nil), Payload{Charset: "no-such-charset", Text: "x"}} {
		if _, err := unwrapPayload(in); !errors.Is(err, ErrTypeMismatch) {
			t.Errorf("%#v: expected ErrTypeMismatch, got %v", in, err)
		}
	}
}

func TestUnwrapPayload_Charset(t *testing.T) {
	const text = "title: こんにちは"
	sjis, err := japanese.ShiftJIS.NewEncoder().String(text)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := unwrapPayload(Payload{Data: []byte(sjis), Charset: "Shift_JIS"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != text {
		t.Errorf("got %q", got)
	}

	got, err = unwrapPayload(map[string]any{"text": sjis, "charset": "shift_jis"})
	if err != nil || string(got) != text {
		t.Errorf("map charset: %q, %v", got, err)
	}
}
