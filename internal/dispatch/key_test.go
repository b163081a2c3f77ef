package dispatch

import (
	"strings"
	"testing"
)

func TestConversationKey(t *testing.T) {
	key, err := ConversationKey("123456789")
	if err != nil {
		t.Fatalf("ConversationKey() error = %v", err)
	}
	if key != "discord:123456789" {
		t.Fatalf("ConversationKey() = %q, want discord:123456789", key)
	}
}

func TestConversationKeyRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name string
		id   string
	}{
		{name: "empty", id: ""},
		{name: "blank", id: "   "},
		{name: "contains space", id: "a b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ConversationKey(tc.id); err == nil {
				t.Fatalf("ConversationKey(%q) expected error", tc.id)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		limit int
		want  int
	}{
		{name: "long reply capped", text: strings.Repeat("x", 5000), limit: 1999, want: 1999},
		{name: "at limit untouched", text: strings.Repeat("x", 1999), limit: 1999, want: 1999},
		{name: "short untouched", text: "hello", limit: 1999, want: 5},
		{name: "zero limit untouched", text: "hello", limit: 0, want: 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Truncate(tc.text, tc.limit)
			if len([]rune(got)) != tc.want {
				t.Fatalf("Truncate() len = %d, want %d", len([]rune(got)), tc.want)
			}
		})
	}
}

func TestTruncateCountsRunes(t *testing.T) {
	text := strings.Repeat("日", 3000)
	got := Truncate(text, 1999)
	if n := len([]rune(got)); n != 1999 {
		t.Fatalf("Truncate() rune len = %d, want 1999", n)
	}
	for _, r := range got {
		if r != '日' {
			t.Fatalf("Truncate() produced mangled rune %q", r)
		}
	}
}
