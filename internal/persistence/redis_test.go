package persistence

import "testing"

func TestCooldownKeyIsNamespaced(t *testing.T) {
	got := CooldownKey(42)
	want := "ticketbot:cooldown:42"
	if got != want {
		t.Errorf("CooldownKey(42) = %q, want %q", got, want)
	}
}
