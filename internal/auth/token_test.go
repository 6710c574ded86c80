package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)

	token, expiresAt, err := tm.GenerateToken("ops-1", RoleOperator)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if time.Until(expiresAt) < 59*time.Minute {
		t.Errorf("expiry %s too close", expiresAt)
	}

	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.SubjectID != "ops-1" {
		t.Errorf("subject = %q, want ops-1", claims.SubjectID)
	}
	if claims.Role != RoleOperator {
		t.Errorf("role = %q, want operator", claims.Role)
	}
}

func TestTokenWrongSecretRejected(t *testing.T) {
	token, _, err := NewTokenManager("secret-a", 60).GenerateToken("ops-1", RoleViewer)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewTokenManager("secret-b", 60).ParseToken(token); err == nil {
		t.Error("token signed with a different secret accepted")
	}
}

func TestParseRole(t *testing.T) {
	cases := []struct {
		name    string
		want    Role
		wantErr bool
	}{
		{name: "viewer", want: RoleViewer},
		{name: "operator", want: RoleOperator},
		{name: "admin", wantErr: true},
		{name: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseRole(tc.name)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseRole(%q) accepted", tc.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRole(%q): %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestTokenTTLFallback(t *testing.T) {
	tm := NewTokenManager("s", 0)
	_, expiresAt, err := tm.GenerateToken("ops-1", RoleViewer)
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(expiresAt) < 59*time.Minute {
		t.Errorf("default TTL not applied, expiry %s", expiresAt)
	}
}
