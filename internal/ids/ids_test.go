package ids

import (
	"strings"
	"testing"
)

func TestNewCapability(t *testing.T) {
	cases := []struct {
		raw     string
		wantErr bool
	}{
		{"message.send", false},
		{"calendar.read", false},
		{"a.b.c", false},
		{"message", true},   // no dot
		{"Message.send", true}, // uppercase
		{"message.", true},
		{".send", true},
		{"message.send.", true},
	}
	for _, c := range cases {
		_, err := NewCapability(c.raw)
		if (err != nil) != c.wantErr {
			t.Errorf("NewCapability(%q) error = %v, wantErr %v", c.raw, err, c.wantErr)
		}
	}
}

func TestNewProfileName(t *testing.T) {
	if _, err := NewProfileName("ab"); err == nil {
		t.Error("expected error for too-short profile name")
	}
	if _, err := NewProfileName("org_default"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := NewProfileName("Org"); err == nil {
		t.Error("expected error for uppercase profile name")
	}
}

func TestNewUserID(t *testing.T) {
	if _, err := NewUserID("usr_abcd"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := NewUserID("svc_abcd"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := NewUserID("abc_abcd"); err == nil {
		t.Error("expected error for bad prefix")
	}
	if _, err := NewUserID("usr_a"); err == nil {
		t.Error("expected error for too-short suffix")
	}
}

func TestValidationErrorCode(t *testing.T) {
	_, err := NewKitID("bad")
	if err == nil {
		t.Fatal("expected error")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if ve.Code() != "kit_id.invalid" {
		t.Errorf("Code() = %q, want kit_id.invalid", ve.Code())
	}
}

func TestGeneratedIDsHavePrefixAndAreUnique(t *testing.T) {
	p1, p2 := NewPatchID(), NewPatchID()
	if !strings.HasPrefix(p1, "pat_") || !strings.HasPrefix(p2, "pat_") {
		t.Fatalf("expected pat_ prefix, got %q %q", p1, p2)
	}
	if p1 == p2 {
		t.Error("expected distinct patch IDs")
	}

	h := NewHistoryEntryID()
	if !strings.HasPrefix(h, "phe_") {
		t.Errorf("expected phe_ prefix, got %q", h)
	}

	a := NewAuditRecordID()
	if !strings.HasPrefix(a, "aud_") {
		t.Errorf("expected aud_ prefix, got %q", a)
	}
}
