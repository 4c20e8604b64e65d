// File: internal/domain/message_test.go
package domain

import "testing"

func TestAttachmentDataURI(t *testing.T) {
	att := Attachment{MimeType: "image/png", Data: "aGVsbG8="}
	want := "data:image/png;base64,aGVsbG8="
	if got := att.DataURI(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestAttachmentFromDataURI(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		wantOK   bool
		wantMime string
		wantData string
	}{
		{"valid", "data:image/png;base64,aGVsbG8=", true, "image/png", "aGVsbG8="},
		{"no prefix", "image/png;base64,aGVsbG8=", false, "", ""},
		{"no comma", "data:image/png;base64", false, "", ""},
		{"empty mime", "data:;base64,aGVsbG8=", false, "", ""},
		{"empty data", "data:image/png;base64,", false, "", ""},
		{"remote url", "https://example.com/cat.png", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			att, ok := AttachmentFromDataURI(tt.uri)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if !ok {
				return
			}
			if att.MimeType != tt.wantMime {
				t.Errorf("expected mime %q, got %q", tt.wantMime, att.MimeType)
			}
			if att.Data != tt.wantData {
				t.Errorf("expected data %q, got %q", tt.wantData, att.Data)
			}
		})
	}
}

func TestAttachmentRoundTrip(t *testing.T) {
	original := Attachment{MimeType: "image/jpeg", Data: "c29tZWJ5dGVz"}
	restored, ok := AttachmentFromDataURI(original.DataURI())
	if !ok {
		t.Fatal("round trip failed to parse")
	}
	if *restored != original {
		t.Errorf("round trip mismatch: %+v != %+v", *restored, original)
	}
}

func TestIdentityKey(t *testing.T) {
	if got := IdentityKey(""); got != GuestIdentity {
		t.Errorf("empty username should map to guest, got %q", got)
	}
	if got := IdentityKey("alice"); got != "user:alice" {
		t.Errorf("expected user:alice, got %q", got)
	}
}
