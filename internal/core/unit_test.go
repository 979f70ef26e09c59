package core

import (
	"testing"
)

func TestUnitIDRoundTrip(t *testing.T) {
	v, err := ParseVersion("1.2.3")
	if err != nil {
		t.Fatal(err)
	}
	id := Identity{Namespace: "community", Name: "docker"}

	tests := []struct {
		name   string
		unit   Unit
		wantID string
	}{
		{
			name:   "collection version",
			unit:   Unit{Kind: KindCollectionVersion, Identity: id, Version: v},
			wantID: "pkg:ansible/community/docker@1.2.3",
		},
		{
			name:   "deprecation marker",
			unit:   DeprecationUnit(id),
			wantID: "pkg:ansible/community/docker?marker=deprecated",
		},
		{
			name: "signature",
			unit: Unit{
				Kind:        KindSignature,
				Identity:    id,
				Version:     v,
				Fingerprint: "ABCDEF0123456789",
			},
			wantID: "pkg:ansible/community/docker@1.2.3?signature=ABCDEF0123456789",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.unit.ID()
			if got != tt.wantID {
				t.Fatalf("ID() = %q, want %q", got, tt.wantID)
			}

			parsed, err := ParseUnitID(got)
			if err != nil {
				t.Fatalf("ParseUnitID(%q): %v", got, err)
			}
			if parsed.Kind != tt.unit.Kind {
				t.Errorf("kind = %v, want %v", parsed.Kind, tt.unit.Kind)
			}
			if parsed.Identity != tt.unit.Identity {
				t.Errorf("identity = %v, want %v", parsed.Identity, tt.unit.Identity)
			}
			if (parsed.Version == nil) != (tt.unit.Version == nil) {
				t.Fatalf("version presence mismatch")
			}
			if parsed.Version != nil && !parsed.Version.Equal(tt.unit.Version) {
				t.Errorf("version = %v, want %v", parsed.Version, tt.unit.Version)
			}
			if parsed.Fingerprint != tt.unit.Fingerprint {
				t.Errorf("fingerprint = %q, want %q", parsed.Fingerprint, tt.unit.Fingerprint)
			}
		})
	}
}

func TestParseUnitIDRejectsMalformed(t *testing.T) {
	bad := []string{
		"pkg:ansible/community/docker",                   // version missing
		"pkg:ansible/community/docker?signature=AB",      // signature without version
		"pkg:ansible/community/docker@1.0.0?marker=deprecated", // marker with version
		"pkg:npm/left-pad@1.0.0",                         // wrong type
		"not-a-purl",
	}
	for _, id := range bad {
		if _, err := ParseUnitID(id); err == nil {
			t.Errorf("ParseUnitID(%q): expected error", id)
		}
	}
}
