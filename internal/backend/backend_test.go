package backend

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestKindOfFollowsWrapping(t *testing.T) {
	validation := Validation("restore", "Key Validation Error: %s cannot contain commas.", "a,b")
	conflict := ReservationConflict("save", "linux-deps-v1", nil)
	testCases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindOther},
		{"plain", errors.New("network down"), KindOther},
		{"validation", validation, KindValidation},
		{"wrapped validation", fmt.Errorf("restore: %w", validation), KindValidation},
		{"conflict", conflict, KindReservationConflict},
		{"wrapped conflict", fmt.Errorf("save: %w", conflict), KindReservationConflict},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Fatalf("KindOf() = %s, want %s", got, tc.want)
			}
		})
	}
	if !IsValidation(validation) || IsValidation(nil) || !IsReservationConflict(conflict) {
		t.Fatalf("helpers disagree with KindOf")
	}
}

func TestErrorSurfacesOriginalMessage(t *testing.T) {
	err := ReservationConflict("save", "linux-deps-v1", nil)
	want := "Unable to reserve cache with key linux-deps-v1, another job may be creating this cache."
	if err.Error() != want {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestValidateKeys(t *testing.T) {
	long := strings.Repeat("k", MaxKeyLength+1)
	many := make([]string, MaxKeys)
	for i := range many {
		many[i] = fmt.Sprintf("r%d", i)
	}
	testCases := []struct {
		name    string
		primary string
		restore []string
		wantErr bool
	}{
		{"ok", "linux-deps-v1", []string{"linux-deps-", "linux-"}, false},
		{"comma", "a,b", nil, true},
		{"empty primary", "", nil, true},
		{"comma in restore key", "a", []string{"b,c"}, true},
		{"too long", long, nil, true},
		{"exactly max length", strings.Repeat("k", MaxKeyLength), nil, false},
		{"too many", "p", many, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateKeys("restore", tc.primary, tc.restore)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ValidateKeys() error = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !IsValidation(err) {
				t.Fatalf("expected validation kind, got %v", err)
			}
		})
	}
}

func TestValidatePaths(t *testing.T) {
	if err := ValidatePaths("save", nil); !IsValidation(err) {
		t.Fatalf("empty paths should be a validation error, got %v", err)
	}
	if err := ValidatePaths("save", []string{"dist"}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestSelectMatch(t *testing.T) {
	now := time.Now()
	entries := []Entry{
		{Key: "linux-deps-v0", CreatedAt: now.Add(-2 * time.Hour)},
		{Key: "linux-deps-old", CreatedAt: now.Add(-3 * time.Hour)},
		{Key: "linux-other", CreatedAt: now},
		{Key: "macos-deps-v1", CreatedAt: now},
	}

	testCases := []struct {
		name    string
		primary string
		restore []string
		want    string
		found   bool
	}{
		{"exact wins over prefix", "linux-deps-v0", []string{"linux-"}, "linux-deps-v0", true},
		{"first prefix with candidates wins", "linux-deps-v1", []string{"linux-deps-", "linux-"}, "linux-deps-v0", true},
		{"newest within prefix", "linux-v9", []string{"linux-"}, "linux-other", true},
		{"skips empty prefixes", "x", []string{"windows-", "macos-"}, "macos-deps-v1", true},
		{"no match", "x", []string{"windows-"}, "", false},
		{"no restore keys", "linux-deps-v1", nil, "", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := SelectMatch(tc.primary, tc.restore, entries)
			if ok != tc.found || got.Key != tc.want {
				t.Fatalf("SelectMatch() = %q,%v want %q,%v", got.Key, ok, tc.want, tc.found)
			}
		})
	}
}

func TestVersionDependsOnPathsAndCompression(t *testing.T) {
	a := Version([]string{"node_modules"}, CompressionZstd)
	if a != Version([]string{"node_modules"}, CompressionZstd) {
		t.Fatalf("version must be deterministic")
	}
	if a == Version([]string{"node_modules"}, CompressionLZ4) {
		t.Fatalf("compression must change the version")
	}
	if a == Version([]string{"node_modules", "~/.npm"}, CompressionZstd) {
		t.Fatalf("paths must change the version")
	}
	if len(a) != 64 || len(EntryName("k")) != 64 {
		t.Fatalf("expected 32-byte hex digests")
	}
}

func TestParseCompression(t *testing.T) {
	for name, want := range map[string]Compression{"": CompressionZstd, "zstd": CompressionZstd, "lz4": CompressionLZ4} {
		got, err := ParseCompression(name)
		if err != nil || got != want {
			t.Fatalf("ParseCompression(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseCompression("gzip"); err == nil {
		t.Fatalf("gzip should be rejected")
	}
}
