package config

import (
	"reflect"
	"testing"

	"github.com/spf13/pflag"
)

func newInputFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterInputFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return fs
}

func TestLoadInputsFromEnv(t *testing.T) {
	t.Setenv("INPUT_KEY", "linux-deps-v1")
	t.Setenv("INPUT_PATH", "node_modules\n\n  ~/.npm  \n! node_modules/.bin")
	t.Setenv("INPUT_RESTORE-KEYS", "linux-deps-\nlinux-")
	t.Setenv("INPUT_UPLOAD-CHUNK-SIZE", "1048576")
	t.Setenv("INPUT_FORCE-CACHE-SAVE", "True")

	in, err := LoadInputs(newInputFlags(t), true)
	if err != nil {
		t.Fatalf("LoadInputs: %v", err)
	}
	if in.Key != "linux-deps-v1" {
		t.Fatalf("unexpected key %q", in.Key)
	}
	wantPaths := []string{"node_modules", "~/.npm", "!node_modules/.bin"}
	if !reflect.DeepEqual(in.Paths, wantPaths) {
		t.Fatalf("paths = %#v, want %#v", in.Paths, wantPaths)
	}
	wantRestore := []string{"linux-deps-", "linux-"}
	if !reflect.DeepEqual(in.RestoreKeys, wantRestore) {
		t.Fatalf("restore keys = %#v, want %#v", in.RestoreKeys, wantRestore)
	}
	if in.UploadChunkSize != 1048576 {
		t.Fatalf("unexpected chunk size %d", in.UploadChunkSize)
	}
	if !in.ForceCacheSave {
		t.Fatalf("force-cache-save should be true")
	}
}

func TestLoadInputsFlagsOverrideEnv(t *testing.T) {
	t.Setenv("INPUT_KEY", "from-env")
	t.Setenv("INPUT_PATH", "env-path")
	t.Setenv("CACHE_RUN_ID", "env-run")

	fs := newInputFlags(t, "--key", "from-flag", "--path", "a", "--path", "b", "--run-id", "flag-run")
	in, err := LoadInputs(fs, true)
	if err != nil {
		t.Fatalf("LoadInputs: %v", err)
	}
	if in.Key != "from-flag" {
		t.Fatalf("flag 应高于环境变量, got %q", in.Key)
	}
	if !reflect.DeepEqual(in.Paths, []string{"a", "b"}) {
		t.Fatalf("unexpected paths %#v", in.Paths)
	}
	if in.RunID != "flag-run" {
		t.Fatalf("unexpected run id %q", in.RunID)
	}
}

func TestLoadInputsRunIDFromEnv(t *testing.T) {
	t.Setenv("INPUT_PATH", "dist")
	t.Setenv("CACHE_RUN_ID", "42-1-build")

	in, err := LoadInputs(newInputFlags(t), false)
	if err != nil {
		t.Fatalf("LoadInputs: %v", err)
	}
	if in.RunID != "42-1-build" {
		t.Fatalf("unexpected run id %q", in.RunID)
	}
}

func TestLoadInputsRequiredFields(t *testing.T) {
	t.Setenv("INPUT_PATH", "dist")
	if _, err := LoadInputs(newInputFlags(t), true); err == nil {
		t.Fatalf("restore 缺少 key 应报错")
	}
	if _, err := LoadInputs(newInputFlags(t), false); err != nil {
		t.Fatalf("save 不要求 key: %v", err)
	}

	t.Setenv("INPUT_PATH", "")
	_, err := LoadInputs(newInputFlags(t, "--key", "k"), true)
	fieldErr, ok := err.(FieldError)
	if !ok || fieldErr.Field != "Input[path]" {
		t.Fatalf("expected Input[path] FieldError, got %v", err)
	}
}

func TestInputIntIgnoresInvalid(t *testing.T) {
	for _, raw := range []string{"", "abc", "-5"} {
		if got := inputInt(raw); got != 0 {
			t.Fatalf("inputInt(%q) = %d, want 0", raw, got)
		}
	}
}
