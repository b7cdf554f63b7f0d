package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hirmir.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadFullManifest(t *testing.T) {
	path := writeManifest(t, `
[lowering]
target_version = "1.19"
full_validation = true
jobs = 3
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TargetVersion != V1_19 {
		t.Errorf("TargetVersion = %v, want 1.19", cfg.TargetVersion)
	}
	if !cfg.TargetVersion.UsesPlacer() {
		t.Errorf("1.19 should select the placer emplace protocol")
	}
	if !cfg.FullValidation || cfg.Jobs != 3 {
		t.Errorf("FullValidation/Jobs not applied: %+v", cfg)
	}
}

func TestLoadMissingKeysKeepDefaults(t *testing.T) {
	path := writeManifest(t, `
[lowering]
jobs = 1
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.TargetVersion != def.TargetVersion || cfg.FullValidation != def.FullValidation {
		t.Errorf("defaults not preserved: %+v", cfg)
	}
	if cfg.Jobs != 1 {
		t.Errorf("Jobs = %d, want 1", cfg.Jobs)
	}
}

func TestLoadEmptyManifestIsAllDefaults(t *testing.T) {
	path := writeManifest(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Errorf("empty manifest should yield Default(), got %+v", cfg)
	}
}

func TestLoadRejectsUnknownTargetVersion(t *testing.T) {
	path := writeManifest(t, `
[lowering]
target_version = "2.0"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("unknown target_version should be rejected")
	}
}

func TestLoadRejectsNegativeJobs(t *testing.T) {
	path := writeManifest(t, `
[lowering]
jobs = -2
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("negative jobs should be rejected")
	}
}

func TestParseTargetVersionAliases(t *testing.T) {
	cases := map[string]TargetVersion{
		"1.19": V1_19, "V1_19": V1_19,
		"1.29": V1_29, "v1.29": V1_29,
		"1.39": V1_39, "": V1_39,
	}
	for in, want := range cases {
		got, err := ParseTargetVersion(in)
		if err != nil || got != want {
			t.Errorf("ParseTargetVersion(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}
