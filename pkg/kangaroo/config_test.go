package kangaroo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const testPubKeyG = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.txt")
	content := "100\n200\n" + testPubKeyG + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.RangeStartHex != "100" || cfg.RangeEndHex != "200" {
		t.Fatal("range lines parsed wrong")
	}
	if len(cfg.PubKeysHex) != 1 || cfg.PubKeysHex[0] != testPubKeyG {
		t.Fatal("pubkey line parsed wrong")
	}
}

func TestLoadConfigFile_SkipsBlankLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.txt")
	content := "\n100\n\n200\n\n" + testPubKeyG + "\n\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.RangeStartHex != "100" || len(cfg.PubKeysHex) != 1 {
		t.Fatal("blank lines must be ignored")
	}
}

func TestLoadConfigFile_TooFewLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.txt")
	if err := os.WriteFile(path, []byte("100\n200\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfigFile(path); !errors.Is(err, ErrInput) {
		t.Fatalf("expected ErrInput, got %v", err)
	}
}

func TestLoadConfigFile_Missing(t *testing.T) {
	if _, err := LoadConfigFile("/nonexistent/cfg.txt"); !errors.Is(err, ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
}

func TestWriteEphemeralConfig(t *testing.T) {
	path, err := WriteEphemeralConfig("100", "200", testPubKeyG)
	if err != nil {
		t.Fatalf("WriteEphemeralConfig: %v", err)
	}
	defer os.Remove(path)

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("materialised config unreadable: %v", err)
	}
	if cfg.RangeStartHex != "100" || cfg.RangeEndHex != "200" || cfg.PubKeysHex[0] != testPubKeyG {
		t.Fatal("materialised config does not round-trip")
	}
}

func TestDecToHex(t *testing.T) {
	got, err := DecToHex("4294967296")
	if err != nil {
		t.Fatal(err)
	}
	if got != "100000000" {
		t.Fatalf("DecToHex(2^32) = %q", got)
	}
	if _, err := DecToHex("-5"); err == nil {
		t.Error("negative decimal must be rejected")
	}
	if _, err := DecToHex("xyz"); err == nil {
		t.Error("non-decimal must be rejected")
	}
}

func TestParsePubKeyHex_RejectsInvalid(t *testing.T) {
	// x beyond the field prime can never be on the curve.
	if _, err := parsePubKeyHex("02ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"); err == nil {
		t.Fatal("invalid key must be rejected")
	}
	if _, err := parsePubKeyHex("not-hex"); err == nil {
		t.Fatal("bad hex must be rejected")
	}
	if _, err := parsePubKeyHex(testPubKeyG); err != nil {
		t.Fatalf("the generator must parse: %v", err)
	}
}
