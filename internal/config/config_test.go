package config

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/mediarc")

	if cfg.Catalog.DBPath != filepath.Join("/data/mediarc", "metadata.sqlite3") {
		t.Errorf("db path = %s", cfg.Catalog.DBPath)
	}
	if cfg.Catalog.UploadDir != filepath.Join("/data/mediarc", "uploads") {
		t.Errorf("upload dir = %s", cfg.Catalog.UploadDir)
	}
	if cfg.Thumbnails.Size != 240 {
		t.Errorf("thumbnail size = %d, want 240", cfg.Thumbnails.Size)
	}
	if cfg.Vault.Type != "filesystem" {
		t.Errorf("vault type = %s, want filesystem", cfg.Vault.Type)
	}
	if cfg.Encryption.Enabled {
		t.Error("encryption should default to disabled")
	}
}

func TestConfigRoundTrip(t *testing.T) {
	orig := NewConfig("/data/mediarc")
	orig.Thumbnails.Size = 512
	orig.Vault.Type = "memory"
	orig.Encryption.Enabled = true

	var buf bytes.Buffer
	m := &Manager{}
	if err := m.Write(&buf, orig); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	if got.BaseDir != orig.BaseDir {
		t.Errorf("base dir = %s, want %s", got.BaseDir, orig.BaseDir)
	}
	if got.Thumbnails.Size != 512 {
		t.Errorf("thumbnail size = %d, want 512", got.Thumbnails.Size)
	}
	if got.Vault.Type != "memory" {
		t.Errorf("vault type = %s, want memory", got.Vault.Type)
	}
	if !got.Encryption.Enabled {
		t.Error("encryption flag lost in round trip")
	}
}

func TestConfigRead(t *testing.T) {
	t.Run("rejects malformed toml", func(t *testing.T) {
		m := &Manager{}
		if _, err := m.Read(strings.NewReader("not [valid")); err == nil {
			t.Error("expected decode error")
		}
	})
}

func TestInit(t *testing.T) {
	t.Run("writes a new config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mediarc.toml")
		if err := Init(path, NewConfig("/data/mediarc")); err != nil {
			t.Fatalf("init failed: %v", err)
		}

		cfg, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("read back failed: %v", err)
		}
		if cfg.BaseDir != "/data/mediarc" {
			t.Errorf("base dir = %s", cfg.BaseDir)
		}
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mediarc.toml")
		if err := Init(path, NewConfig("/data/mediarc")); err != nil {
			t.Fatalf("init failed: %v", err)
		}
		if err := Init(path, NewConfig("/other")); err == nil {
			t.Error("expected error on second init")
		}
	})
}
