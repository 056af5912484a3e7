package main

import (
	"testing"
	"time"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HTTP_LISTEN", "DB_PATH", "BIND_SERVER",
		"TSIG_KEY_NAME", "TSIG_SECRET", "BIND_ALLOWED_ZONE",
		"ADMIN_API_KEY", "INVITE_CODE",
		"DEFAULT_TTL", "DNS_TIMEOUT_SECONDS", "SESSION_TTL_HOURS", "DEBUG_LOG",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg := loadConfig()
	if cfg.HTTPListen != ":8080" {
		t.Fatalf("HTTPListen = %q", cfg.HTTPListen)
	}
	if cfg.DBPath != "dns-manager.db" {
		t.Fatalf("DBPath = %q", cfg.DBPath)
	}
	if cfg.BindServer != "127.0.0.1:53" {
		t.Fatalf("BindServer = %q", cfg.BindServer)
	}
	if cfg.AllowedZone != "." {
		t.Fatalf("AllowedZone = %q", cfg.AllowedZone)
	}
	if cfg.DefaultTTL != 3600 {
		t.Fatalf("DefaultTTL = %d", cfg.DefaultTTL)
	}
	if cfg.DNSTimeout != 5*time.Second {
		t.Fatalf("DNSTimeout = %v", cfg.DNSTimeout)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Fatalf("SessionTTL = %v", cfg.SessionTTL)
	}
}

func TestLoadConfigZoneNormalized(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("BIND_ALLOWED_ZONE", "Example.COM")

	cfg := loadConfig()
	if cfg.AllowedZone != "example.com." {
		t.Fatalf("AllowedZone = %q, want example.com.", cfg.AllowedZone)
	}
}

func TestLoadConfigTSIG(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("TSIG_KEY_NAME", "update-key")
	t.Setenv("TSIG_SECRET", "c2VjcmV0")

	cfg := loadConfig()
	if cfg.TSIGKeyName != "update-key." {
		t.Fatalf("TSIGKeyName = %q, want update-key.", cfg.TSIGKeyName)
	}
	if cfg.TSIGSecret != "c2VjcmV0" {
		t.Fatalf("TSIGSecret = %q", cfg.TSIGSecret)
	}
}

func TestLoadConfigTSIGWithoutSecret(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("TSIG_KEY_NAME", "update-key")

	cfg := loadConfig()
	if cfg.TSIGKeyName != "" {
		t.Fatalf("TSIGKeyName = %q, want signing disabled", cfg.TSIGKeyName)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DEFAULT_TTL", "60")
	t.Setenv("DNS_TIMEOUT_SECONDS", "2")
	t.Setenv("SESSION_TTL_HOURS", "1")

	cfg := loadConfig()
	if cfg.DefaultTTL != 60 {
		t.Fatalf("DefaultTTL = %d", cfg.DefaultTTL)
	}
	if cfg.DNSTimeout != 2*time.Second {
		t.Fatalf("DNSTimeout = %v", cfg.DNSTimeout)
	}
	if cfg.SessionTTL != time.Hour {
		t.Fatalf("SessionTTL = %v", cfg.SessionTTL)
	}
}
