package main

import (
	"log"
	"os"
	"strings"
	"time"
)

func loadConfig() config {
	allowedZone := normalizeName(strings.TrimSpace(os.Getenv("BIND_ALLOWED_ZONE")))
	if allowedZone == "." {
		log.Printf("warning: BIND_ALLOWED_ZONE is empty, every name will be rejected as out of zone")
	}

	adminAPIKey := strings.TrimSpace(os.Getenv("ADMIN_API_KEY"))
	if adminAPIKey == "" {
		log.Printf("warning: ADMIN_API_KEY is empty, admin access is disabled")
	}

	inviteCode := strings.TrimSpace(os.Getenv("INVITE_CODE"))
	if inviteCode == "" {
		log.Printf("warning: INVITE_CODE is empty, signup is open")
	}

	tsigKeyName := strings.TrimSpace(os.Getenv("TSIG_KEY_NAME"))
	if tsigKeyName != "" {
		// TSIG key names are domain names on the wire.
		tsigKeyName = normalizeName(tsigKeyName)
	}
	tsigSecret := strings.TrimSpace(os.Getenv("TSIG_SECRET"))
	if tsigKeyName != "" && tsigSecret == "" {
		log.Printf("warning: TSIG_KEY_NAME is set but TSIG_SECRET is empty, updates will be unsigned")
		tsigKeyName = ""
	}

	return config{
		HTTPListen:  envOrDefault("HTTP_LISTEN", ":8080"),
		DBPath:      envOrDefault("DB_PATH", "dns-manager.db"),
		BindServer:  envOrDefault("BIND_SERVER", "127.0.0.1:53"),
		TSIGKeyName: tsigKeyName,
		TSIGSecret:  tsigSecret,
		AllowedZone: allowedZone,
		AdminAPIKey: adminAPIKey,
		InviteCode:  inviteCode,
		DefaultTTL:  envOrDefaultUint32("DEFAULT_TTL", 3600),
		DNSTimeout:  time.Duration(envOrDefaultUint32("DNS_TIMEOUT_SECONDS", 5)) * time.Second,
		SessionTTL:  time.Duration(envOrDefaultUint32("SESSION_TTL_HOURS", 24)) * time.Hour,
		DebugLog:    envOrDefaultBool("DEBUG_LOG", false),
	}
}
