package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/miekg/dns"
)

func normalizeName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return "."
	}
	return dns.Fqdn(name)
}

// rrTypeCode resolves a record-type string to its wire code. Besides the
// mnemonic names it accepts the generic TYPE### form, so operator-defined
// types pass through to the nameserver untouched.
func rrTypeCode(recordType string) (uint16, bool) {
	recordType = strings.ToUpper(strings.TrimSpace(recordType))
	if code, ok := dns.StringToType[recordType]; ok {
		return code, true
	}
	if rest, ok := strings.CutPrefix(recordType, "TYPE"); ok {
		n, err := strconv.ParseUint(rest, 10, 16)
		if err == nil {
			return uint16(n), true
		}
	}
	return 0, false
}

// rdataString renders only the record data of an RR, the way a caller
// expects to see record values ("192.0.2.1", "10 mail.example.com.").
func rdataString(rr dns.RR) string {
	header := rr.Header().String()
	return strings.TrimSpace(strings.TrimPrefix(rr.String(), header))
}

func randomKey() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("read random key material: %v", err))
	}
	return hex.EncodeToString(b)
}

func decodeJSON(r io.Reader, out any) error {
	dec := json.NewDecoder(io.LimitReader(r, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return validationError("invalid json: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envOrDefaultUint32(key string, fallback uint32) uint32 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil || n == 0 {
		return fallback
	}

	return uint32(n)
}

func envOrDefaultBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}

	return b
}
