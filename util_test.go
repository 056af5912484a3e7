package main

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/miekg/dns"
)

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"example.com", "example.com."},
		{"example.com.", "example.com."},
		{"  Node.Alice.Example.COM  ", "node.alice.example.com."},
		{"", "."},
		{"   ", "."},
	}
	for _, c := range cases {
		if got := normalizeName(c.in); got != c.want {
			t.Fatalf("normalizeName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRRTypeCode(t *testing.T) {
	cases := []struct {
		in   string
		want uint16
		ok   bool
	}{
		{"A", dns.TypeA, true},
		{"txt", dns.TypeTXT, true},
		{" Mx ", dns.TypeMX, true},
		{"TYPE1234", 1234, true},
		{"type65", 65, true},
		{"BOGUS", 0, false},
		{"TYPE99999", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := rrTypeCode(c.in)
		if got != c.want || ok != c.ok {
			t.Fatalf("rrTypeCode(%q) = (%d, %v), want (%d, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestRdataString(t *testing.T) {
	cases := []struct {
		rr   string
		want string
	}{
		{"host.example.com. 300 IN A 192.0.2.1", "192.0.2.1"},
		{"example.com. 300 IN MX 10 mail.example.com.", "10 mail.example.com."},
		{"example.com. 300 IN TXT \"hello world\"", "\"hello world\""},
	}
	for _, c := range cases {
		rr, err := dns.NewRR(c.rr)
		if err != nil {
			t.Fatalf("NewRR(%q): %v", c.rr, err)
		}
		if got := rdataString(rr); got != c.want {
			t.Fatalf("rdataString(%q) = %q, want %q", c.rr, got, c.want)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	var rec record
	if err := decodeJSON(strings.NewReader(`{"record_type":"A","record_value":"192.0.2.1"}`), &rec); err != nil {
		t.Fatalf("decodeJSON: %v", err)
	}
	if rec.RecordType != "A" || rec.RecordValue != "192.0.2.1" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	err := decodeJSON(strings.NewReader(`{"record_type":"A","bogus":true}`), &record{})
	if errKindOf(err) != errValidation {
		t.Fatalf("unknown field: got %v, want validation error", err)
	}

	err = decodeJSON(strings.NewReader(`{`), &record{})
	if errKindOf(err) != errValidation {
		t.Fatalf("truncated json: got %v, want validation error", err)
	}
}

func TestRandomKey(t *testing.T) {
	a, b := randomKey(), randomKey()
	if len(a) != 64 {
		t.Fatalf("key length = %d, want 64", len(a))
	}
	if a == b {
		t.Fatal("two keys came out identical")
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, 201, map[string]bool{"ok": true})
	if w.Code != 201 {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	if body := strings.TrimSpace(w.Body.String()); body != `{"ok":true}` {
		t.Fatalf("body = %q", body)
	}
}
