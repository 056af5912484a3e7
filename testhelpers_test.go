package main

import (
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/miekg/dns"
)

// fakeBackend stands in for the authoritative nameserver: it applies
// dynamic updates to an in-memory zone and answers queries from it, so
// command/query round-trips behave like a real server without one.
type fakeBackend struct {
	mu          sync.Mutex
	updates     []*dns.Msg
	zone        map[string]map[uint16][]dns.RR
	exchangeErr error
	queryRcode  int
	transferRRs []dns.RR
	transferErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{zone: make(map[string]map[uint16][]dns.RR)}
}

func (f *fakeBackend) exchange(_ context.Context, msg *dns.Msg) (*dns.Msg, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}

	resp := new(dns.Msg)
	resp.SetReply(msg)

	if msg.Opcode == dns.OpcodeUpdate {
		f.updates = append(f.updates, msg.Copy())
		f.apply(msg)
		return resp, nil
	}

	if f.queryRcode != 0 {
		resp.Rcode = f.queryRcode
		return resp, nil
	}

	q := msg.Question[0]
	for _, rr := range f.zone[q.Name][q.Qtype] {
		resp.Answer = append(resp.Answer, rr)
	}
	return resp, nil
}

func (f *fakeBackend) apply(msg *dns.Msg) {
	for _, rr := range msg.Ns {
		h := rr.Header()
		switch h.Class {
		case dns.ClassINET:
			if f.zone[h.Name] == nil {
				f.zone[h.Name] = make(map[uint16][]dns.RR)
			}
			f.zone[h.Name][h.Rrtype] = append(f.zone[h.Name][h.Rrtype], rr)
		case dns.ClassNONE:
			kept := f.zone[h.Name][h.Rrtype][:0]
			for _, existing := range f.zone[h.Name][h.Rrtype] {
				if rdataString(existing) != rdataString(rr) {
					kept = append(kept, existing)
				}
			}
			f.zone[h.Name][h.Rrtype] = kept
		case dns.ClassANY:
			if h.Rrtype == dns.TypeANY {
				delete(f.zone, h.Name)
			} else if f.zone[h.Name] != nil {
				delete(f.zone[h.Name], h.Rrtype)
			}
		}
	}
}

func (f *fakeBackend) transfer(_ context.Context, _ *dns.Msg) ([]dns.RR, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.transferErr != nil {
		return nil, f.transferErr
	}
	return f.transferRRs, nil
}

func (f *fakeBackend) lastUpdate(t *testing.T) *dns.Msg {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updates) == 0 {
		t.Fatal("expected at least one update message")
	}
	return f.updates[len(f.updates)-1]
}

func testConfig() config {
	return config{
		HTTPListen:  ":0",
		AllowedZone: "example.com.",
		BindServer:  "127.0.0.1:53",
		AdminAPIKey: "admin-secret",
		InviteCode:  "letmein",
		DefaultTTL:  3600,
		DNSTimeout:  time.Second,
		SessionTTL:  time.Hour,
	}
}

func newTestEnv(t *testing.T) (*server, *fakeBackend) {
	t.Helper()

	store, err := newPrincipalStore(filepath.Join(t.TempDir(), "dns-manager-test.db"))
	if err != nil {
		t.Fatalf("newPrincipalStore: %v", err)
	}

	cfg := testConfig()
	backend := newFakeBackend()
	s := &server{
		cfg:   cfg,
		store: store,
		dns:   newDNSManager(backend, cfg),
		start: time.Now().Add(-time.Second),
	}
	return s, backend
}

func mustCreateUser(t *testing.T, s *server, name, email, subdomain string) *userModel {
	t.Helper()
	u, err := s.store.createUser(name, email, "password123", subdomain)
	if err != nil {
		t.Fatalf("createUser %s: %v", subdomain, err)
	}
	return u
}

func mustCreateNode(t *testing.T, s *server, ownerID, subdomain string) *nodeModel {
	t.Helper()
	n, err := s.store.createNode(ownerID, subdomain)
	if err != nil {
		t.Fatalf("createNode %s: %v", subdomain, err)
	}
	return n
}

func apiRequest(t *testing.T, s *server, method, path, apiKey, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if apiKey != "" {
		req.Header.Set("X-Api-Key", apiKey)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp := httptest.NewRecorder()
	s.newRouter().ServeHTTP(resp, req)
	return resp
}
