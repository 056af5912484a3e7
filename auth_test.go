package main

import "testing"

func TestRoles(t *testing.T) {
	admin := principal{kind: principalAdmin}
	user := principal{kind: principalUser}
	node := principal{kind: principalNode}
	anon := anonymous()

	if !admin.hasRoles(roleAdmin, roleUser, roleNode) {
		t.Fatal("admin should hold every role")
	}
	if user.hasRoles(roleAdmin) {
		t.Fatal("user should not hold admin")
	}
	if !user.hasRoles(roleUser, roleNode) {
		t.Fatal("user should hold user and node")
	}
	if node.hasRoles(roleUser) {
		t.Fatal("node should not hold user")
	}
	if !node.hasRoles(roleNode) {
		t.Fatal("node should hold node")
	}
	if anon.hasRoles(roleNode) || anon.authenticated() {
		t.Fatal("anonymous holds nothing")
	}
}

func TestScopeDomain(t *testing.T) {
	alice := &userModel{Domain: "alice"}
	sensor := &nodeModel{Domain: "sensor"}

	p := principal{kind: principalUser, user: alice}
	if got := p.scopeDomain("example.com."); got != "alice.example.com." {
		t.Fatalf("user scope = %q", got)
	}

	p = principal{kind: principalNode, node: sensor, owner: alice}
	if got := p.scopeDomain("example.com."); got != "sensor.alice.example.com." {
		t.Fatalf("node scope = %q", got)
	}

	if got := anonymous().scopeDomain("example.com."); got != "" {
		t.Fatalf("anonymous scope = %q", got)
	}
}

func TestCanAccess(t *testing.T) {
	s, _ := newTestEnv(t)
	alice := mustCreateUser(t, s, "Alice", "alice@example.com", "alice")
	bob := mustCreateUser(t, s, "Bob", "bob@example.com", "bob")
	sensor := mustCreateNode(t, s, alice.ID, "sensor")

	asUser := principal{kind: principalUser, user: alice}
	asBob := principal{kind: principalUser, user: bob}
	asNode := principal{kind: principalNode, node: sensor, owner: alice}
	asAdmin := principal{kind: principalAdmin}

	cases := []struct {
		name   string
		p      principal
		target string
		want   bool
	}{
		{"user own apex", asUser, "alice.example.com", true},
		{"user below own apex", asUser, "www.alice.example.com", true},
		{"user deep below own apex", asUser, "a.b.alice.example.com", true},
		{"user other tenant", asUser, "bob.example.com", false},
		{"user zone apex", asUser, "example.com", false},
		{"user sibling prefix trick", asBob, "alice.example.com", false},
		{"user out of zone", asUser, "alice.example.org", false},

		{"node own fqdn", asNode, "sensor.alice.example.com", true},
		{"node owner apex", asNode, "alice.example.com", false},
		{"node below own fqdn", asNode, "x.sensor.alice.example.com", false},
		{"node sibling", asNode, "other.alice.example.com", false},
		{"node other tenant", asNode, "sensor.bob.example.com", false},

		{"admin tenant name", asAdmin, "anything.alice.example.com", true},
		{"admin zone apex", asAdmin, "example.com", true},
		{"admin out of zone", asAdmin, "example.org", false},

		{"anonymous", anonymous(), "alice.example.com", false},
	}
	for _, c := range cases {
		if got := s.canAccess(c.p, c.target); got != c.want {
			t.Fatalf("%s: canAccess(%q) = %v, want %v", c.name, c.target, got, c.want)
		}
	}
}

func TestCanAccessNoZone(t *testing.T) {
	s, _ := newTestEnv(t)
	s.cfg.AllowedZone = "."

	if s.canAccess(principal{kind: principalAdmin}, "example.com") {
		t.Fatal("empty zone must reject even admin")
	}
}

func TestResolveAPIKey(t *testing.T) {
	s, _ := newTestEnv(t)
	alice := mustCreateUser(t, s, "Alice", "alice@example.com", "alice")
	sensor := mustCreateNode(t, s, alice.ID, "sensor")

	p := s.resolveAPIKey(alice.APIKey)
	if p.kind != principalUser || p.user.ID != alice.ID {
		t.Fatalf("user key resolved to %+v", p)
	}

	p = s.resolveAPIKey(sensor.APIKey)
	if p.kind != principalNode || p.node.ID != sensor.ID {
		t.Fatalf("node key resolved to %+v", p)
	}
	if p.owner == nil || p.owner.ID != alice.ID {
		t.Fatal("node principal is missing its owner")
	}

	p = s.resolveAPIKey(s.cfg.AdminAPIKey)
	if p.kind != principalAdmin {
		t.Fatalf("admin key resolved to kind %d", p.kind)
	}

	if p := s.resolveAPIKey("no-such-key"); p.authenticated() {
		t.Fatalf("garbage key resolved to %+v", p)
	}
	if p := s.resolveAPIKey(""); p.authenticated() {
		t.Fatal("empty key resolved to a principal")
	}
}

func TestResolveAPIKeyAdminDisabled(t *testing.T) {
	s, _ := newTestEnv(t)
	s.cfg.AdminAPIKey = ""

	if p := s.resolveAPIKey(""); p.authenticated() {
		t.Fatal("empty key must stay anonymous when admin key is unset")
	}
}

func TestResolveSession(t *testing.T) {
	s, _ := newTestEnv(t)
	alice := mustCreateUser(t, s, "Alice", "alice@example.com", "alice")

	token, err := s.store.createSession(alice.ID, s.cfg.SessionTTL)
	if err != nil {
		t.Fatalf("createSession: %v", err)
	}

	p := s.resolveSession(token)
	if p.kind != principalUser || p.user.ID != alice.ID {
		t.Fatalf("session resolved to %+v", p)
	}

	if p := s.resolveSession("bogus"); p.authenticated() {
		t.Fatal("bogus token resolved to a principal")
	}
}
