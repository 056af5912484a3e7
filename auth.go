package main

import (
	"context"
	"crypto/subtle"
	"log"
	"net/http"
	"strings"

	"github.com/miekg/dns"
)

type role string

const (
	roleAdmin role = "admin"
	roleUser  role = "user"
	roleNode  role = "node"
)

type principalKind int

const (
	principalAnonymous principalKind = iota
	principalUser
	principalNode
	principalAdmin
)

// principal is the tagged union over {Admin, User, Node, Anonymous}. For
// node principals the owner row is resolved up front so authorization
// never touches the store.
type principal struct {
	kind  principalKind
	user  *userModel
	node  *nodeModel
	owner *userModel
}

func anonymous() principal {
	return principal{kind: principalAnonymous}
}

func (p principal) authenticated() bool {
	return p.kind != principalAnonymous
}

func (p principal) roles() []role {
	switch p.kind {
	case principalAdmin:
		return []role{roleAdmin, roleUser, roleNode}
	case principalUser:
		// A user may act with node-level privileges inside its own
		// namespace.
		return []role{roleUser, roleNode}
	case principalNode:
		return []role{roleNode}
	default:
		return nil
	}
}

func (p principal) hasRoles(required ...role) bool {
	owned := p.roles()
	for _, want := range required {
		found := false
		for _, have := range owned {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// scopeDomain is the FQDN boundary the principal may write within.
func (p principal) scopeDomain(zone string) string {
	switch p.kind {
	case principalUser:
		return normalizeName(p.user.Domain + "." + zone)
	case principalNode:
		return normalizeName(p.node.Domain + "." + p.owner.Domain + "." + zone)
	default:
		return ""
	}
}

// canAccess decides whether the principal may touch the literal target
// name. Out-of-zone names are rejected for everyone, admin covers the
// whole zone, a user covers its subdomain and below, a node covers
// exactly its own name and nothing else.
func (s *server) canAccess(p principal, target string) bool {
	target = normalizeName(target)
	if s.cfg.AllowedZone == "" || s.cfg.AllowedZone == "." {
		return false
	}
	if !dns.IsSubDomain(s.cfg.AllowedZone, target) {
		return false
	}

	switch p.kind {
	case principalAdmin:
		return true
	case principalUser:
		return dns.IsSubDomain(p.scopeDomain(s.cfg.AllowedZone), target)
	case principalNode:
		return target == p.scopeDomain(s.cfg.AllowedZone)
	default:
		return false
	}
}

// resolveAPIKey turns a bearer key into a principal: user first, then
// node, then the admin shared secret. Absence is a value, not an error.
func (s *server) resolveAPIKey(key string) principal {
	if key == "" {
		return anonymous()
	}

	if u, err := s.store.userByAPIKey(key); err == nil {
		return principal{kind: principalUser, user: u}
	}
	if n, err := s.store.nodeByAPIKey(key); err == nil {
		owner, err := s.store.userByID(n.OwnerUserID)
		if err != nil {
			log.Printf("node %s has no owner row: %v", n.ID, err)
			return anonymous()
		}
		return principal{kind: principalNode, node: n, owner: owner}
	}
	if s.cfg.AdminAPIKey != "" &&
		subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.AdminAPIKey)) == 1 {
		return principal{kind: principalAdmin}
	}
	return anonymous()
}

func (s *server) resolveSession(token string) principal {
	if token == "" {
		return anonymous()
	}
	u, err := s.store.sessionUser(token)
	if err != nil {
		return anonymous()
	}
	return principal{kind: principalUser, user: u}
}

type ctxKey int

const principalCtxKey ctxKey = iota

func principalFrom(ctx context.Context) principal {
	if p, ok := ctx.Value(principalCtxKey).(principal); ok {
		return p
	}
	return anonymous()
}

// authMiddleware resolves the caller's credential (X-Api-Key header or
// session cookie) into a principal and stores it on the context. It never
// rejects; route guards decide what anonymous may do.
func (s *server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := anonymous()
		if key := strings.TrimSpace(r.Header.Get("X-Api-Key")); key != "" {
			p = s.resolveAPIKey(key)
		} else if c, err := r.Cookie(sessionCookieName); err == nil {
			p = s.resolveSession(c.Value)
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalCtxKey, p)))
	})
}

func (s *server) requireRoles(required ...role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := principalFrom(r.Context())
			if !p.authenticated() || !p.hasRoles(required...) {
				writeError(w, unauthorizedError("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
