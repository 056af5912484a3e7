package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/miekg/dns"
)

func (s *server) runHTTP(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.HTTPListen,
		Handler:           s.newRouter(),
		ReadHeaderTimeout: 2 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	return httpServer.ListenAndServe()
}

func (s *server) newRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(s.authMiddleware)

	r.Get("/healthz", s.handleHealth)

	r.Get("/", s.handleLoginPage)
	r.Get("/login", s.handleLoginPage)
	r.Post("/login", s.handleLoginSubmit)
	r.Get("/signup", s.handleSignupPage)
	r.Post("/signup", s.handleSignupSubmit)
	r.Get("/logout", s.handleLogout)
	r.Get("/dashboard", s.handleDashboard)

	r.Route("/api", func(api chi.Router) {
		api.Group(func(r chi.Router) {
			r.Use(s.requireRoles(roleAdmin))
			r.Get("/user", s.handleUserList)
			r.Post("/user", s.handleUserCreate)
			r.Get("/user/{id}", s.handleUserGet)
			r.Put("/user/{id}", s.handleUserUpdate)
			r.Delete("/user/{id}", s.handleUserDelete)
			r.Get("/dns/zone/{zone}", s.handleZoneDump)
		})

		api.Group(func(r chi.Router) {
			r.Use(s.requireRoles(roleUser))
			r.Get("/my_user", s.handleMyUser)
			r.Put("/my_user", s.handleMyUser)
			r.Delete("/my_user", s.handleMyUser)
			r.Get("/node", s.handleNodeList)
			r.Post("/node", s.handleNodeCreate)
			r.Get("/node/{id}", s.handleNodeGet)
			r.Put("/node/{id}", s.handleNodeUpdate)
			r.Delete("/node/{id}", s.handleNodeDelete)
		})

		api.Group(func(r chi.Router) {
			r.Use(s.requireRoles(roleNode))
			r.Get("/my_node", s.handleMyNode)
			r.Put("/my_node", s.handleMyNode)
			r.Delete("/my_node", s.handleMyNode)
			r.Get("/dns/record/{domain}", s.handleRecordGet)
			r.Post("/dns/record/{domain}", s.handleRecordCreate)
			r.Delete("/dns/record/{domain}", s.handleRecordDelete)
			r.Put("/dns/record/{domain}", s.handleRecordReplace)
		})
	})

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"zone":       s.cfg.AllowedZone,
		"uptime_sec": int(time.Since(s.start).Seconds()),
	})
}

func userResp(u *userModel) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Domain:    u.Domain,
		APIKey:    u.APIKey,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (s *server) nodeResp(n *nodeModel, ownerDomain string) nodeResponse {
	return nodeResponse{
		ID:          n.ID,
		OwnerUserID: n.OwnerUserID,
		Domain:      n.Domain,
		FQDN:        normalizeName(n.Domain + "." + ownerDomain + "." + s.cfg.AllowedZone),
		APIKey:      n.APIKey,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
}

func (s *server) handleUserList(w http.ResponseWriter, _ *http.Request) {
	users, err := s.store.listUsers()
	if err != nil {
		writeObjectError(w, err)
		return
	}

	out := make([]userResponse, 0, len(users))
	for i := range users {
		out = append(out, userResp(&users[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

func (s *server) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeObjectError(w, err)
		return
	}

	u, err := s.store.createUser(req.Name, req.Email, req.Password, req.Subdomain)
	if err != nil {
		writeObjectError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, userResp(u))
}

func (s *server) handleUserGet(w http.ResponseWriter, r *http.Request) {
	u, err := s.store.userByID(chi.URLParam(r, "id"))
	if err != nil {
		writeObjectError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResp(u))
}

func (s *server) handleUserUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeObjectError(w, err)
		return
	}

	u, err := s.store.updateUser(chi.URLParam(r, "id"), req)
	if err != nil {
		writeObjectError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResp(u))
}

func (s *server) handleUserDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.deleteUser(chi.URLParam(r, "id")); err != nil {
		writeObjectError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// handleMyUser delegates to the per-id handlers with the caller's own id;
// an admin has no user row to alias.
func (s *server) handleMyUser(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	if p.kind != principalUser {
		writeObjectError(w, notFoundError("no user account for this credential"))
		return
	}

	ctx := chi.RouteContext(r.Context())
	ctx.URLParams.Add("id", p.user.ID)

	switch r.Method {
	case http.MethodGet:
		s.handleUserGet(w, r)
	case http.MethodPut:
		s.handleUserUpdate(w, r)
	case http.MethodDelete:
		s.handleUserDelete(w, r)
	}
}

func (s *server) handleNodeList(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())

	if p.kind == principalAdmin {
		nodes, err := s.store.listNodes()
		if err != nil {
			writeObjectError(w, err)
			return
		}
		users, err := s.store.listUsers()
		if err != nil {
			writeObjectError(w, err)
			return
		}
		domains := make(map[string]string, len(users))
		for _, u := range users {
			domains[u.ID] = u.Domain
		}

		out := make([]nodeResponse, 0, len(nodes))
		for i := range nodes {
			out = append(out, s.nodeResp(&nodes[i], domains[nodes[i].OwnerUserID]))
		}
		writeJSON(w, http.StatusOK, map[string]any{"nodes": out})
		return
	}

	nodes, err := s.store.nodesByOwner(p.user.ID)
	if err != nil {
		writeObjectError(w, err)
		return
	}
	out := make([]nodeResponse, 0, len(nodes))
	for i := range nodes {
		out = append(out, s.nodeResp(&nodes[i], p.user.Domain))
	}
	writeJSON(w, http.StatusOK, map[string]any{"nodes": out})
}

func (s *server) handleNodeCreate(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())

	var req createNodeRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeObjectError(w, err)
		return
	}

	ownerID := req.OwnerUserID
	if p.kind == principalUser {
		ownerID = p.user.ID
	}
	if ownerID == "" {
		writeObjectError(w, validationError("owner_user_id is required"))
		return
	}

	n, err := s.store.createNode(ownerID, req.Subdomain)
	if err != nil {
		writeObjectError(w, err)
		return
	}
	owner, err := s.store.userByID(ownerID)
	if err != nil {
		writeObjectError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.nodeResp(n, owner.Domain))
}

// nodeForCaller loads a node only when the caller owns it or is admin;
// anything else reads as not-found.
func (s *server) nodeForCaller(p principal, id string) (*nodeModel, *userModel, error) {
	n, err := s.store.nodeByID(id)
	if err != nil {
		return nil, nil, err
	}
	if p.kind == principalUser && n.OwnerUserID != p.user.ID {
		return nil, nil, forbiddenError("not the node owner")
	}
	owner, err := s.store.userByID(n.OwnerUserID)
	if err != nil {
		return nil, nil, err
	}
	return n, owner, nil
}

func (s *server) handleNodeGet(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	n, owner, err := s.nodeForCaller(p, chi.URLParam(r, "id"))
	if err != nil {
		writeObjectError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.nodeResp(n, owner.Domain))
}

func (s *server) handleNodeUpdate(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	n, _, err := s.nodeForCaller(p, chi.URLParam(r, "id"))
	if err != nil {
		writeObjectError(w, err)
		return
	}

	var req updateNodeRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeObjectError(w, err)
		return
	}

	updated, err := s.store.updateNode(n.ID, req)
	if err != nil {
		writeObjectError(w, err)
		return
	}
	owner, err := s.store.userByID(updated.OwnerUserID)
	if err != nil {
		writeObjectError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.nodeResp(updated, owner.Domain))
}

func (s *server) handleNodeDelete(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	n, _, err := s.nodeForCaller(p, chi.URLParam(r, "id"))
	if err != nil {
		writeObjectError(w, err)
		return
	}
	if err := s.store.deleteNode(n.ID); err != nil {
		writeObjectError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// handleMyNode is only meaningful for a caller that authenticated as a
// node; it aliases that node's own id.
func (s *server) handleMyNode(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	if p.kind != principalNode {
		writeObjectError(w, notFoundError("no node identity for this credential"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.nodeResp(p.node, p.owner.Domain))
	case http.MethodPut:
		var req updateNodeRequest
		if err := decodeJSON(r.Body, &req); err != nil {
			writeObjectError(w, err)
			return
		}
		updated, err := s.store.updateNode(p.node.ID, req)
		if err != nil {
			writeObjectError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.nodeResp(updated, p.owner.Domain))
	case http.MethodDelete:
		if err := s.store.deleteNode(p.node.ID); err != nil {
			writeObjectError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
	}
}

func (s *server) inZone(fqdn string) bool {
	return s.cfg.AllowedZone != "" && s.cfg.AllowedZone != "." &&
		dns.IsSubDomain(s.cfg.AllowedZone, fqdn)
}

func (s *server) handleRecordGet(w http.ResponseWriter, r *http.Request) {
	fqdn := normalizeName(chi.URLParam(r, "domain"))
	if !s.inZone(fqdn) {
		writeError(w, validationError("domain is outside the managed zone"))
		return
	}

	types := r.URL.Query()["record_type"]

	var (
		records map[string][]string
		err     error
	)
	if len(types) == 0 {
		records, err = s.dns.getAllRecords(r.Context(), fqdn)
	} else {
		records, err = s.dns.getRecords(r.Context(), fqdn, types)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *server) handleRecordCreate(w http.ResponseWriter, r *http.Request) {
	fqdn := normalizeName(chi.URLParam(r, "domain"))
	p := principalFrom(r.Context())
	if !s.canAccess(p, fqdn) {
		writeError(w, forbiddenError("name out of scope"))
		return
	}

	var rec record
	if err := decodeJSON(r.Body, &rec); err != nil {
		writeError(w, err)
		return
	}

	if err := s.dns.createRecord(r.Context(), fqdn, rec); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *server) handleRecordDelete(w http.ResponseWriter, r *http.Request) {
	fqdn := normalizeName(chi.URLParam(r, "domain"))
	p := principalFrom(r.Context())
	if !s.canAccess(p, fqdn) {
		writeError(w, forbiddenError("name out of scope"))
		return
	}

	var rec record
	if err := decodeJSON(r.Body, &rec); err != nil {
		writeError(w, err)
		return
	}

	if err := s.dns.deleteRecord(r.Context(), fqdn, rec.RecordType, rec.RecordValue); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *server) handleRecordReplace(w http.ResponseWriter, r *http.Request) {
	fqdn := normalizeName(chi.URLParam(r, "domain"))
	p := principalFrom(r.Context())
	if !s.canAccess(p, fqdn) {
		writeError(w, forbiddenError("name out of scope"))
		return
	}

	var set recordSet
	if err := decodeJSON(r.Body, &set); err != nil {
		writeError(w, err)
		return
	}

	if err := s.dns.replaceRecord(r.Context(), fqdn, set.Before, set.After); err != nil {
		writeError(w, err)
		return
	}

	after := set.After
	if after.TTL == 0 {
		after.TTL = int(s.cfg.DefaultTTL)
	}
	writeJSON(w, http.StatusOK, after)
}

func (s *server) handleZoneDump(w http.ResponseWriter, r *http.Request) {
	zone := normalizeName(chi.URLParam(r, "zone"))
	p := principalFrom(r.Context())
	if !s.canAccess(p, zone) {
		writeError(w, forbiddenError("zone out of scope"))
		return
	}

	dump, err := s.dns.getZone(r.Context(), zone)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dump)
}
