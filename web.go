package main

import (
	"html/template"
	"log"
	"net/http"
	"strings"
)

const sessionCookieName = "dns_manager_session"

var pageTpl = template.Must(template.New("pages").Parse(pagesHTML))

type loginPageData struct {
	Title   string
	Message string
}

type dashboardPageData struct {
	Title string
	User  userResponse
	Nodes []nodeResponse
	Zone  string
}

func (s *server) renderPage(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTpl.ExecuteTemplate(w, name, data); err != nil {
		log.Printf("render %s failed: %v", name, err)
	}
}

func (s *server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if principalFrom(r.Context()).authenticated() {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	s.renderPage(w, "login", loginPageData{Title: "Log in."})
}

func (s *server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderPage(w, "login", loginPageData{Title: "Log in.", Message: "invalid form"})
		return
	}

	u, err := s.store.userByEmail(r.PostFormValue("email"))
	if err != nil || !verifyPassword(u.PasswordDigest, r.PostFormValue("password")) {
		s.renderPage(w, "login", loginPageData{Title: "Log in.", Message: "Invalid username/password combination"})
		return
	}

	token, err := s.store.createSession(u.ID, s.cfg.SessionTTL)
	if err != nil {
		log.Printf("create session failed: %v", err)
		s.renderPage(w, "login", loginPageData{Title: "Log in.", Message: "login failed, try again"})
		return
	}
	s.setSessionCookie(w, token)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *server) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	if principalFrom(r.Context()).authenticated() {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	s.renderPage(w, "signup", loginPageData{Title: "Create an Account."})
}

func (s *server) handleSignupSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderPage(w, "signup", loginPageData{Title: "Create an Account.", Message: "invalid form"})
		return
	}

	fail := func(msg string) {
		s.renderPage(w, "signup", loginPageData{Title: "Create an Account.", Message: msg})
	}

	if s.cfg.InviteCode != "" && r.PostFormValue("invite_code") != s.cfg.InviteCode {
		fail("Provide correct invite code")
		return
	}
	if r.PostFormValue("password") != r.PostFormValue("confirm") {
		fail("Passwords must match.")
		return
	}
	if strings.Contains(r.PostFormValue("domain"), ".") {
		fail("Domain name cannot have any dots.")
		return
	}

	u, err := s.store.createUser(
		r.PostFormValue("name"),
		r.PostFormValue("email"),
		r.PostFormValue("password"),
		r.PostFormValue("domain"),
	)
	if err != nil {
		fail(err.Error())
		return
	}

	token, err := s.store.createSession(u.ID, s.cfg.SessionTTL)
	if err != nil {
		log.Printf("create session failed: %v", err)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	s.setSessionCookie(w, token)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookieName); err == nil {
		if err := s.store.deleteSession(c.Value); err != nil {
			log.Printf("delete session failed: %v", err)
		}
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	if p.kind != principalUser {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	nodes, err := s.store.nodesByOwner(p.user.ID)
	if err != nil {
		log.Printf("list nodes failed: %v", err)
		nodes = nil
	}

	data := dashboardPageData{
		Title: "Dashboard",
		User:  userResp(p.user),
		Zone:  s.cfg.AllowedZone,
	}
	for i := range nodes {
		data.Nodes = append(data.Nodes, s.nodeResp(&nodes[i], p.user.Domain))
	}
	s.renderPage(w, "dashboard", data)
}

const pagesHTML = `
{{define "head"}}<!DOCTYPE html>
<html><head><title>{{.Title}}</title></head><body>
<h1>{{.Title}}</h1>
{{if .Message}}<p class="flash">{{.Message}}</p>{{end}}{{end}}

{{define "login"}}{{template "head" .}}
<form method="post" action="/login">
  <label>Email <input type="email" name="email" required></label>
  <label>Password <input type="password" name="password" required></label>
  <button type="submit">Log In</button>
</form>
<p><a href="/signup">Create an account</a></p>
</body></html>{{end}}

{{define "signup"}}{{template "head" .}}
<form method="post" action="/signup">
  <label>Name <input type="text" name="name" required></label>
  <label>Email <input type="email" name="email" required></label>
  <label>Password <input type="password" name="password" required minlength="8"></label>
  <label>Confirm <input type="password" name="confirm" required></label>
  <label>Subdomain <input type="text" name="domain" required></label>
  <label>Invite Code <input type="text" name="invite_code"></label>
  <button type="submit">Register</button>
</form>
<p><a href="/login">Back to login</a></p>
</body></html>{{end}}

{{define "dashboard"}}<!DOCTYPE html>
<html><head><title>{{.Title}}</title></head><body>
<h1>{{.Title}}</h1>
<p>{{.User.Name}} manages <strong>{{.User.Domain}}.{{.Zone}}</strong></p>
<p>API key: <code>{{.User.APIKey}}</code></p>
<h2>Nodes</h2>
{{if .Nodes}}<table>
<tr><th>Subdomain</th><th>FQDN</th><th>API key</th></tr>
{{range .Nodes}}<tr><td>{{.Domain}}</td><td>{{.FQDN}}</td><td><code>{{.APIKey}}</code></td></tr>{{end}}
</table>{{else}}<p>No nodes registered yet.</p>{{end}}
<p><a href="/logout">Log out</a></p>
</body></html>{{end}}
`
