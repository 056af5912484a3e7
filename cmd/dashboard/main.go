// Command dashboard is a small operator console for a fleet of dns-manager
// deployments. It keeps a list of API endpoints with their admin keys and
// fans admin actions out to all of them: provisioning users and nodes,
// creating and deleting records, and pulling zone dumps.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

type endpoint struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
}

type endpointStore struct {
	mu        sync.RWMutex
	path      string
	endpoints []endpoint
}

type console struct {
	store      *endpointStore
	httpClient *http.Client
	tpl        *template.Template
}

type actionResult struct {
	Endpoint string
	Action   string
	Success  bool
	Status   int
	Body     string
	Error    string
}

type zoneState struct {
	Endpoint string
	Success  bool
	Error    string
	Zone     string
	Serial   uint32
	MName    string
	Records  []zoneRecordView
}

type zoneRecordView struct {
	Name  string
	Type  string
	Value string
	TTL   uint32
}

type pageData struct {
	Endpoints []endpoint
	Results   []actionResult
	States    []zoneState
	Message   string
	Now       string
}

func main() {
	listen := envOrDefault("DASHBOARD_LISTEN", ":8090")
	storePath := envOrDefault("DASHBOARD_STORE", "dashboard-endpoints.json")

	st, err := newEndpointStore(storePath)
	if err != nil {
		log.Fatalf("failed to initialize endpoint store: %v", err)
	}

	tpl, err := template.New("index").Parse(indexHTML)
	if err != nil {
		log.Fatalf("failed to parse template: %v", err)
	}

	c := &console{
		store: st,
		httpClient: &http.Client{
			Timeout: 8 * time.Second,
		},
		tpl: tpl,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", c.handleIndex)
	mux.HandleFunc("/endpoints", c.handleAddEndpoint)
	mux.HandleFunc("/endpoints/delete", c.handleDeleteEndpoint)
	mux.HandleFunc("/actions/user-create", c.handleUserCreate)
	mux.HandleFunc("/actions/node-create", c.handleNodeCreate)
	mux.HandleFunc("/actions/record-create", c.handleRecordCreate)
	mux.HandleFunc("/actions/record-delete", c.handleRecordDelete)
	mux.HandleFunc("/actions/zone-dump", c.handleZoneDump)

	log.Printf("dashboard listening on %s", listen)
	if err := http.ListenAndServe(listen, mux); err != nil {
		log.Fatalf("dashboard server failed: %v", err)
	}
}

func newEndpointStore(path string) (*endpointStore, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	st := &endpointStore{path: absPath, endpoints: make([]endpoint, 0)}
	if err := st.load(); err != nil {
		return nil, err
	}

	return st, nil
}

func (s *endpointStore) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var items []endpoint
	if err := json.Unmarshal(b, &items); err != nil {
		return fmt.Errorf("decode %s: %w", s.path, err)
	}

	s.endpoints = sanitizeEndpoints(items)
	return nil
}

func (s *endpointStore) saveLocked() error {
	data, err := json.MarshalIndent(s.endpoints, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *endpointStore) list() []endpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]endpoint, len(s.endpoints))
	copy(out, s.endpoints)
	return out
}

func (s *endpointStore) add(e endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cur := range s.endpoints {
		if cur.BaseURL == e.BaseURL {
			return fmt.Errorf("endpoint already exists: %s", e.BaseURL)
		}
	}

	s.endpoints = append(s.endpoints, e)
	sort.Slice(s.endpoints, func(i, j int) bool { return s.endpoints[i].Name < s.endpoints[j].Name })

	return s.saveLocked()
}

func (s *endpointStore) delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, e := range s.endpoints {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("endpoint not found")
	}

	s.endpoints = append(s.endpoints[:idx], s.endpoints[idx+1:]...)
	return s.saveLocked()
}

func sanitizeEndpoints(items []endpoint) []endpoint {
	out := make([]endpoint, 0, len(items))
	seen := map[string]struct{}{}
	for _, e := range items {
		e.Name = strings.TrimSpace(e.Name)
		e.ID = strings.TrimSpace(e.ID)
		e.BaseURL = sanitizeURL(e.BaseURL)
		e.APIKey = strings.TrimSpace(e.APIKey)
		if e.ID == "" || e.Name == "" || e.BaseURL == "" {
			continue
		}
		if _, ok := seen[e.BaseURL]; ok {
			continue
		}
		seen[e.BaseURL] = struct{}{}
		out = append(out, e)
	}
	return out
}

func (c *console) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	msg := strings.TrimSpace(r.URL.Query().Get("msg"))
	if err := c.tpl.Execute(w, pageData{
		Endpoints: c.store.list(),
		Message:   msg,
		Now:       time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (c *console) handleAddEndpoint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	baseURL := sanitizeURL(r.FormValue("base_url"))
	apiKey := strings.TrimSpace(r.FormValue("api_key"))

	if name == "" || baseURL == "" || apiKey == "" {
		http.Redirect(w, r, "/?msg=Name,+base+URL+and+admin+API+key+are+required", http.StatusSeeOther)
		return
	}

	err := c.store.add(endpoint{
		ID:      fmt.Sprintf("%d", time.Now().UnixNano()),
		Name:    name,
		BaseURL: baseURL,
		APIKey:  apiKey,
	})
	if err != nil {
		http.Redirect(w, r, "/?msg="+url.QueryEscape(err.Error()), http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/?msg=Endpoint+added", http.StatusSeeOther)
}

func (c *console) handleDeleteEndpoint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimSpace(r.FormValue("id"))
	if id == "" {
		http.Redirect(w, r, "/?msg=Missing+endpoint+id", http.StatusSeeOther)
		return
	}

	if err := c.store.delete(id); err != nil {
		http.Redirect(w, r, "/?msg="+url.QueryEscape(err.Error()), http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/?msg=Endpoint+deleted", http.StatusSeeOther)
}

func (c *console) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	subdomain := strings.TrimSpace(r.FormValue("subdomain"))

	if name == "" || email == "" || password == "" || subdomain == "" {
		c.renderWithResults(w, "user-create", []actionResult{{Error: "name, email, password and subdomain are required"}})
		return
	}

	body := map[string]any{
		"name":      name,
		"email":     email,
		"password":  password,
		"subdomain": subdomain,
	}
	results := c.broadcastJSON(http.MethodPost, "/api/user", body)
	c.renderWithResults(w, "user-create", results)
}

func (c *console) handleNodeCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ownerID := strings.TrimSpace(r.FormValue("owner_user_id"))
	subdomain := strings.TrimSpace(r.FormValue("subdomain"))

	if ownerID == "" || subdomain == "" {
		c.renderWithResults(w, "node-create", []actionResult{{Error: "owner user id and subdomain are required"}})
		return
	}

	body := map[string]any{"owner_user_id": ownerID, "subdomain": subdomain}
	results := c.broadcastJSON(http.MethodPost, "/api/node", body)
	c.renderWithResults(w, "node-create", results)
}

func (c *console) handleRecordCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	recordType := strings.ToUpper(strings.TrimSpace(r.FormValue("type")))
	value := strings.TrimSpace(r.FormValue("value"))
	ttl := strings.TrimSpace(r.FormValue("ttl"))

	if name == "" || value == "" {
		c.renderWithResults(w, "record-create", []actionResult{{Error: "name and value are required"}})
		return
	}
	if recordType == "" {
		recordType = "A"
	}

	body := map[string]any{"record_type": recordType, "record_value": value}
	if ttl != "" {
		body["ttl"] = mustAtoi(ttl, 0)
	}
	results := c.broadcastJSON(http.MethodPost, "/api/dns/record/"+name, body)
	c.renderWithResults(w, "record-create", results)
}

func (c *console) handleRecordDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	recordType := strings.ToUpper(strings.TrimSpace(r.FormValue("type")))
	value := strings.TrimSpace(r.FormValue("value"))

	if name == "" || recordType == "" {
		c.renderWithResults(w, "record-delete", []actionResult{{Error: "name and type are required"}})
		return
	}

	// Without a value the whole RRset of that type goes away.
	body := map[string]any{"record_type": recordType}
	if value != "" {
		body["record_value"] = value
	}
	results := c.broadcastJSON(http.MethodDelete, "/api/dns/record/"+name, body)
	c.renderWithResults(w, "record-delete", results)
}

func (c *console) handleZoneDump(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	zone := strings.TrimSpace(r.FormValue("zone"))
	if zone == "" {
		c.renderWithResults(w, "zone-dump", []actionResult{{Error: "zone is required"}})
		return
	}

	states := c.dumpZoneAll(zone)
	if err := c.tpl.Execute(w, pageData{
		Endpoints: c.store.list(),
		States:    states,
		Message:   "Action: zone-dump " + zone,
		Now:       time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (c *console) dumpZoneAll(zone string) []zoneState {
	eps := c.store.list()
	if len(eps) == 0 {
		return []zoneState{{Error: "no endpoints configured"}}
	}

	out := make([]zoneState, len(eps))
	var wg sync.WaitGroup
	for i, ep := range eps {
		wg.Add(1)
		go func(i int, ep endpoint) {
			defer wg.Done()
			st := zoneState{Endpoint: ep.Name, Zone: zone}

			var dump struct {
				SOA *struct {
					Serial uint32 `json:"serial"`
					MName  string `json:"mname"`
				} `json:"SOA"`
				Records map[string][]struct {
					Response   string `json:"response"`
					RecordType string `json:"record_type"`
					TTL        uint32 `json:"ttl"`
				} `json:"records"`
			}
			if err := c.fetchJSON(ep, "/api/dns/zone/"+zone, &dump); err != nil {
				st.Error = "zone dump failed: " + err.Error()
				out[i] = st
				return
			}
			if dump.SOA != nil {
				st.Serial = dump.SOA.Serial
				st.MName = dump.SOA.MName
			}

			names := make([]string, 0, len(dump.Records))
			for name := range dump.Records {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				for _, rec := range dump.Records[name] {
					st.Records = append(st.Records, zoneRecordView{
						Name:  name,
						Type:  rec.RecordType,
						Value: rec.Response,
						TTL:   rec.TTL,
					})
				}
			}

			st.Success = true
			out[i] = st
		}(i, ep)
	}

	wg.Wait()
	return out
}

func (c *console) fetchJSON(ep endpoint, path string, out any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Api-Key", ep.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	return json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out)
}

func (c *console) broadcastJSON(method, path string, payload any) []actionResult {
	eps := c.store.list()
	if len(eps) == 0 {
		return []actionResult{{Action: method + " " + path, Error: "no endpoints configured"}}
	}

	results := make([]actionResult, len(eps))
	var wg sync.WaitGroup
	for i, ep := range eps {
		wg.Add(1)
		go func(i int, ep endpoint) {
			defer wg.Done()

			res := actionResult{Endpoint: ep.Name, Action: method + " " + path}
			b := []byte(nil)
			if payload != nil {
				var err error
				b, err = json.Marshal(payload)
				if err != nil {
					res.Error = err.Error()
					results[i] = res
					return
				}
			}

			ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, method, ep.BaseURL+path, bytes.NewReader(b))
			if err != nil {
				res.Error = err.Error()
				results[i] = res
				return
			}
			if payload != nil {
				req.Header.Set("Content-Type", "application/json")
			}
			req.Header.Set("X-Api-Key", ep.APIKey)

			resp, err := c.httpClient.Do(req)
			if err != nil {
				res.Error = err.Error()
				results[i] = res
				return
			}
			defer resp.Body.Close()

			bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			res.Status = resp.StatusCode
			res.Body = strings.TrimSpace(string(bodyBytes))
			res.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
			if !res.Success && res.Body == "" {
				res.Error = "non-success status"
			}

			results[i] = res
		}(i, ep)
	}

	wg.Wait()
	return results
}

func (c *console) renderWithResults(w http.ResponseWriter, action string, results []actionResult) {
	if err := c.tpl.Execute(w, pageData{
		Endpoints: c.store.list(),
		Results:   results,
		Message:   "Action: " + action,
		Now:       time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func sanitizeURL(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimRight(v, "/")
	return v
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func mustAtoi(v string, fallback int) int {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	var parsed int
	if _, err := fmt.Sscanf(v, "%d", &parsed); err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

const indexHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>DNS Manager Console</title>
  <style>
    :root { --bg:#f5f7fa; --card:#fff; --txt:#1f2937; --muted:#6b7280; --accent:#0f766e; --ok:#166534; --bad:#b91c1c; }
    * { box-sizing:border-box; }
    body { margin:0; font-family: ui-sans-serif,system-ui,-apple-system,Segoe UI,Roboto,Arial; color:var(--txt); background:var(--bg); }
    .wrap { max-width:1100px; margin:0 auto; padding:20px; }
    .grid { display:grid; gap:16px; grid-template-columns: repeat(auto-fit,minmax(320px,1fr)); }
    .card { background:var(--card); border-radius:12px; padding:16px; box-shadow:0 1px 6px rgba(0,0,0,.07); }
    h1,h2 { margin:0 0 10px; }
    h1 { font-size:24px; }
    h2 { font-size:18px; }
    label { display:block; font-size:13px; margin:8px 0 4px; color:var(--muted); }
    input,select,button { width:100%; padding:10px; border-radius:8px; border:1px solid #d1d5db; }
    button { background:var(--accent); border:none; color:white; font-weight:600; margin-top:10px; cursor:pointer; }
    table { width:100%; border-collapse:collapse; font-size:13px; }
    th,td { padding:8px; border-bottom:1px solid #e5e7eb; text-align:left; vertical-align:top; }
    .status-ok { color:var(--ok); font-weight:600; }
    .status-bad { color:var(--bad); font-weight:600; }
    .mono { font-family: ui-monospace,SFMono-Regular,Menlo,Consolas,monospace; }
    .small { color:var(--muted); font-size:12px; }
  </style>
</head>
<body>
  <div class="wrap">
    <h1>DNS Manager Console</h1>
    <p class="small">Fan admin actions out to all configured dns-manager deployments. Time: {{.Now}}</p>
    {{if .Message}}<p><strong>{{.Message}}</strong></p>{{end}}

    <div class="grid">
      <section class="card">
        <h2>Add Manager Endpoint</h2>
        <form method="post" action="/endpoints">
          <label>Name</label><input name="name" placeholder="dns-manager-eu" required>
          <label>Base URL</label><input name="base_url" placeholder="http://10.1.0.2:8080" required>
          <label>Admin API Key</label><input name="api_key" required>
          <button type="submit">Add Endpoint</button>
        </form>
      </section>

      <section class="card">
        <h2>Configured Endpoints</h2>
        {{if .Endpoints}}
        <table>
          <thead><tr><th>Name</th><th>URL</th><th></th></tr></thead>
          <tbody>
            {{range .Endpoints}}
            <tr>
              <td>{{.Name}}</td>
              <td class="mono">{{.BaseURL}}</td>
              <td>
                <form method="post" action="/endpoints/delete">
                  <input type="hidden" name="id" value="{{.ID}}">
                  <button type="submit">Delete</button>
                </form>
              </td>
            </tr>
            {{end}}
          </tbody>
        </table>
        {{else}}
        <p>No endpoints yet.</p>
        {{end}}
      </section>
    </div>

    <div class="grid" style="margin-top:16px;">
      <section class="card">
        <h2>Create User</h2>
        <form method="post" action="/actions/user-create">
          <label>Name</label><input name="name" required>
          <label>Email</label><input name="email" type="email" required>
          <label>Password</label><input name="password" type="password" required minlength="8">
          <label>Subdomain (single label)</label><input name="subdomain" placeholder="alice" required>
          <button type="submit">Create On All Endpoints</button>
        </form>
      </section>

      <section class="card">
        <h2>Create Node</h2>
        <form method="post" action="/actions/node-create">
          <label>Owner User ID</label><input name="owner_user_id" required>
          <label>Subdomain (single label)</label><input name="subdomain" placeholder="sensor" required>
          <button type="submit">Create On All Endpoints</button>
        </form>
        <p class="small">The node's FQDN becomes subdomain.owner.zone.</p>
      </section>

      <section class="card">
        <h2>Create Record</h2>
        <form method="post" action="/actions/record-create">
          <label>Name (FQDN)</label><input name="name" placeholder="sensor.alice.example.com" required>
          <label>Type</label>
          <select name="type">
            <option>A</option>
            <option>AAAA</option>
            <option>TXT</option>
            <option>CNAME</option>
            <option>MX</option>
          </select>
          <label>Value (rdata as zone-file text)</label><input name="value" required>
          <label>TTL (blank for server default)</label><input name="ttl">
          <button type="submit">Create On All Endpoints</button>
        </form>
      </section>

      <section class="card">
        <h2>Delete Record</h2>
        <form method="post" action="/actions/record-delete">
          <label>Name (FQDN)</label><input name="name" required>
          <label>Type</label>
          <select name="type">
            <option>A</option>
            <option>AAAA</option>
            <option>TXT</option>
            <option>CNAME</option>
            <option>MX</option>
          </select>
          <label>Value (blank deletes the whole RRset)</label><input name="value">
          <button type="submit">Delete On All Endpoints</button>
        </form>
      </section>

      <section class="card">
        <h2>Zone Dump</h2>
        <form method="post" action="/actions/zone-dump">
          <label>Zone</label><input name="zone" placeholder="example.com" required>
          <button type="submit">Dump From All Endpoints</button>
        </form>
        <p class="small">Pulls the full zone over AXFR from each deployment's nameserver.</p>
      </section>
    </div>

    {{if .Results}}
    <section class="card" style="margin-top:16px;">
      <h2>Action Results</h2>
      <table>
        <thead><tr><th>Endpoint</th><th>Action</th><th>Status</th><th>Body / Error</th></tr></thead>
        <tbody>
          {{range .Results}}
          <tr>
            <td>{{.Endpoint}}</td>
            <td class="mono">{{.Action}}</td>
            <td>{{if .Success}}<span class="status-ok">OK {{.Status}}</span>{{else}}<span class="status-bad">FAIL {{.Status}}</span>{{end}}</td>
            <td class="mono">{{if .Error}}{{.Error}}{{else}}{{.Body}}{{end}}</td>
          </tr>
          {{end}}
        </tbody>
      </table>
    </section>
    {{end}}

    {{if .States}}
    <section class="card" style="margin-top:16px;">
      <h2>Zone State</h2>
      {{range .States}}
        <div style="margin:12px 0; padding:12px; border:1px solid #e5e7eb; border-radius:10px;">
          <div><strong>{{if .Endpoint}}{{.Endpoint}}{{else}}unknown-endpoint{{end}}</strong></div>
          {{if .Success}}
            <div class="small">Zone {{.Zone}} | serial {{.Serial}} | primary {{.MName}} | records: {{len .Records}}</div>
            <table style="margin-top:8px;">
              <thead><tr><th>Name</th><th>Type</th><th>Value</th><th>TTL</th></tr></thead>
              <tbody>
                {{range .Records}}
                <tr>
                  <td class="mono">{{.Name}}</td>
                  <td>{{.Type}}</td>
                  <td class="mono">{{.Value}}</td>
                  <td>{{.TTL}}</td>
                </tr>
                {{end}}
              </tbody>
            </table>
          {{else}}
            <div class="status-bad">FAILED</div>
            <div class="mono">{{.Error}}</div>
          {{end}}
        </div>
      {{end}}
    </section>
    {{end}}
  </div>
</body>
</html>`
