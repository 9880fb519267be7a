// Package fakelabstep provides an in-memory fake of the Labstep REST API
// for tests.
//
// The fake implements the generic entity endpoints ("/api/generic/{entity}"
// list, get, create, edit and delete) with cursor pagination and equality
// filters, plus login, file upload and signed downloads, tag links, ACL
// grants and ownership transfer. Every request is recorded so tests can
// assert on request counts and bodies, and failures can be injected per
// method and path prefix.
package fakelabstep

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const genericPrefix = "/api/generic/"

// Request is a recorded API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   map[string]interface{}
}

type failure struct {
	method string
	prefix string
	status int
	times  int
}

type user struct {
	id       int64
	password string
}

// Server is a fake Labstep API backed by httptest.Server.
type Server struct {
	URL string

	srv *httptest.Server

	mu       sync.Mutex
	nextID   int64
	records  map[string]map[string]map[string]interface{}
	order    map[string][]string
	users    map[string]user
	apiKeys  map[string]int64
	files    map[string][]byte
	acl      map[string][]map[string]interface{}
	requests []Request
	failures []*failure
	pageMax  int
}

// New starts a fake server. Callers must Close it.
func New() *Server {
	s := &Server{
		nextID:  1,
		records: map[string]map[string]map[string]interface{}{},
		order:   map[string][]string{},
		users:   map[string]user{},
		apiKeys: map[string]int64{},
		files:   map[string][]byte{},
		acl:     map[string][]map[string]interface{}{},
		pageMax: 1000,
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	s.URL = s.srv.URL
	return s
}

// Close shuts the server down.
func (s *Server) Close() {
	s.srv.Close()
}

// AddUser registers a user with a home workspace and returns the user's
// API key, id and workspace id.
func (s *Server) AddUser(username, password string) (apiKey string, userID, workspaceID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws := s.insert("group", map[string]interface{}{"name": username + "'s Workspace"})
	workspaceID = toInt(ws["id"])

	apiKey = "key-" + uuid.NewString()
	u := s.insert("user", map[string]interface{}{
		"username":   username,
		"first_name": username,
		"api_key":    apiKey,
		"group":      map[string]interface{}{"id": workspaceID, "name": ws["name"]},
	})
	userID = toInt(u["id"])

	s.insert("user_group", map[string]interface{}{
		"group_id": workspaceID,
		"user_id":  userID,
		"type":     "owner",
	})

	s.users[username] = user{id: userID, password: password}
	s.apiKeys[apiKey] = userID
	return apiKey, userID, workspaceID
}

// SetPageLimit caps the number of items served per page.
func (s *Server) SetPageLimit(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageMax = n
}

// Seed stores a record as is (after id assignment) and returns it.
func (s *Server) Seed(entity string, fields map[string]interface{}) map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMap(s.insert(entity, fields))
}

// Get returns a copy of a stored record, or nil.
func (s *Server) Get(entity, key string) map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[entity][key]
	if rec == nil {
		return nil
	}
	return copyMap(rec)
}

// All returns copies of every stored record of entity in insertion order.
func (s *Server) All(entity string) []map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]interface{}, 0, len(s.order[entity]))
	for _, k := range s.order[entity] {
		if rec, ok := s.records[entity][k]; ok {
			out = append(out, copyMap(rec))
		}
	}
	return out
}

// FileContent returns the payload of an uploaded file.
func (s *Server) FileContent(id int64) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files[strconv.FormatInt(id, 10)]
}

// Requests returns every recorded request.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// CountRequests counts recorded requests by method and path prefix. An
// empty method matches any method.
func (s *Server) CountRequests(method, prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if (method == "" || r.Method == method) && strings.HasPrefix(r.Path, prefix) {
			n++
		}
	}
	return n
}

// LastRequest returns the most recent request matching method and prefix.
func (s *Server) LastRequest(method, prefix string) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		r := s.requests[i]
		if r.Method == method && strings.HasPrefix(r.Path, prefix) {
			return r, true
		}
	}
	return Request{}, false
}

// ResetRequests clears the request log.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// FailNext answers the next times requests matching method and path prefix
// with status.
func (s *Server) FailNext(method, prefix string, status, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, &failure{method: method, prefix: prefix, status: status, times: times})
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	status, payload := s.dispatch(r)

	switch p := payload.(type) {
	case []byte:
		w.WriteHeader(status)
		_, _ = w.Write(p)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(p)
	}
}

func (s *Server) dispatch(r *http.Request) (int, interface{}) {
	var body map[string]interface{}
	var multipart bool
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		multipart = true
	} else if r.Body != nil {
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &body); err != nil {
				return http.StatusBadRequest, errorBody("invalid JSON body")
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Body:   body,
	})

	for _, f := range s.failures {
		if f.times > 0 && f.method == r.Method && strings.HasPrefix(r.URL.Path, f.prefix) {
			f.times--
			return f.status, errorBody(http.StatusText(f.status))
		}
	}

	switch {
	case r.URL.Path == "/public-api/user/login" && r.Method == http.MethodPost:
		return s.login(body)
	case strings.HasPrefix(r.URL.Path, "/signed/"):
		return s.signed(r)
	case !strings.HasPrefix(r.URL.Path, genericPrefix):
		return http.StatusNotFound, errorBody("no route")
	}

	userID, ok := s.authenticate(r)
	if !ok {
		return http.StatusUnauthorized, errorBody("invalid credentials")
	}

	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, genericPrefix), "/"), "/")
	for i, p := range parts {
		parts[i], _ = url.PathUnescape(p)
	}

	switch {
	case parts[0] == "file" && len(parts) == 2 && parts[1] == "upload" && multipart:
		return s.upload(r, userID)
	case parts[0] == "file" && len(parts) == 3 && parts[1] == "download":
		return s.download(parts[2])
	case parts[0] == "acl" && len(parts) == 1 && r.Method == http.MethodPost:
		return s.grant(body)
	case parts[0] == "acl" && len(parts) == 3 && r.Method == http.MethodGet:
		return http.StatusOK, map[string]interface{}{"permissions": s.permissions(parts[1], parts[2])}
	case parts[0] == "user" && len(parts) == 2 && parts[1] == "me":
		return s.show("user", strconv.FormatInt(userID, 10))
	case len(parts) == 3 && parts[2] == "transfer-ownership" && r.Method == http.MethodPost:
		return s.transfer(parts[0], parts[1], body)
	case len(parts) == 4 && parts[2] == "tag":
		return s.tag(r.Method, parts[0], parts[1], parts[3])
	case len(parts) == 1 && r.Method == http.MethodGet:
		return s.list(parts[0], r.URL.Query())
	case len(parts) == 1 && r.Method == http.MethodPost:
		return s.create(parts[0], body, userID)
	case len(parts) == 2 && r.Method == http.MethodGet:
		return s.show(parts[0], parts[1])
	case len(parts) == 2 && r.Method == http.MethodPut:
		return s.edit(parts[0], parts[1], body)
	case len(parts) == 2 && r.Method == http.MethodDelete:
		return s.remove(parts[0], parts[1])
	}
	return http.StatusNotFound, errorBody("no route")
}

func (s *Server) authenticate(r *http.Request) (int64, bool) {
	key := r.Header.Get("apikey")
	if key == "" {
		key = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	id, ok := s.apiKeys[key]
	return id, ok
}

func (s *Server) login(body map[string]interface{}) (int, interface{}) {
	username, _ := body["username"].(string)
	password, _ := body["password"].(string)
	u, ok := s.users[username]
	if !ok || u.password != password {
		return http.StatusUnauthorized, errorBody("invalid username or password")
	}
	return s.show("user", strconv.FormatInt(u.id, 10))
}

func (s *Server) list(entity string, q url.Values) (int, interface{}) {
	count, _ := strconv.Atoi(q.Get("count"))
	if count <= 0 || count > s.pageMax {
		count = s.pageMax
	}
	offset := 0
	if c := q.Get("cursor"); c != "" && c != "-1" {
		offset, _ = strconv.Atoi(c)
	}

	var matches []map[string]interface{}
	for _, key := range s.order[entity] {
		rec, ok := s.records[entity][key]
		if ok && s.matches(entity, rec, q) {
			matches = append(matches, rec)
		}
	}

	end := offset + count
	if end > len(matches) {
		end = len(matches)
	}
	if offset > end {
		offset = end
	}
	items := make([]map[string]interface{}, 0, end-offset)
	for _, rec := range matches[offset:end] {
		items = append(items, s.render(entity, rec))
	}

	return http.StatusOK, map[string]interface{}{
		"items":       items,
		"total":       len(matches),
		"next_cursor": end,
	}
}

var reservedParams = map[string]bool{
	"search":       true,
	"cursor":       true,
	"count":        true,
	"search_query": true,
	"is_deleted":   true,
	"tag_id":       true,
}

func (s *Server) matches(entity string, rec map[string]interface{}, q url.Values) bool {
	if q.Get("is_deleted") == "false" && rec["deleted_at"] != nil {
		return false
	}
	if sq := q.Get("search_query"); sq != "" {
		name, _ := rec["name"].(string)
		if !strings.Contains(strings.ToLower(name), strings.ToLower(sq)) {
			return false
		}
	}
	if tagID := q.Get("tag_id"); tagID != "" && !hasTag(rec, tagID) {
		return false
	}
	for k := range q {
		if reservedParams[k] {
			continue
		}
		if entity == "group" && k == "user_id" {
			if !s.isMember(format(rec["id"]), q.Get(k)) {
				return false
			}
			continue
		}
		if format(rec[k]) != q.Get(k) {
			return false
		}
	}
	return true
}

func (s *Server) isMember(groupID, userID string) bool {
	for _, m := range s.records["user_group"] {
		if format(m["group_id"]) == groupID && format(m["user_id"]) == userID {
			return true
		}
	}
	return false
}

func hasTag(rec map[string]interface{}, tagID string) bool {
	tags, _ := rec["tags"].([]interface{})
	for _, t := range tags {
		if m, ok := t.(map[string]interface{}); ok && format(m["id"]) == tagID {
			return true
		}
	}
	return false
}

func (s *Server) show(entity, key string) (int, interface{}) {
	rec, ok := s.records[entity][key]
	if !ok {
		return http.StatusNotFound, errorBody(fmt.Sprintf("%s %s not found", entity, key))
	}
	return http.StatusOK, s.render(entity, rec)
}

func (s *Server) create(entity string, body map[string]interface{}, userID int64) (int, interface{}) {
	fields := copyMap(body)
	fields["author"] = map[string]interface{}{"id": userID}

	switch entity {
	case "experiment_workflow":
		root := s.insert("experiment", map[string]interface{}{
			"name":    fields["name"],
			"is_root": true,
			"state":   nil,
		})
		fields["root_experiment_id"] = root["id"]
	case "protocol_collection":
		version := s.insert("protocol", map[string]interface{}{"name": fields["name"], "state": nil})
		fields["last_version_id"] = version["id"]
	case "experiment":
		if pid, ok := fields["protocol_id"]; ok {
			if v := s.records["protocol"][format(pid)]; v != nil {
				fields["state"] = v["state"]
				fields["name"] = v["name"]
			}
		}
		if _, ok := fields["is_root"]; !ok {
			fields["is_root"] = false
		}
	case "comment", "metadata":
		if ids, ok := fields["file_id"]; ok {
			delete(fields, "file_id")
			var files []interface{}
			for _, id := range asList(ids) {
				if f := s.records["file"][format(id)]; f != nil {
					files = append(files, copyMap(f))
				}
			}
			if entity == "metadata" && len(files) > 0 {
				fields["file"] = files[0]
			} else if entity == "comment" {
				fields["file"] = files
			}
		}
	case "share_link":
		fields["token"] = uuid.NewString()
	}

	rec := s.insert(entity, fields)
	if entity == "group" {
		s.insert("user_group", map[string]interface{}{
			"group_id": rec["id"],
			"user_id":  userID,
			"type":     "owner",
		})
	}
	return http.StatusOK, s.render(entity, rec)
}

func (s *Server) edit(entity, key string, body map[string]interface{}) (int, interface{}) {
	rec, ok := s.records[entity][key]
	if !ok {
		return http.StatusNotFound, errorBody(fmt.Sprintf("%s %s not found", entity, key))
	}
	for k, v := range body {
		rec[k] = v
	}
	rec["updated_at"] = now()
	return http.StatusOK, s.render(entity, rec)
}

func (s *Server) remove(entity, key string) (int, interface{}) {
	if _, ok := s.records[entity][key]; !ok {
		return http.StatusNotFound, errorBody(fmt.Sprintf("%s %s not found", entity, key))
	}
	delete(s.records[entity], key)
	return http.StatusOK, map[string]interface{}{}
}

func (s *Server) tag(method, entity, key, tagID string) (int, interface{}) {
	rec, ok := s.records[entity][key]
	if !ok {
		return http.StatusNotFound, errorBody(fmt.Sprintf("%s %s not found", entity, key))
	}
	tag, ok := s.records["tag"][tagID]
	if !ok {
		return http.StatusNotFound, errorBody("tag not found")
	}

	tags, _ := rec["tags"].([]interface{})
	kept := make([]interface{}, 0, len(tags)+1)
	for _, t := range tags {
		if m, ok := t.(map[string]interface{}); ok && format(m["id"]) == tagID {
			continue
		}
		kept = append(kept, t)
	}
	switch method {
	case http.MethodPut:
		kept = append(kept, map[string]interface{}{"id": tag["id"], "name": tag["name"], "type": tag["type"]})
	case http.MethodDelete:
	default:
		return http.StatusMethodNotAllowed, errorBody("method not allowed")
	}
	rec["tags"] = kept
	return http.StatusOK, s.render(entity, rec)
}

func (s *Server) transfer(entity, key string, body map[string]interface{}) (int, interface{}) {
	rec, ok := s.records[entity][key]
	if !ok {
		return http.StatusNotFound, errorBody(fmt.Sprintf("%s %s not found", entity, key))
	}
	rec["group_id"] = body["group_id"]
	rec["owner"] = map[string]interface{}{"id": body["group_id"]}
	return http.StatusOK, s.render(entity, rec)
}

func (s *Server) grant(body map[string]interface{}) (int, interface{}) {
	key := format(body["entity_class"]) + "/" + format(body["id"])
	group := format(body["group_id"])

	perms := s.acl[key]
	kept := perms[:0]
	for _, p := range perms {
		if format(p["group"].(map[string]interface{})["id"]) != group {
			kept = append(kept, p)
		}
	}
	switch body["action"] {
	case "grant":
		ws := s.records["group"][group]
		name := ""
		if ws != nil {
			name, _ = ws["name"].(string)
		}
		kept = append(kept, map[string]interface{}{
			"group":      map[string]interface{}{"id": body["group_id"], "name": name},
			"permission": body["permission"],
		})
	case "revoke":
	default:
		return http.StatusBadRequest, errorBody("unknown action")
	}
	s.acl[key] = kept
	return http.StatusOK, map[string]interface{}{}
}

func (s *Server) permissions(entity, key string) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(s.acl[entity+"/"+key]))
	for _, p := range s.acl[entity+"/"+key] {
		out = append(out, copyMap(p))
	}
	return out
}

func (s *Server) upload(r *http.Request, userID int64) (int, interface{}) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return http.StatusBadRequest, errorBody("invalid multipart body")
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		return http.StatusBadRequest, errorBody("missing file part")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return http.StatusBadRequest, errorBody("unreadable file part")
	}

	groupID, _ := strconv.ParseInt(r.FormValue("group_id"), 10, 64)
	rec := s.insert("file", map[string]interface{}{
		"name":      hdr.Filename,
		"size":      len(data),
		"mime_type": hdr.Header.Get("Content-Type"),
		"group_id":  groupID,
		"author":    map[string]interface{}{"id": userID},
	})
	s.files[format(rec["id"])] = data
	return http.StatusOK, map[string]interface{}{"file": s.render("file", rec)}
}

func (s *Server) download(id string) (int, interface{}) {
	if _, ok := s.files[id]; !ok {
		return http.StatusNotFound, errorBody("file not found")
	}
	return http.StatusOK, map[string]interface{}{
		"signed_url": fmt.Sprintf("%s/signed/%s?Expires=60&Signature=fake", s.URL, id),
	}
}

// signed serves file payloads. Like a real object store it rejects API
// credentials.
func (s *Server) signed(r *http.Request) (int, interface{}) {
	if r.Header.Get("apikey") != "" || r.Header.Get("Authorization") != "" {
		return http.StatusBadRequest, errorBody("signed URLs take no credentials")
	}
	if r.URL.Query().Get("Signature") == "" {
		return http.StatusForbidden, errorBody("missing signature")
	}
	data, ok := s.files[strings.TrimPrefix(r.URL.Path, "/signed/")]
	if !ok {
		return http.StatusNotFound, errorBody("file not found")
	}
	return http.StatusOK, data
}

// insert stores fields under a fresh id. Caller holds s.mu.
func (s *Server) insert(entity string, fields map[string]interface{}) map[string]interface{} {
	rec := copyMap(fields)
	id := s.newID()
	rec["id"] = id
	key := strconv.FormatInt(id, 10)
	if entity == "resource_location" {
		if _, ok := rec["guid"]; !ok {
			rec["guid"] = uuid.NewString()
		}
		key = format(rec["guid"])
	}
	if _, ok := rec["name"]; !ok {
		rec["name"] = fmt.Sprintf("%s %d", entity, id)
	}
	ts := now()
	rec["created_at"] = ts
	rec["updated_at"] = ts
	if _, ok := rec["deleted_at"]; !ok {
		rec["deleted_at"] = nil
	}
	if _, ok := rec["thread"]; !ok {
		rec["thread"] = map[string]interface{}{"id": s.newID()}
	}
	if _, ok := rec["metadata_thread"]; !ok {
		rec["metadata_thread"] = map[string]interface{}{"id": s.newID()}
	}
	if gid, ok := rec["group_id"]; ok && gid != nil {
		rec["owner"] = map[string]interface{}{"id": gid}
	}

	if s.records[entity] == nil {
		s.records[entity] = map[string]map[string]interface{}{}
	}
	s.records[entity][key] = rec
	s.order[entity] = append(s.order[entity], key)
	return rec
}

func (s *Server) newID() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// references expands "{name}_id" and "{name}_guid" fields into embedded
// summaries on output.
var references = map[string]struct {
	field  string
	entity string
	byGUID bool
}{
	"template_id":            {field: "template", entity: "resource_template"},
	"resource_id":            {field: "resource", entity: "resource"},
	"purchase_order_id":      {field: "purchase_order", entity: "purchase_order"},
	"organization_id":        {field: "organization", entity: "organization"},
	"user_id":                {field: "user", entity: "user"},
	"group_id":               {field: "group", entity: "group"},
	"resource_location_guid": {field: "resource_location", entity: "resource_location", byGUID: true},
	"outer_location_guid":    {field: "outer_location", entity: "resource_location", byGUID: true},
}

// render returns the wire form of rec. Caller holds s.mu.
func (s *Server) render(entity string, rec map[string]interface{}) map[string]interface{} {
	out := copyMap(rec)

	switch entity {
	case "experiment_workflow":
		if root := s.records["experiment"][format(rec["root_experiment_id"])]; root != nil {
			out["root_experiment"] = map[string]interface{}{"id": root["id"], "state": root["state"]}
		}
	case "protocol_collection":
		if v := s.records["protocol"][format(rec["last_version_id"])]; v != nil {
			out["last_version"] = map[string]interface{}{"id": v["id"], "state": v["state"]}
		}
	}

	for field, ref := range references {
		v, ok := rec[field]
		if !ok || v == nil {
			continue
		}
		summary := map[string]interface{}{}
		if ref.byGUID {
			summary["guid"] = v
		} else {
			summary["id"] = v
		}
		if target := s.records[ref.entity][format(v)]; target != nil {
			summary["id"] = target["id"]
			summary["name"] = target["name"]
			if g, ok := target["guid"]; ok {
				summary["guid"] = g
			}
			if ref.entity == "user" {
				summary["username"] = target["username"]
			}
		}
		out[ref.field] = summary
	}
	return out
}

func errorBody(msg string) map[string]interface{} {
	return map[string]interface{}{"error": msg}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func asList(v interface{}) []interface{} {
	if l, ok := v.([]interface{}); ok {
		return l
	}
	return []interface{}{v}
}

func toInt(v interface{}) int64 {
	n, _ := strconv.ParseInt(format(v), 10, 64)
	return n
}

// format renders a JSON value the way it appears in a query string.
func format(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
