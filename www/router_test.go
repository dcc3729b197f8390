package www

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"chipsight/config"
	"chipsight/engine"
	"chipsight/holdstate"
	"chipsight/store"
)

func testServer(t *testing.T) (*httptest.Server, *store.DB) {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	holds := holdstate.New(db, nil)
	holds.SetLogFunc(t.Logf)
	eng := engine.New(engine.Config{
		AppConfig: config.Defaults(),
		DB:        db,
		Holds:     holds,
		LogFunc:   t.Logf,
	})

	handler, stop := NewRouter(eng)
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		stop()
	})
	return srv, db
}

func authedClient(t *testing.T, srv *httptest.Server) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	client := &http.Client{Jar: jar}
	resp, err := client.Post(srv.URL+"/login", "application/json",
		bytes.NewBufferString(`{"username":"admin","password":"admin"}`))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}
	return client
}

func postJSON(t *testing.T, client *http.Client, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := client.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	resp, err := http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if body["messaging"] != false {
		t.Errorf("messaging = %v, want false with no client", body["messaging"])
	}
}

func TestSupervisorRoutesRequireAuth(t *testing.T) {
	srv, _ := testServer(t)

	resp, _ := postJSON(t, http.DefaultClient, srv.URL+"/api/projects",
		`{"project_code":"P1","project_name":"Nope"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated create project status = %d, want 401", resp.StatusCode)
	}
}

func TestLoginBadPassword(t *testing.T) {
	srv, _ := testServer(t)

	resp, _ := postJSON(t, http.DefaultClient, srv.URL+"/login",
		`{"username":"admin","password":"wrong"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", resp.StatusCode)
	}
}

func TestCatalogCreateAndList(t *testing.T) {
	srv, _ := testServer(t)
	client := authedClient(t, srv)

	resp, proj := postJSON(t, client, srv.URL+"/api/projects",
		`{"project_code":"PRJ-W","project_name":"Web Test"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create project status = %d", resp.StatusCode)
	}
	if proj["project_code"] != "PRJ-W" {
		t.Errorf("project_code = %v", proj["project_code"])
	}

	listResp, err := http.Get(srv.URL + "/api/projects")
	if err != nil {
		t.Fatal(err)
	}
	defer listResp.Body.Close()
	var projects []map[string]any
	if err := json.NewDecoder(listResp.Body).Decode(&projects); err != nil {
		t.Fatal(err)
	}
	if len(projects) != 1 {
		t.Fatalf("got %d projects, want 1", len(projects))
	}
}

func TestWorkstationRunOverHTTP(t *testing.T) {
	srv, db := testServer(t)
	client := authedClient(t, srv)

	// Supervisor seeds the catalog.
	_, proj := postJSON(t, client, srv.URL+"/api/projects",
		`{"project_code":"PRJ-W2","project_name":"Run Test"}`)
	projID := int64(proj["id"].(float64))
	ep := &store.EndProduct{ProjectID: projID, Name: "Part W", SAPID: "SAP-W",
		Quantity: 2, CycleTimeStd: 5}
	if err := db.CreateEndProduct(ep); err != nil {
		t.Fatal(err)
	}
	resp, drawing := postJSON(t, client, srv.URL+"/api/drawings",
		`{"drawing_number":"DWG-W","sap_id":"SAP-W"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create drawing status = %d", resp.StatusCode)
	}
	resp, machine := postJSON(t, client, srv.URL+"/api/machines", `{"name":"VMC-W"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create machine status = %d", resp.StatusCode)
	}

	// Operator terminal is unauthenticated.
	station := http.DefaultClient
	resp, session := postJSON(t, station, srv.URL+"/api/sessions",
		`{"operator_name":"op-w","machine_id":`+jsonNum(machine["id"])+`,"shift":"A"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("session login status = %d", resp.StatusCode)
	}

	resp, logBody := postJSON(t, station, srv.URL+"/api/logs/setup",
		`{"session_id":`+jsonNum(session["id"])+`,"drawing_id":`+jsonNum(drawing["id"])+`,"batch_number":"B-W1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start setup status = %d, body %v", resp.StatusCode, logBody)
	}
	logID := jsonNum(logBody["id"])

	for _, step := range []struct {
		path, body string
	}{
		{"/setup-done", `{}`},
		{"/cycle-start", `{}`},
		{"/cycle-complete", `{"quantity":2}`}, // plan met, no LPI: closes the run
	} {
		resp, body := postJSON(t, station, srv.URL+"/api/logs/"+logID+step.path, step.body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d, body %v", step.path, resp.StatusCode, body)
		}
	}

	getResp, err := http.Get(srv.URL + "/api/logs/" + logID)
	if err != nil {
		t.Fatal(err)
	}
	var closed map[string]any
	json.NewDecoder(getResp.Body).Decode(&closed)
	getResp.Body.Close()
	if closed["current_status"] != "closed" {
		t.Errorf("final status = %v, want closed", closed["current_status"])
	}

	resp, _ = postJSON(t, station, srv.URL+"/api/logs/"+logID+"/cycle-start", `{}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("cycle-start on closed log status = %d, want 409", resp.StatusCode)
	}
}

func jsonNum(v any) string {
	f, _ := v.(float64)
	b, _ := json.Marshal(int64(f))
	return string(b)
}
