package syncserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"shiftscheduler/config"
	"shiftscheduler/internal/model"
	"shiftscheduler/internal/remote"
	"shiftscheduler/internal/syncserver"
	"shiftscheduler/pkg/database"
	"shiftscheduler/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testPassphrase = "correct horse battery staple"

type serverEnv struct {
	engine  *gin.Engine
	storage *syncserver.Storage
	token   string
}

func newServerEnv(t *testing.T) *serverEnv {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.Open(filepath.Join(t.TempDir(), "server.db"), logger)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := syncserver.Migrate(db, logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	storage := syncserver.NewStorage(db, logger)
	if _, err := storage.EnsureAccount(testPassphrase); err != nil {
		t.Fatalf("ensure account: %v", err)
	}

	jwtMgr := jwt.NewManager("0123456789abcdef", time.Hour)
	h := syncserver.NewHandler(storage, jwtMgr, logger)
	cfg := &config.ServeConfig{TokenRateLimit: 10, TokenRateWindow: time.Minute}
	engine := syncserver.NewRouter(cfg, h, jwtMgr, nil, logger)

	return &serverEnv{engine: engine, storage: storage}
}

func (e *serverEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *serverEnv) authenticate(t *testing.T) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/auth/token", map[string]string{"passphrase": testPassphrase})
	if w.Code != http.StatusOK {
		t.Fatalf("token request: status %d: %s", w.Code, w.Body.String())
	}
	var env struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Data.Token == "" {
		t.Fatal("empty token in response")
	}
	e.token = env.Data.Token
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var env struct {
		Code int             `json:"code"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Code != 0 {
		t.Fatalf("envelope code = %d: %s", env.Code, w.Body.String())
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func locationRecord(rev int64, name string) remote.Record {
	payload, _ := json.Marshal(map[string]string{"location_id": uuid.NewString(), "name": name})
	return remote.Record{Kind: model.RecordLocation, ID: uuid.NewString(), Payload: payload, Rev: rev}
}

func TestHealthIsOpen(t *testing.T) {
	e := newServerEnv(t)
	w := e.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health: status %d", w.Code)
	}
}

func TestSyncEndpointsRequireToken(t *testing.T) {
	e := newServerEnv(t)
	w := e.do(t, http.MethodGet, "/api/v1/sync/download?after=0", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("download without token: status %d, want 401", w.Code)
	}
}

func TestTokenRejectsWrongPassphrase(t *testing.T) {
	e := newServerEnv(t)
	w := e.do(t, http.MethodPost, "/api/v1/auth/token", map[string]string{"passphrase": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", w.Code)
	}
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	e := newServerEnv(t)
	e.authenticate(t)

	rec := locationRecord(0, "Main ward")
	w := e.do(t, http.MethodPost, "/api/v1/sync/upload", map[string]interface{}{
		"records": []remote.Record{rec},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("upload: status %d: %s", w.Code, w.Body.String())
	}
	var up struct {
		Results []remote.UploadResult `json:"results"`
	}
	decodeData(t, w, &up)
	if len(up.Results) != 1 || up.Results[0].Conflicted || up.Results[0].Rev != 1 {
		t.Fatalf("results = %+v, want applied at rev 1", up.Results)
	}

	w = e.do(t, http.MethodGet, "/api/v1/sync/download?after=0", nil)
	var down struct {
		Records []remote.Record `json:"records"`
		Cursor  int64           `json:"cursor"`
	}
	decodeData(t, w, &down)
	if len(down.Records) != 1 || down.Cursor != 1 {
		t.Fatalf("download = %+v cursor %d, want 1 record at cursor 1", down.Records, down.Cursor)
	}
	if down.Records[0].ID != rec.ID {
		t.Error("downloaded record id mismatch")
	}

	// nothing new past the cursor
	w = e.do(t, http.MethodGet, "/api/v1/sync/download?after=1", nil)
	down.Records = nil
	decodeData(t, w, &down)
	if len(down.Records) != 0 || down.Cursor != 1 {
		t.Fatalf("incremental download = %d records cursor %d, want 0 at 1", len(down.Records), down.Cursor)
	}
}

func TestStaleUploadParksConflict(t *testing.T) {
	e := newServerEnv(t)
	e.authenticate(t)

	rec := locationRecord(0, "v1")
	e.do(t, http.MethodPost, "/api/v1/sync/upload", map[string]interface{}{"records": []remote.Record{rec}})

	// second writer, same base revision: applies at rev 2
	rec2 := rec
	rec2.Rev = 1
	e.do(t, http.MethodPost, "/api/v1/sync/upload", map[string]interface{}{"records": []remote.Record{rec2}})

	// first writer retries from the stale base: parked
	stale := rec
	stale.Rev = 1
	w := e.do(t, http.MethodPost, "/api/v1/sync/upload", map[string]interface{}{"records": []remote.Record{stale}})
	var up struct {
		Results []remote.UploadResult `json:"results"`
	}
	decodeData(t, w, &up)
	if len(up.Results) != 1 || !up.Results[0].Conflicted {
		t.Fatalf("results = %+v, want conflicted", up.Results)
	}

	w = e.do(t, http.MethodGet, "/api/v1/sync/conflicts", nil)
	var conflicts struct {
		Conflicts []model.Conflict `json:"conflicts"`
	}
	decodeData(t, w, &conflicts)
	if len(conflicts.Conflicts) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(conflicts.Conflicts))
	}
	c := conflicts.Conflicts[0]
	if c.RecordID != rec.ID || c.Remote.Rev != 2 || c.Local.Rev != 1 {
		t.Errorf("conflict = %+v, want local base 1 vs remote 2", c)
	}
}

func TestResolveConflictKeepLocal(t *testing.T) {
	e := newServerEnv(t)
	e.authenticate(t)

	rec := locationRecord(0, "v1")
	e.do(t, http.MethodPost, "/api/v1/sync/upload", map[string]interface{}{"records": []remote.Record{rec}})
	newer := rec
	newer.Rev = 1
	e.do(t, http.MethodPost, "/api/v1/sync/upload", map[string]interface{}{"records": []remote.Record{newer}})
	stale := rec
	stale.Rev = 1
	e.do(t, http.MethodPost, "/api/v1/sync/upload", map[string]interface{}{"records": []remote.Record{stale}})

	conflicts, err := e.storage.PendingConflicts()
	if err != nil || len(conflicts) != 1 {
		t.Fatalf("pending = %v (%v), want 1", conflicts, err)
	}

	path := "/api/v1/sync/conflicts/" + conflicts[0].ConflictID + "/resolve"
	w := e.do(t, http.MethodPost, path, map[string]string{"resolution": "keep_local"})
	if w.Code != http.StatusOK {
		t.Fatalf("resolve: status %d: %s", w.Code, w.Body.String())
	}
	var res struct {
		Record *remote.Record `json:"record"`
	}
	decodeData(t, w, &res)
	if res.Record == nil || res.Record.Rev != 3 {
		t.Fatalf("winner = %+v, want rev 3", res.Record)
	}

	// the conflict is gone and the winner is downloadable
	remaining, _ := e.storage.PendingConflicts()
	if len(remaining) != 0 {
		t.Error("conflict still pending after resolution")
	}
	w = e.do(t, http.MethodGet, "/api/v1/sync/download?after=2", nil)
	var down struct {
		Records []remote.Record `json:"records"`
	}
	decodeData(t, w, &down)
	if len(down.Records) != 1 || down.Records[0].Rev != 3 {
		t.Fatalf("download past rev 2 = %+v, want the resolved record", down.Records)
	}
}

func TestResolveUnknownConflictIs404(t *testing.T) {
	e := newServerEnv(t)
	e.authenticate(t)

	w := e.do(t, http.MethodPost, "/api/v1/sync/conflicts/"+uuid.NewString()+"/resolve",
		map[string]string{"resolution": "keep_remote"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", w.Code)
	}
}

func TestResetDropsConflicts(t *testing.T) {
	e := newServerEnv(t)
	e.authenticate(t)

	rec := locationRecord(0, "v1")
	e.do(t, http.MethodPost, "/api/v1/sync/upload", map[string]interface{}{"records": []remote.Record{rec}})
	stale := rec
	stale.Rev = 99
	e.do(t, http.MethodPost, "/api/v1/sync/upload", map[string]interface{}{"records": []remote.Record{stale}})

	w := e.do(t, http.MethodPost, "/api/v1/sync/reset", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reset: status %d", w.Code)
	}
	remaining, _ := e.storage.PendingConflicts()
	if len(remaining) != 0 {
		t.Fatalf("conflicts after reset = %d, want 0", len(remaining))
	}
}

func TestPurgeTombstones(t *testing.T) {
	e := newServerEnv(t)
	e.authenticate(t)

	gone := locationRecord(0, "old ward")
	gone.Deleted = true
	alive := locationRecord(0, "current ward")
	e.do(t, http.MethodPost, "/api/v1/sync/upload", map[string]interface{}{
		"records": []remote.Record{gone, alive},
	})

	removed, err := e.storage.PurgeTombstones(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	w := e.do(t, http.MethodGet, "/api/v1/sync/download?after=0", nil)
	var down struct {
		Records []remote.Record `json:"records"`
	}
	decodeData(t, w, &down)
	if len(down.Records) != 1 || down.Records[0].ID != alive.ID {
		t.Fatalf("records after purge = %+v, want only the live one", down.Records)
	}
}

func TestRemoteClientAgainstServer(t *testing.T) {
	e := newServerEnv(t)
	ts := httptest.NewServer(e.engine)
	defer ts.Close()

	client := remote.NewClient(remote.Config{
		BaseURL:    ts.URL,
		Passphrase: testPassphrase,
	}, zap.NewNop())

	ctx := context.Background()
	if !client.IsAvailable(ctx) {
		t.Fatal("health probe failed")
	}

	rec := locationRecord(0, "Main ward")
	results, err := client.UploadPending(ctx, []remote.Record{rec})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(results) != 1 || results[0].Rev != 1 {
		t.Fatalf("results = %+v", results)
	}
	if client.CurrentToken() == "" {
		t.Error("client did not keep the bearer token")
	}

	records, cursor, err := client.DownloadRemote(ctx, 0)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if len(records) != 1 || cursor != 1 {
		t.Fatalf("download = %d records at cursor %d", len(records), cursor)
	}
}
