package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Karthik0956A/clauseai-2.0/internal/analysis"
	"github.com/Karthik0956A/clauseai-2.0/internal/compose"
	"github.com/Karthik0956A/clauseai-2.0/internal/config"
	"github.com/Karthik0956A/clauseai-2.0/internal/ingest"
	"github.com/Karthik0956A/clauseai-2.0/internal/models"
	"github.com/Karthik0956A/clauseai-2.0/internal/session"
	"github.com/Karthik0956A/clauseai-2.0/internal/storage"
	"github.com/Karthik0956A/clauseai-2.0/internal/store"
)

type fakeIngestor struct {
	batches [][]ingest.File
	ref     *models.DocumentRef
	err     error
}

func (f *fakeIngestor) Ingest(ctx context.Context, files []ingest.File) (*models.DocumentRef, error) {
	f.batches = append(f.batches, files)
	if f.err != nil {
		return nil, f.err
	}
	ref := *f.ref
	return &ref, nil
}

type fakeResponder struct {
	last  compose.Request
	reply string
	err   error
}

func (f *fakeResponder) Respond(ctx context.Context, req compose.Request) (string, error) {
	f.last = req
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeAnalyzer struct {
	report      *analysis.RiskReport
	suggestions *analysis.SuggestionSet
	comparison  *analysis.Comparison
	refs        []*models.DocumentRef
	err         error
}

func (f *fakeAnalyzer) AssessRisk(ctx context.Context, ref *models.DocumentRef) (*analysis.RiskReport, error) {
	f.refs = append(f.refs, ref)
	return f.report, f.err
}

func (f *fakeAnalyzer) DraftSuggestions(ctx context.Context, ref *models.DocumentRef) (*analysis.SuggestionSet, error) {
	f.refs = append(f.refs, ref)
	return f.suggestions, f.err
}

func (f *fakeAnalyzer) Compare(ctx context.Context, a, b *models.DocumentRef) (*analysis.Comparison, error) {
	f.refs = append(f.refs, a, b)
	return f.comparison, f.err
}

type testServer struct {
	router    *gin.Engine
	db        *sql.DB
	ingestor  *fakeIngestor
	responder *fakeResponder
	analyzer  *fakeAnalyzer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ts := &testServer{
		db:        db,
		ingestor:  &fakeIngestor{ref: &models.DocumentRef{Name: "doc.pdf", MimeType: "application/pdf", URI: "files/doc-1"}},
		responder: &fakeResponder{reply: "It caps liability."},
		analyzer: &fakeAnalyzer{
			report:      &analysis.RiskReport{RiskScore: 40},
			suggestions: &analysis.SuggestionSet{},
			comparison:  &analysis.Comparison{},
		},
	}

	authority := session.NewAuthority("test-secret", time.Hour)
	users := store.NewUserStore(db)
	conversations := store.NewConversationStore(db, nil, zerolog.Nop())
	handler := NewHandler(users, conversations, authority, ts.ingestor, ts.responder, ts.analyzer, zerolog.Nop())

	ts.router = gin.New()
	handler.RegisterRoutes(ts.router)
	return ts
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return body
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	res := w.Result()
	defer res.Body.Close()
	for _, c := range res.Cookies() {
		if c.Name == session.CookieName && c.Value != "" {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func signup(t *testing.T, router *gin.Engine, name, email string) *http.Cookie {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/auth/signup", map[string]string{
		"name": name, "email": email, "password": "password1",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	return sessionCookie(t, w)
}

func TestSignupLoginMe(t *testing.T) {
	ts := newTestServer(t)

	cookie := signup(t, ts.router, "Asha", "asha@example.com")

	w := doJSON(t, ts.router, http.MethodGet, "/api/auth/me", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	user, _ := body["user"].(map[string]interface{})
	if user["name"] != "Asha" || user["email"] != "asha@example.com" {
		t.Fatalf("unexpected identity: %+v", user)
	}

	// Duplicate registration.
	w = doJSON(t, ts.router, http.MethodPost, "/api/auth/signup", map[string]string{
		"name": "Other", "email": "asha@example.com", "password": "password2",
	}, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate signup: expected 409, got %d", w.Code)
	}

	// Fresh login.
	w = doJSON(t, ts.router, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "asha@example.com", "password": "password1",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", w.Code)
	}
	sessionCookie(t, w)

	w = doJSON(t, ts.router, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "asha@example.com", "password": "wrongpass",
	}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", w.Code)
	}
}

func TestSignupValidation(t *testing.T) {
	ts := newTestServer(t)

	cases := []map[string]string{
		{"name": "", "email": "a@b.com", "password": "password1"},
		{"name": "A", "email": "not-an-email", "password": "password1"},
		{"name": "A", "email": "a@b.com", "password": "short"},
	}
	for _, body := range cases {
		w := doJSON(t, ts.router, http.MethodPost, "/api/auth/signup", body, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%+v: expected 400, got %d", body, w.Code)
		}
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	ts := newTestServer(t)
	cookie := signup(t, ts.router, "Asha", "asha@example.com")

	w := doJSON(t, ts.router, http.MethodPost, "/api/auth/logout", nil, cookie)
	if w.Code != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", w.Code)
	}
	res := w.Result()
	defer res.Body.Close()
	cleared := false
	for _, c := range res.Cookies() {
		if c.Name == session.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("expected session cookie deletion")
	}
}

func TestMeWithoutSession(t *testing.T) {
	ts := newTestServer(t)
	w := doJSON(t, ts.router, http.MethodGet, "/api/auth/me", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestChat(t *testing.T) {
	ts := newTestServer(t)

	w := doJSON(t, ts.router, http.MethodPost, "/api/chat", map[string]interface{}{
		"message":  "What does clause 4 mean?",
		"history":  []map[string]string{{"role": "user", "content": "hi"}, {"role": "assistant", "content": "hello"}},
		"file":     map[string]string{"name": "doc.pdf", "mimeType": "application/pdf", "uri": "files/doc-1"},
		"language": "hindi",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("chat: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["response"] != "It caps liability." {
		t.Fatalf("unexpected response: %+v", body)
	}

	req := ts.responder.last
	if req.Message != "What does clause 4 mean?" || req.Language != "hindi" {
		t.Fatalf("unexpected composed request: %+v", req)
	}
	if req.File == nil || req.File.URI != "files/doc-1" {
		t.Fatalf("expected document reference forwarded, got %+v", req.File)
	}
	if len(req.History) != 2 {
		t.Fatalf("expected history forwarded, got %+v", req.History)
	}
}

func TestChatRequiresMessage(t *testing.T) {
	ts := newTestServer(t)
	w := doJSON(t, ts.router, http.MethodPost, "/api/chat", map[string]string{"message": "   "}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSaveHistoryGetFlow(t *testing.T) {
	ts := newTestServer(t)
	cookie := signup(t, ts.router, "Asha", "asha@example.com")

	messages := []map[string]interface{}{
		{"id": 1, "role": "user", "content": "What does clause 4 mean?"},
		{"id": 2, "role": "assistant", "content": "It caps liability."},
	}
	w := doJSON(t, ts.router, http.MethodPost, "/api/chat/save", map[string]interface{}{
		"messages": messages,
		"document": map[string]string{"name": "doc.pdf", "mimeType": "application/pdf", "uri": "files/doc-1"},
	}, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("save: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	convID := int64(body["conversationId"].(float64))
	if convID == 0 {
		t.Fatalf("expected conversation id, got %+v", body)
	}
	if body["title"] != store.FallbackTitle {
		t.Fatalf("expected fallback title, got %v", body["title"])
	}

	// Append a turn to the same conversation.
	messages = append(messages, map[string]interface{}{"id": 3, "role": "user", "content": "And clause 5?"})
	w = doJSON(t, ts.router, http.MethodPost, "/api/chat/save", map[string]interface{}{
		"conversationId": convID,
		"messages":       messages,
	}, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("resave: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := int64(decodeBody(t, w)["conversationId"].(float64)); got != convID {
		t.Fatalf("expected same conversation id, got %d", got)
	}

	w = doJSON(t, ts.router, http.MethodGet, "/api/chat/history", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("history: expected 200, got %d", w.Code)
	}
	convs, _ := decodeBody(t, w)["conversations"].([]interface{})
	if len(convs) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(convs))
	}

	convPath := fmt.Sprintf("/api/chat/%d", convID)
	w = doJSON(t, ts.router, http.MethodGet, convPath, nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	conv, _ := decodeBody(t, w)["conversation"].(map[string]interface{})
	msgs, _ := conv["messages"].([]interface{})
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}

	// Another account cannot see it.
	other := signup(t, ts.router, "Bea", "bea@example.com")
	w = doJSON(t, ts.router, http.MethodGet, convPath, nil, other)
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign get: expected 404, got %d", w.Code)
	}

	// No session at all.
	w = doJSON(t, ts.router, http.MethodGet, "/api/chat/history", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous history: expected 401, got %d", w.Code)
	}
}

func TestSaveChatEmptyMessages(t *testing.T) {
	ts := newTestServer(t)
	cookie := signup(t, ts.router, "Asha", "asha@example.com")

	w := doJSON(t, ts.router, http.MethodPost, "/api/chat/save", map[string]interface{}{
		"messages": []interface{}{},
	}, cookie)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func multipartBody(t *testing.T, field string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	ts := newTestServer(t)

	buf, contentType := multipartBody(t, "files", map[string]string{"contract.pdf": "%PDF-1.4 fake"})
	req := httptest.NewRequest(http.MethodPost, "/api/upload", buf)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	file, _ := decodeBody(t, w)["file"].(map[string]interface{})
	if file["uri"] != "files/doc-1" {
		t.Fatalf("unexpected handle: %+v", file)
	}
	if len(ts.ingestor.batches) != 1 || len(ts.ingestor.batches[0]) != 1 {
		t.Fatalf("unexpected ingest batches: %+v", ts.ingestor.batches)
	}
	if got := ts.ingestor.batches[0][0].Name; got != "contract.pdf" {
		t.Fatalf("unexpected file name: %s", got)
	}
}

func TestUploadRequiresFiles(t *testing.T) {
	ts := newTestServer(t)

	buf, contentType := multipartBody(t, "other", map[string]string{"x.txt": "x"})
	req := httptest.NewRequest(http.MethodPost, "/api/upload", buf)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestRiskAndSuggest(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/risk", "/api/suggest"} {
		w := doJSON(t, ts.router, http.MethodPost, path, map[string]string{
			"fileUri": "files/doc-1", "mimeType": "application/pdf",
		}, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", path, w.Code, w.Body.String())
		}
		if decodeBody(t, w)["success"] != true {
			t.Fatalf("%s: expected success", path)
		}

		w = doJSON(t, ts.router, http.MethodPost, path, map[string]string{"fileUri": ""}, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s without target: expected 400, got %d", path, w.Code)
		}
	}

	if len(ts.analyzer.refs) != 2 || ts.analyzer.refs[0].URI != "files/doc-1" {
		t.Fatalf("unexpected analyzer targets: %+v", ts.analyzer.refs)
	}
}

func TestCompare(t *testing.T) {
	ts := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, field := range []string{"fileA", "fileB"} {
		fw, err := mw.CreateFormFile(field, field+".pdf")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write([]byte("%PDF-1.4 fake")); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/compare", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("compare: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(ts.ingestor.batches) != 2 {
		t.Fatalf("expected two single-file ingests, got %d", len(ts.ingestor.batches))
	}
	if len(ts.analyzer.refs) != 2 {
		t.Fatalf("expected two comparison targets, got %d", len(ts.analyzer.refs))
	}
}

func TestCompareRequiresBothFiles(t *testing.T) {
	ts := newTestServer(t)

	buf, contentType := multipartBody(t, "fileA", map[string]string{"a.pdf": "%PDF-1.4"})
	req := httptest.NewRequest(http.MethodPost, "/api/compare", buf)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGateRedirectsUnknownPath(t *testing.T) {
	ts := newTestServer(t)

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != session.AuthEntryPath {
		t.Fatalf("expected redirect to %s, got %s", session.AuthEntryPath, loc)
	}
}
