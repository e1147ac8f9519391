package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reggaepotato22/krugerr-brendt/internal/analytics"
	"github.com/reggaepotato22/krugerr-brendt/internal/assistant"
	"github.com/reggaepotato22/krugerr-brendt/internal/currency"
	"github.com/reggaepotato22/krugerr-brendt/internal/db"
	"github.com/reggaepotato22/krugerr-brendt/internal/domain"
	"github.com/reggaepotato22/krugerr-brendt/internal/imagestore"
	"github.com/reggaepotato22/krugerr-brendt/internal/live"
	"github.com/reggaepotato22/krugerr-brendt/internal/localstore"
	"github.com/reggaepotato22/krugerr-brendt/internal/logging"
	"github.com/reggaepotato22/krugerr-brendt/internal/reconcile"
	"github.com/reggaepotato22/krugerr-brendt/internal/seed"
	"github.com/reggaepotato22/krugerr-brendt/internal/service"
	"github.com/reggaepotato22/krugerr-brendt/internal/web"
)

const adminPassword = "s3cret"

// minimalJPEG is 512 bytes with the JPEG magic bytes header followed by zeros.
var minimalJPEG = func() []byte {
	b := make([]byte, 512)
	b[0] = 0xFF
	b[1] = 0xD8
	b[2] = 0xFF
	b[3] = 0xE0
	return b
}()

type staticFetcher struct{}

func (staticFetcher) Fetch(context.Context) (map[currency.Code]float64, error) {
	return map[currency.Code]float64{
		currency.USD: 1, currency.KES: 130, currency.GBP: 0.8, currency.EUR: 0.9,
	}, nil
}

type testEnv struct {
	server *httptest.Server
	hub    *live.Hub
}

func newTestEnv(t *testing.T, opts ...func(*web.Deps)) *testEnv {
	t.Helper()
	logger := logging.Discard()
	ctx := context.Background()

	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	local := localstore.New(d, nil, logger)

	seedProps, err := seed.Properties()
	require.NoError(t, err)
	seedProjects, err := seed.Projects()
	require.NoError(t, err)

	props := reconcile.New("properties", localstore.KeyProperties, local,
		reconcile.Options[domain.Property]{Seed: seedProps}, logger)
	projects := reconcile.New("projects", localstore.KeyProjects, local,
		reconcile.Options[domain.Project]{Seed: seedProjects}, logger)
	inquiries := reconcile.New("inquiries", localstore.KeyInquiries, local,
		reconcile.Options[domain.Inquiry]{SkipRemoteDelete: true}, logger)
	chats := reconcile.New("chats", localstore.KeyChats, local,
		reconcile.Options[domain.ChatSession]{}, logger)
	require.NoError(t, props.Load(ctx))
	require.NoError(t, projects.Load(ctx))
	require.NoError(t, inquiries.Load(ctx))
	require.NoError(t, chats.Load(ctx))

	disk, err := imagestore.NewDisk(t.TempDir(), logger)
	require.NoError(t, err)

	hub := live.NewHub(logger)
	hubCtx, cancel := context.WithCancel(ctx)
	go hub.Run(hubCtx)
	t.Cleanup(cancel)

	leads := service.NewLeadService(inquiries, logger)
	deps := web.Deps{
		Catalog: service.NewCatalogService(props, projects, analytics.NewTracker(local), leads,
			currency.NewRateCache(staticFetcher{}, time.Hour, logger), logger),
		Leads:       leads,
		Chats:       service.NewChatService(chats, assistant.NewCanned(), assistant.NewHandoff("+254 700 000 000", "info@example.com"), logger),
		Uploads:     service.NewUploadService(nil, disk, imagestore.NewRecords(d), logger),
		Preferences: analytics.NewPreferenceStore(local),
		Rates:       currency.NewRateCache(staticFetcher{}, time.Hour, logger),
		Hub:         hub,
		Events:      live.NewBroadcaster(hub),
		Auth: web.Auth{
			Secret:        "test-secret",
			TokenTTL:      time.Hour,
			AdminPassword: adminPassword,
		},
		RateLimit: web.RateLimit{Requests: 1000, Window: time.Minute},
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv := httptest.NewServer(web.NewServer(deps, logger))
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, headers ...string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.server.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/admin/login", "", map[string]string{"password": adminPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		Token string `json:"token"`
	}](t, resp)
	require.NotEmpty(t, body.Token)
	return body.Token
}

func findProperty(views []service.PropertyView, id string) (service.PropertyView, bool) {
	for _, v := range views {
		if v.ID == id {
			return v, true
		}
	}
	return service.PropertyView{}, false
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestListPropertiesConvertsPrices(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/properties?currency=usd", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	views := decode[[]service.PropertyView](t, resp)

	villa, ok := findProperty(views, "seed-prop-1")
	require.True(t, ok)
	assert.Equal(t, "$653,846", villa.DisplayPrice)
	assert.Equal(t, "KES 85,000,000", villa.Price)
	assert.Equal(t, domain.ProvenanceSeed, villa.Provenance)
}

func TestListPropertiesRejectsUnknownCurrency(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/properties?currency=xyz", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetPropertyCountsViews(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodGet, "/api/properties/seed-prop-2", "", nil)
	resp := env.do(t, http.MethodGet, "/api/properties/seed-prop-2", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[service.PropertyView](t, resp)
	assert.Equal(t, 2, view.Views)

	resp = env.do(t, http.MethodGet, "/api/properties/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubmitInquiry(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/inquiries", "", map[string]string{
		"name":       "Amina",
		"email":      "amina@example.com",
		"message":    "Is the villa still available?",
		"propertyId": "seed-prop-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode[struct {
		Inquiry domain.Inquiry    `json:"inquiry"`
		Written reconcile.Written `json:"written"`
	}](t, resp)
	assert.Equal(t, reconcile.WrittenLocal, body.Written.Destination)
	assert.Equal(t, domain.InquiryNew, body.Inquiry.Status)

	resp = env.do(t, http.MethodGet, "/api/properties/seed-prop-1", "", nil)
	view := decode[service.PropertyView](t, resp)
	assert.Equal(t, 1, view.Inquiries)
}

func TestSubmitInquiryValidation(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/inquiries", "", map[string]string{
		"email":   "amina@example.com",
		"message": "hello",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "name is required", body["error"])
}

func TestAdminRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/admin/inquiries", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/admin/inquiries", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/admin/login", "", map[string]string{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminPropertyLifecycle(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	resp := env.do(t, http.MethodPost, "/api/admin/properties", token, map[string]any{
		"title":    "Runda Townhouse",
		"location": "Runda, Nairobi",
		"price":    "KES 45,000,000",
		"beds":     4,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[struct {
		Property domain.Property   `json:"property"`
		Written  reconcile.Written `json:"written"`
	}](t, resp)
	assert.Equal(t, reconcile.WrittenLocal, created.Written.Destination)
	assert.True(t, created.Property.IsLocal)
	id := created.Property.ID

	resp = env.do(t, http.MethodGet, "/api/properties", "", nil)
	views := decode[[]service.PropertyView](t, resp)
	require.NotEmpty(t, views)
	assert.Equal(t, id, views[0].ID)

	resp = env.do(t, http.MethodPut, "/api/admin/properties/"+id, token, map[string]any{
		"title":    "Runda Townhouse",
		"location": "Runda, Nairobi",
		"price":    "KES 42,000,000",
		"status":   "sold",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[struct {
		Property domain.Property `json:"property"`
	}](t, resp)
	assert.Equal(t, domain.PropertySold, updated.Property.Status)

	resp = env.do(t, http.MethodDelete, "/api/admin/properties/"+id, token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/properties/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminInquiryUpdate(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	resp := env.do(t, http.MethodPost, "/api/inquiries", "", map[string]string{
		"name": "Brian", "email": "brian@example.com", "message": "Call me",
	})
	inq := decode[struct {
		Inquiry domain.Inquiry `json:"inquiry"`
	}](t, resp).Inquiry

	resp = env.do(t, http.MethodPut, "/api/admin/inquiries/"+inq.ID, token, map[string]string{
		"status": "contacted", "notes": "Called on Monday",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/admin/inquiries?status=contacted", token, nil)
	list := decode[[]domain.Inquiry](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, "Called on Monday", list[0].Notes)

	resp = env.do(t, http.MethodPut, "/api/admin/inquiries/"+inq.ID, token, map[string]string{"status": "lost"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPreferencesRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/preferences", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defaults := decode[analytics.Preferences](t, resp)
	assert.Equal(t, analytics.DefaultPreferences(), defaults)

	resp = env.do(t, http.MethodPut, "/api/preferences", "", map[string]string{"currency": "gbp", "theme": "dark"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	saved := decode[struct {
		VisitorID string        `json:"visitorId"`
		Currency  currency.Code `json:"currency"`
	}](t, resp)
	require.NotEmpty(t, saved.VisitorID)
	assert.Equal(t, currency.GBP, saved.Currency)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "visitor_id" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, saved.VisitorID, cookie.Value)

	resp = env.do(t, http.MethodGet, "/api/properties", "", nil, "X-Visitor-ID", saved.VisitorID)
	views := decode[[]service.PropertyView](t, resp)
	villa, ok := findProperty(views, "seed-prop-1")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(villa.DisplayPrice, "£"), villa.DisplayPrice)

	resp = env.do(t, http.MethodPut, "/api/preferences", "", map[string]string{"currency": "JPY", "theme": "dark"},
		"X-Visitor-ID", saved.VisitorID)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatCreatesSession(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/chat", "", map[string]string{"text": "hello", "visitorName": "Wanjiru"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reply := decode[service.ChatReply](t, resp)
	assert.NotEmpty(t, reply.Reply)
	assert.NotEmpty(t, reply.SessionID)
	assert.NotEmpty(t, reply.VisitorID)
	assert.Len(t, reply.Messages, 2)
	assert.Contains(t, reply.Handoff.WhatsApp, "https://wa.me/254700000000")

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "visitor_id" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, reply.VisitorID, cookie.Value)

	resp = env.do(t, http.MethodPost, "/api/chat", "", map[string]string{"sessionId": reply.SessionID, "text": "more"},
		"Cookie", "visitor_id="+cookie.Value)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	next := decode[service.ChatReply](t, resp)
	require.Len(t, next.Messages, 2)
	assert.Equal(t, "more", next.Messages[0].Text)

	resp = env.do(t, http.MethodPost, "/api/chat", "", map[string]string{"sessionId": "nope", "text": "hi"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChatSessionIsPrivateToItsVisitor(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/chat", "", map[string]string{
		"text":        "My number is 0712 345 678, call me about the villa",
		"visitorName": "Alice",
	}, "X-Visitor-ID", "visitor-alice")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decode[service.ChatReply](t, resp)

	resp = env.do(t, http.MethodPost, "/api/chat", "", map[string]string{"sessionId": first.SessionID, "text": "hi"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "0712")
	assert.NotContains(t, string(body), "Alice")

	resp = env.do(t, http.MethodPost, "/api/chat", "", map[string]string{"sessionId": first.SessionID, "text": "hi"},
		"X-Visitor-ID", "visitor-mallory")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	token := env.login(t)
	resp = env.do(t, http.MethodGet, "/api/admin/chats/"+first.SessionID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := decode[domain.ChatSession](t, resp)
	assert.Len(t, session.Messages, 2)
	assert.Equal(t, "visitor-alice", session.VisitorID)
}

func TestPreferencesWritesAreRateLimited(t *testing.T) {
	env := newTestEnv(t, func(d *web.Deps) {
		d.RateLimit = web.RateLimit{Requests: 2, Window: time.Minute}
	})

	for i := 0; i < 2; i++ {
		resp := env.do(t, http.MethodPut, "/api/preferences", "", map[string]string{"currency": "usd", "theme": "dark"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp := env.do(t, http.MethodPut, "/api/preferences", "", map[string]string{"currency": "usd", "theme": "dark"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/preferences", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORSAllowsOnlyConfiguredOrigins(t *testing.T) {
	const allowed = "https://krugerrbrendt.com"

	env := newTestEnv(t, func(d *web.Deps) {
		d.AllowedOrigins = []string{allowed}
	})

	resp := env.do(t, http.MethodGet, "/api/properties", "", nil, "Origin", allowed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, allowed, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	resp = env.do(t, http.MethodGet, "/api/properties", "", nil, "Origin", "https://evil.example")
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))

	bare := newTestEnv(t)
	resp = bare.do(t, http.MethodGet, "/api/properties", "", nil, "Origin", "https://evil.example")
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestImageUploadFallsBackToDisk(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "villa.jpg")
	require.NoError(t, err)
	_, err = fw.Write(minimalJPEG)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/admin/images", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	res := decode[service.UploadResult](t, resp)
	assert.Equal(t, "local", res.Destination)
	require.True(t, strings.HasPrefix(res.URL, "/images/"), res.URL)

	img := env.do(t, http.MethodGet, res.URL, "", nil)
	require.Equal(t, http.StatusOK, img.StatusCode)
	assert.Equal(t, "image/jpeg", img.Header.Get("Content-Type"))
	data, err := io.ReadAll(img.Body)
	require.NoError(t, err)
	assert.Equal(t, minimalJPEG, data)
}

func TestImageUploadRejectsNonImage(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "doc.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4 not an image"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/admin/images", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLiveFeedPushesInquiries(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/admin/live"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+token, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	require.Eventually(t, func() bool { return env.hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	env.do(t, http.MethodPost, "/api/inquiries", "", map[string]string{
		"name": "Otieno", "email": "otieno@example.com", "message": "Viewing on Saturday?",
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg live.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, live.TypeInquiryReceived, msg.Type)
	assert.Equal(t, "inquiries", msg.Collection)
}
