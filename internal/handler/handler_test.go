package handler

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-waitlist/internal/auth"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/export"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/model"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/repository"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/service"
)

const testSecret = "handler-test-secret"

type testServer struct {
	t     *testing.T
	store *repository.Memory
	srv   *httptest.Server
}

func newTestServer(t *testing.T, xlsx bool) *testServer {
	t.Helper()
	store := repository.NewMemory()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := NewRouter(Deps{
		Events:        service.NewEventService(store.Events(), store.Registrations(), store.Users()),
		Registrations: service.NewRegistrationService(store.Registrations(), service.WithLogger(log)),
		Analytics:     service.NewAnalyticsService(store.Events(), store.Registrations(), store.Users(), nil),
		Exporter:      export.New(time.UTC, xlsx),
		Policy:        auth.NewPolicy([]string{"admin"}),
		JWTSecret:     testSecret,
		CORSOrigins:   []string{"*"},
		Log:           log,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{t: t, store: store, srv: srv}
}

func (s *testServer) token(userID, role string) string {
	s.t.Helper()
	tok, err := auth.GenerateToken(userID, userID+"@example.com", role, "", testSecret)
	if err != nil {
		s.t.Fatalf("GenerateToken() error = %v", err)
	}
	return tok
}

func (s *testServer) do(method, path, token string, body any) *http.Response {
	s.t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, rdr)
	if err != nil {
		s.t.Fatalf("NewRequest() error = %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		s.t.Fatalf("%s %s error = %v", method, path, err)
	}
	s.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s status = %d, want %d; body = %s",
			resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want, body)
	}
}

func (s *testServer) createEvent(capacity *int, waitlist bool) model.Event {
	s.t.Helper()
	resp := s.do(http.MethodPost, "/admin/events", s.token("root", "admin"),
		model.CreateEventRequest{Title: "Go Workshop", Capacity: capacity, HasWaitlist: waitlist})
	expectStatus(s.t, resp, http.StatusCreated)
	return decode[model.Event](s.t, resp)
}

func intPtr(v int) *int { return &v }

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, true)
	resp := s.do(http.MethodGet, "/health", "", nil)
	expectStatus(t, resp, http.StatusOK)
}

func TestEventEndpoints(t *testing.T) {
	s := newTestServer(t, true)

	resp := s.do(http.MethodPost, "/admin/events", s.token("u1", "member"), model.CreateEventRequest{Title: "x"})
	expectStatus(t, resp, http.StatusForbidden)

	resp = s.do(http.MethodPost, "/admin/events", s.token("root", "admin"), model.CreateEventRequest{})
	expectStatus(t, resp, http.StatusBadRequest)
	if msg := decode[model.ErrorResponse](t, resp).Error; !strings.Contains(msg, "title") {
		t.Errorf("error = %q, want it to name title", msg)
	}

	e := s.createEvent(intPtr(2), true)

	resp = s.do(http.MethodGet, "/events", "", nil)
	expectStatus(t, resp, http.StatusOK)
	if events := decode[[]model.Event](t, resp); len(events) != 1 || events[0].ID != e.ID {
		t.Errorf("events = %+v", events)
	}

	resp = s.do(http.MethodGet, "/events/"+e.ID, "", nil)
	expectStatus(t, resp, http.StatusOK)

	resp = s.do(http.MethodGet, "/events/missing", "", nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestRegisterAndCancelFlow(t *testing.T) {
	s := newTestServer(t, true)
	e := s.createEvent(intPtr(1), true)
	alice, bob := s.token("alice", "member"), s.token("bob", "member")

	resp := s.do(http.MethodPost, "/events/"+e.ID+"/register", "", nil)
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = s.do(http.MethodPost, "/events/"+e.ID+"/register", alice, nil)
	expectStatus(t, resp, http.StatusCreated)
	a := decode[model.Registration](t, resp)
	if a.Status != model.StatusConfirmed {
		t.Fatalf("alice status = %s", a.Status)
	}

	resp = s.do(http.MethodPost, "/events/"+e.ID+"/register", alice, nil)
	expectStatus(t, resp, http.StatusBadRequest)

	resp = s.do(http.MethodPost, "/events/"+e.ID+"/register", bob, nil)
	expectStatus(t, resp, http.StatusCreated)
	b := decode[model.Registration](t, resp)
	if b.Status != model.StatusWaitlisted || b.WaitlistPosition == nil || *b.WaitlistPosition != 1 {
		t.Fatalf("bob = %s/%v", b.Status, b.WaitlistPosition)
	}

	// Bob cannot cancel Alice's registration.
	resp = s.do(http.MethodPost, "/registrations/"+a.ID+"/cancel", bob, nil)
	expectStatus(t, resp, http.StatusForbidden)

	reason := "conflict"
	resp = s.do(http.MethodPost, "/registrations/"+a.ID+"/cancel", alice, model.CancelRequest{Reason: &reason})
	expectStatus(t, resp, http.StatusOK)
	if got := decode[model.Registration](t, resp); got.Status != model.StatusCancelled {
		t.Fatalf("cancelled = %+v", got)
	}

	resp = s.do(http.MethodGet, "/registrations/my/"+e.ID, bob, nil)
	expectStatus(t, resp, http.StatusOK)
	mine := decode[*model.Registration](t, resp)
	if mine == nil || mine.Status != model.StatusConfirmed || mine.PromotedFromWaitlistAt == nil {
		t.Fatalf("bob after promotion = %+v", mine)
	}

	resp = s.do(http.MethodGet, "/registrations/my/"+e.ID, alice, nil)
	expectStatus(t, resp, http.StatusOK)
	if mine := decode[*model.Registration](t, resp); mine != nil {
		t.Fatalf("alice my registration = %+v, want null", mine)
	}
}

func TestRegisterFullWithoutWaitlist(t *testing.T) {
	s := newTestServer(t, true)
	e := s.createEvent(intPtr(1), false)

	expectStatus(t, s.do(http.MethodPost, "/events/"+e.ID+"/register", s.token("a", ""), nil), http.StatusCreated)
	resp := s.do(http.MethodPost, "/events/"+e.ID+"/register", s.token("b", ""), nil)
	expectStatus(t, resp, http.StatusBadRequest)
	if msg := decode[model.ErrorResponse](t, resp).Error; !strings.Contains(msg, "capacity") {
		t.Errorf("error = %q", msg)
	}
}

func TestAdminRegistrationEndpoints(t *testing.T) {
	s := newTestServer(t, true)
	e := s.createEvent(intPtr(1), true)
	admin := s.token("root", "admin")

	regs := make([]model.Registration, 0, 3)
	for _, u := range []string{"a", "b", "c"} {
		resp := s.do(http.MethodPost, "/events/"+e.ID+"/register", s.token(u, "member"), nil)
		expectStatus(t, resp, http.StatusCreated)
		regs = append(regs, decode[model.Registration](t, resp))
	}

	resp := s.do(http.MethodPost, "/admin/registrations/"+regs[1].ID+"/promote", s.token("a", "member"), nil)
	expectStatus(t, resp, http.StatusForbidden)

	resp = s.do(http.MethodPost, "/admin/registrations/"+regs[1].ID+"/promote", admin, nil)
	expectStatus(t, resp, http.StatusBadRequest)

	resp = s.do(http.MethodPost, "/admin/registrations/"+regs[0].ID+"/demote", admin, nil)
	expectStatus(t, resp, http.StatusOK)
	if got := decode[model.Registration](t, resp); got.WaitlistPosition == nil || *got.WaitlistPosition != 3 {
		t.Fatalf("demoted = %+v", got)
	}

	resp = s.do(http.MethodPost, "/admin/registrations/"+regs[2].ID+"/promote", admin, nil)
	expectStatus(t, resp, http.StatusOK)
	promo := decode[model.PromotionResult](t, resp)
	if promo.OverCapacity || promo.Registration.Status != model.StatusConfirmed {
		t.Fatalf("promotion = %+v", promo)
	}

	resp = s.do(http.MethodPost, "/admin/registrations/"+regs[1].ID+"/mark-attended", admin, nil)
	expectStatus(t, resp, http.StatusBadRequest)

	resp = s.do(http.MethodPost, "/admin/registrations/missing/mark-attended", admin, nil)
	expectStatus(t, resp, http.StatusNotFound)

	resp = s.do(http.MethodPost, "/admin/registrations/bulk-attendance", admin, map[string]any{})
	expectStatus(t, resp, http.StatusBadRequest)
	if msg := decode[model.ErrorResponse](t, resp).Error; !strings.Contains(msg, "registrationIds") {
		t.Errorf("error = %q, want it to name registrationIds", msg)
	}

	resp = s.do(http.MethodPost, "/admin/registrations/bulk-attendance", admin,
		model.BulkAttendanceRequest{RegistrationIDs: []string{regs[2].ID, "missing", regs[1].ID}})
	expectStatus(t, resp, http.StatusOK)
	bulk := decode[model.BulkResult](t, resp)
	if !bulk.Success || bulk.Updated != 1 || len(bulk.Failed) != 2 {
		t.Fatalf("bulk = %+v", bulk)
	}

	resp = s.do(http.MethodGet, "/admin/events/"+e.ID+"/registrations", admin, nil)
	expectStatus(t, resp, http.StatusOK)
	if rows := decode[[]model.RegistrationRow](t, resp); len(rows) != 3 {
		t.Fatalf("roster = %d rows, want 3", len(rows))
	}
}

func TestAnalyticsEndpoint(t *testing.T) {
	s := newTestServer(t, true)
	e := s.createEvent(intPtr(4), true)
	admin := s.token("root", "admin")
	s.store.PutUser(model.User{ID: "a", Role: "speaker", Tier: "PRO"})

	for _, u := range []string{"a", "b"} {
		expectStatus(t, s.do(http.MethodPost, "/events/"+e.ID+"/register", s.token(u, ""), nil), http.StatusCreated)
	}

	resp := s.do(http.MethodGet, "/admin/events/"+e.ID+"/analytics", s.token("a", "member"), nil)
	expectStatus(t, resp, http.StatusForbidden)

	resp = s.do(http.MethodGet, "/admin/events/"+e.ID+"/analytics", admin, nil)
	expectStatus(t, resp, http.StatusOK)
	snap := decode[model.EventAnalytics](t, resp)
	if snap.Summary.TotalRegistrations != 2 || snap.Summary.CapacityUtilization == nil || *snap.Summary.CapacityUtilization != 50 {
		t.Fatalf("summary = %+v", snap.Summary)
	}
	if snap.ByRole["speaker"] != 1 || snap.ByTier["FREE"] != 1 {
		t.Errorf("breakdowns = %v / %v", snap.ByRole, snap.ByTier)
	}

	resp = s.do(http.MethodGet, "/admin/events/missing/analytics", admin, nil)
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestExportEndpoint(t *testing.T) {
	s := newTestServer(t, true)
	e := s.createEvent(nil, false)
	admin := s.token("root", "admin")
	s.store.PutUser(model.User{ID: "a", Name: "Ada, Countess", Email: "ada@example.com"})
	expectStatus(t, s.do(http.MethodPost, "/events/"+e.ID+"/register", s.token("a", ""), nil), http.StatusCreated)

	resp := s.do(http.MethodGet, "/admin/events/"+e.ID+"/export", admin, nil)
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	wantName := "event-" + e.ID + "-attendance.csv"
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "attachment") || !strings.Contains(cd, wantName) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	records, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 || records[1][0] != "Ada, Countess" || records[1][5] != "confirmed" {
		t.Fatalf("records = %v", records)
	}

	resp = s.do(http.MethodGet, "/admin/events/"+e.ID+"/export?format=xlsx", admin, nil)
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != export.FormatXLSX.ContentType() {
		t.Errorf("Content-Type = %q", ct)
	}

	resp = s.do(http.MethodGet, "/admin/events/"+e.ID+"/export?format=pdf", admin, nil)
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestExportUnavailable(t *testing.T) {
	s := newTestServer(t, false)
	e := s.createEvent(nil, false)

	resp := s.do(http.MethodGet, "/admin/events/"+e.ID+"/export?format=xlsx", s.token("root", "admin"), nil)
	expectStatus(t, resp, http.StatusServiceUnavailable)
	if msg := decode[model.ErrorResponse](t, resp).Error; !strings.Contains(msg, "EXPORT_XLSX") {
		t.Errorf("error = %q, want operator guidance", msg)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"https://app.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight reached handler")
	}))
	req := httptest.NewRequest(http.MethodOptions, "/events", nil).WithContext(context.Background())
	req.Header.Set("Origin", "https://app.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("Code = %d, want 204", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/events", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q for disallowed origin", got)
	}
}
