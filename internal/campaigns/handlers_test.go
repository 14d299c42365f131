package campaigns

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"voice-campaigns/internal/auth"
	"voice-campaigns/internal/httpkit"
)

func newRouter(h *Handler, id auth.Identity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/v1", func(c *gin.Context) {
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		c.Next()
	})
	h.Register(g)
	return r
}

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_PatchBogusStatusListsValidValues(t *testing.T) {
	f := newFixture(t)
	c := f.schedule(t, "+16502530000")
	r := newRouter(NewHandler(f.svc), auth.Identity{UserID: "u1", OrganizationID: "org1", Role: "owner"})

	w := serve(r, http.MethodPatch, "/v1/campaigns/"+c.ID+"/status", `{"status":"bogus","organizationId":"org1"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	var body httpkit.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, s := range []string{"draft", "scheduled", "running", "paused", "completed", "cancelled"} {
		if !strings.Contains(body.Error, s) {
			t.Fatalf("error %q does not list %s", body.Error, s)
		}
	}

	w = serve(r, http.MethodPatch, "/v1/campaigns/"+c.ID+"/status", `{"status":"running","organizationId":"org1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandler_GetProgress(t *testing.T) {
	f := newFixture(t)
	c := f.schedule(t, "+16502530000", "+16502530001")
	r := newRouter(NewHandler(f.svc), auth.Identity{UserID: "u1", OrganizationID: "org1", Role: "analyst"})

	w := serve(r, http.MethodGet, "/v1/campaigns/progress?campaignId="+c.ID+"&organizationId=org1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var p struct {
		Campaign       Campaign   `json:"campaign"`
		Metrics        Metrics    `json:"metrics"`
		Status         Actions    `json:"status"`
		RecentActivity []Activity `json:"recentActivity"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Metrics.TotalCalls != 2 || p.Metrics.PendingCalls != 2 || !p.Status.CanStart || len(p.RecentActivity) != 2 {
		t.Fatalf("unexpected progress %+v", p)
	}

	w = serve(r, http.MethodGet, "/v1/campaigns/progress?campaignId=missing&organizationId=org1", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestHandler_OtherOrganizationIsForbidden(t *testing.T) {
	f := newFixture(t)
	c := f.schedule(t, "+16502530000")
	r := newRouter(NewHandler(f.svc), auth.Identity{UserID: "u2", OrganizationID: "org2", Role: "owner"})

	w := serve(r, http.MethodGet, "/v1/campaigns/progress?campaignId="+c.ID+"&organizationId=org1", "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	w = serve(r, http.MethodPatch, "/v1/campaigns/"+c.ID+"/status", `{"status":"running","organizationId":"org1"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}

	// Defaulting to the caller's own organization does not reveal org1's campaign.
	w = serve(r, http.MethodGet, "/v1/campaigns/progress?campaignId="+c.ID, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestHandler_Schedule(t *testing.T) {
	f := newFixture(t)
	r := newRouter(NewHandler(f.svc), auth.Identity{UserID: "u1", OrganizationID: "org1", Role: "manager"})

	w := serve(r, http.MethodPost, "/v1/campaigns", `{"name":"Q2","agentId":"asst-1","targets":[{"phone":"+16502530000"}]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = serve(r, http.MethodPost, "/v1/campaigns", `{"name":"Q2","agentId":"asst-1","targets":[]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty targets, got %d", w.Code)
	}

	analyst := newRouter(NewHandler(f.svc), auth.Identity{UserID: "u3", OrganizationID: "org1", Role: "analyst"})
	w = serve(analyst, http.MethodPost, "/v1/campaigns", `{"name":"Q2","agentId":"asst-1","targets":[{"phone":"+16502530000"}]}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for analyst, got %d", w.Code)
	}
}
