package triageapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/apex/internal/assistant"
	"github.com/linnemanlabs/apex/internal/authmw"
	"github.com/linnemanlabs/apex/internal/triage"
)

// recordingTriage runs the real engine and records the inputs it saw.
type recordingTriage struct {
	mu     sync.Mutex
	inputs []triage.Input
	engine *triage.Engine
	panics bool
}

func newRecordingTriage() *recordingTriage {
	return &recordingTriage{engine: triage.NewEngine(triage.EngineConfig{}, log.Nop(), triage.EngineHooks{})}
}

func (s *recordingTriage) Assess(ctx context.Context, in triage.Input) *triage.Report {
	if s.panics {
		panic("boom")
	}
	s.mu.Lock()
	s.inputs = append(s.inputs, in)
	s.mu.Unlock()
	return s.engine.Assess(ctx, in)
}

func (s *recordingTriage) last() triage.Input {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputs[len(s.inputs)-1]
}

// stubAssistant returns a fixed reply or error.
type stubAssistant struct {
	reply  *assistant.Reply
	err    error
	prompt string
}

func (s *stubAssistant) Reply(_ context.Context, prompt string) (*assistant.Reply, error) {
	s.prompt = prompt
	return s.reply, s.err
}

func newTestRouter(t *testing.T, svc TriageService, asst Assistant, mws ...func(http.Handler) http.Handler) chi.Router {
	t.Helper()
	r := chi.NewRouter()
	New(nil, svc, asst).RegisterRoutes(r, mws...)
	return r
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

//  New / constructor

func TestNew_NilLogger(t *testing.T) {
	t.Parallel()

	api := New(nil, newRecordingTriage(), &stubAssistant{})
	if api.logger == nil {
		t.Fatal("New left logger nil; expected Nop logger")
	}
}

func TestNew_NilDependencies_Panic(t *testing.T) {
	t.Parallel()

	for name, fn := range map[string]func(){
		"triage":    func() { New(nil, nil, &stubAssistant{}) },
		"assistant": func() { New(nil, newRecordingTriage(), nil) },
	} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("nil %s did not panic", name)
				}
			}()
			fn()
		}()
	}
}

// Routing

func TestRegisterRoutes_Methods(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, newRecordingTriage(), &stubAssistant{reply: &assistant.Reply{Reply: "hi"}})

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodPost, "/api/v1/triage", http.StatusOK},
		{http.MethodGet, "/api/v1/triage", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/v1/assistant", http.StatusOK},
		{http.MethodPut, "/api/v1/assistant", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/v1/alerts", http.StatusNotFound},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
		}
	}
}

func TestRegisterRoutes_Middleware(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, newRecordingTriage(), &stubAssistant{reply: &assistant.Reply{}}, authmw.RequireToken("tok"))

	if rec := post(r, "/api/v1/triage", `{}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/triage", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated = %d, want 200", rec.Code)
	}
}

// Triage

func TestHandleTriage_BECMessage(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, newRecordingTriage(), &stubAssistant{})
	rec := post(r, "/api/v1/triage", `{
		"kind": "Phishing Report",
		"subject": "URGENT wire transfer",
		"sender": "ceo@gmail.com",
		"details": "Please process this wire transfer today, CEO request"
	}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var resp struct {
		OK         bool   `json:"ok"`
		ID         string `json:"id"`
		Summary    string `json:"summary"`
		Structured struct {
			Classification  string             `json:"classification"`
			RiskScore       int                `json:"riskScore"`
			Severity        string             `json:"severity"`
			Indicators      []triage.Indicator `json:"indicators"`
			Checks          []string           `json:"checks"`
			Notes           string             `json:"notes"`
			Recommendations struct {
				Critical []string `json:"critical"`
				DoNot    []string `json:"doNot"`
				General  []string `json:"general"`
			} `json:"recommendations"`
		} `json:"structured"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	s := resp.Structured
	if !resp.OK || resp.ID == "" || resp.Summary == "" {
		t.Errorf("envelope = ok:%v id:%q summary empty:%v", resp.OK, resp.ID, resp.Summary == "")
	}
	if s.RiskScore != 90 || s.Severity != "CRITICAL" {
		t.Errorf("score/severity = %d/%s, want 90/CRITICAL", s.RiskScore, s.Severity)
	}
	if !strings.Contains(s.Classification, "Likely BEC/Phishing Attack") {
		t.Errorf("classification = %q", s.Classification)
	}
	if len(s.Indicators) != 3 || len(s.Checks) != 5 {
		t.Errorf("indicators/checks = %d/%d, want 3/5", len(s.Indicators), len(s.Checks))
	}
	if len(s.Recommendations.Critical) != 5 || len(s.Recommendations.DoNot) != 3 || s.Recommendations.General != nil {
		t.Errorf("recommendations = %+v", s.Recommendations)
	}
	if s.Notes != "Please process this wire transfer today, CEO request" {
		t.Errorf("notes = %q", s.Notes)
	}
}

func TestHandleTriage_LenientDecoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want triage.Input
	}{
		{"empty body", ``, triage.Input{}},
		{"malformed json", `{"subject": "hi"`, triage.Input{}},
		{"array", `["subject"]`, triage.Input{}},
		{"null", `null`, triage.Input{}},
		{"non-string fields", `{"subject": 42, "sender": {"a": 1}, "details": ["x"], "kind": true}`, triage.Input{}},
		{"mixed", `{"subject": "invoice", "sender": null, "extra": "ignored"}`, triage.Input{Subject: "invoice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := newRecordingTriage()
			rec := post(newTestRouter(t, svc, &stubAssistant{}), "/api/v1/triage", tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if got := svc.last(); got != tt.want {
				t.Errorf("input = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestHandleTriage_EmptyInput(t *testing.T) {
	t.Parallel()

	rec := post(newTestRouter(t, newRecordingTriage(), &stubAssistant{}), "/api/v1/triage", `{}`)

	var resp struct {
		Structured struct {
			Classification string            `json:"classification"`
			RiskScore      int               `json:"riskScore"`
			Indicators     []json.RawMessage `json:"indicators"`
		} `json:"structured"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Structured.Classification != "N/A" || resp.Structured.RiskScore != 0 {
		t.Errorf("structured = %+v", resp.Structured)
	}
	if !strings.Contains(rec.Body.String(), `"indicators":[]`) {
		t.Errorf("indicators should encode as an empty list: %s", rec.Body.String())
	}
}

func TestHandleTriage_BodyTooLarge(t *testing.T) {
	t.Parallel()

	svc := newRecordingTriage()
	body := `{"details":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	rec := post(newTestRouter(t, svc, &stubAssistant{}), "/api/v1/triage", body)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok":false`) {
		t.Errorf("body = %s", rec.Body.String())
	}
	if len(svc.inputs) != 0 {
		t.Error("oversized request reached the triage service")
	}
}

func TestHandleTriage_Panic(t *testing.T) {
	t.Parallel()

	svc := newRecordingTriage()
	svc.panics = true
	rec := post(newTestRouter(t, svc, &stubAssistant{}), "/api/v1/triage", `{}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.OK || resp.Error == "" {
		t.Errorf("resp = %+v", resp)
	}
}

// Assistant

func TestHandleAssistant(t *testing.T) {
	t.Parallel()

	asst := &stubAssistant{reply: &assistant.Reply{
		Reply:    "Here you go",
		Status:   assistant.RouteProvider,
		Helpful:  true,
		Provider: "openai",
	}}
	rec := post(newTestRouter(t, newRecordingTriage(), asst), "/api/v1/assistant", `{"prompt":"hello"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if asst.prompt != "hello" {
		t.Errorf("prompt = %q", asst.prompt)
	}
	var got assistant.Reply
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != *asst.reply {
		t.Errorf("reply = %+v, want %+v", got, *asst.reply)
	}
}

func TestHandleAssistant_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		asst *stubAssistant
		body string
		want int
	}{
		{"malformed json", &stubAssistant{reply: &assistant.Reply{}}, `{"prompt":`, http.StatusBadRequest},
		{"source failure", &stubAssistant{err: errors.New("db down")}, `{"prompt":"status"}`, http.StatusInternalServerError},
		{"too large", &stubAssistant{reply: &assistant.Reply{}}, `{"prompt":"` + strings.Repeat("a", MaxBodyBytes) + `"}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := post(newTestRouter(t, newRecordingTriage(), tt.asst), "/api/v1/assistant", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			var resp assistantError
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Error == "" || resp.Reply != apologyReply {
				t.Errorf("resp = %+v", resp)
			}
			if strings.Contains(rec.Body.String(), "db down") {
				t.Error("internal error detail leaked to client")
			}
		})
	}
}

func TestHandleAssistant_NonStringPrompt(t *testing.T) {
	t.Parallel()

	asst := &stubAssistant{reply: &assistant.Reply{Reply: "help"}, prompt: "unset"}
	rec := post(newTestRouter(t, newRecordingTriage(), asst), "/api/v1/assistant", `{"prompt": 7}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if asst.prompt != "" {
		t.Errorf("prompt = %q, want empty", asst.prompt)
	}
}

// Fuzz

func FuzzTriage(f *testing.F) {
	r := chi.NewRouter()
	New(nil, newRecordingTriage(), &stubAssistant{}).RegisterRoutes(r)

	seeds := []string{
		"",
		"{}",
		`{"subject":"URGENT wire transfer","sender":"ceo@gmail.com","details":"today"}`,
		`{"subject":1,"sender":[],"details":{}}`,
		"{invalid json",
		"\x00\x01\x02\xff\xfe",
		`"just a string"`,
		strings.Repeat("a", 10000),
	}
	for _, s := range seeds {
		f.Add([]byte(s))
	}

	f.Fuzz(func(t *testing.T, body []byte) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/triage", strings.NewReader(string(body)))
		rec := httptest.NewRecorder()

		// Must not panic
		r.ServeHTTP(rec, req)

		if len(body) <= MaxBodyBytes && rec.Code != http.StatusOK {
			t.Fatalf("body len=%d: status = %d, want 200", len(body), rec.Code)
		}
		var resp struct {
			OK bool `json:"ok"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("response is not JSON: %v", err)
		}
	})
}
