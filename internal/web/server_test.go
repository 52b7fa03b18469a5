package web

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"pdf-editor-go/internal/compressor"
	"pdf-editor-go/internal/config"
	"pdf-editor-go/internal/document/memdoc"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type statusData struct {
	Running    bool       `json:"running"`
	Job        string     `json:"job"`
	LastResult *JobResult `json:"last_result"`
}

func newTestServer(t *testing.T) (*Server, *memdoc.Opener) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	opener := &memdoc.Opener{}
	return NewServerWithOpener(config.DefaultConfig(), log, opener), opener
}

func do(t *testing.T, s *Server, method, path string, body io.Reader) (int, apiResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var resp apiResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("%s %s: decode response: %v", method, path, err)
	}
	return rec.Code, resp
}

func postJSON(t *testing.T, s *Server, path string, v interface{}) (int, apiResponse) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return do(t, s, http.MethodPost, path, bytes.NewReader(data))
}

func photoFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "photo.pdf")
	f := memdoc.New().
		AddImage(1, memdoc.RawRGB(1600, 1200, 7)).
		AddPage(1)
	if err := f.WriteFile(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestStatusIdle(t *testing.T) {
	s, _ := newTestServer(t)
	code, resp := do(t, s, http.MethodGet, "/api/status", nil)
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("status = %d, %+v", code, resp)
	}
	var st statusData
	if err := json.Unmarshal(resp.Data, &st); err != nil {
		t.Fatal(err)
	}
	if st.Running || st.LastResult != nil {
		t.Errorf("idle server reports %+v", st)
	}
}

func TestCompressJob(t *testing.T) {
	s, opener := newTestServer(t)
	dir := t.TempDir()
	src := photoFile(t, dir)
	out := filepath.Join(dir, "out", "photo.pdf")

	code, resp := postJSON(t, s, "/api/compress", CompressRequest{Source: src, Output: out, Preset: "low"})
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("compress = %d, %+v", code, resp)
	}
	s.Wait()

	_, resp = do(t, s, http.MethodGet, "/api/status", nil)
	var st statusData
	if err := json.Unmarshal(resp.Data, &st); err != nil {
		t.Fatal(err)
	}
	if st.Running {
		t.Error("job still running after Wait")
	}
	res := st.LastResult
	if res == nil || res.Error != "" {
		t.Fatalf("last result = %+v", res)
	}
	if res.Mode != string(compressor.ModePreset) || res.Attempts != 1 {
		t.Errorf("mode %s with %d attempts", res.Mode, res.Attempts)
	}
	if res.Size >= res.OriginalSize {
		t.Errorf("size %d not below original %d", res.Size, res.OriginalSize)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output missing: %v", err)
	}
	if opener.Opened() != 1 {
		t.Errorf("opened %d documents, want 1", opener.Opened())
	}

	_, resp = do(t, s, http.MethodGet, "/api/statistics", nil)
	if !strings.Contains(string(resp.Data), "Total Processed: 1") {
		t.Errorf("statistics = %s", resp.Data)
	}
}

func TestCompressTargetMissReported(t *testing.T) {
	s, _ := newTestServer(t)
	dir := t.TempDir()
	src := photoFile(t, dir)
	out := filepath.Join(dir, "tiny.pdf")

	code, _ := postJSON(t, s, "/api/compress", CompressRequest{Source: src, Output: out, TargetMB: "0.000001"})
	if code != http.StatusOK {
		t.Fatalf("compress = %d", code)
	}
	s.Wait()

	_, resp := do(t, s, http.MethodGet, "/api/status", nil)
	var st statusData
	json.Unmarshal(resp.Data, &st)
	if st.LastResult == nil || !st.LastResult.TargetMissed {
		t.Fatalf("last result = %+v", st.LastResult)
	}
	if !strings.Contains(st.LastResult.Summary, "Could not reach target") {
		t.Errorf("summary = %q", st.LastResult.Summary)
	}
}

func TestCompressRejectsBadRequests(t *testing.T) {
	s, _ := newTestServer(t)
	dir := t.TempDir()
	src := photoFile(t, dir)
	text := filepath.Join(dir, "notes.pdf")
	os.WriteFile(text, []byte("just text"), 0644)
	out := filepath.Join(dir, "out.pdf")

	tests := []struct {
		name string
		req  CompressRequest
	}{
		{"missing output", CompressRequest{Source: src}},
		{"missing source file", CompressRequest{Source: filepath.Join(dir, "nope.pdf"), Output: out}},
		{"not a pdf", CompressRequest{Source: text, Output: out}},
		{"bad target", CompressRequest{Source: src, Output: out, TargetMB: "abc"}},
		{"negative target", CompressRequest{Source: src, Output: out, TargetMB: "-2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := postJSON(t, s, "/api/compress", tt.req)
			if code != http.StatusBadRequest || resp.Success {
				t.Errorf("got %d, %+v", code, resp)
			}
		})
	}

	code, _ := do(t, s, http.MethodPost, "/api/compress", strings.NewReader("{"))
	if code != http.StatusBadRequest {
		t.Errorf("malformed body: %d", code)
	}
}

func TestCompressConflict(t *testing.T) {
	s, _ := newTestServer(t)
	dir := t.TempDir()
	src := photoFile(t, dir)

	if _, _, ok := s.beginJob(); !ok {
		t.Fatal("could not begin job")
	}
	code, _ := postJSON(t, s, "/api/compress", CompressRequest{Source: src, Output: filepath.Join(dir, "o.pdf")})
	if code != http.StatusConflict {
		t.Errorf("second job: %d, want 409", code)
	}

	_, resp := do(t, s, http.MethodPost, "/api/stop", nil)
	if resp.Message != "Operation stopped" {
		t.Errorf("stop = %+v", resp)
	}
	s.finishJob(&JobResult{})
	s.Wait()

	_, resp = do(t, s, http.MethodPost, "/api/stop", nil)
	if resp.Message != "No operation running" {
		t.Errorf("stop when idle = %+v", resp)
	}
}

func TestBatchJob(t *testing.T) {
	s, _ := newTestServer(t)
	in := t.TempDir()
	outDir := t.TempDir()
	photoFile(t, in)

	code, resp := postJSON(t, s, "/api/batch", BatchRequest{Inputs: []string{in}, TargetDirectory: outDir, Preset: "medium"})
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("batch = %d, %+v", code, resp)
	}
	s.Wait()

	_, resp = do(t, s, http.MethodGet, "/api/status", nil)
	var st statusData
	json.Unmarshal(resp.Data, &st)
	if st.LastResult == nil || st.LastResult.Error != "" || st.LastResult.Summary != "1 files processed" {
		t.Fatalf("last result = %+v", st.LastResult)
	}
	if _, err := os.Stat(filepath.Join(outDir, "photo.pdf")); err != nil {
		t.Errorf("batch output missing: %v", err)
	}

	code, _ = postJSON(t, s, "/api/batch", BatchRequest{TargetDirectory: outDir})
	if code != http.StatusBadRequest {
		t.Errorf("batch without inputs: %d", code)
	}
}

func TestInfo(t *testing.T) {
	s, _ := newTestServer(t)
	data, err := memdoc.New().
		AddImage(1, memdoc.RawRGB(2000, 1000, 3)).
		AddImage(2, memdoc.RawRGB(50, 50, 4)).
		AddPage(1).
		AddPage(2).
		Bytes()
	if err != nil {
		t.Fatal(err)
	}

	code, resp := do(t, s, http.MethodPost, "/api/info?preset=low", bytes.NewReader(data))
	if code != http.StatusOK {
		t.Fatalf("info = %d, %+v", code, resp)
	}
	var info compressor.DocumentInfo
	if err := json.Unmarshal(resp.Data, &info); err != nil {
		t.Fatal(err)
	}
	if info.Pages != 2 || len(info.Images) != 2 || info.MaxDim != 893 {
		t.Fatalf("info = %+v", info)
	}
	if !info.Images[0].Shrinks || info.Images[1].Shrinks {
		t.Errorf("shrink flags = %v, %v", info.Images[0].Shrinks, info.Images[1].Shrinks)
	}

	code, _ = do(t, s, http.MethodPost, "/api/info", strings.NewReader("hello"))
	if code != http.StatusBadRequest {
		t.Errorf("non-pdf info: %d", code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "pdfeditor_active_jobs") {
		t.Error("active jobs gauge not exported")
	}
}
