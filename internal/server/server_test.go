package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stylewct/pkg/cache"
	"github.com/matzehuels/stylewct/pkg/errors"
	"github.com/matzehuels/stylewct/pkg/model"
	"github.com/matzehuels/stylewct/pkg/observability"
	"github.com/matzehuels/stylewct/pkg/pipeline"
	"github.com/matzehuels/stylewct/pkg/store"
)

const testTargets = "relu2_1,relu1_1"

func newTestServer(t *testing.T, c cache.Cache) (*Server, *store.MemoryStore) {
	t.Helper()
	m, err := model.NewModel(model.Config{Channels: 8, ImageChannels: 3, Seed: 7})
	if err != nil {
		t.Fatal(err)
	}
	logger := log.New(io.Discard)
	runs := store.NewMemoryStore(10)
	srv := New(Config{
		Runner:   pipeline.NewRunner(m, c, cache.NewScopedKeyer(cache.NewDefaultKeyer(), "api:"), logger),
		Store:    runs,
		Defaults: pipeline.DefaultOptions(),
		Align:    model.Align,
		Logger:   logger,
	})
	return srv, runs
}

func pngBytes(t *testing.T, w, h int, seed uint64, gray bool) []byte {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed+1))
	var img image.Image
	if gray {
		g := image.NewGray(image.Rect(0, 0, w, h))
		for i := range g.Pix {
			g.Pix[i] = uint8(rng.IntN(256))
		}
		img = g
	} else {
		c := image.NewNRGBA(image.Rect(0, 0, w, h))
		for y := range h {
			for x := range w {
				c.Set(x, y, color.NRGBA{uint8(rng.IntN(256)), uint8(rng.IntN(256)), uint8(rng.IntN(256)), 255})
			}
		}
		img = c
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// upload builds a multipart body from field name to (file name, data).
// pngHeader returns a PNG declaring a w×h truecolor image with no pixel data.
func pngHeader(w, h int) []byte {
	var b bytes.Buffer
	b.WriteString("\x89PNG\r\n\x1a\n")
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], uint32(w))
	binary.BigEndian.PutUint32(ihdr[4:], uint32(h))
	ihdr[8], ihdr[9] = 8, 2
	for _, typ := range []string{"IHDR", "IEND"} {
		var data []byte
		if typ == "IHDR" {
			data = ihdr
		}
		binary.Write(&b, binary.BigEndian, uint32(len(data)))
		b.WriteString(typ)
		b.Write(data)
		binary.Write(&b, binary.BigEndian, crc32.ChecksumIEEE(append([]byte(typ), data...)))
	}
	return b.Bytes()
}

func upload(t *testing.T, parts map[string][2]any) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for field, p := range parts {
		fw, err := mw.CreateFormFile(field, p[0].(string))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(p[1].([]byte)); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &body, mw.FormDataContentType()
}

func stylizeRequest(t *testing.T, query string, parts map[string][2]any) *http.Request {
	t.Helper()
	body, ctype := upload(t, parts)
	req := httptest.NewRequest(http.MethodPost, "/v1/stylize?"+query, body)
	req.Header.Set("Content-Type", ctype)
	return req
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, cache.NewNullCache())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
		Build  struct {
			Version string `json:"version"`
		} `json:"build"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Build.Version == "" {
		t.Errorf("body = %+v", body)
	}
}

func TestStylizeCaches(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	srv, runs := newTestServer(t, fc)
	h := srv.Handler()
	parts := map[string][2]any{
		"content": {"cat.png", pngBytes(t, 33, 32, 1, false)},
		"style":   {"starry.png", pngBytes(t, 32, 32, 2, false)},
	}

	var images [][]byte
	for i, want := range []string{"MISS", "HIT"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, stylizeRequest(t, "targets="+testTargets, parts))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, body = %s", i, rec.Code, rec.Body)
		}
		if got := rec.Header().Get(HeaderCache); got != want {
			t.Errorf("request %d: %s = %q, want %q", i, HeaderCache, got, want)
		}
		if got := rec.Header().Get("Content-Type"); got != "image/png" {
			t.Errorf("Content-Type = %q", got)
		}
		img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
		if err != nil {
			t.Fatal(err)
		}
		if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 32 {
			t.Errorf("output bounds = %v, want 32x32", b)
		}
		images = append(images, rec.Body.Bytes())
	}
	if !bytes.Equal(images[0], images[1]) {
		t.Error("cached image differs from the computed one")
	}

	list, _ := runs.List(context.Background(), 0)
	if len(list) != 2 {
		t.Fatalf("recorded %d runs, want 2", len(list))
	}
	if list[0].Pair != "cat-starry" || list[0].Source != "api" || !list[0].CacheHit {
		t.Errorf("newest run = %+v", list[0])
	}
}

func TestStylizeErrors(t *testing.T) {
	content := pngBytes(t, 16, 16, 3, false)
	style := pngBytes(t, 16, 16, 4, false)
	sal := pngBytes(t, 16, 16, 5, true)

	tests := []struct {
		name     string
		query    string
		parts    map[string][2]any
		status   int
		wantCode errors.Code
	}{
		{
			name:     "missing style",
			query:    "targets=" + testTargets,
			parts:    map[string][2]any{"content": {"a.png", content}},
			status:   http.StatusBadRequest,
			wantCode: errors.ErrCodeInvalidInput,
		},
		{
			name:     "not an image",
			query:    "targets=" + testTargets,
			parts:    map[string][2]any{"content": {"a.png", []byte("nope")}, "style": {"b.png", style}},
			status:   http.StatusBadRequest,
			wantCode: errors.ErrCodeInvalidInput,
		},
		{
			name:     "oversized image",
			query:    "targets=" + testTargets,
			parts:    map[string][2]any{"content": {"a.png", pngHeader(20000, 20000)}, "style": {"b.png", style}},
			status:   http.StatusBadRequest,
			wantCode: errors.ErrCodeInvalidInput,
		},
		{
			name:     "unknown method",
			query:    "method=svd",
			parts:    map[string][2]any{"content": {"a.png", content}, "style": {"b.png", style}},
			status:   http.StatusBadRequest,
			wantCode: errors.ErrCodeInvalidConfig,
		},
		{
			name:     "bad gamma",
			query:    "gamma=lots",
			parts:    map[string][2]any{"content": {"a.png", content}, "style": {"b.png", style}},
			status:   http.StatusBadRequest,
			wantCode: errors.ErrCodeInvalidWeight,
		},
		{
			name:  "saliency with schedule",
			query: "schedule=true&targets=" + testTargets,
			parts: map[string][2]any{
				"content": {"a.png", content}, "style": {"b.png", style}, "saliency": {"s.png", sal},
			},
			status:   http.StatusBadRequest,
			wantCode: errors.ErrCodeInvalidConfig,
		},
		{
			name:     "too small for level",
			query:    "targets=relu5_1",
			parts:    map[string][2]any{"content": {"a.png", pngBytes(t, 8, 8, 6, false)}, "style": {"b.png", style}},
			status:   http.StatusBadRequest,
			wantCode: errors.ErrCodeInvalidShape,
		},
	}

	srv, _ := newTestServer(t, cache.NewNullCache())
	h := srv.Handler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, stylizeRequest(t, tt.query, tt.parts))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body)
			}
			var body errorBody
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", body.Code, tt.wantCode)
			}
			if body.RequestID == "" {
				t.Error("missing request id")
			}
		})
	}
}

func TestStylizeWithSaliency(t *testing.T) {
	srv, runs := newTestServer(t, cache.NewNullCache())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, stylizeRequest(t, "targets="+testTargets, map[string][2]any{
		"content":  {"a.png", pngBytes(t, 16, 16, 7, false)},
		"style":    {"b.png", pngBytes(t, 16, 16, 8, false)},
		"saliency": {"a_sal.png", pngBytes(t, 16, 16, 9, true)},
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	list, _ := runs.List(context.Background(), 1)
	if len(list) != 1 || list[0].Mode != "saliency" {
		t.Errorf("runs = %+v", list)
	}
	if list[0].ID != rec.Header().Get(HeaderRunID) {
		t.Errorf("run id %q does not match header %q", list[0].ID, rec.Header().Get(HeaderRunID))
	}
}

func TestStylizeTooLarge(t *testing.T) {
	srv, _ := newTestServer(t, cache.NewNullCache())
	srv.cfg.MaxUploadBytes = 64
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, stylizeRequest(t, "", map[string][2]any{
		"content": {"a.png", pngBytes(t, 16, 16, 1, false)},
		"style":   {"b.png", pngBytes(t, 16, 16, 2, false)},
	}))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestStylizePixelLimit(t *testing.T) {
	srv, _ := newTestServer(t, cache.NewNullCache())
	srv.cfg.Image.MaxPixels = 32 * 32
	h := srv.Handler()

	for _, tt := range []struct {
		name   string
		w, h   int
		status int
	}{
		{"at limit", 32, 32, http.StatusOK},
		{"over limit", 33, 32, http.StatusBadRequest},
	} {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, stylizeRequest(t, "targets="+testTargets, map[string][2]any{
				"content": {"a.png", pngBytes(t, tt.w, tt.h, 8, false)},
				"style":   {"b.png", pngBytes(t, 32, 32, 9, false)},
			}))
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body)
			}
		})
	}
}

func TestRuns(t *testing.T) {
	srv, runs := newTestServer(t, cache.NewNullCache())
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_ = runs.Insert(ctx, store.Record{ID: id, Pair: id})
	}

	tests := []struct {
		query  string
		status int
		want   []string
	}{
		{"", http.StatusOK, []string{"c", "b", "a"}},
		{"?limit=2", http.StatusOK, []string{"c", "b"}},
		{"?limit=-1", http.StatusBadRequest, nil},
		{"?limit=x", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs"+tt.query, nil))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.want == nil {
				return
			}
			var body struct {
				Runs []store.Record `json:"runs"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if len(body.Runs) != len(tt.want) {
				t.Fatalf("got %d runs, want %d", len(body.Runs), len(tt.want))
			}
			for i, id := range tt.want {
				if body.Runs[i].ID != id {
					t.Errorf("run %d = %s, want %s", i, body.Runs[i].ID, id)
				}
			}
		})
	}
}

type recordingHTTPHooks struct {
	mu        sync.Mutex
	requests  []string
	responses []int
}

func (h *recordingHTTPHooks) OnRequest(_ context.Context, method, route string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests = append(h.requests, method+" "+route)
}

func (h *recordingHTTPHooks) OnResponse(_ context.Context, _, _ string, status int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responses = append(h.responses, status)
}

func TestHTTPHooks(t *testing.T) {
	hooks := &recordingHTTPHooks{}
	observability.SetHTTPHooks(hooks)
	defer observability.Reset()

	srv, _ := newTestServer(t, cache.NewNullCache())
	h := srv.Handler()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/runs?limit=x", nil))

	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	wantReq := []string{"GET /healthz", "GET /v1/runs"}
	wantStatus := []int{http.StatusOK, http.StatusBadRequest}
	if len(hooks.requests) != 2 || len(hooks.responses) != 2 {
		t.Fatalf("requests = %v, responses = %v", hooks.requests, hooks.responses)
	}
	for i := range wantReq {
		if hooks.requests[i] != wantReq[i] || hooks.responses[i] != wantStatus[i] {
			t.Errorf("call %d = %s %d, want %s %d", i, hooks.requests[i], hooks.responses[i], wantReq[i], wantStatus[i])
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New(errors.ErrCodeInvalidShape, "x"), http.StatusBadRequest},
		{errors.New(errors.ErrCodeFileNotFound, "x"), http.StatusNotFound},
		{errors.New(errors.ErrCodeTimeout, "x"), http.StatusGatewayTimeout},
		{errors.New(errors.ErrCodeUnsupported, "x"), http.StatusUnprocessableEntity},
		{errors.New(errors.ErrCodeDecoder, "x"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
