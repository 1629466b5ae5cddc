package observability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	p := NoopPipelineHooks{}
	p.OnPairStart(ctx, "cat_stylized_starry", 5)
	p.OnLevelComplete(ctx, "cat_stylized_starry", "relu5_1", time.Millisecond, nil)
	p.OnPairComplete(ctx, "cat_stylized_starry", time.Second, errors.New("boom"))

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "result")
	c.OnCacheMiss(ctx, "result")
	c.OnCacheSet(ctx, "result", 1024)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "POST", "/v1/stylize")
	h.OnResponse(ctx, "POST", "/v1/stylize", 200, time.Second)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()
	defer Reset()

	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Pipeline() should return NoopPipelineHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	customPipeline := &testPipelineHooks{}
	SetPipelineHooks(customPipeline)
	if Pipeline() != customPipeline {
		t.Error("SetPipelineHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks should set custom hooks")
	}

	Reset()
	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Reset() should restore NoopPipelineHooks")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("Reset() should restore NoopHTTPHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	defer Reset()

	custom := &testPipelineHooks{}
	SetPipelineHooks(custom)
	SetPipelineHooks(nil)
	if Pipeline() != custom {
		t.Error("SetPipelineHooks(nil) should be ignored")
	}
}

func TestHooksReceiveEvents(t *testing.T) {
	Reset()
	defer Reset()

	h := &testPipelineHooks{}
	SetPipelineHooks(h)

	ctx := context.Background()
	Pipeline().OnPairStart(ctx, "a", 2)
	Pipeline().OnLevelComplete(ctx, "a", "relu2_1", time.Millisecond, nil)
	Pipeline().OnLevelComplete(ctx, "a", "relu1_1", time.Millisecond, nil)
	Pipeline().OnPairComplete(ctx, "a", time.Millisecond, nil)

	if h.starts != 1 || h.levels != 2 || h.completes != 1 {
		t.Errorf("events = %d/%d/%d, want 1/2/1", h.starts, h.levels, h.completes)
	}
}

type testPipelineHooks struct {
	mu                        sync.Mutex
	starts, levels, completes int
}

func (h *testPipelineHooks) OnPairStart(context.Context, string, int) {
	h.mu.Lock()
	h.starts++
	h.mu.Unlock()
}

func (h *testPipelineHooks) OnLevelComplete(context.Context, string, string, time.Duration, error) {
	h.mu.Lock()
	h.levels++
	h.mu.Unlock()
}

func (h *testPipelineHooks) OnPairComplete(context.Context, string, time.Duration, error) {
	h.mu.Lock()
	h.completes++
	h.mu.Unlock()
}

type testCacheHooks struct{}

func (testCacheHooks) OnCacheHit(context.Context, string)      {}
func (testCacheHooks) OnCacheMiss(context.Context, string)     {}
func (testCacheHooks) OnCacheSet(context.Context, string, int) {}

type testHTTPHooks struct{}

func (testHTTPHooks) OnRequest(context.Context, string, string)                      {}
func (testHTTPHooks) OnResponse(context.Context, string, string, int, time.Duration) {}
