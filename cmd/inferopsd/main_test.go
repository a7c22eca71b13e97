package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonwraymond/inferops/config"
	"github.com/jonwraymond/inferops/frame"
	"github.com/jonwraymond/inferops/health"
	"github.com/jonwraymond/inferops/observe"
)

func TestSyntheticScene(t *testing.T) {
	size := frame.Resolution{Width: 64, Height: 48}
	a := syntheticScene(size, 0)
	b := syntheticScene(size, 1)

	if frame.Of(a) != size {
		t.Errorf("scene size = %v, want %v", frame.Of(a), size)
	}
	ka, _ := frame.Fingerprint(a)
	kb, _ := frame.Fingerprint(b)
	again, _ := frame.Fingerprint(syntheticScene(size, 0))
	if ka != again {
		t.Error("same scene index produced different frames")
	}
	if ka == kb {
		t.Error("consecutive scenes produced identical frames")
	}
}

func TestNewServer_Routes(t *testing.T) {
	agg := health.NewAggregator()
	agg.Register("static", health.NewCheckerFunc("static", func(context.Context) health.Result {
		return health.Healthy("ok")
	}))
	srv := newServer(":0", agg)

	for _, path := range []string{"/healthz", "/readyz", "/health", "/metrics"} {
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestRun_StopsOnContext(t *testing.T) {
	cfg := config.Default()
	cfg.HTTP.Addr = ""
	cfg.HTTP.StatsIntervalSeconds = 0.01

	opts := options{
		fps:       200,
		frameSize: frame.Resolution{Width: 64, Height: 48},
		sceneLen:  5,
		latency:   time.Millisecond,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := run(ctx, cfg, opts, observe.NopLogger()); err != nil {
		t.Fatalf("run() = %v", err)
	}
}
