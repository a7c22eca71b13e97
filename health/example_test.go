package health_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/jonwraymond/inferops/health"
)

func ExampleNewCheckerFunc() {
	running := true
	checker := health.NewCheckerFunc("pipeline", func(ctx context.Context) health.Result {
		if !running {
			return health.Unhealthy("scheduler not running", nil)
		}
		return health.Healthy("scheduler running")
	})

	result := checker.Check(context.Background())
	fmt.Println(checker.Name(), result.Status, result.Message)
	// Output:
	// pipeline healthy scheduler running
}

func ExampleLevel() {
	for _, fill := range []float64{0.5, 0.92, 1.0} {
		fmt.Println(health.Level(fill, 0.9, 1.0))
	}
	// Output:
	// healthy
	// degraded
	// unhealthy
}

func ExampleAggregator_OverallStatus() {
	agg := health.NewAggregator()
	agg.Register("cache", health.NewCheckerFunc("cache", func(context.Context) health.Result {
		return health.Healthy("ok")
	}))
	agg.Register("pipeline", health.NewCheckerFunc("pipeline", func(context.Context) health.Result {
		return health.Degraded("drop ratio 25.0%")
	}))

	results := agg.CheckAll(context.Background())
	fmt.Println(agg.OverallStatus(results))
	// Output:
	// degraded
}

func ExampleRegisterHandlers() {
	agg := health.NewAggregator()
	agg.Register("pipeline", health.NewCheckerFunc("pipeline", func(context.Context) health.Result {
		return health.Unhealthy("scheduler not running", nil)
	}))

	mux := http.NewServeMux()
	health.RegisterHandlers(mux, agg)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		fmt.Println(path, rec.Code, rec.Body.String())
	}
	// Output:
	// /healthz 200 OK
	// /readyz 503 UNHEALTHY
}
