package observe_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonwraymond/offlinecache/observe"
)

func ExampleNewObserver() {
	cfg := observe.Config{
		ServiceName: "offlinecache",
		Version:     "version_01",
		Tracing:     observe.TracingConfig{Enabled: true, Exporter: "none", SamplePct: 1},
		Metrics:     observe.MetricsConfig{Enabled: false},
		Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
	}

	ctx := context.Background()
	obs, err := observe.NewObserver(ctx, cfg)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	defer func() {
		_ = obs.Shutdown(ctx)
	}()

	fmt.Println("Observer created successfully")
	// Output:
	// Observer created successfully
}

func ExampleNewObserver_validation() {
	_, err := observe.NewObserver(context.Background(), observe.Config{})
	if errors.Is(err, observe.ErrMissingServiceName) {
		fmt.Println("Caught: missing service name")
	}
	// Output:
	// Caught: missing service name
}

func ExampleLogger_With() {
	var buf bytes.Buffer
	logger := observe.NewLoggerWithWriter("info", &buf).
		With(observe.Field{Key: "cache", Value: "FoodFest-version_01"})

	logger.Info(context.Background(), "installing cache")

	fmt.Println(strings.Contains(buf.String(), `"cache":"FoodFest-version_01"`))
	// Output:
	// true
}

func ExampleMiddleware_Run() {
	mw := observe.NoopMiddleware()
	meta := observe.EventMeta{Event: observe.EventActivate, Cache: "FoodFest-version_01"}

	err := mw.Run(context.Background(), meta, func(ctx context.Context) error {
		fmt.Println("running", meta.SpanName())
		return nil
	})
	fmt.Println("error:", err)
	// Output:
	// running offline.activate
	// error: <nil>
}
