package worker

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/jonwraymond/offlinecache/cachestore"
	"github.com/jonwraymond/offlinecache/network"
	"github.com/jonwraymond/offlinecache/observe"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func backends(t *testing.T) map[string]cachestore.Storage {
	t.Helper()
	disk, err := cachestore.OpenDisk(t.TempDir())
	if err != nil {
		t.Fatalf("OpenDisk failed: %v", err)
	}
	t.Cleanup(func() { _ = disk.Close() })

	db, err := cachestore.OpenSQLite(filepath.Join(t.TempDir(), "caches.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return map[string]cachestore.Storage{
		"memory": cachestore.NewMemoryStorage(),
		"disk":   disk,
		"sqlite": db,
	}
}

// A full version upgrade: v00 is installed and activated, then v01 replaces
// it while a foreign cache stays put.
func TestLifecycle_VersionUpgrade(t *testing.T) {
	for name, storage := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			origin := scenarioOrigin()
			openAll(t, storage, "OtherApp-cache")

			old := scenarioConfig()
			old.Version = "version_00"
			v0 := mustNew(t, old, storage, origin)
			if err := v0.OnInstall(ctx); err != nil {
				t.Fatalf("v00 install failed: %v", err)
			}
			if err := v0.OnActivate(ctx); err != nil {
				t.Fatalf("v00 activate failed: %v", err)
			}

			v1 := mustNew(t, scenarioConfig(), storage, origin)
			if err := v1.OnInstall(ctx); err != nil {
				t.Fatalf("v01 install failed: %v", err)
			}
			deleted, err := v1.Activate(ctx)
			if err != nil {
				t.Fatalf("v01 activate failed: %v", err)
			}
			if !reflect.DeepEqual(deleted, []string{"FoodFest-version_00"}) {
				t.Errorf("deleted = %v, want [FoodFest-version_00]", deleted)
			}

			names, err := storage.Keys(ctx)
			if err != nil {
				t.Fatalf("Keys failed: %v", err)
			}
			if !reflect.DeepEqual(names, []string{"OtherApp-cache", "FoodFest-version_01"}) {
				t.Errorf("Keys() = %v", names)
			}

			before := origin.callCount()
			if _, result, err := v1.Fetch(ctx, network.Get("./index.html")); err != nil || result != observe.FetchHit {
				t.Errorf("Fetch(index) = (%s, %v), want hit", result, err)
			}
			if origin.callCount() != before {
				t.Error("hit should not reach the network")
			}
		})
	}
}

func TestWorker_RecordsMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := observe.NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	storage := cachestore.NewMemoryStorage()
	openAll(t, storage, "FoodFest-version_00")
	w := mustNew(t, scenarioConfig(), storage, scenarioOrigin(),
		WithMiddleware(observe.NewMiddleware(nil, metrics, nil)))

	if err := w.OnInstall(ctx); err != nil {
		t.Fatal(err)
	}
	if err := w.OnActivate(ctx); err != nil {
		t.Fatal(err)
	}
	_, _ = w.OnFetch(ctx, network.Get("./index.html"))
	_, _ = w.OnFetch(ctx, network.Get("./events.html"))
	_, _ = w.OnFetch(ctx, network.NewRequest("PUT", "./events.html"))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	got := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				key := m.Name
				if v, ok := dp.Attributes.Value("result"); ok {
					key += "/" + v.AsString()
				}
				got[key] += dp.Value
			}
		}
	}
	want := map[string]int64{
		"offline.install.total":           1,
		"offline.activate.deleted":        1,
		"offline.fetch.total/hit":         1,
		"offline.fetch.total/miss":        1,
		"offline.fetch.total/passthrough": 1,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %d, want %d (all: %v)", k, got[k], v, got)
		}
	}
}
