package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/omeyang/xreplset/pkg/observability/xmetrics"
)

// operationTotal 客户端操作计数器的指标名。
const operationTotal = "xreplset.operation.total"

// metricsRecorder 在进程内收集本次命令产生的指标，命令结束后输出汇总。
type metricsRecorder struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
	observer xmetrics.Observer
}

func newMetricsRecorder() (*metricsRecorder, error) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	obs, err := xmetrics.NewOTelObserver(xmetrics.WithMeterProvider(provider))
	if err != nil {
		return nil, errors.Join(err, provider.Shutdown(context.Background()))
	}
	return &metricsRecorder{reader: reader, provider: provider, observer: obs}, nil
}

// Observer 返回 nil 接收者安全的观察者。
func (r *metricsRecorder) Observer() xmetrics.Observer {
	if r == nil {
		return nil
	}
	return r.observer
}

// Report 按 component.operation 与状态输出操作计数，并关闭 MeterProvider。
func (r *metricsRecorder) Report(ctx context.Context, w io.Writer) error {
	if r == nil {
		return nil
	}
	var rm metricdata.ResourceMetrics
	err := r.reader.Collect(ctx, &rm)
	if err == nil {
		err = writeOperationCounts(w, rm)
	}
	return errors.Join(err, r.provider.Shutdown(context.WithoutCancel(ctx)))
}

func writeOperationCounts(w io.Writer, rm metricdata.ResourceMetrics) error {
	counts := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != operationTotal {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				counts[pointKey(dp.Attributes)] += dp.Value
			}
		}
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "metric %s %d\n", k, counts[k]); err != nil {
			return err
		}
	}
	return nil
}

// pointKey 形如 "xtopo.refresh status=ok"。
func pointKey(set attribute.Set) string {
	component, _ := set.Value("component")
	operation, _ := set.Value("operation")
	status, _ := set.Value("status")
	return fmt.Sprintf("%s.%s status=%s", component.AsString(), operation.AsString(), status.AsString())
}
