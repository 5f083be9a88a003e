package httpmiddleware

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Instrument wraps the handler with otelhttp tracing and records a request
// counter and duration histogram on the given meter provider.
func Instrument(serviceName string, tp trace.TracerProvider, mp metric.MeterProvider) Middleware {
	meter := mp.Meter("promo-engine/httpmiddleware")

	requests, _ := meter.Int64Counter("http.server.requests",
		metric.WithDescription("Handled HTTP requests"),
	)
	duration, _ := meter.Float64Histogram("http.server.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"),
	)

	return func(next http.Handler) http.Handler {
		instrumented := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			attrs := metric.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", r.URL.Path),
				attribute.Int("http.status_code", rec.status),
			)
			requests.Add(r.Context(), 1, attrs)
			duration.Record(r.Context(), float64(time.Since(start))/float64(time.Millisecond), attrs)
		})

		return otelhttp.NewHandler(instrumented, serviceName,
			otelhttp.WithTracerProvider(tp),
			otelhttp.WithMeterProvider(mp),
		)
	}
}
