package traces

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptrace"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// NewRoundTripper wraps the provided http.RoundTripper with OpenTelemetry instrumentation. Spans
// are named "<operation> <method>".
func NewRoundTripper(original http.RoundTripper, operation string) http.RoundTripper {
	if original == nil {
		original = http.DefaultTransport
	}
	return otelhttp.NewTransport(original,
		otelhttp.WithClientTrace(httpTrace),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return fmt.Sprintf("%s %s", operation, r.Method)
		}),
	)
}

func httpTrace(ctx context.Context) *httptrace.ClientTrace {
	span := trace.SpanFromContext(ctx)
	return &httptrace.ClientTrace{
		GetConn: func(hostPort string) {
			span.SetAttributes(attribute.String("host_port", hostPort))
		},
		DNSDone: func(di httptrace.DNSDoneInfo) {
			RecordError(ctx, di.Err)
			span.SetAttributes(attribute.Int("dns_addrs", len(di.Addrs)))
		},
		ConnectDone: func(network, addr string, err error) {
			RecordError(ctx, err)
			span.SetAttributes(attribute.String("network", network), attribute.String("remote_addr", addr))
		},
		GotFirstResponseByte: func() {
			span.AddEvent("first_response_byte")
		},
	}
}
