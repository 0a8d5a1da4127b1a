// Package observability exports docluster metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	pc := observability.NewPrometheusCollector(observability.WithRegisterer(reg))
//	eng, _ := docluster.New(docluster.WithMetricsCollector(pc))
//	http.Handle("/metrics", observability.Handler(reg))
package observability
