package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/hupe1980/docluster"
	"github.com/hupe1980/docluster/config"
	"github.com/hupe1980/docluster/model"
	"github.com/hupe1980/docluster/observability"
)

type runFlags struct {
	input       string
	output      string
	format      string
	algorithm   string
	fusion      string
	k           int
	batched     bool
	noCache     bool
	timeout     time.Duration
	metricsAddr string
}

func newRunCmd(load func() (*config.Config, error)) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Cluster JSON-lines documents",
		Long: `Reads one JSON document per line ({"id", "text"} or {"id", "title",
"body", "tags"}) and prints the clustering result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runClustering(cmd, cfg, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.input, "input", "i", "-", "input file, - for stdin")
	fl.StringVarP(&f.output, "output", "o", "-", "output file, - for stdout")
	fl.StringVar(&f.format, "format", "json", "output format: json or text")
	fl.StringVarP(&f.algorithm, "algorithm", "a", "", "force an algorithm (kmeans, dbscan, hierarchical, gmm, hybrid)")
	fl.StringVar(&f.fusion, "fusion", "", "force a fusion method (ensemble, cascade, weighted, adaptive)")
	fl.IntVarP(&f.k, "k", "k", 0, "target number of clusters, 0 to estimate")
	fl.BoolVar(&f.batched, "batched", false, "cluster in parallel batches")
	fl.BoolVar(&f.noCache, "no-cache", false, "bypass the result cache")
	fl.DurationVar(&f.timeout, "timeout", 0, "abandon the run after this duration")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	return cmd
}

func runClustering(cmd *cobra.Command, cfg *config.Config, f runFlags) error {
	if f.format != "json" && f.format != "text" {
		return fmt.Errorf("unknown format %q", f.format)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	rt, err := cfg.Build(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(context.Background()) }()

	opts := rt.Options
	if f.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		pc := observability.NewPrometheusCollector(observability.WithRegisterer(reg))
		if err := pc.WatchResources(rt.Controller); err != nil {
			return err
		}
		shutdown, err := serveMetrics(f.metricsAddr, reg)
		if err != nil {
			return err
		}
		defer shutdown()
		opts = append(opts, docluster.WithMetricsCollector(pc))
	}

	eng, err := docluster.New(opts...)
	if err != nil {
		return err
	}

	docs, err := readDocuments(ctx, cmd, f.input)
	if err != nil {
		return err
	}

	runOpts := []docluster.RunOption{docluster.WithTargetK(f.k)}
	if f.algorithm != "" {
		runOpts = append(runOpts, docluster.WithAlgorithmName(f.algorithm))
	}
	if f.fusion != "" {
		runOpts = append(runOpts, docluster.WithFusionMethod(f.fusion))
	}
	if f.noCache {
		runOpts = append(runOpts, docluster.WithoutCache())
	}

	var res *model.Result
	if f.batched {
		res, err = eng.RunBatched(ctx, docs, runOpts...)
	} else {
		res, err = eng.Run(ctx, docs, runOpts...)
	}
	if err != nil {
		return err
	}

	w, closeOut, err := openOutput(cmd, f.output)
	if err != nil {
		return err
	}
	if f.format == "text" {
		err = writeSummary(w, res)
	} else {
		err = writeJSON(w, res)
	}
	return errors.Join(err, closeOut())
}

func readDocuments(ctx context.Context, cmd *cobra.Command, path string) ([]model.Document, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = file.Close() }()
		r = file
	}
	return docluster.NewJSONLinesSource(r).Documents(ctx)
}

func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return file, file.Close, nil
}

func writeJSON(w io.Writer, res *model.Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeSummary(w io.Writer, res *model.Result) error {
	actual := res.Performance.Actual
	executed := make([]string, len(actual.Executed))
	for i, alg := range actual.Executed {
		executed[i] = alg.String()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "strategy:   %s (fallbacks used: %d)\n", res.Strategy.Primary, actual.FallbacksUsed)
	fmt.Fprintf(&b, "executed:   %s\n", strings.Join(executed, ", "))
	fmt.Fprintf(&b, "clusters:   %d (avg size %.1f, uniformity %.2f)\n", actual.ClusterCount, actual.AvgClusterSize, actual.Uniformity)
	fmt.Fprintf(&b, "confidence: %.2f\n", actual.Confidence)
	if actual.Degraded {
		b.WriteString("degraded:   every algorithm failed\n")
	}
	for _, warn := range actual.Warnings {
		fmt.Fprintf(&b, "warning:    %s\n", warn)
	}
	b.WriteString("\n")
	for _, c := range res.Clusters {
		label := fmt.Sprintf("cluster %d", c.ID)
		if c.Noise {
			label = "noise"
		}
		fmt.Fprintf(&b, "[%s] %d documents", label, c.Size())
		if len(c.Keywords) > 0 {
			fmt.Fprintf(&b, " - %s", strings.Join(c.Keywords, ", "))
		}
		fmt.Fprintf(&b, "\n  %s\n", strings.Join(c.Members, " "))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func serveMetrics(addr string, reg *prometheus.Registry) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler(reg))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
