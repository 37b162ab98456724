package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/anvil-platform/depot/internal/config"
	"github.com/anvil-platform/depot/internal/download"
	"github.com/anvil-platform/depot/internal/rpc"
)

func main() {
	var listenAddr string
	var metricsAddr string
	var configPath string
	flag.StringVar(&listenAddr, "listen", ":50051", "address to listen on")
	flag.StringVar(&metricsAddr, "metrics-addr", ":8080", "address the metrics endpoint binds to; empty disables it")
	flag.StringVar(&configPath, "config", "", "path to a depot configuration file")
	opts := zap.Options{Development: true}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	log := zap.New(zap.UseFlagOptions(&opts)).WithName("depot-server")

	cfg, err := config.Load(configPath)
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}
	resolution := cfg.ResolverOptions()
	h, err := cfg.RelocationHandler()
	if err != nil {
		panic(fmt.Errorf("relocation: %w", err))
	}
	if h != nil {
		resolution.Relocator = h
	}

	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		panic(fmt.Errorf("listen %s: %w", listenAddr, err))
	}

	grpcServer := grpc.NewServer()
	rpc.RegisterResolverServer(grpcServer, rpc.NewServer(download.New(cfg.Registry(), cfg.DownloadOptions()), resolution, log))
	hs := health.NewServer()
	hs.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, hs)

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(ctrlmetrics.Registry, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(err, "metrics endpoint stopped")
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		hs.Shutdown()
		grpcServer.GracefulStop()
	}()

	log.Info("serving", "listen", listenAddr, "cache", cfg.CacheDir, "repositories", len(cfg.Repositories))
	if err := grpcServer.Serve(lis); err != nil {
		panic(fmt.Errorf("grpc serve: %w", err))
	}
}
