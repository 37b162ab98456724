package rpc

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/anvil-platform/depot/internal/download"
	"github.com/anvil-platform/depot/internal/repository"
	"github.com/anvil-platform/depot/internal/resolver"
)

// publish writes a descriptor and a binary for g:a:v into a directory laid out
// like a remote repository.
func publish(t *testing.T, root, g, a, v, deps string) {
	t.Helper()
	dir := filepath.Join(root, g, a, v)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	pom := fmt.Sprintf("<project><groupId>%s</groupId><artifactId>%s</artifactId><version>%s</version><dependencies>%s</dependencies></project>", g, a, v, deps)
	if err := os.WriteFile(filepath.Join(dir, a+"-"+v+".pom"), []byte(pom), 0o644); err != nil {
		t.Fatalf("write pom: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, a+"-"+v+".jar"), []byte("PK\x03\x04"), 0o644); err != nil {
		t.Fatalf("write jar: %v", err)
	}
}

func dep(g, a, v string) string {
	return fmt.Sprintf("<dependency><groupId>%s</groupId><artifactId>%s</artifactId><version>%s</version></dependency>", g, a, v)
}

func startServer(t *testing.T) (*Client, healthpb.HealthClient, string) {
	t.Helper()
	remote := t.TempDir()
	publish(t, remote, "app", "core", "1", dep("lib", "util", "2")+dep("noise", "logger", "1"))
	publish(t, remote, "lib", "util", "2", "")
	publish(t, remote, "noise", "logger", "1", "")

	cache := t.TempDir()
	reg := repository.NewRegistry(cache, repository.Repository{ID: "local-remote", URL: "file://" + filepath.ToSlash(remote)})
	fetcher := download.New(reg, download.Options{})

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterResolverServer(s, NewServer(fetcher, resolver.Options{}, logr.Discard()))
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn), healthpb.NewHealthClient(conn), cache
}

func TestResolve_OverGRPC(t *testing.T) {
	client, _, cache := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := client.Resolve(ctx, Request{Coordinates: []string{"app:core:1"}, ExcludeGroups: []string{"noise"}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []Artifact{
		{Coordinate: "app:core:1", Path: filepath.Join(cache, "app", "core", "1", "core-1.jar")},
		{Coordinate: "lib:util:2", Path: filepath.Join(cache, "lib", "util", "2", "util-2.jar")},
	}
	if diff := cmp.Diff(want, resp.Artifacts); diff != "" {
		t.Fatalf("artifacts mismatch (-want +got):\n%s", diff)
	}
	if len(resp.Errors) != 0 {
		t.Fatalf("errors = %v", resp.Errors)
	}
}

func TestResolve_ReportsPerDependencyErrors(t *testing.T) {
	client, _, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := client.Resolve(ctx, Request{Coordinates: []string{"app:core:1", "missing:thing:9"}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(resp.Artifacts) != 3 {
		t.Fatalf("artifacts = %+v", resp.Artifacts)
	}
	if len(resp.Errors) != 1 {
		t.Fatalf("errors = %v", resp.Errors)
	}
}

func TestResolve_RejectsMalformedCoordinates(t *testing.T) {
	client, _, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, req := range []Request{
		{},
		{Coordinates: []string{"just-one-field"}},
		{Coordinates: []string{"a:b:1"}, MaxDepth: -1},
	} {
		_, err := client.Resolve(ctx, req)
		if status.Code(err) != codes.InvalidArgument {
			t.Fatalf("Resolve(%+v) err = %v, want InvalidArgument", req, err)
		}
	}
}

func TestHealth(t *testing.T) {
	_, hc, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := hc.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status = %v", resp.GetStatus())
	}
}

func TestMessages_DecodeToleratesMissingFields(t *testing.T) {
	req := RequestFromStruct(nil)
	if len(req.Coordinates) != 0 || req.MaxDepth != 0 {
		t.Fatalf("req = %+v", req)
	}
	resp := ResponseFromStruct(nil)
	if len(resp.Artifacts) != 0 || len(resp.Errors) != 0 {
		t.Fatalf("resp = %+v", resp)
	}
}
