package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/anvil-platform/depot/internal/rpc"
)

func main() {
	var target string
	var excludes string
	var maxDepth int
	var timeout time.Duration
	flag.StringVar(&target, "target", "127.0.0.1:50051", "gRPC server address")
	flag.StringVar(&excludes, "exclude-groups", "", "comma separated group ids to exclude")
	flag.IntVar(&maxDepth, "max-depth", 0, "transitive hops to follow; 0 keeps the server default")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: depot-client [flags] group:artifact[:version[:classifier]]...")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		panic(fmt.Errorf("dial %s: %w", target, err))
	}
	defer conn.Close()

	req := rpc.Request{Coordinates: flag.Args(), MaxDepth: maxDepth}
	if excludes != "" {
		req.ExcludeGroups = strings.Split(excludes, ",")
	}
	resp, err := rpc.NewClient(conn).Resolve(ctx, req)
	if err != nil {
		fmt.Printf("Resolve error: %v\n", err)
		os.Exit(1)
	}

	for _, a := range resp.Artifacts {
		fmt.Printf("%s\t%s\n", a.Coordinate, a.Path)
	}
	for _, e := range resp.Errors {
		fmt.Printf("error: %s\n", e)
	}
	fmt.Printf("Resolve ok: artifacts=%d errors=%d\n", len(resp.Artifacts), len(resp.Errors))
	if len(resp.Errors) > 0 {
		os.Exit(1)
	}
}
