// Command depot resolves package coordinates into local artifact paths.
//
//	depot [flags] group:artifact[:version[:classifier]]...
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-logr/logr"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/anvil-platform/depot/internal/config"
	"github.com/anvil-platform/depot/internal/coords"
	"github.com/anvil-platform/depot/internal/loader"
	"github.com/anvil-platform/depot/internal/resolver"
)

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("depot", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath      string
		cacheDir        string
		repos           stringList
		excludeGroups   stringList
		excludePatterns stringList
		maxDepth        int
		includeOptional bool
		concurrency     int
		classpath       bool
		tree            bool
		dedupe          bool
	)
	fs.StringVar(&configPath, "config", "", "path to a depot configuration file")
	fs.StringVar(&cacheDir, "cache", "", "local artifact cache directory")
	fs.Var(&repos, "repo", "repository URL, repeatable; replaces configured repositories")
	fs.Var(&excludeGroups, "exclude-group", "group id never resolved, repeatable")
	fs.Var(&excludePatterns, "exclude", "artifact wildcard pattern never resolved, repeatable")
	fs.IntVar(&maxDepth, "max-depth", -1, "transitive hops to follow; 0 is unlimited, -1 keeps the configured value")
	fs.BoolVar(&includeOptional, "include-optional", false, "follow optional dependencies")
	fs.IntVar(&concurrency, "concurrency", 0, "parallel downloads; 0 keeps the configured value")
	fs.BoolVar(&classpath, "classpath", false, "print a single search path string")
	fs.BoolVar(&tree, "tree", false, "print the dependency tree")
	fs.BoolVar(&dedupe, "dedupe", false, "keep only the highest version of each artifact")

	opts := zap.Options{Development: true}
	opts.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: depot [flags] group:artifact[:version[:classifier]]...")
		return 2
	}

	log := zap.New(zap.UseFlagOptions(&opts), zap.WriteTo(stderr))
	ctx = logr.NewContext(ctx, log)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 2
	}
	if cacheDir != "" {
		cfg.CacheDir = cacheDir
	}
	if len(repos) > 0 {
		cfg.Repositories = nil
		for _, u := range repos {
			cfg.Repositories = append(cfg.Repositories, config.RepositoryConfig{URL: u})
		}
	}
	cfg.Resolution.ExcludeGroups = append(cfg.Resolution.ExcludeGroups, excludeGroups...)
	cfg.Resolution.ExcludeArtifacts = append(cfg.Resolution.ExcludeArtifacts, excludePatterns...)
	if maxDepth >= 0 {
		cfg.Resolution.MaxDepth = maxDepth
	}
	if includeOptional {
		cfg.Resolution.IncludeOptional = true
	}
	if concurrency > 0 {
		cfg.Resolution.DownloadConcurrency = concurrency
	}

	roots := make([]coords.Dependency, 0, fs.NArg())
	for _, raw := range fs.Args() {
		c, err := coords.Parse(raw)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
		roots = append(roots, coords.NewDependency(c))
	}

	engine, err := cfg.NewEngine()
	if err != nil {
		fmt.Fprintf(stderr, "configure resolver: %v\n", err)
		return 2
	}
	res, err := engine.Resolve(ctx, roots)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	items := res.Resolved
	if dedupe {
		c := resolver.NewCollector()
		c.Add(items...)
		items = c.Items()
	}

	switch {
	case tree:
		if err := res.Graph.Render(stdout); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	case classpath:
		cp := loader.NewClasspath()
		paths := make([]string, 0, len(items))
		for _, rd := range items {
			paths = append(paths, rd.Path)
		}
		if err := loader.Load(cp, paths); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		fmt.Fprintln(stdout, cp.String())
	default:
		for _, rd := range items {
			fmt.Fprintf(stdout, "%s\t%s\n", rd.Dependency, rd.Path)
		}
	}

	for _, msg := range res.ErrorMessages() {
		fmt.Fprintf(stderr, "error: %s\n", msg)
	}
	for _, c := range res.Cycles {
		fmt.Fprintf(stderr, "cycle: %s\n", c)
	}
	if !res.OK() {
		return 1
	}
	return 0
}
