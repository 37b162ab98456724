// Package download fetches artifacts, descriptors and metadata documents from an
// ordered list of repositories into the local cache.
package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/singleflight"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/anvil-platform/depot/internal/coords"
	"github.com/anvil-platform/depot/internal/metrics"
	"github.com/anvil-platform/depot/internal/repository"
)

const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultReadTimeout    = 20 * time.Second
	DefaultMetadataTTL    = 24 * time.Hour
	DefaultUserAgent      = "depot/0.1 (+https://github.com/anvil-platform/depot)"
)

// Kind classifies the files the downloader handles.
type Kind string

const (
	KindArtifact   Kind = "artifact"
	KindDescriptor Kind = "descriptor"
	KindMetadata   Kind = "metadata"
)

// Options configure a Downloader. Zero values select the defaults.
type Options struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	UserAgent      string
	// MetadataTTL is how long a cached metadata document is reused. Negative
	// values disable metadata caching.
	MetadataTTL time.Duration
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Downloader writes repository files into the local cache.
//
// Concurrent requests for the same cache path within one Downloader share a
// single transfer. Across processes, files are written to a temporary name and
// renamed into place, so concurrent first downloads of one artifact end with
// the last complete write.
type Downloader struct {
	registry    *repository.Registry
	client      *http.Client
	userAgent   string
	readTimeout time.Duration
	metadataTTL time.Duration
	group       singleflight.Group
	now         func() time.Time
}

// New creates a Downloader over registry.
func New(registry *repository.Registry, opts Options) *Downloader {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MetadataTTL == 0 {
		opts.MetadataTTL = DefaultMetadataTTL
	}
	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: opts.ConnectTimeout}).DialContext,
			TLSHandshakeTimeout:   opts.ConnectTimeout,
			ResponseHeaderTimeout: opts.ReadTimeout,
			MaxIdleConnsPerHost:   4,
		}
	}
	return &Downloader{
		registry:    registry,
		client:      &http.Client{Transport: transport},
		userAgent:   opts.UserAgent,
		readTimeout: opts.ReadTimeout,
		metadataTTL: opts.MetadataTTL,
		now:         time.Now,
	}
}

// Registry returns the repositories the downloader reads from.
func (d *Downloader) Registry() *repository.Registry {
	return d.registry
}

// Artifact returns the local path of dep's binary, downloading it if needed.
func (d *Downloader) Artifact(ctx context.Context, dep coords.Dependency) (string, error) {
	if !dep.HasVersion() {
		return "", fmt.Errorf("download %s: %w", dep, coords.ErrInvalidCoordinate)
	}
	if err := dep.Validate(); err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	return d.fetch(ctx, KindArtifact, repository.ArtifactPath(dep.Coordinate), dep.Repository)
}

// Descriptor returns the local path of dep's descriptor document.
func (d *Downloader) Descriptor(ctx context.Context, dep coords.Dependency) (string, error) {
	if !dep.HasVersion() {
		return "", fmt.Errorf("download descriptor %s: %w", dep, coords.ErrInvalidCoordinate)
	}
	if err := dep.Validate(); err != nil {
		return "", fmt.Errorf("download descriptor: %w", err)
	}
	return d.fetch(ctx, KindDescriptor, repository.DescriptorPath(dep.Coordinate), dep.Repository)
}

// Metadata returns the local path of the metadata document for dep's group-artifact key.
func (d *Downloader) Metadata(ctx context.Context, dep coords.Dependency) (string, error) {
	if err := dep.Validate(); err != nil {
		return "", fmt.Errorf("download metadata: %w", err)
	}
	return d.fetch(ctx, KindMetadata, repository.MetadataPath(dep.Coordinate), dep.Repository)
}

func (d *Downloader) fetch(ctx context.Context, kind Kind, rel, fallback string) (string, error) {
	log := logr.FromContextOrDiscard(ctx).WithValues("kind", kind, "path", rel)
	root := d.registry.CacheDir()
	target := repository.LocalPath(root, rel)
	if !within(root, target) {
		return "", fmt.Errorf("%w: %s resolves outside the cache", coords.ErrInvalidCoordinate, rel)
	}

	if d.cached(kind, target) {
		log.V(1).Info("using cached file")
		metrics.CacheHitsTotal.WithLabelValues(string(kind)).Inc()
		return target, nil
	}

	// The shared transfer outlives any single caller; each caller only stops
	// waiting when its own context ends.
	shared := context.WithoutCancel(ctx)
	ch := d.group.DoChan(target, func() (any, error) {
		// Another caller may have completed the same download while we waited.
		if d.cached(kind, target) {
			return target, nil
		}
		return target, d.fetchRemote(shared, log, kind, rel, target, fallback)
	})
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("download %s: %w", rel, ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			metrics.DownloadsTotal.WithLabelValues(string(kind), "failed").Inc()
			return "", r.Err
		}
		return r.Val.(string), nil
	}
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (d *Downloader) fetchRemote(ctx context.Context, log logr.Logger, kind Kind, rel, target, fallback string) error {
	repos := d.registry.Remotes()
	if fallback = repository.NormalizeURL(fallback); fallback != "" {
		seen := false
		for _, r := range repos {
			if r.URL == fallback {
				seen = true
				break
			}
		}
		if !seen {
			repos = append(repos, repository.Repository{ID: fallback, URL: fallback})
		}
	}
	if len(repos) == 0 {
		return fmt.Errorf("%w: %s: no remote repositories configured", ErrNotFound, rel)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create cache directory for %s: %w", rel, err)
	}

	var causes []error
	for _, repo := range repos {
		if repo.Local {
			continue
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("download %s: %w", rel, err)
		}
		url := repository.URL(repo.URL, rel)
		n, err := d.fetchOne(ctx, kind, url, target)
		if err != nil {
			log.V(1).Info("repository attempt failed", "repository", repo.ID, "error", err.Error())
			causes = append(causes, fmt.Errorf("%s: %w", repo.ID, err))
			continue
		}
		log.V(1).Info("downloaded", "repository", repo.ID, "bytes", n)
		metrics.DownloadsTotal.WithLabelValues(string(kind), "ok").Inc()
		metrics.DownloadedBytesTotal.Add(float64(n))
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrNotFound, rel, utilerrors.NewAggregate(causes))
}

// fetchOne downloads url into target through a temporary file. The target is
// only replaced when the content passes validation.
func (d *Downloader) fetchOne(ctx context.Context, kind Kind, url, target string) (int64, error) {
	body, closeBody, err := d.open(ctx, url)
	if err != nil {
		return 0, err
	}
	defer closeBody()

	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	keep := false
	defer func() {
		if !keep {
			_ = os.Remove(tmpName)
		}
	}()

	n, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", url, err)
	}
	if err := validate(kind, tmpName); err != nil {
		return 0, fmt.Errorf("%s: %w", url, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return 0, fmt.Errorf("move into cache: %w", err)
	}
	keep = true
	return n, nil
}

// open returns a reader over url. Remote reads are bounded by the read timeout
// between successive chunks.
func (d *Downloader) open(ctx context.Context, url string) (io.Reader, func(), error) {
	if path, ok := strings.CutPrefix(url, "file://"); ok {
		f, err := os.Open(filepath.FromSlash(path))
		if err != nil {
			return nil, nil, err
		}
		return f, func() { _ = f.Close() }, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	req.Header.Set("User-Agent", d.userAgent)
	resp, err := d.client.Do(req)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		cancel()
		return nil, nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	timer := time.AfterFunc(d.readTimeout, cancel)
	r := &idleTimeoutReader{r: resp.Body, timer: timer, timeout: d.readTimeout}
	return r, func() {
		timer.Stop()
		_ = resp.Body.Close()
		cancel()
	}, nil
}

type idleTimeoutReader struct {
	r       io.Reader
	timer   *time.Timer
	timeout time.Duration
}

func (r *idleTimeoutReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.timer.Reset(r.timeout)
	return n, err
}

func (d *Downloader) cached(kind Kind, path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return false
	}
	if kind == KindMetadata {
		if d.metadataTTL < 0 {
			return false
		}
		return d.now().Sub(info.ModTime()) < d.metadataTTL
	}
	return true
}

var zipMagic = [][]byte{[]byte("PK\x03\x04"), []byte("PK\x05\x06")}

func validate(kind Kind, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty file", ErrInvalidContent)
	}
	switch kind {
	case KindArtifact:
		for _, magic := range zipMagic {
			if bytes.HasPrefix(data, magic) {
				return nil
			}
		}
		return fmt.Errorf("%w: not an archive", ErrInvalidContent)
	case KindDescriptor:
		return validateMarkup(data, "<project")
	case KindMetadata:
		return validateMarkup(data, "<metadata")
	}
	return nil
}

func validateMarkup(data []byte, root string) error {
	head := firstElement(data)
	lower := bytes.ToLower(head[:min(len(head), len("<!doctype html"))])
	if bytes.HasPrefix(lower, []byte("<html")) || bytes.HasPrefix(lower, []byte("<!doctype html")) {
		return fmt.Errorf("%w: received an HTML page", ErrInvalidContent)
	}
	if !bytes.HasPrefix(head, []byte(root)) || len(head) == len(root) || !isNameEnd(head[len(root)]) {
		return fmt.Errorf("%w: missing %s> root element", ErrInvalidContent, root)
	}
	return nil
}

// firstElement skips a byte order mark, the XML declaration, processing
// instructions, comments and a non-HTML doctype, and returns the bytes from the
// first remaining markup. Content after the root start tag is never inspected.
func firstElement(data []byte) []byte {
	rest := bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	for {
		rest = bytes.TrimLeft(rest, " \t\r\n")
		var end []byte
		switch {
		case bytes.HasPrefix(rest, []byte("<?")):
			end = []byte("?>")
		case bytes.HasPrefix(rest, []byte("<!--")):
			end = []byte("-->")
		case bytes.HasPrefix(rest, []byte("<!")) && !bytes.HasPrefix(bytes.ToLower(rest), []byte("<!doctype html")):
			end = []byte(">")
		default:
			return rest
		}
		i := bytes.Index(rest, end)
		if i < 0 {
			return nil
		}
		rest = rest[i+len(end):]
	}
}

func isNameEnd(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '>', '/':
		return true
	}
	return false
}

// IsNotFound reports whether err means every repository was exhausted.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
