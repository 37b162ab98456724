package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anvil-platform/depot/internal/coords"
	"github.com/anvil-platform/depot/internal/repository"
)

const jarBytes = "PK\x03\x04fake-jar-content"

type fakeRepo struct {
	*httptest.Server
	files    map[string]string
	requests atomic.Int64
	agents   sync.Map
}

func newFakeRepo(t *testing.T, files map[string]string) *fakeRepo {
	t.Helper()
	f := &fakeRepo{files: files}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		f.agents.Store(r.Header.Get("User-Agent"), true)
		body, ok := f.files[strings.TrimPrefix(r.URL.Path, "/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(f.Close)
	return f
}

func TestArtifact_DownloadsThenServesFromCache(t *testing.T) {
	repo := newFakeRepo(t, map[string]string{"commons/util/2.3.0/util-2.3.0.jar": jarBytes})
	cache := t.TempDir()
	d := New(repository.NewRegistry(cache, repository.Repository{ID: "fake", URL: repo.URL}), Options{})

	dep := coords.NewDependency(coords.MustParse("commons:util:2.3.0"))
	path, err := d.Artifact(context.Background(), dep)
	if err != nil {
		t.Fatalf("Artifact: %v", err)
	}
	want := filepath.Join(cache, "commons", "util", "2.3.0", "util-2.3.0.jar")
	if path != want {
		t.Fatalf("expected %s, got %s", want, path)
	}
	if _, ok := repo.agents.Load(DefaultUserAgent); !ok {
		t.Fatalf("expected descriptive User-Agent header")
	}

	if _, err := d.Artifact(context.Background(), dep); err != nil {
		t.Fatalf("second Artifact: %v", err)
	}
	if got := repo.requests.Load(); got != 1 {
		t.Fatalf("expected cached second call, got %d requests", got)
	}
}

func TestArtifact_FallsBackAcrossRepositories(t *testing.T) {
	empty := newFakeRepo(t, map[string]string{})
	broken := newFakeRepo(t, map[string]string{"g/a/1/a-1.jar": "<html><body>proxy error</body></html>"})
	good := newFakeRepo(t, map[string]string{"g/a/1/a-1.jar": jarBytes})
	cache := t.TempDir()
	d := New(repository.NewRegistry(cache,
		repository.Repository{ID: "empty", URL: empty.URL},
		repository.Repository{ID: "broken", URL: broken.URL},
		repository.Repository{ID: "good", URL: good.URL},
	), Options{})

	path, err := d.Artifact(context.Background(), coords.NewDependency(coords.MustParse("g:a:1")))
	if err != nil {
		t.Fatalf("Artifact: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != jarBytes {
		t.Fatalf("unexpected cached content %q (%v)", data, err)
	}
	if empty.requests.Load() != 1 || broken.requests.Load() != 1 || good.requests.Load() != 1 {
		t.Fatalf("expected each repository to be tried once in order")
	}
	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.part"))
	if len(leftovers) != 0 {
		t.Fatalf("expected partial files to be removed, found %v", leftovers)
	}
}

func TestArtifact_UsesPerDependencyRepositoryLast(t *testing.T) {
	primary := newFakeRepo(t, map[string]string{})
	extra := newFakeRepo(t, map[string]string{"g/a/1/a-1.jar": jarBytes})
	d := New(repository.NewRegistry(t.TempDir(), repository.Repository{ID: "primary", URL: primary.URL}), Options{})

	dep := coords.NewDependency(coords.MustParse("g:a:1"))
	dep.Repository = extra.URL
	if _, err := d.Artifact(context.Background(), dep); err != nil {
		t.Fatalf("Artifact: %v", err)
	}
	if primary.requests.Load() != 1 || extra.requests.Load() != 1 {
		t.Fatalf("expected primary then fallback repository")
	}
}

func TestArtifact_ExhaustedRepositoriesCarryAllCauses(t *testing.T) {
	a := newFakeRepo(t, map[string]string{})
	b := newFakeRepo(t, map[string]string{})
	d := New(repository.NewRegistry(t.TempDir(),
		repository.Repository{ID: "repo-a", URL: a.URL},
		repository.Repository{ID: "repo-b", URL: b.URL},
	), Options{})

	_, err := d.Artifact(context.Background(), coords.NewDependency(coords.MustParse("g:missing:1")))
	if !errors.Is(err, ErrNotFound) || !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	for _, id := range []string{"repo-a", "repo-b", "404"} {
		if !strings.Contains(err.Error(), id) {
			t.Fatalf("expected error to mention %q: %v", id, err)
		}
	}
}

func TestDescriptor_RejectsHTMLAndMissingRoot(t *testing.T) {
	repo := newFakeRepo(t, map[string]string{
		"g/html/1/html-1.pom":     "<!DOCTYPE html><html><project></project></html>",
		"g/noroot/1/noroot-1.pom": "just text",
	})
	d := New(repository.NewRegistry(t.TempDir(), repository.Repository{URL: repo.URL}), Options{})
	for _, raw := range []string{"g:html:1", "g:noroot:1"} {
		_, err := d.Descriptor(context.Background(), coords.NewDependency(coords.MustParse(raw)))
		if !errors.Is(err, ErrNotFound) || !strings.Contains(err.Error(), ErrInvalidContent.Error()) {
			t.Fatalf("%s: expected invalid content failure, got %v", raw, err)
		}
	}
}

func TestArtifact_RejectsUnversioned(t *testing.T) {
	d := New(repository.NewRegistry(t.TempDir()), Options{})
	if _, err := d.Artifact(context.Background(), coords.NewDependency(coords.MustParse("g:a"))); !errors.Is(err, coords.ErrInvalidCoordinate) {
		t.Fatalf("expected ErrInvalidCoordinate, got %v", err)
	}
}

func TestMetadata_ReusedWithinTTL(t *testing.T) {
	repo := newFakeRepo(t, map[string]string{"commons/util/maven-metadata.xml": "<metadata><versioning><release>2.3.0</release></versioning></metadata>"})
	d := New(repository.NewRegistry(t.TempDir(), repository.Repository{URL: repo.URL}), Options{MetadataTTL: time.Hour})
	dep := coords.NewDependency(coords.MustParse("commons:util"))

	if _, err := d.Metadata(context.Background(), dep); err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if _, err := d.Metadata(context.Background(), dep); err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if got := repo.requests.Load(); got != 1 {
		t.Fatalf("expected one request within TTL, got %d", got)
	}

	d.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := d.Metadata(context.Background(), dep); err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if got := repo.requests.Load(); got != 2 {
		t.Fatalf("expected refetch after TTL, got %d requests", got)
	}
}

func TestArtifact_FileRepository(t *testing.T) {
	src := t.TempDir()
	rel := filepath.Join(src, "g", "a", "1")
	if err := os.MkdirAll(rel, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(rel, "a-1.jar"), []byte(jarBytes), 0o644); err != nil {
		t.Fatal(err)
	}
	d := New(repository.NewRegistry(t.TempDir(), repository.Repository{URL: "file://" + filepath.ToSlash(src)}), Options{})
	if _, err := d.Artifact(context.Background(), coords.NewDependency(coords.MustParse("g:a:1"))); err != nil {
		t.Fatalf("Artifact: %v", err)
	}
}

func TestArtifact_ConcurrentCallersShareDownload(t *testing.T) {
	release := make(chan struct{})
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		<-release
		_, _ = w.Write([]byte(jarBytes))
	}))
	defer srv.Close()

	d := New(repository.NewRegistry(t.TempDir(), repository.Repository{URL: srv.URL}), Options{})
	dep := coords.NewDependency(coords.MustParse("g:a:1"))

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Artifact(context.Background(), dep)
			errs <- err
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Artifact: %v", err)
		}
	}
	if got := requests.Load(); got != 1 {
		t.Fatalf("expected a single shared request, got %d", got)
	}
}

func TestArtifact_CancelledCallerDoesNotFailJoinedCaller(t *testing.T) {
	arrived := make(chan struct{}, 1)
	release := make(chan struct{})
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		arrived <- struct{}{}
		<-release
		_, _ = w.Write([]byte(jarBytes))
	}))
	defer srv.Close()

	d := New(repository.NewRegistry(t.TempDir(), repository.Repository{URL: srv.URL}), Options{})
	dep := coords.NewDependency(coords.MustParse("g:a:1"))

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := d.Artifact(ctxA, dep)
		errA <- err
	}()
	<-arrived

	errB := make(chan error, 1)
	go func() {
		_, err := d.Artifact(context.Background(), dep)
		errB <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) || IsNotFound(err) {
		t.Fatalf("expected the cancelled caller to see context.Canceled, got %v", err)
	}

	close(release)
	if err := <-errB; err != nil {
		t.Fatalf("joined caller failed: %v", err)
	}
	if got := requests.Load(); got != 1 {
		t.Fatalf("expected a single shared request, got %d", got)
	}
}

func TestArtifact_RejectsPathEscapingCoordinates(t *testing.T) {
	repo := newFakeRepo(t, map[string]string{})
	cache := t.TempDir()
	d := New(repository.NewRegistry(cache, repository.Repository{URL: repo.URL}), Options{})

	dep := coords.NewDependency(coords.New("evil", "x", "../../../../../escaped", ""))
	if _, err := d.Artifact(context.Background(), dep); !errors.Is(err, coords.ErrInvalidCoordinate) {
		t.Fatalf("Artifact: expected ErrInvalidCoordinate, got %v", err)
	}
	if _, err := d.Descriptor(context.Background(), dep); !errors.Is(err, coords.ErrInvalidCoordinate) {
		t.Fatalf("Descriptor: expected ErrInvalidCoordinate, got %v", err)
	}
	if _, err := d.Metadata(context.Background(), coords.NewDependency(coords.New("../..", "x", "", ""))); !errors.Is(err, coords.ErrInvalidCoordinate) {
		t.Fatalf("Metadata: expected ErrInvalidCoordinate, got %v", err)
	}
	if got := repo.requests.Load(); got != 0 {
		t.Fatalf("expected no requests, got %d", got)
	}
}

func TestDescriptor_AcceptsMarkupInsideProject(t *testing.T) {
	repo := newFakeRepo(t, map[string]string{
		"g/doc/1/doc-1.pom": "\xef\xbb\xbf<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n" +
			"<!-- generated -->\n" +
			"<project xmlns=\"http://maven.apache.org/POM/4.0.0\">" +
			"<description><![CDATA[<html><body>Docs</body></html>]]></description>" +
			"</project>",
		"g/wrapped/1/wrapped-1.pom": "<projects><project></project></projects>",
	})
	d := New(repository.NewRegistry(t.TempDir(), repository.Repository{URL: repo.URL}), Options{})

	if _, err := d.Descriptor(context.Background(), coords.NewDependency(coords.MustParse("g:doc:1"))); err != nil {
		t.Fatalf("Descriptor: %v", err)
	}
	_, err := d.Descriptor(context.Background(), coords.NewDependency(coords.MustParse("g:wrapped:1")))
	if err == nil || !strings.Contains(err.Error(), ErrInvalidContent.Error()) {
		t.Fatalf("expected a foreign root element to be rejected, got %v", err)
	}
}
