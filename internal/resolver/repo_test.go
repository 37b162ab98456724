package resolver

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/anvil-platform/depot/internal/coords"
	"github.com/anvil-platform/depot/internal/download"
	"github.com/anvil-platform/depot/internal/repository"
)

const testJar = "PK\x03\x04test-jar"

// testRepo is an in-memory repository served over HTTP that counts requests per path.
type testRepo struct {
	*httptest.Server
	mu      sync.Mutex
	files   map[string]string
	hits    map[string]int
	total   int
	dynamic func(path string) (string, bool)
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	r := &testRepo{files: map[string]string{}, hits: map[string]int{}}
	r.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		path := strings.TrimPrefix(req.URL.Path, "/")
		r.mu.Lock()
		r.hits[path]++
		r.total++
		body, ok := r.files[path]
		dynamic := r.dynamic
		r.mu.Unlock()
		if !ok && dynamic != nil {
			body, ok = dynamic(path)
		}
		if !ok {
			http.NotFound(w, req)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(r.Close)
	return r
}

func (r *testRepo) put(path, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[path] = body
}

// project publishes a descriptor and a binary for gav.
func (r *testRepo) project(gav string, inner ...string) {
	r.pomOnly(gav, inner...)
	r.put(repository.ArtifactPath(coords.MustParse(gav)), testJar)
}

// pomOnly publishes only a descriptor for gav.
func (r *testRepo) pomOnly(gav string, inner ...string) {
	r.put(repository.DescriptorPath(coords.MustParse(gav)), pomXML(gav, inner...))
}

func (r *testRepo) metadata(ga, release string, versions ...string) {
	var vs strings.Builder
	for _, v := range versions {
		fmt.Fprintf(&vs, "<version>%s</version>", v)
	}
	doc := fmt.Sprintf("<metadata><versioning><release>%s</release><versions>%s</versions></versioning></metadata>", release, vs.String())
	r.put(repository.MetadataPath(coords.MustParse(ga)), doc)
}

func (r *testRepo) requests() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

func (r *testRepo) hitsFor(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hits[path]
}

func pomXML(gav string, inner ...string) string {
	c := coords.MustParse(gav)
	return fmt.Sprintf("<project><groupId>%s</groupId><artifactId>%s</artifactId><version>%s</version>%s</project>",
		c.GroupID, c.ArtifactID, c.Version, strings.Join(inner, ""))
}

func dependencyXML(gav string) string {
	c := coords.MustParse(gav)
	v := ""
	if c.Version != "" {
		v = "<version>" + c.Version + "</version>"
	}
	return fmt.Sprintf("<dependency><groupId>%s</groupId><artifactId>%s</artifactId>%s</dependency>", c.GroupID, c.ArtifactID, v)
}

func dependencies(gavs ...string) string {
	var b strings.Builder
	b.WriteString("<dependencies>")
	for _, gav := range gavs {
		b.WriteString(dependencyXML(gav))
	}
	b.WriteString("</dependencies>")
	return b.String()
}

func management(entries ...string) string {
	return "<dependencyManagement>" + dependencies(entries...) + "</dependencyManagement>"
}

func bomImport(gav string) string {
	c := coords.MustParse(gav)
	return fmt.Sprintf("<dependencyManagement><dependencies><dependency><groupId>%s</groupId><artifactId>%s</artifactId><version>%s</version><type>pom</type><scope>import</scope></dependency></dependencies></dependencyManagement>",
		c.GroupID, c.ArtifactID, c.Version)
}

func parentXML(gav string) string {
	c := coords.MustParse(gav)
	return fmt.Sprintf("<parent><groupId>%s</groupId><artifactId>%s</artifactId><version>%s</version></parent>", c.GroupID, c.ArtifactID, c.Version)
}

func properties(kv ...string) string {
	var b strings.Builder
	b.WriteString("<properties>")
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, "<%s>%s</%s>", kv[i], kv[i+1], kv[i])
	}
	b.WriteString("</properties>")
	return b.String()
}

func newTestEngine(t *testing.T, repo *testRepo, cache string, opts Options) *Engine {
	t.Helper()
	reg := repository.NewRegistry(cache, repository.Repository{ID: "test", URL: repo.URL})
	e, err := NewEngine(download.New(reg, download.Options{}), opts)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func roots(raw ...string) []coords.Dependency {
	out := make([]coords.Dependency, 0, len(raw))
	for _, r := range raw {
		out = append(out, coords.NewDependency(coords.MustParse(r)))
	}
	return out
}

func resolvedKeys(res Result) []string {
	out := make([]string, 0, len(res.Resolved))
	for _, rd := range res.Resolved {
		out = append(out, rd.Dependency.String())
	}
	sort.Strings(out)
	return out
}
