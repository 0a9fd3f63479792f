package wpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"
)

func discoveryRootDocument() RootDocument {
	return RootDocument{
		Name:       "Test Site",
		URL:        "https://example.com",
		Namespaces: []string{"wp/v2", "generateblocks/v1", "generatepress/v1"},
		Routes: map[string]RouteMeta{
			"/wp/v2/posts": {
				Namespace: "wp/v2",
				Methods:   []string{"GET", "POST"},
			},
			"/wp/v2/media": {
				Namespace: "wp/v2",
				Methods:   []string{"GET"},
			},
			"/generateblocks/v1/styles": {
				Namespace: "generateblocks/v1",
				Methods:   []string{"GET"},
			},
			"/generatepress/v1/theme-options": {
				Namespace: "generatepress/v1",
				Methods:   []string{"GET", "POST"},
			},
		},
	}
}

func newDiscoveryServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(discoveryRootDocument())
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestDiscoverEndpoints(t *testing.T) {
	server := newDiscoveryServer(t)
	client := newTestClient(t, server.URL, RateLimitPolicy{
		RequestsPerSecond: 1000,
		MaxConcurrent:     2,
	})

	discovery := NewDiscovery(client)
	endpoints, err := discovery.DiscoverEndpoints(context.Background())
	if err != nil {
		t.Fatalf("DiscoverEndpoints failed: %v", err)
	}

	if len(endpoints) != 3 {
		t.Fatalf("expected 3 namespaces, got %d", len(endpoints))
	}

	wp, ok := endpoints["wp/v2"]
	if !ok {
		t.Fatal("missing wp/v2 namespace")
	}
	if len(wp.Routes) != 2 {
		t.Errorf("wp/v2 should own 2 routes, got %d", len(wp.Routes))
	}
	if _, ok := wp.Routes["/wp/v2/posts"]; !ok {
		t.Error("wp/v2 missing /wp/v2/posts route")
	}
	if want := []string{"GET", "POST"}; !reflect.DeepEqual(wp.Methods, want) {
		t.Errorf("wp/v2 methods = %v, want %v", wp.Methods, want)
	}

	gb, ok := endpoints["generateblocks/v1"]
	if !ok {
		t.Fatal("missing generateblocks/v1 namespace")
	}
	if len(gb.Routes) != 1 {
		t.Errorf("generateblocks/v1 should own 1 route, got %d", len(gb.Routes))
	}
	if want := []string{"GET"}; !reflect.DeepEqual(gb.Methods, want) {
		t.Errorf("generateblocks/v1 methods = %v, want %v", gb.Methods, want)
	}
}

func TestDiscoverEndpointsRootFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, RateLimitPolicy{
		RequestsPerSecond: 1000,
		MaxConcurrent:     1,
	})

	discovery := NewDiscovery(client)
	if _, err := discovery.DiscoverEndpoints(context.Background()); err == nil {
		t.Fatal("expected error when root document is unreachable")
	}
}

func TestGenerateEndpointsClassification(t *testing.T) {
	server := newDiscoveryServer(t)
	client := newTestClient(t, server.URL, RateLimitPolicy{
		RequestsPerSecond: 1000,
		MaxConcurrent:     2,
	})

	discovery := NewDiscovery(client)
	theme, err := discovery.GenerateEndpoints(context.Background())
	if err != nil {
		t.Fatalf("GenerateEndpoints failed: %v", err)
	}

	if len(theme.GeneratePress) != 1 {
		t.Errorf("expected 1 generatepress namespace, got %d", len(theme.GeneratePress))
	}
	if _, ok := theme.GeneratePress["generatepress/v1"]; !ok {
		t.Error("generatepress/v1 not classified under GeneratePress")
	}

	if len(theme.GenerateBlocks) != 1 {
		t.Errorf("expected 1 generateblocks namespace, got %d", len(theme.GenerateBlocks))
	}
	if _, ok := theme.GenerateBlocks["generateblocks/v1"]; !ok {
		t.Error("generateblocks/v1 not classified under GenerateBlocks")
	}

	// Keyword grep should flag both vendor routes regardless of namespace.
	for _, want := range []string{"/generateblocks/v1/styles", "/generatepress/v1/theme-options"} {
		found := false
		for _, path := range theme.ThemeRoutes {
			if path == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("theme routes missing %s (got %v)", want, theme.ThemeRoutes)
		}
	}
}

func TestValidateEndpointAccessResolvesDiscoveredRoutes(t *testing.T) {
	// The root document declares routes without the /wp-json prefix; the
	// REST API only serves them under it. Probing must bridge the two.
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(discoveryRootDocument())
	})
	mux.HandleFunc("/wp-json/generateblocks/v1/styles", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"styles":[]}`))
	})
	mux.HandleFunc("/wp-json/generatepress/v1/theme-options", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rest_forbidden", http.StatusUnauthorized)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server.URL, RateLimitPolicy{
		RequestsPerSecond: 1000,
		MaxConcurrent:     2,
	})

	discovery := NewDiscovery(client)
	discovery.SetProbePause(time.Millisecond)

	theme, err := discovery.GenerateEndpoints(context.Background())
	if err != nil {
		t.Fatalf("GenerateEndpoints failed: %v", err)
	}

	probes, err := discovery.ValidateEndpointAccess(context.Background(), theme.ThemeRoutes)
	if err != nil {
		t.Fatalf("ValidateEndpointAccess failed: %v", err)
	}

	styles, ok := probes["/generateblocks/v1/styles"]
	if !ok {
		t.Fatalf("probe map not keyed by the discovered route: %v", probes)
	}
	if !styles.Accessible {
		t.Errorf("styles route should be accessible via the API prefix: %+v", styles)
	}
	if !strings.Contains(styles.Preview, "styles") {
		t.Errorf("preview should carry the REST payload, got %q", styles.Preview)
	}

	options := probes["/generatepress/v1/theme-options"]
	if options.Accessible {
		t.Error("theme-options should be inaccessible")
	}
	if options.Status != http.StatusUnauthorized {
		t.Errorf("theme-options status = %d, want %d", options.Status, http.StatusUnauthorized)
	}
}

func TestProbeTarget(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
	}{
		{"/generateblocks/v1/styles", "/wp-json/generateblocks/v1/styles"},
		{"/wp-json/wp/v2/posts", "/wp-json/wp/v2/posts"},
		{"/wp-json", "/wp-json"},
		{"https://example.com/wp-json/wp/v2/posts", "https://example.com/wp-json/wp/v2/posts"},
	}

	for _, tt := range tests {
		if got := probeTarget(tt.endpoint); got != tt.want {
			t.Errorf("probeTarget(%q) = %q, want %q", tt.endpoint, got, tt.want)
		}
	}
}

func TestValidateEndpointAccess(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/wp/v2/posts", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"id":1,"title":{"rendered":"` + strings.Repeat("x", 200) + `"}}]`))
	})
	mux.HandleFunc("/wp-json/wp/v2/users", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rest_forbidden", http.StatusUnauthorized)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server.URL, RateLimitPolicy{
		RequestsPerSecond: 1000,
		MaxConcurrent:     2,
	})

	discovery := NewDiscovery(client)
	discovery.SetProbePause(time.Millisecond)

	probes, err := discovery.ValidateEndpointAccess(context.Background(), []string{
		"/wp-json/wp/v2/posts",
		"/wp-json/wp/v2/users",
	})
	if err != nil {
		t.Fatalf("ValidateEndpointAccess failed: %v", err)
	}

	posts := probes["/wp-json/wp/v2/posts"]
	if !posts.Accessible {
		t.Errorf("posts should be accessible: %s", posts.Error)
	}
	if len(posts.Preview) != 100 {
		t.Errorf("preview should be capped at 100 chars, got %d", len(posts.Preview))
	}

	users := probes["/wp-json/wp/v2/users"]
	if users.Accessible {
		t.Error("users should not be accessible")
	}
	if users.Status != http.StatusUnauthorized {
		t.Errorf("users status = %d, want %d", users.Status, http.StatusUnauthorized)
	}
	if users.Error == "" {
		t.Error("inaccessible probe should carry an error")
	}
}
