package wpclient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ksstormnet/cme-content-worker-sub001/pkg/util"

	"github.com/rs/zerolog"
)

const (
	// Pause between sequential access probes. Coarser than the client's own
	// pacing gate and layered on top of it.
	probePause = 500 * time.Millisecond

	// Accessibility-probe body preview length.
	previewLength = 100

	// The REST API serves root-document route paths under this prefix.
	apiPrefix = "/wp-json"
)

var ErrRootDocumentFailed = errors.New("failed to fetch API root document")

// RouteMeta is the per-route metadata the root document declares.
type RouteMeta struct {
	Namespace string   `json:"namespace,omitempty"`
	Methods   []string `json:"methods"`
}

// RootDocument is the API description served at the site's /wp-json/ root.
type RootDocument struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	URL         string               `json:"url"`
	Namespaces  []string             `json:"namespaces"`
	Routes      map[string]RouteMeta `json:"routes"`
}

// EndpointInfo groups the routes of one namespace with the union of their
// declared HTTP methods.
type EndpointInfo struct {
	Namespace string               `json:"namespace"`
	Routes    map[string]RouteMeta `json:"routes"`
	Methods   []string             `json:"methods"`
}

// ThemeEndpoints is the best-effort vendor classification of a discovered
// namespace map. The substring matching is heuristic, not exact.
type ThemeEndpoints struct {
	GeneratePress  map[string]*EndpointInfo `json:"generatepress"`
	GenerateBlocks map[string]*EndpointInfo `json:"generateblocks"`
	ThemeRoutes    []string                 `json:"theme_routes"`
}

// AccessProbe is the outcome of probing a single endpoint for
// accessibility under the configured credentials.
type AccessProbe struct {
	Accessible bool   `json:"accessible"`
	Status     int    `json:"status,omitempty"`
	Error      string `json:"error,omitempty"`
	Preview    string `json:"preview,omitempty"`
}

// Discovery walks a site's API description to enumerate and classify its
// namespaces and routes.
type Discovery struct {
	client *Client
	pause  time.Duration
	logger zerolog.Logger
}

// NewDiscovery creates a discovery engine on top of an existing client.
func NewDiscovery(client *Client) *Discovery {
	return &Discovery{
		client: client,
		pause:  probePause,
		logger: util.NewLogger(zerolog.InfoLevel),
	}
}

// SetProbePause overrides the pause between sequential access probes.
func (d *Discovery) SetProbePause(pause time.Duration) {
	d.pause = pause
}

// DiscoverEndpoints fetches the root document and groups its flat route map
// under each declared namespace by path prefix.
func (d *Discovery) DiscoverEndpoints(ctx context.Context) (map[string]*EndpointInfo, error) {
	var root RootDocument
	if err := d.client.GetJSON(ctx, "/wp-json/", nil, &root); err != nil {
		d.logger.Error().Err(err).Msg("root document fetch failed")
		return nil, fmt.Errorf("%w: %v", ErrRootDocumentFailed, err)
	}

	endpoints := make(map[string]*EndpointInfo, len(root.Namespaces))
	for _, namespace := range root.Namespaces {
		info := &EndpointInfo{
			Namespace: namespace,
			Routes:    make(map[string]RouteMeta),
		}

		prefix := "/" + namespace + "/"
		methodSet := make(map[string]struct{})

		for path, meta := range root.Routes {
			if !strings.HasPrefix(path, prefix) && path != "/"+namespace {
				continue
			}
			info.Routes[path] = meta
			for _, method := range meta.Methods {
				methodSet[method] = struct{}{}
			}
		}

		for method := range methodSet {
			info.Methods = append(info.Methods, method)
		}
		sort.Strings(info.Methods)

		endpoints[namespace] = info
	}

	d.logger.Info().
		Int("namespaces", len(endpoints)).
		Int("routes", len(root.Routes)).
		Msg("discovered endpoints")

	return endpoints, nil
}

// GenerateEndpoints re-partitions the discovered namespace map into
// GeneratePress/GenerateBlocks buckets and greps every route path for theme
// keywords to catch routes not cleanly namespaced.
func (d *Discovery) GenerateEndpoints(ctx context.Context) (*ThemeEndpoints, error) {
	endpoints, err := d.DiscoverEndpoints(ctx)
	if err != nil {
		return nil, err
	}

	theme := &ThemeEndpoints{
		GeneratePress:  make(map[string]*EndpointInfo),
		GenerateBlocks: make(map[string]*EndpointInfo),
	}

	keywords := []string{"generate", "theme", "customizer"}

	for namespace, info := range endpoints {
		lower := strings.ToLower(namespace)
		switch {
		case strings.Contains(lower, "generatepress"):
			theme.GeneratePress[namespace] = info
		case strings.Contains(lower, "generateblocks"):
			theme.GenerateBlocks[namespace] = info
		}

		for path := range info.Routes {
			lowerPath := strings.ToLower(path)
			for _, keyword := range keywords {
				if strings.Contains(lowerPath, keyword) {
					theme.ThemeRoutes = append(theme.ThemeRoutes, path)
					break
				}
			}
		}
	}

	sort.Strings(theme.ThemeRoutes)

	return theme, nil
}

// ValidateEndpointAccess probes each endpoint sequentially with a fixed
// pause between probes and reports per-endpoint accessibility. Root-document
// route paths are resolved under the /wp-json prefix; the probe map stays
// keyed by the endpoint as given.
func (d *Discovery) ValidateEndpointAccess(ctx context.Context, endpoints []string) (map[string]AccessProbe, error) {
	probes := make(map[string]AccessProbe, len(endpoints))

	for i, endpoint := range endpoints {
		if i > 0 {
			select {
			case <-time.After(d.pause):
			case <-ctx.Done():
				return probes, ctx.Err()
			}
		}

		result := d.client.Request(ctx, probeTarget(endpoint), nil)

		probe := AccessProbe{
			Accessible: result.Success,
			Status:     result.Status,
		}
		if result.Success {
			preview := string(result.Data)
			if len(preview) > previewLength {
				preview = preview[:previewLength]
			}
			probe.Preview = preview
		} else {
			probe.Error = result.Error
		}

		probes[endpoint] = probe
		d.logger.Info().
			Str("endpoint", endpoint).
			Bool("accessible", probe.Accessible).
			Int("status", probe.Status).
			Msg("probed endpoint")
	}

	return probes, nil
}

// probeTarget maps a root-document route path onto the URL the API actually
// serves it at. Already-prefixed paths and absolute URLs pass through.
func probeTarget(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if endpoint == apiPrefix || strings.HasPrefix(endpoint, apiPrefix+"/") {
		return endpoint
	}
	return apiPrefix + endpoint
}
