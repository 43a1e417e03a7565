// Package publish serves generated manifests over HTTP for the consuming
// backend.
package publish

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/piligrim-code/manifesto/pkg/manifest"
)

// WellKnownPath is the standardized location for manifest discovery.
const WellKnownPath = "/.well-known/action-manifest.json"

// Generator is the subset of the manifest generator the handler uses.
type Generator interface {
	GenerateManifest(ctx context.Context, domain, id string) (manifest.Manifest, []byte, error)
}

// Handler serves a freshly generated manifest on every request. Generation
// failures surface as 500s; the backend never sees a partial manifest.
func Handler(gen Generator, domain, id string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, payload, err := gen.GenerateManifest(r.Context(), domain, id)
		if err != nil {
			slog.ErrorContext(r.Context(), "manifest generation failed", "error", err)
			http.Error(w, "manifest generation failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
	})
}

// Fetch retrieves a manifest from a base URL.
func Fetch(ctx context.Context, baseURL string) (manifest.Manifest, error) {
	url := strings.TrimRight(baseURL, "/") + WellKnownPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return manifest.Manifest{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return manifest.Manifest{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return manifest.Manifest{}, fmt.Errorf("manifest fetch failed: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return manifest.Manifest{}, err
	}
	return manifest.Unmarshal(body)
}
