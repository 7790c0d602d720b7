package handlers

import (
	_ "embed"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"
)

//go:embed resources.yaml
var defaultResources []byte

// Resource is one learning link.
type Resource struct {
	Category    string `json:"category" yaml:"category"`
	Title       string `json:"title" yaml:"title"`
	URL         string `json:"url" yaml:"url"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// LoadResources reads the resource list from path, or the built-in list when
// path is empty.
func LoadResources(path string) ([]Resource, error) {
	data := defaultResources
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		data = raw
	}
	return parseResources(data)
}

func parseResources(data []byte) ([]Resource, error) {
	var resources []Resource
	if err := yaml.Unmarshal(data, &resources); err != nil {
		return nil, fmt.Errorf("parse resources: %w", err)
	}
	for i, res := range resources {
		if strings.TrimSpace(res.Title) == "" || strings.TrimSpace(res.URL) == "" {
			return nil, fmt.Errorf("parse resources: entry %d needs a title and url", i)
		}
	}
	return resources, nil
}

// ResourcesRouter serves the resource list. Callers mount it behind
// RequireAccess.
func ResourcesRouter(r chi.Router, resources []Resource) {
	if resources == nil {
		resources = []Resource{}
	}
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, resources)
	})
}
