package provider

import (
	"path/filepath"
	"strings"
)

// Suite represents a parsed set of flows from a provider.
type Suite struct {
	Provider string    `json:"provider"`
	Flows    []Flow    `json:"flows"`
	Warnings []Warning `json:"warnings"`
}

// Warning captures non-fatal issues encountered while parsing flows.
type Warning struct {
	Flow    string `json:"flow"`
	Message string `json:"message"`
}

// Flow mirrors the header of a Maestro flow file.
type Flow struct {
	Path     string            `json:"path"`
	Name     string            `json:"name,omitempty"`
	AppID    string            `json:"app_id,omitempty"`
	URL      string            `json:"url,omitempty"`
	Tags     []string          `json:"tags,omitempty"`
	Env      map[string]string `json:"env,omitempty"`
	Commands int               `json:"commands"`
}

// DisplayName is the declared flow name, or the file name without extension.
func (f Flow) DisplayName() string {
	if f.Name != "" {
		return f.Name
	}
	return f.Key()
}

// Key is the file name without extension. It names the flow's log directory.
func (f Flow) Key() string {
	base := filepath.Base(f.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Index maps flows by Key. Later flows win on collisions.
func Index(flows []Flow) map[string]Flow {
	out := make(map[string]Flow, len(flows))
	for _, f := range flows {
		out[f.Key()] = f
	}
	return out
}

// Labels returns the flow attributes reported alongside its result.
func (f Flow) Labels() map[string]string {
	labels := make(map[string]string)
	if f.AppID != "" {
		labels["appId"] = f.AppID
	}
	if f.URL != "" {
		labels["url"] = f.URL
	}
	if len(labels) == 0 {
		return nil
	}
	return labels
}
