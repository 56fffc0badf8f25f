package ingestion

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// InferredMetadata holds the topic and doc type inferred from a source's
// location. Inference is best-effort; the values land in the chunk payload so
// retrieved context can be attributed and filtered later.
type InferredMetadata struct {
	// Topic is a coarse subject label derived from the path (usually the
	// parent directory or URL host).
	Topic string
	// DocType classifies the documentation kind (reference, guide, tutorial,
	// changelog, overview).
	DocType string
}

// docTypeByName maps well-known file stems to a doc type.
var docTypeByName = map[string]string{
	"readme":       "overview",
	"changelog":    "changelog",
	"changes":      "changelog",
	"contributing": "guide",
	"install":      "guide",
	"installation": "guide",
	"tutorial":     "tutorial",
	"quickstart":   "tutorial",
	"faq":          "reference",
}

// InferMetadata inspects a source location (file path or URL) and returns
// best-effort metadata. Unrecognised locations get the defaults
// ("general", "reference").
func InferMetadata(location string) InferredMetadata {
	m := InferredMetadata{
		Topic:   "general",
		DocType: "reference",
	}

	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		inferFromURL(location, &m)
		return m
	}

	inferFromPath(location, &m)
	return m
}

// inferFromURL derives metadata from a URL's host and path.
func inferFromURL(rawURL string, m *InferredMetadata) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return
	}

	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if host != "" {
		m.Topic = host
	}

	stem := strings.ToLower(strings.TrimSuffix(path.Base(parsed.Path), path.Ext(parsed.Path)))
	if dt, ok := docTypeByName[stem]; ok {
		m.DocType = dt
		return
	}

	for _, seg := range strings.Split(strings.ToLower(parsed.Path), "/") {
		switch seg {
		case "guides", "guide", "howto":
			m.DocType = "guide"
			return
		case "tutorials", "tutorial", "getting-started", "quick-start":
			m.DocType = "tutorial"
			return
		}
	}
}

// inferFromPath derives metadata from a local file path. The immediate parent
// directory becomes the topic unless it is a generic container name.
var genericDirs = map[string]bool{
	".":     true,
	"/":     true,
	"docs":  true,
	"doc":   true,
	"notes": true,
}

func inferFromPath(p string, m *InferredMetadata) {
	dir := strings.ToLower(filepath.Base(filepath.Dir(p)))
	if dir != "" && !genericDirs[dir] {
		m.Topic = dir
	}

	stem := strings.ToLower(strings.TrimSuffix(filepath.Base(p), filepath.Ext(p)))
	if dt, ok := docTypeByName[stem]; ok {
		m.DocType = dt
	}
}
