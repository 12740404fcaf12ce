// Package embedurl rewrites sketch links from p5.js editor and OpenProcessing
// into the variant of the page that can be embedded in an iframe.
package embedurl

import (
	"net/url"
	"regexp"
	"strings"
)

// Provider identifies the site a sketch URL points at.
type Provider string

const (
	ProviderP5             Provider = "p5"
	ProviderOpenProcessing Provider = "openprocessing"
	ProviderOther          Provider = "other"
)

const (
	p5Host             = "p5js.org"
	openProcessingHost = "openprocessing.org"
)

var (
	openProcessingSketchPath = regexp.MustCompile(`^/sketch/\d+$`)
	// p5 editor paths are /<user>/<view>/<id>; only the view segment is rewritten.
	p5EditorView = regexp.MustCompile(`^(/[^/]+)/(sketches|edit)/`)
)

// Normalize returns the embeddable form of raw. It never fails: input that
// cannot be parsed or is not recognized is returned unchanged.
// Normalize(Normalize(u)) == Normalize(u).
func Normalize(raw string) string {
	return normalizeOpenProcessing(normalizeP5(raw))
}

// normalizeP5 swaps the editor view (/sketches/ or /edit/) for the full-screen view.
func normalizeP5(raw string) string {
	lower := strings.ToLower(raw)
	if !strings.Contains(lower, "p5") || !strings.Contains(lower, "editor") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || !strings.Contains(strings.ToLower(u.Host), p5Host) {
		return raw
	}

	if strings.Contains(u.Path, "/full/") || !p5EditorView.MatchString(u.Path) {
		return raw
	}
	u.Path = p5EditorView.ReplaceAllString(u.Path, "$1/full/")
	u.RawPath = ""
	return u.String()
}

// normalizeOpenProcessing appends /embed to bare sketch pages.
func normalizeOpenProcessing(raw string) string {
	if !strings.Contains(strings.ToLower(raw), openProcessingHost) {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	path := strings.TrimSuffix(u.Path, "/")
	if strings.HasSuffix(path, "/embed") || !openProcessingSketchPath.MatchString(path) {
		return raw
	}
	u.Path = path + "/embed"
	u.RawPath = ""
	return u.String()
}

// ProviderOf reports which site raw points at.
func ProviderOf(raw string) Provider {
	u, err := url.Parse(raw)
	if err != nil {
		return ProviderOther
	}
	host := strings.ToLower(u.Host)
	switch {
	case strings.Contains(host, p5Host):
		return ProviderP5
	case strings.Contains(host, openProcessingHost):
		return ProviderOpenProcessing
	default:
		return ProviderOther
	}
}
