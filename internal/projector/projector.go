// Package projector renders the record files into gallery.json, the
// denormalized snapshot the public viewer reads.
//
// The snapshot is a pure function of its inputs. It carries no timestamps, so
// regenerating with the same sketches and folders yields identical bytes.
package projector

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"regexp"

	"github.com/yuin/goldmark"

	"github.com/hpungsan/showcase/internal/embedurl"
	"github.com/hpungsan/showcase/internal/fileio"
	"github.com/hpungsan/showcase/internal/gallery"
)

// FileName is the snapshot's name inside the data directory.
const FileName = "gallery.json"

// Version is the snapshot format version.
const Version = 1

// Entry is one sketch as the viewer sees it.
type Entry struct {
	Slug            string            `json:"slug"`
	Author          string            `json:"author"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	DescriptionHTML string            `json:"descriptionHtml"`
	URL             string            `json:"url"`
	Provider        embedurl.Provider `json:"provider"`
	Width           int               `json:"width"`
	Height          int               `json:"height"`
	Week            string            `json:"week"`
}

// Week is a folder with its sketches in store order.
type Week struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	IsDefault bool    `json:"isDefault"`
	Sketches  []Entry `json:"sketches"`
}

// Snapshot is the full gallery.json document.
type Snapshot struct {
	Version     int     `json:"version"`
	DefaultWeek string  `json:"defaultWeek"`
	Weeks       []Week  `json:"weeks"`
	Sketches    []Entry `json:"sketches"`
}

// Projector writes the snapshot to a fixed path.
type Projector struct {
	path string
	md   goldmark.Markdown
}

// New returns a Projector writing to path.
func New(path string) *Projector {
	return &Projector{path: path, md: goldmark.New()}
}

// Path returns the snapshot location.
func (p *Projector) Path() string {
	return p.path
}

// Build assembles the snapshot without touching disk.
func (p *Projector) Build(sketches []gallery.Sketch, folders []gallery.Folder) (*Snapshot, error) {
	snap := &Snapshot{
		Version:  Version,
		Weeks:    make([]Week, 0, len(folders)),
		Sketches: make([]Entry, 0, len(sketches)),
	}
	if def, ok := gallery.DefaultFolder(folders); ok {
		snap.DefaultWeek = def.ID
	}

	byWeek := make(map[string][]Entry, len(folders))
	for _, s := range sketches {
		entry, err := p.entry(s)
		if err != nil {
			return nil, err
		}
		snap.Sketches = append(snap.Sketches, entry)
		byWeek[s.Week] = append(byWeek[s.Week], entry)
	}

	for _, f := range folders {
		entries := byWeek[f.ID]
		if entries == nil {
			entries = []Entry{}
		}
		snap.Weeks = append(snap.Weeks, Week{
			ID:        f.ID,
			Name:      f.Name,
			IsDefault: f.IsDefault,
			Sketches:  entries,
		})
	}

	return snap, nil
}

func (p *Projector) entry(s gallery.Sketch) (Entry, error) {
	url := embedurl.Normalize(s.URL)

	var html bytes.Buffer
	if s.Description != "" {
		if err := p.md.Convert([]byte(s.Description), &html); err != nil {
			return Entry{}, fmt.Errorf("failed to render description of %s: %w", s.Identity(), err)
		}
	}

	return Entry{
		Slug:            s.Identity().String(),
		Author:          s.Author,
		Title:           s.Title,
		Description:     s.Description,
		DescriptionHTML: html.String(),
		URL:             url,
		Provider:        embedurl.ProviderOf(url),
		Width:           s.Width,
		Height:          s.Height,
		Week:            s.Week,
	}, nil
}

// Regenerate rebuilds the snapshot and atomically replaces the file.
func (p *Projector) Regenerate(sketches []gallery.Sketch, folders []gallery.Folder) error {
	snap, err := p.Build(sketches, folders)
	if err != nil {
		return err
	}
	if err := fileio.WriteJSON(p.path, snap); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot written by Regenerate.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return &snap, nil
}

var sketchesToken = regexp.MustCompile(`\bsketches\b`)

// ErrNoSketches is returned when an artifact holds no recoverable sketch list.
var ErrNoSketches = stderrors.New("no sketches array found")

// ExtractSketches recovers sketch records from a previously generated artifact.
// A JSON snapshot is read through its "sketches" key. Anything else is searched
// for the first bracketed array literal following a "sketches" token, which
// covers artifacts generated as source code by older releases.
func ExtractSketches(data []byte) ([]gallery.Sketch, error) {
	var snap struct {
		Sketches *[]gallery.Sketch `json:"sketches"`
	}
	if err := json.Unmarshal(data, &snap); err == nil && snap.Sketches != nil {
		return *snap.Sketches, nil
	}

	loc := sketchesToken.FindIndex(data)
	if loc == nil {
		return nil, ErrNoSketches
	}
	literal, ok := arrayLiteral(data[loc[1]:])
	if !ok {
		return nil, ErrNoSketches
	}

	var sketches []gallery.Sketch
	if err := json.Unmarshal(literal, &sketches); err != nil {
		return nil, fmt.Errorf("failed to parse sketches array: %w", err)
	}
	return sketches, nil
}

// arrayLiteral returns the first balanced [...] in data, skipping brackets
// inside string literals.
func arrayLiteral(data []byte) ([]byte, bool) {
	start := bytes.IndexByte(data, '[')
	if start < 0 {
		return nil, false
	}

	depth := 0
	var quote byte
	escaped := false
	for i := start; i < len(data); i++ {
		c := data[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return data[start : i+1], true
			}
		}
	}
	return nil, false
}
