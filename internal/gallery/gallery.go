// Package gallery defines the persisted sketch and folder records.
package gallery

import "github.com/hpungsan/showcase/internal/slug"

// Sketch is one embedded creative-coding sketch.
// Field names and JSON keys match the persisted sketches file.
type Sketch struct {
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Week        string `json:"week"`
}

// Identity derives the sketch's public identifier from its current title and author.
func (s Sketch) Identity() slug.Identity {
	return slug.Derive(s.Title, s.Author)
}

// Folder is a named bucket ("week") that sketches belong to.
type Folder struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"isDefault"`
}

// FindSketch returns the index of the sketch deriving id, or -1.
func FindSketch(sketches []Sketch, id slug.Identity) int {
	for i, s := range sketches {
		if s.Identity() == id {
			return i
		}
	}
	return -1
}

// FindFolder returns the index of the folder with the given id, or -1.
func FindFolder(folders []Folder, id string) int {
	for i, f := range folders {
		if f.ID == id {
			return i
		}
	}
	return -1
}

// DefaultFolder returns the folder marked default, if any.
func DefaultFolder(folders []Folder) (Folder, bool) {
	for _, f := range folders {
		if f.IsDefault {
			return f, true
		}
	}
	return Folder{}, false
}

// CountInWeek returns how many sketches reference the folder id.
func CountInWeek(sketches []Sketch, week string) int {
	n := 0
	for _, s := range sketches {
		if s.Week == week {
			n++
		}
	}
	return n
}
