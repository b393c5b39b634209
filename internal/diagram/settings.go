package diagram

import (
	"time"

	"github.com/tordrt/ldmgen/internal/schema"
)

// Category buckets a model by size for rendering
type Category string

// Size categories
const (
	Small     Category = "small"
	Medium    Category = "medium"
	Large     Category = "large"
	VeryLarge Category = "very-large"
)

// Settings are the rendering parameters of one size category
type Settings struct {
	Category   Category
	DPI        int
	Size       string
	FontSize   int
	NodeSep    float64
	RankSep    float64
	Timeout    time.Duration
	Retries    int
	MaxColumns int
}

var settingsTable = map[Category]Settings{
	Small:     {Small, 300, "20,20", 12, 0.6, 0.8, 30 * time.Second, 2, 50},
	Medium:    {Medium, 200, "40,40", 11, 0.5, 1.0, 60 * time.Second, 2, 30},
	Large:     {Large, 150, "80,80", 10, 0.4, 1.2, 120 * time.Second, 3, 20},
	VeryLarge: {VeryLarge, 96, "120,120", 9, 0.3, 1.5, 300 * time.Second, 3, 15},
}

// Categorize buckets a model by table count, column count and widest table
func Categorize(s schema.Stats) Category {
	switch {
	case s.MaxColumnsPerTable >= 500:
		return VeryLarge
	case s.TableCount <= 10 && s.TotalColumnCount <= 100:
		return Small
	case s.TableCount <= 30 && s.TotalColumnCount <= 500:
		return Medium
	default:
		return Large
	}
}

// SettingsFor returns the settings of the model's size category
func SettingsFor(s schema.Stats) Settings {
	return settingsTable[Categorize(s)]
}
