package hdmap

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"
)

// maxMapFileSize bounds map files read from disk.
const maxMapFileSize = 256 * 1024 * 1024

// Lane is a directed drivable path segment.
type Lane struct {
	ID            string
	SpeedLimit    float64 // m/s; 0 means the map carries no limit
	LeftBoundary  orb.LineString
	RightBoundary orb.LineString
	Successors    []string
}

// Map is a decoded lane map.
type Map struct {
	Name  string
	Lanes []Lane
}

// mapFile is the on-disk schema shared by the JSON and YAML encodings.
type mapFile struct {
	Name  string     `json:"name,omitempty" yaml:"name,omitempty"`
	Lanes []laneFile `json:"lanes" yaml:"lanes"`
}

type laneFile struct {
	ID            string       `json:"id" yaml:"id"`
	SpeedLimit    float64      `json:"speed_limit" yaml:"speed_limit"`
	LeftBoundary  [][2]float64 `json:"left_boundary" yaml:"left_boundary"`
	RightBoundary [][2]float64 `json:"right_boundary" yaml:"right_boundary"`
	Successors    []string     `json:"successors,omitempty" yaml:"successors,omitempty"`
}

// LoadMap reads a map file. The extension selects the decoder: .yaml/.yml
// for YAML, .json for JSON.
func LoadMap(path string) (*Map, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("map file must have .json, .yaml or .yml extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat map file: %w", err)
	}
	if info.Size() > maxMapFileSize {
		return nil, fmt.Errorf("map file too large: %d bytes (max %d)", info.Size(), maxMapFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read map file: %w", err)
	}
	return ParseMap(data, ext)
}

// ParseMap decodes map bytes; ext is ".yaml", ".yml" or ".json".
func ParseMap(data []byte, ext string) (*Map, error) {
	var f mapFile
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse map YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse map JSON: %w", err)
		}
	}

	m := &Map{Name: f.Name, Lanes: make([]Lane, 0, len(f.Lanes))}
	for _, lf := range f.Lanes {
		m.Lanes = append(m.Lanes, Lane{
			ID:            lf.ID,
			SpeedLimit:    lf.SpeedLimit,
			LeftBoundary:  toLineString(lf.LeftBoundary),
			RightBoundary: toLineString(lf.RightBoundary),
			Successors:    lf.Successors,
		})
	}
	return m, nil
}

// WriteMap encodes m to path, choosing YAML or JSON by extension.
func WriteMap(path string, m *Map) error {
	f := mapFile{Name: m.Name, Lanes: make([]laneFile, 0, len(m.Lanes))}
	for _, l := range m.Lanes {
		f.Lanes = append(f.Lanes, laneFile{
			ID:            l.ID,
			SpeedLimit:    l.SpeedLimit,
			LeftBoundary:  fromLineString(l.LeftBoundary),
			RightBoundary: fromLineString(l.RightBoundary),
			Successors:    l.Successors,
		})
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(&f)
	case ".json":
		data, err = json.MarshalIndent(&f, "", "  ")
	default:
		return fmt.Errorf("unsupported map extension %q", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to encode map: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write map: %w", err)
	}
	return nil
}

func toLineString(pts [][2]float64) orb.LineString {
	ls := make(orb.LineString, len(pts))
	for i, p := range pts {
		ls[i] = orb.Point{p[0], p[1]}
	}
	return ls
}

func fromLineString(ls orb.LineString) [][2]float64 {
	pts := make([][2]float64, len(ls))
	for i, p := range ls {
		pts[i] = [2]float64{p[0], p[1]}
	}
	return pts
}
