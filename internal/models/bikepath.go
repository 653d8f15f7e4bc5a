// Package models defines data structures for the bike path pipeline.
package models

import (
	"fmt"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Geometry types accepted by the pipeline.
const (
	GeometryPoint           = "Point"
	GeometryLineString      = "LineString"
	GeometryMultiLineString = "MultiLineString"
	GeometryPolygon         = "Polygon"
)

// Geometry is a GeoJSON geometry in canonical form.
// Coordinates holds []float64 for a Point, [][]float64 for a LineString and
// [][][]float64 for a MultiLineString or Polygon.
type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// Surreal converts g to the driver's tagged geometry values. A plain
// {type, coordinates} object is not accepted by a geometry-typed field.
func (g Geometry) Surreal() (any, error) {
	switch g.Type {
	case GeometryPoint:
		if c, ok := g.Coordinates.([]float64); ok && len(c) == 2 {
			return surrealPoint(c), nil
		}
	case GeometryLineString:
		if c, ok := g.Coordinates.([][]float64); ok && pairs(c) {
			return surrealLine(c), nil
		}
	case GeometryMultiLineString:
		if c, ok := g.Coordinates.([][][]float64); ok && nestedPairs(c) {
			lines := make(surrealmodels.GeometryMultiLine, len(c))
			for i, l := range c {
				lines[i] = surrealLine(l)
			}
			return lines, nil
		}
	case GeometryPolygon:
		if c, ok := g.Coordinates.([][][]float64); ok && nestedPairs(c) {
			rings := make(surrealmodels.GeometryPolygon, len(c))
			for i, r := range c {
				rings[i] = surrealLine(r)
			}
			return rings, nil
		}
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", g.Type)
	}
	return nil, fmt.Errorf("%s has malformed coordinates %T", g.Type, g.Coordinates)
}

func pairs(c [][]float64) bool {
	for _, p := range c {
		if len(p) != 2 {
			return false
		}
	}
	return true
}

func nestedPairs(c [][][]float64) bool {
	for _, l := range c {
		if !pairs(l) {
			return false
		}
	}
	return true
}

func surrealPoint(c []float64) surrealmodels.GeometryPoint {
	return surrealmodels.GeometryPoint{Longitude: c[0], Latitude: c[1]}
}

func surrealLine(c [][]float64) surrealmodels.GeometryLine {
	line := make(surrealmodels.GeometryLine, len(c))
	for i, p := range c {
		line[i] = surrealPoint(p)
	}
	return line
}

// BikePath is a cleaned, validated bike path record. It is only ever built
// by the transformer from a RawRecord that passed validation.
type BikePath struct {
	ID                  string         `json:"id"`
	Name                string         `json:"name"`
	Type                string         `json:"type"`
	Surface             string         `json:"surface"`
	LengthKm            float64        `json:"length_km"`
	Geometry            Geometry       `json:"geometry"`
	Properties          map[string]any `json:"properties"`
	SourceURL           string         `json:"source_url"`
	ExtractionTimestamp time.Time      `json:"extraction_timestamp"`
}

// Document returns the stored representation of the path. The record key
// carries the id, so it is left out of the body.
func (b BikePath) Document() (map[string]any, error) {
	geom, err := b.Geometry.Surreal()
	if err != nil {
		return nil, fmt.Errorf("bike path %s: %w", b.ID, err)
	}
	props := b.Properties
	if props == nil {
		props = map[string]any{}
	}
	return map[string]any{
		"name":                 b.Name,
		"type":                 b.Type,
		"surface":              b.Surface,
		"length_km":            b.LengthKm,
		"geometry":             geom,
		"properties":           props,
		"source_url":           b.SourceURL,
		"extraction_timestamp": b.ExtractionTimestamp.UTC(),
	}, nil
}
