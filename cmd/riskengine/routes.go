package main

import (
	"errors"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/seenimoa/routerisk/pkg/models"
)

// loadRoutes reads routes from a YAML or JSON file. The document is either
// a list of routes or a mapping with a "routes" key.
func loadRoutes(path string) ([]models.Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes: %w", err)
	}
	return parseRoutes(data)
}

func parseRoutes(data []byte) ([]models.Route, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse routes: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errors.New("parse routes: empty document")
	}

	var routes []models.Route
	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&routes); err != nil {
			return nil, fmt.Errorf("parse routes: %w", err)
		}
	case yaml.MappingNode:
		var wrapped struct {
			Routes []models.Route `yaml:"routes"`
		}
		if err := root.Decode(&wrapped); err != nil {
			return nil, fmt.Errorf("parse routes: %w", err)
		}
		routes = wrapped.Routes
	default:
		return nil, errors.New("parse routes: expected a list or a routes mapping")
	}

	for _, r := range routes {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	return routes, nil
}
