package store

import (
	"go.ngs.io/glorys-ic/internal/domain"
)

// FieldLoader is the interface for loading one reanalysis variable
type FieldLoader interface {
	// Load reads the requested variable restricted to the request's bounding box
	Load(req domain.FieldRequest) (*domain.Field, error)
}

// GridLoader is the interface for loading the target model grids
type GridLoader interface {
	// ReadVertical reads layer thicknesses and returns the layer grid
	ReadVertical(path, varName string) (*domain.VerticalGrid, error)

	// ReadHorizontal reads the supergrid
	ReadHorizontal(path string) (*domain.HorizontalGrid, error)
}

// DatasetWriter is the interface for persisting the finished initial condition
type DatasetWriter interface {
	Write(path string, ds *domain.Dataset) error
}
