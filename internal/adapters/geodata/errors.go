package geodata

import "errors"

var (
	// ErrConvert indicates the external ogr2ogr conversion failed.
	ErrConvert = errors.New("geodata: conversion failed")
	// ErrRead indicates a shapefile could not be opened or parsed.
	ErrRead = errors.New("geodata: shapefile read failed")
	// ErrNoElevation indicates the terrain model has no data for a point.
	ErrNoElevation = errors.New("geodata: no elevation data for point")
)
