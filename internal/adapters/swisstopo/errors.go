package swisstopo

import "errors"

// Sentinel kinds for swisstopo API errors.
var (
	ErrSearch   = errors.New("asset search failed")
	ErrNoAssets = errors.New("no assets found for selection")
	ErrDownload = errors.New("tile download failed")
)
