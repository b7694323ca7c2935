package domain

import "errors"

var (
	ErrNotFound            = errors.New("project not found")
	ErrInvalidName         = errors.New("project name required")
	ErrInvalidMode         = errors.New("invalid project mode")
	ErrInvalidArtifactType = errors.New("invalid artifact type")
	ErrInvalidRole         = errors.New("invalid agent role")
)
