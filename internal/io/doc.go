// Package ioutils provides file system and image processing utilities.
//
// This package contains functions for:
//   - Atomic file writes (temp file + rename)
//   - Idempotent directory creation and cleanup
//   - Image validation and resizing
//
// # File Operations
//
//	// Write data without ever exposing a half-written file
//	err := ioutils.WriteFileAtomic(ctx, "/out/grass/bulbasaur.png", data, nil)
//
//	// Ensure directory exists (safe to call concurrently)
//	err := ioutils.EnsureDir("/out/grass")
//
//	// Empty an output directory
//	err := ioutils.ResetDir("/out")
//
// # Image Processing
//
// The ImageService checks and shrinks fetched images:
//
//	svc := ioutils.NewImageService()
//
//	format, err := svc.Validate(ctx, data)
//	small, err := svc.Fit(ctx, data, 96)
package ioutils
