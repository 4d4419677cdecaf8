package transfer

import (
	"context"
	"errors"
)

// Common errors returned by transfer clients.
var (
	// ErrNotFound indicates the remote store has no such scene or model.
	ErrNotFound = errors.New("transfer: not found")
	// ErrSizeMismatch indicates a completed stream delivered a byte count that
	// disagrees with the manifest's declared size.
	ErrSizeMismatch = errors.New("transfer: streamed size does not match manifest size")
)

// ModelInfo describes one model file as declared by a scene manifest.
type ModelInfo struct {
	// Name is the display name of the model (typically the file stem).
	Name string `json:"name"`
	// RelPath is the model's path relative to the scene's remote directory.
	RelPath string `json:"rel_path"`
	// SizeBytes is the authoritative file size used to validate completed streams.
	SizeBytes int64 `json:"size_bytes"`
}

// Manifest lists the models of one remote scene. It is fetched in full before
// any model transfer begins.
type Manifest struct {
	// SceneID is the scene this manifest describes.
	SceneID string `json:"scene_id"`
	// Models lists the scene's model files in the order they should be loaded.
	Models []ModelInfo `json:"models"`
	// Thumbnail holds optional encoded thumbnail image bytes for the scene.
	Thumbnail []byte `json:"thumbnail,omitempty"`
}

// ProgressFunc receives incremental download progress.
// bytesReceived is cumulative; totalBytes is the manifest's declared size.
type ProgressFunc func(bytesReceived, totalBytes int64)

// Client is the boundary to the remote scene store consumed by the loading
// pipeline. Implementations must be safe for concurrent use by multiple
// loader workers.
type Client interface {
	// FetchManifest retrieves the model list for a scene. Blocking.
	//
	// Parameters:
	//   - ctx: cancels the request when done
	//   - sceneID: the scene to describe
	//
	// Returns:
	//   - *Manifest: the scene's model list in load order
	//   - error: ErrNotFound if the scene is unknown, or a transport error
	FetchManifest(ctx context.Context, sceneID string) (*Manifest, error)

	// StreamModel downloads one model file to dest, invoking onProgress as
	// bytes arrive and observing ctx between chunks. Blocking. On any
	// non-success outcome, including cancellation, no file remains at dest -
	// the loading pipeline treats file presence as proof of full, valid
	// content.
	//
	// Parameters:
	//   - ctx: cancels the stream between chunks
	//   - sceneID: the owning scene
	//   - relPath: the model's manifest-relative path
	//   - dest: the local destination file path (parent directory must exist)
	//   - totalBytes: the manifest's declared size, used to validate completion
	//   - onProgress: optional incremental progress callback (may be nil)
	//
	// Returns:
	//   - error: nil only if the complete file was written to dest
	StreamModel(ctx context.Context, sceneID, relPath, dest string, totalBytes int64, onProgress ProgressFunc) error
}
