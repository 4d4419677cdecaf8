// Package server implements the remote end of the scene store: an HTTP
// service that publishes scene manifests and streams model files in chunks.
// Scenes are plain directories under the media root; each .obj file in a
// scene directory is one model.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Carmen-Shannon/scenestream/engine/transfer"
)

const defaultChunkSize = 64 * 1024

// thumbnailNames are probed in order when building a manifest; the first one
// present in the scene directory is embedded.
var thumbnailNames = []string{"thumbnail.png", "thumbnail.jpg"}

// sceneServer is the implementation of the SceneServer interface.
type sceneServer struct {
	mediaRoot  string
	chunkSize  int
	chunkDelay time.Duration
}

// SceneServer serves scene manifests and chunked model downloads over HTTP.
// A configurable per-chunk delay simulates constrained links for exercising
// progress reporting and cancellation on the consumer side.
type SceneServer interface {
	// Handler returns the HTTP handler serving:
	//   GET /scenes                       - the list of scene ids
	//   GET /scenes/{id}/manifest         - the scene's manifest as JSON
	//   GET /scenes/{id}/models/{path...} - one model file, streamed in chunks
	//
	// Returns:
	//   - http.Handler: the handler to mount
	Handler() http.Handler
}

var _ SceneServer = &sceneServer{}

// NewSceneServer creates a SceneServer over the given media root with the
// provided options applied.
//
// Parameters:
//   - mediaRoot: the directory whose immediate subdirectories are scenes
//   - options: a variadic list of SceneServerBuilderOption functions to configure the server
//
// Returns:
//   - SceneServer: the newly created server
func NewSceneServer(mediaRoot string, options ...SceneServerBuilderOption) SceneServer {
	s := &sceneServer{
		mediaRoot: mediaRoot,
		chunkSize: defaultChunkSize,
	}

	for _, option := range options {
		option(s)
	}
	if s.chunkSize < 1 {
		s.chunkSize = defaultChunkSize
	}
	return s
}

func (s *sceneServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /scenes", s.handleListScenes)
	mux.HandleFunc("GET /scenes/{id}/manifest", s.handleManifest)
	mux.HandleFunc("GET /scenes/{id}/models/{path...}", s.handleModel)
	return mux
}

func (s *sceneServer) handleListScenes(w http.ResponseWriter, _ *http.Request) {
	entries, err := os.ReadDir(s.mediaRoot)
	if err != nil {
		log.Printf("server: failed to read media root %s: %v", s.mediaRoot, err)
		http.Error(w, "media root unavailable", http.StatusInternalServerError)
		return
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ids)
}

func (s *sceneServer) handleManifest(w http.ResponseWriter, r *http.Request) {
	sceneID := r.PathValue("id")
	sceneDir, ok := s.sceneDir(sceneID)
	if !ok {
		http.NotFound(w, r)
		return
	}

	manifest, err := s.buildManifest(sceneID, sceneDir)
	if err != nil {
		log.Printf("server: failed to build manifest for %s: %v", sceneID, err)
		http.Error(w, "failed to build manifest", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(manifest)
}

// buildManifest enumerates the scene directory's model files in sorted walk
// order, which fixes the load order clients observe.
func (s *sceneServer) buildManifest(sceneID, sceneDir string) (*transfer.Manifest, error) {
	manifest := &transfer.Manifest{
		SceneID: sceneID,
		Models:  []transfer.ModelInfo{},
	}

	err := filepath.WalkDir(sceneDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".obj") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(sceneDir, p)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
		manifest.Models = append(manifest.Models, transfer.ModelInfo{
			Name:      name,
			RelPath:   filepath.ToSlash(rel),
			SizeBytes: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, name := range thumbnailNames {
		if data, err := os.ReadFile(filepath.Join(sceneDir, name)); err == nil {
			manifest.Thumbnail = data
			break
		}
	}
	return manifest, nil
}

func (s *sceneServer) handleModel(w http.ResponseWriter, r *http.Request) {
	sceneID := r.PathValue("id")
	sceneDir, ok := s.sceneDir(sceneID)
	if !ok {
		http.NotFound(w, r)
		return
	}

	relPath := path.Clean(r.PathValue("path"))
	if !filepath.IsLocal(filepath.FromSlash(relPath)) {
		http.NotFound(w, r)
		return
	}

	filePath := filepath.Join(sceneDir, filepath.FromSlash(relPath))
	f, err := os.Open(filePath)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, s.chunkSize)
	for {
		select {
		case <-r.Context().Done():
			// Client went away mid-stream; abandon the transfer.
			return
		default:
		}

		n, readErr := f.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
			if s.chunkDelay > 0 {
				select {
				case <-r.Context().Done():
					return
				case <-time.After(s.chunkDelay):
				}
			}
		}
		if readErr != nil {
			return
		}
	}
}

// sceneDir resolves a scene id to its directory under the media root,
// rejecting ids that are not a single plain path element.
func (s *sceneServer) sceneDir(sceneID string) (string, bool) {
	if sceneID == "" || !filepath.IsLocal(sceneID) || strings.ContainsAny(sceneID, `/\`) {
		return "", false
	}
	dir := filepath.Join(s.mediaRoot, sceneID)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return dir, true
}
