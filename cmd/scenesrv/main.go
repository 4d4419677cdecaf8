// Command scenesrv serves scene manifests and chunked model downloads from a
// media directory. Configuration comes from an optional TOML file with flag
// overrides; flags win.
package main

import (
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/Carmen-Shannon/scenestream/common"
	"github.com/Carmen-Shannon/scenestream/server"
)

type config struct {
	Addr         string `toml:"addr"`
	MediaRoot    string `toml:"media_root"`
	ChunkSize    int    `toml:"chunk_size"`
	ChunkDelayMS int    `toml:"chunk_delay_ms"`
}

func loadConfig(path string) (config, error) {
	var cfg config
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func main() {
	configPath := flag.String("config", "scenesrv.toml", "path to the TOML config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	mediaRoot := flag.String("media-root", "", "directory whose subdirectories are scenes (overrides config)")
	chunkSize := flag.Int("chunk-size", 0, "streamed chunk size in bytes (overrides config)")
	chunkDelayMS := flag.Int("chunk-delay-ms", 0, "artificial delay per streamed chunk in milliseconds (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("scenesrv: failed to load config %s: %v", *configPath, err)
	}

	cfg.Addr = common.Coalesce(*addr, cfg.Addr, ":8090")
	cfg.MediaRoot = common.Coalesce(*mediaRoot, cfg.MediaRoot, "media")
	cfg.ChunkSize = common.Coalesce(*chunkSize, cfg.ChunkSize, 64*1024)
	cfg.ChunkDelayMS = common.Coalesce(*chunkDelayMS, cfg.ChunkDelayMS)

	if _, err := os.Stat(cfg.MediaRoot); err != nil {
		log.Fatalf("scenesrv: media root %s is not accessible: %v", cfg.MediaRoot, err)
	}

	srv := server.NewSceneServer(cfg.MediaRoot,
		server.WithChunkSize(cfg.ChunkSize),
		server.WithChunkDelay(time.Duration(cfg.ChunkDelayMS)*time.Millisecond),
	)

	log.Printf("scenesrv: serving %s on %s (chunk=%dB delay=%dms)",
		cfg.MediaRoot, cfg.Addr, cfg.ChunkSize, cfg.ChunkDelayMS)
	if err := http.ListenAndServe(cfg.Addr, srv.Handler()); err != nil {
		log.Fatalf("scenesrv: server exited: %v", err)
	}
}
