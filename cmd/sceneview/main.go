// Command sceneview is the interactive viewer: it registers scenes from a
// remote scene server, lets the scheduler stream them in, and renders loaded
// meshes with an orbit camera. GPU uploads happen only on the main thread by
// draining the loader's upload queue between frames.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/Carmen-Shannon/scenestream/common"
	"github.com/Carmen-Shannon/scenestream/engine/camera"
	"github.com/Carmen-Shannon/scenestream/engine/loader"
	"github.com/Carmen-Shannon/scenestream/engine/monitor"
	"github.com/Carmen-Shannon/scenestream/engine/parser"
	"github.com/Carmen-Shannon/scenestream/engine/profiler"
	"github.com/Carmen-Shannon/scenestream/engine/registry"
	"github.com/Carmen-Shannon/scenestream/engine/render"
	"github.com/Carmen-Shannon/scenestream/engine/scheduler"
	"github.com/Carmen-Shannon/scenestream/engine/transfer"
	"github.com/Carmen-Shannon/scenestream/engine/window"
)

const (
	// modelSpacing is the gap between models of a scene laid out in a row.
	modelSpacing = float32(1.25)

	// shutdownDrainTimeout bounds the final upload-queue drain so a wedged
	// worker cannot hang process exit.
	shutdownDrainTimeout = 5 * time.Second

	dragSensitivity = 0.008
)

func init() {
	// GLFW event handling must run on the main OS thread.
	runtime.LockOSThread()
}

type config struct {
	ServerURL        string   `toml:"server_url"`
	MonitorAddr      string   `toml:"monitor_addr"`
	Scenes           []string `toml:"scenes"`
	TmpDir           string   `toml:"tmp_dir"`
	Workers          int      `toml:"workers"`
	ConcurrencyLimit int      `toml:"concurrency_limit"`
	TickMS           int      `toml:"tick_ms"`
	ParseDelayMS     int      `toml:"parse_delay_ms"`
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

// listScenes asks the scene server for its scene ids.
func listScenes(serverURL string) ([]string, error) {
	resp, err := http.Get(serverURL + "/scenes")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scene list request returned %s", resp.Status)
	}
	var ids []string
	if err := json.NewDecoder(resp.Body).Decode(&ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// viewer holds the main-thread state of the application.
type viewer struct {
	window    window.Window
	renderer  render.MeshRenderer
	scheduler scheduler.Scheduler
	consumer  loader.UploadConsumer
	camera    camera.OrbitCamera
	profiler  *profiler.Profiler

	sceneIDs   []string
	activeIdx  int
	needResize bool
	framed     map[string]bool
}

func main() {
	configPath := flag.String("config", "sceneview.toml", "path to the TOML config file")
	serverURL := flag.String("server", "", "scene server base URL (overrides config)")
	monitorAddr := flag.String("monitor-addr", "", "status monitor listen address (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("sceneview: failed to load config %s: %v", *configPath, err)
	}
	cfg.ServerURL = common.Coalesce(*serverURL, cfg.ServerURL, "http://localhost:8090")
	cfg.MonitorAddr = common.Coalesce(*monitorAddr, cfg.MonitorAddr, ":8091")
	cfg.TmpDir = common.Coalesce(cfg.TmpDir, "tmp")
	cfg.Workers = common.Coalesce(cfg.Workers, 4)
	cfg.ConcurrencyLimit = common.Coalesce(cfg.ConcurrencyLimit, 5)
	cfg.TickMS = common.Coalesce(cfg.TickMS, 200)

	if len(cfg.Scenes) == 0 {
		cfg.Scenes, err = listScenes(cfg.ServerURL)
		if err != nil {
			log.Fatalf("sceneview: failed to list scenes from %s: %v", cfg.ServerURL, err)
		}
	}
	if len(cfg.Scenes) == 0 {
		log.Fatalf("sceneview: no scenes available from %s", cfg.ServerURL)
	}

	win, err := window.NewWindow(window.WithTitle("sceneview"))
	if err != nil {
		log.Fatalf("sceneview: %v", err)
	}
	defer win.Close()

	renderer := render.NewMeshRenderer(win.SurfaceDescriptor())
	renderer.ConfigureSurface(win.Size())

	reg := registry.NewRegistry(registry.WithScenes(cfg.Scenes...))
	uploads := loader.NewUploadQueue()
	client := transfer.NewHTTPClient(cfg.ServerURL)

	parserOptions := []parser.ParserBuilderOption{}
	if cfg.ParseDelayMS > 0 {
		parserOptions = append(parserOptions, parser.WithArtificialDelay(time.Duration(cfg.ParseDelayMS)*time.Millisecond))
	}
	p := parser.NewParser(parserOptions...)

	ldr := loader.NewSceneLoader(client, p, uploads,
		loader.WithTmpDir(cfg.TmpDir),
		loader.WithWorkerCount(cfg.Workers),
	)
	sched := scheduler.NewScheduler(reg, ldr,
		scheduler.WithTickInterval(time.Duration(cfg.TickMS)*time.Millisecond),
		scheduler.WithConcurrencyLimit(cfg.ConcurrencyLimit),
	)
	sched.Start()

	mon := monitor.NewMonitor(reg)
	mon.Start()
	go func() {
		if err := http.ListenAndServe(cfg.MonitorAddr, mon.Handler()); err != nil {
			log.Printf("sceneview: monitor server exited: %v", err)
		}
	}()

	v := &viewer{
		window:    win,
		renderer:  renderer,
		scheduler: sched,
		consumer:  uploads.Consumer(),
		camera:    camera.NewOrbitCamera(),
		profiler:  profiler.NewProfiler(),
		sceneIDs:  cfg.Scenes,
		framed:    make(map[string]bool),
	}
	v.installCallbacks()

	for v.window.PollEvents() {
		v.applyUploads()
		v.renderFrame()
		v.profiler.Tick()
	}

	v.shutdown(sched, mon, ldr)
}

func (v *viewer) installCallbacks() {
	v.window.SetResizeCallback(func(_, _ int) {
		v.needResize = true
	})

	v.window.SetKeyDownCallback(func(key window.Key) {
		switch key {
		case window.KeyEscape:
			v.window.RequestClose()
		case window.KeyTab:
			v.activeIdx = (v.activeIdx + 1) % len(v.sceneIDs)
			log.Printf("sceneview: active scene %s", v.activeSceneID())
		case window.KeyP:
			v.scheduler.PrioritizeScene(v.activeSceneID())
			log.Printf("sceneview: prioritized scene %s", v.activeSceneID())
		case window.KeyU:
			id := v.activeSceneID()
			v.scheduler.UnloadScene(id)
			delete(v.framed, id)
			v.destroySceneMeshes(id)
		case window.KeyF:
			v.frameSelected()
		case window.KeyLeft:
			v.selectModel(-1)
		case window.KeyRight:
			v.selectModel(1)
		}
	})

	v.window.SetDragCallback(func(dx, dy float32) {
		v.camera.Orbit(-dx*dragSensitivity, -dy*dragSensitivity)
	})

	v.window.SetScrollCallback(func(delta float32) {
		v.camera.Zoom(delta)
	})
}

func (v *viewer) activeSceneID() string {
	return v.sceneIDs[v.activeIdx]
}

func (v *viewer) activeScene() *registry.SceneDescriptor {
	for _, sd := range v.scheduler.Scenes() {
		if sd.ID() == v.activeSceneID() {
			return sd
		}
	}
	return nil
}

// applyUploads drains worker-produced mesh data into GPU buffers. This is
// the only place mesh handles are created.
func (v *viewer) applyUploads() {
	v.consumer.Drain(func(task loader.UploadTask) {
		label := fmt.Sprintf("%s/%d", task.Scene.ID(), task.ModelIndex)
		handle, err := v.renderer.UploadMesh(label, task.Mesh.Positions, task.Mesh.Indices)
		if err != nil {
			log.Printf("sceneview: upload of %s failed: %v", label, err)
			return
		}
		task.Scene.SetMeshResult(task.ModelIndex, handle, task.Transform)
		v.profiler.RecordUpload(task.Mesh.VertexCount())
	})
}

func (v *viewer) renderFrame() {
	width, height := v.window.Size()
	if v.needResize {
		v.renderer.ConfigureSurface(width, height)
		v.needResize = false
	}

	sd := v.activeScene()
	if sd != nil && !v.framed[sd.ID()] && sd.State() == registry.StateLoaded {
		v.frameSelected()
		v.framed[sd.ID()] = true
	}

	aspect := float32(width) / float32(height)
	if err := v.renderer.BeginFrame(v.camera.ViewProj(aspect)); err != nil {
		log.Printf("sceneview: begin frame failed: %v", err)
		return
	}

	if sd != nil {
		selected := sd.SelectedModel()
		for i := 0; i < sd.ModelCount(); i++ {
			handle, transform := sd.MeshResult(i)
			h, ok := handle.(*render.MeshHandle)
			if !ok || h == nil {
				continue
			}
			color := [4]float32{0.55, 0.57, 0.62, 1}
			if i == selected {
				color = [4]float32{0.75, 0.62, 0.35, 1}
			}
			v.renderer.DrawMesh(h, rowTransform(transform, i), color)
		}
	}

	v.renderer.EndFrame()
	v.renderer.Present()
}

// rowTransform offsets a model's normalized transform so a scene's models sit
// side by side instead of stacked at the origin.
func rowTransform(transform [16]float32, index int) [16]float32 {
	var offset, out [16]float32
	common.Translation(offset[:], float32(index)*modelSpacing, 0, 0)
	common.Mul4(out[:], offset[:], transform[:])
	return out
}

func (v *viewer) selectModel(delta int) {
	sd := v.activeScene()
	if sd == nil || sd.ModelCount() == 0 {
		return
	}
	n := sd.ModelCount()
	sd.SelectModel(((sd.SelectedModel()+delta)%n + n) % n)
	v.frameSelected()
}

func (v *viewer) frameSelected() {
	sd := v.activeScene()
	if sd == nil {
		return
	}
	i := sd.SelectedModel()
	bounds := sd.Bounds(i)
	bounds.Center[0] += float32(i) * modelSpacing
	if bounds.Radius <= 0 {
		bounds.Radius = 0.5
	}
	v.camera.FrameBounds(bounds)
}

func (v *viewer) destroySceneMeshes(id string) {
	for _, sd := range v.scheduler.Scenes() {
		if sd.ID() != id {
			continue
		}
		for _, handle := range sd.TakeMeshHandles() {
			if h, ok := handle.(*render.MeshHandle); ok {
				v.renderer.DestroyMesh(h)
			}
		}
		return
	}
}

// shutdown stops the background loops, lets in-flight work settle, and
// releases every GPU resource on the main thread.
func (v *viewer) shutdown(sched scheduler.Scheduler, mon monitor.Monitor, ldr loader.SceneLoader) {
	sched.Stop()
	mon.Stop()

	done := make(chan struct{})
	go func() {
		ldr.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownDrainTimeout):
		log.Printf("sceneview: loader shutdown timed out after %s", shutdownDrainTimeout)
	}

	// Workers are stopped; drain anything still queued so its mesh data is
	// dropped on the owning thread, then destroy live handles.
	v.consumer.Drain(func(loader.UploadTask) {})
	for _, sd := range sched.Scenes() {
		for _, handle := range sd.TakeMeshHandles() {
			if h, ok := handle.(*render.MeshHandle); ok {
				v.renderer.DestroyMesh(h)
			}
		}
	}
	v.renderer.Release()
}
