package parser

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Common errors returned by the parser.
var (
	errUnsupportedFormat = errors.New("unsupported model format")
	errMalformedVertex   = errors.New("malformed vertex statement")
	errMalformedFace     = errors.New("malformed face statement")
	errIndexOutOfRange   = errors.New("face index out of range")
)

// MeshData is the CPU-side result of parsing one model file.
type MeshData struct {
	// Positions is a flat list of vertex positions: x,y,z,x,y,z,...
	Positions []float32
	// Indices is a triangle list indexing into Positions.
	Indices []uint32
}

// VertexCount returns the number of vertices in the mesh.
func (m *MeshData) VertexCount() int { return len(m.Positions) / 3 }

// parser is the implementation of the Parser interface.
type parser struct {
	backend parserBackend
	delay   time.Duration
}

// Parser converts a downloaded model file into vertex/index arrays. The file
// format is abstracted behind a generic backend selected by extension.
// Implementations are safe for concurrent use by multiple loader workers.
type Parser interface {
	// Parse reads the model file at path and returns its mesh data.
	// The backend is selected by file extension (.obj is supported).
	//
	// Parameters:
	//   - path: the local file path to parse
	//
	// Returns:
	//   - *MeshData: the parsed vertex and index arrays
	//   - error: error if the format is unsupported or the file is malformed
	Parse(path string) (*MeshData, error)

	// ParseReader reads model data of the given format from a reader stream.
	//
	// Parameters:
	//   - r: the reader providing model data
	//   - format: the format extension including the dot (e.g. ".obj")
	//
	// Returns:
	//   - *MeshData: the parsed vertex and index arrays
	//   - error: error if the format is unsupported or the data is malformed
	ParseReader(r io.Reader, format string) (*MeshData, error)
}

var _ Parser = &parser{}

// NewParser creates a new Parser with the provided options applied.
//
// Parameters:
//   - options: a variadic list of ParserBuilderOption functions to configure the Parser
//
// Returns:
//   - Parser: the newly created parser
func NewParser(options ...ParserBuilderOption) Parser {
	p := &parser{
		backend: newOBJParserBackend(),
	}

	for _, option := range options {
		option(p)
	}
	return p
}

func (p *parser) Parse(path string) (*MeshData, error) {
	backend, err := p.resolveBackend(filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	mesh, err := backend.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	// Optional artificial delay so loads are never instant, which lets
	// progress UI and stall diagnostics be exercised against local servers.
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	return mesh, nil
}

func (p *parser) ParseReader(r io.Reader, format string) (*MeshData, error) {
	backend, err := p.resolveBackend(format)
	if err != nil {
		return nil, err
	}
	return backend.Parse(r)
}

// resolveBackend selects an appropriate parser backend based on the file
// extension. Currently only Wavefront OBJ is supported.
func (p *parser) resolveBackend(ext string) (parserBackend, error) {
	switch strings.ToLower(ext) {
	case ".obj":
		return p.backend, nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedFormat, ext)
	}
}
