package parser

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// objParserBackend parses Wavefront OBJ data. Only vertex positions and faces
// are consumed; texture coordinates, normals, materials, and groups are
// skipped. Faces with more than three vertices are fan-triangulated.
type objParserBackend struct{}

// parserBackend defines the generic interface for parsing model data from a
// stream. Concrete implementations handle format-specific details.
// This is internal to the parser package.
type parserBackend interface {
	// Parse reads model data from the reader and returns mesh data with
	// positions expanded per face corner and a sequential triangle index list.
	//
	// Parameters:
	//   - r: the reader providing model data
	//
	// Returns:
	//   - *MeshData: the parsed mesh data
	//   - error: error if the data is malformed
	Parse(r io.Reader) (*MeshData, error)
}

var _ parserBackend = objParserBackend{}

func newOBJParserBackend() parserBackend {
	return objParserBackend{}
}

func (objParserBackend) Parse(r io.Reader) (*MeshData, error) {
	// Raw vertex table referenced by face statements.
	var vertices []float32
	out := &MeshData{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: %w", lineNo, errMalformedVertex)
			}
			for _, f := range fields[1:4] {
				val, err := strconv.ParseFloat(f, 32)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w: %v", lineNo, errMalformedVertex, err)
				}
				vertices = append(vertices, float32(val))
			}
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: %w", lineNo, errMalformedFace)
			}
			corners := make([]int, 0, len(fields)-1)
			for _, f := range fields[1:] {
				vi, err := parseFaceVertexIndex(f, len(vertices)/3)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				corners = append(corners, vi)
			}
			// Fan-triangulate: (0, i, i+1) for each interior corner. Each face
			// corner is expanded into its own output vertex with a sequential
			// index, matching the flat layout the renderer expects.
			for i := 1; i+1 < len(corners); i++ {
				for _, vi := range [3]int{corners[0], corners[i], corners[i+1]} {
					out.Positions = append(out.Positions,
						vertices[vi*3+0],
						vertices[vi*3+1],
						vertices[vi*3+2],
					)
					out.Indices = append(out.Indices, uint32(len(out.Indices)))
				}
			}
		default:
			// vt, vn, o, g, s, usemtl, mtllib and anything else are ignored.
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// parseFaceVertexIndex extracts the position index from one face corner token
// (forms: "i", "i/t", "i//n", "i/t/n"). OBJ indices are 1-based; negative
// indices are relative to the end of the current vertex table. The returned
// index is 0-based.
func parseFaceVertexIndex(token string, vertexCount int) (int, error) {
	if slash := strings.IndexByte(token, '/'); slash >= 0 {
		token = token[:slash]
	}
	idx, err := strconv.Atoi(token)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errMalformedFace, err)
	}
	switch {
	case idx > 0:
		idx--
	case idx < 0:
		idx += vertexCount
	default:
		return 0, errIndexOutOfRange
	}
	if idx < 0 || idx >= vertexCount {
		return 0, errIndexOutOfRange
	}
	return idx, nil
}
