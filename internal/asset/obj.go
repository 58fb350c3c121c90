// Package asset loads accessory models from disk into scene models.
package asset

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/ayusman/abhinaya/internal/scene"
)

// ErrEmptyModel is returned when a file holds no drawable triangles.
var ErrEmptyModel = errors.New("model has no triangles")

// Loader loads a model from a path. Returned models are centered on their
// local origin.
type Loader interface {
	Load(path string) (*scene.Model, error)
}

// OBJLoader reads Wavefront OBJ files.
type OBJLoader struct{}

// Load opens and parses the OBJ file at path.
func (OBJLoader) Load(path string) (*scene.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open model")
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return ParseOBJ(name, f)
}

// ParseOBJ reads positions and faces from an OBJ stream. Polygons are fan
// triangulated, and everything except "v" and "f" records is ignored.
func ParseOBJ(name string, r io.Reader) (*scene.Model, error) {
	m := &scene.Model{Name: name}

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, errors.Errorf("line %d: vertex needs 3 coordinates", line)
			}
			var xyz [3]float64
			for i := range xyz {
				v, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return nil, errors.Wrapf(err, "line %d", line)
				}
				xyz[i] = v
			}
			m.Vertices = append(m.Vertices, r3.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]})
		case "f":
			if len(fields) < 4 {
				return nil, errors.Errorf("line %d: face needs at least 3 vertices", line)
			}
			poly := make([]uint32, 0, len(fields)-1)
			for _, ref := range fields[1:] {
				idx, err := vertexRef(ref, len(m.Vertices))
				if err != nil {
					return nil, errors.Wrapf(err, "line %d", line)
				}
				poly = append(poly, idx)
			}
			for i := 1; i+1 < len(poly); i++ {
				m.Indices = append(m.Indices, poly[0], poly[i], poly[i+1])
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read model")
	}
	if len(m.Indices) == 0 {
		return nil, ErrEmptyModel
	}
	return m.Centered(), nil
}

// vertexRef resolves the position part of a face reference such as "3",
// "3/1" or "-1//2". Negative indices count back from the last vertex.
func vertexRef(ref string, n int) (uint32, error) {
	pos, _, _ := strings.Cut(ref, "/")
	i, err := strconv.Atoi(pos)
	if err != nil {
		return 0, errors.Wrapf(err, "face reference %q", ref)
	}
	if i < 0 {
		i = n + i + 1
	}
	if i < 1 || i > n {
		return 0, errors.Errorf("face reference %q out of range", ref)
	}
	return uint32(i - 1), nil
}
