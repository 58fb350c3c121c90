package asset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"
)

const quadOBJ = `# two triangles
o glasses
v 1 0 0
v 3 0 0
v 3 2 0
v 1 2 0
vn 0 0 1
f 1/1/1 2/2/1 3/3/1 4/4/1
`

func TestParseOBJ(t *testing.T) {
	t.Run("quad is fan triangulated and centered", func(t *testing.T) {
		m, err := ParseOBJ("glasses", strings.NewReader(quadOBJ))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, m.Name, test.ShouldEqual, "glasses")
		test.That(t, m.Indices, test.ShouldResemble, []uint32{0, 1, 2, 0, 2, 3})
		test.That(t, m.Vertices[0].X, test.ShouldAlmostEqual, -1.0)
		test.That(t, m.Vertices[2].Y, test.ShouldAlmostEqual, 1.0)
	})

	t.Run("negative references", func(t *testing.T) {
		m, err := ParseOBJ("tri", strings.NewReader("v 0 0 0\nv 1 0 0\nv 0 1 0\nf -3 -2 -1\n"))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, m.Indices, test.ShouldResemble, []uint32{0, 1, 2})
	})

	tests := []struct {
		name  string
		input string
	}{
		{name: "no faces", input: "v 0 0 0\n"},
		{name: "bad coordinate", input: "v 0 x 0\nf 1 1 1\n"},
		{name: "short vertex", input: "v 0 0\n"},
		{name: "reference out of range", input: "v 0 0 0\nf 1 2 3\n"},
		{name: "short face", input: "v 0 0 0\nv 1 0 0\nf 1 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOBJ("bad", strings.NewReader(tt.input))
			test.That(t, err, test.ShouldNotBeNil)
		})
	}

	t.Run("empty model error is a sentinel", func(t *testing.T) {
		_, err := ParseOBJ("empty", strings.NewReader("# nothing\n"))
		test.That(t, err, test.ShouldEqual, ErrEmptyModel)
	})
}

func TestOBJLoader_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aviators.obj")
	test.That(t, os.WriteFile(path, []byte(quadOBJ), 0o644), test.ShouldBeNil)

	var loader Loader = OBJLoader{}
	m, err := loader.Load(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Name, test.ShouldEqual, "aviators")

	_, err = loader.Load(filepath.Join(dir, "missing.obj"))
	test.That(t, err, test.ShouldNotBeNil)
}
