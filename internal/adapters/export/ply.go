package export

import (
	"bufio"
	"fmt"
	"io"

	"github.com/dachtraufe/traufe/internal/domain/model"
)

// maxFaceVertices bounds the face vertex count so it fits the uchar
// list size declared in the header.
const maxFaceVertices = 255

// PLY writes the merged building meshes of a job as ASCII PLY. The
// vertices stay in the LV95 meter grid so downstream mesh tools see
// true distances.
func PLY(w io.Writer, buildings []model.Building) error {
	merged := model.Mesh{}
	for i := range buildings {
		merged.Merge(buildings[i].Mesh)
	}

	faceCount := 0
	for _, f := range merged.Faces {
		if writableFace(f) {
			faceCount++
		}
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "ply")
	fmt.Fprintln(bw, "format ascii 1.0")
	fmt.Fprintf(bw, "element vertex %d\n", len(merged.Vertices))
	fmt.Fprintln(bw, "property double x")
	fmt.Fprintln(bw, "property double y")
	fmt.Fprintln(bw, "property double z")
	fmt.Fprintf(bw, "element face %d\n", faceCount)
	fmt.Fprintln(bw, "property list uchar int vertex_indices")
	fmt.Fprintln(bw, "end_header")

	for _, v := range merged.Vertices {
		fmt.Fprintf(bw, "%f %f %f\n", v[0], v[1], v[2])
	}
	for _, f := range merged.Faces {
		if !writableFace(f) {
			continue
		}
		fmt.Fprintf(bw, "%d", len(f))
		for _, idx := range f {
			fmt.Fprintf(bw, " %d", idx)
		}
		fmt.Fprintln(bw)
	}

	return bw.Flush()
}

func writableFace(f []int) bool {
	return len(f) >= 3 && len(f) <= maxFaceVertices
}
