package matcher

import (
	"sync"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/face-finder/internal/detector"
)

// hnswMaxNeighbors is the M parameter of the HNSW graph.
const hnswMaxNeighbors = 16

type indexedFace struct {
	path      string
	faceIndex int
	embedding []float32
}

// RunIndex retains every face embedding detected during a match run so the
// run can be re-scored against a different reference without paying the
// detection cost again. It is replaced wholesale when a new run starts.
type RunIndex struct {
	mu       sync.RWMutex
	graph    *hnsw.Graph[int64]
	idToFace map[int64]indexedFace
	byPath   map[string][]int64
	nextID   int64
}

// NewRunIndex creates an empty run index.
func NewRunIndex() *RunIndex {
	g := hnsw.NewGraph[int64]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.CosineDistance

	return &RunIndex{
		graph:    g,
		idToFace: make(map[int64]indexedFace),
		byPath:   make(map[string][]int64),
	}
}

// AddFaces records the detected faces of one candidate image.
// Safe for concurrent use by the match workers.
func (ri *RunIndex) AddFaces(path string, faces []detector.Face) {
	ri.mu.Lock()
	defer ri.mu.Unlock()

	for _, f := range faces {
		if len(f.Embedding) == 0 {
			continue
		}
		id := ri.nextID
		ri.nextID++

		emb := Normalize(f.Embedding)
		ri.graph.Add(hnsw.MakeNode(id, emb))
		ri.idToFace[id] = indexedFace{path: path, faceIndex: f.FaceIndex, embedding: emb}
		ri.byPath[path] = append(ri.byPath[path], id)
	}
}

// Faces returns the normalized embeddings retained for a candidate path.
func (ri *RunIndex) Faces(path string) [][]float32 {
	ri.mu.RLock()
	defer ri.mu.RUnlock()

	ids := ri.byPath[path]
	out := make([][]float32, 0, len(ids))
	for _, id := range ids {
		out = append(out, ri.idToFace[id].embedding)
	}
	return out
}

// NearestFace is one entry of a nearest-faces query.
type NearestFace struct {
	ImagePath  string  `json:"image_path"`
	FaceIndex  int     `json:"face_index"`
	Similarity float64 `json:"similarity"`
}

// Nearest returns up to k retained faces closest to the query embedding,
// most similar first.
func (ri *RunIndex) Nearest(query []float32, k int) []NearestFace {
	ri.mu.RLock()
	defer ri.mu.RUnlock()

	if len(ri.idToFace) == 0 {
		return nil
	}

	neighbors := ri.graph.Search(Normalize(query), k)
	out := make([]NearestFace, 0, len(neighbors))
	for _, n := range neighbors {
		face, ok := ri.idToFace[n.Key]
		if !ok {
			continue
		}
		out = append(out, NearestFace{
			ImagePath:  face.path,
			FaceIndex:  face.faceIndex,
			Similarity: Cosine(query, n.Value),
		})
	}
	return out
}

// FaceCount returns the number of retained faces.
func (ri *RunIndex) FaceCount() int {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	return len(ri.idToFace)
}
