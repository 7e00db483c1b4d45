package chunker

import (
	"crypto/sha256"
	"strings"

	"github.com/nexusdev/nexus-mcp/internal/storage"
	"github.com/nexusdev/nexus-mcp/internal/token"
)

const (
	// MaxLinesPerChunk is the window size for splitting file content
	MaxLinesPerChunk = 60

	// OverlapLines is carried between adjacent windows so matches near a
	// boundary stay searchable in at least one chunk
	OverlapLines = 5
)

// Chunker splits source content into fixed line windows. Windows preserve
// line provenance so search results can cite exact locations.
type Chunker struct {
	maxLines int
	overlap  int
}

// New creates a Chunker with the default window size
func New() *Chunker {
	return &Chunker{maxLines: MaxLinesPerChunk, overlap: OverlapLines}
}

// ChunkContent splits content into line windows and returns chunks ready for
// storage. Blank-only content yields no chunks.
func (c *Chunker) ChunkContent(content string, sourceID int64) []*storage.Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	lines := strings.Split(content, "\n")

	// Trailing newline produces a phantom empty last line
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	step := c.maxLines - c.overlap
	if step < 1 {
		step = 1
	}

	chunks := make([]*storage.Chunk, 0, (len(lines)+step-1)/step)
	for start := 0; start < len(lines); start += step {
		end := start + c.maxLines
		if end > len(lines) {
			end = len(lines)
		}

		body := strings.Join(lines[start:end], "\n")
		chunks = append(chunks, buildChunk(sourceID, storage.ChunkCode, body, start+1, end))

		if end == len(lines) {
			break
		}
	}

	return chunks
}

// ObservationChunk wraps a synthesized narrative as a single searchable chunk.
// Observations have no file line provenance; lines span the narrative itself.
func ObservationChunk(sourceID int64, narrative string) *storage.Chunk {
	lineCount := strings.Count(narrative, "\n") + 1
	return buildChunk(sourceID, storage.ChunkObservation, narrative, 1, lineCount)
}

func buildChunk(sourceID int64, kind storage.ChunkKind, content string, startLine, endLine int) *storage.Chunk {
	return &storage.Chunk{
		SourceID:    sourceID,
		Kind:        kind,
		Content:     content,
		ContentHash: ContentHash(content),
		TokenCount:  token.Estimate(content),
		StartLine:   startLine,
		EndLine:     endLine,
	}
}

// ContentHash computes the SHA-256 digest used for change detection
func ContentHash(content string) [32]byte {
	return sha256.Sum256([]byte(content))
}
