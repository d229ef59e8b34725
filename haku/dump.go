package haku

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Compiled artifacts
// ---------------------------------------------------------------------------

// ArtifactVersion is bumped whenever the bytecode format changes.
const ArtifactVersion uint32 = 1

// Artifact is a compiled brush in portable form: the bytecode chunk, the
// definition names in index order, and the frame size of the main chunk.
type Artifact struct {
	Version    uint32   `cbor:"version"`
	Chunk      []byte   `cbor:"chunk"`
	Defs       []string `cbor:"defs"`
	LocalCount uint8    `cbor:"localCount"`
}

// Artifacts encode canonically so identical brushes produce identical bytes.
var artifactEncMode cbor.EncMode

func init() {
	var err error
	artifactEncMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("haku: cbor enc mode: %v", err))
	}
}

// EncodeArtifact serializes an artifact.
func EncodeArtifact(a *Artifact) ([]byte, error) {
	return artifactEncMode.Marshal(a)
}

// DecodeArtifact deserializes an artifact, rejecting foreign versions.
func DecodeArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := cbor.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if a.Version != ArtifactVersion {
		return nil, fmt.Errorf("unsupported artifact version %d", a.Version)
	}
	if len(a.Chunk) > MaxChunkLen {
		return nil, ErrChunkTooBig
	}
	return &a, nil
}
