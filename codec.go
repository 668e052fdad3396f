package voxelrender

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Codec compresses chunk voxel payloads for at-rest storage. A single
// codec is shared by every chunk of a world map; the zstd encoder and
// decoder are safe for concurrent use through EncodeAll/DecodeAll.
type Codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func NewCodec() (*Codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &Codec{enc: enc, dec: dec}, nil
}

func (c *Codec) Encode(voxels []VoxelID) ([]byte, error) {
	if len(voxels) != VoxelsInChunk {
		return nil, fmt.Errorf("encoding chunk with %d voxels, want %d", len(voxels), VoxelsInChunk)
	}
	raw := make([]byte, len(voxels)*2)
	for i, v := range voxels {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(v))
	}
	return c.enc.EncodeAll(raw, nil), nil
}

func (c *Codec) Decode(data []byte) ([]VoxelID, error) {
	raw, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing chunk: %w", err)
	}
	if len(raw) != VoxelsInChunk*2 {
		return nil, fmt.Errorf("decoded chunk is %d bytes, want %d", len(raw), VoxelsInChunk*2)
	}
	voxels := make([]VoxelID, VoxelsInChunk)
	for i := range voxels {
		voxels[i] = VoxelID(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return voxels, nil
}
