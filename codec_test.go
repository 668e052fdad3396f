package voxelrender

import (
	"testing"
)

func TestCodec_RoundTrip(t *testing.T) {
	codec := testCodec(t)

	voxels := make([]VoxelID, VoxelsInChunk)
	for i := range voxels {
		voxels[i] = VoxelID(i % 1000)
	}

	encoded, err := codec.Encode(voxels)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(encoded) >= VoxelsInChunk*2 {
		t.Errorf("Expected compression to shrink a repetitive payload, got %d bytes", len(encoded))
	}

	decoded, err := codec.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	for i := range decoded {
		if decoded[i] != voxels[i] {
			t.Fatalf("Voxel %d round-tripped to %d, want %d", i, decoded[i], voxels[i])
		}
	}
}

func TestCodec_WrongSizes(t *testing.T) {
	codec := testCodec(t)

	if _, err := codec.Encode(make([]VoxelID, 3)); err == nil {
		t.Errorf("Expected an error for a short payload")
	}
	if _, err := codec.Decode([]byte{0, 1, 2}); err == nil {
		t.Errorf("Expected an error for garbage input")
	}
}

func TestCodec_DecodeTruncated(t *testing.T) {
	codec := testCodec(t)

	encoded, err := codec.Encode(make([]VoxelID, VoxelsInChunk))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if _, err := codec.Decode(encoded[:len(encoded)/2]); err == nil {
		t.Errorf("Expected an error for a truncated frame")
	}
}
