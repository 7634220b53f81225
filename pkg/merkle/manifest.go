package merkle

import (
	"encoding/hex"
	"fmt"

	"github.com/multiformats/go-multihash"

	"github.com/saworbit/stablechunk/pkg/chunk"
)

// chunkCID wraps a chunk's hex-encoded SHA-256 content hash as a multihash,
// base58-encoded the way content identifiers are conventionally rendered.
func chunkCID(contentSHA256Hex string) (string, error) {
	digest, err := hex.DecodeString(contentSHA256Hex)
	if err != nil {
		return "", fmt.Errorf("decode content_sha256: %w", err)
	}

	mh, err := multihash.EncodeName(digest, "sha2-256")
	if err != nil {
		return "", fmt.Errorf("encode multihash: %w", err)
	}

	return multihash.Multihash(mh).B58String(), nil
}

// ManifestCIDs derives the ordered multihash CIDs for a manifest's chunks,
// in ascending chunk index order.
func ManifestCIDs(m chunk.ChunkManifest) ([]string, error) {
	cids := make([]string, len(m.Chunks))
	for i, cm := range m.Chunks {
		cid, err := chunkCID(cm.ContentSHA256)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", cm.Index, err)
		}
		cids[i] = cid
	}
	return cids, nil
}

// BuildManifestTree builds a Merkle tree over a manifest's chunk CIDs,
// caching it under the manifest's DocID.
func (m *MerkleManager) BuildManifestTree(manifest chunk.ChunkManifest) ([][]byte, string, error) {
	cids, err := ManifestCIDs(manifest)
	if err != nil {
		return nil, "", err
	}
	if len(cids) == 0 {
		return nil, "", fmt.Errorf("cannot build tree from a manifest with no chunks")
	}

	tree, err := m.BuildAndCache(manifest.DocID, cids)
	if err != nil {
		return nil, "", err
	}

	root := GetRoot(tree)
	return [][]byte{root}, hex.EncodeToString(root), nil
}

// ComputeManifestMerkleRoot returns the hex-encoded Merkle root over a
// manifest's chunk CIDs, suitable for stamping into ChunkManifest.MerkleRoot.
func ComputeManifestMerkleRoot(manifest chunk.ChunkManifest) (string, error) {
	cids, err := ManifestCIDs(manifest)
	if err != nil {
		return "", err
	}
	if len(cids) == 0 {
		return "", fmt.Errorf("cannot compute a merkle root for a manifest with no chunks")
	}

	mm := NewMerkleManager()
	tree, err := mm.BuildTree(cids)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(GetRoot(tree)), nil
}

// VerifyManifestMerkleRoot recomputes the Merkle root over a manifest's
// chunk CIDs and compares it against the root stamped in the manifest.
func VerifyManifestMerkleRoot(manifest chunk.ChunkManifest) (bool, error) {
	if manifest.MerkleRoot == "" {
		return false, fmt.Errorf("manifest has no merkle_root to verify against")
	}

	got, err := ComputeManifestMerkleRoot(manifest)
	if err != nil {
		return false, err
	}

	return got == manifest.MerkleRoot, nil
}
