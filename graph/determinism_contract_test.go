// Package graph provides the core graph execution engine for agentgraph.
package graph

import (
	"testing"
)

// TestReplayMismatchDetection checks that ErrReplayMismatch is defined; it does
// not run a replay.
func TestReplayMismatchDetection(t *testing.T) {
	t.Run("replay mismatch error defined", func(t *testing.T) {
		// Verify ErrReplayMismatch is exported and defined.
		if ErrReplayMismatch == nil {
			t.Error("ErrReplayMismatch should be defined")
		}

		t.Log("✓ ErrReplayMismatch is defined for replay mismatch detection")
	})

	t.Run("hash comparison logic", func(t *testing.T) {
		recordedHash := "sha256:abc123"
		currentHash := "sha256:def456"

		if recordedHash == currentHash {
			t.Error("test hashes should differ to simulate mismatch")
		}

		t.Log("✓ Hash comparison logic validated")
	})
}

// TestMergeOrderingWithRandomDelays checks that ComputeOrderKey is
// deterministic and gives distinct keys for distinct inputs; no nodes run.
func TestMergeOrderingWithRandomDelays(t *testing.T) {
	t.Run("order key determinism", func(t *testing.T) {
		// Verify ComputeOrderKey produces consistent results.
		key1 := ComputeOrderKey("parent", 0)
		key2 := ComputeOrderKey("parent", 0)

		if key1 != key2 {
			t.Error("same inputs produced different order keys")
		}

		// Verify different edges produce different keys.
		keys := make(map[uint64]bool)
		for i := 0; i < 5; i++ {
			key := ComputeOrderKey("parent", i)
			if keys[key] {
				t.Errorf("collision detected for edge %d", i)
			}
			keys[key] = true
		}

		if len(keys) != 5 {
			t.Errorf("expected 5 unique keys, got %d", len(keys))
		}

		t.Log("✓ Order key determinism validated with 5 unique keys")
	})
}
