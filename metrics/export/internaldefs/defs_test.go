package internaldefs

import (
	"strings"
	"testing"
)

func TestCounterDefsUniqueAndPrefixed(t *testing.T) {
	seen := map[string]bool{}
	ids := map[int]bool{}
	for _, def := range CounterDefs {
		if !strings.HasPrefix(def.Name, "goidentity_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("unexpected counter name %q", def.Name)
		}
		if seen[def.Name] || ids[int(def.ID)] {
			t.Fatalf("duplicate counter %q", def.Name)
		}
		seen[def.Name] = true
		ids[int(def.ID)] = true
	}
}

func TestBucketHelpers(t *testing.T) {
	norm := NormalizeBuckets([]uint64{1, 2, 3})
	if norm != [8]uint64{1, 2, 3} {
		t.Fatalf("unexpected normalized buckets %v", norm)
	}
	cum := CumulativeBuckets([8]uint64{1, 1, 1, 1, 1, 1, 1, 1})
	if cum[7] != 8 || cum[0] != 1 {
		t.Fatalf("unexpected cumulative buckets %v", cum)
	}
	if len(HistogramUpperBounds)+1 != len(HistogramBoundSuffix) {
		t.Fatal("bucket bounds and suffixes disagree")
	}
}
