package catalog

import "testing"

func TestLayerBucketsConsistent(t *testing.T) {
	buckets := LayerBuckets()
	if len(buckets) == 0 {
		t.Fatalf("empty table")
	}
	// First bucket starts at zero, last bucket is unbounded, and each
	// bucket begins exactly where the previous one ends: together the
	// ranges cover (0, inf) with no overlaps.
	if buckets[0].MinB != 0 {
		t.Fatalf("first bucket starts at %v, want 0", buckets[0].MinB)
	}
	for i := 1; i < len(buckets); i++ {
		if buckets[i-1].MaxB == 0 {
			t.Fatalf("only the last bucket may be unbounded (bucket %d)", i-1)
		}
		if buckets[i].MinB != buckets[i-1].MaxB {
			t.Fatalf("gap/overlap between bucket %d and %d: %v != %v", i-1, i, buckets[i-1].MaxB, buckets[i].MinB)
		}
	}
	if buckets[len(buckets)-1].MaxB != 0 {
		t.Fatalf("last bucket must be unbounded")
	}
	for i, b := range buckets {
		if b.Layers <= 0 {
			t.Fatalf("bucket %d has no recommendation", i)
		}
	}
}

func TestLayersForSizeAnchors(t *testing.T) {
	// Documented anchor points: 3B-7B -> 100, 14B -> 80, 32B -> 60, 70B+ -> 40.
	cases := []struct {
		paramsB float64
		want    int
	}{
		{3, 100},
		{7, 100},
		{14, 80},
		{32, 60},
		{70, 40},
		{72, 40},
		{1.5, 100},
		{0, DefaultLayers},
		{-1, DefaultLayers},
	}
	for _, c := range cases {
		if got := LayersForSize(c.paramsB); got != c.want {
			t.Fatalf("LayersForSize(%v) = %d, want %d", c.paramsB, got, c.want)
		}
	}
}

func TestParseSize(t *testing.T) {
	cases := map[string]float64{
		"Llama-3.2-3B-Instruct":               3,
		"mlx-community/Llama-3.2-3B-Instruct": 3,
		"DeepSeek-R1-Distill-Qwen-32B":        32,
		"Llama-3.3-70B-Instruct":              70,
		"32B":                                 32,
		"Qwen2.5-1.5B":                        1.5,
		"QwQ-32B-Preview-8bit":                32, // "8bit" must not match
		"no-size-here":                        0,
	}
	for in, want := range cases {
		if got := ParseSize(in); got != want {
			t.Fatalf("ParseSize(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLayersForName(t *testing.T) {
	if got := LayersForName("mlx-community/DeepSeek-R1-Distill-Qwen-32B"); got != 60 {
		t.Fatalf("32B model: got %d, want 60", got)
	}
	if got := LayersForName("org/mystery-model"); got != DefaultLayers {
		t.Fatalf("unknown size: got %d, want %d", got, DefaultLayers)
	}
}
