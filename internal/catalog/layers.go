package catalog

import (
	"regexp"
	"strconv"
	"strings"
)

// LayerBucket maps a half-open range of parameter counts (in billions,
// MinB exclusive, MaxB inclusive; MaxB = 0 means unbounded) to a
// recommended --n-gpu-layers value.
type LayerBucket struct {
	MinB   float64
	MaxB   float64
	Layers int
}

// layerBuckets must stay non-overlapping and exhaustive over (0, inf).
var layerBuckets = []LayerBucket{
	{MinB: 0, MaxB: 7, Layers: 100},
	{MinB: 7, MaxB: 14, Layers: 80},
	{MinB: 14, MaxB: 32, Layers: 60},
	{MinB: 32, MaxB: 0, Layers: 40},
}

// DefaultLayers is used when the parameter count cannot be determined.
const DefaultLayers = 30

// LayerBuckets returns a copy of the recommendation table.
func LayerBuckets() []LayerBucket {
	out := make([]LayerBucket, len(layerBuckets))
	copy(out, layerBuckets)
	return out
}

// LayersForSize returns the recommended --n-gpu-layers value for a model
// with paramsB billion parameters. Unknown (non-positive) sizes get the
// conservative default.
func LayersForSize(paramsB float64) int {
	if paramsB <= 0 {
		return DefaultLayers
	}
	for _, b := range layerBuckets {
		if paramsB > b.MinB && (b.MaxB == 0 || paramsB <= b.MaxB) {
			return b.Layers
		}
	}
	return DefaultLayers
}

// sizeTokenRe matches parameter-count tokens like "3B", "70B" or "1.5B"
// embedded in model names. The uppercase B keeps "8bit" and friends from
// matching.
var sizeTokenRe = regexp.MustCompile(`(\d+(?:\.\d+)?)B(?:$|[^A-Za-z])`)

// ParseSize extracts a parameter count in billions from a model name or a
// bare size token ("32B"). Returns 0 when nothing matches. When several
// tokens are present the last one wins, which matches how repos are named
// (version first, size last: "Llama-3.2-3B-Instruct").
func ParseSize(name string) float64 {
	matches := sizeTokenRe.FindAllStringSubmatch(strings.TrimSpace(name), -1)
	if len(matches) == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(matches[len(matches)-1][1], 64)
	if err != nil {
		return 0
	}
	return v
}

// LayersForName resolves the size token embedded in a model name or repo id
// and returns the matching recommendation.
func LayersForName(name string) int {
	return LayersForSize(ParseSize(name))
}
