package catalog

import (
	"sort"
	"strings"

	"ggufctl/pkg/types"
)

// aliases maps short model names to full Hugging Face repo ids.
// Pre-quantized checkpoints (8bit, 4bit, ...) are deliberately absent:
// the upstream converter only accepts full-precision weights.
var aliases = map[string]string{
	"mlx-deepseek-32b": "mlx-community/DeepSeek-R1-Distill-Qwen-32B",
	"llama-3b":         "mlx-community/Llama-3.2-3B-Instruct",
}

// Resolve maps an alias to its repo id; unknown names are assumed to be
// full Hugging Face repo ids already and returned unchanged.
func Resolve(nameOrRepo string) string {
	if repo, ok := aliases[strings.ToLower(strings.TrimSpace(nameOrRepo))]; ok {
		return repo
	}
	return strings.TrimSpace(nameOrRepo)
}

// IsAlias reports whether name is a known catalog alias.
func IsAlias(name string) bool {
	_, ok := aliases[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Entries returns the alias table sorted by alias.
func Entries() []types.CatalogEntry {
	out := make([]types.CatalogEntry, 0, len(aliases))
	for a, r := range aliases {
		out = append(out, types.CatalogEntry{Alias: a, Repo: r})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out
}

// ShortName returns the final path element of a repo id,
// e.g. "mlx-community/Llama-3.2-3B-Instruct" -> "Llama-3.2-3B-Instruct".
func ShortName(repo string) string {
	repo = strings.TrimSuffix(strings.TrimSpace(repo), "/")
	if i := strings.LastIndex(repo, "/"); i >= 0 {
		return repo[i+1:]
	}
	return repo
}
