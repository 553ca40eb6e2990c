// Package models holds the static model registry and the downloader
// that materializes a registry entry as a local GGUF file.
package models

import (
	"fmt"
	"sort"
)

// ModelInfo describes one downloadable model.
type ModelInfo struct {
	Name        string
	Repo        string // hub repository identifier
	Filename    string // GGUF file within the repository
	SizeMB      int    // approximate download size
	Description string
}

// DownloadURL returns the hub URL for the model file.
func (m ModelInfo) DownloadURL() string {
	return fmt.Sprintf("https://huggingface.co/%s/resolve/main/%s", m.Repo, m.Filename)
}

// registry maps model names to their hub locations. Entries are
// quantized instruct models small enough for CPU inference.
var registry = map[string]ModelInfo{
	"phi-3-mini": {
		Name:        "phi-3-mini",
		Repo:        "microsoft/Phi-3-mini-4k-instruct-gguf",
		Filename:    "Phi-3-mini-4k-instruct-q4.gguf",
		SizeMB:      2300,
		Description: "Phi-3 Mini 4K Instruct, Q4 quantized. Default model.",
	},
	"qwen3-4b": {
		Name:        "qwen3-4b",
		Repo:        "Qwen/Qwen3-4B-GGUF",
		Filename:    "Qwen3-4B-Q4_K_M.gguf",
		SizeMB:      2500,
		Description: "Qwen3 4B, Q4_K_M quantized. Strong multilingual cleaning.",
	},
	"gemma-3-4b": {
		Name:        "gemma-3-4b",
		Repo:        "google/gemma-3-4b-it-qat-q4_0-gguf",
		Filename:    "gemma-3-4b-it-q4_0.gguf",
		SizeMB:      2500,
		Description: "Gemma 3 4B Instruct, Q4_0 quantized.",
	},
	"deepseek-r1": {
		Name:        "deepseek-r1",
		Repo:        "unsloth/DeepSeek-R1-Distill-Qwen-1.5B-GGUF",
		Filename:    "DeepSeek-R1-Distill-Qwen-1.5B-Q4_K_M.gguf",
		SizeMB:      1100,
		Description: "DeepSeek R1 Distill Qwen 1.5B, Q4_K_M quantized. Smallest option.",
	},
}

// Get returns the registry entry for a model name.
func Get(name string) (ModelInfo, error) {
	m, ok := registry[name]
	if !ok {
		return ModelInfo{}, &DownloadError{
			Kind:  KindNotFound,
			Model: name,
			Err:   fmt.Errorf("unknown model %q (available: %v)", name, Names()),
		}
	}
	return m, nil
}

// Names returns all registered model names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns all registry entries sorted by name.
func List() []ModelInfo {
	out := make([]ModelInfo, 0, len(registry))
	for _, name := range Names() {
		out = append(out, registry[name])
	}
	return out
}
