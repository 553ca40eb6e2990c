package llm

import (
	"fmt"
	"strings"
)

// Family identifies a model chat-template family. It is a closed set:
// every known model name maps to exactly one family, and unmatched
// names fall back to FamilyPhi3.
type Family int

const (
	// FamilyPhi3 uses the Phi-3 Instruct format with <|user|> and
	// <|assistant|> tags.
	FamilyPhi3 Family = iota
	// FamilyChatML uses the ChatML format with <|im_start|> and
	// <|im_end|> tags (Qwen, DeepSeek).
	FamilyChatML
	// FamilyLlama3 uses the Llama-3 header format (Llama, Gemma).
	FamilyLlama3
)

// String returns the family name.
func (f Family) String() string {
	switch f {
	case FamilyChatML:
		return "chatml"
	case FamilyLlama3:
		return "llama3"
	default:
		return "phi3"
	}
}

// familyPrefixes maps model-name substrings to families, checked in
// order. Most specific entries come first so a name matching several
// (distilled models often carry two family names) resolves to the
// same family on every call.
var familyPrefixes = []struct {
	key    string
	family Family
}{
	{"phi-3", FamilyPhi3},
	{"phi3", FamilyPhi3},
	{"qwen", FamilyChatML},
	{"deepseek", FamilyChatML},
	{"llama-3", FamilyLlama3},
	{"llama-2", FamilyLlama3},
	{"llama", FamilyLlama3},
	{"gemma", FamilyLlama3},
}

// DetectFamily maps a model-name string to its prompt-format family.
// Pure and deterministic: the same name always yields the same family.
func DetectFamily(modelName string) Family {
	lower := strings.ToLower(modelName)

	for _, p := range familyPrefixes {
		if strings.Contains(lower, p.key) {
			return p.family
		}
	}
	return FamilyPhi3
}

// taskContent renders the instruction and item into the task body
// shared by all families, including the fixed reasoning steps.
func taskContent(instruction, item string) string {
	return fmt.Sprintf(`Task: %s
Input Item: %q

Step 1: Identify the unit of the Input Item (e.g., "$", "kg", "C").
Step 2: Identify the target unit from the Task.
Step 3: CRITICAL: If the units are physically the same
(e.g., Input is USD and Target is USD), DO NOT MULTIPLY.
The value must remain unchanged.
Step 4: Only apply conversion formulas if units are different (e.g., EUR to USD).
Step 5: Output JSON with keys "reasoning", "value", and "unit".`, instruction, item)
}

const llama3System = "You are a helpful assistant that extracts structured data from text."

// Format renders the full prompt for this family. Deterministic and
// side-effect free: same (family, instruction, item) always yields the
// same prompt.
func (f Family) Format(instruction, item string) string {
	content := taskContent(instruction, item)

	switch f {
	case FamilyChatML:
		return "<|im_start|>user\n" + content + "\n<|im_end|>\n<|im_start|>assistant\n"
	case FamilyLlama3:
		return "<|begin_of_text|><|start_header_id|>system<|end_header_id|>\n\n" +
			llama3System +
			"<|eot_id|><|start_header_id|>user<|end_header_id|>\n\n" +
			content +
			"<|eot_id|><|start_header_id|>assistant<|end_header_id|>\n\n"
	default:
		return "<|user|>\n" + content + "\n<|end|>\n<|assistant|>"
	}
}

// StopTokens returns the stop sequences for this family, in priority
// order.
func (f Family) StopTokens() []string {
	switch f {
	case FamilyChatML:
		return []string{"<|im_end|>", "<|im_start|>"}
	case FamilyLlama3:
		return []string{"<|eot_id|>", "<|start_header_id|>"}
	default:
		return []string{"<|end|>", "<|user|>"}
	}
}
