package embed

// ONNXConfig describes a sentence-embedding model in ONNX format.
type ONNXConfig struct {
	// ModelPath is the .onnx file.
	ModelPath string
	// SharedLibraryPath points at the onnxruntime library. Empty uses the
	// platform default lookup.
	SharedLibraryPath string
	// Dimensions is the size of the model's pooled output.
	Dimensions int
	// MaxTokens is the fixed input sequence length.
	MaxTokens int
	// InputNames defaults to input_ids, attention_mask, token_type_ids.
	InputNames []string
	// OutputName defaults to "output".
	OutputName string
	// Tokenizer defaults to HashTokenizer.
	Tokenizer Tokenizer
}

func (c ONNXConfig) withDefaults() ONNXConfig {
	if c.Dimensions <= 0 {
		c.Dimensions = 768
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 256
	}
	if len(c.InputNames) == 0 {
		c.InputNames = []string{"input_ids", "attention_mask", "token_type_ids"}
	}
	if c.OutputName == "" {
		c.OutputName = "output"
	}
	if c.Tokenizer == nil {
		c.Tokenizer = HashTokenizer{}
	}
	return c
}
