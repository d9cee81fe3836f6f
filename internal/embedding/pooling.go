package embedding

import "path/filepath"

// Pooling modes for ONNX model outputs.
const (
	// PoolingMean averages per-token vectors under the attention mask.
	PoolingMean = "mean"
	// PoolingNone takes a model output that is already one vector per input.
	PoolingNone = "none"
)

// ONNXOptions configures NewONNXEmbedder.
type ONNXOptions struct {
	ModelPath string
	// VocabPath defaults to vocab.txt next to ModelPath.
	VocabPath string
	// Model names the model in ModelID.
	Model string
	// Output is the graph output to read, such as last_hidden_state.
	Output string
	// Pooling is PoolingMean for per-token outputs and PoolingNone for pooled ones.
	Pooling    string
	Dimensions int
	MaxTokens  int
	CacheSize  int
}

func (o ONNXOptions) vocabPath() string {
	if o.VocabPath != "" {
		return o.VocabPath
	}
	return filepath.Join(filepath.Dir(o.ModelPath), "vocab.txt")
}

// MeanPool averages the rows of hidden (len(mask) rows of dims values) whose mask is set.
func MeanPool(hidden []float32, mask []int64, dims int) []float32 {
	out := make([]float32, dims)
	var n float32
	for i, m := range mask {
		if m == 0 || (i+1)*dims > len(hidden) {
			continue
		}
		for j, v := range hidden[i*dims : (i+1)*dims] {
			out[j] += v
		}
		n++
	}
	if n > 0 {
		for j := range out {
			out[j] /= n
		}
	}
	return out
}
