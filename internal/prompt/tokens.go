package prompt

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// tokenModel selects the BPE used to estimate prompt size. Local models use their own
// tokenizers, so counts are approximate.
const tokenModel = "gpt-3.5-turbo"

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

// CountTokens returns the number of BPE tokens in text. The encoding is loaded once
// from the data compiled into the binary, never from the network.
func CountTokens(text string) (int, error) {
	encOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
		enc, encErr = tiktoken.EncodingForModel(tokenModel)
	})
	if encErr != nil {
		return 0, fmt.Errorf("load token encoding: %w", encErr)
	}
	return len(enc.Encode(text, nil, nil)), nil
}
