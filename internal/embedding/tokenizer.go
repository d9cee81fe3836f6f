package embedding

import (
	"fmt"
	"strings"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/wordpiece"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
)

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64, err error)
}

// WordPieceTokenizer is the uncased BERT tokenizer that MiniLM sentence models were
// trained with. IDs come from the model's vocab.txt, one token per line.
type WordPieceTokenizer struct {
	tk  *tokenizer.Tokenizer
	cls int64
	sep int64
	pad int64
}

// NewWordPieceTokenizer loads the vocabulary at vocabPath.
func NewWordPieceTokenizer(vocabPath string) (*WordPieceTokenizer, error) {
	model, err := wordpiece.NewWordPieceFromFile(vocabPath, "[UNK]")
	if err != nil {
		return nil, fmt.Errorf("load vocabulary %s: %w", vocabPath, err)
	}
	tk := tokenizer.NewTokenizer(model)
	tk.WithNormalizer(normalizer.NewBertNormalizer(true, true, true, true))
	tk.WithPreTokenizer(pretokenizer.NewBertPreTokenizer())

	t := &WordPieceTokenizer{tk: tk}
	for token, dst := range map[string]*int64{"[CLS]": &t.cls, "[SEP]": &t.sep, "[PAD]": &t.pad} {
		id, ok := tk.TokenToId(token)
		if !ok {
			return nil, fmt.Errorf("vocabulary %s has no %s token", vocabPath, token)
		}
		*dst = int64(id)
	}
	return t, nil
}

// Tokenize returns [CLS] tokens [SEP] padded to maxTokens. Longer input is truncated.
func (t *WordPieceTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64, err error) {
	if maxTokens < 2 {
		return nil, nil, nil, fmt.Errorf("max tokens must be at least 2, got %d", maxTokens)
	}
	var ids []int
	if strings.TrimSpace(text) != "" {
		en, err := t.tk.EncodeSingle(text, false)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("tokenize: %w", err)
		}
		ids = en.Ids
	}
	if len(ids) > maxTokens-2 {
		ids = ids[:maxTokens-2]
	}

	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)
	for i := range inputIDs {
		inputIDs[i] = t.pad
	}
	inputIDs[0] = t.cls
	attentionMask[0] = 1
	for i, id := range ids {
		inputIDs[i+1] = int64(id)
		attentionMask[i+1] = 1
	}
	inputIDs[len(ids)+1] = t.sep
	attentionMask[len(ids)+1] = 1
	return inputIDs, attentionMask, tokenTypeIDs, nil
}
