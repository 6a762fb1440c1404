package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy for the retrieval pipeline. Cache and rerank failures
// are never fatal to a search; they degrade to a miss or to the
// pre-rerank ordering. ErrAllProvidersFailed is the one hard failure a
// caller must handle.
var (
	ErrConfiguration      = errors.New("invalid configuration")
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmbedding          = errors.New("embedding failure")
	ErrRetrieval          = errors.New("retrieval failure")
	ErrCache              = errors.New("cache failure")
	ErrRerank             = errors.New("rerank failure")
	ErrAllProvidersFailed = errors.New("all providers failed")
	ErrTemporary          = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
