package embedding

import (
	"context"
	"fmt"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
)

// Unsupported stands in for vendors without an embeddings API.
type Unsupported struct {
	Provider string
}

func (u Unsupported) Embed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("%s: %w", u.Provider, entities.ErrUnsupportedCapability)
}

func (u Unsupported) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("%s: %w", u.Provider, entities.ErrUnsupportedCapability)
}
