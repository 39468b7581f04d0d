package middleware

import (
	"context"
	"fmt"

	"github.com/aretw0/witmorph/pkg/domain"
	"github.com/aretw0/witmorph/pkg/ports"
)

// Middleware allows wrapping an Archive to add behavior.
type Middleware func(ports.Archive) ports.Archive

// Chain wraps archive so the first middleware sees each batch first.
func Chain(archive ports.Archive, mws ...Middleware) ports.Archive {
	for i := len(mws) - 1; i >= 0; i-- {
		archive = mws[i](archive)
	}
	return archive
}

func readFrom(ctx context.Context, next ports.Archive, key string) (domain.ExportBatch, error) {
	reader, ok := next.(ports.ArchiveReader)
	if !ok {
		return domain.ExportBatch{}, fmt.Errorf("archive %T cannot be read back", next)
	}
	return reader.Read(ctx, key)
}
