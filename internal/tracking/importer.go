package tracking

import (
	"context"
)

// Importer moves completed content into the library.
type Importer interface {
	Import(ctx context.Context, td *TrackedDownload) error
}

// ImporterFunc adapts a function to Importer.
type ImporterFunc func(ctx context.Context, td *TrackedDownload) error

func (f ImporterFunc) Import(ctx context.Context, td *TrackedDownload) error { return f(ctx, td) }

// OutputPathImporter accepts any completed download that reports where its
// content lives. File handling is left to the download client's category
// setup.
var OutputPathImporter = ImporterFunc(func(_ context.Context, td *TrackedDownload) error {
	if td.Item.OutputPath == "" {
		return ErrNoOutputPath
	}
	return nil
})
