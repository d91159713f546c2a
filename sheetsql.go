package sheetsql

import (
	"context"
	"database/sql"
)

// Load copies the workbook at sourcePath into the SQLite file at
// destinationPath using the default retry policy and lock timeout.
func Load(ctx context.Context, sourcePath, destinationPath string, opts ...LoaderOption) (*RunReport, error) {
	loader := NewLoader(LoaderConfig{
		Source:          NewFileSource(sourcePath),
		DestinationPath: destinationPath,
		Retry:           DefaultRetryPolicy(),
		LockTimeout:     DefaultLockTimeout,
	}, opts...)
	return loader.Run(ctx)
}

// Open opens an existing store for reporting.
func Open(path string) (*sql.DB, error) {
	return OpenStore(path, DefaultLockTimeout)
}
