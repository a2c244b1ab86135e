//go:build !unix

package ingest

import (
	"context"
	"os"
)

func lockShared(context.Context, *os.File) (func(), error) {
	return func() {}, nil
}
