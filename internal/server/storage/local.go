package storage

import (
	"context"

	"github.com/dmitrijs2005/davkeeper/internal/filex"
)

// Local keeps user files on the local filesystem.
type Local struct{}

func NewLocal() *Local {
	return &Local{}
}

func (Local) EnsureDir(_ context.Context, path string) error {
	return filex.EnsureDir(path)
}

func (Local) Size(_ context.Context, path string) (int64, error) {
	return filex.DirSize(path)
}
