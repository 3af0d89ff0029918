package service

import (
	"errors"

	"github.com/battlegrounds/tournaments/internal/docstore"
	"github.com/battlegrounds/tournaments/internal/domain"
)

// storeError maps a repository failure onto the API taxonomy.
func storeError(op, entity, id string, err error) error {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, docstore.ErrNotFound) {
		return domain.ErrNotFound(entity, id)
	}
	return domain.ErrStoreUnavailable(op, err)
}

// maxWriteAttempts bounds read-modify-write retries after version conflicts.
const maxWriteAttempts = 3
