// Package metadataindex is the Postgres-backed Metadata Index: repositories,
// blobs, repository/blob links, manifests, tags and upload sessions. It
// speaks raw SQL via lib/pq, following the donor's pkg/metadata idiom, but
// maps pq errors to typed failures instead of string-sniffing error text.
package metadataindex

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrNotFound  = errors.New("metadataindex: not found")
	ErrConflict  = errors.New("metadataindex: conflict")
	ErrIntegrity = errors.New("metadataindex: referential integrity violation")
)

// classifyErr maps a *pq.Error to one of the typed sentinels above using
// its SQLSTATE code, rather than the donor's strings.Contains(err.Error(),
// "not found") approach.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return ErrConflict
		case "23503": // foreign_key_violation
			return ErrIntegrity
		}
	}
	return err
}
