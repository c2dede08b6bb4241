package metadataindex

import (
	"context"
)

// GetTags lists tag names in repositoryID, keyset-paginated and capped at
// limit, resolving the pagination-default Open Question in favor of a
// bounded page.
func (s *Service) GetTags(ctx context.Context, repositoryID int64, lastSeen string, limit int) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT name FROM tags
		WHERE repository_id = $1 AND name > $2
		ORDER BY name ASC
		LIMIT $3
	`, repositoryID, lastSeen, limit)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// TagExists reports whether a tag is set in repositoryID, without relying
// on error-string matching.
func (s *Service) TagExists(ctx context.Context, repositoryID int64, name string) (bool, error) {
	var exists bool
	err := s.DB.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM tags WHERE repository_id = $1 AND name = $2)
	`, repositoryID, name).Scan(&exists)
	if err != nil {
		return false, classifyErr(err)
	}
	return exists, nil
}

// DeleteTag removes a single tag, independent of the manifest it points at.
func (s *Service) DeleteTag(ctx context.Context, repositoryID int64, name string) error {
	res, err := s.DB.ExecContext(ctx, `
		DELETE FROM tags WHERE repository_id = $1 AND name = $2
	`, repositoryID, name)
	if err != nil {
		return classifyErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
