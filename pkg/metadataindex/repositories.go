package metadataindex

import (
	"context"
	"database/sql"
	"errors"
)

type Repository struct {
	ID        int64
	Name      string
	Namespace string
	IsPublic  bool
	OwnerRef  string
}

type Service struct {
	DB *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{DB: db}
}

// EnsureRepository creates the repository row if absent and returns its id,
// following the donor's upsert-returning-id idiom.
func (s *Service) EnsureRepository(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO repositories (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET updated_at = now()
		RETURNING id
	`, name).Scan(&id)
	if err != nil {
		return 0, classifyErr(err)
	}
	return id, nil
}

// GetRepository resolves a repository by name.
func (s *Service) GetRepository(ctx context.Context, name string) (*Repository, error) {
	r := &Repository{}
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, name, namespace, is_public, owner_ref
		FROM repositories WHERE name = $1
	`, name).Scan(&r.ID, &r.Name, &r.Namespace, &r.IsPublic, &r.OwnerRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classifyErr(err)
	}
	return r, nil
}

// ListRepositories returns repository names greater than lastSeen (keyset
// pagination), capped at limit.
func (s *Service) ListRepositories(ctx context.Context, lastSeen string, limit int) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT name FROM repositories
		WHERE name > $1
		ORDER BY name ASC
		LIMIT $2
	`, lastSeen, limit)
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

// DeleteRepository removes a repository and everything cascaded from it
// (repository_blobs, manifests, tags).
func (s *Service) DeleteRepository(ctx context.Context, name string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM repositories WHERE name = $1`, name)
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
