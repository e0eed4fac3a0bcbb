package store

import (
	"context"

	"github.com/XavierBriggs/fortuna/internal/apperror"
	"github.com/XavierBriggs/fortuna/internal/domain"
)

var bookmakerNames = map[domain.Source]string{
	domain.SourceReference: "Betpawa",
	domain.SourceSportybet: "SportyBet",
	domain.SourceBet9ja:    "Bet9ja",
}

// EnsureBookmaker returns the bookmaker row for a platform, creating it on
// first use so no migration is needed when a new platform appears in a run.
func (s *Store) EnsureBookmaker(ctx context.Context, source domain.Source) (domain.Bookmaker, error) {
	role := domain.RoleCompetitor
	if source == domain.SourceReference {
		role = domain.RoleReference
	}
	name, ok := bookmakerNames[source]
	if !ok {
		name = string(source)
	}

	var b domain.Bookmaker
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO bookmakers (slug, display_name, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (slug) DO UPDATE SET display_name = EXCLUDED.display_name
		RETURNING id, slug, display_name, role`,
		string(source), name, string(role),
	).Scan(&b.ID, &b.Slug, &b.DisplayName, &b.Role)
	if err != nil {
		return domain.Bookmaker{}, apperror.Storage("failed to ensure bookmaker", err)
	}
	return b, nil
}

// BookmakerBySlug looks a bookmaker up by its slug.
func (s *Store) BookmakerBySlug(ctx context.Context, slug string) (*domain.Bookmaker, error) {
	var b domain.Bookmaker
	err := s.db.QueryRowContext(ctx, `
		SELECT id, slug, display_name, role FROM bookmakers WHERE slug = $1`,
		slug,
	).Scan(&b.ID, &b.Slug, &b.DisplayName, &b.Role)
	if err != nil {
		return nil, apperror.Storage("failed to query bookmaker", err)
	}
	return &b, nil
}

// Bookmakers lists all registered bookmakers.
func (s *Store) Bookmakers(ctx context.Context) ([]domain.Bookmaker, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, slug, display_name, role FROM bookmakers ORDER BY id`)
	if err != nil {
		return nil, apperror.Storage("failed to list bookmakers", err)
	}
	defer rows.Close()

	var out []domain.Bookmaker
	for rows.Next() {
		var b domain.Bookmaker
		if err := rows.Scan(&b.ID, &b.Slug, &b.DisplayName, &b.Role); err != nil {
			return nil, apperror.Storage("failed to scan bookmaker", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
