package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/leadharvest/internal/domain"
)

// SearchRepository manages search sessions and extracted contacts.
type SearchRepository struct {
	db *sqlx.DB
}

// NewSearchRepository creates a new repository.
func NewSearchRepository(db *sqlx.DB) *SearchRepository {
	return &SearchRepository{db: db}
}

// CreateSession inserts a new search session and returns it with its
// generated ID. One session is created per dispatcher invocation, before
// any external call is issued.
func (r *SearchRepository) CreateSession(ctx context.Context, query, location string) (*domain.SearchSession, error) {
	session := &domain.SearchSession{
		ID:       uuid.New().String(),
		Query:    query,
		Location: location,
	}

	insert := `
		INSERT INTO search_sessions (id, query, location, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING created_at`

	err := r.db.QueryRowxContext(ctx, insert, session.ID, session.Query, session.Location).
		Scan(&session.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// GetSession retrieves a session by ID.
func (r *SearchRepository) GetSession(ctx context.Context, id string) (*domain.SearchSession, error) {
	var session domain.SearchSession
	err := r.db.GetContext(ctx, &session,
		`SELECT id, query, location, created_at FROM search_sessions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}

// InsertContact persists one extracted contact, filling in its generated ID.
func (r *SearchRepository) InsertContact(ctx context.Context, contact *domain.Contact) error {
	contact.ID = uuid.New().String()
	insert := `
		INSERT INTO contacts (id, search_id, email, name, organization, phone, website, social_links, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`

	if _, err := r.db.ExecContext(ctx, insert,
		contact.ID, contact.SearchID, contact.Email, contact.Name,
		contact.Organization, contact.Phone, contact.Website, contact.SocialLinks); err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

// ContactsBySession returns the contacts attributed to one session,
// oldest first.
func (r *SearchRepository) ContactsBySession(ctx context.Context, sessionID string) ([]domain.Contact, error) {
	var contacts []domain.Contact
	err := r.db.SelectContext(ctx, &contacts,
		`SELECT id, search_id, email, name, organization, phone, website, social_links, created_at
		 FROM contacts WHERE search_id = $1 ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("contacts by session: %w", err)
	}
	return contacts, nil
}
