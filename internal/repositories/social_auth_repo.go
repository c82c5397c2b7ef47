package repositories

import (
	"context"

	"kompello/internal/models"

	"github.com/google/uuid"
)

type SocialAuthRepository interface {
	Create(ctx context.Context, link *models.SocialAuthLink) error
	// GetByProviderSubject resolves an external identity to its link. The
	// lookup is global: (provider, subject) maps to at most one user.
	GetByProviderSubject(ctx context.Context, provider, subject string) (*models.SocialAuthLink, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.SocialAuthLink, error)
	// CreateUserWithLink registers a new user and their social link in one
	// transaction, used by social auto-registration.
	CreateUserWithLink(ctx context.Context, user *models.User, link *models.SocialAuthLink) error
}

type socialAuthRepo struct {
	db Database
}

func NewSocialAuthRepo(db Database) SocialAuthRepository {
	return &socialAuthRepo{db: db}
}

func (r *socialAuthRepo) Create(ctx context.Context, link *models.SocialAuthLink) error {
	query := `
		INSERT INTO social_auth_links (id, user_id, provider, subject, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	_, err := r.db.Exec(ctx, query, link.ID, link.UserID, link.Provider, link.Subject)
	return translateError(err)
}

func (r *socialAuthRepo) GetByProviderSubject(ctx context.Context, provider, subject string) (*models.SocialAuthLink, error) {
	link := &models.SocialAuthLink{}
	query := `
		SELECT id, user_id, provider, subject, created_at
		FROM social_auth_links
		WHERE provider = $1 AND subject = $2
	`
	err := r.db.QueryRow(ctx, query, provider, subject).
		Scan(&link.ID, &link.UserID, &link.Provider, &link.Subject, &link.CreatedAt)
	if err != nil {
		return nil, translateError(err)
	}
	return link, nil
}

func (r *socialAuthRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.SocialAuthLink, error) {
	query := `
		SELECT id, user_id, provider, subject, created_at
		FROM social_auth_links
		WHERE user_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var links []*models.SocialAuthLink
	for rows.Next() {
		link := &models.SocialAuthLink{}
		if err := rows.Scan(&link.ID, &link.UserID, &link.Provider, &link.Subject, &link.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func (r *socialAuthRepo) CreateUserWithLink(ctx context.Context, user *models.User, link *models.SocialAuthLink) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	insertUser := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, is_staff, is_superuser, avatar_object, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`
	if _, err := tx.Exec(ctx, insertUser, user.ID, user.Email, user.PasswordHash,
		user.FirstName, user.LastName, user.IsStaff, user.IsSuperuser, user.AvatarObject); err != nil {
		return translateError(err)
	}

	insertLink := `
		INSERT INTO social_auth_links (id, user_id, provider, subject, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	if _, err := tx.Exec(ctx, insertLink, link.ID, link.UserID, link.Provider, link.Subject); err != nil {
		return translateError(err)
	}

	return tx.Commit(ctx)
}
