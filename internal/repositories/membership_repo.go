package repositories

import (
	"context"

	"kompello/internal/models"

	"github.com/google/uuid"
)

// MembershipRepository manages the tenant/user many-to-many relation. Add and
// remove are idempotent: adding an existing member or removing a non-member
// is a no-op.
type MembershipRepository interface {
	AddMembers(ctx context.Context, tenantID uuid.UUID, userIDs []uuid.UUID) error
	RemoveMembers(ctx context.Context, tenantID uuid.UUID, userIDs []uuid.UUID) error
	ListMembers(ctx context.Context, tenantID uuid.UUID) ([]*models.User, error)
	IsMember(ctx context.Context, tenantID, userID uuid.UUID) (bool, error)
	MemberCount(ctx context.Context, tenantID uuid.UUID) (int, error)
	MemberCounts(ctx context.Context) (map[uuid.UUID]int, error)
}

type membershipRepo struct {
	db Database
}

func NewMembershipRepo(db Database) MembershipRepository {
	return &membershipRepo{db: db}
}

// AddMembers links the given users to the tenant. Unknown user ids are
// skipped, matching the source behavior of filtering on existing users.
func (r *membershipRepo) AddMembers(ctx context.Context, tenantID uuid.UUID, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	query := `
		INSERT INTO tenant_users (tenant_id, user_id)
		SELECT $1, id FROM users WHERE id = ANY($2)
		ON CONFLICT (tenant_id, user_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, tenantID, userIDs)
	return translateError(err)
}

func (r *membershipRepo) RemoveMembers(ctx context.Context, tenantID uuid.UUID, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	query := `DELETE FROM tenant_users WHERE tenant_id = $1 AND user_id = ANY($2)`
	_, err := r.db.Exec(ctx, query, tenantID, userIDs)
	return translateError(err)
}

func (r *membershipRepo) ListMembers(ctx context.Context, tenantID uuid.UUID) ([]*models.User, error) {
	query := `
		SELECT u.id, u.email, u.password_hash, u.first_name, u.last_name, u.is_staff, u.is_superuser, u.avatar_object, u.created_at, u.updated_at
		FROM users u
		JOIN tenant_users tu ON tu.user_id = u.id
		WHERE tu.tenant_id = $1
		ORDER BY u.created_at
	`
	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *membershipRepo) IsMember(ctx context.Context, tenantID, userID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM tenant_users WHERE tenant_id = $1 AND user_id = $2)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, tenantID, userID).Scan(&exists); err != nil {
		return false, translateError(err)
	}
	return exists, nil
}

func (r *membershipRepo) MemberCount(ctx context.Context, tenantID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM tenant_users WHERE tenant_id = $1`
	var count int
	if err := r.db.QueryRow(ctx, query, tenantID).Scan(&count); err != nil {
		return 0, translateError(err)
	}
	return count, nil
}

func (r *membershipRepo) MemberCounts(ctx context.Context) (map[uuid.UUID]int, error) {
	query := `SELECT tenant_id, COUNT(*) FROM tenant_users GROUP BY tenant_id`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var tenantID uuid.UUID
		var count int
		if err := rows.Scan(&tenantID, &count); err != nil {
			return nil, err
		}
		counts[tenantID] = count
	}
	return counts, rows.Err()
}
