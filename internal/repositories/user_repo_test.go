package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"kompello/internal/models"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type UserRepoTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	repo    UserRepository
	userID  uuid.UUID
	context context.Context
}

func (suite *UserRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock

	suite.repo = NewUserRepo(mock)
	suite.userID = uuid.New()
	suite.context = context.Background()
}

func (suite *UserRepoTestSuite) TearDownTest() {
	suite.mock.Close()
}

func TestUserRepoTestSuite(t *testing.T) {
	suite.Run(t, new(UserRepoTestSuite))
}

func userRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "email", "password_hash", "first_name", "last_name",
		"is_staff", "is_superuser", "avatar_object", "created_at", "updated_at"})
}

func (suite *UserRepoTestSuite) TestCreate_Success() {
	user := &models.User{
		ID:           suite.userID,
		Email:        "alice@example.com",
		PasswordHash: "$2a$10$hash",
		FirstName:    "Alice",
		LastName:     "Smith",
	}

	suite.mock.ExpectExec(`
		INSERT INTO users \(id, email, password_hash, first_name, last_name, is_staff, is_superuser, avatar_object, created_at, updated_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, NOW\(\), NOW\(\)\)
	`).WithArgs(user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		user.IsStaff, user.IsSuperuser, user.AvatarObject).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := suite.repo.Create(suite.context, user)
	assert.NoError(suite.T(), err)
}

func (suite *UserRepoTestSuite) TestCreate_DuplicateEmail() {
	user := &models.User{
		ID:           suite.userID,
		Email:        "taken@example.com",
		PasswordHash: "$2a$10$hash",
	}

	suite.mock.ExpectExec(`
		INSERT INTO users \(id, email, password_hash, first_name, last_name, is_staff, is_superuser, avatar_object, created_at, updated_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, NOW\(\), NOW\(\)\)
	`).WithArgs(user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		user.IsStaff, user.IsSuperuser, user.AvatarObject).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	err := suite.repo.Create(suite.context, user)
	assert.ErrorIs(suite.T(), err, ErrDuplicate)
}

func (suite *UserRepoTestSuite) TestGetByEmail_Success() {
	now := time.Now()
	suite.mock.ExpectQuery(`SELECT id, email, password_hash, first_name, last_name, is_staff, is_superuser, avatar_object, created_at, updated_at FROM users WHERE email = \$1`).
		WithArgs("alice@example.com").
		WillReturnRows(userRows().
			AddRow(suite.userID, "alice@example.com", "$2a$10$hash", "Alice", "Smith", false, false, "", now, now))

	user, err := suite.repo.GetByEmail(suite.context, "alice@example.com")
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), suite.userID, user.ID)
	assert.Equal(suite.T(), "alice@example.com", user.Email)
	assert.False(suite.T(), user.IsStaff)
}

func (suite *UserRepoTestSuite) TestGetByEmail_NotFound() {
	suite.mock.ExpectQuery(`SELECT id, email, password_hash, first_name, last_name, is_staff, is_superuser, avatar_object, created_at, updated_at FROM users WHERE email = \$1`).
		WithArgs("nobody@example.com").
		WillReturnError(pgx.ErrNoRows)

	user, err := suite.repo.GetByEmail(suite.context, "nobody@example.com")
	assert.ErrorIs(suite.T(), err, ErrNotFound)
	assert.Nil(suite.T(), user)
}

func (suite *UserRepoTestSuite) TestGetByID_NotFound() {
	suite.mock.ExpectQuery(`SELECT id, email, password_hash, first_name, last_name, is_staff, is_superuser, avatar_object, created_at, updated_at FROM users WHERE id = \$1`).
		WithArgs(suite.userID).
		WillReturnError(pgx.ErrNoRows)

	user, err := suite.repo.GetByID(suite.context, suite.userID)
	assert.ErrorIs(suite.T(), err, ErrNotFound)
	assert.Nil(suite.T(), user)
}

func (suite *UserRepoTestSuite) TestUpdate_Success() {
	user := &models.User{
		ID:        suite.userID,
		Email:     "alice@example.com",
		FirstName: "Alicia",
		LastName:  "Smith",
	}

	suite.mock.ExpectExec(`
		UPDATE users
		SET email = \$1, first_name = \$2, last_name = \$3, updated_at = NOW\(\)
		WHERE id = \$4
	`).WithArgs(user.Email, user.FirstName, user.LastName, user.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := suite.repo.Update(suite.context, user)
	assert.NoError(suite.T(), err)
}

func (suite *UserRepoTestSuite) TestUpdate_NotFound() {
	user := &models.User{ID: suite.userID, Email: "ghost@example.com"}

	suite.mock.ExpectExec(`
		UPDATE users
		SET email = \$1, first_name = \$2, last_name = \$3, updated_at = NOW\(\)
		WHERE id = \$4
	`).WithArgs(user.Email, user.FirstName, user.LastName, user.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := suite.repo.Update(suite.context, user)
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *UserRepoTestSuite) TestUpdate_DuplicateEmail() {
	user := &models.User{ID: suite.userID, Email: "taken@example.com"}

	suite.mock.ExpectExec(`
		UPDATE users
		SET email = \$1, first_name = \$2, last_name = \$3, updated_at = NOW\(\)
		WHERE id = \$4
	`).WithArgs(user.Email, user.FirstName, user.LastName, user.ID).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	err := suite.repo.Update(suite.context, user)
	assert.ErrorIs(suite.T(), err, ErrDuplicate)
}

func (suite *UserRepoTestSuite) TestUpdatePassword_Success() {
	suite.mock.ExpectExec(`UPDATE users SET password_hash = \$1, updated_at = NOW\(\) WHERE id = \$2`).
		WithArgs("$2a$10$newhash", suite.userID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := suite.repo.UpdatePassword(suite.context, suite.userID, "$2a$10$newhash")
	assert.NoError(suite.T(), err)
}

func (suite *UserRepoTestSuite) TestDelete_CascadesLinksAndMemberships() {
	suite.mock.ExpectBegin()
	suite.mock.ExpectExec(`DELETE FROM social_auth_links WHERE user_id = \$1`).
		WithArgs(suite.userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	suite.mock.ExpectExec(`DELETE FROM tenant_users WHERE user_id = \$1`).
		WithArgs(suite.userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	suite.mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
		WithArgs(suite.userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	suite.mock.ExpectCommit()

	err := suite.repo.Delete(suite.context, suite.userID)
	assert.NoError(suite.T(), err)
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
}

func (suite *UserRepoTestSuite) TestDelete_NotFound() {
	suite.mock.ExpectBegin()
	suite.mock.ExpectExec(`DELETE FROM social_auth_links WHERE user_id = \$1`).
		WithArgs(suite.userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	suite.mock.ExpectExec(`DELETE FROM tenant_users WHERE user_id = \$1`).
		WithArgs(suite.userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	suite.mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
		WithArgs(suite.userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	suite.mock.ExpectRollback()

	err := suite.repo.Delete(suite.context, suite.userID)
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *UserRepoTestSuite) TestList_Success() {
	now := time.Now()
	rows := userRows().
		AddRow(uuid.New(), "a@example.com", "h1", "A", "One", false, false, "", now, now).
		AddRow(uuid.New(), "b@example.com", "h2", "B", "Two", true, false, "", now, now)

	suite.mock.ExpectQuery(`
		SELECT id, email, password_hash, first_name, last_name, is_staff, is_superuser, avatar_object, created_at, updated_at
		FROM users
		ORDER BY created_at DESC
		LIMIT \$1 OFFSET \$2
	`).WithArgs(10, 0).
		WillReturnRows(rows)

	users, err := suite.repo.List(suite.context, 10, 0)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), users, 2)
	assert.Equal(suite.T(), "a@example.com", users[0].Email)
	assert.True(suite.T(), users[1].IsStaff)
}

func (suite *UserRepoTestSuite) TestList_DatabaseError() {
	suite.mock.ExpectQuery(`
		SELECT id, email, password_hash, first_name, last_name, is_staff, is_superuser, avatar_object, created_at, updated_at
		FROM users
		ORDER BY created_at DESC
		LIMIT \$1 OFFSET \$2
	`).WithArgs(10, 0).
		WillReturnError(errors.New("database connection failed"))

	users, err := suite.repo.List(suite.context, 10, 0)
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), users)
}
