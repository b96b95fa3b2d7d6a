package repository

import (
	"database/sql"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/tablo-data/tablo-api/internal/models"
	"golang.org/x/crypto/bcrypt"
)

type UserRepository interface {
	CreateUser(orgID, email, password string, roles []models.UserRole) (models.User, error)
	AuthenticateUser(email, password string) (models.User, error)
	GetUserByID(userID string) (models.User, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

func (u *userRepository) CreateUser(orgID, email, password string, roles []models.UserRole) (models.User, error) {
	if len(roles) == 0 {
		roles = []models.UserRole{models.RoleMember}
	}
	if !models.IsValidRoleList(roles) {
		return models.User{}, errors.New("invalid roles")
	}
	normalized := models.EnsureDefaultRole(models.NormalizeRoles(roles))

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		OrganizationID: orgID,
		Email:          strings.TrimSpace(email),
		PasswordHash:   string(hash),
		IsActive:       true,
		Roles:          normalized,
	}

	const query = `
		INSERT INTO platform.users (organization_id, email, password_hash, is_active, roles)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	err = u.db.QueryRow(query, user.OrganizationID, user.Email, user.PasswordHash, user.IsActive, pq.Array(rolesToStrings(user.Roles))).Scan(&user.ID)
	if err != nil {
		return models.User{}, err
	}

	return user, nil
}

func (u *userRepository) AuthenticateUser(email, password string) (models.User, error) {
	user, err := u.getUser("email = $1", strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.User{}, errors.New("invalid credentials")
		}
		return models.User{}, err
	}

	if !user.IsActive {
		return models.User{}, errors.New("user is inactive")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, errors.New("invalid credentials")
	}

	return user, nil
}

func (u *userRepository) GetUserByID(userID string) (models.User, error) {
	return u.getUser("id = $1", userID)
}

func (u *userRepository) getUser(where string, arg interface{}) (models.User, error) {
	var user models.User
	var roles pq.StringArray

	query := `
		SELECT id, organization_id, email, password_hash, is_active, roles
		FROM platform.users
		WHERE ` + where + ` AND deleted_at IS NULL`
	err := u.db.QueryRow(query, arg).Scan(
		&user.ID,
		&user.OrganizationID,
		&user.Email,
		&user.PasswordHash,
		&user.IsActive,
		&roles,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}

	user.Roles = models.EnsureDefaultRole(models.NormalizeRoles(stringsToRoles(roles)))
	if !models.IsValidRoleList(user.Roles) {
		return models.User{}, errors.New("user has invalid roles")
	}
	return user, nil
}

func rolesToStrings(roles []models.UserRole) []string {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		out = append(out, string(role))
	}
	return out
}

func stringsToRoles(values []string) []models.UserRole {
	out := make([]models.UserRole, 0, len(values))
	for _, v := range values {
		out = append(out, models.UserRole(v))
	}
	return out
}
