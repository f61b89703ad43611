package users

import (
	"context"
	"errors"
	"strings"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/serviceerr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opServiceNew    = "users.service.new"
	opList          = "users.list"
	opFind          = "users.find"
	opCreate        = "users.create"
	opDelete        = "users.delete"
	opUpdateRole    = "users.update_role"
	opCurrentRole   = "users.current_role"
	reasonNotFound  = "not_found"
	reasonQuery     = "query_failed"
	queryByID       = "id = ?"
	queryByEmail    = "email = ?"
	queryByNameFold = "LOWER(name) = ?"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingDomain   = errors.New("allowed domain is required")
)

// ServiceConfig describes the dependencies required for account management.
type ServiceConfig struct {
	Database      *gorm.DB
	AllowedDomain string
	Logger        *zap.Logger
}

// Service manages approved accounts.
type Service struct {
	db            *gorm.DB
	allowedDomain string
	logger        *zap.Logger
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, serviceerr.New(opServiceNew, "missing_database", serviceerr.KindInternal, errMissingDatabase)
	}
	if strings.TrimSpace(cfg.AllowedDomain) == "" {
		return nil, serviceerr.New(opServiceNew, "missing_domain", serviceerr.KindInternal, errMissingDomain)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:            cfg.Database,
		allowedDomain: cfg.AllowedDomain,
		logger:        logger,
	}, nil
}

// List returns all accounts ordered by display name.
func (s *Service) List(ctx context.Context) ([]User, error) {
	var accounts []User
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&accounts).Error; err != nil {
		s.logError(opList, reasonQuery, err)
		return nil, serviceerr.New(opList, reasonQuery, serviceerr.KindInternal, err)
	}
	return accounts, nil
}

// FindByID returns the account or a not_found error.
func (s *Service) FindByID(ctx context.Context, id int64) (User, error) {
	var account User
	err := s.db.WithContext(ctx).Where(queryByID, id).Take(&account).Error
	if serviceerr.IsNotFound(err) {
		return User{}, serviceerr.New(opFind, reasonNotFound, serviceerr.KindNotFound, err)
	}
	if err != nil {
		s.logError(opFind, reasonQuery, err, zap.Int64("user_id", id))
		return User{}, serviceerr.New(opFind, reasonQuery, serviceerr.KindInternal, err)
	}
	return account, nil
}

// LookupByEmail returns the account for a normalized email, reporting whether it exists.
func (s *Service) LookupByEmail(ctx context.Context, email string) (User, bool, error) {
	var account User
	err := s.db.WithContext(ctx).Where(queryByEmail, NormalizeEmail(email)).Take(&account).Error
	if serviceerr.IsNotFound(err) {
		return User{}, false, nil
	}
	if err != nil {
		s.logError(opFind, reasonQuery, err)
		return User{}, false, serviceerr.New(opFind, reasonQuery, serviceerr.KindInternal, err)
	}
	return account, true, nil
}

// FindByDisplayName returns the first account whose display name matches case-insensitively.
func (s *Service) FindByDisplayName(ctx context.Context, displayName string) (User, error) {
	name := strings.ToLower(strings.TrimSpace(displayName))
	if name == "" {
		return User{}, serviceerr.New(opFind, "missing_name", serviceerr.KindValidation, nil)
	}
	var account User
	err := s.db.WithContext(ctx).Where(queryByNameFold, name).Order("id ASC").Take(&account).Error
	if serviceerr.IsNotFound(err) {
		return User{}, serviceerr.New(opFind, reasonNotFound, serviceerr.KindNotFound, err)
	}
	if err != nil {
		s.logError(opFind, reasonQuery, err)
		return User{}, serviceerr.New(opFind, reasonQuery, serviceerr.KindInternal, err)
	}
	return account, nil
}

// CreateInput describes an account created directly by an admin.
type CreateInput struct {
	Email       string
	DisplayName string
	Role        string
}

// Create inserts an account, deriving the display name from the email when absent.
func (s *Service) Create(ctx context.Context, input CreateInput) (User, error) {
	email := NormalizeEmail(input.Email)
	if email == "" {
		return User{}, serviceerr.New(opCreate, "missing_email", serviceerr.KindValidation, nil)
	}
	if !ValidEmail(email) {
		return User{}, serviceerr.New(opCreate, "invalid_email", serviceerr.KindValidation, nil)
	}
	if !HasDomain(email, s.allowedDomain) {
		return User{}, serviceerr.New(opCreate, "domain_not_allowed", serviceerr.KindForbidden, nil)
	}
	role := strings.ToLower(strings.TrimSpace(input.Role))
	if role == "" {
		role = auth.RoleUser
	}
	if !ValidRole(role) {
		return User{}, serviceerr.New(opCreate, "invalid_role", serviceerr.KindValidation, nil)
	}
	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		displayName = DeriveDisplayName(email)
	}

	account := User{Email: email, DisplayName: displayName, Role: role}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		if serviceerr.IsDuplicateKey(err) {
			return User{}, serviceerr.New(opCreate, "duplicate_email", serviceerr.KindConflict, err)
		}
		s.logError(opCreate, "insert_failed", err)
		return User{}, serviceerr.New(opCreate, "insert_failed", serviceerr.KindInternal, err)
	}
	return account, nil
}

// Delete hard-deletes an account and returns the removed row.
func (s *Service) Delete(ctx context.Context, id int64) (User, error) {
	account, err := s.FindByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err := s.db.WithContext(ctx).Delete(&User{}, id).Error; err != nil {
		s.logError(opDelete, "delete_failed", err, zap.Int64("user_id", id))
		return User{}, serviceerr.New(opDelete, "delete_failed", serviceerr.KindInternal, err)
	}
	return account, nil
}

// UpdateRole switches an account between the admin and user roles.
func (s *Service) UpdateRole(ctx context.Context, id int64, role string) (User, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if !ValidRole(role) {
		return User{}, serviceerr.New(opUpdateRole, "invalid_role", serviceerr.KindValidation, nil)
	}
	account, err := s.FindByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err := s.db.WithContext(ctx).Model(&User{}).Where(queryByID, id).Update("role", role).Error; err != nil {
		s.logError(opUpdateRole, "update_failed", err, zap.Int64("user_id", id))
		return User{}, serviceerr.New(opUpdateRole, "update_failed", serviceerr.KindInternal, err)
	}
	account.Role = role
	return account, nil
}

// CurrentRole returns the stored role for the account, reporting whether it still exists.
func (s *Service) CurrentRole(ctx context.Context, id int64) (string, bool, error) {
	var account User
	err := s.db.WithContext(ctx).Select("id", "role").Where(queryByID, id).Take(&account).Error
	if serviceerr.IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		s.logError(opCurrentRole, reasonQuery, err, zap.Int64("user_id", id))
		return "", false, serviceerr.New(opCurrentRole, reasonQuery, serviceerr.KindInternal, err)
	}
	return account.Role, true, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("users service error", attrs...)
}
