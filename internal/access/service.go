package access

import (
	"context"
	"errors"
	"strings"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/serviceerr"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// DeniedPolicyPermanent keeps denied emails locked out.
	DeniedPolicyPermanent = "permanent"
	// DeniedPolicyRerequest lets a denied email file a fresh pending request by logging in.
	DeniedPolicyRerequest = "rerequest"

	opServiceNew = "access.service.new"
	opLogin      = "access.login"
	opList       = "access.list"
	opApprove    = "access.approve"
	opDeny       = "access.deny"
	opDelete     = "access.delete"

	reasonNotFound = "not_found"
	queryByID      = "id = ?"
	queryByEmail   = "email = ?"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingDomain   = errors.New("allowed domain is required")
)

// ServiceConfig describes the dependencies of the access workflow.
type ServiceConfig struct {
	Database      *gorm.DB
	AllowedDomain string
	DeniedPolicy  string
	Logger        *zap.Logger
}

// Service runs the login protocol and manages the approval queue.
type Service struct {
	db            *gorm.DB
	allowedDomain string
	deniedPolicy  string
	logger        *zap.Logger
}

// LoginResult is the outcome of a login attempt, with the account when logged in.
type LoginResult struct {
	Outcome Outcome
	User    *users.User
}

// NewService constructs the access workflow.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, serviceerr.New(opServiceNew, "missing_database", serviceerr.KindInternal, errMissingDatabase)
	}
	if strings.TrimSpace(cfg.AllowedDomain) == "" {
		return nil, serviceerr.New(opServiceNew, "missing_domain", serviceerr.KindInternal, errMissingDomain)
	}
	policy := strings.ToLower(strings.TrimSpace(cfg.DeniedPolicy))
	switch policy {
	case "":
		policy = DeniedPolicyPermanent
	case DeniedPolicyPermanent, DeniedPolicyRerequest:
	default:
		return nil, serviceerr.New(opServiceNew, "invalid_denied_policy", serviceerr.KindInternal, nil)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:            cfg.Database,
		allowedDomain: cfg.AllowedDomain,
		deniedPolicy:  policy,
		logger:        logger,
	}, nil
}

// Login resolves an email into one of the login outcomes. Nothing is written for
// emails outside the allowed domain.
func (s *Service) Login(ctx context.Context, rawEmail string) (LoginResult, error) {
	email := users.NormalizeEmail(rawEmail)
	if email == "" {
		return LoginResult{}, serviceerr.New(opLogin, "missing_email", serviceerr.KindValidation, nil)
	}
	if !users.ValidEmail(email) {
		return LoginResult{}, serviceerr.New(opLogin, "invalid_email", serviceerr.KindValidation, nil)
	}
	if !users.HasDomain(email, s.allowedDomain) {
		return LoginResult{}, serviceerr.New(opLogin, "domain_not_allowed", serviceerr.KindForbidden, nil)
	}

	db := s.db.WithContext(ctx)

	var account users.User
	err := db.Where(queryByEmail, email).Take(&account).Error
	if err == nil {
		return LoginResult{Outcome: OutcomeLoggedIn, User: &account}, nil
	}
	if !serviceerr.IsNotFound(err) {
		s.logError(opLogin, "user_lookup_failed", err)
		return LoginResult{}, serviceerr.New(opLogin, "user_lookup_failed", serviceerr.KindInternal, err)
	}

	var existing Request
	err = db.Where(queryByEmail, email).Take(&existing).Error
	switch {
	case err == nil:
		return s.resolveExisting(ctx, existing)
	case !serviceerr.IsNotFound(err):
		s.logError(opLogin, "request_lookup_failed", err)
		return LoginResult{}, serviceerr.New(opLogin, "request_lookup_failed", serviceerr.KindInternal, err)
	}

	request := Request{Email: email, DisplayName: users.DeriveDisplayName(email), Status: StatusPending}
	if err := db.Create(&request).Error; err != nil && !serviceerr.IsDuplicateKey(err) {
		s.logError(opLogin, "request_insert_failed", err)
		return LoginResult{}, serviceerr.New(opLogin, "request_insert_failed", serviceerr.KindInternal, err)
	}
	s.logger.Info("access requested", zap.String("email", email))
	return LoginResult{Outcome: OutcomeRequested}, nil
}

func (s *Service) resolveExisting(ctx context.Context, existing Request) (LoginResult, error) {
	switch existing.Status {
	case StatusPending:
		return LoginResult{Outcome: OutcomePending}, nil
	case StatusDenied:
		if s.deniedPolicy != DeniedPolicyRerequest {
			return LoginResult{Outcome: OutcomeDenied}, nil
		}
	}
	// Denied under the rerequest policy, or approved but the account has since been removed.
	if err := s.setStatus(ctx, existing.ID, StatusPending); err != nil {
		s.logError(opLogin, "request_reset_failed", err, zap.Int64("request_id", existing.ID))
		return LoginResult{}, serviceerr.New(opLogin, "request_reset_failed", serviceerr.KindInternal, err)
	}
	return LoginResult{Outcome: OutcomeRequested}, nil
}

// ListRequests returns every access request, newest first.
func (s *Service) ListRequests(ctx context.Context) ([]Request, error) {
	var requests []Request
	if err := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&requests).Error; err != nil {
		s.logError(opList, "query_failed", err)
		return nil, serviceerr.New(opList, "query_failed", serviceerr.KindInternal, err)
	}
	return requests, nil
}

// Approve creates the account when absent and marks the request approved in one transaction.
func (s *Service) Approve(ctx context.Context, requestID int64) (Request, error) {
	var approved Request
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(queryByID, requestID).Take(&approved).Error; err != nil {
			if serviceerr.IsNotFound(err) {
				return serviceerr.New(opApprove, reasonNotFound, serviceerr.KindNotFound, err)
			}
			return err
		}

		var count int64
		if err := tx.Model(&users.User{}).Where(queryByEmail, approved.Email).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			account := users.User{Email: approved.Email, DisplayName: approved.DisplayName, Role: auth.RoleUser}
			if err := tx.Create(&account).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&Request{}).Where(queryByID, requestID).Update("status", StatusApproved).Error; err != nil {
			return err
		}
		approved.Status = StatusApproved
		return nil
	})
	if err != nil {
		if _, ok := serviceerr.As(err); ok {
			return Request{}, err
		}
		s.logError(opApprove, "transaction_failed", err, zap.Int64("request_id", requestID))
		return Request{}, serviceerr.New(opApprove, "transaction_failed", serviceerr.KindInternal, err)
	}
	s.logger.Info("access approved", zap.String("email", approved.Email))
	return approved, nil
}

// Deny marks the request denied.
func (s *Service) Deny(ctx context.Context, requestID int64) error {
	if err := s.requireRequest(ctx, opDeny, requestID); err != nil {
		return err
	}
	if err := s.setStatus(ctx, requestID, StatusDenied); err != nil {
		s.logError(opDeny, "update_failed", err, zap.Int64("request_id", requestID))
		return serviceerr.New(opDeny, "update_failed", serviceerr.KindInternal, err)
	}
	return nil
}

// Delete removes the request row entirely.
func (s *Service) Delete(ctx context.Context, requestID int64) error {
	result := s.db.WithContext(ctx).Where(queryByID, requestID).Delete(&Request{})
	if result.Error != nil {
		s.logError(opDelete, "delete_failed", result.Error, zap.Int64("request_id", requestID))
		return serviceerr.New(opDelete, "delete_failed", serviceerr.KindInternal, result.Error)
	}
	if result.RowsAffected == 0 {
		return serviceerr.New(opDelete, reasonNotFound, serviceerr.KindNotFound, nil)
	}
	return nil
}

func (s *Service) requireRequest(ctx context.Context, operation string, requestID int64) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Request{}).Where(queryByID, requestID).Count(&count).Error; err != nil {
		s.logError(operation, "query_failed", err, zap.Int64("request_id", requestID))
		return serviceerr.New(operation, "query_failed", serviceerr.KindInternal, err)
	}
	if count == 0 {
		return serviceerr.New(operation, reasonNotFound, serviceerr.KindNotFound, nil)
	}
	return nil
}

func (s *Service) setStatus(ctx context.Context, requestID int64, status string) error {
	return s.db.WithContext(ctx).Model(&Request{}).Where(queryByID, requestID).Update("status", status).Error
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
	s.logger.Error("access service error", attrs...)
}
