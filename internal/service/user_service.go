package service

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/user-access-service/internal/auth"
	"github.com/spec-kit/user-access-service/internal/domain"
	"github.com/spec-kit/user-access-service/internal/events"
	"github.com/spec-kit/user-access-service/internal/repository"
	apperrors "github.com/spec-kit/user-access-service/pkg/util/errorutil"
)

const (
	minPasswordLength = 10
	defaultPageLimit  = 20
	maxPageLimit      = 100
	defaultOrderBy    = "surname"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserService manages account records.
type UserService struct {
	users      repository.UserRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository, dispatcher events.Dispatcher, logger *zap.Logger, bcryptCost int) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, dispatcher: dispatcher, logger: logger, bcryptCost: bcryptCost}
}

// RegisterInput carries the self-registration fields.
type RegisterInput struct {
	Surname    string
	Name       string
	Fathername string
	Email      string
	BirthDate  string
	Password   string
}

// ListQuery define listing parameters. Zero values take defaults.
type ListQuery struct {
	Limit   int
	Page    int
	OrderBy string
	Sort    string
}

// ListResult is one page of users.
type ListResult struct {
	Items []domain.User
	Total int
	Page  int
	Limit int
	Pages int
}

// Register creates an active account with role user.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	birthDate, err := validateRegistration(&in)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, apperrors.NewConflict("User already exists")
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewInternalError(err)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Surname:      in.Surname,
		Name:         in.Name,
		Fathername:   in.Fathername,
		BirthDate:    birthDate,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         domain.UserRoleUser,
		Status:       domain.UserStatusActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.NewConflict("User already exists")
		}
		return nil, apperrors.NewInternalError(err)
	}

	s.publish(ctx, events.Event{Type: events.EventUserRegistered, SubjectID: user.ID})
	return user, nil
}

// List returns one page of users.
func (s *UserService) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	filter, page, err := normalizeListQuery(q)
	if err != nil {
		return nil, err
	}

	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if users == nil {
		users = []domain.User{}
	}

	return &ListResult{
		Items: users,
		Total: total,
		Page:  page,
		Limit: filter.Limit,
		Pages: int(math.Ceil(float64(total) / float64(filter.Limit))),
	}, nil
}

// Get returns the user with id.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("User")
		}
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}

// Block deactivates the account. Blocking an inactive account is a no-op.
func (s *UserService) Block(ctx context.Context, actor domain.Principal, id string) (*domain.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Status == domain.UserStatusInactive {
		return user, nil
	}

	user.Status = domain.UserStatusInactive
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("User")
		}
		return nil, apperrors.NewInternalError(err)
	}

	s.publish(ctx, events.Event{
		Type:      events.EventUserBlocked,
		SubjectID: user.ID,
		Actor:     events.Actor{UserID: actor.SubjectID, Role: actor.Role},
		Payload:   events.UserBlockedPayload{SelfBlock: actor.SubjectID == user.ID},
	})
	return user, nil
}

// EnsureAdmin creates an active admin account for email unless one exists.
// An existing account with that email is promoted and reactivated.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) error {
	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if user.Role == domain.UserRoleAdmin && user.IsActive() {
			return nil
		}
		user.Role = domain.UserRoleAdmin
		user.Status = domain.UserStatusActive
		if err := s.users.Update(ctx, user); err != nil {
			return err
		}
		s.logger.Info("bootstrap admin promoted", zap.String("user_id", user.ID))
		return nil
	case !errors.Is(err, pgx.ErrNoRows):
		return err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return err
	}
	admin := &domain.User{
		Surname:      "Administrator",
		Name:         "Administrator",
		BirthDate:    time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.UserRoleAdmin,
		Status:       domain.UserStatusActive,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return err
	}
	s.logger.Info("bootstrap admin created", zap.String("user_id", admin.ID))
	return nil
}

func (s *UserService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}

func validateRegistration(in *RegisterInput) (time.Time, error) {
	in.Surname = strings.TrimSpace(in.Surname)
	in.Name = strings.TrimSpace(in.Name)
	in.Fathername = strings.TrimSpace(in.Fathername)
	in.Email = strings.TrimSpace(in.Email)

	details := map[string]any{}
	if in.Surname == "" {
		details["surname"] = "surname is required"
	}
	if in.Name == "" {
		details["name"] = "name is required"
	}
	if !emailPattern.MatchString(in.Email) {
		details["email"] = "email must be a valid address"
	}
	if len(in.Password) < minPasswordLength {
		details["password"] = "password must be at least 10 characters"
	}
	birthDate, err := time.Parse(time.DateOnly, in.BirthDate)
	if err != nil {
		details["birthDate"] = "birthDate must be YYYY-MM-DD"
	}

	if len(details) > 0 {
		return time.Time{}, apperrors.NewValidationError(details)
	}
	return birthDate, nil
}

func normalizeListQuery(q ListQuery) (repository.UserFilter, int, error) {
	limit := q.Limit
	if limit == 0 {
		limit = defaultPageLimit
	}
	page := q.Page
	if page == 0 {
		page = 1
	}
	orderBy := q.OrderBy
	if orderBy == "" {
		orderBy = defaultOrderBy
	}
	sort := strings.ToLower(q.Sort)
	if sort == "" {
		sort = "asc"
	}

	details := map[string]any{}
	if limit < 1 || limit > maxPageLimit {
		details["limit"] = "limit must be between 1 and 100"
	}
	if page < 1 {
		details["page"] = "page must be at least 1"
	}
	if _, ok := repository.SortColumn(orderBy); !ok {
		details["orderBy"] = "unsupported sort field"
	}
	if sort != "asc" && sort != "desc" {
		details["sort"] = "sort must be asc or desc"
	}
	if len(details) > 0 {
		return repository.UserFilter{}, 0, apperrors.NewValidationError(details)
	}

	return repository.UserFilter{
		OrderBy: orderBy,
		Desc:    sort == "desc",
		Limit:   limit,
		Offset:  (page - 1) * limit,
	}, page, nil
}
