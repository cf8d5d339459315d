package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/smartkids/tutoring-api/internal/store"
	"github.com/smartkids/tutoring-api/types"
)

// RegisterInput is the signup payload shared by students and tutors.
type RegisterInput struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Code     string `json:"code"`
}

// RegisterTutorInput extends RegisterInput with the tutor profile.
type RegisterTutorInput struct {
	RegisterInput
	Subject      string `json:"subject" validate:"required,max=100"`
	Availability string `json:"availability" validate:"max=500"`
	Message      string `json:"message" validate:"max=2000"`
	MaxStudents  int    `json:"max_students" validate:"gte=0,lte=50"`
}

func (in *RegisterInput) normalize() {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.TrimSpace(in.Code)
}

// AccountService registers and authenticates students and tutors.
type AccountService struct {
	tx         TxRunner
	students   StudentRepository
	tutors     TutorRepository
	hasher     Hasher
	signupCode string
}

// NewAccountService constructs an AccountService. An empty signupCode
// disables the signup code check.
func NewAccountService(tx TxRunner, students StudentRepository, tutors TutorRepository, hasher Hasher, signupCode string) *AccountService {
	return &AccountService{
		tx:         tx,
		students:   students,
		tutors:     tutors,
		hasher:     hasher,
		signupCode: signupCode,
	}
}

func (s *AccountService) RegisterStudent(ctx context.Context, in RegisterInput) (types.Account, error) {
	in.normalize()
	if err := s.checkSignup(in); err != nil {
		return types.Account{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return types.Account{}, translate(err, "")
	}

	var created types.User
	err = s.tx.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := ensureAvailable(ctx, tx, in.Username, in.Email); err != nil {
			return err
		}
		created, err = tx.CreateStudent(ctx, types.User{
			Username:     in.Username,
			Email:        in.Email,
			Name:         in.Name,
			PasswordHash: hash,
		})
		return err
	})
	if err != nil {
		return types.Account{}, translate(err, "")
	}
	return studentAccount(created), nil
}

func (s *AccountService) RegisterTutor(ctx context.Context, in RegisterTutorInput) (types.Account, error) {
	in.normalize()
	in.Subject = strings.TrimSpace(in.Subject)
	in.Availability = strings.TrimSpace(in.Availability)
	in.Message = strings.TrimSpace(in.Message)
	if err := validateInput(in); err != nil {
		return types.Account{}, err
	}
	if err := s.checkCode(in.Code); err != nil {
		return types.Account{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return types.Account{}, translate(err, "")
	}

	var created types.Tutor
	err = s.tx.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := ensureAvailable(ctx, tx, in.Username, in.Email); err != nil {
			return err
		}
		created, err = tx.CreateTutor(ctx, types.Tutor{
			Username:     in.Username,
			Email:        in.Email,
			Name:         in.Name,
			PasswordHash: hash,
			Subject:      in.Subject,
			Availability: in.Availability,
			Message:      in.Message,
			MaxStudents:  in.MaxStudents,
		})
		return err
	})
	if err != nil {
		return types.Account{}, translate(err, "")
	}
	return tutorAccount(created), nil
}

// Authenticate verifies the credentials of a student or a tutor. Unknown
// usernames and wrong passwords fail the same way.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (types.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return types.Account{}, newError(KindValidation, "username and password are required")
	}

	invalid := newError(KindUnauthenticated, "invalid credentials")

	student, err := s.students.GetStudent(ctx, username)
	switch {
	case err == nil:
		if !s.hasher.Verify(password, student.PasswordHash) {
			return types.Account{}, invalid
		}
		return studentAccount(student), nil
	case !errors.Is(err, store.ErrNotFound):
		return types.Account{}, translate(err, "")
	}

	tutor, err := s.tutors.GetTutor(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Account{}, invalid
		}
		return types.Account{}, translate(err, "")
	}
	if !s.hasher.Verify(password, tutor.PasswordHash) {
		return types.Account{}, invalid
	}
	return tutorAccount(tutor), nil
}

// Lookup returns the account with the given username and role.
func (s *AccountService) Lookup(ctx context.Context, username, role string) (types.Account, error) {
	switch role {
	case types.RoleStudent:
		student, err := s.students.GetStudent(ctx, username)
		if err != nil {
			return types.Account{}, translate(err, "account not found")
		}
		return studentAccount(student), nil
	case types.RoleTutor:
		tutor, err := s.tutors.GetTutor(ctx, username)
		if err != nil {
			return types.Account{}, translate(err, "account not found")
		}
		return tutorAccount(tutor), nil
	}
	return types.Account{}, newError(KindValidation, "unknown role")
}

func (s *AccountService) checkSignup(in RegisterInput) error {
	if err := validateInput(in); err != nil {
		return err
	}
	return s.checkCode(in.Code)
}

func (s *AccountService) checkCode(code string) error {
	if s.signupCode == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(s.signupCode)) != 1 {
		return newError(KindValidation, "invalid signup code")
	}
	return nil
}

// ensureAvailable must run before the insert in the same transaction; the
// identity lock is held until commit.
func ensureAvailable(ctx context.Context, tx store.Tx, username, email string) error {
	if err := tx.LockIdentity(ctx, username, email); err != nil {
		return err
	}
	exists, err := tx.AccountExists(ctx, username, email)
	if err != nil {
		return err
	}
	if exists {
		return newError(KindConflict, "username or email already in use")
	}
	return nil
}

func studentAccount(user types.User) types.Account {
	return types.Account{
		Username:  user.Username,
		Email:     user.Email,
		Name:      user.Name,
		Role:      types.RoleStudent,
		CreatedAt: user.CreatedAt,
	}
}

func tutorAccount(tutor types.Tutor) types.Account {
	return types.Account{
		Username:  tutor.Username,
		Email:     tutor.Email,
		Name:      tutor.Name,
		Role:      types.RoleTutor,
		CreatedAt: tutor.CreatedAt,
	}
}
