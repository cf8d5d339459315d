package services_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/smartkids/tutoring-api/internal/services"
	"github.com/smartkids/tutoring-api/internal/testutil/memstore"
	"github.com/smartkids/tutoring-api/types"
	"golang.org/x/crypto/bcrypt"
)

func newAccountFixture(t *testing.T, signupCode string) (*memstore.Store, *services.AccountService) {
	t.Helper()
	st := memstore.New()
	hasher := services.BcryptHasher{Cost: bcrypt.MinCost}
	return st, services.NewAccountService(st, st, st, hasher, signupCode)
}

func studentSignup(username string) services.RegisterInput {
	return services.RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Name:     "Student " + username,
		Password: "correct-horse",
	}
}

func TestRegisterStudentAndAuthenticate(t *testing.T) {
	st, svc := newAccountFixture(t, "")

	in := studentSignup("alice")
	in.Email = "  Alice@Example.com "
	account, err := svc.RegisterStudent(context.Background(), in)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if account.Role != types.RoleStudent || account.Username != "alice" || account.Email != "alice@example.com" {
		t.Fatalf("unexpected account: %+v", account)
	}

	stored, err := st.GetStudent(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get student: %v", err)
	}
	if stored.PasswordHash == "" || stored.PasswordHash == "correct-horse" {
		t.Fatalf("expected hashed password, got %q", stored.PasswordHash)
	}
	if stored.HasTutor() {
		t.Fatalf("new student must not have a tutor")
	}

	got, err := svc.Authenticate(context.Background(), "alice", "correct-horse")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.Username != "alice" || got.Role != types.RoleStudent {
		t.Fatalf("unexpected account: %+v", got)
	}

	_, err = svc.Authenticate(context.Background(), "alice", "wrong-password")
	assertKind(t, err, services.KindUnauthenticated)
	_, err = svc.Authenticate(context.Background(), "nobody", "correct-horse")
	assertKind(t, err, services.KindUnauthenticated)
	_, err = svc.Authenticate(context.Background(), "", "")
	assertKind(t, err, services.KindValidation)
}

func TestRegisterTutorDefaults(t *testing.T) {
	st, svc := newAccountFixture(t, "")

	account, err := svc.RegisterTutor(context.Background(), services.RegisterTutorInput{
		RegisterInput: services.RegisterInput{
			Username: "mr_smith",
			Email:    "smith@example.com",
			Name:     "Mr Smith",
			Password: "long-enough",
		},
		Subject: "Physics",
	})
	if err != nil {
		t.Fatalf("register tutor: %v", err)
	}
	if account.Role != types.RoleTutor {
		t.Fatalf("expected tutor role, got %s", account.Role)
	}

	tutor, err := st.GetTutor(context.Background(), "mr_smith")
	if err != nil {
		t.Fatalf("get tutor: %v", err)
	}
	if tutor.MaxStudents != types.DefaultMaxStudents || len(tutor.Students) != 0 || tutor.Subject != "Physics" {
		t.Fatalf("unexpected tutor: %+v", tutor)
	}

	got, err := svc.Authenticate(context.Background(), "mr_smith", "long-enough")
	if err != nil || got.Role != types.RoleTutor {
		t.Fatalf("expected tutor login, got %+v, %v", got, err)
	}

	looked, err := svc.Lookup(context.Background(), "mr_smith", types.RoleTutor)
	if err != nil || looked.Email != "smith@example.com" {
		t.Fatalf("lookup: %+v, %v", looked, err)
	}
	_, err = svc.Lookup(context.Background(), "mr_smith", types.RoleStudent)
	assertKind(t, err, services.KindNotFound)
}

func TestRegisterRejectsTakenIdentity(t *testing.T) {
	_, svc := newAccountFixture(t, "")
	if _, err := svc.RegisterStudent(context.Background(), studentSignup("alice")); err != nil {
		t.Fatalf("register: %v", err)
	}

	sameName := studentSignup("alice")
	sameName.Email = "other@example.com"
	_, err := svc.RegisterStudent(context.Background(), sameName)
	assertKind(t, err, services.KindConflict)

	sameEmail := services.RegisterTutorInput{RegisterInput: studentSignup("bob"), Subject: "Art"}
	sameEmail.Email = "alice@example.com"
	_, err = svc.RegisterTutor(context.Background(), sameEmail)
	assertKind(t, err, services.KindConflict)
}

func TestRegisterLocksIdentity(t *testing.T) {
	st, svc := newAccountFixture(t, "")

	in := studentSignup("alice")
	in.Email = "Alice@Example.com"
	if _, err := svc.RegisterStudent(context.Background(), in); err != nil {
		t.Fatalf("register: %v", err)
	}
	tutor := services.RegisterTutorInput{RegisterInput: studentSignup("bob"), Subject: "Art"}
	if _, err := svc.RegisterTutor(context.Background(), tutor); err != nil {
		t.Fatalf("register tutor: %v", err)
	}

	want := []string{"alice|alice@example.com", "bob|bob@example.com"}
	if got := st.IdentityLocks(); !slices.Equal(got, want) {
		t.Fatalf("identity locks = %v, want %v", got, want)
	}
}

func TestRegisterIdentityLockFailure(t *testing.T) {
	st, svc := newAccountFixture(t, "")
	st.FailNext("LockIdentity", errors.New("lock timeout"))

	_, err := svc.RegisterStudent(context.Background(), studentSignup("alice"))
	assertKind(t, err, services.KindInternal)

	if _, err := st.GetStudent(context.Background(), "alice"); err == nil {
		t.Fatalf("student must not be created when the identity lock fails")
	}
}

func TestRegisterValidation(t *testing.T) {
	st, svc := newAccountFixture(t, "")

	tests := []struct {
		name   string
		mutate func(in *services.RegisterInput)
		want   string
	}{
		{name: "missing username", mutate: func(in *services.RegisterInput) { in.Username = " " }, want: "username is required"},
		{name: "short username", mutate: func(in *services.RegisterInput) { in.Username = "ab" }, want: "username"},
		{name: "bad email", mutate: func(in *services.RegisterInput) { in.Email = "not-an-email" }, want: "email"},
		{name: "missing name", mutate: func(in *services.RegisterInput) { in.Name = "" }, want: "name is required"},
		{name: "short password", mutate: func(in *services.RegisterInput) { in.Password = "short" }, want: "password must be at least 8"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := studentSignup("valid_user")
			tc.mutate(&in)
			_, err := svc.RegisterStudent(context.Background(), in)
			assertKind(t, err, services.KindValidation)
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected message containing %q, got %v", tc.want, err)
			}
		})
	}

	_, err := svc.RegisterTutor(context.Background(), services.RegisterTutorInput{RegisterInput: studentSignup("tutor1")})
	assertKind(t, err, services.KindValidation)

	if got := st.Transactions(); got != 0 {
		t.Fatalf("expected no transactions, got %d", got)
	}
}

func TestRegisterSignupCode(t *testing.T) {
	_, svc := newAccountFixture(t, "SHARP2025")

	in := studentSignup("alice")
	_, err := svc.RegisterStudent(context.Background(), in)
	assertKind(t, err, services.KindValidation)

	in.Code = "wrong"
	_, err = svc.RegisterStudent(context.Background(), in)
	assertKind(t, err, services.KindValidation)

	in.Code = " SHARP2025 "
	if _, err := svc.RegisterStudent(context.Background(), in); err != nil {
		t.Fatalf("register with code: %v", err)
	}
}

func TestBcryptHasher(t *testing.T) {
	hasher := services.BcryptHasher{Cost: bcrypt.MinCost}
	hash, err := hasher.Hash("secret-value")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !hasher.Verify("secret-value", hash) {
		t.Fatalf("expected verify to succeed")
	}
	if hasher.Verify("other-value", hash) {
		t.Fatalf("expected verify to fail for wrong secret")
	}
	if hasher.Verify("secret-value", "not-a-hash") {
		t.Fatalf("expected verify to fail for malformed hash")
	}
}
