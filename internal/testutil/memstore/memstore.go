// Package memstore is an in-memory implementation of the store contracts
// used by service and handler tests. Transactions are serialised by a
// single mutex and roll back by restoring a snapshot.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/smartkids/tutoring-api/internal/db"
	"github.com/smartkids/tutoring-api/internal/store"
	"github.com/smartkids/tutoring-api/types"
)

type state struct {
	students     map[string]types.User
	tutors       map[string]types.Tutor
	enrollments  []types.Enrollment
	officeHours  map[string]types.OfficeHour
	applications map[int64]types.TutorApplication
	nextID       int64
}

func (s state) clone() state {
	out := state{
		students:     make(map[string]types.User, len(s.students)),
		tutors:       make(map[string]types.Tutor, len(s.tutors)),
		enrollments:  make([]types.Enrollment, len(s.enrollments)),
		officeHours:  make(map[string]types.OfficeHour, len(s.officeHours)),
		applications: make(map[int64]types.TutorApplication, len(s.applications)),
		nextID:       s.nextID,
	}
	for k, v := range s.students {
		out.students[k] = copyUser(v)
	}
	for k, v := range s.tutors {
		out.tutors[k] = copyTutor(v)
	}
	for i, v := range s.enrollments {
		out.enrollments[i] = copyEnrollment(v)
	}
	for k, v := range s.officeHours {
		out.officeHours[k] = copyOfficeHour(v)
	}
	for k, v := range s.applications {
		out.applications[k] = v
	}
	return out
}

// Store is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	data     state
	failures map[string]error
	txCount  int
	// identityLocks records LockIdentity calls; the store mutex already
	// serializes transactions.
	identityLocks []string
}

func New() *Store {
	return &Store{
		data: state{
			students:     map[string]types.User{},
			tutors:       map[string]types.Tutor{},
			officeHours:  map[string]types.OfficeHour{},
			applications: map[int64]types.TutorApplication{},
		},
		failures: map[string]error{},
	}
}

// FailNext makes the next call of the named operation return err.
// Operation names are the method names, e.g. "CreateEnrollment".
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// IdentityLocks returns the "username|email" pairs locked so far.
func (s *Store) IdentityLocks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.identityLocks)
}

// Transactions returns how many transactions have been started.
func (s *Store) Transactions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCount
}

func (s *Store) fail(op string) error {
	if err, ok := s.failures[op]; ok {
		delete(s.failures, op)
		return err
	}
	return nil
}

func (s *Store) id() int64 {
	s.data.nextID++
	return s.data.nextID
}

// SeedStudent inserts a student directly.
func (s *Store) SeedStudent(user types.User) types.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == 0 {
		user.ID = s.id()
	}
	user.Role = types.RoleStudent
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
		user.UpdatedAt = user.CreatedAt
	}
	s.data.students[user.Username] = copyUser(user)
	return user
}

// SeedTutor inserts a tutor directly.
func (s *Store) SeedTutor(tutor types.Tutor) types.Tutor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tutor.ID == 0 {
		tutor.ID = s.id()
	}
	tutor.Role = types.RoleTutor
	if tutor.MaxStudents <= 0 {
		tutor.MaxStudents = types.DefaultMaxStudents
	}
	if tutor.Students == nil {
		tutor.Students = []string{}
	}
	if tutor.CreatedAt.IsZero() {
		tutor.CreatedAt = time.Now().UTC()
		tutor.UpdatedAt = tutor.CreatedAt
	}
	s.data.tutors[tutor.Username] = copyTutor(tutor)
	return tutor
}

// Enrollments returns every enrollment record.
func (s *Store) Enrollments() []types.Enrollment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Enrollment, len(s.data.enrollments))
	for i, e := range s.data.enrollments {
		out[i] = copyEnrollment(e)
	}
	return out
}

// AllOfficeHours returns every office hour record ordered by id.
func (s *Store) AllOfficeHours() []types.OfficeHour {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.OfficeHour, 0, len(s.data.officeHours))
	for _, o := range s.data.officeHours {
		out = append(out, copyOfficeHour(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// InTx runs fn while holding the store lock. Any error or panic restores
// the state captured before fn started.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++

	if err := ctx.Err(); err != nil {
		return db.MapError(err)
	}

	snapshot := s.data.clone()
	defer func() {
		if p := recover(); p != nil {
			s.data = snapshot
			panic(p)
		}
		if err != nil {
			s.data = snapshot
		}
	}()

	return fn(ctx, &tx{s: s})
}

func (s *Store) GetStudent(ctx context.Context, username string) (types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetStudent"); err != nil {
		return types.User{}, err
	}
	user, ok := s.data.students[username]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return copyUser(user), nil
}

func (s *Store) ListStudents(ctx context.Context, usernames []string) ([]types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListStudents"); err != nil {
		return nil, err
	}
	users := make([]types.User, 0, len(usernames))
	for _, username := range usernames {
		if user, ok := s.data.students[username]; ok {
			users = append(users, copyUser(user))
		}
	}
	return users, nil
}

func (s *Store) SearchStudents(ctx context.Context, query string, limit int) ([]types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("SearchStudents"); err != nil {
		return nil, err
	}
	needle := strings.ToLower(query)
	users := make([]types.User, 0)
	for _, user := range s.data.students {
		if strings.Contains(strings.ToLower(user.Username), needle) {
			users = append(users, copyUser(user))
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (s *Store) GetTutor(ctx context.Context, username string) (types.Tutor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetTutor"); err != nil {
		return types.Tutor{}, err
	}
	tutor, ok := s.data.tutors[username]
	if !ok {
		return types.Tutor{}, store.ErrNotFound
	}
	return copyTutor(tutor), nil
}

func (s *Store) ListEnrollments(ctx context.Context, tutor string) ([]types.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListEnrollments"); err != nil {
		return nil, err
	}
	out := make([]types.Enrollment, 0)
	for i := len(s.data.enrollments) - 1; i >= 0; i-- {
		if e := s.data.enrollments[i]; e.TutorUsername == tutor {
			out = append(out, copyEnrollment(e))
		}
	}
	return out, nil
}

func (s *Store) GetOfficeHour(ctx context.Context, id string) (types.OfficeHour, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetOfficeHour"); err != nil {
		return types.OfficeHour{}, err
	}
	officeHour, ok := s.data.officeHours[id]
	if !ok {
		return types.OfficeHour{}, store.ErrNotFound
	}
	return copyOfficeHour(officeHour), nil
}

func (s *Store) ListOfficeHours(ctx context.Context, tutor string) ([]types.OfficeHour, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListOfficeHours"); err != nil {
		return nil, err
	}
	out := make([]types.OfficeHour, 0)
	for _, o := range s.data.officeHours {
		if o.TutorUsername == tutor {
			out = append(out, copyOfficeHour(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		if out[i].EndTime != out[j].EndTime {
			return out[i].EndTime < out[j].EndTime
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) DeleteOfficeHour(ctx context.Context, id, tutor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("DeleteOfficeHour"); err != nil {
		return err
	}
	o, ok := s.data.officeHours[id]
	if !ok || o.TutorUsername != tutor {
		return store.ErrNotFound
	}
	delete(s.data.officeHours, id)
	return nil
}

func (s *Store) GetApplication(ctx context.Context, id int64) (types.TutorApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetApplication"); err != nil {
		return types.TutorApplication{}, err
	}
	application, ok := s.data.applications[id]
	if !ok {
		return types.TutorApplication{}, store.ErrNotFound
	}
	return application, nil
}

func (s *Store) CreateApplication(ctx context.Context, application types.TutorApplication) (types.TutorApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateApplication"); err != nil {
		return types.TutorApplication{}, err
	}
	application.ID = s.id()
	application.CreatedAt = time.Now().UTC()
	s.data.applications[application.ID] = application
	return application, nil
}

// tx operates on the store while InTx holds the lock.
type tx struct {
	s *Store
}

var _ store.Tx = (*tx)(nil)

func (t *tx) GetStudentForUpdate(ctx context.Context, username string) (types.User, error) {
	if err := t.s.fail("GetStudentForUpdate"); err != nil {
		return types.User{}, err
	}
	user, ok := t.s.data.students[username]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return copyUser(user), nil
}

func (t *tx) GetTutorForUpdate(ctx context.Context, username string) (types.Tutor, error) {
	if err := t.s.fail("GetTutorForUpdate"); err != nil {
		return types.Tutor{}, err
	}
	tutor, ok := t.s.data.tutors[username]
	if !ok {
		return types.Tutor{}, store.ErrNotFound
	}
	return copyTutor(tutor), nil
}

func (t *tx) LockIdentity(ctx context.Context, username, email string) error {
	if err := t.s.fail("LockIdentity"); err != nil {
		return err
	}
	t.s.identityLocks = append(t.s.identityLocks, username+"|"+email)
	return nil
}

func (t *tx) AccountExists(ctx context.Context, username, email string) (bool, error) {
	if err := t.s.fail("AccountExists"); err != nil {
		return false, err
	}
	for _, u := range t.s.data.students {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	for _, tu := range t.s.data.tutors {
		if tu.Username == username || tu.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) CreateStudent(ctx context.Context, user types.User) (types.User, error) {
	if err := t.s.fail("CreateStudent"); err != nil {
		return types.User{}, err
	}
	if _, ok := t.s.data.students[user.Username]; ok {
		return types.User{}, duplicate("users_username_key")
	}
	now := time.Now().UTC()
	user.ID = t.s.id()
	user.Role = types.RoleStudent
	user.TutorUsername = nil
	user.CreatedAt = now
	user.UpdatedAt = now
	t.s.data.students[user.Username] = copyUser(user)
	return user, nil
}

func (t *tx) CreateTutor(ctx context.Context, tutor types.Tutor) (types.Tutor, error) {
	if err := t.s.fail("CreateTutor"); err != nil {
		return types.Tutor{}, err
	}
	if _, ok := t.s.data.tutors[tutor.Username]; ok {
		return types.Tutor{}, duplicate("tutors_username_key")
	}
	now := time.Now().UTC()
	tutor.ID = t.s.id()
	tutor.Role = types.RoleTutor
	tutor.Students = []string{}
	if tutor.MaxStudents <= 0 {
		tutor.MaxStudents = types.DefaultMaxStudents
	}
	tutor.CreatedAt = now
	tutor.UpdatedAt = now
	t.s.data.tutors[tutor.Username] = copyTutor(tutor)
	return tutor, nil
}

func (t *tx) SetStudentTutor(ctx context.Context, student string, tutor *string) error {
	if err := t.s.fail("SetStudentTutor"); err != nil {
		return err
	}
	user, ok := t.s.data.students[student]
	if !ok {
		return store.ErrNotFound
	}
	if tutor != nil {
		if _, ok := t.s.data.tutors[*tutor]; !ok {
			return &db.Error{Sentinel: db.ErrForeignKeyViolation, Cause: fmt.Errorf("tutor %q", *tutor), Constraint: "users_tutor_username_fkey"}
		}
		value := *tutor
		user.TutorUsername = &value
	} else {
		user.TutorUsername = nil
	}
	user.UpdatedAt = time.Now().UTC()
	t.s.data.students[student] = user
	return nil
}

func (t *tx) AddToRoster(ctx context.Context, tutor, student string) error {
	if err := t.s.fail("AddToRoster"); err != nil {
		return err
	}
	record, ok := t.s.data.tutors[tutor]
	if !ok || record.HasStudent(student) {
		return nil
	}
	if len(record.Students)+1 > record.MaxStudents {
		return &db.Error{Sentinel: db.ErrCheckViolation, Cause: fmt.Errorf("roster of %q is full", tutor), Constraint: "tutors_roster_capacity"}
	}
	record.Students = append(slices.Clone(record.Students), student)
	record.UpdatedAt = time.Now().UTC()
	t.s.data.tutors[tutor] = record
	return nil
}

func (t *tx) RemoveFromRoster(ctx context.Context, tutor, student string) error {
	if err := t.s.fail("RemoveFromRoster"); err != nil {
		return err
	}
	record, ok := t.s.data.tutors[tutor]
	if !ok {
		return store.ErrNotFound
	}
	record.Students = slices.DeleteFunc(slices.Clone(record.Students), func(s string) bool { return s == student })
	record.UpdatedAt = time.Now().UTC()
	t.s.data.tutors[tutor] = record
	return nil
}

func (t *tx) GetActiveEnrollment(ctx context.Context, tutor, student string) (types.Enrollment, error) {
	if err := t.s.fail("GetActiveEnrollment"); err != nil {
		return types.Enrollment{}, err
	}
	for _, e := range t.s.data.enrollments {
		if e.TutorUsername == tutor && e.StudentUsername == student && e.Status == types.EnrollmentActive {
			return copyEnrollment(e), nil
		}
	}
	return types.Enrollment{}, store.ErrNotFound
}

func (t *tx) CreateEnrollment(ctx context.Context, enrollment types.Enrollment) (types.Enrollment, error) {
	if err := t.s.fail("CreateEnrollment"); err != nil {
		return types.Enrollment{}, err
	}
	for _, e := range t.s.data.enrollments {
		if e.Status != types.EnrollmentActive || e.StudentUsername != enrollment.StudentUsername {
			continue
		}
		if e.TutorUsername == enrollment.TutorUsername {
			return types.Enrollment{}, duplicate("enrollments_active_pair_idx")
		}
		return types.Enrollment{}, duplicate("enrollments_active_student_idx")
	}
	enrollment.ID = t.s.id()
	enrollment.Status = types.EnrollmentActive
	enrollment.EndedAt = nil
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	t.s.data.enrollments = append(t.s.data.enrollments, enrollment)
	return enrollment, nil
}

func (t *tx) EndEnrollment(ctx context.Context, id int64, endedAt time.Time) error {
	if err := t.s.fail("EndEnrollment"); err != nil {
		return err
	}
	for i, e := range t.s.data.enrollments {
		if e.ID == id && e.Status == types.EnrollmentActive {
			e.Status = types.EnrollmentRemoved
			e.EndedAt = &endedAt
			t.s.data.enrollments[i] = e
			return nil
		}
	}
	return store.ErrNotFound
}

func (t *tx) DeleteOfficeHoursBySlot(ctx context.Context, tutor, startTime, endTime, timezone string) (int64, error) {
	if err := t.s.fail("DeleteOfficeHoursBySlot"); err != nil {
		return 0, err
	}
	var deleted int64
	for id, o := range t.s.data.officeHours {
		if o.TutorUsername == tutor && o.StartTime == startTime && o.EndTime == endTime && o.Timezone == timezone {
			delete(t.s.data.officeHours, id)
			deleted++
		}
	}
	return deleted, nil
}

func (t *tx) CreateOfficeHour(ctx context.Context, officeHour types.OfficeHour) (types.OfficeHour, error) {
	if err := t.s.fail("CreateOfficeHour"); err != nil {
		return types.OfficeHour{}, err
	}
	for _, o := range t.s.data.officeHours {
		if o.TutorUsername == officeHour.TutorUsername && o.StartTime == officeHour.StartTime &&
			o.EndTime == officeHour.EndTime && o.Timezone == officeHour.Timezone {
			return types.OfficeHour{}, duplicate("office_hours_slot_key")
		}
	}
	now := time.Now().UTC()
	officeHour.CreatedAt = now
	officeHour.UpdatedAt = now
	t.s.data.officeHours[officeHour.ID] = copyOfficeHour(officeHour)
	return officeHour, nil
}

func duplicate(constraint string) error {
	return &db.Error{Sentinel: db.ErrDuplicateKey, Cause: fmt.Errorf("violates %s", constraint), Constraint: constraint}
}

func copyUser(u types.User) types.User {
	if u.TutorUsername != nil {
		value := *u.TutorUsername
		u.TutorUsername = &value
	}
	return u
}

func copyTutor(t types.Tutor) types.Tutor {
	t.Students = slices.Clone(t.Students)
	if t.Students == nil {
		t.Students = []string{}
	}
	return t
}

func copyEnrollment(e types.Enrollment) types.Enrollment {
	if e.EndedAt != nil {
		value := *e.EndedAt
		e.EndedAt = &value
	}
	return e
}

func copyOfficeHour(o types.OfficeHour) types.OfficeHour {
	o.Days = slices.Clone(o.Days)
	return o
}
