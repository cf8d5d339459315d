package services_test

import (
	"context"
	"slices"
	"testing"

	"github.com/smartkids/tutoring-api/internal/services"
	"github.com/smartkids/tutoring-api/internal/testutil/memstore"
	"github.com/smartkids/tutoring-api/types"
)

func newOfficeHoursFixture(t *testing.T) (*memstore.Store, *services.OfficeHoursService, *services.EnrollmentService) {
	t.Helper()
	st := memstore.New()
	officeHours := services.NewOfficeHoursService(st, st, st, st, discardLogger())
	enrollments := services.NewEnrollmentService(st, st, st, st, discardLogger())
	return st, officeHours, enrollments
}

func saveOfficeHours(t *testing.T, svc *services.OfficeHoursService, in services.SaveOfficeHoursInput) types.OfficeHour {
	t.Helper()
	saved, err := svc.SaveOfficeHours(context.Background(), in)
	if err != nil {
		t.Fatalf("save office hours %+v: %v", in, err)
	}
	return saved
}

func TestSaveOfficeHoursCreatesRecord(t *testing.T) {
	st, svc, _ := newOfficeHoursFixture(t)
	seedTutor(st, "t1", 3)

	saved := saveOfficeHours(t, svc, services.SaveOfficeHoursInput{
		TutorUsername: "t1",
		Days:          []string{" wednesday", "Monday", "MONDAY"},
		StartTime:     "09:00",
		EndTime:       "10:30",
		Timezone:      "America/New_York",
	})
	if saved.ID == "" {
		t.Fatalf("expected generated id")
	}
	if !slices.Equal(saved.Days, []string{"Monday", "Wednesday"}) {
		t.Fatalf("expected normalised days, got %v", saved.Days)
	}
	if saved.TutorUsername != "t1" || saved.CreatedAt.IsZero() || saved.UpdatedAt.IsZero() {
		t.Fatalf("unexpected record: %+v", saved)
	}
}

func TestSaveOfficeHoursReplacesSameSlot(t *testing.T) {
	st, svc, _ := newOfficeHoursFixture(t)
	seedTutor(st, "t1", 3)

	in := services.SaveOfficeHoursInput{
		TutorUsername: "t1",
		Days:          []string{"Monday"},
		StartTime:     "09:00",
		EndTime:       "10:00",
		Timezone:      "UTC",
	}
	first := saveOfficeHours(t, svc, in)
	in.Days = []string{"Tuesday", "Thursday"}
	second := saveOfficeHours(t, svc, in)

	all := st.AllOfficeHours()
	if len(all) != 1 {
		t.Fatalf("expected exactly one record, got %+v", all)
	}
	if all[0].ID != second.ID || all[0].ID == first.ID {
		t.Fatalf("expected the second record to replace the first")
	}
	if !slices.Equal(all[0].Days, []string{"Tuesday", "Thursday"}) {
		t.Fatalf("expected second call's days, got %v", all[0].Days)
	}

	// A different timezone is a different slot.
	in.Timezone = "Europe/London"
	saveOfficeHours(t, svc, in)
	if got := len(st.AllOfficeHours()); got != 2 {
		t.Fatalf("expected 2 records, got %d", got)
	}
}

func TestSaveOfficeHoursValidation(t *testing.T) {
	st, svc, _ := newOfficeHoursFixture(t)
	seedTutor(st, "t1", 3)

	valid := services.SaveOfficeHoursInput{
		TutorUsername: "t1",
		Days:          []string{"Monday"},
		StartTime:     "09:00",
		EndTime:       "10:00",
		Timezone:      "UTC",
	}
	tests := []struct {
		name   string
		mutate func(in *services.SaveOfficeHoursInput)
	}{
		{name: "missing tutor", mutate: func(in *services.SaveOfficeHoursInput) { in.TutorUsername = "" }},
		{name: "no days", mutate: func(in *services.SaveOfficeHoursInput) { in.Days = nil }},
		{name: "blank days", mutate: func(in *services.SaveOfficeHoursInput) { in.Days = []string{" ", ""} }},
		{name: "unknown day", mutate: func(in *services.SaveOfficeHoursInput) { in.Days = []string{"Funday"} }},
		{name: "missing start", mutate: func(in *services.SaveOfficeHoursInput) { in.StartTime = "" }},
		{name: "bad start", mutate: func(in *services.SaveOfficeHoursInput) { in.StartTime = "9am" }},
		{name: "hour out of range", mutate: func(in *services.SaveOfficeHoursInput) { in.EndTime = "24:00" }},
		{name: "end before start", mutate: func(in *services.SaveOfficeHoursInput) { in.StartTime, in.EndTime = "11:00", "10:00" }},
		{name: "empty range", mutate: func(in *services.SaveOfficeHoursInput) { in.EndTime = in.StartTime }},
		{name: "missing timezone", mutate: func(in *services.SaveOfficeHoursInput) { in.Timezone = "" }},
		{name: "bad timezone", mutate: func(in *services.SaveOfficeHoursInput) { in.Timezone = "Mars/Olympus" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			in.Days = slices.Clone(valid.Days)
			tc.mutate(&in)
			_, err := svc.SaveOfficeHours(context.Background(), in)
			assertKind(t, err, services.KindValidation)
		})
	}
	if got := st.Transactions(); got != 0 {
		t.Fatalf("validation must happen before store access, got %d transactions", got)
	}
}

func TestSaveOfficeHoursUnknownTutor(t *testing.T) {
	_, svc, _ := newOfficeHoursFixture(t)

	_, err := svc.SaveOfficeHours(context.Background(), services.SaveOfficeHoursInput{
		TutorUsername: "nobody",
		Days:          []string{"Monday"},
		StartTime:     "09:00",
		EndTime:       "10:00",
		Timezone:      "UTC",
	})
	assertKind(t, err, services.KindNotFound)
}

func TestGetOfficeHoursOrderedByStart(t *testing.T) {
	st, svc, _ := newOfficeHoursFixture(t)
	seedTutor(st, "t1", 3)
	seedTutor(st, "t2", 3)

	for _, start := range []string{"14:00", "08:30", "11:00"} {
		saveOfficeHours(t, svc, services.SaveOfficeHoursInput{
			TutorUsername: "t1",
			Days:          []string{"Friday"},
			StartTime:     start,
			EndTime:       "18:00",
			Timezone:      "UTC",
		})
	}
	saveOfficeHours(t, svc, services.SaveOfficeHoursInput{
		TutorUsername: "t2",
		Days:          []string{"Friday"},
		StartTime:     "07:00",
		EndTime:       "08:00",
		Timezone:      "UTC",
	})

	list, err := svc.GetOfficeHours(context.Background(), "t1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var starts []string
	for _, o := range list {
		starts = append(starts, o.StartTime)
	}
	if !slices.Equal(starts, []string{"08:30", "11:00", "14:00"}) {
		t.Fatalf("expected ascending start times, got %v", starts)
	}

	empty, err := svc.GetOfficeHours(context.Background(), "nobody")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty list for unknown tutor, got %v, %v", empty, err)
	}
}

func TestRemoveOfficeHour(t *testing.T) {
	st, svc, _ := newOfficeHoursFixture(t)
	seedTutor(st, "t1", 3)
	seedTutor(st, "t2", 3)

	keep := saveOfficeHours(t, svc, services.SaveOfficeHoursInput{
		TutorUsername: "t1", Days: []string{"Monday"}, StartTime: "08:00", EndTime: "09:00", Timezone: "UTC",
	})
	target := saveOfficeHours(t, svc, services.SaveOfficeHoursInput{
		TutorUsername: "t1", Days: []string{"Monday"}, StartTime: "10:00", EndTime: "11:00", Timezone: "UTC",
	})

	err := svc.RemoveOfficeHour(context.Background(), target.ID, "t2")
	assertKind(t, err, services.KindForbidden)
	if got := len(st.AllOfficeHours()); got != 2 {
		t.Fatalf("forbidden removal must not delete, have %d records", got)
	}

	if err := svc.RemoveOfficeHour(context.Background(), target.ID, "t1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	all := st.AllOfficeHours()
	if len(all) != 1 || all[0].ID != keep.ID {
		t.Fatalf("expected only %s to remain, got %+v", keep.ID, all)
	}

	err = svc.RemoveOfficeHour(context.Background(), target.ID, "t1")
	assertKind(t, err, services.KindNotFound)
}

func TestGetStudentOfficeHours(t *testing.T) {
	st, svc, enrollments := newOfficeHoursFixture(t)
	seedTutor(st, "t1", 3)
	seedStudent(st, "s1")
	seedStudent(st, "s2")
	enroll(t, enrollments, "t1", "s1")

	saveOfficeHours(t, svc, services.SaveOfficeHoursInput{
		TutorUsername: "t1", Days: []string{"Wednesday"}, StartTime: "08:00", EndTime: "09:00", Timezone: "UTC",
	})
	saveOfficeHours(t, svc, services.SaveOfficeHoursInput{
		TutorUsername: "t1", Days: []string{"Friday", "Monday"}, StartTime: "15:00", EndTime: "16:00", Timezone: "UTC",
	})
	saveOfficeHours(t, svc, services.SaveOfficeHoursInput{
		TutorUsername: "t1", Days: []string{"Monday"}, StartTime: "10:00", EndTime: "11:00", Timezone: "UTC",
	})

	list, err := svc.GetStudentOfficeHours(context.Background(), "s1")
	if err != nil {
		t.Fatalf("student office hours: %v", err)
	}
	var order []string
	for _, o := range list {
		order = append(order, o.Days[0]+" "+o.StartTime)
	}
	want := []string{"Monday 10:00", "Monday 15:00", "Wednesday 08:00"}
	if !slices.Equal(order, want) {
		t.Fatalf("expected %v, got %v", want, order)
	}

	_, err = svc.GetStudentOfficeHours(context.Background(), "s2")
	assertKind(t, err, services.KindNotFound)
	_, err = svc.GetStudentOfficeHours(context.Background(), "nobody")
	assertKind(t, err, services.KindNotFound)
}
