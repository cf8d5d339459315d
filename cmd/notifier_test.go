package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/smartkids/tutoring-api/internal/mq"
	"github.com/smartkids/tutoring-api/types"
)

func TestHandleEnrollmentEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	data, _ := json.Marshal(types.EnrollmentEvent{
		Type:            types.EnrollmentCreated,
		TutorUsername:   "tina",
		StudentUsername: "sam",
		OccurredAt:      time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
	})
	if err := handleEnrollmentEvent(context.Background(), logger, mq.Message{ID: "m1", Data: data}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(buf.String(), "tutor=tina") || !strings.Contains(buf.String(), "student=sam") {
		t.Fatalf("expected event to be logged, got %q", buf.String())
	}
}

func TestHandleEnrollmentEventDiscardsBadPayloads(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	unknown, _ := json.Marshal(types.EnrollmentEvent{Type: "enrollment.paused", TutorUsername: "tina", StudentUsername: "sam"})
	partial, _ := json.Marshal(types.EnrollmentEvent{Type: types.EnrollmentEnded, TutorUsername: "tina"})

	for _, data := range [][]byte{[]byte("{"), unknown, partial} {
		if err := handleEnrollmentEvent(context.Background(), logger, mq.Message{ID: "m", Data: data}); err != nil {
			t.Fatalf("expected payload %q to be acked, got %v", data, err)
		}
	}
	if strings.Count(buf.String(), "discard") != 3 {
		t.Fatalf("expected three discard lines, got %q", buf.String())
	}
}
