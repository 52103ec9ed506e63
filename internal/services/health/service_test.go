package health

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestStatusWithoutDatabase(t *testing.T) {
	got := NewService(nil, func() int { return 3 }).Status(context.Background())
	if !got.OK || got.Checks["database"] != "disabled" || got.Workspaces != 3 {
		t.Fatalf("unexpected status %+v", got)
	}
}

func TestStatusPingsDatabase(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("down"))

	svc := NewService(db, nil)
	if got := svc.Status(context.Background()); !got.OK || got.Checks["database"] != "ok" {
		t.Fatalf("unexpected status %+v", got)
	}
	if got := svc.Status(context.Background()); got.OK || got.Checks["database"] != "error" {
		t.Fatalf("unexpected status %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
