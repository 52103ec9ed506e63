package health

import (
	"context"
	"database/sql"
	"time"
)

const pingTimeout = 2 * time.Second

// Status is the health payload.
type Status struct {
	OK         bool              `json:"ok"`
	Checks     map[string]string `json:"checks"`
	Workspaces int               `json:"workspaces"`
}

// Service encapsulates health-related checks.
type Service struct {
	DB         *sql.DB
	Workspaces func() int
}

// NewService constructs a new health service. db may be nil.
func NewService(db *sql.DB, workspaces func() int) *Service {
	return &Service{DB: db, Workspaces: workspaces}
}

// Status reports liveness and the state of the database connection.
func (s *Service) Status(ctx context.Context) Status {
	out := Status{OK: true, Checks: map[string]string{"database": "disabled"}}
	if s.DB != nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := s.DB.PingContext(pingCtx); err != nil {
			out.OK = false
			out.Checks["database"] = "error"
		} else {
			out.Checks["database"] = "ok"
		}
	}
	if s.Workspaces != nil {
		out.Workspaces = s.Workspaces()
	}
	return out
}
