package db

import (
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"
)

// Compile-time checks that both the real pool and the mock satisfy Pool.
var (
	_ Pool = (*pgxpool.Pool)(nil)
	_ Pool = (pgxmock.PgxPoolIface)(nil)
)

func TestPoolInterface(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new mock pool: %v", err)
	}
	defer mock.Close()

	var p Pool = mock
	mock.ExpectPing()
	if err := p.Ping(t.Context()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
