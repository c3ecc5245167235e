package persist

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alienworlds/engine/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// Set WORLDS_TEST_DSN to a disposable database to run these.
func testDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("WORLDS_TEST_DSN")
	if dsn == "" {
		t.Skip("WORLDS_TEST_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := NewDB(ctx, config.DatabaseConfig{DSN: dsn, MaxOpenConns: 2, MaxIdleConns: 1}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(db.Close)
	if v, err := db.Migrate(ctx); err != nil || v < 1 {
		t.Fatalf("migrate: version %d, %v", v, err)
	}
	if _, err := db.Pool.Exec(ctx, `DELETE FROM players WHERE seed = 99`); err != nil {
		t.Fatal(err)
	}
	return db
}

func TestPlayerRepoRoundTrip(t *testing.T) {
	db := testDB(t)
	repo := NewPlayerRepo(db)
	ctx := context.Background()

	got, err := repo.Load(ctx, 99, "ted")
	if err != nil || got != nil {
		t.Fatalf("unknown player: got %+v err %v", got, err)
	}

	p := PlayerState{Seed: 99, Name: "ted", Position: [3]float32{1, 2, 3}, Rotation: [3]float32{0, 0.5, 0}}
	if err := repo.Save(ctx, p); err != nil {
		t.Fatal(err)
	}
	p.Position = [3]float32{4, 5, 6}
	if err := repo.SaveAll(ctx, []PlayerState{p, {Seed: 99, Name: "bill"}}); err != nil {
		t.Fatal(err)
	}

	got, err = repo.Load(ctx, 99, "ted")
	if err != nil || got == nil {
		t.Fatalf("load: %+v %v", got, err)
	}
	if got.Position != p.Position || got.Rotation != p.Rotation {
		t.Errorf("state not stored: %+v", got)
	}
	if got.Visits != 2 {
		t.Errorf("visits %d, want 2", got.Visits)
	}
}

func TestGooseLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := gooseLogger{log: zap.New(core).Sugar()}
	l.Printf("OK   %s", "00001_players.sql")
	l.Fatalf("failed to open %s", "db")

	entries := logs.AllUntimed()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != zap.DebugLevel || entries[0].Message != "OK   00001_players.sql" {
		t.Errorf("printf entry %+v", entries[0].Entry)
	}
	if entries[1].Level != zap.ErrorLevel {
		t.Errorf("fatalf should log at error, got %v", entries[1].Level)
	}
}
