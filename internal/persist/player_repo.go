package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// PlayerState is the last known state of a named player in one world.
type PlayerState struct {
	Seed     uint32
	Name     string
	Position [3]float32
	Rotation [3]float32
	Velocity [3]float32
	Visits   int32
	LastSeen time.Time
}

type PlayerRepo struct {
	db *DB
}

func NewPlayerRepo(db *DB) *PlayerRepo {
	return &PlayerRepo{db: db}
}

// Load returns the stored state for (seed, name), or nil when the player has
// never left that world.
func (r *PlayerRepo) Load(ctx context.Context, seed uint32, name string) (*PlayerState, error) {
	p := &PlayerState{Seed: seed, Name: name}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT pos_x, pos_y, pos_z, rot_x, rot_y, rot_z, vel_x, vel_y, vel_z, visits, last_seen
		 FROM players WHERE seed = $1 AND name = $2`, int64(seed), name,
	).Scan(
		&p.Position[0], &p.Position[1], &p.Position[2],
		&p.Rotation[0], &p.Rotation[1], &p.Rotation[2],
		&p.Velocity[0], &p.Velocity[1], &p.Velocity[2],
		&p.Visits, &p.LastSeen,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load player %q: %w", name, err)
	}
	return p, nil
}

const upsertPlayer = `
INSERT INTO players (seed, name, pos_x, pos_y, pos_z, rot_x, rot_y, rot_z, vel_x, vel_y, vel_z, last_seen)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
ON CONFLICT (seed, name) DO UPDATE SET
    pos_x = EXCLUDED.pos_x, pos_y = EXCLUDED.pos_y, pos_z = EXCLUDED.pos_z,
    rot_x = EXCLUDED.rot_x, rot_y = EXCLUDED.rot_y, rot_z = EXCLUDED.rot_z,
    vel_x = EXCLUDED.vel_x, vel_y = EXCLUDED.vel_y, vel_z = EXCLUDED.vel_z,
    visits = players.visits + 1,
    last_seen = now()`

func upsertArgs(p PlayerState) []any {
	return []any{
		int64(p.Seed), p.Name,
		p.Position[0], p.Position[1], p.Position[2],
		p.Rotation[0], p.Rotation[1], p.Rotation[2],
		p.Velocity[0], p.Velocity[1], p.Velocity[2],
	}
}

// Save upserts one player's state.
func (r *PlayerRepo) Save(ctx context.Context, p PlayerState) error {
	if _, err := r.db.Pool.Exec(ctx, upsertPlayer, upsertArgs(p)...); err != nil {
		return fmt.Errorf("save player %q: %w", p.Name, err)
	}
	return nil
}

// SaveAll upserts a batch of players in a single transaction.
func (r *PlayerRepo) SaveAll(ctx context.Context, players []PlayerState) error {
	if len(players) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("save players begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, p := range players {
		batch.Queue(upsertPlayer, upsertArgs(p)...)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save players: %w", err)
	}
	return tx.Commit(ctx)
}
