package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/woodfish/muyu/go/internal/dbconfig"
	"github.com/woodfish/muyu/go/internal/sqlutil"
)

const defaultAssetPath = "go/internal/assets/rooms.json"

// seedRoom mirrors the JSON asset
type seedRoom struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Metadata json.RawMessage `json:"metadata"`
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type summary struct {
	total, inserted, skipped, errs int
}

func main() {
	path := defaultAssetPath
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	rooms, err := loadRooms(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(context.Background(), cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	s := seed(context.Background(), pool, rooms)
	fmt.Printf(
		"Rooms seed complete: %d total, %d inserted, %d skipped, %d errors\n",
		s.total, s.inserted, s.skipped, s.errs,
	)
}

func loadRooms(path string) ([]seedRoom, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read JSON: %w", err)
	}
	var rooms []seedRoom
	if err := json.Unmarshal(data, &rooms); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}
	return rooms, nil
}

// seed inserts rooms that are not there yet; existing ids are left alone
func seed(ctx context.Context, db execer, rooms []seedRoom) summary {
	s := summary{total: len(rooms)}

	for _, r := range rooms {
		cmdTag, err := db.Exec(ctx, `
            INSERT INTO rooms (id, name, metadata)
            VALUES ($1, $2, $3)
            ON CONFLICT (id) DO NOTHING
        `, r.ID, r.Name, sqlutil.ToNullRawMessage(r.Metadata))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting room %s: %v\n", r.ID, err)
			s.errs++
			continue
		}
		if cmdTag.RowsAffected() == 1 {
			s.inserted++
		} else {
			s.skipped++
		}
	}
	return s
}
