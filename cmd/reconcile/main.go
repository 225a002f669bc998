// Command reconcile compares equipment rows with their responsibility
// terms and optionally realigns them.
//
//	reconcile            # report drift, exit 1 when any is found
//	reconcile -repair    # repair and report what changed
//	reconcile -sqlite helpdesk.db -json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/it-helpdesk/internal/config"
	"github.com/iliyamo/it-helpdesk/internal/database"
	"github.com/iliyamo/it-helpdesk/internal/service"
)

func main() {
	var (
		repair     = flag.Bool("repair", false, "realign equipment rows to the term table")
		sqlitePath = flag.String("sqlite", "", "open this SQLite file instead of the DB_* settings")
		asJSON     = flag.Bool("json", false, "print the result as JSON")
		timeout    = flag.Duration("timeout", 5*time.Minute, "overall time limit")
	)
	flag.Parse()
	_ = godotenv.Load()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	code, err := run(*repair, *sqlitePath, *asJSON, *timeout)
	if err != nil {
		slog.Error("reconcile failed", "err", err)
		os.Exit(2)
	}
	os.Exit(code)
}

func run(repair bool, sqlitePath string, asJSON bool, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var (
		db  *database.DB
		err error
	)
	if sqlitePath != "" {
		db, err = database.OpenSQLite(ctx, sqlitePath)
	} else {
		db, err = database.Open(config.LoadDatabase())
	}
	if err != nil {
		return 0, err
	}
	defer db.Close()

	inv := service.NewInventoryService(db, nil, nil)
	if repair {
		res, err := inv.RepairConsistency(ctx, nil)
		if err != nil {
			return 0, err
		}
		if asJSON {
			return 0, json.NewEncoder(os.Stdout).Encode(res)
		}
		printDrifts(res.Found)
		fmt.Printf("repaired %d equipment item(s)\n", len(res.Repaired))
		return 0, nil
	}

	drifts, err := inv.CheckConsistency(ctx)
	if err != nil {
		return 0, err
	}
	if asJSON {
		if err := json.NewEncoder(os.Stdout).Encode(drifts); err != nil {
			return 0, err
		}
	} else {
		printDrifts(drifts)
	}
	if len(drifts) > 0 {
		return 1, nil
	}
	return 0, nil
}

func printDrifts(drifts []service.Drift) {
	if len(drifts) == 0 {
		fmt.Println("inventory is consistent")
		return
	}
	for _, d := range drifts {
		fmt.Printf("%-10s %-24s %s\n", d.InternalCode, d.Kind, d.Detail)
	}
}
