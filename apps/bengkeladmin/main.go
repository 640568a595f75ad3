// Command bengkeladmin wraps the performance ledger operations for operators.
//
// Exit codes: 0 success, 1 partial batch failure, 2 hard failure.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bengkel/internal/clock"
	"github.com/smallbiznis/bengkel/internal/config"
	mechanicservice "github.com/smallbiznis/bengkel/internal/mechanic/service"
	performanceservice "github.com/smallbiznis/bengkel/internal/performance/service"
	workorderservice "github.com/smallbiznis/bengkel/internal/workorder/service"
	"github.com/smallbiznis/bengkel/pkg/db"
	"github.com/smallbiznis/bengkel/pkg/log"
	"go.uber.org/zap"
)

const (
	exitOK      = 0
	exitPartial = 1
	exitHard    = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return exitHard
	}

	cfg := config.Load()
	logger, err := log.NewLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		return exitHard
	}
	defer func() { _ = logger.Sync() }()

	conn, err := db.Open(cfg, logger)
	if err != nil {
		logger.Error("cannot reach aggregate store", zap.Error(err))
		return exitHard
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		logger.Error("snowflake node", zap.Error(err))
		return exitHard
	}

	clk := clock.NewSystemClock()

	mechanicSvc := mechanicservice.NewService(mechanicservice.Params{
		DB:    conn,
		Log:   logger,
		GenID: node,
	})
	ledger := workorderservice.NewLedger(workorderservice.Params{
		DB:    conn,
		Log:   logger,
		GenID: node,
		Clock: clk,
	})

	var cfgSource *performanceservice.ReconcileConfigSource
	if holder, err := config.NewReconcileConfigHolder(); err == nil {
		cfgSource = performanceservice.NewReconcileConfigSource(holder)
	} else {
		logger.Warn("reconcile config unavailable, using defaults", zap.Error(err))
	}

	perfSvc := performanceservice.NewService(performanceservice.Params{
		DB:     conn,
		Log:    logger,
		GenID:  node,
		Clock:  clk,
		Ledger: ledger,
		Roster: mechanicSvc,
		Config: cfgSource,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "migrate-legacy":
		report, err := perfSvc.MigrateLegacyRecords(ctx)
		if err != nil {
			logger.Error("legacy migration failed", zap.Error(err))
			return exitHard
		}
		fmt.Printf("migrated=%d created=%d errors=%d\n", report.Migrated, report.Created, report.ErrorCount)
		if report.PartialFailure() {
			return exitPartial
		}
		return exitOK

	case "reconcile":
		report, err := perfSvc.ReconcileAll(ctx)
		if err != nil {
			logger.Error("reconciliation failed", zap.Error(err))
			return exitHard
		}
		fmt.Printf("updated=%d unchanged=%d errors=%d\n", report.Updated, report.Unchanged, report.ErrorCount)
		if report.PartialFailure() {
			return exitPartial
		}
		return exitOK

	case "recalculate":
		id, ok := parseID(args)
		if !ok {
			usage()
			return exitHard
		}
		aggregate, err := perfSvc.Recalculate(ctx, id)
		if err != nil {
			logger.Error("recalculation failed", zap.String("mechanic_id", id.String()), zap.Error(err))
			return exitHard
		}
		fmt.Printf("services_count=%d total_labor_cost=%s\n", aggregate.ServicesCount, aggregate.TotalLaborCost.String())
		return exitOK

	case "reset":
		id, ok := parseID(args)
		if !ok {
			usage()
			return exitHard
		}
		reason := ""
		if len(args) > 2 {
			reason = args[2]
		}
		archive, err := perfSvc.Reset(ctx, id, reason)
		if err != nil {
			logger.Error("reset failed", zap.String("mechanic_id", id.String()), zap.Error(err))
			return exitHard
		}
		if archive != nil {
			fmt.Printf("archived services_count=%d total_labor_cost=%s\n", archive.ServicesCount, archive.TotalLaborCost.String())
		} else {
			fmt.Println("nothing to archive, window reset")
		}
		return exitOK

	case "legacy-count":
		count, err := perfSvc.CountLegacyRemaining(ctx)
		if err != nil {
			logger.Error("legacy count failed", zap.Error(err))
			return exitHard
		}
		fmt.Printf("legacy_remaining=%d\n", count)
		return exitOK

	default:
		usage()
		return exitHard
	}
}

func parseID(args []string) (snowflake.ID, bool) {
	if len(args) < 2 {
		return 0, false
	}
	id, err := snowflake.ParseString(args[1])
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: bengkeladmin <command>

commands:
  migrate-legacy          archive legacy period records, provision aggregates
  reconcile               recalculate every active mechanic
  recalculate <id>        recalculate one mechanic
  reset <id> [reason]     archive and reset one mechanic
  legacy-count            count legacy records remaining`)
}
