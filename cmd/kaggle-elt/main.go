// Command kaggle-elt downloads Kaggle datasets described by dbt sources, loads
// them into the warehouse and runs the dataset's dbt models.
//
// Usage:
//
//	kaggle-elt run [dataset...]
//	kaggle-elt load cars vehicles
//	kaggle-elt sanitize --mapping Veh_ID=vehicle_id data.csv
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "kaggleelt/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	a.shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
