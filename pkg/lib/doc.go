// Package lib provides a Go SDK to run task sets concurrently with prun.
//
// This package allows applications to run tasks with per task progress, failure
// marking and cooperative cancellation without shelling out to the prun CLI binary.
//
// # Quick Start
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	run, err := client.Run(ctx, lib.RunOpts{
//	    Tasks: []lib.TaskSpec{
//	        {Name: "download", Kind: lib.TaskKindBounded, Total: 100},
//	        {Name: "index", Kind: lib.TaskKindUnbounded, Duration: 5 * time.Second},
//	    },
//	})
//
// Run blocks until every task is terminal. Task failures are part of the returned
// [RunSummary], they never make Run fail.
//
// # Cancellation
//
// Cancelling the context passed to [Client.Run] requests the cancellation of every
// running task. Bounded tasks stop on their next unit, unbounded tasks stop once
// their duration elapses.
//
// # History
//
// Every run is stored on a SQLite database (~/.prun/prun.db by default) and can be
// listed with [Client.ListRuns] and [Client.GetRun]. Set [Config].NoHistory to
// disable it.
//
// # Errors
//
// Errors can be checked with [errors.Is] against [ErrNotFound], [ErrNotValid]
// and [ErrAlreadyExists].
package lib
