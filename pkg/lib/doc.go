// Package lib provides a Go SDK to run mlprobe task workers programmatically.
//
// It wires the same worker, storage and engine hosts the mlprobe CLI uses, without
// shelling out to the binary.
//
// # Quick Start
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	report, err := client.Run(ctx, "image-to-text", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, r := range report.Results {
//	    fmt.Println(r.Name, r.Error)
//	}
//
// # Engines
//
//   - [EngineDocker]: Loads each task engine in an inference runtime container.
//   - [EngineFake]: In-memory engine host for testing. No real infrastructure needed.
//
// # Harness
//
// [Client.Harness] starts one worker per task, each exporting its results under
// its own requester identity, and waits until every export is present:
//
//	exports, err := client.Harness(ctx, lib.HarnessOpts{
//	    Tasks:   []string{"text-generation"},
//	    Timeout: time.Minute,
//	})
//
// # Errors
//
// Errors can be checked with [errors.Is] against [ErrNotFound], [ErrNotValid]
// and [ErrAlreadyRunning].
package lib
