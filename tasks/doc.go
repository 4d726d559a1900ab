// Package tasks tracks fire-and-forget background operations so a host can
// wait for every one of them before treating a script run as finished.
//
// A Ledger is created per script run. Operations are registered with
// Register (an existing Future) or Spawn (a function run in its own
// goroutine); the Future returned by either removes the ledger entry once
// the operation settles and then reports the original outcome to whoever
// awaits it.
//
//	ledger := tasks.New(tasks.WithLogger(log))
//	tasks.Register(ledger, stdout.Write(buf))
//	...
//	if err := ledger.DrainAll(ctx); err != nil {
//	    // only ctx cancellation ends a drain early
//	}
//
// DrainAll waits a short settle delay, then repeatedly hands the whole
// pending set to the drainer as one generation and waits for it to settle,
// until a cycle starts with nothing pending. Operations registered while a
// generation is being waited on land in the next generation. A failing
// operation never fails the drain; an operation that never settles stalls
// it until ctx is done.
package tasks
