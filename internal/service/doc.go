// Package service runs reachability checks and publishes their reports.
//
// Overview
// A Scanner reads the target list and checks every host with a
// probe.Checker, producing one model.Report per run. The target file is
// read again on each run, so edits are picked up by the timer mode.
//
// The Supervisor owns a Scanner and a list of Sinks. In the manual mode it
// runs once and returns. In the timer mode it schedules runs with gocron
// until its context is canceled.
//
// Data flow:
//
//	Supervisor            Scanner                probe.Checker
//	    |                    |                        |
//	    | RunOnce() -------->| Do() ----------------->| CheckAll()
//	    |                    |   targets.ReadFile     |   ping + ports per host
//	    |<----- Report ------|<------ []HostResult ---|
//	    |
//	    | render html / bom
//	    |---> DirSink | WriteSink | RepoSink
//	    |---> store.SaveReport (history enabled)
//
// Invariants:
//   - Runs never overlap, a scheduled run waits for the previous one.
//   - Each format is rendered once per run and shared by all sinks.
//   - A failed ping or a closed port is part of the report, never an error.
package service
