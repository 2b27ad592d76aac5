// Package events publishes run lifecycle events to NATS.
//
// Every event is published as JSON on the subject
//
//	{prefix}.{run_id}.{event}
//
// for example runs.3f2a.task_completed. Subscribers can follow a single run
// with runs.3f2a.> or all runs with runs.>.
//
// Publishing is fire-and-forget: the orchestrator logs publish errors and
// never lets them affect a run.
package events
