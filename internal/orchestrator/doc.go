// Package orchestrator runs a research query through a bounded state machine.
//
// A run moves through PLANNING, ROUTING, EXECUTING, VALIDATING and ANSWERING
// and ends in DONE or ABORTED:
//
//	PLANNING ──ok──▶ ROUTING ──task──▶ EXECUTING ──▶ VALIDATING ──complete──▶ ROUTING
//	    │               │                  ▲              │
//	    fail            none               └────retry─────┘
//	    ▼               ▼
//	 ABORTED        ANSWERING ──ok──▶ DONE
//	                    └──fail──▶ ABORTED
//
// Termination is guaranteed by three independent limits:
//   - a global step budget, charged once per Executor or Validator invocation
//     and checked before the step runs; exhaustion always leads to ANSWERING
//   - a per-task attempt budget; a task that reaches it is marked failed and
//     the run moves on
//   - a per-run tool quota plus detection of identical consecutive tool
//     calls for the same task, both of which refuse without calling the tool
//
// The Orchestrator is the only writer of run state. Planner, Executor,
// Validator and Answerer each make exactly one reasoning call per invocation
// and report outcomes back; the Ledger owns task status and attempt counters.
//
// Reasoning and tools are reached through ReasoningPort and ToolPort so the
// engine can be driven by real models and HTTP tools, or by scripted fakes.
package orchestrator
