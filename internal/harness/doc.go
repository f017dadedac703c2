// Package harness records sessions from YAML scenarios and checks them.
//
// A scenario loads one or more scripts into a fresh context, then runs a
// list of steps against the recording session: calls of global functions,
// global assignments and explicit snapshots. Each step can state the value
// it expects back or the exception it expects to escape.
//
// Every run is recorded with fixed host inputs (see testutil.DefaultInputs)
// and a session id derived from the scenario name, so the emitted text log
// is byte-identical across runs and can be compared with goldie. After
// recording, the log is replayed on a host with different inputs; the run
// fails if the replay diverges or consults the host clock.
//
// Example scenario:
//
//	name: sum-range
//	description: sums a generated range
//	scripts:
//	  - uri: main.rw
//	    source: |
//	      function range
//	      function sum
//	steps:
//	  - call: range
//	    args: [4]
//	    as: nums
//	  - call: sum
//	    args: [$nums]
//	    expect: {value: 6}
//	exit: 0
//	assertions:
//	  - type: log_count
//	    kind: CallExistingFunction
//	    count: 3
package harness
