// Package harness runs scripted form entry sessions.
//
// A scenario names an initial server payload, a list of steps (user actions,
// wall-clock waits and server messages) and assertions on the messages the
// engine exchanged and on the final form state. There is no live server: the
// scenario plays the server's part, so every run is deterministic.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: answer_roundtrip
//	description: "An answer is sent and its echo accepted"
//	payload: payloads/visit.json     # or an inline `initial:` object
//	steps:
//	  - answer: { ix: "0", value: ann }
//	  - wait: 200ms
//	  - reconcile:
//	      request: req-0001
//	      response: { tree: [ ... ] }
//	  - block: 1
//	  - submit: true
//	assertions:
//	  - type: trace_contains
//	    topic: answer
//	    payload: { ix: "0", answer: ann }
//	  - type: final_state
//	    ix: "0"
//	    expect: { answer: ann, dirty: false }
//
// # Assertion Types
//
//   - trace_contains: a message on topic whose payload contains the given fields
//   - trace_order: the first messages on the given topics appear in order
//   - trace_count: exactly N messages on topic
//   - final_state: fields of the question at ix, or of the form when ix is empty
//
// Topics may be written without their prefix ("answer", "reconcile").
//
// # Deterministic Testing
//
// Every scenario runs with:
//   - A manual wall clock (testutil.ManualClock); time moves only on wait steps
//   - Sequential request ids: req-0001, req-0002, ...
//   - A fresh in-memory journal, read back as the trace
//
// This ensures identical traces across runs for golden file comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/answer_roundtrip.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if !result.Pass {
//	    for _, err := range result.Errors {
//	        log.Println(err)
//	    }
//	}
package harness
