/*
Package domain contains the data model of the dsflow workflow engine.

It is kept free of I/O so that steps, routing and the scheduler can be tested
without a model provider or a sandbox.

# Key Entities

  - StepID: the closed set of workflow steps.
  - State: the shared record of one run (transcript, task, dataset, code,
    results, feedback log, counters).
  - Update: the partial change a step returns; State.Apply merges it.
  - ExecutionResult: the success/failure outcome of a sandboxed execution.
  - StepEvent: one entry of the run's output stream.
*/
package domain
