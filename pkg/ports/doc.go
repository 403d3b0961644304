/*
Package ports defines the driven ports (interfaces) of the dsflow engine.

These interfaces decouple the workflow from model providers, execution
backends and storage.

# Key Interfaces

  - ModelClient / ModelProvider: prompt in, text out; one client per step role.
  - Sandbox / SandboxProvider: isolated code execution, one session per run.
  - ScriptRunner: runs a registered external training script.
  - RunStore: persists run states.
  - DistributedLocker: coordinates access to a run across replicas.
*/
package ports
