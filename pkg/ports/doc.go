/*
Package ports defines the driven ports (interfaces) of the callflow engine.

These interfaces decouple the core logic from external implementations, allowing
the editor and the preview engine to work with various storage backends and
utterance matchers.

# Key Interfaces

  - FlowLoader: Read-only source of flows (files, Loam repositories).
  - FlowRepository: The persistence service every mutation is mirrored to.
  - StateStore: Persists preview sessions.
  - DistributedLocker: Coordinates exclusive access to a flow or session across replicas.
  - UtteranceMatcher: Maps a customer utterance to at most one response branch.
*/
package ports
