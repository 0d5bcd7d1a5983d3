/*
Package domain contains the core models of the callflow engine.

It defines the entities of an outbound-call script: nodes spoken by the AI,
edges labelled with the customer utterance that selects them, and the Flow
aggregate that owns both. This package is kept pure and free of I/O or
persistence concerns, following Hexagonal Architecture principles.

# Key Entities

  - FlowNode: A point in the conversation (start, question, statement, capture, end, transfer).
  - FlowEdge: A directed response branch between two nodes.
  - Flow: The aggregate of nodes and edges with a single root.
  - Command / ChangeSet: Explicit mutations and the diff they produce.
  - PreviewState: The runtime snapshot of a simulated call (cursor, transcript, captured answers).
*/
package domain
