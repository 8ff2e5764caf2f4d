/*
Package ports defines the driven ports (interfaces) of the kiosk flow engine.

These interfaces decouple the loader and sessions from concrete backends, allowing
the same engine to read its flow from a file, a URL or memory, to convert it locally
or through an AI service, and to share the converted document between replicas.

# Key Interfaces

  - Source: Supplies the raw flow document (JSON or YAML bytes).
  - Converter: Turns an untyped raw document into a FlowDocument.
  - FlowCache: Shares the converted document (e.g. Memory or Redis).
  - DistributedLocker: Keeps a single replica converting at a time.
*/
package ports
