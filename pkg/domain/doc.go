/*
Package domain contains the core models of the kiosk conversation engine.

It defines the immutable flow graph and the per-conversation state that the
runtime transitions over. The package is free of I/O and persistence concerns,
following Hexagonal Architecture principles.

# Key Entities

  - FlowDocument: the per-language dialogue graphs, replaced wholesale on reload.
  - Node: one step of a dialogue (message, choice, input or confirmation).
  - Choice: a selectable branch of a choice node, with its matching keywords.
  - ConversationState: the snapshot of one conversation (current node, history, inputs).
  - View: the read-only projection handed to renderers and speech output.
*/
package domain
