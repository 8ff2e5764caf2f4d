/*
Package kiosk is a conversation flow engine for multilingual voice banking kiosks.

A flow document maps each language to a graph of nodes: messages, choices,
amount inputs and confirmations. The engine moves a conversation through that
graph in response to taps, free text and speech transcripts, resolving free
text to a choice with keyword scoring in three confidence bands. Medium
confidence matches are turned into a "did you mean" suggestion that the user
confirms with yes or no.

# Concept

The engine is stateless. Every transition receives the active language flow and
a ConversationState and returns a new state; the input is never mutated. A
Session wraps one conversation for interactive hosts (the terminal chat, a
kiosk UI), adds voice playback and dismissible notices, and serializes
transitions with document swaps.

Flow documents come from a file, a URL or memory. The loader converts the raw
document (locally or through an LLM), validates it, caches it and shares it
with other replicas through redis. When anything goes wrong the built-in
fallback flow is served, so a kiosk always has something to say. A refresher
polls the source, swaps documents whose fingerprint changed and lets live
conversations reconcile with the new graph.

# Usage

	k := kiosk.New(file.New("./configuration.json"), kiosk.WithWatch(true))
	go k.Run(ctx)

	s, err := k.NewSession(ctx, "ja")
	if err != nil {
		log.Fatal(err)
	}
	defer k.Follow(ctx, s)()

	_ = s.Advance(ctx)                    // language_selection
	_ = s.SelectChoice(ctx, "japanese") // transaction_type
	_ = s.SubmitText(ctx, "預入")

	view, _ := s.View()
	fmt.Println(view.CurrentNode.ID) // deposit_amount

# Surfaces

The kiosk command serves the engine over a stateless HTTP API (kiosk serve),
runs a terminal chat (kiosk chat), validates flow documents (kiosk validate)
and exports Mermaid graphs (kiosk graph).
*/
package kiosk
