package validator

import (
	"errors"
	"fmt"

	"github.com/aretw0/kiosk/pkg/domain"
)

// ValidateDocument checks every language of a document. All integrity
// failures are reported together.
func ValidateDocument(doc *domain.FlowDocument, startNodeID string) error {
	if doc == nil || len(doc.Languages) == 0 {
		return &domain.IntegrityError{Reason: "document has no languages"}
	}
	var errs []error
	for _, lang := range doc.LanguageCodes() {
		if err := ValidateFlow(lang, doc.Languages[lang], startNodeID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ValidateFlow checks the referential integrity of one language graph:
// the entry node exists, node keys match ids, types are known, every
// reference resolves and choice ids are unique per node.
func ValidateFlow(lang string, flow *domain.LanguageFlow, startNodeID string) error {
	if flow == nil || len(flow.Nodes) == 0 {
		return &domain.IntegrityError{Language: lang, Reason: "language has no nodes"}
	}

	var errs []error
	fail := func(nodeID, ref, reason string) {
		errs = append(errs, &domain.IntegrityError{Language: lang, NodeID: nodeID, Ref: ref, Reason: reason})
	}

	if _, ok := flow.Node(startNodeID); !ok {
		fail("", startNodeID, "entry node not found")
	}

	for _, id := range flow.NodeIDs() {
		node := flow.Nodes[id]
		if node == nil {
			fail(id, "", "empty node")
			continue
		}
		if node.ID != id {
			fail(id, node.ID, "node id does not match its key")
		}
		if !node.Type.Valid() {
			fail(id, string(node.Type), "unknown node type")
		}
		for _, ref := range node.References() {
			if ref == "" {
				fail(id, "", "empty reference")
				continue
			}
			if _, ok := flow.Node(ref); !ok {
				fail(id, ref, "unresolved reference")
			}
		}

		switch node.Type {
		case domain.NodeTypeChoice:
			if len(node.Choices) == 0 {
				fail(id, "", "choice node without choices")
			}
			seen := make(map[string]bool, len(node.Choices))
			for _, c := range node.Choices {
				if c.ID == "" {
					fail(id, "", "choice without id")
				}
				if seen[c.ID] {
					fail(id, c.ID, "duplicate choice id")
				}
				seen[c.ID] = true
			}
		case domain.NodeTypeInput:
			if node.Next == "" {
				fail(id, "", "input node without next")
			}
			if node.OverLimitNext != "" && node.Limit <= 0 {
				fail(id, node.OverLimitNext, "overLimitNext requires a positive limit")
			}
		case domain.NodeTypeConfirmation:
			if node.Field == "" {
				fail(id, "", "confirmation node without field")
			} else if _, ok := flow.InputFor(node.Field); !ok {
				fail(id, node.Field, "no input node captures the confirmed field")
			}
		}
	}

	return errors.Join(errs...)
}

// Reachable crawls the graph breadth-first from startNodeID and returns the
// set of visited node ids. Unresolved references are skipped.
func Reachable(flow *domain.LanguageFlow, startNodeID string) map[string]bool {
	visited := make(map[string]bool)
	if _, ok := flow.Node(startNodeID); !ok {
		return visited
	}

	queue := []string{startNodeID}
	for len(queue) > 0 {
		currentID := queue[0]
		queue = queue[1:]

		if visited[currentID] {
			continue
		}
		node, ok := flow.Node(currentID)
		if !ok {
			continue
		}
		visited[currentID] = true

		for _, target := range node.References() {
			if target != "" && !visited[target] {
				queue = append(queue, target)
			}
		}
	}
	return visited
}

// Unreachable lists node ids that cannot be reached from startNodeID.
func Unreachable(flow *domain.LanguageFlow, startNodeID string) []string {
	visited := Reachable(flow, startNodeID)
	var ids []string
	for _, id := range flow.NodeIDs() {
		if !visited[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

// Summary renders a short human report of a document, used by the CLI.
func Summary(doc *domain.FlowDocument, startNodeID string) []string {
	var lines []string
	for _, lang := range doc.LanguageCodes() {
		flow := doc.Languages[lang]
		unreachable := Unreachable(flow, startNodeID)
		lines = append(lines, fmt.Sprintf("%s: %d nodes, %d reachable, %d unreachable %v",
			lang, len(flow.Nodes), len(flow.Nodes)-len(unreachable), len(unreachable), unreachable))
	}
	return lines
}
