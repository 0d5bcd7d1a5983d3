/*
Package callflow is the conversation flow engine behind an outbound-call campaign dashboard.

A call script is a directed graph: nodes are what the AI says, edges are the customer responses that lead from one utterance to the next. The engine keeps that graph consistent while it is edited, reports which parts of it a call can never reach, and walks it deterministically to preview a conversation.

# Concept

Exactly one node is the root (the greeting). End and transfer nodes close the call and can never gain responses. Nodes nobody can reach from the root are legal; they are reported as orphans so the author can reconnect or delete them. Every mutation is an explicit command that yields a ChangeSet, the diff a client or a repository needs to catch up without reloading the flow.

# Key Features

  - Editor: single-flow authoring (branches, node updates, deletes) with rollback when persistence fails.
  - Validation: reachability from the root, orphan detection and per-type warnings.
  - Preview: a stateless state machine over PreviewState that survives edits made mid-preview.
  - Service: flow catalogue, per-flow locking and persisted preview sessions for servers.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/callflow"
		"github.com/aretw0/callflow/pkg/domain"
	)

	func main() {
		ctx := context.Background()
		ed, err := callflow.NewEditor(domain.NewFlow("reminder", "Reminder", "", "root"))
		if err != nil {
			log.Fatal(err)
		}

		yes, _, err := ed.AddBranch(ctx, "root", callflow.BranchSpec{
			ConditionValue: "yes",
			AIMessage:      "See you on (date). Bye!",
			Type:           domain.NodeTypeEnd,
			Outcome:        "confirmed",
		})
		if err != nil {
			log.Fatal(err)
		}

		preview := ed.NewPreview()
		state, _ := preview.Start(ctx, "s1", "reminder", map[string]string{"date": "Friday"})
		state, _ = preview.Advance(ctx, state, yes.Edge)

		view, _ := preview.Render(ctx, state)
		fmt.Println(view.Message, view.Banner.Text)
	}
*/
package callflow
