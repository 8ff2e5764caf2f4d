/*
Package runner implements the interactive loop that drives a kiosk session
from a terminal or a JSON-Lines pipe.

# Key Components

  - Runner: renders the session view, plays pending speech and dispatches commands.
  - IOHandler: decouples how commands are read and views are shown.
  - TextHandler: numbered choices and ":restart <lang>" style commands for humans.
  - JSONHandler: one Frame per line out, one Command (or raw text) per line in.

All input passes through SanitizeInput before it reaches the session.

# Usage

	s, _ := session.New(ctx, engine, doc, "ja")
	r := runner.New(s,
		runner.WithHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
		runner.WithSignals(true),
	)
	if err := r.Run(ctx); err != nil {
		log.Fatal(err)
	}
*/
package runner
