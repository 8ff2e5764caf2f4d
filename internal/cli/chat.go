package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/kiosk/internal/presentation/tui"
	"github.com/aretw0/kiosk/pkg/runner"
	"github.com/aretw0/kiosk/pkg/session"
	"github.com/aretw0/kiosk/pkg/voice"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

// ChatOptions configures the terminal chat.
type ChatOptions struct {
	Language string
	JSON     bool
	// Voice prints every bot record through the console synthesizer.
	Voice bool

	In  io.Reader
	Out io.Writer
}

// RunChat runs one conversation on the terminal until it ends or the user
// quits. The flow keeps refreshing in the background and swaps into the
// conversation as it changes.
func RunChat(ctx context.Context, app *App, opts ChatOptions) error {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Language == "" {
		opts.Language = app.Config.Flow.DefaultLanguage
	}

	if err := app.Prime(ctx); err != nil {
		return err
	}

	coordinator := voice.NewCoordinator(voice.NoRecognizer(), voice.NoSynthesizer(),
		voice.WithStopTimeout(app.Config.Voice.StopTimeout),
		voice.WithLogger(app.Logger),
	)
	if opts.Voice {
		coordinator = voice.NewCoordinator(voice.NoRecognizer(), voice.NewConsole(opts.Out),
			voice.WithStopTimeout(app.Config.Voice.StopTimeout),
			voice.WithLogger(app.Logger),
		)
	}

	s, err := app.Kiosk.NewSession(ctx, opts.Language,
		session.WithVoice(coordinator),
		session.WithLogger(app.Logger),
	)
	if err != nil {
		return fmt.Errorf("start conversation: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := app.Kiosk.Follow(ctx, s)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.Kiosk.Run(gctx) })

	r := runner.New(s,
		runner.WithHandler(chatHandler(app, opts)),
		runner.WithLogger(app.Logger),
		runner.WithSpeech(opts.Voice),
		runner.WithSignals(true),
	)
	runErr := r.Run(gctx)
	cancel()
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr == nil && !opts.JSON && isTerminal(opts.Out) {
		fmt.Fprintf(opts.Out, ">>> Finished at '%s' node.\n", s.State().CurrentNodeID)
	}
	return runErr
}

func chatHandler(app *App, opts ChatOptions) runner.IOHandler {
	if opts.JSON {
		return runner.NewJSONHandler(opts.In, opts.Out)
	}
	var hopts []runner.TextHandlerOption
	if isTerminal(opts.Out) {
		tui.PrintBanner(opts.Out, app.Kiosk.Document().StoreName, opts.Language)
		if render, err := tui.NewRenderer(); err == nil {
			hopts = append(hopts, runner.WithTextHandlerRenderer(render))
		} else {
			app.Logger.Warn("markdown renderer unavailable", "err", err)
		}
	}
	return runner.NewTextHandler(opts.In, opts.Out, hopts...)
}

// isTerminal reports whether w is an interactive terminal. Decorations are
// only printed there, so piped transcripts stay plain.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
