/*
Package runner drives a conversation with an itpbot.Bot from a terminal or a pipe.

The Runner reads one line per message through an IOHandler, hands it to the Bot under a
fixed session key and prints the reply. TextHandler is the interactive mode (optionally
rendering the markdown of replies); JSONHandler speaks JSON lines for scripting.

# Usage

	r := &runner.Runner{
		Handler: runner.NewTextHandler(os.Stdin, os.Stdout),
		Key:     "console",
	}
	if err := r.Run(ctx, bot); err != nil {
		log.Fatal(err)
	}
*/
package runner
