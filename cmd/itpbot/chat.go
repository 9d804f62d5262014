package main

import (
	"os"

	"github.com/aretw0/itpbot"
	"github.com/aretw0/itpbot/internal/cli"
	"github.com/aretw0/itpbot/internal/presentation/tui"
	"github.com/aretw0/itpbot/pkg/runner"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant in the terminal",
	Long: `Starts an interactive conversation on stdin/stdout.

Type "salir" or press Ctrl+D to leave. With --json every line in and out is
a JSON document, which is convenient for scripting.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		key, _ := cmd.Flags().GetString("key")
		resume, _ := cmd.Flags().GetBool("resume")
		asJSON, _ := cmd.Flags().GetBool("json")

		sm := runner.NewSignalManager(cmd.Context())
		defer sm.Stop()

		app, err := cli.Build(sm.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()

		in, out := cmd.InOrStdin(), cmd.OutOrStdout()
		var handler runner.IOHandler
		if asJSON {
			handler = runner.NewJSONHandler(in, out)
		} else {
			tty := term.IsTerminal(int(os.Stdout.Fd()))
			render, err := tui.NewRenderer(tty)
			if err != nil {
				return err
			}
			if tty {
				tui.PrintBanner(out, itpbot.Version)
			}
			handler = runner.NewTextHandler(in, out, runner.WithRenderer(render))
		}

		r := &runner.Runner{
			Handler: handler,
			Key:     key,
			Logger:  logger,
			Resume:  resume,
		}
		return r.Run(sm.Context(), app.Bot)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("key", runner.DefaultKey, "Session key of the conversation")
	chatCmd.Flags().Bool("resume", false, "Continue the stored conversation instead of starting over")
	chatCmd.Flags().Bool("json", false, "Read and write JSON lines")
}
