/*
Package cli provides command-line helpers shared by the hindsight commands.

Output Formatting:

Command results can be printed as text, JSON or CSV:

	format, err := cli.ParseOutputFormat(flagValue)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(os.Stdout, report)

Results that implement TextWriter render their own text; CSV output
requires the Table interface.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

A second signal exits immediately. ReloadSignals delivers SIGHUP for
configuration reloads.

Exit Codes:

ExitCode maps a command error to the process exit status; configuration
errors exit with ExitConfig.
*/
package cli
