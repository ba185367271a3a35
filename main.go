package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/illarion/statevault/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(ctx, os.Args[2:])
	case "export":
		runExport(ctx, os.Args[2:])
	case "restore":
		runRestore(ctx, os.Args[2:])
	case "manifest":
		runManifest(ctx, os.Args[2:])
	case "list", "ls":
		runList(ctx, os.Args[2:])
	case "status":
		runStatus(ctx, os.Args[2:])
	case "compact":
		runCompact(ctx, os.Args[2:])
	case "keyring":
		runKeyring(ctx, os.Args[2:])
	case "completion":
		runCompletion(ctx, os.Args[2:])
	case "help", "-h", "--help":
		if len(os.Args) <= 2 {
			printUsage()
			return
		}
		printCommandHelp(os.Args[2])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// newFlagSet returns a flag set with the --config flag every command shares.
func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	config := fs.String("config", "", "Config file (default: .statevault.yaml in home or current directory)")
	return fs, config
}

func parse(fs *flag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func runInit(_ context.Context, args []string) {
	fs, config := newFlagSet("init")
	parse(fs, args)

	cmd.Init(cmd.NewApp(*config))
}

func runExport(ctx context.Context, args []string) {
	fs, config := newFlagSet("export")
	scope := fs.String("scope", "full", "Records to export: full or sync")
	images := fs.Bool("images", false, "Also export the image cache")
	out := fs.String("out", "", "Write the vault to a file instead of the transport")
	parse(fs, args)

	cmd.Export(ctx, cmd.NewApp(*config), cmd.ExportOptions{
		Scope:  *scope,
		Images: *images,
		Out:    *out,
	})
}

func runRestore(ctx context.Context, args []string) {
	fs, config := newFlagSet("restore")
	file := fs.String("file", "", "Restore from a vault file")
	latest := fs.Bool("latest", false, "Restore the latest export in the transport")
	all := fs.Bool("all", false, "Apply every change without review")
	overwrite := fs.Bool("overwrite", false, "Replace local records without comparing")
	images := fs.Bool("images", false, "Also restore the latest image cache")
	report := fs.String("report", "", "Print a report: yaml or json")
	reportOut := fs.String("report-out", "", "Write the report to a file")
	parse(fs, args)

	if len(fs.Args()) == 1 && *file == "" {
		*file = fs.Arg(0)
	}

	cmd.Restore(ctx, cmd.NewApp(*config), cmd.RestoreOptions{
		File:      *file,
		Latest:    *latest,
		All:       *all,
		Overwrite: *overwrite,
		Images:    *images,
		Report:    *report,
		ReportOut: *reportOut,
	})
}

func runManifest(ctx context.Context, args []string) {
	fs, config := newFlagSet("manifest")
	qr := fs.Bool("qr", false, "Show the manifest as a QR code")
	parse(fs, args)

	cmd.Manifest(ctx, cmd.NewApp(*config), *qr)
}

func runList(ctx context.Context, args []string) {
	fs, config := newFlagSet("list")
	parse(fs, args)

	cmd.List(ctx, cmd.NewApp(*config))
}

func runStatus(_ context.Context, args []string) {
	fs, config := newFlagSet("status")
	parse(fs, args)

	cmd.Status(cmd.NewApp(*config))
}

func runCompact(_ context.Context, args []string) {
	fs, config := newFlagSet("compact")
	parse(fs, args)

	cmd.Compact(cmd.NewApp(*config))
}

func runKeyring(_ context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: statevault keyring <save|delete|status>")
		os.Exit(1)
	}
	fs, config := newFlagSet("keyring " + args[0])
	parse(fs, args[1:])
	app := cmd.NewApp(*config)

	switch args[0] {
	case "save":
		cmd.KeyringSave(app)
	case "delete":
		cmd.KeyringDelete(app)
	case "status":
		cmd.KeyringStatus(app)
	default:
		fmt.Fprintf(os.Stderr, "Unknown keyring command: %s\n", args[0])
		os.Exit(1)
	}
}

func runCompletion(_ context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: statevault completion <bash|zsh|fish>")
		os.Exit(1)
	}
	cmd.Completion(args[0])
}

func printUsage() {
	fmt.Println("statevault - Encrypted backup and reviewed restore of app state")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  statevault <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  init        Create the local store")
	fmt.Println("  export      Seal local state into an encrypted vault")
	fmt.Println("  restore     Review and apply a vault to local state")
	fmt.Println("  manifest    Show the latest manifest in the transport")
	fmt.Println("  list, ls    List exports in the transport")
	fmt.Println("  status      Show local store status")
	fmt.Println("  compact     Compact the local store to reclaim disk space")
	fmt.Println("  keyring     Manage the password in the OS keyring")
	fmt.Println("  completion  Generate shell completions")
	fmt.Println("  help        Show help for a command")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  statevault init                       # Create the local store")
	fmt.Println("  statevault export --out backup.stvault # Export to a file")
	fmt.Println("  statevault restore backup.stvault     # Review and restore")
	fmt.Println("  statevault restore --latest --all     # Restore the latest upload")
	fmt.Println()
	fmt.Println("Use 'statevault help <command>' for more information about a command.")
}

func printCommandHelp(command string) {
	switch command {
	case "init":
		fmt.Println("statevault init")
		fmt.Println()
		fmt.Println("Creates the local store and assigns this device an id.")
		fmt.Println("Running it again on an initialized store does nothing.")
	case "export":
		fmt.Println("statevault export [--scope full|sync] [--images] [--out <file>]")
		fmt.Println()
		fmt.Println("Collects the records in scope, checksums them and seals them into an")
		fmt.Println("encrypted vault. Without --out the vault is uploaded through the configured")
		fmt.Println("transport together with an encrypted manifest pointing at it.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  --scope     full (default) or sync; sync leaves out secrets")
		fmt.Println("  --images    Also export the image cache as a separate vault")
		fmt.Println("  --out       Write to a file instead of the transport")
		fmt.Println()
		fmt.Println("The password is read from STATEVAULT_PASSWORD, the OS keyring or a prompt.")
	case "restore":
		fmt.Println("statevault restore [--file <file> | --latest] [--all|--overwrite] [--report yaml|json]")
		fmt.Println()
		fmt.Println("Decrypts a vault, compares it with local data and shows what would change.")
		fmt.Println("Only the changes you approve are written. Local data that was not reviewed")
		fmt.Println("is never discarded.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  --file        Vault file to restore (or pass it as the only argument)")
		fmt.Println("  --latest      Restore the latest export in the transport")
		fmt.Println("  --all         Apply every change without review")
		fmt.Println("  --overwrite   Replace local records with the backup without comparing")
		fmt.Println("  --images      Also restore the latest image cache")
		fmt.Println("  --report      Print a yaml or json report of the restore")
		fmt.Println("  --report-out  Write the report to a file")
		fmt.Println()
		fmt.Println("Review keys:")
		fmt.Println("  [a] Apply all  [r] Review each  [y/n] Apply or skip a change  [q] Cancel")
	case "manifest":
		fmt.Println("statevault manifest [--qr]")
		fmt.Println()
		fmt.Println("Reads the latest manifest from the transport and shows which vault it")
		fmt.Println("points at. --qr renders it as a QR code for another device.")
	case "list", "ls":
		fmt.Println("statevault list")
		fmt.Println()
		fmt.Println("Lists vaults (*), image vaults (+) and manifests (.) in the transport.")
	case "status":
		fmt.Println("statevault status")
		fmt.Println()
		fmt.Println("Shows the local store: device id, records, last change and last export.")
		fmt.Println("Does not require a password.")
	case "compact":
		fmt.Println("statevault compact")
		fmt.Println()
		fmt.Println("Compacts the local store to reclaim unused disk space.")
		fmt.Println("Does not require a password.")
	case "keyring":
		fmt.Println("statevault keyring <save|delete|status>")
		fmt.Println()
		fmt.Println("Stores the vault password in the OS keyring for this device, so export")
		fmt.Println("and restore do not prompt for it.")
	case "completion":
		fmt.Println("statevault completion <bash|zsh|fish>")
		fmt.Println()
		fmt.Println("Outputs shell completion script for the specified shell.")
		fmt.Println()
		fmt.Println("Setup:")
		fmt.Println("  # Bash - add to ~/.bashrc")
		fmt.Println("  eval \"$(statevault completion bash)\"")
		fmt.Println()
		fmt.Println("  # Zsh - add to ~/.zshrc")
		fmt.Println("  eval \"$(statevault completion zsh)\"")
		fmt.Println()
		fmt.Println("  # Fish - add to ~/.config/fish/config.fish")
		fmt.Println("  statevault completion fish | source")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
	}
}
