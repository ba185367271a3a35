package cmd

import (
	"fmt"
	"os"
)

// Completion outputs shell completion scripts
func Completion(shell string) {
	switch shell {
	case "bash":
		fmt.Print(bashCompletion)
	case "zsh":
		fmt.Print(zshCompletion)
	case "fish":
		fmt.Print(fishCompletion)
	default:
		fmt.Fprintf(os.Stderr, "Unknown shell: %s\nSupported: bash, zsh, fish\n", shell)
		os.Exit(1)
	}
}

const bashCompletion = `_statevault() {
    local cur prev words cword
    _init_completion || return

    local commands="init export restore manifest list status compact keyring help completion"

    if [[ $cword -eq 1 ]]; then
        COMPREPLY=($(compgen -W "$commands" -- "$cur"))
        return
    fi

    local cmd="${words[1]}"
    case "$prev" in
        --scope)
            COMPREPLY=($(compgen -W "full sync" -- "$cur"))
            return
            ;;
        --report)
            COMPREPLY=($(compgen -W "yaml json" -- "$cur"))
            return
            ;;
        --file|--out|--report-out|--config)
            _filedir
            return
            ;;
    esac

    case "$cmd" in
        export)
            COMPREPLY=($(compgen -W "--scope --images --out --config" -- "$cur"))
            ;;
        restore)
            COMPREPLY=($(compgen -W "--file --latest --all --overwrite --images --report --report-out --config" -- "$cur"))
            ;;
        manifest)
            COMPREPLY=($(compgen -W "--qr --config" -- "$cur"))
            ;;
        keyring)
            COMPREPLY=($(compgen -W "save delete status" -- "$cur"))
            ;;
        help)
            COMPREPLY=($(compgen -W "$commands" -- "$cur"))
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "$cur"))
            ;;
    esac
}

complete -F _statevault statevault
`

const zshCompletion = `#compdef statevault

_statevault() {
    local -a commands
    commands=(
        'init:Create the local store'
        'export:Seal local state into an encrypted vault'
        'restore:Review and apply a vault to local state'
        'manifest:Show the latest manifest in the transport'
        'list:List exports in the transport'
        'status:Show local store status'
        'compact:Compact the local store'
        'keyring:Manage password in OS keyring'
        'help:Show help for a command'
        'completion:Generate shell completions'
    )

    _arguments -C \
        '1: :->command' \
        '*: :->args'

    case "$state" in
        command)
            _describe -t commands 'statevault commands' commands
            ;;
        args)
            case "${words[2]}" in
                export)
                    _arguments \
                        '--scope[Records to export]:scope:(full sync)' \
                        '--images[Also export the image cache]' \
                        '--out[Write to a file instead of the transport]:file:_files' \
                        '--config[Config file]:file:_files'
                    ;;
                restore)
                    _arguments \
                        '--file[Restore from a vault file]:file:_files' \
                        '--latest[Restore the latest export in the transport]' \
                        '--all[Apply every change without review]' \
                        '--overwrite[Replace local records without comparing]' \
                        '--images[Also restore the image cache]' \
                        '--report[Print a report]:format:(yaml json)' \
                        '--report-out[Write the report to a file]:file:_files' \
                        '--config[Config file]:file:_files'
                    ;;
                manifest)
                    _arguments \
                        '--qr[Show the manifest as a QR code]' \
                        '--config[Config file]:file:_files'
                    ;;
                keyring)
                    _values 'subcommand' save delete status
                    ;;
                help)
                    _describe -t commands 'statevault commands' commands
                    ;;
                completion)
                    _values 'shell' bash zsh fish
                    ;;
            esac
            ;;
    esac
}

_statevault "$@"
`

const fishCompletion = `# statevault fish completions

set -l commands init export restore manifest list status compact keyring help completion

complete -c statevault -f

# Commands
complete -c statevault -n "not __fish_seen_subcommand_from $commands" -a init -d 'Create the local store'
complete -c statevault -n "not __fish_seen_subcommand_from $commands" -a export -d 'Seal local state into a vault'
complete -c statevault -n "not __fish_seen_subcommand_from $commands" -a restore -d 'Review and apply a vault'
complete -c statevault -n "not __fish_seen_subcommand_from $commands" -a manifest -d 'Show the latest manifest'
complete -c statevault -n "not __fish_seen_subcommand_from $commands" -a list -d 'List exports'
complete -c statevault -n "not __fish_seen_subcommand_from $commands" -a status -d 'Show store status'
complete -c statevault -n "not __fish_seen_subcommand_from $commands" -a compact -d 'Compact the store'
complete -c statevault -n "not __fish_seen_subcommand_from $commands" -a keyring -d 'Manage password in OS keyring'
complete -c statevault -n "not __fish_seen_subcommand_from $commands" -a help -d 'Show help'
complete -c statevault -n "not __fish_seen_subcommand_from $commands" -a completion -d 'Generate completions'

# export flags
complete -c statevault -n "__fish_seen_subcommand_from export" -l scope -xa "full sync" -d 'Records to export'
complete -c statevault -n "__fish_seen_subcommand_from export" -l images -d 'Also export images'
complete -c statevault -n "__fish_seen_subcommand_from export" -l out -rF -d 'Output file'

# restore flags
complete -c statevault -n "__fish_seen_subcommand_from restore" -l file -rF -d 'Vault file'
complete -c statevault -n "__fish_seen_subcommand_from restore" -l latest -d 'Latest export in transport'
complete -c statevault -n "__fish_seen_subcommand_from restore" -l all -d 'Apply every change'
complete -c statevault -n "__fish_seen_subcommand_from restore" -l overwrite -d 'Replace local records'
complete -c statevault -n "__fish_seen_subcommand_from restore" -l images -d 'Also restore images'
complete -c statevault -n "__fish_seen_subcommand_from restore" -l report -xa "yaml json" -d 'Print a report'
complete -c statevault -n "__fish_seen_subcommand_from restore" -l report-out -rF -d 'Report file'

# manifest flags
complete -c statevault -n "__fish_seen_subcommand_from manifest" -l qr -d 'Show as QR code'

# keyring subcommands
complete -c statevault -n "__fish_seen_subcommand_from keyring" -a "save delete status"

# help completions
complete -c statevault -n "__fish_seen_subcommand_from help" -a "$commands"

# completion completions
complete -c statevault -n "__fish_seen_subcommand_from completion" -a "bash zsh fish"
`
