// Package main provides forge-memory, a command-line tool for inspecting and
// editing an agent's persisted memory (HISTORY.md and MEMORY.md).
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"

	"github.com/entrhq/forge-memory/pkg/agent/memory"
	appconfig "github.com/entrhq/forge-memory/pkg/config"
	"github.com/entrhq/forge-memory/pkg/llm/tokenizer"
	"github.com/entrhq/forge-memory/pkg/logging"
)

const version = "0.1.0"

var errUsage = errors.New("usage error")

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("cli")
	if err != nil {
		debugLog.Warnf("Failed to initialize cli logger, using stderr fallback: %v", err)
	}
}

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigFile  string
	Workspace   string
	Root        string
	Color       bool
	ShowVersion bool
}

func main() {
	cliConfig, args, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	if cliConfig.ShowVersion {
		fmt.Printf("forge-memory v%s\n", version)
		return
	}

	if err := run(cliConfig, args, os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		debugLog.Errorf("Command %v failed: %v", args, err)
		log.Printf("forge-memory: %v", err)
		os.Exit(1)
	}
}

// parseFlags parses global flags and returns the remaining command arguments.
func parseFlags(argv []string, stderr io.Writer) (*CLIConfig, []string, error) {
	cliConfig := &CLIConfig{}
	fs := flag.NewFlagSet("forge-memory", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&cliConfig.ConfigFile, "config", "", "Path to configuration file (JSON, default ~/.forge/memory/config.json)")
	fs.StringVar(&cliConfig.Workspace, "workspace", "", "Agent workspace; memory lives in <workspace>/memory")
	fs.StringVar(&cliConfig.Root, "root", "", "Memory directory (overrides -workspace)")
	fs.BoolVar(&cliConfig.Color, "color", false, "Syntax-highlight output for a 256-color terminal")
	fs.BoolVar(&cliConfig.ShowVersion, "version", false, "Show version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "forge-memory - inspect and edit persisted agent memory\n\n")
		fmt.Fprintf(stderr, "Usage: forge-memory [options] <command> [args]\n\n")
		fmt.Fprintf(stderr, "Commands:\n")
		fmt.Fprintf(stderr, "  show                  Print the long-term memory document\n")
		fmt.Fprintf(stderr, "  history [pattern]     Print history entries, optionally filtered by a glob\n")
		fmt.Fprintf(stderr, "  append [-json] [text] Append a history entry (stdin when text is omitted)\n")
		fmt.Fprintf(stderr, "  write [-json] [text]  Replace the long-term memory (stdin when text is omitted)\n")
		fmt.Fprintf(stderr, "  context               Print the memory context rendered for prompts\n")
		fmt.Fprintf(stderr, "  stats                 Print entry and token counts\n")
		fmt.Fprintf(stderr, "  export                Print a YAML snapshot of the memory\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(argv); err != nil {
		return nil, nil, err
	}
	return cliConfig, fs.Args(), nil
}

// run executes one command against the configured store.
func run(cliConfig *CLIConfig, args []string, stdin io.Reader, out io.Writer) error {
	if initErr := appconfig.Initialize(cliConfig.ConfigFile); initErr != nil {
		return fmt.Errorf("failed to initialize configuration: %w", initErr)
	}
	settings := appconfig.GetMemory()

	if level, err := logging.ParseLevel(settings.GetLogLevel()); err == nil {
		logging.SetLevel(level)
	}

	if len(args) == 0 {
		return fmt.Errorf("%w: missing command (show, history, append, write, context, stats, export)", errUsage)
	}

	store := memory.NewStore(resolveRoot(cliConfig, settings))
	p := &printer{out: out, color: cliConfig.Color}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "show":
		content, err := store.ReadLongTerm()
		if err != nil {
			return err
		}
		return p.print(content)

	case "history":
		var entries []string
		var err error
		if len(rest) > 0 {
			entries, err = store.SearchHistory(strings.Join(rest, " "))
		} else {
			entries, err = store.ReadHistory()
		}
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := p.print(e); err != nil {
				return err
			}
			fmt.Fprintln(out)
		}
		return nil

	case "append":
		value, err := readValue(cmd, rest, stdin)
		if err != nil {
			return err
		}
		return store.AppendHistory(value)

	case "write":
		value, err := readValue(cmd, rest, stdin)
		if err != nil {
			return err
		}
		return store.WriteLongTerm(value)

	case "context":
		rendered, err := store.BuildContext(newTokenizer(settings), settings.GetContextTokenBudget())
		if err != nil {
			return err
		}
		return p.print(rendered)

	case "stats":
		tok := newTokenizer(settings)
		st, err := store.Stats(tok)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "root:             %s\n", store.Root())
		fmt.Fprintf(out, "history entries:  %d\n", st.HistoryEntries)
		fmt.Fprintf(out, "long-term bytes:  %d\n", st.LongTermBytes)
		fmt.Fprintf(out, "long-term tokens: %d (%s)\n", st.LongTermTokens, tokenizerLabel(tok))
		return nil

	case "export":
		sn, err := store.Export()
		if err != nil {
			return err
		}
		raw, err := sn.YAML()
		if err != nil {
			return err
		}
		return p.highlight(string(raw), "yaml")

	case "version":
		fmt.Fprintf(out, "forge-memory v%s\n", version)
		return nil

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func resolveRoot(cliConfig *CLIConfig, settings *appconfig.MemorySection) string {
	if cliConfig.Root != "" {
		return cliConfig.Root
	}
	workspace := cliConfig.Workspace
	if workspace == "" {
		workspace = settings.GetWorkspace()
	}
	if workspace == "" {
		workspace = "."
	}
	return memory.WorkspaceDir(workspace)
}

// readValue builds the value for append/write. With -json the text must be
// a JSON document and is stored in canonical form; otherwise it is text.
func readValue(cmd string, args []string, stdin io.Reader) (any, error) {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	asJSON := fs.Bool("json", false, "parse the input as JSON")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errUsage, cmd, err)
	}

	text := strings.Join(fs.Args(), " ")
	if fs.NArg() == 0 {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		text = string(raw)
	}

	if !*asJSON {
		return text, nil
	}
	if !json.Valid([]byte(text)) {
		return nil, fmt.Errorf("%w: %s -json: input is not valid JSON", errUsage, cmd)
	}
	return json.RawMessage(text), nil
}

// newTokenizer returns a tiktoken counter, or nil (character estimate) when
// the encoding cannot be loaded.
func newTokenizer(settings *appconfig.MemorySection) *tokenizer.Tokenizer {
	tok, err := tokenizer.NewWithEncoding(settings.GetTokenizerEncoding())
	if err != nil {
		debugLog.Warnf("Token counts are estimates: %v", err)
		return nil
	}
	return tok
}

func tokenizerLabel(tok *tokenizer.Tokenizer) string {
	if tok == nil {
		return "estimated"
	}
	return tok.Encoding()
}

type printer struct {
	out   io.Writer
	color bool
}

// print writes text with a trailing newline, highlighting JSON documents as
// JSON and everything else as markdown.
func (p *printer) print(text string) error {
	lexer := "markdown"
	if json.Valid([]byte(text)) {
		lexer = "json"
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return p.highlight(text, lexer)
}

func (p *printer) highlight(text, lexer string) error {
	if !p.color {
		_, err := io.WriteString(p.out, text)
		return err
	}
	return quick.Highlight(p.out, text, lexer, "terminal256", "monokai")
}
