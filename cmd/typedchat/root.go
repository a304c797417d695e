package main

import (
	"context"
	"fmt"
	"io"
	"strings"
)

const usageText = `typedchat talks to OpenAI-compatible chat-completions endpoints.

Usage:
  typedchat <command> [flags]

Commands:
  ask      Send a prompt and print the reply
  spam     Classify a message as spam with a structured reply
  usage    Show recorded token usage for a day
  mock     Serve a fake chat-completions API from configured scenarios

Run "typedchat <command> -h" for the flags of a command.`

// Execute runs the CLI dispatcher with the provided arguments.
func Execute(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return printUsage(out)
	}

	switch args[0] {
	case "ask":
		return ask(ctx, args[1:], out)
	case "spam":
		return spam(ctx, args[1:], out)
	case "usage":
		return showUsage(ctx, args[1:], out)
	case "mock":
		return mock(ctx, args[1:])
	case "help", "-h", "--help":
		return printUsage(out)
	default:
		return fmt.Errorf("unknown command %q\n\n%s", args[0], usageText)
	}
}

func printUsage(out io.Writer) error {
	fmt.Fprintln(out, strings.TrimSpace(usageText))
	return nil
}
