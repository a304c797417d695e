package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/s33g/typedchat/internal/llm"
	"github.com/s33g/typedchat/internal/schema"
)

const spamPrompt = "You moderate a community chat. Decide whether the user's message is spam " +
	"(unsolicited advertising, scams, phishing, repeated link dumps) and explain why in one sentence."

type spamAnalysis struct {
	Reason string `json:"reason"`
	IsSpam bool   `json:"is_spam"`
}

var spamResult = schema.MustBind[spamAnalysis](schema.Descriptor{
	Name:        "spam_analysis",
	Description: "Whether a message is spam",
	Strict:      true,
	Object: schema.Object{Fields: []schema.Field{
		{Name: "reason", Kind: schema.KindString, Description: "One sentence explaining the verdict"},
		{Name: "is_spam", Kind: schema.KindBoolean},
	}},
})

func spam(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("spam", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "path to configuration file (defaults when empty)")
	model := fs.String("model", "", "model, overrides defaults.model")

	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	message := strings.Join(fs.Args(), " ")
	if message == "" {
		return errors.New("spam requires a message to classify")
	}

	a, err := newApp(ctx, *cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	verdict, err := llm.Generate(ctx, a.simple(), spamResult, llm.Prompt{
		System: spamPrompt,
		Text:   message,
		Model:  *model,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "spam: %t\nreason: %s\n", verdict.IsSpam, verdict.Reason)
	return nil
}
