package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/s33g/typedchat/internal/usage"
)

func showUsage(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("usage", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "path to configuration file (defaults when empty)")
	day := fs.String("day", usage.Day(time.Now()), "UTC day to report, as YYYY-MM-DD")

	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	if _, err := time.Parse("2006-01-02", *day); err != nil {
		return fmt.Errorf("invalid -day %q: %w", *day, err)
	}

	a, err := newApp(ctx, *cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.usage == nil {
		return errors.New("usage requires redis.enabled in the configuration")
	}

	models, err := a.usage.Models(ctx, *day)
	if err != nil {
		return err
	}
	if len(models) == 0 {
		fmt.Fprintf(out, "no usage recorded on %s\n", *day)
		return nil
	}

	for _, model := range models {
		t, err := a.usage.Get(ctx, model, *day)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\trequests=%d\tprompt=%d\tcompletion=%d\ttotal=%d\n",
			model, t.Requests, t.PromptTokens, t.CompletionTokens, t.TotalTokens)
	}
	return nil
}
