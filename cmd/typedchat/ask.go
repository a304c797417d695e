package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/s33g/typedchat/internal/chat"
	"github.com/s33g/typedchat/internal/conversation"
	"github.com/s33g/typedchat/internal/llm"
)

func ask(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "path to configuration file (defaults when empty)")
	system := fs.String("system", "", "system prompt, overrides defaults.system_prompt")
	model := fs.String("model", "", "model, overrides defaults.model")
	image := fs.String("image", "", "URL of an image to attach to the prompt")
	detail := fs.String("detail", "", "image detail: auto, low or high")
	session := fs.String("session", "", "continue the named conversation (requires redis)")

	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	prompt := strings.Join(fs.Args(), " ")
	if prompt == "" {
		return errors.New("ask requires a prompt")
	}

	a, err := newApp(ctx, *cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	p := llm.Prompt{System: *system, Text: prompt, Model: *model}
	if *image != "" {
		p.User = chat.NewUserParts(
			chat.TextPart{Text: prompt},
			chat.ImagePart{URL: *image, Detail: chat.ImageDetail(*detail)},
		)
	}

	var reply string
	if *session != "" {
		reply, err = a.converse(ctx, *session, p)
	} else {
		reply, err = a.simple().Text(ctx, p)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out, reply)
	return nil
}

// converse sends p after the stored history of session id and appends the
// exchange to it. A new session keeps the model and system prompt it was
// started with.
func (a *app) converse(ctx context.Context, id string, p llm.Prompt) (string, error) {
	if a.sessions == nil {
		return "", errors.New("-session requires redis.enabled in the configuration")
	}

	sess, err := a.sessions.Get(ctx, id)
	switch {
	case errors.Is(err, conversation.ErrNotFound):
		sess = &conversation.Session{ID: id, Model: p.Model, SystemPrompt: p.System}
		if err := a.sessions.Save(ctx, *sess); err != nil {
			return "", err
		}
	case err != nil:
		return "", err
	}

	if p.System == "" {
		p.System = sess.SystemPrompt
	}
	if p.Model == "" {
		p.Model = sess.Model
	}
	system, model := p.System, p.Model
	if system == "" {
		system = a.cfg.Defaults.SystemPrompt
	}
	if model == "" {
		model = a.cfg.Defaults.Model
	}

	history, err := a.sessions.Messages(ctx, id)
	if err != nil {
		return "", err
	}
	window := conversation.NewWindow(a.tokens, a.cfg.Sessions.ContextTokens, a.cfg.Sessions.ReserveTokens)
	fitted, used, err := window.Fit(history, system, model)
	if err != nil {
		return "", err
	}
	p.History = fitted
	a.logger.Debug().
		Str("session", id).
		Int("stored", len(history)).
		Int("sent", len(fitted)).
		Int("context_tokens", used).
		Msg("Continuing session")

	reply, err := a.simple().Text(ctx, p)
	if err != nil {
		return "", err
	}

	user := p.User
	if user == nil {
		user = chat.NewUserMessage(p.Text)
	}
	answer := &chat.AssistantMessage{Content: &reply}
	exchange := []chat.Message{user, answer}

	n, err := a.tokens.CountMessages(exchange, model)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Failed to count session tokens")
	}
	if err := a.sessions.Append(ctx, id, n, exchange...); err != nil {
		return "", err
	}
	return reply, nil
}
