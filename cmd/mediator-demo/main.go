package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/casualjim/mediator"
	"github.com/casualjim/mediator/pkg/slogx"
	"github.com/casualjim/mediator/wiring"
	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	_ "github.com/joho/godotenv/autoload"
	"github.com/k0kubun/pp/v3"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
	log = zerolog.New(output).With().Timestamp().Logger()
	slog.SetDefault(slog.New(
		zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: slog.LevelInfo}),
	))
}

type Message struct {
	Content string `json:"content"`
}

type DifferentMessage struct {
	Message
	Extra string `json:"extra"`
}

type printer struct {
	name string
}

func (p printer) Handle(_ context.Context, m Message) error {
	fmt.Printf("%s: %s\n", color.CyanString(p.name), m.Content)
	return nil
}

type onlyTrue struct{ printer }

func (onlyTrue) Accept(m Message) bool {
	return m.Content == "true"
}

type faulty struct{}

func (faulty) HandleAsync(context.Context, Message) error {
	return errors.New("this handler always fails")
}

func main() {
	ctx := context.Background()

	routerOpts, err := mediator.FromEnv()
	if err != nil {
		slog.Error("invalid router configuration", slogx.Error(err))
		os.Exit(1)
	}
	catalogOpts, err := wiring.FromEnv()
	if err != nil {
		slog.Error("invalid wiring configuration", slogx.Error(err))
		os.Exit(1)
	}

	catalog := wiring.New(catalogOpts...)
	must(wiring.Register[Message](catalog, "consumer-a", func() any { return printer{name: "consumer-a"} }))
	must(wiring.Register[Message](catalog, "only-true", func() any { return onlyTrue{printer{name: "only-true"}} }))
	must(wiring.Register[Message](catalog, "faulty", func() any { return faulty{} }))

	r := catalog.Mediator(routerOpts...)
	mediator.Extend(r, func(d DifferentMessage) Message { return d.Message })

	diff := mediator.Subscribe(ctx, r, func(_ context.Context, m DifferentMessage) error {
		fmt.Printf("%s: %s (%s)\n", color.MagentaString("consumer-b"), m.Content, m.Extra)
		return nil
	})
	defer diff.Unsubscribe()

	failures := make(chan mediator.Error, 8)
	errs := mediator.Subscribe(ctx, r, func(_ context.Context, e mediator.Error) error {
		failures <- e
		return nil
	})
	defer errs.Unsubscribe()
	defer mediator.LogErrors(ctx, r, nil).Unsubscribe()

	for _, msg := range []Message{{Content: "false"}, {Content: "true"}} {
		must(mediator.Publish(ctx, r, msg))
	}
	must(mediator.Publish(ctx, r, DifferentMessage{Message: Message{Content: "derived"}, Extra: "only for consumer-b"}))

	var seen []mediator.Error
	timeout := time.After(time.Second)
collect:
	for len(seen) < 3 {
		select {
		case e := <-failures:
			fmt.Printf("%s: %v\n", color.RedString("error"), e)
			seen = append(seen, e)
		case <-timeout:
			break collect
		}
	}
	if len(seen) > 0 {
		pp.Println(seen[0])
	}

	printSummary(catalog, len(seen))
}

func printSummary(catalog *wiring.Catalog, failures int) {
	var b strings.Builder
	b.WriteString("# Wired handlers\n\n| name | message | shape |\n|---|---|---|\n")
	for _, reg := range catalog.Registrations() {
		fmt.Fprintf(&b, "| %s | `%s` | %s |\n", reg.Name, reg.MessageType, reg.Shape)
	}
	fmt.Fprintf(&b, "\n%d failures routed.\n", failures)

	glam, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		fmt.Println(b.String())
		return
	}
	out, err := glam.Render(b.String())
	if err != nil {
		fmt.Println(b.String())
		return
	}
	fmt.Print(out)
}

func must(err error) {
	if err != nil {
		slog.Error("mediator demo failed", slogx.Error(err))
		os.Exit(1)
	}
}
