// Command research is a CLI front end for the research engine: it wires
// one of the three LLM providers, an optional HTTP search backend, an
// in-memory checkpoint store and workflow engine, and drives a REPL-style
// loop over stdin/stdout that implements the invoke -> interrupt ->
// /confirm_plan|/end_plan -> resume cycle of spec section 4.3. Adapted
// from the teacher's example/cmd/assistant/main.go (flag parsing, clue
// logger setup, signal handling), narrowed from a long-running multi-
// transport server to a single-process interactive client since this
// engine exposes invoke/stream/resume as a library API, not services to
// bind to ports.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	oai "github.com/openai/openai-go"
	oaiopt "github.com/openai/openai-go/option"
	goredis "github.com/redis/go-redis/v9"
	"goa.design/clue/log"

	engconfig "github.com/deepresearchhq/engine/config"
	"github.com/deepresearchhq/engine/checkpoint/inmem"
	"github.com/deepresearchhq/engine/driver"
	dinmem "github.com/deepresearchhq/engine/engine/inmem"
	"github.com/deepresearchhq/engine/llm/anthropic"
	"github.com/deepresearchhq/engine/llm/bedrock"
	"github.com/deepresearchhq/engine/llm/middleware"
	"github.com/deepresearchhq/engine/llm/openai"
	"github.com/deepresearchhq/engine/model"
	"github.com/deepresearchhq/engine/nodes"
	runstoreinmem "github.com/deepresearchhq/engine/runstore/inmem"
	"github.com/deepresearchhq/engine/search/httpsearch"
	"github.com/deepresearchhq/engine/streambridge"
	clientspulse "github.com/deepresearchhq/engine/streambridge/clients/pulse"
	"github.com/deepresearchhq/engine/telemetry"
)

func main() {
	var (
		configF      = flag.String("config", "", "path to a YAML config file overriding defaults")
		threadF      = flag.String("thread", "cli-session", "thread id used for checkpointing/resume")
		dbgF         = flag.Bool("debug", false, "log request and response bodies")
		providerF    = flag.String("provider", "anthropic", "LLM provider: anthropic, openai, or bedrock")
		streamRedisF = flag.String("stream-redis", "", "optional redis addr; when set, every stream()/resume() event is also published onto a Pulse stream via streambridge for other subscribers to observe")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
	}

	cfg := engconfig.Default()
	if *configF != "" {
		loaded, err := engconfig.LoadYAML(*configF)
		if err != nil {
			log.Fatalf(ctx, err, "failed to load config %q", *configF)
		}
		cfg = loaded
	}
	creds := engconfig.CredentialsFromEnv()

	llmClient, err := buildLLMClient(ctx, *providerF, cfg, creds)
	if err != nil {
		log.Fatalf(ctx, err, "failed to build LLM client")
	}

	var searchProvider *httpsearch.Provider
	if endpoint := os.Getenv("SEARCH_ENDPOINT"); endpoint != "" {
		limiter := middleware.NewLocalRateLimiter(60_000, 120_000)
		searchProvider, err = httpsearch.New(httpsearch.Options{
			Endpoint:  endpoint,
			APIKey:    creds.SearchAPIKey,
			RateLimit: limiter,
		})
		if err != nil {
			log.Fatalf(ctx, err, "failed to build search provider")
		}
	}

	logger := telemetry.NewClueLogger()

	deps := &nodes.Deps{
		LLM:             llmClient,
		ReasoningModel:  cfg.ReasoningModel,
		StrictCitations: cfg.StrictCitations,
		Logger:          logger,
	}
	if searchProvider != nil {
		deps.Search = searchProvider
	}
	if err := deps.Compile(); err != nil {
		log.Fatalf(ctx, err, "failed to compile node output schemas")
	}

	eng := dinmem.New()
	checkpoints := inmem.New()
	runs := runstoreinmem.New()
	d, err := driver.New(eng, checkpoints, runs, deps, cfg, logger)
	if err != nil {
		log.Fatalf(ctx, err, "failed to construct driver")
	}

	var bridge *streambridge.Sink
	if *streamRedisF != "" {
		pulseClient, err := clientspulse.New(clientspulse.Options{Redis: goredis.NewClient(&goredis.Options{Addr: *streamRedisF})})
		if err != nil {
			log.Fatalf(ctx, err, "failed to build pulse client")
		}
		bridge, err = streambridge.NewSink(pulseClient)
		if err != nil {
			log.Fatalf(ctx, err, "failed to build stream bridge")
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c
		log.Print(ctx, log.KV{K: "msg", V: "interrupt received, cancelling run"})
		d.Cancel(*threadF)
		cancel()
	}()
	defer cancel()

	runREPL(ctx, d, *threadF, bridge)
}

// runREPL drives stdin/stdout through the invoke -> interrupt ->
// /confirm_plan|/end_plan|/plan -> resume cycle, printing each streamed
// event (spec section 6.3) as it arrives. When bridge is non-nil, every
// event is also published onto threadID's Pulse stream so other processes
// can observe the same run.
func runREPL(ctx context.Context, d *driver.Driver, threadID string, bridge *streambridge.Sink) {
	reader := bufio.NewScanner(os.Stdin)
	fmt.Println("research: type your question, or a bare /plan to request a research plan. Ctrl-C to cancel.")

	awaitingConfirmation := false
	for {
		fmt.Print("> ")
		if !reader.Scan() {
			return
		}
		line := strings.TrimSpace(reader.Text())
		if line == "" {
			continue
		}

		var events <-chan driver.Event
		var err error
		if awaitingConfirmation {
			events, err = d.Resume(ctx, threadID, line)
		} else {
			msg := model.Message{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: line}}}
			events, err = d.Stream(ctx, threadID, []model.Message{msg})
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		awaitingConfirmation = false
		for ev := range events {
			if bridge != nil {
				if err := bridge.Send(ctx, threadID, ev); err != nil {
					fmt.Fprintf(os.Stderr, "stream bridge publish error: %v\n", err)
				}
			}
			switch ev.Type {
			case driver.EventNodeUpdate:
				fmt.Printf("[%s]\n", ev.Node)
			case driver.EventInterrupt:
				awaitingConfirmation = true
				fmt.Println("--- plan awaiting confirmation ---")
				for _, step := range ev.PlanningSteps {
					fmt.Printf("  - %s\n", step.Query)
				}
				fmt.Println("reply /confirm_plan, /end_plan, or any other text to re-propose the plan")
			case driver.EventError:
				fmt.Fprintf(os.Stderr, "error (%s): %s\n", ev.ErrorKind, ev.Message)
			case driver.EventDone:
				fmt.Println("--- done ---")
			}
		}
	}
}

func buildLLMClient(ctx context.Context, provider string, cfg engconfig.Config, creds engconfig.Credentials) (model.Client, error) {
	var base model.Client
	var err error

	switch provider {
	case "openai":
		client := oai.NewClient(oaiopt.WithAPIKey(creds.OpenAIAPIKey))
		base, err = openai.New(openai.Options{Client: &client.Chat.Completions, DefaultModel: cfg.ReasoningModel})
	case "bedrock":
		awsCfg, cfgErr := config.LoadDefaultConfig(ctx, config.WithRegion(creds.AWSRegion))
		if cfgErr != nil {
			return nil, cfgErr
		}
		runtime := bedrockruntime.NewFromConfig(awsCfg)
		base, err = bedrock.New(bedrock.Options{Runtime: runtime, DefaultModel: cfg.ReasoningModel})
	default:
		client := sdk.NewClient(option.WithAPIKey(creds.AnthropicAPIKey))
		base, err = anthropic.New(&client.Messages, anthropic.Options{DefaultModel: cfg.ReasoningModel})
	}
	if err != nil {
		return nil, err
	}

	retried := middleware.WithRetry(base, middleware.DefaultRetryConfig())
	limiter := middleware.NewLocalRateLimiter(60_000, 120_000)
	return limiter.Middleware()(retried), nil
}
