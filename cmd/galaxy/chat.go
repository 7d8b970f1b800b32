package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aschepis/backscratcher/galaxy/concurrent"
	"github.com/aschepis/backscratcher/galaxy/config"
	"github.com/aschepis/backscratcher/galaxy/files"
	"github.com/aschepis/backscratcher/galaxy/llm"
	"github.com/aschepis/backscratcher/galaxy/strutil"
)

// chatRecord is what -out writes for each answered prompt.
type chatRecord struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model,omitempty"`
	Prompt   string      `json:"prompt"`
	Result   *llm.Result `json:"result,omitempty"`
	Error    string      `json:"error,omitempty"`
}

func (a *app) runChat(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	var (
		provider = fs.String("provider", "siliconflow", "Provider: openai, siliconflow or dify")
		model    = fs.String("model", "", "Model name (provider default when empty)")
		prompt   = fs.String("prompt", "", "User prompt")
		system   = fs.String("system", "", "Optional system prompt")
		think    = fs.Bool("think", false, "Enable thinking")
		stream   = fs.Bool("stream", true, "Stream the response")
		batch    = fs.String("batch", "", "File with one prompt per line, answered concurrently")
		outDir   = fs.String("out", "", "Directory to save each result as JSON")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	prompts, err := collectPrompts(*prompt, *batch)
	if err != nil {
		return err
	}

	inv, err := a.invoker(*provider)
	if err != nil {
		return err
	}

	ask := func(ctx context.Context, p string) (*llm.Result, error) {
		var msgs []llm.Message
		if *system != "" {
			msgs = append(msgs, llm.NewTextMessage(llm.RoleSystem, *system))
		}
		msgs = append(msgs, llm.NewTextMessage(llm.RoleUser, p))
		return inv.Invoke(ctx, &llm.Request{
			Model:          *model,
			Messages:       msgs,
			Stream:         *stream,
			EnableThinking: *think,
		})
	}

	opts := config.DispatchOptions(a.cfg)
	opts.Policy = concurrent.PolicyCollect
	opts.Logger = a.logger
	opts.Metrics = a.metrics

	outcomes, err := concurrent.Dispatch(ctx, ask, prompts, opts)
	if err != nil && concurrent.FailedIndex(err) < 0 {
		// Timeout or cancellation; the outcomes still hold what finished.
		a.logger.Warn().Err(err).Msg("Chat batch did not finish")
	}

	failed := 0
	for i, out := range outcomes {
		rec := chatRecord{Provider: *provider, Model: *model, Prompt: prompts[i]}
		if out.Err != nil {
			failed++
			rec.Error = out.Err.Error()
			a.logger.Error().Err(out.Err).Int("index", i).Msg("Prompt failed")
		} else {
			rec.Result = out.Value
			printResult(len(prompts) > 1, i, out.Value)
		}

		if *outDir != "" {
			path := filepath.Join(*outDir, "chat-"+strutil.RandomString(0)+".json")
			if err := files.SaveJSON(path, rec, a.logger); err != nil {
				return err
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d prompts failed", failed, len(prompts))
	}
	return err
}

func (a *app) invoker(provider string) (llm.Invoker, error) {
	var (
		inv llm.Invoker
		err error
	)
	switch provider {
	case "openai":
		inv, err = config.NewOpenAIClient(a.cfg, a.logger, a.metrics)
	case "siliconflow":
		inv, err = config.NewSiliconFlowClient(a.cfg, a.logger, a.metrics)
	case "dify":
		inv, err = config.NewDifyClient(a.cfg, a.logger, a.metrics)
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
	if err != nil {
		return nil, err
	}
	return llm.WrapWithMiddleware(inv, llm.LoggingMiddleware(provider, a.logger)), nil
}

// collectPrompts returns the single prompt, or the non-blank lines of the batch file.
func collectPrompts(prompt, batchPath string) ([]string, error) {
	if batchPath == "" {
		if strings.TrimSpace(prompt) == "" {
			return nil, fmt.Errorf("-prompt or -batch is required")
		}
		return []string{prompt}, nil
	}

	f, err := os.Open(batchPath) //#nosec 304 -- user-selected batch file
	if err != nil {
		return nil, fmt.Errorf("failed to open batch file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	var prompts []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			prompts = append(prompts, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	if len(prompts) == 0 {
		return nil, fmt.Errorf("batch file %s has no prompts", batchPath)
	}
	return prompts, nil
}

func printResult(numbered bool, i int, res *llm.Result) {
	if numbered {
		fmt.Printf("=== [%d] ===\n", i)
	}
	if res.Reasoning != "" {
		fmt.Printf("<think>\n%s\n</think>\n", res.Reasoning)
	}
	fmt.Println(res.Answer)
}
