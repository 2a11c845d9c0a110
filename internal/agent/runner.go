// Package agent runs the per-phase dialogue agents. Each agent calls the LLM
// with its own instructions and the handoff context, executes the tools of
// its phase against a scratch session, and reports a reply, a routing signal
// and the order mutations it wants applied.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/soyeahso/sawt/internal/domain"
	"github.com/soyeahso/sawt/internal/handoff"
	"github.com/soyeahso/sawt/internal/llm"
	"github.com/soyeahso/sawt/internal/logging"
)

// maxToolIterations limits how many tool call rounds the agent can perform.
const maxToolIterations = 5

// Agent handles the turns of one phase.
type Agent interface {
	Phase() domain.Phase
	Run(ctx context.Context, in Input) (*Output, error)
}

// Input is everything an agent receives for one turn.
type Input struct {
	Context handoff.Context
	Message string
	Tools   *Toolbox
}

// Output is the outcome of one agent turn.
type Output struct {
	Reply     string            `json:"reply"`
	Signal    domain.Signal     `json:"signal"`
	Mutations []domain.Mutation `json:"mutations,omitempty"`
	Model     string            `json:"model,omitempty"`
	Usage     llm.Usage         `json:"usage"`
	ToolCalls int               `json:"toolCalls"`
	Duration  time.Duration     `json:"duration"`
}

// RunnerConfig configures a phase agent.
type RunnerConfig struct {
	Phase          domain.Phase
	RestaurantName string
	MaxTokens      int
	Temperature    *float64
	ExtraPrompt    string
	Now            func() time.Time
}

// Runner is the LLM-backed Agent for one phase.
type Runner struct {
	cfg    RunnerConfig
	client llm.Client
	log    *logging.Logger
}

// NewRunner creates a phase agent.
func NewRunner(cfg RunnerConfig, client llm.Client, log *logging.Logger) *Runner {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Runner{
		cfg:    cfg,
		client: client,
		log:    log.Sub("agent." + string(cfg.Phase)),
	}
}

// Phase returns the phase this agent serves.
func (r *Runner) Phase() domain.Phase { return r.cfg.Phase }

// Run processes one customer message.
func (r *Runner) Run(ctx context.Context, in Input) (*Output, error) {
	start := time.Now()
	if in.Tools == nil {
		return nil, fmt.Errorf("agent %s: no toolbox", r.cfg.Phase)
	}

	tools := ToolsFor(r.cfg.Phase, in.Tools)
	system := BuildSystemPrompt(PromptConfig{
		Phase:          r.cfg.Phase,
		RestaurantName: r.cfg.RestaurantName,
		Tools:          tools.Definitions(),
		ExtraPrompt:    r.cfg.ExtraPrompt,
		Now:            r.cfg.Now(),
	})

	messages := []llm.Message{{
		Role:    llm.RoleUser,
		Content: in.Context.Render() + "\n## Customer message\n\n" + in.Message,
	}}

	r.log.Debug().
		Str("sessionId", in.Context.SessionID).
		Int("contextTokens", in.Context.EstimateTokens()).
		Msg("running agent")

	// Tool execution loop
	var (
		finalResp *llm.CompletionResponse
		usage     llm.Usage
		toolCalls int
	)
	for i := 0; i < maxToolIterations; i++ {
		req := llm.CompletionRequest{
			System:      system,
			Messages:    messages,
			MaxTokens:   r.cfg.MaxTokens,
			Temperature: r.cfg.Temperature,
		}

		resp, err := r.client.Complete(ctx, req)
		if err != nil {
			return nil, domain.External("llm", fmt.Errorf("LLM completion: %w", err))
		}
		finalResp = resp
		usage.InputTokens += resp.Usage.InputTokens
		usage.OutputTokens += resp.Usage.OutputTokens

		// Check for tool calls in the response
		calls := parseToolCalls(resp.Content)
		if len(calls) == 0 {
			break
		}
		toolCalls += len(calls)

		r.log.Info().Int("toolCalls", len(calls)).Msg("executing tool calls")

		results, err := r.executeToolCalls(ctx, tools, calls)
		if err != nil {
			return nil, err
		}

		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: resp.Content},
			llm.Message{Role: llm.RoleUser, Content: formatToolResults(results)},
		)
		// Loop to let the LLM process tool results
	}

	if finalResp == nil {
		return nil, domain.External("llm", errors.New("no response from LLM"))
	}

	// Only a successful confirm_order confirms; tags never do.
	sig, reply := extractSignal(r.cfg.Phase, stripToolCalls(finalResp.Content, r.log))
	if r.cfg.Phase == domain.PhaseCheckout && sig.Kind == domain.SignalContinue && in.Tools.ConfirmRequested() {
		sig = domain.ConfirmSignal()
	}

	out := &Output{
		Reply:     reply,
		Signal:    sig,
		Mutations: in.Tools.Mutations(),
		Model:     finalResp.Model,
		Usage:     usage,
		ToolCalls: toolCalls,
		Duration:  time.Since(start),
	}

	r.log.Info().
		Str("sessionId", in.Context.SessionID).
		Str("model", finalResp.Model).
		Str("signal", sig.String()).
		Int("mutations", len(out.Mutations)).
		Int("inputTokens", usage.InputTokens).
		Int("outputTokens", usage.OutputTokens).
		Dur("duration", out.Duration).
		Msg("agent turn complete")

	return out, nil
}

// toolCall is a parsed tool invocation from the LLM response.
type toolCall struct {
	Tool  string          `json:"tool"`
	Input json.RawMessage `json:"input"`
}

// toolResult holds the output from executing a tool.
type toolResult struct {
	Tool   string
	Output string
	Err    error
}

// toolCallRe matches ```tool_call\n{...}\n``` blocks in LLM output.
var toolCallRe = regexp.MustCompile("(?s)```tool_call\\s*\n(\\{.*?\\})\n\\s*```")

// xmlFuncCallRe matches <function_calls>...</function_calls> XML blocks in LLM output.
var xmlFuncCallRe = regexp.MustCompile(`(?s)<function_calls>.*?</function_calls>`)

// xmlBlockLevelRe matches self-contained XML blocks that LLMs emit for tool use.
var xmlBlockLevelRe = regexp.MustCompile(`(?s)(?:` +
	`<invoke\b[^>]*>.*?</invoke>` +
	`|<tool_call\b[^>]*>.*?</tool_call>` +
	`|<tool_use\b[^>]*>.*?</tool_use>` +
	`)`)

// xmlInlineTagRe matches parameter tags that can appear inline within text.
var xmlInlineTagRe = regexp.MustCompile(`(?s)<parameter\b[^>]*>.*?</parameter>`)

// codeFenceRe matches fenced code block opening/closing markers on their own line.
// Only the markers are stripped; content between fences is preserved.
var codeFenceRe = regexp.MustCompile(`(?m)^\s*` + "```" + `\w*\s*$`)

// whitespaceLineRe matches lines containing only horizontal whitespace.
var whitespaceLineRe = regexp.MustCompile(`(?m)^[ \t]+$`)

// blankLineCollapseRe collapses 3+ consecutive newlines to a single blank line.
var blankLineCollapseRe = regexp.MustCompile(`\n{3,}`)

// parseToolCalls extracts tool_call blocks from LLM response text.
func parseToolCalls(text string) []toolCall {
	matches := toolCallRe.FindAllStringSubmatch(text, -1)
	var calls []toolCall
	for _, match := range matches {
		if len(match) < 2 {
			continue
		}
		var tc toolCall
		if err := json.Unmarshal([]byte(match[1]), &tc); err != nil {
			continue
		}
		if tc.Tool != "" {
			calls = append(calls, tc)
		}
	}
	return calls
}

// executeToolCalls runs each tool and returns results. Tool errors are
// reported back to the model, except failures of external services and
// cancellation, which abort the turn.
func (r *Runner) executeToolCalls(ctx context.Context, tools *ToolRegistry, calls []toolCall) ([]toolResult, error) {
	var results []toolResult
	for _, tc := range calls {
		tool, ok := tools.Get(tc.Tool)
		if !ok {
			results = append(results, toolResult{
				Tool: tc.Tool,
				Err:  fmt.Errorf("unknown tool: %s", tc.Tool),
			})
			continue
		}

		r.log.Debug().Str("tool", tc.Tool).Msg("executing tool")
		output, err := tool.Execute(ctx, string(tc.Input))
		if err != nil && abortsTurn(ctx, err) {
			r.log.Warn().Str("tool", tc.Tool).Err(err).Msg("tool failed, aborting turn")
			return nil, err
		}
		results = append(results, toolResult{
			Tool:   tc.Tool,
			Output: output,
			Err:    err,
		})
	}
	return results, nil
}

func abortsTurn(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, domain.ErrExternal) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// formatToolResults renders tool execution results for the LLM.
func formatToolResults(results []toolResult) string {
	var b strings.Builder
	b.WriteString("Tool execution results:\n\n")
	for _, r := range results {
		fmt.Fprintf(&b, "### %s\n", r.Tool)
		if r.Err != nil {
			fmt.Fprintf(&b, "Error: %s\n", r.Err)
		} else {
			b.WriteString(r.Output)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// stripToolCalls removes tool_call code blocks and XML function_calls blocks
// from the response, leaving surrounding text.
func stripToolCalls(text string, log *logging.Logger) string {
	// Block-level elements are replaced with a paragraph break so
	// surrounding text stays visually separated. Inline tags use a space.
	cleaned := toolCallRe.ReplaceAllString(text, "\n\n")

	xmlMatches := xmlFuncCallRe.FindAllString(cleaned, -1)
	if len(xmlMatches) > 0 && log != nil {
		for _, m := range xmlMatches {
			log.Info().Str("xml", m).Msg("stripped XML function_calls from LLM response")
		}
	}
	cleaned = xmlFuncCallRe.ReplaceAllString(cleaned, "\n\n")
	cleaned = xmlBlockLevelRe.ReplaceAllString(cleaned, "\n\n")
	cleaned = xmlInlineTagRe.ReplaceAllString(cleaned, " ")

	// Chat widgets and voice do not render markdown fences.
	cleaned = codeFenceRe.ReplaceAllString(cleaned, "")

	cleaned = whitespaceLineRe.ReplaceAllString(cleaned, "")
	cleaned = blankLineCollapseRe.ReplaceAllString(cleaned, "\n\n")

	return strings.TrimSpace(cleaned)
}
