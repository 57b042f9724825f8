// Package narrate turns a comparison table into a plain-English
// performance narrative using an LLM provider. Narration is optional
// sugar on top of a run: a nil provider disables it and failures are
// never fatal to the backtest itself.
package narrate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hindsightlab/hindsight/internal/backtest"
	"github.com/hindsightlab/hindsight/internal/core"
	"github.com/hindsightlab/hindsight/internal/llm"
	"go.uber.org/zap"
)

const systemPrompt = `You are an assistant summarizing cryptocurrency backtest results.
You receive a ranked comparison of trading strategies over historical data.
Write a concise markdown narrative: which strategies worked, which did not,
notable risk characteristics (drawdown, win rate vs profit factor), and any
caveats about thin trade counts. Do not invent numbers not present in the data.
Past performance is not a recommendation; do not give investment advice.`

// Request describes one run to narrate.
type Request struct {
	Table    *backtest.Table
	From     time.Time
	To       time.Time
	Interval core.Interval
}

// Narrator generates run narratives.
type Narrator struct {
	provider llm.Provider
	logger   *zap.Logger
}

// New creates a narrator. A nil provider disables narration.
func New(provider llm.Provider, logger *zap.Logger) *Narrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Narrator{provider: provider, logger: logger}
}

// Enabled reports whether a provider is configured.
func (n *Narrator) Enabled() bool {
	return n.provider != nil
}

// Narrate asks the provider for a markdown narrative of the table.
func (n *Narrator) Narrate(ctx context.Context, req Request) (string, error) {
	if n.provider == nil {
		return "", core.WrapError(core.ErrLLMFailed, fmt.Errorf("no provider configured"))
	}
	if req.Table == nil || len(req.Table.Rows) == 0 {
		return "", core.WrapError(core.ErrNoData, fmt.Errorf("empty comparison table"))
	}

	resp, err := n.provider.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      buildPrompt(req),
		MaxTokens:   1024,
		Temperature: 0.4,
	})
	if err != nil {
		return "", core.WrapError(core.ErrLLMFailed, err)
	}

	n.logger.Debug("narration generated",
		zap.String("provider", n.provider.Name()),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
	)
	return resp.Text, nil
}

func buildPrompt(req Request) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## Backtest Window: %s to %s (%s bars)\n\n",
		req.From.Format("2006-01-02"),
		req.To.Format("2006-01-02"),
		req.Interval))

	sb.WriteString(fmt.Sprintf("## Ranking metric: %s\n\n", req.Table.SortKey))

	sb.WriteString("## Results (ranked):\n")
	for i, row := range req.Table.Rows {
		sb.WriteString(fmt.Sprintf(
			"%d. %s / %s: return %.2f%%, trades %d, win rate %.1f%%, max drawdown %.2f%%, sharpe %.2f\n",
			i+1, row.Symbol, row.Strategy,
			row.TotalReturn*100, row.NumTrades, row.WinRate*100,
			row.MaxDrawdown*100, row.SharpeRatio))
	}
	sb.WriteString("\n")

	sb.WriteString("## Task:\n")
	sb.WriteString("Summarize these results in markdown for a trader reviewing the run.\n")

	return sb.String()
}
