package narrate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hindsightlab/hindsight/internal/backtest"
	"github.com/hindsightlab/hindsight/internal/core"
	"github.com/hindsightlab/hindsight/internal/llm"
)

type fakeProvider struct {
	lastReq llm.Request
	reply   string
	err     error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Text: f.reply}, nil
}

func tableFixture(t *testing.T) *backtest.Table {
	t.Helper()
	table, err := backtest.Compare(map[backtest.Key]backtest.Summary{
		{Symbol: "ETHBTC", Strategy: "sma_cross"}: {TotalReturn: 0.25, NumTrades: 4, WinRate: 0.75},
		{Symbol: "LTCBTC", Strategy: "rsi_bb"}:    {TotalReturn: -0.05, NumTrades: 2, WinRate: 0.5},
	}, "")
	if err != nil {
		t.Fatalf("building table: %v", err)
	}
	return table
}

func TestNarrate(t *testing.T) {
	provider := &fakeProvider{reply: "The SMA crossover led the run."}
	narrator := New(provider, nil)

	text, err := narrator.Narrate(context.Background(), Request{
		Table:    tableFixture(t),
		From:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Interval: core.Interval1m,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "The SMA crossover led the run." {
		t.Errorf("unexpected narrative: %q", text)
	}

	prompt := provider.lastReq.Prompt
	if !strings.Contains(prompt, "ETHBTC / sma_cross") {
		t.Errorf("prompt missing ranked row: %s", prompt)
	}
	if !strings.Contains(prompt, "2024-01-01 to 2024-02-01") {
		t.Errorf("prompt missing window: %s", prompt)
	}
	// The winner ranks first in the prompt.
	if strings.Index(prompt, "ETHBTC") > strings.Index(prompt, "LTCBTC") {
		t.Error("expected ETHBTC row before LTCBTC row")
	}
	if provider.lastReq.System == "" {
		t.Error("expected a system prompt")
	}
	if provider.lastReq.MaxTokens <= 0 {
		t.Error("expected a completion length cap")
	}
}

func TestNarrate_NoProvider(t *testing.T) {
	narrator := New(nil, nil)
	if narrator.Enabled() {
		t.Error("expected narrator to be disabled without a provider")
	}

	_, err := narrator.Narrate(context.Background(), Request{Table: tableFixture(t)})
	if !errors.Is(err, core.ErrLLMFailed) {
		t.Errorf("expected ErrLLMFailed, got %v", err)
	}
}

func TestNarrate_EmptyTable(t *testing.T) {
	narrator := New(&fakeProvider{}, nil)

	_, err := narrator.Narrate(context.Background(), Request{Table: &backtest.Table{}})
	if !errors.Is(err, core.ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestNarrate_ProviderFailure(t *testing.T) {
	narrator := New(&fakeProvider{err: errors.New("boom")}, nil)

	_, err := narrator.Narrate(context.Background(), Request{Table: tableFixture(t)})
	if !errors.Is(err, core.ErrLLMFailed) {
		t.Errorf("expected ErrLLMFailed, got %v", err)
	}
}
