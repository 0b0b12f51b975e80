package extract

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/docpin/docpin/internal/pdfindex"
	"github.com/docpin/docpin/internal/providers"
	"github.com/docpin/docpin/internal/querytypes"
)

func docIndex() *pdfindex.DocumentIndex {
	segments := []pdfindex.PageSegment{
		{
			Page:  1,
			Text:  "Quarterly review of AAPL holdings",
			BBox:  pdfindex.BBox{X0: 72, Y0: 700, X1: 380, Y1: 712},
			Order: 0,
		},
		{
			Page:  2,
			Text:  "Acme Corp announced a merger",
			BBox:  pdfindex.BBox{X0: 72, Y0: 650, X1: 350, Y1: 662},
			Order: 1,
		},
		{
			Page:  5,
			Text:  "Acme Corp shares and Apple Inc. rallied",
			BBox:  pdfindex.BBox{X0: 72, Y0: 600, X1: 420, Y1: 612},
			Order: 2,
		},
	}
	return pdfindex.NewFromSegments(segments, 5)
}

func TestRunResolvesAndOrders(t *testing.T) {
	mock := providers.NewMockProvider(
		`[{"type":"company_name","value":"Acme Corp"},{"type":"stock_name","value":"NoSuchText123"}]`)

	resp, err := Run(context.Background(), Request{
		Index:      docIndex(),
		QueryTypes: []string{querytypes.CompanyName, querytypes.StockName},
		Provider:   mock,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// "Acme Corp" appears on pages 2 and 5; one item per occurrence.
	if len(resp.Items) != 2 {
		t.Fatalf("got %d items, want 2: %+v", len(resp.Items), resp.Items)
	}
	if resp.Items[0].Page != 2 || resp.Items[1].Page != 5 {
		t.Errorf("pages = %d, %d; want 2, 5", resp.Items[0].Page, resp.Items[1].Page)
	}

	// The hallucinated value produces no item and no error.
	if resp.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", resp.Dropped)
	}
	if resp.FailedChunks != 0 {
		t.Errorf("FailedChunks = %d, want 0", resp.FailedChunks)
	}
}

func TestRunChunkMerge(t *testing.T) {
	segments := []pdfindex.PageSegment{
		{Page: 1, Text: "Portfolio exposure to AAPL remains high", Order: 0,
			BBox: pdfindex.BBox{X0: 72, Y0: 700, X1: 400, Y1: 712}},
		{Page: 2, Text: "Apple Inc. supplies most of the revenue", Order: 1,
			BBox: pdfindex.BBox{X0: 72, Y0: 700, X1: 400, Y1: 712}},
	}
	idx := pdfindex.NewFromSegments(segments, 2)

	mock := &providers.MockProvider{Responses: []string{
		`[{"type":"stock_name","value":"AAPL"}]`,
		`[{"type":"company_name","value":"Apple Inc."}]`,
	}}

	resp, err := Run(context.Background(), Request{
		Index:      idx,
		QueryTypes: []string{querytypes.StockName, querytypes.CompanyName},
		Provider:   mock,
		Config: providers.Config{
			ContextBudget:  45, // forces one chunk per segment
			MaxConcurrency: 1,  // keeps scripted responses in chunk order
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if mock.Calls() != 2 {
		t.Errorf("Calls = %d, want 2", mock.Calls())
	}
	if len(resp.Items) != 2 {
		t.Fatalf("got %d items, want 2: %+v", len(resp.Items), resp.Items)
	}
	if resp.Items[0].Value != "AAPL" || resp.Items[0].Page != 1 {
		t.Errorf("first item = %+v, want AAPL on page 1", resp.Items[0])
	}
	if resp.Items[1].Value != "Apple Inc." || resp.Items[1].Page != 2 {
		t.Errorf("second item = %+v, want Apple Inc. on page 2", resp.Items[1])
	}
}

func TestRunPartialChunkFailure(t *testing.T) {
	segments := []pdfindex.PageSegment{
		{Page: 1, Text: "Portfolio exposure to AAPL remains high", Order: 0},
		{Page: 2, Text: "Apple Inc. supplies most of the revenue", Order: 1},
	}
	idx := pdfindex.NewFromSegments(segments, 2)

	mock := &providers.MockProvider{Responses: []string{
		`[{"type":"stock_name","value":"AAPL"}]`,
		`I am sorry, I cannot produce JSON for this.`,
	}}

	resp, err := Run(context.Background(), Request{
		Index:      idx,
		QueryTypes: []string{querytypes.StockName, querytypes.CompanyName},
		Provider:   mock,
		Config:     providers.Config{ContextBudget: 45, MaxConcurrency: 1},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.FailedChunks != 1 {
		t.Errorf("FailedChunks = %d, want 1", resp.FailedChunks)
	}
	if len(resp.Items) != 1 || resp.Items[0].Value != "AAPL" {
		t.Errorf("items = %+v, want just AAPL", resp.Items)
	}
}

func TestRunAllChunksFail(t *testing.T) {
	mock := &providers.MockProvider{
		Responses: []string{"irrelevant"},
		Errs:      []error{providers.ErrAuthentication},
	}

	_, err := Run(context.Background(), Request{
		Index:      docIndex(),
		QueryTypes: []string{querytypes.CompanyName},
		Provider:   mock,
	})
	if !errors.Is(err, providers.ErrAuthentication) {
		t.Fatalf("err = %v, want ErrAuthentication", err)
	}
}

func TestRunRetriesRateLimit(t *testing.T) {
	rl := &providers.RateLimitError{Message: "slow down"}
	mock := &providers.MockProvider{
		Responses: []string{`[{"type":"company_name","value":"Acme Corp"}]`},
		Errs:      []error{rl, rl, nil},
	}

	resp, err := Run(context.Background(), Request{
		Index:      docIndex(),
		QueryTypes: []string{querytypes.CompanyName},
		Provider: providers.WithRetry(mock, providers.Config{
			MaxRetries: 3,
			RetryDelay: time.Millisecond,
		}),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if mock.Calls() != 3 {
		t.Errorf("Calls = %d, want 3", mock.Calls())
	}
	if len(resp.Items) != 2 {
		t.Errorf("got %d items, want 2", len(resp.Items))
	}
}

func TestRunTimeoutLeavesIndexReusable(t *testing.T) {
	idx := docIndex()

	slow := &providers.MockProvider{
		Latency:   100 * time.Millisecond,
		Responses: []string{`[]`},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := Run(ctx, Request{
		Index:      idx,
		QueryTypes: []string{querytypes.CompanyName},
		Provider:   slow,
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}

	// Same index works on the retry.
	fast := providers.NewMockProvider(`[{"type":"company_name","value":"Acme Corp"}]`)
	resp, err := Run(context.Background(), Request{
		Index:      idx,
		QueryTypes: []string{querytypes.CompanyName},
		Provider:   fast,
	})
	if err != nil {
		t.Fatalf("retry Run: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Errorf("got %d items after retry, want 2", len(resp.Items))
	}
}

func TestRunDeterministicOrdering(t *testing.T) {
	response := `[
		{"type":"company_name","value":"Acme Corp"},
		{"type":"company_name","value":"Apple Inc."},
		{"type":"stock_name","value":"AAPL"},
		{"type":"company_name","value":"Acme Corp"}
	]`

	run := func() *Response {
		resp, err := Run(context.Background(), Request{
			Index:      docIndex(),
			QueryTypes: []string{querytypes.CompanyName, querytypes.StockName},
			Provider:   providers.NewMockProvider(response),
		})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return resp
	}

	first := run()
	for i := 0; i < 5; i++ {
		if got := run(); !reflect.DeepEqual(got.Items, first.Items) {
			t.Fatalf("run %d differs:\n%+v\nvs\n%+v", i, got.Items, first.Items)
		}
	}

	// Duplicate candidate collapsed: AAPL p1, Acme p2, Acme p5, Apple p5.
	if len(first.Items) != 4 {
		t.Fatalf("got %d items, want 4: %+v", len(first.Items), first.Items)
	}
	for i := 1; i < len(first.Items); i++ {
		if first.Items[i].Page < first.Items[i-1].Page {
			t.Errorf("pages out of order: %+v", first.Items)
		}
	}
}

func TestRunRulesProvider(t *testing.T) {
	segments := []pdfindex.PageSegment{
		{Page: 1, Text: "报告引用了《红楼梦》的章节", Order: 0,
			BBox: pdfindex.BBox{X0: 72, Y0: 700, X1: 300, Y1: 712}},
		{Page: 2, Text: "营收同比增长 42% 达到 3.5亿元", Order: 1,
			BBox: pdfindex.BBox{X0: 72, Y0: 650, X1: 320, Y1: 662}},
	}
	idx := pdfindex.NewFromSegments(segments, 2)

	resp, err := Run(context.Background(), Request{
		Index:      idx,
		QueryTypes: []string{querytypes.BookTitle, querytypes.Number},
		Config:     providers.Config{ProviderID: providers.RulesName},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	byValue := map[string]int{}
	for _, item := range resp.Items {
		byValue[item.Value] = item.Page
	}
	if page, ok := byValue["红楼梦"]; !ok || page != 1 {
		t.Errorf("book title not resolved to page 1: %+v", resp.Items)
	}
	if page, ok := byValue["42%"]; !ok || page != 2 {
		t.Errorf("percentage not resolved to page 2: %+v", resp.Items)
	}
	if page, ok := byValue["3.5亿元"]; !ok || page != 2 {
		t.Errorf("amount not resolved to page 2: %+v", resp.Items)
	}
}

func TestRunEmptyIndex(t *testing.T) {
	idx := pdfindex.NewFromSegments(nil, 0)
	resp, err := Run(context.Background(), Request{
		Index:      idx,
		QueryTypes: []string{querytypes.CompanyName},
		Provider:   providers.NewMockProvider(`[]`),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(resp.Items) != 0 {
		t.Errorf("got %d items, want 0", len(resp.Items))
	}
}

func TestRunUnknownQueryType(t *testing.T) {
	_, err := Run(context.Background(), Request{
		Index:      docIndex(),
		QueryTypes: []string{"telepathy"},
		Provider:   providers.NewMockProvider(`[]`),
	})
	if err == nil {
		t.Fatal("expected error for unknown query type")
	}
}
