// Package integration exercises the full poll → fetch → normalize →
// validate → write flow against a stubbed search API and backend.
package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"

	"newsingest/internal/config"
	"newsingest/internal/logger"
	"newsingest/internal/models"
	"newsingest/internal/normalizer"
	"newsingest/internal/scheduler"
	"newsingest/internal/source"
	"newsingest/internal/stream"
)

// capturingBackend acknowledges every record and keeps what it received.
type capturingBackend struct {
	mu      sync.Mutex
	entries []types.PutRecordsRequestEntry
}

func (b *capturingBackend) PutRecords(_ context.Context, in *kinesis.PutRecordsInput, _ ...func(*kinesis.Options)) (*kinesis.PutRecordsOutput, error) {
	b.mu.Lock()
	b.entries = append(b.entries, in.Records...)
	b.mu.Unlock()

	records := make([]types.PutRecordsResultEntry, len(in.Records))
	for i := range records {
		records[i] = types.PutRecordsResultEntry{SequenceNumber: aws.String("1"), ShardId: aws.String("shard-0")}
	}

	return &kinesis.PutRecordsOutput{Records: records, FailedRecordCount: aws.Int32(0)}, nil
}

func (b *capturingBackend) DescribeStreamSummary(context.Context, *kinesis.DescribeStreamSummaryInput, ...func(*kinesis.Options)) (*kinesis.DescribeStreamSummaryOutput, error) {
	return &kinesis.DescribeStreamSummaryOutput{
		StreamDescriptionSummary: &types.StreamDescriptionSummary{StreamStatus: types.StreamStatusActive},
	}, nil
}

func TestPipeline_EndToEnd(t *testing.T) {
	sourceServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(models.SearchResponse{
			Status:       "ok",
			TotalResults: 3,
			Articles: []models.RawArticle{
				{
					Source:      models.RawSource{Name: "BBC"},
					Title:       "A",
					URL:         "http://x",
					PublishedAt: "2026-01-01T00:00:00Z",
					Content:     "body",
				},
				{
					// Missing title: dropped during normalization.
					Source:      models.RawSource{Name: "BBC"},
					URL:         "http://y",
					PublishedAt: "2026-01-01T00:00:00Z",
				},
				{
					Source:      models.RawSource{Name: "Reuters"},
					Author:      "Jane Doe",
					Title:       "B",
					URL:         "https://example.com/b",
					PublishedAt: "2026-01-02T00:00:00Z",
					Description: "fallback body",
				},
			},
		})
	}))
	defer sourceServer.Close()

	log := logger.New("error")

	srcCfg := config.SourceConfig{
		BaseURL:    sourceServer.URL,
		Query:      "news",
		SortBy:     "publishedAt",
		Language:   "en",
		PageSize:   100,
		MaxPages:   5,
		TimeoutSec: 5,
	}
	streamCfg := config.StreamConfig{
		Name:               "it-stream",
		MaxBatchRecords:    500,
		MaxRecordBytes:     1 << 20,
		MaxBatchBytes:      5 << 20,
		MaxInFlightBatches: 2,
	}
	retry := config.RetryPolicy{MaxAttempts: 3, InitialDelayMs: 1, MaxDelayMs: 10, BackoffMultiplier: 2.0}

	client := source.NewClient(srcCfg, retry, "test-key", log)
	processor := normalizer.NewProcessor(log)
	backend := &capturingBackend{}
	writer := stream.NewWriter(backend, streamCfg, retry, log)

	sched := scheduler.New(
		config.SchedulerConfig{PollIntervalSec: 1, LookbackHours: 24},
		func(window models.PollWindow) scheduler.Pages { return client.Fetch(window) },
		processor,
		writer,
		log,
	)
	sched.SetMaxTicks(1)

	if err := sched.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(backend.entries) != 2 {
		t.Fatalf("backend received %d records, want 2", len(backend.entries))
	}

	var first models.Article
	if err := json.Unmarshal(backend.entries[0].Data, &first); err != nil {
		t.Fatalf("backend payload is not a wire record: %v", err)
	}

	wantID := models.ArticleID("BBC", "A", "http://x")
	if first.ID != wantID {
		t.Errorf("article_id = %s, want %s", first.ID, wantID)
	}

	if got := aws.ToString(backend.entries[0].PartitionKey); got != wantID {
		t.Errorf("partition key = %s, want article id", got)
	}

	var second models.Article
	if err := json.Unmarshal(backend.entries[1].Data, &second); err != nil {
		t.Fatalf("backend payload is not a wire record: %v", err)
	}

	if second.Content != "fallback body" {
		t.Errorf("content = %q, want description fallback", second.Content)
	}

	if second.Author == nil || *second.Author != "Jane Doe" {
		t.Errorf("author = %v", second.Author)
	}
}
