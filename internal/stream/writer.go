package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"
	"github.com/aws/smithy-go"

	"newsingest/internal/config"
	"newsingest/internal/logger"
	"newsingest/internal/models"
)

// ErrStreamNotActive is returned by Ping when the stream exists but is not
// in a writable state.
var ErrStreamNotActive = errors.New("stream is not active")

// Drop codes assigned by the writer itself, as opposed to backend error
// codes passed through verbatim.
const (
	CodeRecordTooLarge = "RecordTooLarge"
	CodeMarshalFailure = "MarshalFailure"
)

// kinesisAPI is the slice of the Kinesis client the writer needs.
// *kinesis.Client satisfies it; tests substitute a scripted fake.
type kinesisAPI interface {
	PutRecords(ctx context.Context, params *kinesis.PutRecordsInput, optFns ...func(*kinesis.Options)) (*kinesis.PutRecordsOutput, error)
	DescribeStreamSummary(ctx context.Context, params *kinesis.DescribeStreamSummaryInput, optFns ...func(*kinesis.Options)) (*kinesis.DescribeStreamSummaryOutput, error)
}

// Drop records one article permanently removed from the flow, with enough
// context to audit it later.
type Drop struct {
	ArticleID string
	Code      string
	Message   string
	Retries   int
}

// WriteReport summarizes one Write call. Submitted counts records that
// reached packing; Retried counts record resubmissions, so one record
// retried twice contributes two.
type WriteReport struct {
	Drops     []Drop
	Submitted int
	Succeeded int
	Retried   int
	Dropped   int
}

// record is an encoded article ready for submission.
type record struct {
	articleID    string
	partitionKey string
	data         []byte
}

func (r record) size() int {
	return len(r.data) + len(r.partitionKey)
}

// Writer submits articles to the stream backend in bounded batches.
// Batches are independent after packing, so submissions run on a small
// worker pool; partial failures are repacked and retried with backoff.
type Writer struct {
	api    kinesisAPI
	logger *logger.Logger
	sleep  func(context.Context, time.Duration)
	cfg    config.StreamConfig
	retry  config.RetryPolicy
}

// NewWriter creates a writer on top of a Kinesis client.
func NewWriter(api kinesisAPI, cfg config.StreamConfig, retry config.RetryPolicy, log *logger.Logger) *Writer {
	return &Writer{
		api:    api,
		logger: log,
		sleep:  sleepCtx,
		cfg:    cfg,
		retry:  retry,
	}
}

// Ping verifies the stream exists and accepts writes. Called once at
// startup; a failure here is the only error worth stopping the process for.
func (w *Writer) Ping(ctx context.Context) error {
	out, err := w.api.DescribeStreamSummary(ctx, &kinesis.DescribeStreamSummaryInput{
		StreamName: aws.String(w.cfg.Name),
	})
	if err != nil {
		return fmt.Errorf("failed to describe stream %q: %w", w.cfg.Name, err)
	}

	status := out.StreamDescriptionSummary.StreamStatus
	if status != types.StreamStatusActive && status != types.StreamStatusUpdating {
		return fmt.Errorf("%w: %q is %s", ErrStreamNotActive, w.cfg.Name, status)
	}

	return nil
}

// Write packs the articles into batches and submits them. Every input
// record ends up either succeeded or in Drops; nothing is lost silently.
func (w *Writer) Write(ctx context.Context, articles []models.Article) *WriteReport {
	report := &WriteReport{Submitted: len(articles)}

	records, drops := w.encode(articles)
	report.Drops = drops
	report.Dropped = len(drops)

	batches := w.pack(records)
	if len(batches) == 0 {
		return report
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, w.cfg.MaxInFlightBatches)
	)

	for _, batch := range batches {
		wg.Add(1)

		go func(batch []record) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			outcome := w.submitBatch(ctx, batch)

			mu.Lock()
			defer mu.Unlock()

			report.Succeeded += outcome.succeeded
			report.Retried += outcome.retried
			report.Dropped += len(outcome.drops)
			report.Drops = append(report.Drops, outcome.drops...)
		}(batch)
	}

	wg.Wait()

	return report
}

// encode marshals articles into records, dropping any that cannot be
// marshaled or that exceed the per-record byte bound on their own. An
// oversized record would be rejected by the backend on every attempt, so
// it is never retried.
func (w *Writer) encode(articles []models.Article) ([]record, []Drop) {
	records := make([]record, 0, len(articles))

	var drops []Drop

	for _, a := range articles {
		data, err := json.Marshal(a)
		if err != nil {
			drops = append(drops, Drop{ArticleID: a.ID, Code: CodeMarshalFailure, Message: err.Error()})
			continue
		}

		r := record{articleID: a.ID, partitionKey: a.ID, data: data}
		if r.size() > w.cfg.MaxRecordBytes {
			drops = append(drops, Drop{
				ArticleID: a.ID,
				Code:      CodeRecordTooLarge,
				Message:   fmt.Sprintf("%d bytes exceeds limit of %d", r.size(), w.cfg.MaxRecordBytes),
			})

			continue
		}

		records = append(records, r)
	}

	return records, drops
}

// pack groups records into batches, greedily in input order, respecting
// both the record-count and aggregate-byte bounds.
func (w *Writer) pack(records []record) [][]record {
	var batches [][]record

	var (
		current []record
		bytes   int
	)

	for _, r := range records {
		if len(current) > 0 && (len(current) >= w.cfg.MaxBatchRecords || bytes+r.size() > w.cfg.MaxBatchBytes) {
			batches = append(batches, current)
			current = nil
			bytes = 0
		}

		current = append(current, r)
		bytes += r.size()
	}

	if len(current) > 0 {
		batches = append(batches, current)
	}

	return batches
}

type batchOutcome struct {
	drops     []Drop
	succeeded int
	retried   int
}

// submitBatch sends one batch, resubmitting the retryable subset with
// jittered backoff until everything lands or the attempt ceiling is hit.
// Order is preserved within each resubmitted batch.
func (w *Writer) submitBatch(ctx context.Context, batch []record) batchOutcome {
	var out batchOutcome

	pending := batch

	for attempt := 1; ; attempt++ {
		failed, failCode, failMsg := w.putOnce(ctx, pending, &out)
		if len(failed) == 0 {
			return out
		}

		if attempt >= w.retry.MaxAttempts {
			for _, r := range failed {
				out.drops = append(out.drops, Drop{
					ArticleID: r.articleID,
					Code:      failCode,
					Message:   failMsg,
					Retries:   attempt - 1,
				})
			}

			w.logger.Warn("dropping records after exhausted retries",
				"count", len(failed), "attempts", attempt, "code", failCode)

			return out
		}

		out.retried += len(failed)
		pending = failed

		w.sleep(ctx, w.retry.JitteredDelay(attempt + 1))
	}
}

// putOnce performs a single PutRecords call over pending. Non-retryable
// per-record failures are appended to out.drops immediately; the retryable
// subset is returned along with the last failure code seen.
func (w *Writer) putOnce(ctx context.Context, pending []record, out *batchOutcome) ([]record, string, string) {
	entries := make([]types.PutRecordsRequestEntry, len(pending))
	for i, r := range pending {
		entries[i] = types.PutRecordsRequestEntry{
			Data:         r.data,
			PartitionKey: aws.String(r.partitionKey),
		}
	}

	resp, err := w.api.PutRecords(ctx, &kinesis.PutRecordsInput{
		StreamName: aws.String(w.cfg.Name),
		Records:    entries,
	})
	if err != nil {
		code, retryable := classifyCallError(err)
		if !retryable {
			for _, r := range pending {
				out.drops = append(out.drops, Drop{ArticleID: r.articleID, Code: code, Message: err.Error()})
			}

			return nil, "", ""
		}

		// The whole call failed transiently; every record is still pending.
		return pending, code, err.Error()
	}

	var (
		failed   []record
		failCode string
		failMsg  string
	)

	for i, entry := range resp.Records {
		if entry.ErrorCode == nil {
			out.succeeded++
			continue
		}

		code := aws.ToString(entry.ErrorCode)
		msg := aws.ToString(entry.ErrorMessage)

		if isRetryableCode(code) {
			failed = append(failed, pending[i])
			failCode = code
			failMsg = msg

			continue
		}

		out.drops = append(out.drops, Drop{ArticleID: pending[i].articleID, Code: code, Message: msg})
	}

	return failed, failCode, failMsg
}

// isRetryableCode reports whether a per-record backend error code is worth
// resubmitting.
func isRetryableCode(code string) bool {
	switch code {
	case "ProvisionedThroughputExceededException", "InternalFailure":
		return true
	}

	return false
}

// classifyCallError classifies a whole-call PutRecords error. Network-level
// failures and throttling are retryable; anything else (missing stream,
// denied access) drops the batch.
func classifyCallError(err error) (code string, retryable bool) {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return "RequestFailure", true
	}

	switch apiErr.ErrorCode() {
	case "ProvisionedThroughputExceededException", "InternalFailure",
		"ServiceUnavailable", "LimitExceededException":
		return apiErr.ErrorCode(), true
	}

	return apiErr.ErrorCode(), false
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
