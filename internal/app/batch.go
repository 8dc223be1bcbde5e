package service

import "github.com/okian/whisper/pkg/metrics"

// ItemResult is the outcome of one batch item.
type ItemResult struct {
	ParticipantID int64  `json:"participantId"`
	OK            bool   `json:"ok"`
	Error         string `json:"error,omitempty"`
}

// BatchReport collects per-item outcomes. A failed item never aborts the batch.
type BatchReport struct {
	Operation string       `json:"operation"`
	Items     []ItemResult `json:"items"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
}

func newBatchReport(operation string, size int) *BatchReport {
	return &BatchReport{Operation: operation, Items: make([]ItemResult, 0, size)}
}

func (b *BatchReport) add(id int64, err error) {
	item := ItemResult{ParticipantID: id, OK: err == nil}
	if err != nil {
		item.Error = err.Error()
		b.Failed++
		metrics.RecordBatchItem(b.Operation, "failed")
	} else {
		b.Succeeded++
		metrics.RecordBatchItem(b.Operation, "ok")
	}
	b.Items = append(b.Items, item)
}
