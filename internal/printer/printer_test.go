package printer_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/mlprobe/internal/model"
	"github.com/slok/mlprobe/internal/printer"
)

func resultsFixture() []model.TaskResult {
	return []model.TaskResult{
		model.NewTookResult("image-to-text", 1500),
		{Name: "image-segmentation", Error: "could not locate file"},
	}
}

func TestTablePrinterPrintResults(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintResults(model.OutcomeSuccess, resultsFixture())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Outcome: success")
	assert.Regexp(t, `image-to-text\s+yes\s+1.50s\s+-`, out)
	assert.Regexp(t, `image-segmentation\s+no\s+-\s+could not locate file`, out)
}

func TestJSONPrinterPrintResults(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	err := p.PrintResults(model.OutcomeSuccess, resultsFixture())
	require.NoError(t, err)

	var got struct {
		What    string           `json:"what"`
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "success", got.What)
	assert.Equal(t, []map[string]any{
		{"name": "image-to-text", "took": 1500.0},
		{"name": "image-segmentation", "error": "could not locate file"},
	}, got.Results)
}

func TestPrintErrors(t *testing.T) {
	var table, js bytes.Buffer

	require.NoError(t, printer.NewTablePrinter(&table).PrintErrors(model.OutcomeError, []string{"Unknown action"}))
	require.NoError(t, printer.NewJSONPrinter(&js).PrintErrors(model.OutcomeError, []string{"Unknown action"}))

	assert.Equal(t, "Outcome: error\nError:   Unknown action\n", table.String())
	assert.JSONEq(t, `{"what":"error","errors":["Unknown action"]}`, js.String())
}

func TestPrintRuns(t *testing.T) {
	runs := []model.Run{{
		ID:         "01JJZ4XG7T6Q0V0S2R9W3K8M1A",
		TaskName:   "image-to-text",
		Outcome:    model.OutcomeSuccess,
		Results:    resultsFixture(),
		StartedAt:  time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 1, 30, 10, 0, 2, 0, time.UTC),
	}}

	var table, js bytes.Buffer
	require.NoError(t, printer.NewTablePrinter(&table).PrintRuns(runs))
	require.NoError(t, printer.NewJSONPrinter(&js).PrintRuns(runs))

	assert.Regexp(t, `01JJZ4XG7T6Q0V0S2R9W3K8M1A\s+image-to-text\s+success\s+1\s+1\s+`, table.String())
	assert.Contains(t, js.String(), `"started_at": "2026-01-30T10:00:00Z"`)
	assert.Contains(t, js.String(), `"finished_at": "2026-01-30T10:00:02Z"`)
}

func TestPrintOptions(t *testing.T) {
	opts := []model.EngineOptions{
		{TaskName: "image-to-text", ModelRevision: "main"},
		{TaskName: "image-classification", ModelID: "aaraki/vit-base-patch16-224-in21k-finetuned-cifar10", ModelHub: "huggingface", ModelRevision: "main", DType: "fp32"},
	}

	var table, js bytes.Buffer
	require.NoError(t, printer.NewTablePrinter(&table).PrintOptions(opts))
	require.NoError(t, printer.NewJSONPrinter(&js).PrintOptions(opts))

	assert.Regexp(t, `image-to-text\s+-\s+-\s+main\s+-`, table.String())
	assert.Regexp(t, `image-classification\s+aaraki/vit-base-patch16-224-in21k-finetuned-cifar10\s+huggingface\s+main\s+fp32`, table.String())
	assert.Contains(t, js.String(), `"modelId": "aaraki/vit-base-patch16-224-in21k-finetuned-cifar10"`)
}

func TestPrintProgress(t *testing.T) {
	tests := map[string]struct {
		ev       model.ProgressEvent
		expTable string
		expJSON  string
	}{
		"a regular progress event": {
			ev:       model.ProgressEvent{Type: model.MessageTypeProgressUpdate, Progress: "Loading image-to-text"},
			expTable: "> Loading image-to-text",
			expJSON:  `{"progress":"Loading image-to-text"}`,
		},
		"a busy progress event": {
			ev:       model.ProgressEvent{Type: model.MessageTypeProgressUpdate, Progress: "Already in progress", Status: model.ProgressStatusBusy},
			expTable: "[busy] Already in progress",
			expJSON:  `{"progress":"Already in progress","status":"busy"}`,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var table, js bytes.Buffer
			require.NoError(t, printer.NewTablePrinter(&table).PrintProgress(test.ev))
			require.NoError(t, printer.NewJSONPrinter(&js).PrintProgress(test.ev))

			assert.Equal(t, test.expTable, strings.TrimSpace(table.String()))
			assert.Equal(t, test.expJSON, strings.TrimSpace(js.String()))
		})
	}
}

func TestTablePrinterPrintMessage(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintMessage("ok")
	require.NoError(t, err)
	assert.Equal(t, "ok", strings.TrimSpace(buf.String()))
}

func TestPrintExports(t *testing.T) {
	exports := []model.Export{
		{TaskName: "text-generation", RequesterID: "8f0c1a4e-5d0b-4a43-9c52-5e3f3e1e2a10", Value: `[{"name":"text-generation","took":350.25}]`},
		{TaskName: "zero-shot-object-detection", RequesterID: "c2b8e1f4-0a7d-4b0e-8f21-7d6a9e4b3c55", Value: "quota exceeded"},
	}

	var table, js bytes.Buffer
	require.NoError(t, printer.NewTablePrinter(&table).PrintExports(exports))
	require.NoError(t, printer.NewJSONPrinter(&js).PrintExports(exports))

	assert.Contains(t, table.String(), "Task:      text-generation\nRequester: 8f0c1a4e-5d0b-4a43-9c52-5e3f3e1e2a10\n")
	assert.Regexp(t, `text-generation\s+yes\s+350.25ms\s+-`, table.String())
	assert.Contains(t, table.String(), "Export:    quota exceeded\n")

	assert.JSONEq(t, `[
		{"task_name":"text-generation","requester_id":"8f0c1a4e-5d0b-4a43-9c52-5e3f3e1e2a10","results":[{"name":"text-generation","took":350.25}]},
		{"task_name":"zero-shot-object-detection","requester_id":"c2b8e1f4-0a7d-4b0e-8f21-7d6a9e4b3c55","raw":"quota exceeded"}
	]`, js.String())
}
