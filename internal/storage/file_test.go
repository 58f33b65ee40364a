package storage

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yutingko/teascout/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFileStorageRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage(dir, testLogger())
	if err != nil {
		t.Fatalf("NewFileStorage: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	ds := &types.Dataset{
		GeneratedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		PipelineMode: "full",
		StoreCount:   1,
		Stores: []types.ClassifiedStore{
			{Name: "春水堂", Label: "手搖飲", URL: "https://example.com/a", AvgPrice: 80},
		},
	}
	if err := s.SaveDataset(ctx, ds); err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "dataset.json"))
	if err != nil {
		t.Fatalf("read dataset: %v", err)
	}
	var got types.Dataset
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("parse dataset: %v", err)
	}
	if got.StoreCount != 1 || got.PipelineMode != "full" || len(got.Stores) != 1 {
		t.Errorf("dataset = %+v", got)
	}
	if got.Stores[0].Label != "手搖飲" {
		t.Errorf("store = %+v", got.Stores[0])
	}
}

func TestFileStorageRawStoresAndOutcomes(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage(dir, testLogger())
	if err != nil {
		t.Fatalf("NewFileStorage: %v", err)
	}

	ctx := context.Background()
	stores := []types.Store{
		{Name: "a", Category: "c", URL: "https://example.com/a"},
	}
	if err := s.SaveRawStores(ctx, stores); err != nil {
		t.Fatalf("SaveRawStores: %v", err)
	}
	outcomes := []types.CategoryOutcome{
		{Label: "c", State: "SUCCEEDED", StoreCount: 1},
	}
	if err := s.SaveOutcomes(ctx, outcomes); err != nil {
		t.Fatalf("SaveOutcomes: %v", err)
	}

	var gotStores []types.Store
	readJSON(t, filepath.Join(dir, "raw_stores.json"), &gotStores)
	if len(gotStores) != 1 || gotStores[0].Name != "a" {
		t.Errorf("raw stores = %+v", gotStores)
	}

	var gotOutcomes []types.CategoryOutcome
	readJSON(t, filepath.Join(dir, "outcomes.json"), &gotOutcomes)
	if len(gotOutcomes) != 1 || gotOutcomes[0].State != "SUCCEEDED" {
		t.Errorf("outcomes = %+v", gotOutcomes)
	}
}

func TestFileStorageLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage(dir, testLogger())
	if err != nil {
		t.Fatalf("NewFileStorage: %v", err)
	}
	if err := s.SaveRawStores(context.Background(), nil); err != nil {
		t.Fatalf("SaveRawStores: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestOpenRejectsUnknownType(t *testing.T) {
	if _, err := Open("parquet", t.TempDir(), "", "", "", testLogger()); err == nil {
		t.Fatal("expected error for unknown storage type")
	}
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
}
