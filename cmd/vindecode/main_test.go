package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/maiwanamini/unnamed-tms-backend/engine/domain"
	"github.com/maiwanamini/unnamed-tms-backend/engine/vin"
)

type countingDecoder struct {
	calls atomic.Int32
}

func (d *countingDecoder) Decode(_ context.Context, raw string) (*vin.Vehicle, error) {
	d.calls.Add(1)
	v, err := domain.ValidateVIN(raw)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(v, "0") {
		return nil, domain.ErrVINNotFound
	}
	return &vin.Vehicle{VIN: v, Model: "Model " + v[:3]}, nil
}

func TestDecodeAll(t *testing.T) {
	d := &countingDecoder{}
	vins := []string{"1m8gdm9axkp042788", "short", "0AAAAAAAAAAAAAAAA", "YV2RT40A8GB123456"}
	results := decodeAll(context.Background(), d, vins, 0)

	if len(results) != len(vins) || d.calls.Load() != 4 {
		t.Fatalf("got %d results, %d calls", len(results), d.calls.Load())
	}
	for i, r := range results {
		if r.Input != vins[i] {
			t.Fatalf("order not preserved at %d: %q", i, r.Input)
		}
	}
	if results[0].Vehicle == nil || results[0].Vehicle.VIN != "1M8GDM9AXKP042788" {
		t.Errorf("unexpected %+v", results[0])
	}
	if results[1].Code != domain.CodeVINInvalid {
		t.Errorf("unexpected %+v", results[1])
	}
	if results[2].Code != domain.CodeVINNotFound {
		t.Errorf("unexpected %+v", results[2])
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	failed := write(&buf, []result{
		{Input: "A", Vehicle: &vin.Vehicle{VIN: "A"}},
		{Input: "B", Error: "VIN must be 17 characters", Code: domain.CodeVINInvalid},
	})
	if failed != 1 {
		t.Fatalf("expected 1 failure, got %d", failed)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	var r result
	if err := json.Unmarshal([]byte(lines[1]), &r); err != nil {
		t.Fatal(err)
	}
	if r.Code != domain.CodeVINInvalid || r.Vehicle != nil {
		t.Fatalf("unexpected %+v", r)
	}
}

func TestReadLines(t *testing.T) {
	got, err := readLines(strings.NewReader("  1M8GDM9AXKP042788 \n\n\tYV2RT40A8GB123456\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "1M8GDM9AXKP042788" || got[1] != "YV2RT40A8GB123456" {
		t.Fatalf("got %q", got)
	}
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestReadLinesErrors(t *testing.T) {
	long := "1M8GDM9AXKP042788\n" + strings.Repeat("A", bufio.MaxScanTokenSize+1) + "\nYV2RT40A8GB123456\n"
	if got, err := readLines(strings.NewReader(long)); !errors.Is(err, bufio.ErrTooLong) || got != nil {
		t.Fatalf("expected ErrTooLong and no VINs, got (%q, %v)", got, err)
	}

	broken := io.MultiReader(strings.NewReader("1M8GDM9AXKP042788\n"), failingReader{io.ErrUnexpectedEOF})
	if got, err := readLines(broken); !errors.Is(err, io.ErrUnexpectedEOF) || got != nil {
		t.Fatalf("expected read error and no VINs, got (%q, %v)", got, err)
	}
}
