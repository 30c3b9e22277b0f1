// Command vindecode decodes VINs from the command line and prints one JSON
// object per VIN.
//
//	vindecode [-provider auto|nhtsa|vincario] VIN...
//
// VINs are read from stdin, one per line, when none are given. The exit
// status is 1 if any VIN failed and 2 if the input could not be read.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/maiwanamini/unnamed-tms-backend/engine/domain"
	"github.com/maiwanamini/unnamed-tms-backend/engine/vin"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/config"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/fn"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/mid"
)

// result is one output line.
type result struct {
	Input   string       `json:"input"`
	Vehicle *vin.Vehicle `json:"vehicle,omitempty"`
	Error   string       `json:"error,omitempty"`
	Code    string       `json:"code,omitempty"`
}

func main() {
	var (
		configPath = flag.String("config", os.Getenv(config.EnvFile), "path to YAML config file")
		provider   = flag.String("provider", "", "auto, nhtsa or vincario (default from config)")
		workers    = flag.Int("workers", 4, "concurrent decodes")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "vindecode:", err)
		os.Exit(2)
	}
	if *provider != "" {
		cfg.VIN.Provider = *provider
	}
	logger := cfg.Logger(os.Stderr)

	vins := flag.Args()
	if len(vins) == 0 {
		if vins, err = readLines(os.Stdin); err != nil {
			fmt.Fprintln(os.Stderr, "vindecode: read stdin:", err)
			os.Exit(2)
		}
	}

	decoder := vin.FromConfig(cfg, mid.Client(cfg.Upstream.Timeout), nil, logger)
	results := decodeAll(context.Background(), decoder, vins, *workers)
	if failed := write(os.Stdout, results); failed > 0 {
		os.Exit(1)
	}
}

type vinDecoder interface {
	Decode(ctx context.Context, raw string) (*vin.Vehicle, error)
}

// decodeAll decodes vins with at most workers in flight, keeping input order.
func decodeAll(ctx context.Context, d vinDecoder, vins []string, workers int) []result {
	return fn.ParMap(vins, max(workers, 1), func(raw string) result {
		v, err := d.Decode(ctx, raw)
		if err != nil {
			return result{Input: raw, Error: err.Error(), Code: domain.ErrorCode(err)}
		}
		return result{Input: raw, Vehicle: v}
	})
}

// write prints results as JSON lines and returns how many failed.
func write(w io.Writer, results []result) int {
	enc := json.NewEncoder(w)
	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
		_ = enc.Encode(r)
	}
	return failed
}

// readLines returns the non-blank trimmed lines of r. A read error or an
// overlong line fails the whole batch.
func readLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

