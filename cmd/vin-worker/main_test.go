package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/maiwanamini/unnamed-tms-backend/engine/vin"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/config"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/natsutil"
	natsserver "github.com/nats-io/nats-server/v2/server"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRunRequiresNATS(t *testing.T) {
	cfg := config.Defaults()
	cfg.NATS.URL = ""
	err := run(context.Background(), cfg, "q", "", quietLogger())
	if err == nil || err.Error() != "NATS_URL is required" {
		t.Fatalf("expected missing NATS error, got %v", err)
	}
}

func TestRunAnswersInFlightRequestOnShutdown(t *testing.T) {
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	defer srv.Shutdown()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}

	started := make(chan struct{}, 1)
	vpic := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		time.Sleep(300 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Results":[{"Make":"VOLVO","Model":"FH","ModelYear":"2016","VehicleType":"TRUCK","BodyClass":"Truck-Tractor"}]}`))
	}))
	defer vpic.Close()

	cfg := config.Defaults()
	cfg.NATS.URL = srv.ClientURL()
	cfg.VIN.Provider = "nhtsa"
	cfg.VIN.NHTSABase = vpic.URL

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exited := make(chan error, 1)
	go func() { exited <- run(ctx, cfg, vin.DefaultQueue, "", quietLogger()) }()

	deadline := time.Now().Add(3 * time.Second)
	for !srv.GlobalAccount().SubscriptionInterest(vin.SubjectDecode) {
		if time.Now().After(deadline) {
			t.Fatal("worker never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	client, err := natsutil.Connect(srv.ClientURL(), "worker-test", quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	type result struct {
		reply vin.DecodeReply
		err   error
	}
	replied := make(chan result, 1)
	go func() {
		rctx, rcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer rcancel()
		reply, err := natsutil.Request[vin.DecodeRequest, vin.DecodeReply](rctx, client, vin.SubjectDecode, vin.DecodeRequest{VIN: "YV2RT40A8GB123456"})
		replied <- result{reply, err}
	}()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("decode never reached the provider")
	}
	cancel()

	got := <-replied
	if got.err != nil {
		t.Fatalf("in-flight decode lost its reply on shutdown: %v", got.err)
	}
	if got.reply.Error != nil || got.reply.Vehicle == nil || got.reply.Vehicle.Model != "VOLVO FH" {
		t.Fatalf("unexpected reply %+v", got.reply)
	}

	select {
	case err := <-exited:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit after shutdown")
	}
}
