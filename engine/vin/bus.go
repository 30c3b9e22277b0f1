package vin

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maiwanamini/unnamed-tms-backend/engine/domain"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/natsutil"
	"github.com/nats-io/nats.go"
)

// NATS subjects.
const (
	SubjectDecode  = "tms.vin.decode"
	SubjectDecoded = "tms.vin.decoded"
)

// Reply codes that have no domain sentinel.
const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeDecodeFailed = "DECODE_FAILED"
)

// DefaultQueue is the queue group decode workers join.
const DefaultQueue = "vin-workers"

// requestTimeout bounds one decode served over NATS. Both providers share it.
const requestTimeout = 30 * time.Second

// DecodeRequest is the payload of a SubjectDecode request.
type DecodeRequest struct {
	VIN string `json:"vin"`
}

// ReplyError is the failure half of a DecodeReply.
type ReplyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DecodeReply answers a DecodeRequest with exactly one of Vehicle or Error.
type DecodeReply struct {
	Vehicle *Vehicle    `json:"vehicle,omitempty"`
	Error   *ReplyError `json:"error,omitempty"`
}

// ReplyFor converts a Decode outcome into a reply. Errors without a domain
// code are reported as DECODE_FAILED.
func ReplyFor(v *Vehicle, err error) DecodeReply {
	if err == nil {
		return DecodeReply{Vehicle: v}
	}
	code := domain.ErrorCode(err)
	if code == "" {
		return DecodeReply{Error: &ReplyError{Code: CodeDecodeFailed, Message: "Failed to decode VIN"}}
	}
	msg := err.Error()
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		msg = ve.Message()
	}
	return DecodeReply{Error: &ReplyError{Code: code, Message: msg}}
}

// DecodedEvent is published on SubjectDecoded after every successful decode.
type DecodedEvent struct {
	ID        string    `json:"id"`
	VIN       string    `json:"vin"`
	Mode      Mode      `json:"mode"`
	Vehicle   *Vehicle  `json:"vehicle"`
	DecodedAt time.Time `json:"decodedAt"`
}

// Serve answers SubjectDecode requests on nc within queue group queue until
// the returned subscription is drained.
func (d *Decoder) Serve(nc *nats.Conn, queue string) (*nats.Subscription, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	return natsutil.Respond(nc, SubjectDecode, queue, requestTimeout,
		func(ctx context.Context, req DecodeRequest) DecodeReply {
			v, err := d.Decode(ctx, req.VIN)
			if err != nil && domain.ErrorCode(err) == "" {
				d.logger.Error("nats decode failed", "vin", req.VIN, "err", err)
			}
			return ReplyFor(v, err)
		},
		func(err error) DecodeReply {
			return DecodeReply{Error: &ReplyError{Code: CodeBadRequest, Message: "malformed request: " + err.Error()}}
		})
}

// Publisher emits DecodedEvents. A nil *Publisher is valid and does nothing.
type Publisher struct {
	nc     *nats.Conn
	mode   Mode
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher returns a Publisher on nc, or nil when nc is nil.
func NewPublisher(nc *nats.Conn, mode Mode, logger *slog.Logger) *Publisher {
	if nc == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{nc: nc, mode: mode, logger: logger, now: time.Now}
}

// Decoded publishes an event for v. Failures are only logged.
func (p *Publisher) Decoded(ctx context.Context, v *Vehicle) {
	if p == nil || v == nil {
		return
	}
	ev := DecodedEvent{
		ID:        uuid.NewString(),
		VIN:       v.VIN,
		Mode:      p.mode,
		Vehicle:   v,
		DecodedAt: p.now().UTC(),
	}
	if err := natsutil.Publish(ctx, p.nc, SubjectDecoded, ev); err != nil {
		p.logger.Warn("publish vin.decoded", "vin", v.VIN, "err", err)
	}
}
