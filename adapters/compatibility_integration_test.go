package adapters_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-command"
	job "github.com/goliatone/go-job"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-payments/adapters/gocommand"
	"github.com/goliatone/go-payments/adapters/gojob"
	"github.com/goliatone/go-payments/adapters/gologger"
	paymentscommand "github.com/goliatone/go-payments/command"
	"github.com/goliatone/go-payments/core"
)

func TestRuntimeCompatibility_GoJobGoCommandGoLogger(t *testing.T) {
	ctx := context.Background()

	logger := &compatLogger{}
	provider := &compatProvider{logger: logger}

	_, _, jobProvider, jobLogger := gologger.ResolveForJob("payments", provider, nil)
	if jobProvider == nil || jobLogger == nil {
		t.Fatalf("expected go-job logger bridges")
	}

	enqueueProbe := &compatEnqueuer{}
	enqueueAdapter := gojob.NewEnqueuerAdapter(enqueueProbe)
	if err := enqueueAdapter.Enqueue(ctx, gojob.DispatchMessage(50, time.Now())); err != nil {
		t.Fatalf("enqueue via gojob adapter: %v", err)
	}
	if enqueueProbe.last == nil || enqueueProbe.last.JobID != gojob.JobIDWebhookDispatch {
		t.Fatalf("expected go-job message mapping through enqueuer adapter")
	}

	queueRegistry := jobqueuecommand.NewRegistry()
	commandAdapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	if err := commandAdapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	if err := commandAdapter.RegisterCommand(command.CommandFunc[compatMessage](func(context.Context, compatMessage) error {
		return nil
	})); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := commandAdapter.Initialize(); err != nil {
		t.Fatalf("initialize command registry: %v", err)
	}
	if _, ok := queueRegistry.Get("payments.compat.command"); !ok {
		t.Fatalf("expected command resolver hook to mirror command into go-job queue registry")
	}
}

func TestRuntimeCompatibility_PaymentCommandDispatchThroughWrappers(t *testing.T) {
	svc := &compatMutatingService{}
	adapter := gocommand.NewRegistryAdapter(command.NewRegistry())

	replaySub, err := gocommand.RegisterAndSubscribe(adapter, paymentscommand.NewReplayEventCommand(svc))
	if err != nil {
		t.Fatalf("register replay wrapper: %v", err)
	}
	defer replaySub.Unsubscribe()

	activeSub, err := gocommand.RegisterAndSubscribe(adapter, paymentscommand.NewSetEndpointActiveCommand(svc))
	if err != nil {
		t.Fatalf("register set-active wrapper: %v", err)
	}
	defer activeSub.Unsubscribe()

	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize adapter: %v", err)
	}

	if err := gocommand.Dispatch(context.Background(), paymentscommand.ReplayEventMessage{EventID: "evt_1"}); err != nil {
		t.Fatalf("dispatch replay command: %v", err)
	}
	if svc.replayCalls != 1 || svc.lastReplayEventID != "evt_1" {
		t.Fatalf("expected replay wrapper invocation, got %d calls", svc.replayCalls)
	}

	if err := gocommand.Dispatch(context.Background(), paymentscommand.SetEndpointActiveMessage{
		EndpointID: "ep_1",
		Active:     false,
	}); err != nil {
		t.Fatalf("dispatch set-active command: %v", err)
	}
	if svc.setActiveCalls != 1 || svc.lastActiveEndpointID != "ep_1" || svc.lastActive {
		t.Fatalf("expected set-active wrapper invocation through dispatcher")
	}
}

type compatMessage struct{}

func (compatMessage) Type() string { return "payments.compat.command" }

type compatEnqueuer struct {
	last *job.ExecutionMessage
}

func (e *compatEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	e.last = msg
	return nil
}

type compatProvider struct {
	logger glog.Logger
}

func (p *compatProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type compatLogger struct{}

func (compatLogger) Trace(string, ...any)                    {}
func (compatLogger) Debug(string, ...any)                    {}
func (compatLogger) Info(string, ...any)                     {}
func (compatLogger) Warn(string, ...any)                     {}
func (compatLogger) Error(string, ...any)                    {}
func (compatLogger) Fatal(string, ...any)                    {}
func (compatLogger) WithContext(context.Context) glog.Logger { return compatLogger{} }

type compatMutatingService struct {
	replayCalls          int
	lastReplayEventID    string
	setActiveCalls       int
	lastActiveEndpointID string
	lastActive           bool
}

func (s *compatMutatingService) CreatePayment(context.Context, core.CreatePaymentInput) (core.Payment, error) {
	return core.Payment{}, nil
}

func (s *compatMutatingService) TransitionPayment(context.Context, core.TransitionPaymentInput) (core.Payment, error) {
	return core.Payment{}, nil
}

func (s *compatMutatingService) CreateInvoice(context.Context, core.CreateInvoiceInput) (core.Invoice, error) {
	return core.Invoice{}, nil
}

func (s *compatMutatingService) TransitionInvoice(context.Context, core.TransitionInvoiceInput) (core.Invoice, error) {
	return core.Invoice{}, nil
}

func (s *compatMutatingService) MarkInvoicePaid(context.Context, string) (core.Invoice, error) {
	return core.Invoice{}, nil
}

func (s *compatMutatingService) CreateRefund(context.Context, core.CreateRefundInput) (core.Refund, error) {
	return core.Refund{}, nil
}

func (s *compatMutatingService) StartRefund(context.Context, string) (core.Refund, error) {
	return core.Refund{}, nil
}

func (s *compatMutatingService) FailRefund(context.Context, core.FailRefundInput) (core.Refund, error) {
	return core.Refund{}, nil
}

func (s *compatMutatingService) CompleteRefund(context.Context, core.CompleteRefundRequest) (core.Refund, error) {
	return core.Refund{}, nil
}

func (s *compatMutatingService) RegisterEndpoint(context.Context, core.CreateEndpointInput) (core.WebhookEndpoint, error) {
	return core.WebhookEndpoint{}, nil
}

func (s *compatMutatingService) SetEndpointActive(_ context.Context, id string, active bool) error {
	s.setActiveCalls++
	s.lastActiveEndpointID = id
	s.lastActive = active
	return nil
}

func (s *compatMutatingService) ReplayEvent(_ context.Context, eventID string) (core.WebhookEvent, error) {
	s.replayCalls++
	s.lastReplayEventID = eventID
	return core.WebhookEvent{ID: eventID, Status: core.EventStatusPending}, nil
}
