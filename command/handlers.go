package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-payments/core"
)

// MutatingService is the write surface of the payment service consumed by
// command handlers.
type MutatingService interface {
	CreatePayment(ctx context.Context, in core.CreatePaymentInput) (core.Payment, error)
	TransitionPayment(ctx context.Context, in core.TransitionPaymentInput) (core.Payment, error)
	CreateInvoice(ctx context.Context, in core.CreateInvoiceInput) (core.Invoice, error)
	TransitionInvoice(ctx context.Context, in core.TransitionInvoiceInput) (core.Invoice, error)
	MarkInvoicePaid(ctx context.Context, invoiceID string) (core.Invoice, error)
	CreateRefund(ctx context.Context, in core.CreateRefundInput) (core.Refund, error)
	StartRefund(ctx context.Context, refundID string) (core.Refund, error)
	FailRefund(ctx context.Context, in core.FailRefundInput) (core.Refund, error)
	CompleteRefund(ctx context.Context, in core.CompleteRefundRequest) (core.Refund, error)
	RegisterEndpoint(ctx context.Context, in core.CreateEndpointInput) (core.WebhookEndpoint, error)
	SetEndpointActive(ctx context.Context, id string, active bool) error
	ReplayEvent(ctx context.Context, eventID string) (core.WebhookEvent, error)
}

type CreatePaymentCommand struct {
	service MutatingService
}

func NewCreatePaymentCommand(service MutatingService) *CreatePaymentCommand {
	return &CreatePaymentCommand{service: service}
}

func (c *CreatePaymentCommand) Execute(ctx context.Context, msg CreatePaymentMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: payment service is required")
	}
	out, err := c.service.CreatePayment(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type TransitionPaymentCommand struct {
	service MutatingService
}

func NewTransitionPaymentCommand(service MutatingService) *TransitionPaymentCommand {
	return &TransitionPaymentCommand{service: service}
}

func (c *TransitionPaymentCommand) Execute(ctx context.Context, msg TransitionPaymentMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: payment service is required")
	}
	out, err := c.service.TransitionPayment(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateInvoiceCommand struct {
	service MutatingService
}

func NewCreateInvoiceCommand(service MutatingService) *CreateInvoiceCommand {
	return &CreateInvoiceCommand{service: service}
}

func (c *CreateInvoiceCommand) Execute(ctx context.Context, msg CreateInvoiceMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: invoice service is required")
	}
	out, err := c.service.CreateInvoice(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type TransitionInvoiceCommand struct {
	service MutatingService
}

func NewTransitionInvoiceCommand(service MutatingService) *TransitionInvoiceCommand {
	return &TransitionInvoiceCommand{service: service}
}

func (c *TransitionInvoiceCommand) Execute(ctx context.Context, msg TransitionInvoiceMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: invoice service is required")
	}
	out, err := c.service.TransitionInvoice(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type MarkInvoicePaidCommand struct {
	service MutatingService
}

func NewMarkInvoicePaidCommand(service MutatingService) *MarkInvoicePaidCommand {
	return &MarkInvoicePaidCommand{service: service}
}

func (c *MarkInvoicePaidCommand) Execute(ctx context.Context, msg MarkInvoicePaidMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: invoice service is required")
	}
	out, err := c.service.MarkInvoicePaid(ctx, msg.InvoiceID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateRefundCommand struct {
	service MutatingService
}

func NewCreateRefundCommand(service MutatingService) *CreateRefundCommand {
	return &CreateRefundCommand{service: service}
}

func (c *CreateRefundCommand) Execute(ctx context.Context, msg CreateRefundMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refund service is required")
	}
	out, err := c.service.CreateRefund(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type StartRefundCommand struct {
	service MutatingService
}

func NewStartRefundCommand(service MutatingService) *StartRefundCommand {
	return &StartRefundCommand{service: service}
}

func (c *StartRefundCommand) Execute(ctx context.Context, msg StartRefundMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refund service is required")
	}
	out, err := c.service.StartRefund(ctx, msg.RefundID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type FailRefundCommand struct {
	service MutatingService
}

func NewFailRefundCommand(service MutatingService) *FailRefundCommand {
	return &FailRefundCommand{service: service}
}

func (c *FailRefundCommand) Execute(ctx context.Context, msg FailRefundMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refund service is required")
	}
	out, err := c.service.FailRefund(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CompleteRefundCommand struct {
	service MutatingService
}

func NewCompleteRefundCommand(service MutatingService) *CompleteRefundCommand {
	return &CompleteRefundCommand{service: service}
}

func (c *CompleteRefundCommand) Execute(ctx context.Context, msg CompleteRefundMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refund service is required")
	}
	out, err := c.service.CompleteRefund(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RegisterEndpointCommand struct {
	service MutatingService
}

func NewRegisterEndpointCommand(service MutatingService) *RegisterEndpointCommand {
	return &RegisterEndpointCommand{service: service}
}

func (c *RegisterEndpointCommand) Execute(ctx context.Context, msg RegisterEndpointMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: endpoint service is required")
	}
	out, err := c.service.RegisterEndpoint(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SetEndpointActiveCommand struct {
	service MutatingService
}

func NewSetEndpointActiveCommand(service MutatingService) *SetEndpointActiveCommand {
	return &SetEndpointActiveCommand{service: service}
}

func (c *SetEndpointActiveCommand) Execute(ctx context.Context, msg SetEndpointActiveMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: endpoint service is required")
	}
	return c.service.SetEndpointActive(ctx, msg.EndpointID, msg.Active)
}

type ReplayEventCommand struct {
	service MutatingService
}

func NewReplayEventCommand(service MutatingService) *ReplayEventCommand {
	return &ReplayEventCommand{service: service}
}

func (c *ReplayEventCommand) Execute(ctx context.Context, msg ReplayEventMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: event service is required")
	}
	out, err := c.service.ReplayEvent(ctx, msg.EventID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
