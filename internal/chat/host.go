package chat

import (
	"context"

	"reins/internal/client"
	"reins/internal/protocol"
)

// HostClient adapts the HTTP client to the Host contract.
type HostClient struct {
	Client *client.Client
}

func (h HostClient) OpenSession(ctx context.Context) (string, error) {
	return h.Client.OpenSession(ctx)
}

func (h HostClient) SendMessage(ctx context.Context, sessionID, content string, attachments []protocol.Attachment, params protocol.ModelParams) (Stream, error) {
	return h.Client.SendMessage(ctx, sessionID, content, attachments, params)
}

func (h HostClient) Continue(ctx context.Context, sessionID string, cont protocol.Continuation) (Stream, error) {
	return h.Client.Continue(ctx, sessionID, cont)
}

func (h HostClient) ResolveConfirmation(ctx context.Context, confirmationID string, approved bool, reason string) error {
	return h.Client.ResolveConfirmation(ctx, confirmationID, approved, reason)
}
