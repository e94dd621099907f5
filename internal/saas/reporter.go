package saas

import (
	"context"

	"lazychat/internal/logger"
)

// CredentialSource yields the currently stored credentials.
type CredentialSource interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// Reporter sends debug telemetry and error reports in the background.
// Every method returns immediately; failures are logged at debug level and
// otherwise ignored.
type Reporter struct {
	client *Client
	source CredentialSource
	logger *logger.Logger
}

func NewReporter(client *Client, source CredentialSource, logger *logger.Logger) *Reporter {
	return &Reporter{client: client, source: source, logger: logger}
}

func (r *Reporter) Debug(event string, fields map[string]interface{}) {
	go func() {
		ctx := context.Background()
		creds := r.credentials(ctx)
		if err := r.client.ReportDebug(ctx, creds, event, fields); err != nil {
			r.logger.Debug("Debug telemetry %s not delivered: %v", event, err)
		}
	}()
}

func (r *Reporter) Error(message string, fields map[string]interface{}) {
	go func() {
		ctx := context.Background()
		creds := r.credentials(ctx)
		if err := r.client.ReportError(ctx, creds, message, fields); err != nil {
			r.logger.Debug("Error report not delivered: %v", err)
		}
	}()
}

func (r *Reporter) credentials(ctx context.Context) Credentials {
	if r.source == nil {
		return Credentials{}
	}
	creds, err := r.source.Credentials(ctx)
	if err != nil {
		return Credentials{}
	}
	return creds
}
