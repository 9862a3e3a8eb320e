// Package provider implements mail and calendar provider adapters.
package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/mail"
	"os"
	"strings"
	"time"

	"assistant_server/core/domain"
	"assistant_server/pkg/apperr"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// =============================================================================
// OAuth Token Loading
// =============================================================================

// loadOAuthConfig reads an installed-app credentials file.
func loadOAuthConfig(credentialsFile string, scopes ...string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, apperr.ConfigError("oauth", fmt.Sprintf("cannot read credentials file %s", credentialsFile)).WithError(err)
	}
	cfg, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, apperr.ConfigError("oauth", "invalid credentials file").WithError(err)
	}
	return cfg, nil
}

// loadToken reads a previously authorized token file.
func loadToken(tokenFile string) (*oauth2.Token, error) {
	data, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, apperr.ConfigError("oauth", fmt.Sprintf("cannot read token file %s, run the authorization flow first", tokenFile)).WithError(err)
	}
	token := &oauth2.Token{}
	if err := json.Unmarshal(data, token); err != nil {
		return nil, apperr.ConfigError("oauth", "invalid token file").WithError(err)
	}
	return token, nil
}

// =============================================================================
// Gmail Adapter
// =============================================================================

// GmailAdapter implements out.MailProvider against the Gmail API.
type GmailAdapter struct {
	config *oauth2.Config
	token  *oauth2.Token
	cb     *gobreaker.CircuitBreaker

	// label name -> label id, filled lazily
	labelIDs map[string]string
}

// GmailConfig holds Gmail adapter configuration.
type GmailConfig struct {
	CredentialsFile string
	TokenFile       string
}

// NewGmailAdapter creates a Gmail adapter from the stored credential files.
func NewGmailAdapter(cfg *GmailConfig) (*GmailAdapter, error) {
	config, err := loadOAuthConfig(cfg.CredentialsFile,
		gmail.GmailReadonlyScope,
		gmail.GmailSendScope,
		gmail.GmailModifyScope,
		gmail.GmailLabelsScope,
	)
	if err != nil {
		return nil, err
	}

	token, err := loadToken(cfg.TokenFile)
	if err != nil {
		return nil, err
	}

	cbSettings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
	}

	return &GmailAdapter{
		config:   config,
		token:    token,
		cb:       gobreaker.NewCircuitBreaker(cbSettings),
		labelIDs: make(map[string]string),
	}, nil
}

// ListMessages fetches messages matching the query, newest first.
func (a *GmailAdapter) ListMessages(ctx context.Context, query string, maxResults int64) ([]*domain.Message, error) {
	svc, err := a.getService(ctx)
	if err != nil {
		return nil, err
	}

	var resp *gmail.ListMessagesResponse
	err = a.executeWithCircuitBreaker(ctx, "list_messages", func() error {
		var listErr error
		resp, listErr = svc.Users.Messages.List("me").Q(query).MaxResults(maxResults).Context(ctx).Do()
		return listErr
	})
	if err != nil {
		return nil, a.wrapError(err, "failed to list messages")
	}

	messages := make([]*domain.Message, 0, len(resp.Messages))
	for _, ref := range resp.Messages {
		var full *gmail.Message
		err = a.executeWithCircuitBreaker(ctx, "get_message", func() error {
			var getErr error
			full, getErr = svc.Users.Messages.Get("me", ref.Id).Format("full").Context(ctx).Do()
			return getErr
		})
		if err != nil {
			// One unreadable message must not sink the whole batch.
			log.Printf("[GmailAdapter] failed to fetch message %s: %v", ref.Id, err)
			continue
		}
		messages = append(messages, a.convertMessage(full))
	}

	return messages, nil
}

// SendReply sends a plain-text reply, threading on inReplyTo when set.
func (a *GmailAdapter) SendReply(ctx context.Context, to, subject, body, inReplyTo string) error {
	svc, err := a.getService(ctx)
	if err != nil {
		return err
	}

	raw := a.buildRawMessage(to, subject, body, inReplyTo)
	err = a.executeWithCircuitBreaker(ctx, "send_reply", func() error {
		_, sendErr := svc.Users.Messages.Send("me", &gmail.Message{
			Raw: base64.URLEncoding.EncodeToString([]byte(raw)),
		}).Context(ctx).Do()
		return sendErr
	})
	if err != nil {
		return a.wrapError(err, "failed to send reply")
	}
	return nil
}

// AddLabel attaches a label to a message, creating the label if needed.
func (a *GmailAdapter) AddLabel(ctx context.Context, messageID, labelName string) error {
	svc, err := a.getService(ctx)
	if err != nil {
		return err
	}

	labelID, err := a.resolveLabelID(ctx, svc, labelName)
	if err != nil {
		return err
	}

	err = a.executeWithCircuitBreaker(ctx, "modify_labels", func() error {
		_, modErr := svc.Users.Messages.Modify("me", messageID, &gmail.ModifyMessageRequest{
			AddLabelIds: []string{labelID},
		}).Context(ctx).Do()
		return modErr
	})
	if err != nil {
		return a.wrapError(err, "failed to add label")
	}
	return nil
}

// BreakerState returns the circuit breaker state for the status endpoint.
func (a *GmailAdapter) BreakerState() string {
	return a.cb.State().String()
}

// =============================================================================
// Internals
// =============================================================================

func (a *GmailAdapter) getService(ctx context.Context) (*gmail.Service, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	svc, err := gmail.NewService(ctx, option.WithTokenSource(
		a.config.TokenSource(ctx, a.token),
	))
	if err != nil {
		return nil, a.wrapError(err, "failed to create gmail service")
	}
	return svc, nil
}

func (a *GmailAdapter) resolveLabelID(ctx context.Context, svc *gmail.Service, labelName string) (string, error) {
	if id, ok := a.labelIDs[labelName]; ok {
		return id, nil
	}

	var list *gmail.ListLabelsResponse
	err := a.executeWithCircuitBreaker(ctx, "list_labels", func() error {
		var listErr error
		list, listErr = svc.Users.Labels.List("me").Context(ctx).Do()
		return listErr
	})
	if err != nil {
		return "", a.wrapError(err, "failed to list labels")
	}
	for _, l := range list.Labels {
		a.labelIDs[l.Name] = l.Id
	}
	if id, ok := a.labelIDs[labelName]; ok {
		return id, nil
	}

	var created *gmail.Label
	err = a.executeWithCircuitBreaker(ctx, "create_label", func() error {
		var createErr error
		created, createErr = svc.Users.Labels.Create("me", &gmail.Label{
			Name:                  labelName,
			LabelListVisibility:   "labelShow",
			MessageListVisibility: "show",
		}).Context(ctx).Do()
		return createErr
	})
	if err != nil {
		return "", a.wrapError(err, "failed to create label")
	}

	a.labelIDs[labelName] = created.Id
	return created.Id, nil
}

// executeWithCircuitBreaker wraps an API call with circuit breaker protection.
// Client errors (4xx except 429) must not trip the circuit.
func (a *GmailAdapter) executeWithCircuitBreaker(ctx context.Context, operation string, fn func() error) error {
	_, err := a.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			if apiErr, ok := err.(*googleapi.Error); ok {
				switch apiErr.Code {
				case 500, 502, 503, 429:
					return nil, err
				case 400, 401, 403, 404:
					return nil, &nonCircuitError{err: err}
				}
			}
			return nil, err
		}
		return nil, nil
	})

	if nce, ok := err.(*nonCircuitError); ok {
		return nce.err
	}

	if err != nil {
		log.Printf("[GmailAdapter] Circuit breaker error for %s: state=%s, err=%v",
			operation, a.cb.State().String(), err)
	}

	return err
}

// nonCircuitError wraps errors that should not trip the circuit breaker.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string {
	return e.err.Error()
}

func (a *GmailAdapter) convertMessage(msg *gmail.Message) *domain.Message {
	m := &domain.Message{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		Labels:   msg.LabelIds,
	}
	if msg.InternalDate > 0 {
		m.Timestamp = time.UnixMilli(msg.InternalDate)
	}

	if msg.Payload != nil {
		m.Subject = getHeader(msg.Payload.Headers, "Subject")
		m.Sender = getHeader(msg.Payload.Headers, "From")
		m.Recipient = getHeader(msg.Payload.Headers, "To")
		m.RFCMessageID = getHeader(msg.Payload.Headers, "Message-ID")
		m.Body = extractPlainBody(msg.Payload, 0)
	}
	if m.Body == "" {
		m.Body = m.Snippet
	}

	return m
}

// extractPlainBody walks the MIME tree for the first text/plain part.
func extractPlainBody(part *gmail.MessagePart, depth int) string {
	if part == nil || depth > 10 {
		return ""
	}

	if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		if data, err := base64.URLEncoding.DecodeString(part.Body.Data); err == nil {
			return string(data)
		}
	}

	for _, p := range part.Parts {
		if body := extractPlainBody(p, depth+1); body != "" {
			return body
		}
	}
	return ""
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func (a *GmailAdapter) buildRawMessage(to, subject, body, inReplyTo string) string {
	var buf strings.Builder

	buf.WriteString(fmt.Sprintf("To: %s\r\n", sanitizeAddress(to)))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	if inReplyTo != "" {
		buf.WriteString(fmt.Sprintf("In-Reply-To: %s\r\n", inReplyTo))
		buf.WriteString(fmt.Sprintf("References: %s\r\n", inReplyTo))
	}
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(body)

	return buf.String()
}

// sanitizeAddress normalizes a "Name <addr>" header into a valid To value.
func sanitizeAddress(s string) string {
	if addr, err := mail.ParseAddress(s); err == nil {
		return addr.String()
	}
	return s
}

func (a *GmailAdapter) wrapError(err error, defaultMsg string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.GetAppError(err); ok {
		return err
	}
	return apperr.Transport("gmail", err).WithDetail("operation", defaultMsg)
}
