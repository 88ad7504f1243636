package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"cipherchat/internal/domain"
	"cipherchat/internal/errs"
)

// HTTP is the relay client over plain HTTP/JSON.
type HTTP struct {
	Base string
	HTTP *http.Client

	log *zap.Logger
	now func() time.Time
}

// NewHTTP returns a client for the relay at base.
func NewHTTP(base string, log *zap.Logger) *HTTP {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTP{
		Base: strings.TrimRight(base, "/"),
		HTTP: &http.Client{Timeout: 15 * time.Second},
		log:  log,
		now:  time.Now,
	}
}

type registerRequest struct {
	Username  domain.Username     `json:"username"`
	KeyBundle domain.PreKeyBundle `json:"key_bundle"`
}

type sendRequest struct {
	Messages []domain.OutboundEnvelope `json:"messages"`
}

type ackRequest struct {
	IDs []string `json:"ids"`
}

// Register publishes the account's bundle.
func (c *HTTP) Register(
	ctx context.Context,
	cred domain.Credentials,
	bundle domain.PreKeyBundle,
) (domain.Registration, error) {
	var out domain.Registration
	if err := cred.Username.Validate(); err != nil {
		return out, err
	}
	err := c.do(ctx, http.MethodPost, "/account/register", &cred,
		registerRequest{Username: cred.Username, KeyBundle: bundle}, &out)
	return out, err
}

// SearchUsers returns the relay's matches for query.
func (c *HTTP) SearchUsers(ctx context.Context, query domain.Username) ([]domain.DirectoryUser, error) {
	var out []domain.DirectoryUser
	path := "/account/search?" + url.Values{"username": {query.String()}}.Encode()
	return out, c.do(ctx, http.MethodGet, path, nil, nil, &out)
}

// FetchKeyBundle returns one bundle per device of userID.
func (c *HTTP) FetchKeyBundle(ctx context.Context, userID domain.UserID) ([]domain.DeviceBundle, error) {
	var out []domain.DeviceBundle
	path := "/account/key-bundle?" + url.Values{"user_id": {strconv.FormatUint(uint64(userID), 10)}}.Encode()
	return out, c.do(ctx, http.MethodGet, path, nil, nil, &out)
}

// SendMessage posts one envelope.
func (c *HTTP) SendMessage(ctx context.Context, cred domain.Credentials, env domain.OutboundEnvelope) error {
	return c.do(ctx, http.MethodPost, "/message/send", &cred,
		sendRequest{Messages: []domain.OutboundEnvelope{env}}, nil)
}

// FetchMessages returns every queued envelope for the caller's device.
func (c *HTTP) FetchMessages(ctx context.Context, cred domain.Credentials) ([]domain.InboundEnvelope, error) {
	var out []domain.InboundEnvelope
	return out, c.do(ctx, http.MethodPost, "/message/fetch", &cred, nil, &out)
}

// AckMessages removes the given envelopes from the caller's queue.
func (c *HTTP) AckMessages(ctx context.Context, cred domain.Credentials, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/message/ack", &cred, ackRequest{IDs: ids}, nil)
}

func (c *HTTP) do(ctx context.Context, method, path string, cred *domain.Credentials, in, out any) error {
	var body io.Reader
	if in != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return err
		}
		body = buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cred != nil {
		token, err := SignToken(*cred, c.now())
		if err != nil {
			return err
		}
		pub, err := cred.PublicKey.MarshalText()
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set(HeaderIdentity, string(pub))
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("relay %s %s: %v: %w", method, path, err, errs.ErrTransport)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Debug("relay error",
			zap.String("method", method),
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("relay %s %s: %s: %s: %w",
			method, req.URL.Path, resp.Status, strings.TrimSpace(string(msg)), statusError(resp.StatusCode))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("relay %s %s: decode: %v: %w", method, req.URL.Path, err, errs.ErrTransport)
		}
	}
	return nil
}

func statusError(code int) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errs.ErrUnauthorized
	case http.StatusNotFound:
		return errs.ErrNotFound
	case http.StatusConflict:
		return errs.ErrAlreadyExists
	default:
		return errs.ErrTransport
	}
}

var _ domain.RelayClient = (*HTTP)(nil)
