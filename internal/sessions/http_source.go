package sessions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout  = 10 * time.Second
	maxPayloadBytes = 8 << 20
)

// HTTPSource polls a management endpoint that lists connected VPN clients.
type HTTPSource struct {
	url     string
	token   string
	timeout time.Duration
	client  *http.Client
}

// HTTPOption customises an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithToken sends the value as a bearer token on every poll.
func WithToken(token string) HTTPOption {
	return func(s *HTTPSource) {
		s.token = strings.TrimSpace(token)
	}
}

// WithTimeout bounds each poll. Non-positive values keep the default of ten seconds.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithHTTPClient overrides the underlying client, e.g. to install a custom transport.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		if client != nil {
			s.client = client
		}
	}
}

// NewHTTPSource builds a source for the given status URL.
func NewHTTPSource(url string, opts ...HTTPOption) (*HTTPSource, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("sessions: status url is required")
	}

	source := &HTTPSource{
		url:     url,
		timeout: defaultTimeout,
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(source)
	}
	return source, nil
}

// ActiveSessions fetches and decodes the current session list. Any transport failure,
// non-2xx status or malformed row fails the whole call.
func (s *HTTPSource) ActiveSessions(ctx context.Context) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("sessions: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sessions: poll %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("sessions: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("sessions: status endpoint returned %d", resp.StatusCode)
	}

	return decodePayload(body)
}

type wireSession struct {
	CommonName     string          `json:"common_name"`
	Username       string          `json:"username"`
	VirtualAddress string          `json:"virtual_address"`
	Address        string          `json:"address"`
	ClientID       json.RawMessage `json:"client_id"`
	ConnectedSince json.RawMessage `json:"connected_since"`
}

type wireEnvelope struct {
	Sessions []wireSession `json:"sessions"`
}

func decodePayload(body []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("sessions: empty response body")
	}

	var rows []wireSession
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("sessions: decode session list: %w", err)
		}
	case '{':
		var envelope wireEnvelope
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("sessions: decode session envelope: %w", err)
		}
		if envelope.Sessions == nil {
			return nil, errors.New("sessions: response object has no sessions field")
		}
		rows = envelope.Sessions
	default:
		return nil, errors.New("sessions: response is not a JSON array or object")
	}

	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		record, err := row.record()
		if err != nil {
			return nil, fmt.Errorf("sessions: row %d: %w", i, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func (w wireSession) record() (Record, error) {
	username := firstNonEmpty(w.CommonName, w.Username)
	if username == "" {
		return Record{}, errors.New("missing username")
	}
	address := firstNonEmpty(w.VirtualAddress, w.Address)
	if address == "" {
		return Record{}, errors.New("missing address")
	}
	token, err := decodeToken(w.ClientID)
	if err != nil {
		return Record{}, err
	}
	since, err := decodeTimestamp(w.ConnectedSince)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Username:       username,
		Address:        address,
		ClientToken:    token,
		ConnectedSince: since,
	}, nil
}

func decodeToken(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text), nil
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		return "", errors.New("client_id must be a string or number")
	}
	return number.String(), nil
}

// maxUnixSeconds is 9999-12-31T23:59:59Z, the last instant RFC3339 can express.
const maxUnixSeconds = 253402300799

// decodeTimestamp accepts RFC3339 text or unix seconds, as a number or numeric string.
func decodeTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, errors.New("missing connected_since")
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		text = strings.TrimSpace(text)
		if ts, err := time.Parse(time.RFC3339, text); err == nil {
			return ts.UTC(), nil
		}
		if seconds, err := strconv.ParseFloat(text, 64); err == nil {
			return unixSeconds(seconds)
		}
		return time.Time{}, fmt.Errorf("connected_since %q is neither RFC3339 nor unix seconds", text)
	}

	var seconds float64
	if err := json.Unmarshal(raw, &seconds); err != nil {
		return time.Time{}, errors.New("connected_since must be a string or number")
	}
	return unixSeconds(seconds)
}

func unixSeconds(seconds float64) (time.Time, error) {
	if math.IsNaN(seconds) || seconds < 0 || seconds > maxUnixSeconds {
		return time.Time{}, fmt.Errorf("connected_since %v is outside the unix seconds range", seconds)
	}
	return time.Unix(int64(seconds), 0).UTC(), nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return ""
}
