package registryclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"

	"model-artefact-registry/internal/adapters/primary/http/dto"
	"model-artefact-registry/internal/core/domain"
)

// Client talks to a running registry server over its HTTP API and maps
// response statuses back onto domain errors, so callers can treat it like
// the in-process services.
type Client struct {
	client *resty.Client
}

func New(baseURL, username, password string, timeout time.Duration) *Client {
	client := resty.New().
		SetLogger(log.StandardLogger()).
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetBasicAuth(username, password).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &Client{client: client}
}

func modelPath(id string) string {
	return "/models/" + url.PathEscape(id)
}

func (c *Client) Create(ctx context.Context, id, name string, description *string, tags domain.Tags) (*domain.ModelRecord, error) {
	req := dto.CreateModelRecordRequest{
		ModelID:     id,
		Name:        name,
		Description: description,
		Tags:        tags,
	}

	res, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post("/models")
	if err != nil {
		return nil, transportError("create model", err)
	}
	if !res.IsSuccess() {
		return nil, statusError("create model", res.StatusCode(), res.Body())
	}
	return decodeRecord(res.Body())
}

// Get returns (nil, false, nil) when the server reports the model absent.
func (c *Client) Get(ctx context.Context, id string) (*domain.ModelRecord, bool, error) {
	res, err := c.client.R().
		SetContext(ctx).
		Get(modelPath(id))
	return recordResult("get model", res, err)
}

func (c *Client) List(ctx context.Context) ([]*domain.ModelRecord, error) {
	res, err := c.client.R().
		SetContext(ctx).
		Get("/models")
	if err != nil {
		return nil, transportError("list models", err)
	}
	if !res.IsSuccess() {
		return nil, statusError("list models", res.StatusCode(), res.Body())
	}

	var list dto.ListModelRecordsResponse
	if err := decodeJSON(res.Body(), &list); err != nil {
		return nil, fmt.Errorf("list models: decode response: %w", err)
	}
	out := make([]*domain.ModelRecord, 0, len(list.Items))
	for _, item := range list.Items {
		record, err := item.ToModelRecord()
		if err != nil {
			return nil, fmt.Errorf("list models: %w", err)
		}
		out = append(out, record)
	}
	return out, nil
}

// Update sends only the supplied fields.
func (c *Client) Update(ctx context.Context, id string, updates map[string]interface{}) (*domain.ModelRecord, bool, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(updates).
		Put(modelPath(id))
	return recordResult("update model", res, err)
}

func (c *Client) Delete(ctx context.Context, id string) (*domain.ModelRecord, bool, error) {
	res, err := c.client.R().
		SetContext(ctx).
		Delete(modelPath(id))
	return recordResult("delete model", res, err)
}

// UploadArtefact streams body as the "artefact" part of a multipart
// request. The body is never held in memory as a whole.
func (c *Client) UploadArtefact(ctx context.Context, id string, body io.Reader) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("artefact", "artefact")
		if err == nil {
			_, err = io.Copy(part, body)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()
	// unblocks the writer when the server answers before reading everything
	defer pr.Close()

	res, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", mw.FormDataContentType()).
		SetBody(pr).
		Post(modelPath(id) + "/artefact")
	if err != nil {
		return "", transportError("upload artefact", err)
	}
	if !res.IsSuccess() {
		return "", statusError("upload artefact", res.StatusCode(), res.Body())
	}

	var out dto.ArtefactUploadResponse
	if err := decodeJSON(res.Body(), &out); err != nil {
		return "", fmt.Errorf("upload artefact: decode response: %w", err)
	}
	return out.Key, nil
}

// DownloadArtefact streams the artefact body. The caller closes it.
func (c *Client) DownloadArtefact(ctx context.Context, id string) (*domain.Artefact, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(modelPath(id) + "/artefact")
	if err != nil {
		return nil, transportError("download artefact", err)
	}

	raw := res.RawBody()
	if !res.IsSuccess() {
		defer raw.Close()
		data, _ := io.ReadAll(io.LimitReader(raw, 64<<10))
		return nil, statusError("download artefact", res.StatusCode(), data)
	}

	return &domain.Artefact{
		Key:  domain.ArtefactKey(id),
		Size: res.RawResponse.ContentLength,
		Body: raw,
	}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	res, err := c.client.R().
		SetContext(ctx).
		Get("/healthz")
	if err != nil {
		return transportError("ping", err)
	}
	if !res.IsSuccess() {
		return statusError("ping", res.StatusCode(), res.Body())
	}
	return nil
}

func recordResult(op string, res *resty.Response, err error) (*domain.ModelRecord, bool, error) {
	if err != nil {
		return nil, false, transportError(op, err)
	}
	if res.StatusCode() == http.StatusNotFound {
		return nil, false, nil
	}
	if !res.IsSuccess() {
		return nil, false, statusError(op, res.StatusCode(), res.Body())
	}
	record, err := decodeRecord(res.Body())
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

func decodeRecord(body []byte) (*domain.ModelRecord, error) {
	var resp dto.ModelRecordResponse
	if err := decodeJSON(body, &resp); err != nil {
		return nil, fmt.Errorf("decode model record: %w", err)
	}
	return resp.ToModelRecord()
}

// decodeJSON keeps integer tags exact past 2^53.
func decodeJSON(body []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(v)
}

func transportError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}

var validationErrors = []error{
	domain.ErrInvalidModelID,
	domain.ErrInvalidModelName,
	domain.ErrInvalidTags,
	domain.ErrImmutableField,
	domain.ErrUnknownField,
	domain.ErrInvalidFieldType,
	domain.ErrMissingArtefact,
}

// statusError maps an error response back onto the domain error the server
// started from.
func statusError(op string, status int, body []byte) error {
	var resp dto.ErrorResponse
	_ = json.Unmarshal(body, &resp)
	detail := resp.Detail
	if detail == "" {
		detail = http.StatusText(status)
	}

	log.WithFields(log.Fields{
		"operation":   op,
		"status_code": status,
		"detail":      detail,
	}).Debug("registry returned error")

	var class error
	switch {
	case status == http.StatusUnauthorized:
		class = domain.ErrUnauthorized
	case status == http.StatusForbidden:
		class = domain.ErrAccessDenied
	case status == http.StatusNotFound:
		class = domain.ErrModelNotFound
		if detail == domain.ErrArtefactNotFound.Error() {
			class = domain.ErrArtefactNotFound
		}
	case status == http.StatusConflict:
		class = domain.ErrModelAlreadyExists
	case status == http.StatusBadRequest:
		class = domain.ErrInvalidFieldType
		for _, v := range validationErrors {
			if strings.HasPrefix(detail, v.Error()) {
				class = v
				break
			}
		}
	case status >= 500:
		class = domain.ErrStorageUnavailable
	default:
		return fmt.Errorf("%s: unexpected status %d: %s", op, status, detail)
	}

	if detail == class.Error() {
		return fmt.Errorf("%s: %w", op, class)
	}
	return fmt.Errorf("%s: %w: %s", op, class, detail)
}
