package adminclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Collection is an admin collection path segment.
type Collection string

const (
	CollectionOrders   Collection = "orders"
	CollectionWorkshop Collection = "workshop"
)

// KeyAttr returns the identifier attribute of the collection's records.
func (c Collection) KeyAttr() string {
	if c == CollectionOrders {
		return "orderId"
	}
	return "registrationId"
}

// ExportJob is the state of an export request.
type ExportJob struct {
	JobID     string `json:"jobId"`
	Status    string `json:"status"`
	URL       string `json:"url,omitempty"`
	Rows      int    `json:"rows,omitempty"`
	Error     string `json:"error,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

func (c *Client) list(ctx context.Context, action Action, coll Collection) ([]map[string]any, error) {
	resp, err := c.Do(ctx, action, Request{Method: http.MethodGet, Path: "/admin/" + string(coll)})
	if err != nil {
		return nil, err
	}
	var env Envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, err
	}
	return env.Records, nil
}

// ListOrders returns every order, in server order (newest first).
func (c *Client) ListOrders(ctx context.Context) ([]Order, error) {
	recs, err := c.list(ctx, ActionListOrders, CollectionOrders)
	if err != nil {
		return nil, err
	}
	out := make([]Order, 0, len(recs))
	for _, r := range recs {
		out = append(out, NormalizeOrder(r))
	}
	return out, nil
}

// ListRegistrations returns every workshop registration, newest first.
func (c *Client) ListRegistrations(ctx context.Context) ([]Registration, error) {
	recs, err := c.list(ctx, ActionListRegistrations, CollectionWorkshop)
	if err != nil {
		return nil, err
	}
	out := make([]Registration, 0, len(recs))
	for _, r := range recs {
		out = append(out, NormalizeRegistration(r))
	}
	return out, nil
}

// ApproveOrder marks an order approved.
func (c *Client) ApproveOrder(ctx context.Context, orderID string) error {
	_, err := c.Do(ctx, ActionApprove, Request{
		Method: http.MethodPost,
		Path:   "/admin/orders",
		Query:  url.Values{"method": {"approve"}, "orderId": {orderID}},
	})
	return err
}

// SetAttendance records whether a registrant was present.
func (c *Client) SetAttendance(ctx context.Context, registrationID string, present bool) error {
	_, err := c.Do(ctx, ActionAttendance, Request{
		Method: http.MethodPost,
		Path:   "/admin/workshop",
		Query:  url.Values{"method": {"attendance"}},
		Body:   map[string]any{"registrationId": registrationID, "present": present},
	})
	return err
}

// Delete removes a record. A record that is already gone counts as deleted.
func (c *Client) Delete(ctx context.Context, coll Collection, id string) error {
	_, err := c.Do(ctx, ActionDelete, Request{
		Method: http.MethodPost,
		Path:   "/admin/" + string(coll),
		Query:  url.Values{"method": {"delete"}, coll.KeyAttr(): {id}},
	})
	if IsStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

// RequestExport starts a CSV export of coll and returns the job id.
func (c *Client) RequestExport(ctx context.Context, coll Collection) (string, error) {
	resp, err := c.Do(ctx, ActionExport, Request{Method: http.MethodPost, Path: "/admin/" + string(coll) + "/export"})
	if err != nil {
		return "", err
	}
	var job ExportJob
	if err := json.Unmarshal(resp.Body, &job); err != nil {
		return "", fmt.Errorf("decode export job: %w", err)
	}
	return job.JobID, nil
}

// ExportStatus fetches the state of an export job.
func (c *Client) ExportStatus(ctx context.Context, coll Collection, jobID string) (*ExportJob, error) {
	resp, err := c.Do(ctx, ActionExportStatus, Request{
		Method: http.MethodGet,
		Path:   "/admin/" + string(coll) + "/export/" + url.PathEscape(jobID),
	})
	if err != nil {
		return nil, err
	}
	var job ExportJob
	if err := json.Unmarshal(resp.Body, &job); err != nil {
		return nil, fmt.Errorf("decode export job: %w", err)
	}
	return &job, nil
}
