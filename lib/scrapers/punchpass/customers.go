package punchpass

import (
	"context"
	"encoding/json"
	"fmt"

	"punchpass-backend/lib/htmlutil"

	"go.opentelemetry.io/otel/codes"
)

// customers.json speaks the DataTables wire format; column 3 is the
// email column.
var customerSearchParams = map[string]string{
	"columns[3][data]":       "email",
	"columns[3][searchable]": "true",
	"columns[3][orderable]":  "true",
	"start":                  "0",
	"length":                 "1",
}

type customerRow struct {
	ObjectId  json.Number `json:"object_id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Phone     string      `json:"phone"`
	Email     string      `json:"email"`
}

type customerPayload struct {
	Data []customerRow `json:"data"`
}

// FetchCustomer looks a customer up by email through the site's
// customer-search endpoint. An empty result set is a defined
// not-found outcome, not an error.
func (c *Client) FetchCustomer(ctx context.Context, email string) (User, bool, error) {
	ctx, span := tracer.Start(ctx, "client:FetchCustomer")
	defer span.End()

	err := c.EnsureSession(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no authenticated session")
		return User{}, false, err
	}

	req := c.Http.R().SetContext(ctx)
	for k, v := range customerSearchParams {
		req.SetQueryParam(k, v)
	}
	req.SetQueryParam("columns[3][search][value]", email)

	res, err := req.Get("/a/customers.json")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "customer search request failed")
		return User{}, false, err
	}
	if res.StatusCode() >= 400 {
		err = fmt.Errorf("customer search: status %d", res.StatusCode())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return User{}, false, err
	}

	return ParseCustomerPayload(res.Body())
}

// ParseCustomerPayload decodes the first row of a customer search
// result. The search endpoint wraps matched substrings of name fields
// in highlight markup, which gets stripped here.
func ParseCustomerPayload(body []byte) (User, bool, error) {
	var payload customerPayload
	err := json.Unmarshal(body, &payload)
	if err != nil {
		return User{}, false, fmt.Errorf("decode customer payload: %w", err)
	}
	if len(payload.Data) == 0 {
		return User{}, false, nil
	}

	row := payload.Data[0]
	id, err := row.ObjectId.Int64()
	if err != nil {
		return User{}, false, fmt.Errorf("customer object_id %q is not numeric: %w", row.ObjectId, err)
	}

	return User{
		Id:        id,
		FirstName: htmlutil.StripTags(row.FirstName),
		LastName:  htmlutil.StripTags(row.LastName),
		Phone:     row.Phone,
		Email:     row.Email,
	}, true, nil
}
