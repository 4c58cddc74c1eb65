package mockidp

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/labstack/echo/v4"

	"github.com/indykite/indykite-sdk-web-sub001/pkg/msg"
)

// request is an incoming protocol message. Dynamic form values arrive
// flattened into the top-level object and are collected separately.
type request struct {
	Type   msg.Type    `json:"@type"`
	ID     string      `json:"@id"`
	Thread *msg.Thread `json:"~thread"`

	Flow   msg.Flow `json:"flow"`
	Action string   `json:"action"`

	State         string `json:"state"`
	Code          string `json:"code"`
	CodeChallenge string `json:"code_challenge"`
	Cv            string `json:"cv"`

	PublicKeyCredential json.RawMessage `json:"publicKeyCredential"`

	values map[string]string
}

func (r *request) thid() string {
	if r.Thread == nil {
		return ""
	}
	return r.Thread.Thid
}

func parseRequest(c echo.Context) (*request, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, err
	}

	req := new(request)
	if err := json.Unmarshal(body, req); err != nil {
		return nil, err
	}
	if req.Type == "" {
		return nil, errors.New("request carries no @type")
	}

	var flat map[string]any
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil, err
	}
	req.values = make(map[string]string)
	for k, v := range flat {
		if s, ok := v.(string); ok {
			req.values[k] = s
		}
	}
	return req, nil
}
