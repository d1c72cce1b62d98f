package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgecraft/edgecraft/dispatch"
	"github.com/edgecraft/edgecraft/routetable"
)

const sampleEvent = `{
  "Records": [{
    "cf": {
      "config": {"distributionId": "EDFDVBD6EXAMPLE", "eventType": "origin-request"},
      "request": {
        "clientIp": "203.0.113.178",
        "method": "GET",
        "uri": "/api/users",
        "querystring": "b=2&a=1",
        "headers": {
          "host": [{"key": "Host", "value": "example.com"}],
          "cookie": [{"key": "Cookie", "value": "session=abc; theme=dark"}],
          "accept": [{"key": "Accept", "value": "text/html"}]
        }
      }
    }
  }]
}`

func parseSample(t *testing.T) *cfRequest {
	t.Helper()
	var event cfEvent
	require.NoError(t, json.Unmarshal([]byte(sampleEvent), &event))
	require.Len(t, event.Records, 1)
	return event.Records[0].CF.Request
}

func TestFromEvent(t *testing.T) {
	req := fromEvent(parseSample(t))

	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/api/users", req.URI)
	assert.Equal(t, "b=2&a=1", req.QueryString)
	assert.Equal(t, "example.com", req.Host())
	assert.Equal(t, "abc", req.Cookies["session"])
	assert.Equal(t, "dark", req.Cookies["theme"])
}

func TestApplyToEvent_CustomOrigin(t *testing.T) {
	cfReq := parseSample(t)
	req := fromEvent(cfReq)

	req.URI = "/users"
	req.SetHeader("x-forwarded-host", req.Host())
	req.Origin = &dispatch.Origin{
		Type:      dispatch.OriginCustom,
		Domain:    "api.example.com",
		Overrides: routetable.OriginOverrides{ReadTimeout: 20},
	}

	applyToEvent(req, cfReq)

	assert.Equal(t, "/users", cfReq.URI)
	require.NotNil(t, cfReq.Origin)
	require.NotNil(t, cfReq.Origin.Custom)
	assert.Nil(t, cfReq.Origin.S3)
	assert.Equal(t, "api.example.com", cfReq.Origin.Custom.DomainName)
	assert.Equal(t, 20, cfReq.Origin.Custom.ReadTimeout)
	assert.Equal(t, 5, cfReq.Origin.Custom.KeepaliveTimeout)

	assert.Equal(t, "api.example.com", cfReq.Headers["host"][0].Value)
	assert.Equal(t, "example.com", cfReq.Headers["x-forwarded-host"][0].Value)
	require.Contains(t, cfReq.Headers, "cookie")
}

func TestApplyToEvent_S3OriginStripsCookies(t *testing.T) {
	cfReq := parseSample(t)
	req := fromEvent(cfReq)

	req.Cookies = map[string]string{}
	req.Origin = &dispatch.Origin{Type: dispatch.OriginS3, Domain: "assets.s3.us-east-1.amazonaws.com"}

	applyToEvent(req, cfReq)

	require.NotNil(t, cfReq.Origin)
	require.NotNil(t, cfReq.Origin.S3)
	assert.Equal(t, "none", cfReq.Origin.S3.AuthMethod)
	assert.NotContains(t, cfReq.Headers, "cookie")
}

func TestApplyToEvent_NoMatchLeavesOriginUnset(t *testing.T) {
	cfReq := parseSample(t)
	req := fromEvent(cfReq)

	applyToEvent(req, cfReq)

	assert.Nil(t, cfReq.Origin)
	assert.Equal(t, "/api/users", cfReq.URI)
	assert.Equal(t, "example.com", cfReq.Headers["host"][0].Value)
}
