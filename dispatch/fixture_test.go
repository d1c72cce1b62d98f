package dispatch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgecraft/edgecraft/routetable"
)

// Golden dispatch cases: each fixture is a raw table image plus a request
// and the expected routing outcome. Adding a case means editing JSON, not Go.

type fixture struct {
	Name    string            `json:"name"`
	Table   map[string]string `json:"table"`
	Request fixtureRequest    `json:"request"`
	Expect  fixtureExpect     `json:"expect"`
}

type fixtureRequest struct {
	Method  string            `json:"method"`
	URI     string            `json:"uri"`
	Query   string            `json:"querystring"`
	Headers map[string]string `json:"headers"`
	Cookies map[string]string `json:"cookies"`
}

type fixtureExpect struct {
	URI          string            `json:"uri"`
	OriginType   string            `json:"originType"`
	OriginDomain string            `json:"originDomain"`
	Headers      map[string]string `json:"headers"`
	NoCookies    bool              `json:"noCookies"`
}

// fixtureTable serves the raw table image without going through Store.
type fixtureTable map[string]string

func (t fixtureTable) Get(_ context.Context, key string) (string, error) {
	value, ok := t[key]
	if !ok {
		return "", routetable.ErrNotFound
	}
	return value, nil
}

func TestDispatchFixtures(t *testing.T) {
	blob, err := os.ReadFile(filepath.Join("testdata", "fixtures.json"))
	require.NoError(t, err)

	var fixtures []fixture
	require.NoError(t, json.Unmarshal(blob, &fixtures))
	require.NotEmpty(t, fixtures)

	for _, f := range fixtures {
		t.Run(f.Name, func(t *testing.T) {
			req := &Request{
				Method:      f.Request.Method,
				URI:         f.Request.URI,
				QueryString: f.Request.Query,
				Headers:     map[string]string{},
				Cookies:     map[string]string{},
			}
			for name, value := range f.Request.Headers {
				req.SetHeader(name, value)
			}
			for name, value := range f.Request.Cookies {
				req.Cookies[name] = value
			}

			New(fixtureTable(f.Table)).Dispatch(context.Background(), req)

			if f.Expect.URI != "" {
				assert.Equal(t, f.Expect.URI, req.URI)
			}
			switch f.Expect.OriginType {
			case "none":
				assert.Nil(t, req.Origin)
			case "custom":
				require.NotNil(t, req.Origin)
				assert.Equal(t, OriginCustom, req.Origin.Type)
			case "s3":
				require.NotNil(t, req.Origin)
				assert.Equal(t, OriginS3, req.Origin.Type)
			}
			if f.Expect.OriginDomain != "" {
				require.NotNil(t, req.Origin)
				assert.Equal(t, f.Expect.OriginDomain, req.Origin.Domain)
			}
			for name, value := range f.Expect.Headers {
				assert.Equal(t, value, req.Header(name), "header %s", name)
			}
			if f.Expect.NoCookies {
				assert.Empty(t, req.Cookies)
			}
		})
	}
}
