package gui

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amsen20/reconf/alg"
	"github.com/amsen20/reconf/internal/connector"
	"github.com/amsen20/reconf/internal/instance"
	"github.com/amsen20/reconf/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const overloaded = `{
  "resources": [{"name": "cpu"}],
  "nodes": [{"id": 0, "capacities": {"cpu": 4}}, {"id": 1, "capacities": {"cpu": 4}}],
  "vms": [
    {"id": 0, "state": "running", "host": 0, "consumptions": {"cpu": 2}},
    {"id": 1, "state": "running", "host": 0, "consumptions": {"cpu": 3}}
  ]
}`

func do(t *testing.T, server *Server, method, path, body string) *httptest.ResponseRecorder {
	req, err := http.NewRequest(method, path, strings.NewReader(body))
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSolveAndFetch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	server := NewServer(alg.DefaultParameters(), nil)

	rec := do(t, server, http.MethodPost, "/solve", overloaded)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var answer struct {
		ID   string            `json:"id"`
		Plan instance.PlanDesc `json:"plan"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &answer))
	assert.NotEmpty(t, answer.ID)
	assert.Equal(t, "OPTIMAL", answer.Plan.Status)
	require.Len(t, answer.Plan.Actions, 1)
	assert.Equal(t, "migrate_vm", answer.Plan.Actions[0].Kind)

	rec = do(t, server, http.MethodGet, "/plans/"+answer.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stored instance.PlanDesc
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	assert.Equal(t, answer.Plan, stored)

	rec = do(t, server, http.MethodGet, "/plans/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSolveErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	server := NewServer(alg.DefaultParameters(), nil)

	rec := do(t, server, http.MethodPost, "/solve", "nodes: [{id: 0, unknown: 1}]")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, server, http.MethodPost, "/solve", "vms: [{id: 0, state: running, host: 7}]")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// running and killed at once
	conflicting := `
nodes: [{id: 0}]
vms: [{id: 0, state: running, host: 0}]
constraints:
  - {kind: running, vms: [0]}
  - {kind: killed, vms: [0]}
`
	rec = do(t, server, http.MethodPost, "/solve", conflicting)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestStateAndMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rec := do(t, NewServer(alg.DefaultParameters(), nil), http.MethodGet, "/state", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	m := model.NewModel()
	m.Mapping().AddOnlineNode(3)
	server := NewServer(alg.DefaultParameters(), connector.NewConstantConnector(m, nil))
	rec = do(t, server, http.MethodGet, "/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "N3")

	rec = do(t, server, http.MethodGet, "/statistics", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, server, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
