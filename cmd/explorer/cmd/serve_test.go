package cmd

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	explorermock "github.com/higashi-matsudo/library-explorer/internal/mock"
	"github.com/higashi-matsudo/library-explorer/internal/repository"
	"github.com/higashi-matsudo/library-explorer/internal/testutil"
)

func TestServeMux_Runs(t *testing.T) {
	historyMock := new(explorermock.MockHistoryRepository)
	historyMock.ExpectListByProblem("aleph", []*repository.RunRecord{
		{ID: 1, Problem: "aleph", Outcome: repository.OutcomeAccepted},
	}, nil)

	mux := newServeMux(&serveServer{history: historyMock})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/runs?problem=aleph")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	testutil.AssertJSONEqual(t, `[{
		"ID": 1,
		"Problem": "aleph",
		"Backend": "",
		"Outcome": "accepted",
		"ProbeCount": 0,
		"FinalCost": null,
		"GuessMap": null,
		"ErrorMessage": "",
		"StartedAt": "0001-01-01T00:00:00Z",
		"EndedAt": null
	}]`, string(body))
	historyMock.AssertExpectations(t)
}

func TestServeMux_RunsMissingProblem(t *testing.T) {
	historyMock := new(explorermock.MockHistoryRepository)
	mux := newServeMux(&serveServer{history: historyMock})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/runs")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServeMux_Health(t *testing.T) {
	mux := newServeMux(&serveServer{})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServeMux_Pending(t *testing.T) {
	historyMock := new(explorermock.MockHistoryRepository)
	historyMock.ExpectListPending([]*repository.RunRecord{}, nil)

	mux := newServeMux(&serveServer{history: historyMock})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/runs/pending")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	historyMock.AssertExpectations(t)
}
