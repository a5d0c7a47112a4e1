package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ecowatch/ecowatch/internal/api"
	"github.com/ecowatch/ecowatch/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CreateViolation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/violations", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "pollution", r.FormValue("type"))
		assert.Equal(t, "50.45", r.FormValue("lat"))
		assert.Equal(t, "30.52", r.FormValue("lng"))
		assert.Equal(t, "12.5", r.FormValue("accuracy"))
		assert.Equal(t, "oil slick", r.FormValue("description"))

		file, header, err := r.FormFile("photos")
		require.NoError(t, err)
		defer func() { _ = file.Close() }()
		content, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "spill.jpg", header.Filename)
		assert.Equal(t, "image/jpeg", header.Header.Get("Content-Type"))
		assert.Equal(t, []byte("jpeg-bytes"), content)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"v-new","status":"active"}`))
	}))
	defer server.Close()

	client, _, _ := newTestClient(t, server.URL)
	resp, err := client.CreateViolation(testutil.TestContext(), CreateViolationParams{
		Type:        api.ViolationPollution,
		Description: "oil slick",
		Lat:         50.45,
		Lng:         30.52,
		Accuracy:    12.5,
		Photos: []Photo{{
			Name: "spill.jpg", ContentType: "image/jpeg", Content: []byte("jpeg-bytes"),
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "v-new", resp.ID)
	assert.Equal(t, "active", resp.Status)
}

func TestClient_CreateViolation_OmitsEmptyOptionalFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, hasDescription := r.MultipartForm.Value["description"]
		_, hasAccuracy := r.MultipartForm.Value["accuracy"]
		assert.False(t, hasDescription)
		assert.False(t, hasAccuracy)
		_, _ = w.Write([]byte(`{"id":"v-new"}`))
	}))
	defer server.Close()

	client, _, _ := newTestClient(t, server.URL)
	_, err := client.CreateViolation(testutil.TestContext(), CreateViolationParams{
		Type: api.ViolationGarbage, Lat: 50.45, Lng: 30.52,
	})
	require.NoError(t, err)
}

func TestClient_ViolationsByBbox(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/violations", r.URL.Path)
		assert.Equal(t, "30.4,50.3,30.7,50.6", r.URL.Query().Get("bbox"))
		_, _ = w.Write([]byte(`{"items":[{"id":"v1","type":"garbage","lat":50.4,"lng":30.5}],"page":1,"page_size":50,"total":1}`))
	}))
	defer server.Close()

	client, _, _ := newTestClient(t, server.URL)
	page, err := client.ViolationsByBbox(testutil.TestContext(), [4]float64{30.4, 50.3, 30.7, 50.6})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "v1", page.Items[0].ID)
	assert.Equal(t, 1, page.Total)
}

func TestClient_ViolationByID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/violations/v1", r.URL.Path)
		// The body intentionally omits the id.
		_, _ = w.Write([]byte(`{"type":"deforestation","lat":49.8,"lng":24.0,"status":"active"}`))
	}))
	defer server.Close()

	client, _, _ := newTestClient(t, server.URL)
	v, err := client.ViolationByID(testutil.TestContext(), "v1")
	require.NoError(t, err)
	assert.Equal(t, "v1", v.ID, "id is backfilled from the request path")
	assert.Equal(t, api.ViolationDeforestation, v.Type)
}

func TestClient_CloseViolation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/violations/v1/close-request", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "partially_closed", r.FormValue("status"))
		assert.Equal(t, "half cleaned", r.FormValue("comment"))
		_, _ = w.Write([]byte(`{"id":"req1","violation_id":"v1","status":"pending"}`))
	}))
	defer server.Close()

	client, _, _ := newTestClient(t, server.URL)
	req, err := client.CloseViolation(testutil.TestContext(), "v1", CloseViolationParams{
		Status:  "partially_closed",
		Comment: "half cleaned",
	})
	require.NoError(t, err)
	assert.Equal(t, "req1", req.ID)
	assert.Equal(t, "pending", req.Status)
}

func TestClient_Vote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/violation-requests/req1/vote", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "like", body["value"])
		_, _ = w.Write([]byte(`{"violation_request_id":"req1","likes":3,"dislikes":1,"user_vote":"like"}`))
	}))
	defer server.Close()

	client, _, _ := newTestClient(t, server.URL)
	resp, err := client.Vote(testutil.TestContext(), "req1", api.VoteLike)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Likes)
	assert.Equal(t, 1, resp.Dislikes)
	assert.Equal(t, "like", resp.UserVote)
}

func TestClient_Complain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/violation-requests/req1/complaints", r.URL.Path)
		var req api.ComplaintRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "spam", req.Reason)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client, _, _ := newTestClient(t, server.URL)
	err := client.Complain(testutil.TestContext(), "req1", api.ComplaintRequest{Reason: "spam"})
	require.NoError(t, err)
}
