package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/invoice-analytics/internal/platform/httpx"
)

func TestClientAskForwardsQuestion(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/query", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "top vendors?", body["question"])
		_, _ = w.Write([]byte(`{"sql":"SELECT 1","results":[{"n":1}],"explanation":"one row"}`))
	}))
	defer upstream.Close()

	answer, err := NewClient(upstream.URL+"/").Ask(context.Background(), "top vendors?")
	require.NoError(t, err)
	require.Equal(t, "SELECT 1", answer.SQL)
	require.Len(t, answer.Results, 1)
	require.Equal(t, "one row", answer.Explanation)
}

func TestClientAskWrapsUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer upstream.Close()

	_, err := NewClient(upstream.URL).Ask(context.Background(), "anything")
	require.ErrorIs(t, err, httpx.ErrUpstream)
}

func TestClientAskDefaultsResults(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"sql":"SELECT 1"}`))
	}))
	defer upstream.Close()

	answer, err := NewClient(upstream.URL).Ask(context.Background(), "q")
	require.NoError(t, err)
	require.NotNil(t, answer.Results)
	require.Empty(t, answer.Results)
}

type stubAsker struct {
	answer Answer
	err    error
	asked  []string
}

func (s *stubAsker) Ask(_ context.Context, question string) (Answer, error) {
	s.asked = append(s.asked, question)
	return s.answer, s.err
}

func serve(h *Handler, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.MountRoutes(r)
	req := httptest.NewRequest(http.MethodPost, "/chat-with-data", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandlerAnswersQuery(t *testing.T) {
	asker := &stubAsker{answer: Answer{SQL: "SELECT 2", Explanation: "x"}}
	rec := serve(NewHandler(nil, asker), `{"query":"  spend by month  "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"spend by month"}, asker.asked)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "spend by month", resp["query"])
	require.Equal(t, "SELECT 2", resp["sql"])
	require.Equal(t, []any{}, resp["results"])
}

func TestHandlerRejectsEmptyQuery(t *testing.T) {
	asker := &stubAsker{}
	for _, body := range []string{`{"query":"   "}`, `{}`, `not json`} {
		rec := serve(NewHandler(nil, asker), body)
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
		require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	}
	require.Empty(t, asker.asked)
}

func TestHandlerMapsUpstreamFailure(t *testing.T) {
	asker := &stubAsker{err: httpx.ErrUpstream}
	rec := serve(NewHandler(nil, asker), `{"query":"q"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
}
