package web

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ritzau/graph-analyzer/pkg/analysis"
	"github.com/ritzau/graph-analyzer/pkg/dims"
	"github.com/ritzau/graph-analyzer/pkg/graph"
	"github.com/ritzau/graph-analyzer/pkg/lens"
	"github.com/ritzau/graph-analyzer/pkg/logging"
	"github.com/ritzau/graph-analyzer/pkg/model/modeltest"
	"github.com/ritzau/graph-analyzer/pkg/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	report *analysis.Report
	idx    *graph.Index
}

func (s staticSource) Latest() (*analysis.Report, *graph.Index) {
	return s.report, s.idx
}

func newTestServer(t *testing.T) (*httptest.Server, *pubsub.SSEPublisher) {
	t.Helper()
	opts := analysis.DefaultOptions()
	opts.DeclaredDims = []int{1, 300, 300, 3}
	report, idx, err := analysis.Analyze(context.Background(), modeltest.SSD(), opts, dims.NonInteractive)
	require.NoError(t, err)

	pub := pubsub.NewAnalysisPublisher()
	ts := httptest.NewServer(NewServer(staticSource{report, idx}, pub).Handler())
	t.Cleanup(func() {
		pub.Close()
		ts.Close()
	})
	return ts, pub
}

func getJSON(t *testing.T, url string, v interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp
}

func TestReport(t *testing.T) {
	ts, _ := newTestServer(t)

	var report analysis.Report
	resp := getJSON(t, ts.URL+"/api/report", &report)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(logging.RequestIDHeader))
	assert.Equal(t, 16, report.NodeCount)
	require.NotNil(t, report.Classes)
	assert.Equal(t, 91, report.Classes.NumClasses)
}

func TestNotReady(t *testing.T) {
	pub := pubsub.NewAnalysisPublisher()
	defer pub.Close()
	ts := httptest.NewServer(NewServer(staticSource{}, pub).Handler())
	defer ts.Close()

	for _, path := range []string{"/api/report", "/api/graph", "/api/nodes/x", "/api/search?start=x&pattern=y"} {
		resp := getJSON(t, ts.URL+path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, path)
	}
}

func TestGraph(t *testing.T) {
	ts, _ := newTestServer(t)

	var data lens.GraphData
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/graph", &data).StatusCode)
	assert.Len(t, data.Nodes, 16)
	assert.Equal(t, lens.GraphNode{ID: "image_tensor", Label: "image_tensor", Type: "Placeholder"}, data.Nodes[0])
	assert.Contains(t, data.Edges, lens.GraphEdge{
		Source: "Postprocessor/BatchMultiClassNonMaxSuppression",
		Target: "num_detections",
		Type:   "data",
		Slot:   2,
	})
}

func TestGraphFocus(t *testing.T) {
	ts, _ := newTestServer(t)

	var data lens.GraphData
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/graph?focus=concat_1&depth=1", &data).StatusCode)
	var ids []string
	for _, n := range data.Nodes {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"BoxPredictor_0/ClassPredictor/BiasAdd", "concat_1", "Postprocessor/convert_scores"}, ids)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/graph?focus=concat_1&depth=x", nil).StatusCode)
}

func TestNode(t *testing.T) {
	ts, _ := newTestServer(t)

	var info NodeInfo
	resp := getJSON(t, ts.URL+"/api/nodes/BoxPredictor_0/ClassPredictor/BiasAdd", &info)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "BiasAdd", info.Op)
	assert.Equal(t, []string{"FeatureExtractor/conv"}, info.Inputs)
	assert.Equal(t, []string{"concat_1"}, info.Consumers)
	assert.Equal(t, "shape_list", info.Attrs["_output_shapes"])

	resp = getJSON(t, ts.URL+"/api/nodes/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSearch(t *testing.T) {
	ts, _ := newTestServer(t)

	var result SearchResult
	resp := getJSON(t, ts.URL+"/api/search?start=concat_1&pattern=ClassPredictor", &result)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, result.Found)
	assert.Equal(t, "BoxPredictor_0/ClassPredictor/BiasAdd", result.Match)
	assert.Equal(t, 50, result.Budget)

	result = SearchResult{}
	getJSON(t, ts.URL+"/api/search?start=concat_1&pattern=image&budget=0", &result)
	assert.False(t, result.Found)

	tests := []struct {
		query  string
		status int
	}{
		{"start=concat_1", http.StatusBadRequest},
		{"start=concat_1&pattern=x&budget=-1", http.StatusBadRequest},
		{"start=nope&pattern=x", http.StatusNotFound},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, getJSON(t, ts.URL+"/api/search?"+tt.query, nil).StatusCode, tt.query)
	}
}

func TestSubgraph(t *testing.T) {
	ts, _ := newTestServer(t)

	var result struct {
		Inputs []string `json:"inputs"`
	}
	resp := getJSON(t, ts.URL+"/api/subgraph?pattern=Postprocessor", &result)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"MultipleGridAnchorGenerator/Concatenate/concat", "concat", "concat_1"}, result.Inputs)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/subgraph", nil).StatusCode)
}

func TestSubscribe(t *testing.T) {
	ts, pub := newTestServer(t)
	require.NoError(t, pub.Publish(pubsub.TopicAnalysisStatus, "ready", pubsub.AnalysisStatus{State: "ready", Step: 3, Total: 3}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/subscribe/analysis_status", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	var data string
	for data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(strings.TrimSpace(line), "data: ")
		}
	}

	var event pubsub.Event
	require.NoError(t, json.Unmarshal([]byte(data), &event))
	assert.Equal(t, pubsub.TopicAnalysisStatus, event.Topic)
	assert.Equal(t, "ready", event.Type)
}

func TestSubscribeUnknownTopic(t *testing.T) {
	ts, _ := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/subscribe/bogus", nil).StatusCode)
}

func TestServeShutsDownWithOpenStream(t *testing.T) {
	report, idx, err := analysis.Analyze(context.Background(), modeltest.Chain(), analysis.DefaultOptions(), dims.NonInteractive)
	require.NoError(t, err)
	pub := pubsub.NewAnalysisPublisher()
	defer pub.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- NewServer(staticSource{report, idx}, pub).Serve(ctx, ln)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/subscribe/report")
	require.NoError(t, err)
	defer resp.Body.Close()
	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down while a stream was open")
	}
}
