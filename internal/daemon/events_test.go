package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"grila/internal/api"
	"grila/internal/grading"
	"grila/internal/testsupport"
)

func dialEvents(t *testing.T, d *Daemon, token string) *websocket.Conn {
	t.Helper()
	target := url.URL{Scheme: "ws", Host: d.Addr(), Path: "/grading/events"}
	if token != "" {
		target.RawQuery = "token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(target.String(), nil)
	if err != nil {
		t.Fatalf("dial events: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for d.hub.clientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("event client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) api.Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	var evt api.Event
	if err := json.Unmarshal(data, &evt); err != nil {
		t.Fatalf("decode event %s: %v", data, err)
	}
	return evt
}

func TestEventsStreamBatchProgress(t *testing.T) {
	d := newTestDaemon(t,
		testsupport.WithAPIToken("secret"),
		testsupport.WithWorkerScript(testsupport.EchoWorker(testsupport.WorkerOutput("Ana", 6, 10))),
	)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	conn := dialEvents(t, d, "secret")

	req := multipartRequest(t, "/grading/grade-batch", nil, pngUpload("barem", "barem.png"), pngUpload("elev", "elev1.png"))
	req.Header.Set("Authorization", "Bearer secret")
	if rec := serve(d, req); rec.Code != http.StatusOK {
		t.Fatalf("batch status %d: %s", rec.Code, rec.Body.String())
	}

	job := readEvent(t, conn)
	if job.Type != api.EventJobFinished || job.Index != 1 || job.Score != "6/10" || job.SavedID == "" || job.BatchID == "" {
		t.Fatalf("unexpected job event %+v", job)
	}
	batch := readEvent(t, conn)
	if batch.Type != api.EventBatchFinished || batch.BatchID != job.BatchID || batch.Summary == nil || batch.Summary.Successful != 1 {
		t.Fatalf("unexpected batch event %+v", batch)
	}
}

func TestEventsRequireToken(t *testing.T) {
	d := newTestDaemon(t, testsupport.WithAPIToken("secret"))
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	target := url.URL{Scheme: "ws", Host: d.Addr(), Path: "/grading/events"}
	_, resp, err := websocket.DefaultDialer.Dial(target.String(), nil)
	if err == nil {
		t.Fatal("expected handshake to fail without token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 handshake, got %+v", resp)
	}
}

func TestEventHubTracksActiveJobs(t *testing.T) {
	hub := newEventHub(nil)
	sub := grading.Submission{Index: 1, FileName: "elev1.png"}
	hub.JobStarted("b", sub)
	if hub.activeJobs() != 1 {
		t.Fatalf("expected one active job, got %d", hub.activeJobs())
	}
	hub.JobFinished("b", grading.JobResult{
		Kind:    grading.ResultFailure,
		Failure: &grading.JobFailure{Index: 1, FileName: "elev1.png", Error: "boom", Kind: "WorkerTimeout"},
	}, time.Second)
	if hub.activeJobs() != 0 {
		t.Fatalf("expected no active jobs, got %d", hub.activeJobs())
	}
	hub.BatchFinished(nil)
}

func TestEventHubDropsSlowClients(t *testing.T) {
	hub := newEventHub(nil)
	slow := &eventClient{send: make(chan []byte, 1)}
	hub.clients[slow] = struct{}{}

	hub.broadcast(api.Event{Type: api.EventJobFinished, Index: 1})
	if hub.clientCount() != 1 {
		t.Fatal("client with buffer room must stay connected")
	}
	hub.broadcast(api.Event{Type: api.EventJobFinished, Index: 2})
	if hub.clientCount() != 0 {
		t.Fatal("slow client was not dropped")
	}
	if _, ok := <-slow.send; !ok {
		t.Fatal("expected the buffered event before the channel closed")
	}
	if _, ok := <-slow.send; ok {
		t.Fatal("expected send channel to be closed")
	}
}
