package netdp

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func testConfig() ConfigMsg {
	return ConfigMsg{
		RangeStart: "100000000",
		RangeEnd:   "100100000",
		PubKey:     "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798",
		DPBits:     8,
	}
}

func TestServer_ConfigEndpoint(t *testing.T) {
	srv := NewServer(testConfig(), func(DPBatch) error { return nil })
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/config")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var cfg ConfigMsg
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg != testConfig() {
		t.Fatalf("config round trip mismatch: %+v", cfg)
	}
}

func TestServer_DPEndpoint(t *testing.T) {
	var received []DPBatch
	srv := NewServer(testConfig(), func(b DPBatch) error {
		received = append(received, b)
		return nil
	})
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	batch := DPBatch{
		ClientID: "host-1",
		WorkerID: 3,
		Items: []DPItem{
			{X: "AB12", D: "77", KType: 0},
			{X: "CD34", D: "33", KType: 1},
		},
	}
	body, _ := json.Marshal(batch)
	resp, err := ts.Client().Post(ts.URL+"/dp", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 204 {
		t.Fatalf("POST /dp returned %d", resp.StatusCode)
	}

	if len(received) != 1 || len(received[0].Items) != 2 {
		t.Fatal("batch did not reach the submit callback")
	}
	if received[0].Items[1].KType != 1 || received[0].Items[1].D != "33" {
		t.Fatal("items corrupted in transit")
	}
	if srv.ConnectedClients() != 1 {
		t.Fatalf("connected clients = %d, want 1", srv.ConnectedClients())
	}
}

func TestServer_RejectsWrongMethods(t *testing.T) {
	srv := NewServer(testConfig(), func(DPBatch) error { return nil })
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	resp, err := ts.Client().Post(ts.URL+"/config", "application/json", bytes.NewReader(nil))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 405 {
		t.Fatalf("POST /config returned %d, want 405", resp.StatusCode)
	}

	resp, err = ts.Client().Get(ts.URL + "/dp")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 405 {
		t.Fatalf("GET /dp returned %d, want 405", resp.StatusCode)
	}
}
