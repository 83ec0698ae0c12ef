package restapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/perchdb/perch"
)

func startServer(t *testing.T, version string, ttl time.Duration) (*Server, *httptest.Server) {
	t.Helper()
	t.Setenv("PERCH_ENV", "DEV")
	gin.SetMode(gin.TestMode)
	s := NewServer(version, ttl)
	hs := httptest.NewServer(Router(s))
	t.Cleanup(hs.Close)
	return s, hs
}

func doJSON(t *testing.T, method, url string, in any) (int, perch.TxResponse) {
	t.Helper()
	var payload *bytes.Reader
	if in != nil {
		ba, err := json.Marshal(in)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		payload = bytes.NewReader(ba)
	} else {
		payload = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, payload)
	if err != nil {
		t.Fatalf("new request failed: %v", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()
	var out perch.TxResponse
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func Test_InfoEndpoint(t *testing.T) {
	_, hs := startServer(t, "2.4.1", 0)
	resp, err := http.Get(hs.URL + "/api/v1/info")
	if err != nil {
		t.Fatalf("get info failed: %v", err)
	}
	defer resp.Body.Close()
	var info perch.ServerInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if info.Version != "2.4.1" || info.Name == "" {
		t.Fatalf("info: got %+v want version 2.4.1 with a name", info)
	}
}

func Test_TransactionLifecycle(t *testing.T) {
	srv, hs := startServer(t, "", 0)

	status, begun := doJSON(t, http.MethodPost, hs.URL+"/api/v1/tx", perch.TxRequest{
		Statements: []perch.Statement{{Text: "create a"}},
	})
	if status != http.StatusCreated || begun.ID == "" {
		t.Fatalf("begin: got status %d id %q", status, begun.ID)
	}
	if srv.OpenTransactions() != 1 {
		t.Fatalf("open: got %d want 1", srv.OpenTransactions())
	}

	status, _ = doJSON(t, http.MethodPost, hs.URL+"/api/v1/tx/"+begun.ID, perch.TxRequest{
		Statements: []perch.Statement{{Text: "create b"}},
	})
	if status != http.StatusOK {
		t.Fatalf("append: got status %d want 200", status)
	}

	status, _ = doJSON(t, http.MethodPost, hs.URL+"/api/v1/tx/"+begun.ID+"/commit", nil)
	if status != http.StatusOK {
		t.Fatalf("commit: got status %d want 200", status)
	}
	if srv.OpenTransactions() != 0 || srv.CommittedStatements() != 2 {
		t.Fatalf("after commit: open=%d committed=%d want 0/2", srv.OpenTransactions(), srv.CommittedStatements())
	}
}

func Test_DeleteDiscards(t *testing.T) {
	srv, hs := startServer(t, "", 0)

	_, begun := doJSON(t, http.MethodPost, hs.URL+"/api/v1/tx", perch.TxRequest{
		Statements: []perch.Statement{{Text: "create a"}},
	})
	status, _ := doJSON(t, http.MethodDelete, hs.URL+"/api/v1/tx/"+begun.ID, nil)
	if status != http.StatusOK {
		t.Fatalf("delete: got status %d want 200", status)
	}
	if srv.OpenTransactions() != 0 || srv.CommittedStatements() != 0 {
		t.Fatalf("after delete: open=%d committed=%d want 0/0", srv.OpenTransactions(), srv.CommittedStatements())
	}

	// A second delete finds nothing and reports the transaction gone.
	status, resp := doJSON(t, http.MethodDelete, hs.URL+"/api/v1/tx/"+begun.ID, nil)
	if status != http.StatusNotFound {
		t.Fatalf("double delete: got status %d want 404", status)
	}
	if len(resp.Errors) == 0 || resp.Errors[0].Code != perch.ExpiredErrorCode {
		t.Fatalf("double delete errors: got %+v want %s", resp.Errors, perch.ExpiredErrorCode)
	}
}

func Test_ExpiryReapsTransactions(t *testing.T) {
	srv, hs := startServer(t, "", 20*time.Millisecond)

	_, begun := doJSON(t, http.MethodPost, hs.URL+"/api/v1/tx", nil)
	time.Sleep(60 * time.Millisecond)

	status, resp := doJSON(t, http.MethodPost, hs.URL+"/api/v1/tx/"+begun.ID+"/commit", nil)
	if status != http.StatusNotFound {
		t.Fatalf("commit of expired tx: got status %d want 404", status)
	}
	if len(resp.Errors) == 0 || resp.Errors[0].Code != perch.ExpiredErrorCode {
		t.Fatalf("expired errors: got %+v want %s", resp.Errors, perch.ExpiredErrorCode)
	}
	if srv.OpenTransactions() != 0 {
		t.Fatalf("expired tx still open: %d", srv.OpenTransactions())
	}
}

func Test_AppendRefreshesExpiry(t *testing.T) {
	_, hs := startServer(t, "", 60*time.Millisecond)

	_, begun := doJSON(t, http.MethodPost, hs.URL+"/api/v1/tx", nil)
	// Keep touching the transaction past its original TTL.
	for i := 0; i < 3; i++ {
		time.Sleep(30 * time.Millisecond)
		status, _ := doJSON(t, http.MethodPost, hs.URL+"/api/v1/tx/"+begun.ID, perch.TxRequest{
			Statements: []perch.Statement{{Text: "keepalive"}},
		})
		if status != http.StatusOK {
			t.Fatalf("append %d: got status %d want 200", i, status)
		}
	}
	status, _ := doJSON(t, http.MethodPost, hs.URL+"/api/v1/tx/"+begun.ID+"/commit", nil)
	if status != http.StatusOK {
		t.Fatalf("commit after keepalives: got status %d want 200", status)
	}
}

func Test_MissingTokenRejected(t *testing.T) {
	// No PERCH_ENV bypass: requests without a bearer token are rejected.
	t.Setenv("PERCH_ENV", "")
	gin.SetMode(gin.TestMode)
	s := NewServer("", 0)
	hs := httptest.NewServer(Router(s))
	t.Cleanup(hs.Close)

	resp, err := http.Get(hs.URL + "/api/v1/info")
	if err != nil {
		t.Fatalf("get info failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated request: got status %d want 401", resp.StatusCode)
	}
}

func Test_QATokenBypass(t *testing.T) {
	t.Setenv("PERCH_ENV", "QA")
	t.Setenv("PERCH_QA_TOKEN", "qa-secret")
	gin.SetMode(gin.TestMode)
	s := NewServer("", 0)
	hs := httptest.NewServer(Router(s))
	t.Cleanup(hs.Close)

	req, _ := http.NewRequest(http.MethodGet, hs.URL+"/api/v1/info", nil)
	req.Header.Set("Authorization", "Bearer qa-secret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get info failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("QA token request: got status %d want 200", resp.StatusCode)
	}

	req.Header.Set("Authorization", "Bearer wrong")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get info failed: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong QA token: got status %d want 401", resp2.StatusCode)
	}
}
