package lens

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCallSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	anon := NewClient(srv.URL)
	if _, err := anon.FetchPost(context.Background(), "p1"); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "" {
		t.Errorf("anonymous client sent %q", gotAuth)
	}

	authed := anon.WithSession("tok123")
	if _, err := authed.FetchPost(context.Background(), "p1"); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer tok123" {
		t.Errorf("auth header = %q", gotAuth)
	}
}

func TestCallErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Unauthenticated"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.FetchPost(context.Background(), "p1")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Errorf("status = %d", apiErr.Status)
	}
	if apiErr.Message != "Unauthenticated" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestCallErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.FetchPost(context.Background(), "p1")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v", err)
	}
	if apiErr.Status != http.StatusBadGateway {
		t.Errorf("status = %d", apiErr.Status)
	}
}

func TestExecutePostActionWillFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ActionResult{
			Typename: TxWillFail,
			Reason:   "Not enough balance to execute",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.ExecutePostAction(context.Background(), ExecutePostActionRequest{Post: "p1", SimpleCollect: true})
	if err == nil {
		t.Fatal("TransactionWillFail must surface as an error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Not enough balance to execute" {
		t.Errorf("err = %v", err)
	}
}

func TestWaitForTransaction(t *testing.T) {
	statuses := []string{"PENDING", "FINISHED"}
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := statuses[calls]
		if calls < len(statuses)-1 {
			calls++
		}
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	if err := client.WaitForTransaction(context.Background(), "0xhash"); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("polled %d times before finishing", calls+1)
	}
}

func TestWaitForTransactionFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "FAILED", "reason": "reverted"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	err := client.WaitForTransaction(context.Background(), "0xhash")
	if err == nil || err.Error() != "reverted" {
		t.Fatalf("err = %v", err)
	}
}
