package kyc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestApproved(t *testing.T) {
	userID := uuid.New()
	cases := []struct {
		name    string
		status  int
		body    string
		want    bool
		wantErr bool
	}{
		{"approved", http.StatusOK, `{"status":"approved"}`, true, false},
		{"pending", http.StatusOK, `{"status":"pending"}`, false, false},
		{"no record", http.StatusNotFound, ``, false, false},
		{"service error", http.StatusInternalServerError, ``, false, true},
		{"bad payload", http.StatusOK, `{`, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				wantPath := "/v1/kyc/" + userID.String() + "/status"
				if r.URL.Path != wantPath {
					t.Errorf("path = %s, want %s", r.URL.Path, wantPath)
				}
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			got, err := NewClient(srv.URL).Approved(context.Background(), userID)
			if tc.wantErr {
				if err == nil {
					t.Fatal("want error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Fatalf("approved = %v, want %v", got, tc.want)
			}
		})
	}
}
