package mpesa

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LavaJover/shvark-mpesa-service/internal/config"
	"github.com/LavaJover/shvark-mpesa-service/internal/domain"
	"github.com/shopspring/decimal"
)

const testAPIKey = "test-api-key"

type gateway struct {
	t       *testing.T
	key     *rsa.PrivateKey
	handler func(w http.ResponseWriter, r *http.Request, params map[string]string)
}

func (g *gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	encrypted, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		http.Error(w, "bad token", http.StatusUnauthorized)
		return
	}
	apiKey, err := rsa.DecryptPKCS1v15(rand.Reader, g.key, encrypted)
	if err != nil || string(apiKey) != testAPIKey {
		http.Error(w, "bad token", http.StatusUnauthorized)
		return
	}
	if r.Header.Get("Origin") != "*" {
		http.Error(w, "missing origin", http.StatusBadRequest)
		return
	}

	params := map[string]string{}
	if r.Method == http.MethodGet {
		for k, v := range r.URL.Query() {
			params[k] = v[0]
		}
	} else if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}
	g.handler(w, r, params)
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, params map[string]string)) *Client {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	srv := httptest.NewServer(&gateway{t: t, key: key, handler: handler})
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	host, port, _ := net.SplitHostPort(u.Host)

	client, err := NewClient(config.Provider{
		APIKey:              testAPIKey,
		PublicKey:           base64.StdEncoding.EncodeToString(der),
		Host:                host,
		UseTLS:              false,
		PortC2B:             port,
		PortB2C:             port,
		PortB2B:             port,
		PortReversal:        port,
		PortQueryTxn:        port,
		PortQueryCustomer:   port,
		ServiceProviderCode: "171717",
		SecurityCredential:  "Mpesa2019",
		InitiatorIdentifier: "SJGW8ud89",
		Timeout:             2 * time.Second,
		BreakerMaxFailures:  2,
		BreakerOpenTimeout:  time.Minute,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func TestInvokeC2B(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		if r.Method != http.MethodPost || r.URL.Path != "/ipg/v1x/c2bPayment/singleStage/" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if params["input_CustomerMSISDN"] != "258843330333" || params["input_Amount"] != "10.00" {
			t.Errorf("unexpected params %v", params)
		}
		if params["input_ServiceProviderCode"] != "171717" {
			t.Errorf("default service provider code not applied: %v", params)
		}
		writeJSON(w, http.StatusCreated, map[string]string{
			"output_ResponseCode":        "INS-0",
			"output_ResponseDesc":        "Request processed successfully",
			"output_TransactionID":       "gv2yqsgl10x7",
			"output_ConversationID":      "a6e8b6cbc5b54e8b8ffa2a57bb8f5c8b",
			"output_ThirdPartyReference": params["input_ThirdPartyReference"],
		})
	})

	resp, err := client.Invoke(context.Background(), domain.ProviderRequest{
		Operation:            domain.OpC2BPayment,
		TransactionReference: "T12344C",
		ThirdPartyReference:  "abc",
		CustomerMSISDN:       "258843330333",
		Amount:               decimal.NewNullDecimal(decimal.NewFromInt(10)),
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.ResponseCode != domain.CodeOK || resp.TransactionID != "gv2yqsgl10x7" || resp.ThirdPartyReference != "abc" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestInvokeQueriesUseGET(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		switch r.URL.Path {
		case "/ipg/v1x/queryCustomerName/":
			writeJSON(w, http.StatusOK, map[string]string{
				"output_ResultCode":   "INS-0",
				"output_ResultDesc":   "Request processed successfully",
				"output_CustomerName": "J*** D**",
			})
		case "/ipg/v1x/queryTransactionStatus/":
			if params["input_QueryReference"] != "5C1400CVRO" {
				t.Errorf("missing query reference: %v", params)
			}
			writeJSON(w, http.StatusOK, map[string]string{
				"output_ResponseCode":              "INS-0",
				"output_ResponseTransactionStatus": "Completed",
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	ctx := context.Background()

	name, err := client.Invoke(ctx, domain.ProviderRequest{Operation: domain.OpQueryCustomerName, CustomerMSISDN: "258843330333", ThirdPartyReference: "q1"})
	if err != nil {
		t.Fatalf("query customer: %v", err)
	}
	if name.ResponseCode != domain.CodeOK || name.CustomerName != "J*** D**" {
		t.Fatalf("unexpected response %+v", name)
	}

	status, err := client.Invoke(ctx, domain.ProviderRequest{Operation: domain.OpQueryTransactionStatus, QueryReference: "5C1400CVRO", ThirdPartyReference: "q2"})
	if err != nil {
		t.Fatalf("query transaction: %v", err)
	}
	if status.TransactionStatus != "Completed" {
		t.Fatalf("unexpected response %+v", status)
	}
}

func TestInvokeReversalUsesPUT(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		if r.Method != http.MethodPut || r.URL.Path != "/ipg/v1x/reversal/" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if params["input_TransactionID"] != "MP001" || params["input_SecurityCredential"] != "Mpesa2019" || params["input_ReversalAmount"] != "5.50" {
			t.Errorf("unexpected params %v", params)
		}
		writeJSON(w, http.StatusOK, map[string]string{"output_ResponseCode": "INS-0"})
	})

	resp, err := client.Invoke(context.Background(), domain.ProviderRequest{
		Operation:           domain.OpReversal,
		TransactionID:       "MP001",
		ThirdPartyReference: "rev1",
		Amount:              decimal.NewNullDecimal(decimal.RequireFromString("5.5")),
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.ResponseCode != domain.CodeOK {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestInvokeBusinessErrorIsAResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"output_ResponseCode": "INS-2006",
			"output_ResponseDesc": "Insufficient balance",
		})
	})

	resp, err := client.Invoke(context.Background(), domain.ProviderRequest{Operation: domain.OpB2CPayment, ThirdPartyReference: "x"})
	if err != nil {
		t.Fatalf("business errors must not be transport errors: %v", err)
	}
	if resp.HTTPStatus != http.StatusUnprocessableEntity || resp.ResponseCode != "INS-2006" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestInvokeBreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	})
	ctx := context.Background()
	req := domain.ProviderRequest{Operation: domain.OpC2BPayment, ThirdPartyReference: "x"}

	for i := 0; i < 2; i++ {
		if _, err := client.Invoke(ctx, req); !errors.Is(err, domain.ErrProviderUnavailable) {
			t.Fatalf("call %d: expected ErrProviderUnavailable, got %v", i, err)
		}
	}

	_, err := client.Invoke(ctx, req)
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable from open breaker, got %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("open breaker must short-circuit, gateway saw %d calls", n)
	}
}

func TestNewClientRejectsBadKey(t *testing.T) {
	if _, err := NewClient(config.Provider{PublicKey: "not a key"}); err == nil {
		t.Fatalf("expected error for invalid public key")
	}
}
