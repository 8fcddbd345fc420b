// Minimal end-to-end integration test for the Agent Ledger API.
//
// Needs a running API whose OPERATOR_ADDR matches the address derived
// from CLIENT_KEY, so the script can mint its own working balance.
package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/stake-plus/agent-ledger/src/wallet"
)

var (
	baseURL   = getenv("API_URL", "http://localhost:443/v1")
	clientKey = getenv("CLIENT_KEY", strings.Repeat("11", 32))
	agentKey  = getenv("AGENT_KEY", strings.Repeat("22", 32))
	asset     = getenv("ASSET", "AGT")
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	client := mustSigner(clientKey)
	agent := mustSigner(agentKey)

	clientToken := login(client)
	agentToken := login(agent)

	mint(clientToken, client.Address(), 1_000)

	profileAddr := registerAgent(agentToken)
	attest(clientToken, profileAddr, 40)
	checkScore(clientToken, profileAddr, 580)

	escrowID := "smoke-" + uuid.NewString()[:8]
	createEscrow(clientToken, escrowID, agent.Address(), 250)
	release(clientToken, client.Address(), agent.Address(), escrowID)
	checkBalance(agentToken, agent.Address(), 250)

	fmt.Println("✓ all endpoints passed")
}

// ----------------------------- auth

func mustSigner(hexKey string) *wallet.Signer {
	s, err := wallet.NewSignerFromHex(hexKey)
	if err != nil {
		log.Fatalf("signer: %v", err)
	}
	return s
}

func login(s *wallet.Signer) string {
	var ch struct{ Nonce string }
	doJSON("POST", "/auth/challenge", map[string]any{"address": s.Address()}, &ch, http.StatusOK)
	if ch.Nonce == "" {
		log.Fatal("challenge: empty nonce")
	}

	sig, err := s.Sign([]byte(ch.Nonce))
	if err != nil {
		log.Fatalf("sign nonce: %v", err)
	}

	var resp struct{ Token string }
	doJSON("POST", "/auth/verify", map[string]any{
		"address":   s.Address(),
		"signature": hex.EncodeToString(sig),
	}, &resp, http.StatusOK)
	if resp.Token == "" {
		log.Fatal("verify: empty token")
	}
	return resp.Token
}

// ----------------------------- reputation

func registerAgent(tok string) string {
	var resp struct{ Address string }
	doAuth(tok, "POST", "/agents", map[string]any{
		"agentId":     "smoke-agent",
		"metadataUri": "https://example.com/agents/smoke.json",
	}, &resp, http.StatusCreated)
	if resp.Address == "" {
		log.Fatal("agents: empty profile address")
	}
	return resp.Address
}

func attest(tok, profileAddr string, rating int8) {
	doAuth(tok, "POST", "/agents/"+profileAddr+"/attestations", map[string]any{
		"rating":  rating,
		"comment": "integration-test " + uuid.NewString(),
	}, nil, http.StatusCreated)
}

func checkScore(tok, profileAddr string, want uint16) {
	var resp struct{ Score uint16 }
	doAuth(tok, "GET", "/agents/"+profileAddr, nil, &resp, http.StatusOK)
	if resp.Score != want {
		log.Fatalf("agents: score %d, want %d", resp.Score, want)
	}
}

// ----------------------------- escrow

func createEscrow(tok, id, agentAddr string, amount uint64) {
	doAuth(tok, "POST", "/escrows", map[string]any{
		"escrowId":            id,
		"agent":               agentAddr,
		"asset":               asset,
		"amount":              amount,
		"releaseAfterSeconds": 0,
	}, nil, http.StatusCreated)
}

func release(tok, clientAddr, agentAddr, id string) {
	path := fmt.Sprintf("/escrows/%s/%s/%s/release", clientAddr, agentAddr, id)
	var resp struct{ Status string }
	doAuth(tok, "POST", path, nil, &resp, http.StatusOK)
	if resp.Status != "released" {
		log.Fatalf("escrows: status %q after release", resp.Status)
	}
}

func checkBalance(tok, addr string, want uint64) {
	var resp struct{ Amount uint64 }
	doAuth(tok, "GET", "/balances/"+asset+"/"+addr, nil, &resp, http.StatusOK)
	if resp.Amount != want {
		log.Fatalf("balances: %d, want %d", resp.Amount, want)
	}
}

// ----------------------------- admin

func mint(tok, to string, amount uint64) {
	doAuth(tok, "POST", "/admin/mint", map[string]any{
		"asset":  asset,
		"to":     to,
		"amount": amount,
	}, nil, http.StatusOK)
}

// ----------------------------- helpers

func doAuth(token, method, path string, body, out any, want int) {
	doReq(method, path, token, body, out, want)
}

func doJSON(method, path string, body, out any, want int) {
	doReq(method, path, "", body, out, want)
}

func doReq(method, path, token string, body, out any, want int) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			log.Fatalf("%s %s encode: %v", method, path, err)
		}
	}
	req, _ := http.NewRequest(method, baseURL+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	if res.StatusCode != want {
		log.Fatalf("%s %s: want %d got %d", method, path, want, res.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			log.Fatalf("%s %s decode: %v", method, path, err)
		}
	}
}
