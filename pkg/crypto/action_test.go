package crypto

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestConnectionIDDeterministic(t *testing.T) {
	signer := NewActionSigner(false)
	action := []byte(`{"type":"order","orders":[]}`)

	a := signer.ConnectionID(action, 1000, nil)
	b := signer.ConnectionID(action, 1000, nil)
	if a != b {
		t.Error("same inputs produced different connection ids")
	}

	if c := signer.ConnectionID(action, 1001, nil); c == a {
		t.Error("nonce change did not change connection id")
	}
	if c := signer.ConnectionID([]byte(`{"type":"cancel"}`), 1000, nil); c == a {
		t.Error("action change did not change connection id")
	}

	vault := common.HexToAddress("0x2222222222222222222222222222222222222222")
	if c := signer.ConnectionID(action, 1000, &vault); c == a {
		t.Error("vault flag did not change connection id")
	}
}

func TestActionSignerSource(t *testing.T) {
	if got := NewActionSigner(true).Source(); got != "a" {
		t.Errorf("mainnet Source() = %q, want a", got)
	}
	if got := NewActionSigner(false).Source(); got != "b" {
		t.Errorf("testnet Source() = %q, want b", got)
	}
}

func TestSignActionRSV(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	actions := NewActionSigner(false)

	sig, err := actions.SignAction(signer, []byte(`{"type":"order"}`), 42, nil)
	if err != nil {
		t.Fatalf("SignAction() error: %v", err)
	}
	if !strings.HasPrefix(sig.R, "0x") || !strings.HasPrefix(sig.S, "0x") {
		t.Errorf("r/s not hex prefixed: %q %q", sig.R, sig.S)
	}
	if sig.V != 27 && sig.V != 28 {
		t.Errorf("v = %d, want 27 or 28", sig.V)
	}
}

func TestVerifyActionSignature(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	actions := NewActionSigner(true)
	action := []byte(`{"type":"order","orders":[{"coin":"ETH"}]}`)

	hash, err := actions.HashAgent(actions.ConnectionID(action, 7, nil))
	if err != nil {
		t.Fatalf("HashAgent() error: %v", err)
	}
	raw, err := signer.Sign(hash)
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}

	ok, err := actions.VerifyActionSignature(signer.Address(), action, 7, nil, raw)
	if err != nil {
		t.Fatalf("VerifyActionSignature() error: %v", err)
	}
	if !ok {
		t.Error("valid signature rejected")
	}

	// A different nonce commits to a different connection id.
	ok, err = actions.VerifyActionSignature(signer.Address(), action, 8, nil, raw)
	if err != nil {
		t.Fatalf("VerifyActionSignature() error: %v", err)
	}
	if ok {
		t.Error("signature verified against the wrong nonce")
	}

	other, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	ok, err = actions.VerifyActionSignature(other.Address(), action, 7, nil, raw)
	if err != nil {
		t.Fatalf("VerifyActionSignature() error: %v", err)
	}
	if ok {
		t.Error("signature verified against the wrong address")
	}
}

func TestFromPrivateKeyHexRoundTrip(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	restored, err := FromPrivateKeyHex(signer.PrivateKeyHex())
	if err != nil {
		t.Fatalf("FromPrivateKeyHex() error: %v", err)
	}
	if restored.Address() != signer.Address() {
		t.Errorf("restored address %s != %s", restored.Address(), signer.Address())
	}

	if _, err := FromPrivateKeyHex("not-a-key"); err == nil {
		t.Error("FromPrivateKeyHex accepted garbage")
	}
}
