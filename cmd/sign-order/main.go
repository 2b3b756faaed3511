package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/uhyunpark/hypergrid/pkg/crypto"
)

// Debug tool: builds a sample order action, signs it the way the bot does,
// and prints the exact payload the exchange endpoint would receive.
func main() {
	var (
		keyHex  = flag.String("key", "", "private key hex (default: generate a fresh one)")
		coin    = flag.String("coin", "ETH", "coin to order")
		px      = flag.String("px", "2500", "limit price")
		sz      = flag.String("sz", "0.05", "order size")
		buy     = flag.Bool("buy", true, "buy side")
		mainnet = flag.Bool("mainnet", false, "sign for mainnet")
	)
	flag.Parse()

	var signer *crypto.Signer
	var err error
	if *keyHex != "" {
		signer, err = crypto.FromPrivateKeyHex(*keyHex)
	} else {
		fmt.Println("Generating new keypair...")
		signer, err = crypto.GenerateKey()
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Address: %s\n", signer.Address().Hex())
	if *keyHex == "" {
		fmt.Printf("Private Key: %s (KEEP SECRET!)\n", signer.PrivateKeyHex())
	}
	fmt.Println()

	action := map[string]interface{}{
		"type": "order",
		"orders": []map[string]interface{}{{
			"coin":     *coin,
			"is_buy":   *buy,
			"sz":       *sz,
			"limit_px": *px,
			"order_type": map[string]interface{}{
				"limit": map[string]string{"tif": "Gtc"},
			},
			"reduce_only": false,
		}},
		"grouping": "na",
	}

	actionBytes, err := json.Marshal(action)
	if err != nil {
		fmt.Printf("Error marshaling action: %v\n", err)
		os.Exit(1)
	}

	nonce := uint64(time.Now().UnixMilli())
	actions := crypto.NewActionSigner(*mainnet)
	sig, err := actions.SignAction(signer, actionBytes, nonce, nil)
	if err != nil {
		fmt.Printf("Error signing: %v\n", err)
		os.Exit(1)
	}

	payload := map[string]interface{}{
		"action":    json.RawMessage(actionBytes),
		"nonce":     nonce,
		"signature": sig,
	}
	payloadJSON, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling payload: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Signed Exchange Request (JSON):")
	fmt.Println(string(payloadJSON))
	fmt.Println()

	fmt.Println("Verifying signature...")
	valid, err := verify(actions, signer, actionBytes, nonce)
	if err != nil {
		fmt.Printf("Error verifying: %v\n", err)
		os.Exit(1)
	}
	if !valid {
		fmt.Println("Signature INVALID")
		os.Exit(1)
	}
	fmt.Println("Signature VALID")
	fmt.Printf("  Signer: %s\n", signer.Address().Hex())
}

func mustAgentHash(actions *crypto.ActionSigner, actionBytes []byte, nonce uint64) []byte {
	hash, err := actions.HashAgent(actions.ConnectionID(actionBytes, nonce, nil))
	if err != nil {
		fmt.Printf("Error hashing agent: %v\n", err)
		os.Exit(1)
	}
	return hash
}

func verify(actions *crypto.ActionSigner, signer *crypto.Signer, actionBytes []byte, nonce uint64) (bool, error) {
	sig, err := signer.Sign(mustAgentHash(actions, actionBytes, nonce))
	if err != nil {
		return false, err
	}
	return actions.VerifyActionSignature(signer.Address(), actionBytes, nonce, nil, sig)
}
