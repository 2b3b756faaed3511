package crypto

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"golang.org/x/crypto/sha3"
)

// ActionDomain is the EIP-712 domain the venue verifies action signatures
// against. Chain id 1337 regardless of network; mainnet vs testnet is encoded
// in the agent source instead.
type ActionDomain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// DefaultActionDomain returns the domain used by the exchange endpoint
func DefaultActionDomain() ActionDomain {
	return ActionDomain{
		Name:              "Exchange",
		Version:           "1",
		ChainID:           big.NewInt(1337),
		VerifyingContract: common.Address{},
	}
}

// RSV is a split signature in the venue's wire format
type RSV struct {
	R string `json:"r"`
	S string `json:"s"`
	V uint8  `json:"v"`
}

// ActionSigner produces EIP-712 agent signatures over serialized exchange
// actions. The venue does not verify the action fields directly; it verifies
// an Agent{source, connectionId} struct where connectionId commits to the
// serialized action, the nonce, and an optional vault address.
type ActionSigner struct {
	domain  ActionDomain
	mainnet bool
}

// NewActionSigner creates a signer for the given network
func NewActionSigner(mainnet bool) *ActionSigner {
	return &ActionSigner{domain: DefaultActionDomain(), mainnet: mainnet}
}

// Source returns the agent source string: "a" for mainnet, "b" for testnet
func (a *ActionSigner) Source() string {
	if a.mainnet {
		return "a"
	}
	return "b"
}

// ConnectionID computes keccak256(action || nonce_be8 || vaultFlag) — the
// 32-byte commitment signed inside the Agent struct.
func (a *ActionSigner) ConnectionID(actionBytes []byte, nonce uint64, vault *common.Address) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(actionBytes)

	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], nonce)
	h.Write(nonceBytes[:])

	if vault == nil {
		h.Write([]byte{0x00})
	} else {
		h.Write([]byte{0x01})
		h.Write(vault.Bytes())
	}

	var out [32]byte
	h.Sum(out[:0])
	return out
}

// HashAgent hashes the Agent typed data per EIP-712
func (a *ActionSigner) HashAgent(connectionID [32]byte) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Agent": []apitypes.Type{
				{Name: "source", Type: "string"},
				{Name: "connectionId", Type: "bytes32"},
			},
		},
		PrimaryType: "Agent",
		Domain: apitypes.TypedDataDomain{
			Name:              a.domain.Name,
			Version:           a.domain.Version,
			ChainId:           (*math.HexOrDecimal256)(a.domain.ChainID),
			VerifyingContract: a.domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"source":       a.Source(),
			"connectionId": connectionID[:],
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	typedDataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	// Final digest: keccak256("\x19\x01" || domainSeparator || typedDataHash)
	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(typedDataHash)))
	digest := ethcrypto.Keccak256Hash(rawData)

	return digest.Bytes(), nil
}

// SignAction signs a serialized action and returns the split signature the
// exchange endpoint expects.
func (a *ActionSigner) SignAction(signer *Signer, actionBytes []byte, nonce uint64, vault *common.Address) (RSV, error) {
	connectionID := a.ConnectionID(actionBytes, nonce, vault)

	hash, err := a.HashAgent(connectionID)
	if err != nil {
		return RSV{}, fmt.Errorf("failed to hash agent: %w", err)
	}

	signature, err := signer.Sign(hash)
	if err != nil {
		return RSV{}, fmt.Errorf("failed to sign action: %w", err)
	}

	r, s, v, err := SignatureToRSV(signature)
	if err != nil {
		return RSV{}, err
	}

	return RSV{
		R: "0x" + r.Text(16),
		S: "0x" + s.Text(16),
		V: v,
	}, nil
}

// VerifyActionSignature checks that sig was produced by owner over the given
// action. Used by tests and the sign-order debug tool.
func (a *ActionSigner) VerifyActionSignature(owner common.Address, actionBytes []byte, nonce uint64, vault *common.Address, signature []byte) (bool, error) {
	connectionID := a.ConnectionID(actionBytes, nonce, vault)

	hash, err := a.HashAgent(connectionID)
	if err != nil {
		return false, err
	}

	recovered, err := RecoverAddress(hash, signature)
	if err != nil {
		return false, err
	}

	return recovered == owner, nil
}
