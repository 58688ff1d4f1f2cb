// Package registry persists users and the credential triples minted for
// them at creation. Credentials are immutable for the user's lifetime with
// one exception: the XRP triple may be replaced wholesale (legacy seed
// migration).
package registry

import "time"

// User holds one account and its per-chain credentials. Secret material is
// persisted here; HTTP handlers expose users through a response type that
// omits it.
type User struct {
	ID                 uint64    `json:"id"`
	Username           string    `json:"username"`
	EvmAddress         string    `json:"evmAddress,omitempty"`
	EvmPrivateKeyHex   string    `json:"evmPrivateKeyHex,omitempty"`
	XrpAddress         string    `json:"xrpAddress,omitempty"`
	XrpSeedHex         string    `json:"xrpSeedHex,omitempty"`
	SolanaPublicKey    string    `json:"solanaPublicKey,omitempty"`
	SolanaSecretKeyB64 string    `json:"solanaSecretKeyB64,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Addresses returns the user's non-empty chain addresses, used to gather
// received entries across all three ledgers.
func (u *User) Addresses() []string {
	var addrs []string
	for _, a := range []string{u.EvmAddress, u.XrpAddress, u.SolanaPublicKey} {
		if a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs
}
