package library

// Wallet is a local secp256k1 key. Account is the nostr (x-only) pubkey used to
// sign request events, VerifierAddress is the base58check address recovered
// from verification document signatures.
type Wallet struct {
	PrivateKey      string
	SeedWords       string
	Account         Account
	VerifierAddress string
}

// Account is a hex encoded nostr pubkey. Holder managers are Accounts.
type Account = string

type Sha256 = string

// HolderID is the content hash that identifies a holder.
type HolderID = Sha256

type ChainID = int64
