package actors

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip06"
	"github.com/sasha-s/go-deadlock"
	"holderguard/engine/library"
)

var currentWallet library.Wallet
var currentWalletMutex = &deadlock.Mutex{}

// MyWallet returns the current Wallet or creates a new one if there isn't one already
func MyWallet() library.Wallet {
	currentWalletMutex.Lock()
	defer currentWalletMutex.Unlock()
	if len(currentWallet.PrivateKey) == 0 {
		//try to restore wallet from disk
		if w, ok := getWalletFromDisk(); ok {
			currentWallet = w
			if len(currentWallet.VerifierAddress) == 0 {
				currentWallet.VerifierAddress = getVerifierAddress(w.PrivateKey)
			}
		} else {
			LogCLI("Generating a new wallet, write down the seed words if you want to keep it", 4)
			currentWallet = makeNewWallet()
			fmt.Printf("\n\n~NEW WALLET~\nPublic Key: %s\nVerifier Address: %s\nPrivate Key: %s\nSeed Words: %s\n\n", currentWallet.Account, currentWallet.VerifierAddress, currentWallet.PrivateKey, currentWallet.SeedWords)
		}
	}
	if err := persistCurrentWallet(); err != nil {
		LogCLI(err.Error(), 0)
	}
	return currentWallet
}

func makeNewWallet() library.Wallet {
	seedWords, err := nip06.GenerateSeedWords()
	if err != nil {
		LogCLI(err.Error(), 0)
	}
	seed := nip06.SeedFromWords(seedWords)
	sk, err := nip06.PrivateKeyFromSeed(seed)
	if err != nil {
		LogCLI(err.Error(), 0)
	}
	return library.Wallet{
		PrivateKey:      sk,
		SeedWords:       seedWords,
		Account:         getPubKey(sk),
		VerifierAddress: getVerifierAddress(sk),
	}
}

// SigningKey returns the wallet key for signing verification documents.
func SigningKey() (*btcec.PrivateKey, error) {
	keyb, err := hex.DecodeString(MyWallet().PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("decoding wallet key: %w", err)
	}
	sk, _ := btcec.PrivKeyFromBytes(keyb)
	return sk, nil
}

func getVerifierAddress(privateKey string) string {
	keyb, err := hex.DecodeString(privateKey)
	if err != nil {
		LogCLI(fmt.Sprintf("Error decoding key from hex: %s\n", err.Error()), 0)
		return ""
	}
	_, pubkey := btcec.PrivKeyFromBytes(keyb)
	return library.AddressFromPubKey(pubkey)
}

func getPubKey(privateKey string) string {
	pubkey, err := nostr.GetPublicKey(privateKey)
	if err != nil {
		LogCLI(fmt.Sprintf("Error deriving public key: %s", err.Error()), 0)
	}
	return pubkey
}

func persistCurrentWallet() error {
	bytes, err := json.Marshal(currentWallet)
	if err != nil {
		return err
	}
	return os.WriteFile(MakeOrGetConfig().GetString("rootDir")+"wallet.dat", bytes, 0600)
}

func getWalletFromDisk() (w library.Wallet, ok bool) {
	file, err := os.ReadFile(MakeOrGetConfig().GetString("rootDir") + "wallet.dat")
	if err != nil {
		LogCLI(fmt.Sprintf("Error getting wallet file: %s", err.Error()), 2)
		return library.Wallet{}, false
	}
	err = json.Unmarshal(file, &w)
	if err != nil {
		LogCLI(fmt.Sprintf("Error parsing wallet file: %s", err.Error()), 3)
		return library.Wallet{}, false
	}
	return w, true
}
