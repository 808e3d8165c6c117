package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/spf13/viper"
	"holderguard/engine/actors"
	"holderguard/engine/library"
	"holderguard/state/attestation"
	"holderguard/state/guardians"
	"holderguard/state/identity"
	"holderguard/state/strategy"
	"holderguard/state/verifiers"
)

type Address struct{}

type Sign struct {
	Type       string `short:"t" long:"type" required:"true" description:"identity type, name or ordinal"`
	Identifier string `short:"i" long:"identifier" required:"true" description:"the identifier the holder proved control of, normalized before hashing"`
	Operation  string `short:"o" long:"op" required:"true" description:"operation the document authorizes, name or ordinal"`
	VerifierID string `long:"verifier-id" required:"true" description:"ID this verifier is registered under"`
	Salt       string `long:"salt" description:"guardian salt, random when empty"`
	Chain      int64  `long:"chain" description:"target chain ID, chainId from the config when 0"`
	Details    string `long:"details" description:"operation details hash, see the details command"`
}

type Details struct {
	Holder         string `long:"holder" required:"true" description:"holder ID"`
	Type           string `short:"t" long:"type" description:"identity type of the target guardian"`
	Identifier     string `short:"i" long:"identifier" description:"identifier of the target guardian"`
	VerifierID     string `long:"verifier-id" description:"verifier ID of the target guardian"`
	NextVerifierID string `long:"next-verifier-id" description:"UpdateGuardian: the verifier the guardian moves to"`
	Manager        string `long:"manager" description:"SocialRecovery: the manager to add"`
	PolicyFile     string `long:"policy-file" description:"SetPolicy: JSON policy, - for the default policy"`
}

type Register struct {
	ID        string   `long:"id" description:"verifier ID, sha256 of the name when empty"`
	Name      string   `long:"name" required:"true" description:"display name"`
	Addresses []string `short:"a" long:"address" description:"signing address, repeatable, the wallet address when none given"`
}

var address Address
var sign Sign
var details Details
var register Register

var parser = flags.NewParser(nil, flags.Default)

func main() {
	conf := viper.New()
	// Now we initialise this configuration with basic settings that are required on startup.
	actors.InitConfig(conf)
	// make the config accessible globally
	actors.SetConfig(conf)

	parser.AddCommand("address",
		"print the signing address",
		"The address command prints the address verification documents signed by this wallet recover to",
		&address)
	parser.AddCommand("sign",
		"sign a verification document",
		"The sign command produces the approval JSON for an identity whose control has been checked out of band",
		&sign)
	parser.AddCommand("details",
		"compute an operation details hash",
		"The details command prints the hash a document must carry for holders that check operation details",
		&details)
	parser.AddCommand("register",
		"add a verifier to the local directory",
		"The register command upserts a verifier into the directory snapshot. Run it while the engine is stopped",
		&register)

	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}
}

func (x *Address) Execute(args []string) error {
	fmt.Println(actors.MyWallet().VerifierAddress)
	return nil
}

func (x *Sign) Execute(args []string) error {
	t, err := identity.ParseType(x.Type)
	if err != nil {
		return err
	}
	op, err := attestation.ParseOperation(x.Operation)
	if err != nil {
		return err
	}
	if !library.IsSha256(x.VerifierID) {
		return fmt.Errorf("invalid verifier ID %q", x.VerifierID)
	}
	if len(x.Details) > 0 && !library.IsSha256(x.Details) {
		return fmt.Errorf("invalid details hash %q", x.Details)
	}
	salt := x.Salt
	if len(salt) == 0 {
		if salt, err = randomSalt(); err != nil {
			return err
		}
	}
	chain := x.Chain
	if chain == 0 {
		chain = actors.EngineSettings(actors.MakeOrGetConfig()).ChainID
	}
	key, err := actors.SigningKey()
	if err != nil {
		return err
	}
	d := attestation.NewDocument(t, identity.HashIdentifier(t, x.Identifier), time.Now().Unix(), salt, op, chain)
	d.DetailsHash = x.Details
	a, err := attestation.Attest(d, x.VerifierID, key)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func (x *Details) Execute(args []string) error {
	h, err := x.hash()
	if err != nil {
		return err
	}
	fmt.Println(h)
	return nil
}

// hash picks the details form from the flags that are set.
func (x *Details) hash() (library.Sha256, error) {
	if !library.IsSha256(x.Holder) {
		return "", fmt.Errorf("invalid holder ID %q", x.Holder)
	}
	switch {
	case len(x.Manager) > 0:
		return guardians.RecoveryDetails(x.Holder, x.Manager), nil
	case x.PolicyFile == "-":
		return guardians.PolicyDetails(x.Holder, nil)
	case len(x.PolicyFile) > 0:
		raw, err := os.ReadFile(x.PolicyFile)
		if err != nil {
			return "", err
		}
		var p strategy.Node
		if err = json.Unmarshal(raw, &p); err != nil {
			return "", err
		}
		return guardians.PolicyDetails(x.Holder, &p)
	}
	t, err := identity.ParseType(x.Type)
	if err != nil {
		return "", err
	}
	k := identity.Key{Type: t, IdentifierHash: identity.HashIdentifier(t, x.Identifier), VerifierID: x.VerifierID}
	if err = k.Validate(); err != nil {
		return "", err
	}
	if len(x.NextVerifierID) > 0 {
		next := k
		next.VerifierID = x.NextVerifierID
		return guardians.UpdateDetails(x.Holder, k, next), nil
	}
	return guardians.GuardianDetails(x.Holder, k), nil
}

func (x *Register) Execute(args []string) error {
	v := verifiers.Verifier{ID: x.ID, Name: x.Name, Addresses: x.Addresses}
	if len(v.ID) == 0 {
		v.ID = library.Sha256Sum(x.Name)
	}
	if len(v.Addresses) == 0 {
		v.Addresses = []string{actors.MyWallet().VerifierAddress}
	}
	directory := verifiers.NewDirectory()
	if err := actors.Restore("verifiers", "directory", directory.Restore); err != nil {
		return err
	}
	if err := directory.Upsert(v); err != nil {
		return err
	}
	if err := actors.Write("verifiers", "directory", directory.Save); err != nil {
		return err
	}
	fmt.Println(v.ID)
	return nil
}

func randomSalt() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
