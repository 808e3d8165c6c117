package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/spf13/viper"
	"holderguard/engine/actors"
	"holderguard/engine/library"
	"holderguard/messaging/eventcatcher"
	"holderguard/messaging/eventconductor"
	"holderguard/state/attestation"
	"holderguard/state/guardians"
	"holderguard/state/replay"
	"holderguard/state/verifiers"
)

// snapshot is one db persisted under <rootDir>/<flatFileDir>/<mind>/<db>.dat
type snapshot struct {
	mind, db string
	save     func(io.Writer) error
	load     func(io.Reader) error
}

func main() {
	// Various aspect of this application require global and local settings. To keep things
	// clean and tidy we put these settings in a Viper configuration.
	conf := viper.New()

	// Now we initialise this configuration with basic settings that are required on startup.
	actors.InitConfig(conf)
	// make the config accessible globally
	actors.SetConfig(conf)
	settings := actors.EngineSettings(conf)
	library.LogCLI(fmt.Sprintf("engine for chain %d, verifier address %s", settings.ChainID, actors.MyWallet().VerifierAddress), 4)

	directory := verifiers.NewDirectory()
	consumed := replay.NewStore()
	registry := guardians.NewRegistry(&attestation.Verifier{
		Directory:    directory,
		ChainID:      settings.ChainID,
		HomeChainID:  settings.HomeChainID,
		Validity:     settings.AttestationValidity,
		AcceptLegacy: settings.AcceptLegacyDocuments,
	}, consumed)
	conductor := eventconductor.New(registry, consumed, directory)
	conductor.CheckOperationDetails = settings.CheckOperationDetails

	snapshots := []snapshot{
		{"verifiers", "directory", directory.Save, directory.Restore},
		{"replay", "consumed", consumed.Save, consumed.Restore},
		{"guardians", "holders", registry.Save, registry.Restore},
		{"conductor", "handled", conductor.Save, conductor.Restore},
	}
	for _, s := range snapshots {
		if err := actors.Restore(s.mind, s.db, s.load); err != nil {
			library.LogCLI(err.Error(), 0)
		}
	}
	library.LogCLI(fmt.Sprintf("%d holders, %d verifiers loaded", len(registry.GetMap()), len(directory.GetMap())), 4)

	terminateChan := make(chan struct{})
	actors.SetTerminateChan(terminateChan)
	eventChan := make(chan nostr.Event)
	eoseChan := make(chan bool)
	conductor.Start(eventChan, eoseChan)
	eventcatcher.Start(eventChan, eoseChan, time.Time{})

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	quit := make(chan struct{})
	go cliListener(quit, conductor)
	select {
	case <-interrupt:
		actors.Shutdown()
	case <-quit:
		actors.Shutdown()
	case <-terminateChan:
		actors.GetWaitGroup().Wait()
	}
	for _, s := range snapshots {
		if err := actors.Write(s.mind, s.db, s.save); err != nil {
			library.LogCLI(err.Error(), 1)
		}
	}
	fmt.Println("bye")
}
