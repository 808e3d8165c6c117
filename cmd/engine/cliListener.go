package main

import (
	"encoding/json"
	"fmt"

	"github.com/eiannone/keyboard"
	"holderguard/engine/actors"
	"holderguard/messaging/eventconductor"
	"holderguard/state/strategy"
)

// cliListener is a cheap and nasty way to speed up development cycles. It listens for keypresses and executes commands.
func cliListener(interrupt chan struct{}, conductor *eventconductor.Conductor) {
	fmt.Println("VIEW CURRENT STATE:\nh: holders\nv: verifier directory\nr: consumed documents\nw: current wallet\nc: engine config\nq: to quit\nSee cliListener.go for more")
	for {
		r, k, err := keyboard.GetSingleKey()
		if err != nil {
			actors.LogCLI(err.Error(), 1)
			return
		}
		str := string(r)
		switch str {
		default:
			if k == keyboard.KeyEnter {
				fmt.Println("\n-----------------------------------")
				break
			}
			if r == 0 {
				break
			}
			fmt.Println("Key " + str + " is not bound to any command. See main.cliListener for more details.")
		case "h":
			for id, h := range conductor.State().Holders {
				fmt.Printf("\n--------- Holder: %s -----------\n", id)
				policy := "default: " + strategy.Default().String()
				if h.Policy != nil {
					policy = h.Policy.String()
				}
				fmt.Printf("Policy: %s\nCheck Operation Details: %v\nManagers: %v\n", policy, h.CheckOperationDetails, h.Managers)
				for _, g := range h.Guardians {
					fmt.Printf("Guardian: %s Login: %v Salt: %s\n", g.Key(), g.IsLoginGuardian, g.Salt)
				}
			}
		case "v":
			b, _ := json.MarshalIndent(conductor.State().Verifiers, "", "  ")
			fmt.Println(string(b))
		case "r":
			state := conductor.State()
			fmt.Printf("%d consumed documents, state hash %s\n", len(state.Replay), state.ReplayHash)
		case "q":
			close(interrupt)
			return
		case "w":
			fmt.Printf("Current Wallet: \n%s\nVerifier Address: %s\n", actors.MyWallet().Account, actors.MyWallet().VerifierAddress)
		case "c":
			fmt.Println("CURRENT CONFIG")
			for k, v := range actors.MakeOrGetConfig().AllSettings() {
				fmt.Printf("\nKey: %s; Value: %v\n", k, v)
			}
		}
	}
}
