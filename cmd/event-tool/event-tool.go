package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/nbd-wtf/go-nostr"
	"github.com/spf13/viper"
	"golang.org/x/exp/maps"
	"holderguard/engine/actors"
	"holderguard/engine/library"
	"holderguard/messaging/relays"
	"holderguard/state/guardians"
)

// requestKinds maps the command line name of a request to its event kind and
// a constructor for the request it carries.
var requestKinds = map[string]struct {
	kind int
	new  func() interface{}
}{
	"create-holder":   {actors.KindCreateHolder, func() interface{} { return &guardians.CreateHolderRequest{} }},
	"add-guardian":    {actors.KindAddGuardian, func() interface{} { return &guardians.AddGuardianRequest{} }},
	"remove-guardian": {actors.KindRemoveGuardian, func() interface{} { return &guardians.RemoveGuardianRequest{} }},
	"update-guardian": {actors.KindUpdateGuardian, func() interface{} { return &guardians.UpdateGuardianRequest{} }},
	"set-login":       {actors.KindSetLoginGuardian, func() interface{} { return &guardians.LoginGuardianRequest{} }},
	"unset-login":     {actors.KindUnsetLoginGuardian, func() interface{} { return &guardians.LoginGuardianRequest{} }},
	"recover":         {actors.KindSocialRecovery, func() interface{} { return &guardians.SocialRecoveryRequest{} }},
	"set-policy":      {actors.KindSetPolicy, func() interface{} { return &guardians.SetPolicyRequest{} }},
}

type Send struct {
	Kind   string `short:"k" long:"kind" required:"true" description:"request name: create-holder, add-guardian, remove-guardian, update-guardian, set-login, unset-login, recover, set-policy"`
	File   string `short:"f" long:"file" default:"-" description:"JSON request, - reads stdin"`
	Holder string `long:"holder" description:"holder ID to tag the event with"`
}

type History struct {
	Holder  string        `long:"holder" description:"only requests tagged with this holder"`
	Since   time.Duration `long:"since" default:"0s" description:"only requests younger than this, 0 for all"`
	Timeout time.Duration `long:"timeout" default:"10s" description:"how long to wait for relays"`
}

var send Send
var history History

var parser = flags.NewParser(nil, flags.Default)

func main() {
	conf := viper.New()
	// Now we initialise this configuration with basic settings that are required on startup.
	actors.InitConfig(conf)
	// make the config accessible globally
	actors.SetConfig(conf)

	parser.AddCommand("send",
		"sign and publish a request",
		"The send command wraps a JSON request in an event signed by the local wallet and publishes it to relaysMust",
		&send)
	parser.AddCommand("history",
		"list request events",
		"The history command prints the request events stored by relaysMust, oldest first",
		&history)

	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}
}

func (x *Send) Execute(args []string) error {
	k, ok := requestKinds[x.Kind]
	if !ok {
		names := maps.Keys(requestKinds)
		sort.Strings(names)
		return fmt.Errorf("unknown request %q, use one of %v", x.Kind, names)
	}
	raw, err := readInput(x.File)
	if err != nil {
		return err
	}
	// decoding into the request type catches typos before the engine does
	req := k.new()
	if err = json.Unmarshal(raw, req); err != nil {
		return fmt.Errorf("request is not a valid %s: %w", x.Kind, err)
	}
	e, err := actors.SignRequest(k.kind, x.Holder, req)
	if err != nil {
		return err
	}
	settings := actors.EngineSettings(actors.MakeOrGetConfig())
	if settings.DoNotPublish {
		return printEvent(e)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if n := relays.PublishToRelays(ctx, []nostr.Event{e}, settings.Relays); n == 0 {
		return fmt.Errorf("no relay accepted %s", e.ID)
	}
	fmt.Println(e.ID)
	return nil
}

func (x *History) Execute(args []string) error {
	var since time.Time
	if x.Since > 0 {
		since = time.Now().Add(-x.Since)
	}
	settings := actors.EngineSettings(actors.MakeOrGetConfig())
	events := relays.FetchRequests(context.Background(), settings.Relays, relays.RequestFilter(x.Holder, since), x.Timeout)
	for _, e := range events {
		if err := printEvent(e); err != nil {
			return err
		}
	}
	library.LogCLI(fmt.Sprintf("%d request events", len(events)), 4)
	return nil
}

func readInput(file string) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(file)
}

func printEvent(e nostr.Event) error {
	b, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
