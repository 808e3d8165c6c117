package actors

import (
	"os"
	"time"

	"github.com/spf13/viper"
	"holderguard/engine/library"
)

// Request event kinds. Each request is a signed nostr event with the JSON
// encoded request as content.
const (
	KindCreateHolder       = 645000
	KindAddGuardian        = 645002
	KindRemoveGuardian     = 645004
	KindUpdateGuardian     = 645006
	KindSetLoginGuardian   = 645008
	KindUnsetLoginGuardian = 645010
	KindSocialRecovery     = 645012
	KindSetPolicy          = 645014
)

// RequestKinds lists every kind the engine subscribes to.
var RequestKinds = []int{
	KindCreateHolder,
	KindAddGuardian,
	KindRemoveGuardian,
	KindUpdateGuardian,
	KindSetLoginGuardian,
	KindUnsetLoginGuardian,
	KindSocialRecovery,
	KindSetPolicy,
}

// InitConfig sets up our Viper config object
func InitConfig(config *viper.Viper) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		library.LogCLI(err.Error(), 0)
	}
	config.SetDefault("rootDir", homeDir+"/holderguard/")
	config.SetConfigType("yaml")
	config.SetConfigFile(config.GetString("rootDir") + "config.yaml")
	err = config.ReadInConfig()
	if err != nil {
		library.LogCLI(err.Error(), 4)
	}
	config.SetDefault("flatFileDir", "data/")
	config.SetDefault("logLevel", 4)
	config.SetDefault("doNotPublish", false)
	config.SetDefault("chainId", int64(9992731))
	config.SetDefault("homeChainId", int64(9992731))
	config.SetDefault("attestationValidity", "1h")
	// legacy documents carry no operation tag or chain, they are only ever
	// accepted for holder creation and recovery
	config.SetDefault("acceptLegacyDocuments", false)
	config.SetDefault("checkOperationDetails", false)
	config.SetDefault("relaysMust", []string{"wss://relay.damus.io"})
	// Create our working directory and config file if not exist
	initRootDir(config)
	touch(config.GetString("rootDir") + "config.yaml")
	err = config.WriteConfig()
	if err != nil {
		library.LogCLI(err.Error(), 0)
	}
	library.SetLogLevel(config.GetInt("logLevel"))
}

func initRootDir(conf *viper.Viper) {
	_, err := os.Stat(conf.GetString("rootDir"))
	if os.IsNotExist(err) {
		err = os.MkdirAll(conf.GetString("rootDir"), 0755)
		if err != nil {
			library.LogCLI(err, 0)
		}
	}
}

func touch(path string) {
	f, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0644)
	if err != nil {
		library.LogCLI(err, 1)
		return
	}
	f.Close()
}

// Settings are the typed engine options read from the config.
type Settings struct {
	ChainID               library.ChainID
	HomeChainID           library.ChainID
	AttestationValidity   time.Duration
	AcceptLegacyDocuments bool
	CheckOperationDetails bool
	Relays                []string
	DoNotPublish          bool
}

func EngineSettings(conf *viper.Viper) Settings {
	return Settings{
		ChainID:               conf.GetInt64("chainId"),
		HomeChainID:           conf.GetInt64("homeChainId"),
		AttestationValidity:   conf.GetDuration("attestationValidity"),
		AcceptLegacyDocuments: conf.GetBool("acceptLegacyDocuments"),
		CheckOperationDetails: conf.GetBool("checkOperationDetails"),
		Relays:                conf.GetStringSlice("relaysMust"),
		DoNotPublish:          conf.GetBool("doNotPublish"),
	}
}

var conf *viper.Viper

func MakeOrGetConfig() *viper.Viper {
	return conf
}

func SetConfig(config *viper.Viper) {
	conf = config
}

func LogCLI(message interface{}, level int) {
	library.LogCLI(message, level)
}
