package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// viper keys; every key is also readable from the environment with
// dashes replaced by underscores (rpc-url -> RPC_URL).
const (
	ConfigFile       = "config"
	EnvFile          = "env-file"
	Network          = "network"
	RpcUrl           = "rpc-url"
	ChainId          = "chain-id"
	PrivateKey       = "private-key"
	Mnemonic         = "mnemonic"
	MnemonicCount    = "mnemonic-count"
	Keystore         = "keystore"
	KeystorePassword = "keystore-password"
	ArtifactsDir     = "artifacts"
	ContractName     = "contract"
	GasLimit         = "gas-limit"
	GasPriceBump     = "gas-price-bump"
	Confirmations    = "confirmations"
	ConfirmTimeout   = "confirm-timeout"
	PollInterval     = "poll-interval"
	RecordPath       = "record"
	LogLevel         = "log-level"
	LogFormat        = "log-format"
)

const (
	DefaultNetwork        = "localhost"
	DefaultRpcUrl         = "http://127.0.0.1:8545"
	DefaultContractName   = "TourSecureDigitalID"
	DefaultArtifactsDir   = "artifacts"
	DefaultConfirmTimeout = 5 * time.Minute
	DefaultPollInterval   = time.Second
)

const (
	LogFormatAuto    = "auto"
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

type Config struct {
	Network string
	RpcUrl  string
	// ChainId is the expected chain id; zero accepts whatever the node reports.
	ChainId int64

	PrivateKeys      []string
	Mnemonic         string
	MnemonicCount    int
	KeystorePath     string
	KeystorePassword string

	ArtifactsDir string
	ContractName string

	GasLimit       uint64
	GasPriceBump   *big.Int
	Confirmations  uint64
	ConfirmTimeout time.Duration
	PollInterval   time.Duration

	RecordPath string
	LogLevel   string
	LogFormat  string
}

// RegisterFlags declares every configuration key on fs. Keys that a network
// entry may provide have no flag default so the entry can fill them in.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(ConfigFile, "", "config file (yaml, toml or json) with a networks map")
	fs.String(EnvFile, ".env", "dotenv file loaded into the environment if present")
	fs.String(Network, DefaultNetwork, "network entry to use from the config file")
	fs.String(RpcUrl, "", "JSON-RPC endpoint (default "+DefaultRpcUrl+")")
	fs.Int64(ChainId, 0, "expected chain id, 0 accepts the node's")
	fs.String(PrivateKey, "", "comma-separated hex private keys, first one deploys")
	fs.String(Mnemonic, "", "BIP-39 mnemonic to derive signers from")
	fs.Int(MnemonicCount, 0, "number of accounts derived from the mnemonic (default 1)")
	fs.String(Keystore, "", "encrypted keystore file")
	fs.String(KeystorePassword, "", "keystore password")
	fs.String(ArtifactsDir, DefaultArtifactsDir, "compiled artifacts directory (hardhat artifacts/ or foundry out/)")
	fs.String(ContractName, DefaultContractName, "contract artifact to deploy")
	fs.Uint64(GasLimit, 0, "deployment gas limit, 0 estimates")
	fs.String(GasPriceBump, "0", "wei added to the suggested gas price on legacy chains")
	fs.Uint64(Confirmations, 1, "blocks to wait for after inclusion")
	fs.Duration(ConfirmTimeout, DefaultConfirmTimeout, "confirmation timeout, 0 waits until interrupted")
	fs.Duration(PollInterval, DefaultPollInterval, "receipt polling interval")
	fs.String(RecordPath, "", "write a JSON deployment record to this path")
	fs.String(LogLevel, "info", "log level")
	fs.String(LogFormat, LogFormatAuto, "log format: auto, console or json")
}

// NewViper returns a viper instance reading env vars for every key.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// ReadConfigFile loads the file named by the config key, if any.
func ReadConfigFile(v *viper.Viper) error {
	path := v.GetString(ConfigFile)
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Load builds a Config from v. Flags and env vars win over the selected
// network entry, which wins over the built-in defaults.
func Load(v *viper.Viper) (*Config, error) {
	network := v.GetString(Network)
	if network == "" {
		network = DefaultNetwork
	}
	entry := v.Sub("networks." + network)
	if entry == nil {
		entry = viper.New()
	}

	cfg := &Config{
		Network:          network,
		RpcUrl:           firstString(v.GetString(RpcUrl), entry.GetString("url"), DefaultRpcUrl),
		ChainId:          v.GetInt64(ChainId),
		Mnemonic:         firstString(v.GetString(Mnemonic), entry.GetString("mnemonic")),
		MnemonicCount:    v.GetInt(MnemonicCount),
		KeystorePath:     firstString(v.GetString(Keystore), entry.GetString("keystore")),
		KeystorePassword: v.GetString(KeystorePassword),
		ArtifactsDir:     firstString(v.GetString(ArtifactsDir), DefaultArtifactsDir),
		ContractName:     firstString(v.GetString(ContractName), DefaultContractName),
		GasLimit:         v.GetUint64(GasLimit),
		Confirmations:    v.GetUint64(Confirmations),
		ConfirmTimeout:   v.GetDuration(ConfirmTimeout),
		PollInterval:     v.GetDuration(PollInterval),
		RecordPath:       v.GetString(RecordPath),
		LogLevel:         firstString(v.GetString(LogLevel), "info"),
		LogFormat:        firstString(v.GetString(LogFormat), LogFormatAuto),
	}
	if cfg.ChainId == 0 {
		cfg.ChainId = entry.GetInt64("chain-id")
	}
	if cfg.MnemonicCount == 0 {
		cfg.MnemonicCount = entry.GetInt("mnemonic-count")
	}
	if cfg.MnemonicCount == 0 {
		cfg.MnemonicCount = 1
	}
	if !v.IsSet(Confirmations) {
		cfg.Confirmations = 1
	}
	if !v.IsSet(PollInterval) {
		cfg.PollInterval = DefaultPollInterval
	}
	if !v.IsSet(ConfirmTimeout) {
		cfg.ConfirmTimeout = DefaultConfirmTimeout
	}

	if keys := splitCSV(v.GetString(PrivateKey)); len(keys) > 0 {
		cfg.PrivateKeys = keys
	} else {
		cfg.PrivateKeys = entry.GetStringSlice("accounts")
	}

	var result *multierror.Error
	bump, ok := new(big.Int).SetString(firstString(v.GetString(GasPriceBump), "0"), 10)
	if !ok {
		result = multierror.Append(result, fmt.Errorf("%s: %q is not a decimal wei amount", GasPriceBump, v.GetString(GasPriceBump)))
		bump = new(big.Int)
	}
	cfg.GasPriceBump = bump

	if err := cfg.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once. Missing credentials are not
// an error here: an empty signer set is reported when a signer is needed.
func (c *Config) Validate() error {
	var result *multierror.Error
	if c.RpcUrl == "" {
		result = multierror.Append(result, fmt.Errorf("%s must not be empty", RpcUrl))
	}
	if c.ChainId < 0 {
		result = multierror.Append(result, fmt.Errorf("%s must not be negative", ChainId))
	}
	if c.ContractName == "" {
		result = multierror.Append(result, fmt.Errorf("%s must not be empty", ContractName))
	}
	if c.Mnemonic != "" && c.MnemonicCount < 1 {
		result = multierror.Append(result, fmt.Errorf("%s must be at least 1", MnemonicCount))
	}
	if c.Confirmations < 1 {
		result = multierror.Append(result, fmt.Errorf("%s must be at least 1", Confirmations))
	}
	if c.ConfirmTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("%s must not be negative", ConfirmTimeout))
	}
	if c.PollInterval <= 0 {
		result = multierror.Append(result, fmt.Errorf("%s must be positive", PollInterval))
	}
	if c.GasPriceBump != nil && c.GasPriceBump.Sign() < 0 {
		result = multierror.Append(result, fmt.Errorf("%s must not be negative", GasPriceBump))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		result = multierror.Append(result, fmt.Errorf("%s: %w", LogLevel, err))
	}
	switch c.LogFormat {
	case LogFormatAuto, LogFormatConsole, LogFormatJSON:
	default:
		result = multierror.Append(result, fmt.Errorf("%s: unknown format %q", LogFormat, c.LogFormat))
	}
	return result.ErrorOrNil()
}

func firstString(values ...string) string {
	for _, s := range values {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
