package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/toursecure/digitalid-deployer/lib/config"
	"github.com/toursecure/digitalid-deployer/lib/logging"
)

// Env is shared by all commands. Config and Log are populated by Load,
// which the root command runs before any subcommand.
type Env struct {
	Viper  *viper.Viper
	Config *config.Config
	Log    zerolog.Logger
	Out    io.Writer
	Err    io.Writer
}

func NewEnv(out, errOut io.Writer) *Env {
	return &Env{
		Viper: config.NewViper(),
		Log:   zerolog.Nop(),
		Out:   out,
		Err:   errOut,
	}
}

func (e *Env) Load() error {
	if err := loadEnvFile(e.Viper.GetString(config.EnvFile)); err != nil {
		return err
	}
	if err := config.ReadConfigFile(e.Viper); err != nil {
		return err
	}
	cfg, err := config.Load(e.Viper)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	log, err := logging.New(e.Err, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	e.Config, e.Log = cfg, log
	return nil
}

// loadEnvFile exports the variables of a dotenv file without overriding
// ones already set. A missing file is fine.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
