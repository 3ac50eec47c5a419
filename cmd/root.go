package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nzsystems/rezume/internal/session"
)

const (
	app = "rezume"
)

type Config struct {
	APIURL       string        `mapstructure:"api-url"`
	Email        string        `mapstructure:"email"`
	PasswordFile string        `mapstructure:"password-file"`
	StateFile    string        `mapstructure:"state-file"`
	Locale       string        `mapstructure:"locale"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Retry        *RetryConfig  `mapstructure:"retry"`
}

// RetryConfig drives the "server unavailable" dialog.
type RetryConfig struct {
	Attempts int           `mapstructure:"attempts"`
	Interval time.Duration `mapstructure:"interval"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:           app,
		Short:         "rezume is a terminal client for the reZume CV builder",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute executes the root command. Failures already shown to the user are
// not printed again.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, errReported) {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	}
	return err
}

func init() {
	// A missing .env is fine.
	_ = godotenv.Load()

	envs := map[string]string{
		"api-url":       "REZUME_API_URL",
		"email":         "REZUME_EMAIL",
		"password-file": "REZUME_PASSWORD_FILE",
		"state-file":    "REZUME_STATE_FILE",
		"locale":        "REZUME_LOCALE",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	viper.SetDefault("api-url", session.DefaultAPIURL)
	viper.SetDefault("timeout", session.DefaultTimeout)
	viper.SetDefault("retry.attempts", 5)
	viper.SetDefault("retry.interval", 3*time.Second)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is rezume.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("api-url", "", "backend base url")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("api-url", rootCmd.PersistentFlags().Lookup("api-url"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Without an explicit --config the file is optional, but a broken one is not.
	err := viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && (cfgFile != "" || !errors.As(err, &notFound)) {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config.Retry == nil {
		config.Retry = &RetryConfig{}
	}

	return config, nil
}
