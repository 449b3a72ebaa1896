package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dsaquest/contestscope/internal/utils"
	"github.com/dsaquest/contestscope/pkg/contest"
	"github.com/dsaquest/contestscope/pkg/platforms/clist"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `                 _            _                            
  ___ ___  _ __ | |_ ___  ___| |_ ___  ___ ___  _ __   ___ 
 / __/ _ \| '_ \| __/ _ \/ __| __/ __|/ __/ _ \| '_ \ / _ \
| (_| (_) | | | | ||  __/\__ \ |_\__ \ (_| (_) | |_) |  __/
 \___\___/|_| |_|\__\___||___/\__|___/\___\___/| .__/ \___|
                                               |_|         
`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "contestscope",
	Short: "Upcoming programming contests from every major judge, in one list.",
	Long: LOGO + `contestscope aggregates upcoming contests from Codeforces, LeetCode, CodeChef, AtCoder,
HackerRank, HackerEarth, GeeksforGeeks, SPOJ and CLIST into one deduplicated, time-ordered list.

Serve it over HTTP, print it from the command line, or mail a daily digest to subscribers.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.contestscope.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("dbpath", "", "Path to SQLite DB file (default: $HOME/.config/contestscope/contestscope.sqlite)")
	rootCmd.PersistentFlags().Bool("dev", false, "Use the built-in sample source instead of the real platforms")

	viper.BindPFlag("digest.dbpath", rootCmd.PersistentFlags().Lookup("dbpath"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".contestscope")
		viper.SetConfigType("yaml")
	}

	bindEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgFile == "" {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := filepath.Join(home, ".contestscope.yaml")
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s\n", err)
			}
		} else {
			fmt.Printf("Error reading config file: %s\n", err)
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}

// bindEnv lets CONTESTSCOPE_SECTION_KEY override section.key.
func bindEnv() {
	viper.SetEnvPrefix("CONTESTSCOPE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// configList reads a list that may also come from the environment as a
// comma-separated string.
func configList(key string) []string {
	if s, ok := viper.Get(key).(string); ok {
		return utils.SplitList(s)
	}
	return viper.GetStringSlice(key)
}

// configDuration reads a duration, rejecting values that do not parse.
// An empty value yields def.
func configDuration(key string, def time.Duration) (time.Duration, error) {
	s, ok := viper.Get(key).(string)
	if !ok {
		return viper.GetDuration(key), nil
	}
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func setDefaults() {
	viper.SetDefault("server.listen", ":8080")
	viper.SetDefault("server.cors_origins", []string{"*"})

	viper.SetDefault("cache.window", "10m")
	viper.SetDefault("cache.redis_url", "")

	viper.SetDefault("http.timeout", "20s")
	viper.SetDefault("http.retries", 2)

	for _, name := range sourceNames {
		viper.SetDefault("sources."+name+".enabled", true)
		viper.SetDefault("sources."+name+".base_url", "")
	}
	viper.SetDefault("sources.hackerearth.max_details", 10)
	viper.SetDefault("sources.hackerearth.concurrency", 3)
	viper.SetDefault("sources.gfg.timezone", "Asia/Kolkata")
	viper.SetDefault("sources.clist.username", "")
	viper.SetDefault("sources.clist.api_key", "")
	viper.SetDefault("sources.clist.resources", clist.DefaultResources)

	viper.SetDefault("ranking.hot_window", "24h")
	viper.SetDefault("ranking.priority.platforms", []string{contest.LeetCode, contest.Codeforces})
	viper.SetDefault("ranking.priority.window", "48h")
	viper.SetDefault("ranking.major.platforms", []string{
		contest.CodeChef, contest.AtCoder, contest.TopCoder,
		contest.GeeksforGeeks, contest.HackerEarth, contest.SPOJ,
	})
	viper.SetDefault("ranking.major.window", "72h")
	viper.SetDefault("ranking.special", []string{contest.HackerRank})

	viper.SetDefault("digest.secret", "")
	viper.SetDefault("digest.window", "24h")

	viper.SetDefault("smtp.host", "")
	viper.SetDefault("smtp.port", 587)
	viper.SetDefault("smtp.username", "")
	viper.SetDefault("smtp.password", "")
	viper.SetDefault("smtp.from", "")
}
