// Command ulogcat is a thin CLI over the ulog decoder package.
package main

import (
	"fmt"
	"os"

	"github.com/flightlog/ulog/ulog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string
var chunkSize int

var rootCmd = &cobra.Command{
	Use:   "ulogcat",
	Short: "Inspect and stream PX4 ULog flight-log files",
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ulogcat.yaml)")
	rootCmd.PersistentFlags().IntVar(&chunkSize, "chunk-size", 0, "ChunkedReader block size in bytes (0 = package default)")
	_ = viper.BindPFlag("chunk-size", rootCmd.PersistentFlags().Lookup("chunk-size"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".ulogcat")
	}
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
	if viper.IsSet("chunk-size") {
		chunkSize = viper.GetInt("chunk-size")
	}
}

func main() {
	Execute()
}

func die(format string, args ...any) {
	fmt.Fprintln(os.Stderr, fmt.Sprintf(format, args...))
	os.Exit(1)
}

// openedFile bundles an opened *ulog.Engine with the *os.File backing its
// FileSource, so callers can defer a single Close.
type openedFile struct {
	file   *os.File
	engine *ulog.Engine
}

func (o *openedFile) Close() {
	o.file.Close()
}

func openEngine(path string) (*openedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	source := ulog.NewFileSource(f)
	eng := ulog.New(source, ulog.Options{ChunkSize: chunkSize})
	if err := eng.Open(); err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &openedFile{file: f, engine: eng}, nil
}
