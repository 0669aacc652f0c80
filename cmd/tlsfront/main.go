package main

import (
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

var (
	verbose    int
	configPath string
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-verbose n] [-config file] <selftest|decrypt> [flags]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.IntVar(&verbose, "verbose", 2, "Set log level(0:trace, 1:debug, 2:info)")
	flag.StringVar(&configPath, "config", "", "Path to JSONC config file")
	flag.Usage = usage
	flag.Parse()

	fs := afero.NewOsFs()
	cfg, err := loadConfig(fs, configPath)
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Verbose != nil && !flagSet(flag.CommandLine, "verbose") {
		verbose = *cfg.Verbose
	}
	switch verbose {
	case 0:
		log.SetLevel(log.TraceLevel)
	case 1:
		log.SetLevel(log.DebugLevel)
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	switch cmd, args := flag.Arg(0), flag.Args()[1:]; cmd {
	case "selftest":
		err = runSelftest(fs, &cfg.Selftest, args)
	case "decrypt":
		err = runDecrypt(fs, &cfg.Decrypt, args)
	default:
		log.Errorf("unknown command %q", cmd)
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func flagSet(fset *flag.FlagSet, name string) bool {
	set := false
	fset.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
